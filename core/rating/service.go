package rating

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"
)

var (
	// errors
	ErrNotFound     = errors.New("rating not found")
	ErrAlreadyRated = errors.New("this exam has already been rated by this user")
)

type (
	Repository interface {
		CreateRating(ctx context.Context, r Rating) (Rating, error)
		GetRatingByID(ctx context.Context, id string) (Rating, error)
		// GetExamRatings returns all ratings for an exam, newest first.
		GetExamRatings(ctx context.Context, examID string) ([]Rating, error)
		GetRatingByUser(ctx context.Context, examID, userID string) (Rating, error)
		UpdateRating(ctx context.Context, id string, value int, comment string, updatedAt time.Time) error
		DeleteRating(ctx context.Context, id string) error
		// IncrementHelpful atomically increments the helpful counter by 1.
		IncrementHelpful(ctx context.Context, id string) error
		// SetExamSummary overwrites the summary embedded on the exam document
		// (full replace, not merge).
		SetExamSummary(ctx context.Context, examID string, summary Summary) error
	}

	Service interface {
		Create(ctx context.Context, nr NewRating) (Rating, error)
		QueryByExam(ctx context.Context, examID string) ([]Rating, error)
		GetByID(ctx context.Context, id string) (Rating, error)
		GetByUser(ctx context.Context, examID, userID string) (Rating, error)
		Update(ctx context.Context, id string, ur UpdateRating) (Rating, error)
		Delete(ctx context.Context, id string) error
		MarkHelpful(ctx context.Context, id string) error
		Summary(ctx context.Context, examID string) (Summary, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Create(ctx context.Context, nr NewRating) (Rating, error) {
	if err := nr.Validate(); err != nil {
		return Rating{}, err
	}

	// check-then-write: two near-simultaneous calls from the same user can
	// both pass this check. Accepted; see DESIGN.md.
	if _, err := svc.repo.GetRatingByUser(ctx, nr.ExamID, nr.UserID); err == nil {
		return Rating{}, ErrAlreadyRated
	} else if err != ErrNotFound {
		return Rating{}, pkgerrors.Wrap(err, "checking existing rating")
	}

	r := Rating{
		ExamID:    nr.ExamID,
		UserID:    nr.UserID,
		UserName:  nr.UserName,
		UserEmail: nr.UserEmail,
		Value:     nr.Value,
		Comment:   nr.Comment,
		Helpful:   0,
		CreatedAt: time.Now().UTC(),
	}
	r, err := svc.repo.CreateRating(ctx, r)
	if err != nil {
		return Rating{}, pkgerrors.Wrap(err, "creating rating")
	}

	if err := svc.refreshSummary(ctx, r.ExamID); err != nil {
		// the rating is persisted; the stale summary heals on the next mutation
		return r, err
	}
	return r, nil
}

func (svc *service) QueryByExam(ctx context.Context, examID string) ([]Rating, error) {
	return svc.repo.GetExamRatings(ctx, examID)
}

func (svc *service) GetByID(ctx context.Context, id string) (Rating, error) {
	return svc.repo.GetRatingByID(ctx, id)
}

func (svc *service) GetByUser(ctx context.Context, examID, userID string) (Rating, error) {
	return svc.repo.GetRatingByUser(ctx, examID, userID)
}

func (svc *service) Update(ctx context.Context, id string, ur UpdateRating) (Rating, error) {
	if err := ur.Validate(); err != nil {
		return Rating{}, err
	}

	r, err := svc.repo.GetRatingByID(ctx, id)
	if err != nil {
		return Rating{}, err
	}

	now := time.Now().UTC()
	if err := svc.repo.UpdateRating(ctx, id, ur.Value, ur.Comment, now); err != nil {
		return Rating{}, pkgerrors.Wrap(err, "updating rating")
	}
	r.Value = ur.Value
	r.Comment = ur.Comment
	r.UpdatedAt = &now

	if err := svc.refreshSummary(ctx, r.ExamID); err != nil {
		return r, err
	}
	return r, nil
}

func (svc *service) Delete(ctx context.Context, id string) error {
	// fetch the exam reference before the record disappears
	r, err := svc.repo.GetRatingByID(ctx, id)
	if err != nil {
		return err
	}
	if err := svc.repo.DeleteRating(ctx, id); err != nil {
		return pkgerrors.Wrap(err, "deleting rating")
	}
	return svc.refreshSummary(ctx, r.ExamID)
}

// MarkHelpful increments the helpful counter by exactly 1 per call.
// Repeat votes by the same voter are not deduplicated here; the UI disables
// them and the gap is recorded in DESIGN.md.
func (svc *service) MarkHelpful(ctx context.Context, id string) error {
	if err := svc.repo.IncrementHelpful(ctx, id); err != nil {
		if err == ErrNotFound {
			return err
		}
		return pkgerrors.Wrap(err, "marking rating helpful")
	}
	return nil
}

// Summary is always computed fresh from the live rating records, never read
// from the cached exam field, so the return value is correct relative to the
// current records at the cost of an O(n) read.
func (svc *service) Summary(ctx context.Context, examID string) (Summary, error) {
	ratings, err := svc.repo.GetExamRatings(ctx, examID)
	if err != nil {
		return Summary{}, pkgerrors.Wrap(err, "querying exam ratings")
	}
	return Summarize(ratings), nil
}

func (svc *service) refreshSummary(ctx context.Context, examID string) error {
	ratings, err := svc.repo.GetExamRatings(ctx, examID)
	if err != nil {
		return pkgerrors.Wrap(err, "querying exam ratings")
	}
	if err := svc.repo.SetExamSummary(ctx, examID, Summarize(ratings)); err != nil {
		return pkgerrors.Wrap(err, "persisting ratings summary")
	}
	return nil
}
