package exam

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/mitihani/core"
	"github.com/trezcool/mitihani/core/rating"
)

var (
	// errors
	ErrNotFound      = errors.New("exam not found")
	ErrInvalidStatus = errors.New("invalid status")
)

type (
	Repository interface {
		CreateExam(ctx context.Context, ex Exam) (Exam, error)
		GetExamByID(ctx context.Context, id string) (Exam, error)
		// FilterExams applies AND operation on available QueryFilter fields;
		// results are ordered by upload date, newest first.
		FilterExams(ctx context.Context, filter *QueryFilter) ([]Exam, error)
		// UpdateExamStatus is an unconditional single-field write; it does not
		// check the current status before transitioning.
		UpdateExamStatus(ctx context.Context, id string, status Status) error
		// IncrementDownloads atomically increments the download counter by 1.
		IncrementDownloads(ctx context.Context, id string) error
		SetFileURL(ctx context.Context, id, url string) error
		DeleteExam(ctx context.Context, id string) error
	}

	// FileStore abstracts the object storage holding the uploaded PDFs.
	FileStore interface {
		Save(ctx context.Context, path string, r io.Reader, size int64, contentType string) error
		// PresignedURL mints a fresh time-limited download URL for the object
		// at the given stable path.
		PresignedURL(ctx context.Context, path, filename string) (string, error)
		Delete(ctx context.Context, path string) error
	}

	Service interface {
		Create(ctx context.Context, ne NewExam, file io.Reader, filename string, size int64, contentType string) (Exam, error)
		GetByID(ctx context.Context, id string) (Exam, error)
		Filter(ctx context.Context, filter *QueryFilter) ([]Exam, error)
		UpdateStatus(ctx context.Context, id string, status Status) error
		Delete(ctx context.Context, id string) error
		// DownloadURL refreshes the cached FileURL from the stable FilePath and
		// bumps the download counter.
		DownloadURL(ctx context.Context, id string) (string, error)
	}

	service struct {
		repo   Repository
		files  FileStore
		logger core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, files FileStore, logger core.Logger) Service {
	return &service{
		repo:   repo,
		files:  files,
		logger: logger,
	}
}

func (svc *service) Create(ctx context.Context, ne NewExam, file io.Reader, filename string, size int64, contentType string) (Exam, error) {
	if err := ne.Validate(); err != nil {
		return Exam{}, err
	}
	if file == nil || filename == "" {
		return Exam{}, core.NewValidationError(nil, core.FieldError{Field: "file", Error: "an exam file is required"})
	}

	// the object key is stable for the lifetime of the exam; FileURL is a
	// cache regenerated from it on demand
	key := fmt.Sprintf("exams/%s%s", uuid.New().String(), path.Ext(filename))
	if err := svc.files.Save(ctx, key, file, size, contentType); err != nil {
		return Exam{}, pkgerrors.Wrap(err, "storing exam file")
	}
	url, err := svc.files.PresignedURL(ctx, key, filename)
	if err != nil {
		return Exam{}, pkgerrors.Wrap(err, "presigning exam file URL")
	}

	ex := Exam{
		UserID:         ne.UserID,
		Title:          ne.Title,
		Course:         ne.Course,
		Teacher:        ne.Teacher,
		Cycle:          ne.Cycle,
		Unit:           ne.Unit,
		Section:        ne.Section,
		SchoolTerm:     ne.SchoolTerm,
		Status:         StatusPending,
		RatingsSummary: rating.Summarize(nil),
		FileURL:        url,
		FileName:       filename,
		FilePath:       key,
		UploadDate:     time.Now().UTC(),
	}
	ex, err = svc.repo.CreateExam(ctx, ex)
	if err != nil {
		return Exam{}, pkgerrors.Wrap(err, "creating exam")
	}
	return ex, nil
}

func (svc *service) GetByID(ctx context.Context, id string) (Exam, error) {
	return svc.repo.GetExamByID(ctx, id)
}

func (svc *service) Filter(ctx context.Context, filter *QueryFilter) ([]Exam, error) {
	return svc.repo.FilterExams(ctx, filter)
}

// UpdateStatus performs the moderation transition. It deliberately does not
// guard against re-transitioning an already-decided exam: whether that should
// be blocked is a pending product decision (see DESIGN.md).
func (svc *service) UpdateStatus(ctx context.Context, id string, status Status) error {
	if !status.Valid() {
		return core.NewValidationError(ErrInvalidStatus, core.FieldError{Field: "status", Error: ErrInvalidStatus.Error()})
	}
	if err := svc.repo.UpdateExamStatus(ctx, id, status); err != nil {
		if err == ErrNotFound {
			return err
		}
		return pkgerrors.Wrap(err, "updating exam status")
	}
	return nil
}

// Delete removes the storage object best-effort and the document
// unconditionally.
func (svc *service) Delete(ctx context.Context, id string) error {
	ex, err := svc.repo.GetExamByID(ctx, id)
	if err != nil {
		return err
	}
	if err := svc.files.Delete(ctx, ex.FilePath); err != nil {
		svc.logger.Warn(fmt.Sprintf("deleting exam file %s: %v", ex.FilePath, err), err)
	}
	if err := svc.repo.DeleteExam(ctx, id); err != nil {
		return pkgerrors.Wrap(err, "deleting exam")
	}
	return nil
}

func (svc *service) DownloadURL(ctx context.Context, id string) (string, error) {
	ex, err := svc.repo.GetExamByID(ctx, id)
	if err != nil {
		return "", err
	}

	url, err := svc.files.PresignedURL(ctx, ex.FilePath, ex.FileName)
	if err != nil {
		return "", pkgerrors.Wrap(err, "presigning exam file URL")
	}
	if err := svc.repo.SetFileURL(ctx, id, url); err != nil {
		return "", pkgerrors.Wrap(err, "caching exam file URL")
	}
	if err := svc.repo.IncrementDownloads(ctx, id); err != nil {
		// the download still proceeds; the counter is advisory
		svc.logger.Warn(fmt.Sprintf("incrementing downloads for exam %s: %v", id, err), err)
	}
	return url, nil
}
