package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/mitihani/core/rating"
)

type ratingRepository struct {
	db    *ratingTable
	exams *examTable
}

var _ rating.Repository = (*ratingRepository)(nil) // interface compliance check

func NewRatingRepository(db *DB) *ratingRepository {
	return &ratingRepository{db: db.rating, exams: db.exam}
}

func (repo *ratingRepository) query() []rating.Rating {
	ratings := make([]rating.Rating, 0, len(repo.db.table))
	for _, r := range repo.db.table {
		ratings = append(ratings, *r)
	}
	return ratings
}

func (repo *ratingRepository) CreateRating(_ context.Context, r rating.Rating) (rating.Rating, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	r.ID = uuid.New().String()
	repo.db.table[r.ID] = &r
	return r, nil
}

func (repo *ratingRepository) GetRatingByID(_ context.Context, id string) (rating.Rating, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if r, ok := repo.db.table[id]; ok {
		return *r, nil
	}
	return rating.Rating{}, rating.ErrNotFound
}

func (repo *ratingRepository) GetExamRatings(_ context.Context, examID string) ([]rating.Rating, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	ratings := make([]rating.Rating, 0)
	for _, r := range repo.query() {
		if r.ExamID == examID {
			ratings = append(ratings, r)
		}
	}
	// newest first
	sort.Slice(ratings, func(i, j int) bool {
		if ratings[i].CreatedAt.Equal(ratings[j].CreatedAt) {
			return ratings[i].ID > ratings[j].ID
		}
		return ratings[i].CreatedAt.After(ratings[j].CreatedAt)
	})
	return ratings, nil
}

func (repo *ratingRepository) GetRatingByUser(_ context.Context, examID, userID string) (rating.Rating, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, r := range repo.query() {
		if r.ExamID == examID && r.UserID == userID {
			return r, nil
		}
	}
	return rating.Rating{}, rating.ErrNotFound
}

func (repo *ratingRepository) UpdateRating(_ context.Context, id string, value int, comment string, updatedAt time.Time) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	r, ok := repo.db.table[id]
	if !ok {
		return rating.ErrNotFound
	}
	r.Value = value
	r.Comment = comment
	r.UpdatedAt = &updatedAt
	return nil
}

func (repo *ratingRepository) DeleteRating(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return rating.ErrNotFound
	}
	delete(repo.db.table, id)
	return nil
}

func (repo *ratingRepository) IncrementHelpful(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	r, ok := repo.db.table[id]
	if !ok {
		return rating.ErrNotFound
	}
	r.Helpful++
	return nil
}

func (repo *ratingRepository) SetExamSummary(_ context.Context, examID string, summary rating.Summary) error {
	repo.exams.Lock()
	defer repo.exams.Unlock()

	ex, ok := repo.exams.table[examID]
	if !ok {
		return errors.Errorf("exam %s not found", examID)
	}
	ex.RatingsSummary = summary
	return nil
}
