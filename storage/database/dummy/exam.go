package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/mitihani/core/exam"
)

type examRepository struct {
	db *examTable
}

var _ exam.Repository = (*examRepository)(nil) // interface compliance check

func NewExamRepository(db *DB) *examRepository {
	return &examRepository{db: db.exam}
}

func (repo *examRepository) query() []exam.Exam {
	exams := make([]exam.Exam, 0, len(repo.db.table))
	for _, ex := range repo.db.table {
		exams = append(exams, *ex)
	}
	return exams
}

func (repo *examRepository) CreateExam(_ context.Context, ex exam.Exam) (exam.Exam, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	ex.ID = uuid.New().String()
	repo.db.table[ex.ID] = &ex
	return ex, nil
}

func (repo *examRepository) GetExamByID(_ context.Context, id string) (exam.Exam, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if ex, ok := repo.db.table[id]; ok {
		return *ex, nil
	}
	return exam.Exam{}, exam.ErrNotFound
}

func (repo *examRepository) FilterExams(_ context.Context, filter *exam.QueryFilter) ([]exam.Exam, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	exams := repo.query()
	if filter != nil {
		filtered := make([]exam.Exam, 0, len(exams))
		for _, ex := range exams {
			if filter.Search != "" && !strings.Contains(strings.ToLower(ex.Title), strings.ToLower(filter.Search)) {
				continue
			}
			if filter.Course != "" && ex.Course != filter.Course {
				continue
			}
			if filter.Teacher != "" && ex.Teacher != filter.Teacher {
				continue
			}
			if filter.Cycle != "" && ex.Cycle != filter.Cycle {
				continue
			}
			if filter.Status != "" && ex.Status != filter.Status {
				continue
			}
			if filter.UserID != "" && ex.UserID != filter.UserID {
				continue
			}
			filtered = append(filtered, ex)
		}
		exams = filtered
	}

	// newest first
	sort.Slice(exams, func(i, j int) bool {
		if exams[i].UploadDate.Equal(exams[j].UploadDate) {
			return exams[i].ID > exams[j].ID
		}
		return exams[i].UploadDate.After(exams[j].UploadDate)
	})
	return exams, nil
}

func (repo *examRepository) UpdateExamStatus(_ context.Context, id string, status exam.Status) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	ex, ok := repo.db.table[id]
	if !ok {
		return exam.ErrNotFound
	}
	ex.Status = status
	return nil
}

func (repo *examRepository) IncrementDownloads(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	ex, ok := repo.db.table[id]
	if !ok {
		return exam.ErrNotFound
	}
	ex.Downloads++
	return nil
}

func (repo *examRepository) SetFileURL(_ context.Context, id, url string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	ex, ok := repo.db.table[id]
	if !ok {
		return exam.ErrNotFound
	}
	ex.FileURL = url
	return nil
}

func (repo *examRepository) DeleteExam(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	delete(repo.db.table, id)
	return nil
}
