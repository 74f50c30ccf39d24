package exam_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mitihani/core/exam"
	"github.com/trezcool/mitihani/core/rating"
	logsvc "github.com/trezcool/mitihani/services/logger"
	dummydb "github.com/trezcool/mitihani/storage/database/dummy"
	objstore "github.com/trezcool/mitihani/storage/object"
)

func setup(t *testing.T) (exam.Service, *objstore.DummyStore) {
	t.Helper()

	db := dummydb.Open()
	files := objstore.NewDummyStore()
	svc := exam.NewService(dummydb.NewExamRepository(db), files, logsvc.NewTestLogger())
	return svc, files
}

func create(t *testing.T, svc exam.Service, title string) exam.Exam {
	t.Helper()

	file := bytes.NewReader([]byte("%PDF-1.4"))
	ex, err := svc.Create(context.Background(), exam.NewExam{
		UserID:  "uploader",
		Title:   title,
		Course:  "Math",
		Teacher: "Mr. Kalala",
		Cycle:   "Secondary",
	}, file, title+".pdf", int64(file.Len()), "application/pdf")
	require.NoError(t, err)
	return ex
}

func Test_service_Create(t *testing.T) {
	svc, files := setup(t)

	ex := create(t, svc, "Algebra Final")
	assert.NotEmpty(t, ex.ID)
	assert.Equal(t, exam.StatusPending, ex.Status)
	assert.Equal(t, 0, ex.Downloads)
	assert.Equal(t, rating.Summarize(nil), ex.RatingsSummary)
	assert.NotEmpty(t, ex.FileURL)
	assert.Equal(t, "Algebra Final.pdf", ex.FileName)
	assert.True(t, files.Has(ex.FilePath))
	assert.False(t, ex.UploadDate.IsZero())
}

func Test_service_Create_invalid(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	// missing required fields
	file := bytes.NewReader([]byte("%PDF-1.4"))
	_, err := svc.Create(ctx, exam.NewExam{Title: "  "}, file, "x.pdf", int64(file.Len()), "application/pdf")
	require.Error(t, err)

	// missing file
	_, err = svc.Create(ctx, exam.NewExam{
		UserID: "uploader", Title: "T", Course: "C", Teacher: "T", Cycle: "C",
	}, nil, "", 0, "")
	require.Error(t, err)
}

func Test_service_UpdateStatus(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()
	ex := create(t, svc, "Algebra Final")

	require.NoError(t, svc.UpdateStatus(ctx, ex.ID, exam.StatusApproved))
	got, err := svc.GetByID(ctx, ex.ID)
	require.NoError(t, err)
	assert.Equal(t, exam.StatusApproved, got.Status)

	// the write is unconditional: an approved exam can be re-reviewed to
	// rejected, and the new status sticks
	require.NoError(t, svc.UpdateStatus(ctx, ex.ID, exam.StatusRejected))
	got, err = svc.GetByID(ctx, ex.ID)
	require.NoError(t, err)
	assert.Equal(t, exam.StatusRejected, got.Status)

	// bad status
	require.Error(t, svc.UpdateStatus(ctx, ex.ID, exam.Status("archived")))
	got, err = svc.GetByID(ctx, ex.ID)
	require.NoError(t, err)
	assert.Equal(t, exam.StatusRejected, got.Status)

	// unknown exam
	assert.Equal(t, exam.ErrNotFound, svc.UpdateStatus(ctx, "missing", exam.StatusApproved))
}

func Test_service_DownloadURL(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()
	ex := create(t, svc, "Algebra Final")

	url1, err := svc.DownloadURL(ctx, ex.ID)
	require.NoError(t, err)
	url2, err := svc.DownloadURL(ctx, ex.ID)
	require.NoError(t, err)
	assert.NotEqual(t, url1, url2) // fresh URL each time

	got, err := svc.GetByID(ctx, ex.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Downloads)
	assert.Equal(t, url2, got.FileURL) // cached on the document

	_, err = svc.DownloadURL(ctx, "missing")
	assert.Equal(t, exam.ErrNotFound, err)
}

func Test_service_Delete(t *testing.T) {
	svc, files := setup(t)
	ctx := context.Background()
	ex := create(t, svc, "Algebra Final")

	require.NoError(t, svc.Delete(ctx, ex.ID))
	_, err := svc.GetByID(ctx, ex.ID)
	assert.Equal(t, exam.ErrNotFound, err)
	assert.False(t, files.Has(ex.FilePath))
	assert.Equal(t, []string{ex.FilePath}, files.Deleted)

	assert.Equal(t, exam.ErrNotFound, svc.Delete(ctx, "missing"))
}

// A failed object-store delete does not block the document delete.
func Test_service_Delete_storageFailure(t *testing.T) {
	svc, files := setup(t)
	ctx := context.Background()
	ex := create(t, svc, "Algebra Final")

	// drop the object behind the service's back so the store errors
	require.NoError(t, files.Delete(ctx, ex.FilePath))

	require.NoError(t, svc.Delete(ctx, ex.ID))
	_, err := svc.GetByID(ctx, ex.ID)
	assert.Equal(t, exam.ErrNotFound, err)
}

func Test_service_Filter(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	algebra := create(t, svc, "Algebra Final")
	geometry := create(t, svc, "Geometry Midterm")
	require.NoError(t, svc.UpdateStatus(ctx, algebra.ID, exam.StatusApproved))

	tests := []struct {
		name   string
		filter *exam.QueryFilter
		want   []string // exam IDs
	}{
		{name: "all", filter: &exam.QueryFilter{}, want: []string{algebra.ID, geometry.ID}},
		{name: "search", filter: &exam.QueryFilter{Search: "geo"}, want: []string{geometry.ID}},
		{name: "search (unknown)", filter: &exam.QueryFilter{Search: "history"}, want: nil},
		{name: "status", filter: &exam.QueryFilter{Status: exam.StatusApproved}, want: []string{algebra.ID}},
		{name: "course", filter: &exam.QueryFilter{Course: "Math"}, want: []string{algebra.ID, geometry.ID}},
		{name: "uploader", filter: &exam.QueryFilter{UserID: "uploader"}, want: []string{algebra.ID, geometry.ID}},
		{name: "uploader (unknown)", filter: &exam.QueryFilter{UserID: "nobody"}, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exams, err := svc.Filter(ctx, tt.filter)
			require.NoError(t, err)

			ids := make([]string, 0, len(exams))
			for _, ex := range exams {
				ids = append(ids, ex.ID)
			}
			assert.ElementsMatch(t, tt.want, ids)
		})
	}
}
