package rating_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mitihani/core/exam"
	"github.com/trezcool/mitihani/core/rating"
	dummydb "github.com/trezcool/mitihani/storage/database/dummy"
)

func setup(t *testing.T) (rating.Service, exam.Repository) {
	t.Helper()

	db := dummydb.Open()
	return rating.NewService(dummydb.NewRatingRepository(db)), dummydb.NewExamRepository(db)
}

func createExam(t *testing.T, repo exam.Repository) exam.Exam {
	t.Helper()

	ex, err := repo.CreateExam(context.Background(), exam.Exam{
		UserID:         "uploader",
		Title:          "Algebra Final",
		Course:         "Math",
		Teacher:        "Mr. Kalala",
		Cycle:          "Secondary",
		Status:         exam.StatusApproved,
		RatingsSummary: rating.Summarize(nil),
	})
	require.NoError(t, err)
	return ex
}

func newRating(examID, userID string, value int, comment string) rating.NewRating {
	return rating.NewRating{
		ExamID:    examID,
		UserID:    userID,
		UserName:  "User " + userID,
		UserEmail: userID + "@test.cd",
		Value:     value,
		Comment:   comment,
	}
}

func Test_service_Create(t *testing.T) {
	svc, examRepo := setup(t)
	ex := createExam(t, examRepo)
	ctx := context.Background()

	r, err := svc.Create(ctx, newRating(ex.ID, "u1", 5, "  great material  "))
	require.NoError(t, err)
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, 5, r.Value)
	assert.Equal(t, "great material", r.Comment)
	assert.Equal(t, 0, r.Helpful)
	assert.False(t, r.CreatedAt.IsZero())
	assert.Nil(t, r.UpdatedAt)

	got, err := svc.GetByUser(ctx, ex.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, r, got)

	// duplicate by the same user
	_, err = svc.Create(ctx, newRating(ex.ID, "u1", 3, "changed my mind"))
	assert.Equal(t, rating.ErrAlreadyRated, err)

	// summary persisted onto the exam document
	refreshed, err := examRepo.GetExamByID(ctx, ex.ID)
	require.NoError(t, err)
	assert.Equal(t, rating.Summary{Average: 5, Count: 1, Distribution: map[string]int{"5": 1, "4": 0, "3": 0, "2": 0, "1": 0}}, refreshed.RatingsSummary)
}

func Test_service_Create_invalid(t *testing.T) {
	svc, examRepo := setup(t)
	ex := createExam(t, examRepo)
	ctx := context.Background()

	tests := []struct {
		name    string
		value   int
		comment string
	}{
		{name: "value too low", value: 0, comment: "ok"},
		{name: "value negative", value: -1, comment: "ok"},
		{name: "value too high", value: 6, comment: "ok"},
		{name: "blank comment", value: 3, comment: "   "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, newRating(ex.ID, "u1", tt.value, tt.comment))
			require.Error(t, err)

			// nothing written
			ratings, err := svc.QueryByExam(ctx, ex.ID)
			require.NoError(t, err)
			assert.Empty(t, ratings)
		})
	}
}

func Test_service_Update(t *testing.T) {
	svc, examRepo := setup(t)
	ex := createExam(t, examRepo)
	ctx := context.Background()

	r, err := svc.Create(ctx, newRating(ex.ID, "u1", 5, "great"))
	require.NoError(t, err)

	updated, err := svc.Update(ctx, r.ID, rating.UpdateRating{Value: 2, Comment: "on second thought"})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Value)
	assert.Equal(t, "on second thought", updated.Comment)
	assert.Equal(t, r.CreatedAt, updated.CreatedAt)
	assert.Equal(t, r.UserID, updated.UserID)
	assert.Equal(t, r.Helpful, updated.Helpful)
	require.NotNil(t, updated.UpdatedAt)

	// invalid edit leaves the record alone
	_, err = svc.Update(ctx, r.ID, rating.UpdateRating{Value: 9, Comment: "nope"})
	require.Error(t, err)
	got, err := svc.GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Value)

	// unknown rating
	_, err = svc.Update(ctx, "missing", rating.UpdateRating{Value: 1, Comment: "hi"})
	assert.Equal(t, rating.ErrNotFound, err)

	// summary reflects the edit
	refreshed, err := examRepo.GetExamByID(ctx, ex.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(2), refreshed.RatingsSummary.Average)
}

func Test_service_Delete(t *testing.T) {
	svc, examRepo := setup(t)
	ex := createExam(t, examRepo)
	ctx := context.Background()

	r1, err := svc.Create(ctx, newRating(ex.ID, "u1", 5, "great"))
	require.NoError(t, err)
	_, err = svc.Create(ctx, newRating(ex.ID, "u2", 3, "meh"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, r1.ID))
	_, err = svc.GetByID(ctx, r1.ID)
	assert.Equal(t, rating.ErrNotFound, err)

	assert.Equal(t, rating.ErrNotFound, svc.Delete(ctx, "missing"))

	refreshed, err := examRepo.GetExamByID(ctx, ex.ID)
	require.NoError(t, err)
	assert.Equal(t, rating.Summary{Average: 3, Count: 1, Distribution: map[string]int{"5": 0, "4": 0, "3": 1, "2": 0, "1": 0}}, refreshed.RatingsSummary)
}

func Test_service_MarkHelpful(t *testing.T) {
	svc, examRepo := setup(t)
	ex := createExam(t, examRepo)
	ctx := context.Background()

	r, err := svc.Create(ctx, newRating(ex.ID, "u1", 4, "useful"))
	require.NoError(t, err)

	// +1 per call, no dedup
	for i := 1; i <= 3; i++ {
		require.NoError(t, svc.MarkHelpful(ctx, r.ID))
		got, err := svc.GetByID(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, i, got.Helpful)
	}

	assert.Equal(t, rating.ErrNotFound, svc.MarkHelpful(ctx, "missing"))
}

func Test_service_Summary(t *testing.T) {
	svc, examRepo := setup(t)
	ex := createExam(t, examRepo)
	ctx := context.Background()

	// no ratings -> all zeros
	summary, err := svc.Summary(ctx, ex.ID)
	require.NoError(t, err)
	assert.Equal(t, rating.Summary{Average: 0, Count: 0, Distribution: map[string]int{"5": 0, "4": 0, "3": 0, "2": 0, "1": 0}}, summary)

	// [5,5,4] -> 4.67
	for i, v := range []int{5, 5, 4} {
		_, err = svc.Create(ctx, newRating(ex.ID, "u"+string(rune('1'+i)), v, "ok"))
		require.NoError(t, err)
	}
	summary, err = svc.Summary(ctx, ex.ID)
	require.NoError(t, err)
	assert.Equal(t, 4.67, summary.Average)
	assert.Equal(t, 3, summary.Count)
	assert.Equal(t, map[string]int{"5": 2, "4": 1, "3": 0, "2": 0, "1": 0}, summary.Distribution)
}

// The summary after any mutation sequence matches the live records: the count
// equals the number of records and the distribution sums to the count.
func Test_service_summaryConsistency(t *testing.T) {
	svc, examRepo := setup(t)
	ex := createExam(t, examRepo)
	ctx := context.Background()

	r1, err := svc.Create(ctx, newRating(ex.ID, "u1", 5, "great"))
	require.NoError(t, err)
	r2, err := svc.Create(ctx, newRating(ex.ID, "u2", 1, "bad scan"))
	require.NoError(t, err)
	_, err = svc.Create(ctx, newRating(ex.ID, "u3", 3, "ok"))
	require.NoError(t, err)
	_, err = svc.Update(ctx, r2.ID, rating.UpdateRating{Value: 4, Comment: "fixed now"})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, r1.ID))

	ratings, err := svc.QueryByExam(ctx, ex.ID)
	require.NoError(t, err)

	refreshed, err := examRepo.GetExamByID(ctx, ex.ID)
	require.NoError(t, err)
	summary := refreshed.RatingsSummary

	assert.Equal(t, len(ratings), summary.Count)
	var distTotal int
	for _, n := range summary.Distribution {
		distTotal += n
	}
	assert.Equal(t, summary.Count, distTotal)
	assert.Equal(t, rating.Summarize(ratings), summary)
}

func TestSummarize_rounding(t *testing.T) {
	mk := func(values ...int) []rating.Rating {
		ratings := make([]rating.Rating, 0, len(values))
		for _, v := range values {
			ratings = append(ratings, rating.Rating{Value: v})
		}
		return ratings
	}

	tests := []struct {
		name   string
		values []int
		want   float64
	}{
		{name: "empty", values: nil, want: 0},
		{name: "single", values: []int{3}, want: 3},
		{name: "exact", values: []int{5, 3}, want: 4},
		{name: "two thirds rounds up", values: []int{5, 5, 4}, want: 4.67},
		{name: "one third rounds down", values: []int{4, 4, 5}, want: 4.33},
		{name: "half rounds up", values: []int{1, 1, 1, 2, 2, 2, 2, 2}, want: 1.63},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rating.Summarize(mk(tt.values...)).Average)
		})
	}
}

func TestNewRating_Validate(t *testing.T) {
	nr := newRating("e1", "u1", 3, "\t a solid paper \n")
	err := nr.Validate()
	require.NoError(t, err)
	assert.Equal(t, "a solid paper", nr.Comment)

	nr = newRating("e1", "u1", 0, "")
	assert.Error(t, nr.Validate())
}
