package echoapi

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mitihani/core/exam"
	"github.com/trezcool/mitihani/core/user"
	emailsvc "github.com/trezcool/mitihani/services/email"
	testutil "github.com/trezcool/mitihani/tests"
)

func Test_examApi_create(t *testing.T) {
	deps := setup(t)

	student := testutil.CreateUser(t, deps.usrRepo, "Student", "student", "student@test.cd", "", []string{user.RoleStudent}, true)
	token := getToken(t, student)

	fields := map[string]string{
		"title":   "Algebra Final",
		"course":  "Math",
		"teacher": "Mr. Kalala",
		"cycle":   "Secondary",
	}

	t.Run("Auth required", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/exams")
		deps.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}, rec)
	})

	t.Run("Missing file", func(t *testing.T) {
		req, rec := newUploadRequest(t, "/v1/exams", token, fields, "")
		deps.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "file")
	})

	t.Run("Missing fields", func(t *testing.T) {
		req, rec := newUploadRequest(t, "/v1/exams", token, map[string]string{"title": "Algebra"}, "algebra.pdf")
		deps.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Created pending with uploader identity", func(t *testing.T) {
		req, rec := newUploadRequest(t, "/v1/exams", token, fields, "algebra.pdf")
		deps.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code)

		exams, err := deps.examSvc.Filter(context.Background(), &exam.QueryFilter{UserID: student.ID})
		require.NoError(t, err)
		require.Len(t, exams, 1)
		ex := exams[0]
		assert.Equal(t, exam.StatusPending, ex.Status)
		assert.Equal(t, "algebra.pdf", ex.FileName)
		assert.Equal(t, 0, ex.Downloads)
		assert.True(t, deps.files.Has(ex.FilePath))
	})
}

func Test_examApi_query_retrieve(t *testing.T) {
	deps := setup(t)
	ctx := context.Background()

	student := testutil.CreateUser(t, deps.usrRepo, "Student", "student", "student@test.cd", "", []string{user.RoleStudent}, true)
	token := getToken(t, student)

	algebra := testutil.CreateExam(t, deps.examSvc, student.ID, "Algebra Final", "Math", "Mr. Kalala", "Secondary")
	geometry := testutil.CreateExam(t, deps.examSvc, student.ID, "Geometry Midterm", "Math", "Mrs. Mbuyi", "Secondary")
	require.NoError(t, deps.examSvc.UpdateStatus(ctx, algebra.ID, exam.StatusApproved))
	algebra.Status = exam.StatusApproved

	empty := marchallList(t, []interface{}{}...)

	tests := []httpTest{
		{name: "Auth required", path: "/v1/exams", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Get all", path: "/v1/exams", token: token, wantCode: http.StatusOK, wantData: marchallList(t, algebra, geometry)},
		{name: "search", path: "/v1/exams?search=geo", token: token, wantCode: http.StatusOK, wantData: marchallList(t, geometry)},
		{name: "search (unknown)", path: "/v1/exams?search=history", token: token, wantCode: http.StatusOK, wantData: empty},
		{name: "status=approved", path: "/v1/exams?status=approved", token: token, wantCode: http.StatusOK, wantData: marchallList(t, algebra)},
		{name: "teacher", path: "/v1/exams?teacher=Mrs.+Mbuyi", token: token, wantCode: http.StatusOK, wantData: marchallList(t, geometry)},
		{name: "Retrieve", path: "/v1/exams/" + algebra.ID, token: token, wantCode: http.StatusOK, wantData: marchallObj(t, algebra)},
		{name: "Retrieve not found", path: "/v1/exams/missing", token: token, wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: exam.ErrNotFound.Error()})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			deps.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_examApi_updateStatus(t *testing.T) {
	deps := setup(t)
	ctx := context.Background()

	student := testutil.CreateUser(t, deps.usrRepo, "Student", "student", "student@test.cd", "", []string{user.RoleStudent}, true)
	admin := testutil.CreateUser(t, deps.usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	adminToken := getToken(t, admin)

	ex := testutil.CreateExam(t, deps.examSvc, student.ID, "Algebra Final", "Math", "Mr. Kalala", "Secondary")
	path := "/v1/exams/" + ex.ID + "/status"

	tests := []httpTest{
		{name: "Auth required", path: path, body: []byte(`{"status":"approved"}`), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Admin required", path: path, token: getToken(t, student), body: []byte(`{"status":"approved"}`),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "Invalid status", path: path, token: adminToken, body: []byte(`{"status":"archived"}`), wantCode: http.StatusBadRequest},
		{name: "Not found", path: "/v1/exams/missing/status", token: adminToken, body: []byte(`{"status":"approved"}`), wantCode: http.StatusNotFound},
		{name: "Approve", path: path, token: adminToken, body: []byte(`{"status":"approved"}`), wantCode: http.StatusOK},
		// permissive re-review: the unconditional write lets an approved exam
		// be rejected later, and the new status sticks
		{name: "Re-review to rejected", path: path, token: adminToken, body: []byte(`{"status":"rejected","reason":"blurry scan"}`), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPatch, tt.path, tt.token, tt.body)
			deps.app.ServeHTTP(rec, req)
			if rec.Code != tt.wantCode {
				t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
			}
			if tt.wantData != nil {
				checkCodeAndData(t, tt, rec)
			}
		})
	}

	got, err := deps.examSvc.GetByID(ctx, ex.ID)
	require.NoError(t, err)
	assert.Equal(t, exam.StatusRejected, got.Status)

	// rejection email reached the uploader with the reviewer's reason
	require.Len(t, emailsvc.SentMessages, 1)
	msg := emailsvc.SentMessages[0]
	require.Len(t, msg.To, 1)
	assert.Equal(t, student.Email, msg.To[0].Address)
	assert.Contains(t, msg.TextContent, "blurry scan")
}

func Test_examApi_download(t *testing.T) {
	deps := setup(t)
	ctx := context.Background()

	student := testutil.CreateUser(t, deps.usrRepo, "Student", "student", "student@test.cd", "", []string{user.RoleStudent}, true)
	token := getToken(t, student)
	ex := testutil.CreateExam(t, deps.examSvc, student.ID, "Algebra Final", "Math", "Mr. Kalala", "Secondary")

	req, rec := newAuthRequest(http.MethodGet, "/v1/exams/"+ex.ID+"/download", token)
	deps.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req, rec = newAuthRequest(http.MethodGet, "/v1/exams/"+ex.ID+"/download", token)
	deps.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := deps.examSvc.GetByID(ctx, ex.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Downloads)

	req, rec = newAuthRequest(http.MethodGet, "/v1/exams/missing/download", token)
	deps.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_examApi_destroy(t *testing.T) {
	deps := setup(t)
	ctx := context.Background()

	uploader := testutil.CreateUser(t, deps.usrRepo, "Uploader", "uploader", "uploader@test.cd", "", []string{user.RoleStudent}, true)
	other := testutil.CreateUser(t, deps.usrRepo, "Other", "othername", "other@test.cd", "", []string{user.RoleStudent}, true)
	admin := testutil.CreateUser(t, deps.usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)

	ex1 := testutil.CreateExam(t, deps.examSvc, uploader.ID, "Algebra Final", "Math", "Mr. Kalala", "Secondary")
	ex2 := testutil.CreateExam(t, deps.examSvc, uploader.ID, "Geometry Midterm", "Math", "Mr. Kalala", "Secondary")

	// not the uploader
	req, rec := newAuthRequest(http.MethodDelete, "/v1/exams/"+ex1.ID, getToken(t, other))
	deps.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// uploader can delete their own
	req, rec = newAuthRequest(http.MethodDelete, "/v1/exams/"+ex1.ID, getToken(t, uploader))
	deps.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// admin can delete any
	req, rec = newAuthRequest(http.MethodDelete, "/v1/exams/"+ex2.ID, getToken(t, admin))
	deps.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	_, err := deps.examSvc.GetByID(ctx, ex1.ID)
	assert.Equal(t, exam.ErrNotFound, err)
	assert.False(t, deps.files.Has(ex1.FilePath))
	assert.False(t, deps.files.Has(ex2.FilePath))
}
