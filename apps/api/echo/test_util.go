package echoapi

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/mitihani/core"
	"github.com/trezcool/mitihani/core/exam"
	"github.com/trezcool/mitihani/core/rating"
	"github.com/trezcool/mitihani/core/user"
	emailsvc "github.com/trezcool/mitihani/services/email"
	logsvc "github.com/trezcool/mitihani/services/logger"
	dummydb "github.com/trezcool/mitihani/storage/database/dummy"
	objstore "github.com/trezcool/mitihani/storage/object"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testDeps struct {
	app Server

	usrRepo   user.Repository
	usrSvc    user.Service
	examSvc   exam.Service
	ratingSvc rating.Service
	files     *objstore.DummyStore
}

func setup(t *testing.T) *testDeps {
	t.Helper()

	// the error payload shape depends on debug mode
	core.Conf.Debug = false
	core.Conf.TestMode = true
	emailsvc.ClearSentMessages()

	// set up DB & repos
	db := dummydb.Open()
	usrRepo := dummydb.NewUserRepository(db)
	files := objstore.NewDummyStore()
	logger := logsvc.NewTestLogger()

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock()
	usrSvc := user.NewServiceMock(usrRepo, mailSvc)
	examSvc := exam.NewService(dummydb.NewExamRepository(db), files, logger)
	ratingSvc := rating.NewService(dummydb.NewRatingRepository(db))

	// set up server
	app := NewServer(
		"",  /* addr */
		nil, /* shutdown */
		&Deps{
			DisableReqLogs: true,
			UserSvc:        usrSvc,
			ExamSvc:        examSvc,
			RatingSvc:      ratingSvc,
			MailSvc:        mailSvc,
			Logger:         logger,
		},
	)

	return &testDeps{
		app:       app,
		usrRepo:   usrRepo,
		usrSvc:    usrSvc,
		examSvc:   examSvc,
		ratingSvc: ratingSvc,
		files:     files,
	}
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// newUploadRequest builds a multipart/form-data request carrying the given
// form fields plus a small PDF under the "file" key.
func newUploadRequest(t *testing.T, path, token string, fields map[string]string, filename string) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("newUploadRequest(): %v", err)
		}
	}
	if filename != "" {
		fw, err := w.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("newUploadRequest(): %v", err)
		}
		if _, err = io.WriteString(fw, "%PDF-1.4"); err != nil {
			t.Fatalf("newUploadRequest(): %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("newUploadRequest(): %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func getToken(t *testing.T, usr user.User) string {
	claims := GetUserClaims(usr)
	token, err := GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList(): %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
