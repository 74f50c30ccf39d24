package echoapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mitihani/core/user"
	emailsvc "github.com/trezcool/mitihani/services/email"
	testutil "github.com/trezcool/mitihani/tests"
)

func Test_userApi_login(t *testing.T) {
	deps := setup(t)

	testutil.CreateUser(t, deps.usrRepo, "Active User", "activeuser", "active@test.cd", "LePassword", []string{user.RoleStudent}, true)
	testutil.CreateUser(t, deps.usrRepo, "Inactive User", "inactiveuser", "inactive@test.cd", "LePassword", []string{user.RoleStudent}, false)

	tests := []httpTest{
		{name: "Empty payload", body: []byte(`{}`), wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"username": "this field is required", "password": "this field is required"})},
		{name: "Unknown user", body: []byte(`{"username":"nobody","password":"LePassword"}`), wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"})},
		{name: "Wrong password", body: []byte(`{"username":"activeuser","password":"WrongPassword"}`), wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"})},
		{name: "Deactivated account", body: []byte(`{"username":"inactiveuser","password":"LePassword"}`), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"})},
		{name: "Login by username", body: []byte(`{"username":"activeuser","password":"LePassword"}`), wantCode: http.StatusOK},
		{name: "Login by email", body: []byte(`{"username":"active@test.cd","password":"LePassword"}`), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/login", tt.body)
			deps.app.ServeHTTP(rec, req)
			if tt.wantCode != http.StatusOK {
				if tt.wantData != nil {
					checkCodeAndData(t, tt, rec)
				} else {
					require.Equal(t, tt.wantCode, rec.Code)
				}
				return
			}
			require.Equal(t, tt.wantCode, rec.Code)

			var resp LoginResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Token)

			// the token must be accepted by an authed endpoint
			areq, arec := newAuthRequest(http.MethodPost, "/v1/users/token-refresh", resp.Token)
			deps.app.ServeHTTP(arec, areq)
			assert.Equal(t, http.StatusOK, arec.Code)
		})
	}
}

func Test_userApi_passwordReset(t *testing.T) {
	deps := setup(t)
	ctx := context.Background()

	usr := testutil.CreateUser(t, deps.usrRepo, "Forgetful", "forgetful", "forgetful@test.cd", "OldPassword", []string{user.RoleStudent}, true)

	// the response never reveals whether the account exists
	for _, email := range []string{"forgetful@test.cd", "ghost@test.cd"} {
		req, rec := newRequest(http.MethodPost, "/v1/users/password-reset", []byte(`{"email":"`+email+`"}`))
		deps.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	require.Len(t, emailsvc.SentMessages, 1)
	assert.Equal(t, usr.Email, emailsvc.SentMessages[0].To[0].Address)

	token, err := user.MakeToken(usr)
	require.NoError(t, err)
	body, err := json.Marshal(user.ResetUserPassword{
		Token:           token,
		UID:             user.EncodeUID(usr),
		Password:        "NewPassword",
		PasswordConfirm: "NewPassword",
	})
	require.NoError(t, err)

	req, rec := newRequest(http.MethodPost, "/v1/users/password-reset-confirm", body)
	deps.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// mismatched confirmation is rejected
	req, rec = newRequest(http.MethodPost, "/v1/users/password-reset-confirm", []byte(`{"token":"`+token+`","uid":"`+user.EncodeUID(usr)+`","password":"abc","password_confirm":"xyz"}`))
	deps.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	refreshed, err := deps.usrSvc.GetByID(ctx, usr.ID)
	require.NoError(t, err)
	assert.NoError(t, refreshed.CheckPassword("NewPassword"))
	assert.Error(t, refreshed.CheckPassword("OldPassword"))
}

func Test_userApi_create_query(t *testing.T) {
	deps := setup(t)

	admin := testutil.CreateUser(t, deps.usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	student := testutil.CreateUser(t, deps.usrRepo, "Student", "student", "student@test.cd", "", []string{user.RoleStudent}, true)
	adminToken := getToken(t, admin)
	studentToken := getToken(t, student)

	tests := []httpTest{
		{
			name: "Register (admin required)", method: http.MethodPost, path: "/v1/users/register", token: studentToken,
			body:     []byte(`{"name":"New Student","username":"newstudent","email":"new@test.cd","password":"LePassw0rd!","password_confirm":"LePassw0rd!"}`),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Register", method: http.MethodPost, path: "/v1/users/register", token: adminToken,
			body:     []byte(`{"name":"New Student","username":"newstudent","email":"new@test.cd","password":"LePassw0rd!","password_confirm":"LePassw0rd!","roles":["student:"]}`),
			wantCode: http.StatusCreated,
		},
		{
			name: "Register (duplicate username)", method: http.MethodPost, path: "/v1/users/register", token: adminToken,
			body:     []byte(`{"name":"Copy Cat","username":"newstudent","email":"copycat@test.cd","password":"LePassw0rd!","password_confirm":"LePassw0rd!"}`),
			wantCode: http.StatusBadRequest,
		},
		{name: "Query (admin required)", method: http.MethodGet, path: "/v1/users", token: studentToken, wantCode: http.StatusForbidden},
		{name: "Query", method: http.MethodGet, path: "/v1/users", token: adminToken, wantCode: http.StatusOK},
		{name: "Query roles", method: http.MethodGet, path: "/v1/users/roles", token: adminToken, wantCode: http.StatusOK, wantData: marchallObj(t, user.Roles)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			deps.app.ServeHTTP(rec, req)
			if tt.wantData != nil {
				checkCodeAndData(t, tt, rec)
			} else if rec.Code != tt.wantCode {
				t.Errorf("failed! code = %v; wantCode %v; data = %s", rec.Code, tt.wantCode, rec.Body.Bytes())
			}
		})
	}

	// a registered user gets a welcome email carrying their referral code
	created, err := deps.usrSvc.GetByUsername(context.Background(), "newstudent")
	require.NoError(t, err)
	assert.NotEmpty(t, created.ReferralCode)
	require.NotEmpty(t, emailsvc.SentMessages)
	assert.Contains(t, emailsvc.SentMessages[0].TextContent, created.ReferralCode)
}

func Test_userApi_retrieve_destroy(t *testing.T) {
	deps := setup(t)

	admin := testutil.CreateUser(t, deps.usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	alice := testutil.CreateUser(t, deps.usrRepo, "Alice", "alice", "alice@test.cd", "", []string{user.RoleStudent}, true)
	bob := testutil.CreateUser(t, deps.usrRepo, "Bob", "bob", "bob@test.cd", "", []string{user.RoleStudent}, true)

	// self and admin may retrieve; other users get a 404
	req, rec := newAuthRequest(http.MethodGet, "/v1/users/"+alice.ID, getToken(t, alice))
	deps.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), marchallObj(t, alice))
	require.NoError(t, err)
	assert.True(t, ok)

	req, rec = newAuthRequest(http.MethodGet, "/v1/users/"+alice.ID, getToken(t, bob))
	deps.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req, rec = newAuthRequest(http.MethodGet, "/v1/users/"+alice.ID, getToken(t, admin))
	deps.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// admins cannot delete themselves
	req, rec = newAuthRequest(http.MethodDelete, "/v1/users/"+admin.ID, getToken(t, admin))
	deps.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req, rec = newAuthRequest(http.MethodDelete, "/v1/users/"+bob.ID, getToken(t, admin))
	deps.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	_, err = deps.usrSvc.GetByID(context.Background(), bob.ID)
	assert.Equal(t, user.ErrNotFound, err)
}
