package server

import (
	"net/http"
	"strings"
	"testing"

	"tdh/internal/models"
	"tdh/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_CreatesPendingAccountWithoutSession(t *testing.T) {
	env := newTestEnv(t)

	res := env.do(http.MethodPost, "/register", "", map[string]string{
		"username":         "new_member",
		"password":         "secret123",
		"confirm_password": "secret123",
	})
	require.Equal(t, http.StatusCreated, res.Status, string(res.Raw))
	assert.Equal(t, "/login", res.String("redirect"))
	user := res.Body["user"].(map[string]any)
	assert.Equal(t, "pending", user["status"])
	assert.Equal(t, false, user["is_admin"])
	assert.NotContains(t, string(res.Raw), "secret123")
	for _, c := range res.Cookies {
		assert.NotEqual(t, SessionCookie, c.Name)
	}

	var stored models.User
	require.NoError(t, env.db.Where("username = ?", "new_member").First(&stored).Error)
	assert.Equal(t, models.StatusPending, stored.Status)
	assert.NotEqual(t, "secret123", stored.Password)
}

func TestRegister_Rejections(t *testing.T) {
	env := newTestEnv(t)
	testutil.CreateUser(t, env.db, "taken_name", models.StatusApproved)

	tests := []struct {
		name       string
		body       map[string]string
		wantStatus int
		wantCode   string
	}{
		{"blank username", map[string]string{"username": " ", "password": "secret123", "confirm_password": "secret123"}, http.StatusBadRequest, models.CodeValidation},
		{"blank password", map[string]string{"username": "someone", "password": "", "confirm_password": ""}, http.StatusBadRequest, models.CodeValidation},
		{"mismatched confirmation", map[string]string{"username": "someone", "password": "secret123", "confirm_password": "secret124"}, http.StatusBadRequest, models.CodeValidation},
		{"weak password", map[string]string{"username": "someone", "password": "short", "confirm_password": "short"}, http.StatusBadRequest, models.CodeValidation},
		{"two character password", map[string]string{"username": "alice", "password": "p1", "confirm_password": "p1"}, http.StatusBadRequest, models.CodeValidation},
		{"bad email", map[string]string{"username": "someone", "password": "secret123", "confirm_password": "secret123", "email": "nope"}, http.StatusBadRequest, models.CodeValidation},
		{"duplicate username", map[string]string{"username": "taken_name", "password": "secret123", "confirm_password": "secret123"}, http.StatusConflict, models.CodeConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := env.do(http.MethodPost, "/register", "", tt.body)
			assert.Equal(t, tt.wantStatus, res.Status, string(res.Raw))
			assert.Equal(t, tt.wantCode, res.String("code"))
		})
	}

	var n int64
	require.NoError(t, env.db.Model(&models.User{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestLogin_RoutesByStatus(t *testing.T) {
	env := newTestEnv(t)
	testutil.CreateUser(t, env.db, "waiting", models.StatusPending)
	testutil.CreateUser(t, env.db, "approved", models.StatusApproved)
	testutil.CreateAdmin(t, env.db, "boss")

	cases := map[string]string{
		"waiting":  "/pending",
		"approved": "/feed",
		"boss":     "/feed",
	}
	for username, redirect := range cases {
		res := env.do(http.MethodPost, "/login", "", map[string]string{
			"username": username,
			"password": "password1",
		})
		require.Equal(t, http.StatusOK, res.Status, string(res.Raw))
		assert.Equal(t, redirect, res.String("redirect"), username)
		assert.NotEmpty(t, res.String("token"))

		var cookie *http.Cookie
		for _, c := range res.Cookies {
			if c.Name == SessionCookie {
				cookie = c
			}
		}
		require.NotNil(t, cookie, username)
		assert.True(t, cookie.HttpOnly)
		assert.Equal(t, res.String("token"), cookie.Value)
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	env := newTestEnv(t)
	testutil.CreateUser(t, env.db, "member", models.StatusApproved)

	wrongPassword := env.do(http.MethodPost, "/login", "", map[string]string{"username": "member", "password": "nope12345"})
	unknownUser := env.do(http.MethodPost, "/login", "", map[string]string{"username": "ghost", "password": "password1"})

	for _, res := range []testResponse{wrongPassword, unknownUser} {
		assert.Equal(t, http.StatusUnauthorized, res.Status)
		assert.Equal(t, models.CodeInvalidCredentials, res.String("code"))
	}
	assert.Equal(t, wrongPassword.String("error"), unknownUser.String("error"))
}

func TestSignedInUserCannotRegisterOrLogin(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.member("already_in")

	reg := env.do(http.MethodPost, "/register", token, map[string]string{
		"username": "second", "password": "secret123", "confirm_password": "secret123",
	})
	assert.Equal(t, http.StatusConflict, reg.Status)
	assert.Equal(t, models.CodeAlreadySignedIn, reg.String("code"))

	login := env.do(http.MethodPost, "/login", token, map[string]string{
		"username": "already_in", "password": "password1",
	})
	assert.Equal(t, http.StatusConflict, login.Status)
}

func TestLogout_RevokesSession(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.member("leaving")

	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/feed", token, nil).Status)

	res := env.do(http.MethodPost, "/logout", token, nil)
	require.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "/login", res.String("redirect"))

	revoked := 0
	for _, key := range env.mr.Keys() {
		if strings.HasPrefix(key, "blacklist:") {
			revoked++
		}
	}
	assert.Equal(t, 1, revoked)

	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/feed", token, nil).Status)
	// A revoked token no longer counts as a session for register/login.
	assert.Equal(t, http.StatusOK, env.do(http.MethodPost, "/login", token, map[string]string{
		"username": "leaving", "password": "password1",
	}).Status)
}

func TestPendingAccountIsGatedUntilApproved(t *testing.T) {
	env := newTestEnv(t)
	_, adminToken := env.adminUser("gatekeeper")

	reg := env.do(http.MethodPost, "/register", "", map[string]string{
		"username": "hopeful", "password": "secret123", "confirm_password": "secret123",
	})
	require.Equal(t, http.StatusCreated, reg.Status)
	accountID := uint(reg.Body["user"].(map[string]any)["id"].(float64))

	login := env.do(http.MethodPost, "/login", "", map[string]string{"username": "hopeful", "password": "secret123"})
	require.Equal(t, http.StatusOK, login.Status)
	token := login.String("token")

	feed := env.do(http.MethodGet, "/feed", token, nil)
	assert.Equal(t, http.StatusForbidden, feed.Status)
	assert.Equal(t, models.CodePendingApproval, feed.String("code"))
	assert.Equal(t, "/pending", feed.String("redirect"))

	// Own profile stays reachable while pending.
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/profile", token, nil).Status)

	approve := env.do(http.MethodPost, "/admin/accounts/"+itoa(accountID)+"/approve", adminToken, nil)
	require.Equal(t, http.StatusOK, approve.Status, string(approve.Raw))

	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/feed", token, nil).Status)
}
