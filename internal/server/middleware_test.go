package server

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"tdh/internal/models"
	"tdh/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_AuthRequired(t *testing.T) {
	env := newTestEnv(t)
	user := testutil.CreateUser(t, env.db, "pending_member", models.StatusPending)

	app := fiber.New()
	app.Get("/protected", env.srv.AuthRequired(), func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"userID": c.Locals("userID"),
			"status": currentUser(c).Status,
		})
	})

	sign := func(claims jwt.MapClaims) string {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		str, err := token.SignedString([]byte(testSecret))
		require.NoError(t, err)
		return str
	}
	generateToken := func(userID uint, issuer, audience string, exp time.Duration) string {
		return sign(jwt.MapClaims{
			"sub": strconv.FormatUint(uint64(userID), 10),
			"iss": issuer,
			"aud": audience,
			"exp": time.Now().Add(exp).Unix(),
			"jti": "test-jti-" + issuer + audience,
		})
	}

	tests := []struct {
		name           string
		authHeader     string
		cookie         string
		expectedStatus int
	}{
		{
			name:           "Valid Token",
			authHeader:     "Bearer " + generateToken(user.ID, tokenIssuer, tokenAudience, time.Hour),
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Valid Token via Session Cookie",
			cookie:         generateToken(user.ID, tokenIssuer, tokenAudience, time.Hour),
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Expired Token",
			authHeader:     "Bearer " + generateToken(user.ID, tokenIssuer, tokenAudience, -time.Hour),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Invalid Issuer",
			authHeader:     "Bearer " + generateToken(user.ID, "wrong-issuer", tokenAudience, time.Hour),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Invalid Audience",
			authHeader:     "Bearer " + generateToken(user.ID, tokenIssuer, "wrong-audience", time.Hour),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Unknown Account",
			authHeader:     "Bearer " + generateToken(user.ID+100, tokenIssuer, tokenAudience, time.Hour),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Missing Header and Cookie",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Malformed Bearer Format",
			authHeader:     "BearerTokenOnly",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name: "Invalid Subject Type",
			authHeader: "Bearer " + sign(jwt.MapClaims{
				"sub": 123, "iss": tokenIssuer, "aud": tokenAudience,
				"exp": time.Now().Add(time.Hour).Unix(),
			}),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name: "Wrong Signing Secret",
			authHeader: "Bearer " + func() string {
				token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
					"sub": strconv.FormatUint(uint64(user.ID), 10),
					"iss": tokenIssuer, "aud": tokenAudience,
					"exp": time.Now().Add(time.Hour).Unix(),
				})
				str, _ := token.SignedString([]byte("another-secret"))
				return str
			}(),
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: SessionCookie, Value: tt.cookie})
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
		})
	}
}

func TestServer_AuthRequired_RevokedToken(t *testing.T) {
	env := newTestEnv(t)
	user := testutil.CreateUser(t, env.db, "revoked_member", models.StatusApproved)

	token, _, err := env.srv.generateToken(user)
	require.NoError(t, err)
	claims, err := env.srv.parseToken(token)
	require.NoError(t, err)
	require.NoError(t, env.mr.Set("blacklist:"+claims["jti"].(string), "1"))

	res := env.do(http.MethodGet, "/profile", token, nil)
	assert.Equal(t, http.StatusUnauthorized, res.Status)
	assert.Equal(t, models.CodeUnauthorized, res.String("code"))
	assert.Equal(t, "/login", res.String("redirect"))
}

func TestGenerateToken_Claims(t *testing.T) {
	env := newTestEnv(t)
	user := &models.User{ID: 7, Username: "claims_user"}

	token, expires, err := env.srv.generateToken(user)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, 5*time.Second)

	claims, err := env.srv.parseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "7", claims["sub"])
	assert.Equal(t, tokenIssuer, claims["iss"])
	assert.Equal(t, tokenAudience, claims["aud"])
	assert.NotEmpty(t, claims["jti"])

	other, _, err := env.srv.generateToken(user)
	require.NoError(t, err)
	otherClaims, err := env.srv.parseToken(other)
	require.NoError(t, err)
	assert.NotEqual(t, claims["jti"], otherClaims["jti"])
}
