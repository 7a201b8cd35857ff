package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strconv"
	"sync"
	"testing"

	"tdh/internal/config"
	"tdh/internal/models"
	"tdh/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

// stubGenerator answers every generated question with text, or fails with err.
type stubGenerator struct {
	mu    sync.Mutex
	text  string
	err   error
	calls []string
}

func (g *stubGenerator) Generate(_ context.Context, _ string, question string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, question)
	return g.text, g.err
}

func (g *stubGenerator) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

type testEnv struct {
	t   *testing.T
	db  *gorm.DB
	mr  *miniredis.Miniredis
	cfg *config.Config
	srv *Server
	app *fiber.App
	gen *stubGenerator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, nil)
}

// newTestEnvWith lets a test adjust configuration before the server is built.
func newTestEnvWith(t *testing.T, configure func(*config.Config)) *testEnv {
	t.Helper()
	t.Setenv("APP_ENV", "test")

	db := testutil.NewTestDB(t)
	mr, rdb := testutil.NewRedis(t)
	cfg := &config.Config{
		JWTSecret:            testSecret,
		SessionTTLHours:      1,
		Port:                 "0",
		Env:                  "test",
		AllowedOrigins:       "http://localhost:5173",
		MediaBackend:         "local",
		MediaDir:             t.TempDir(),
		MediaMaxUploadSizeMB: 2,
		AITimeoutSeconds:     2,
		AIMaxConcurrent:      2,
	}
	if configure != nil {
		configure(cfg)
	}
	gen := &stubGenerator{text: "generated answer"}

	srv, err := NewServerWithDeps(cfg, db, rdb, WithGenerator(gen), WithBcryptCost(bcrypt.MinCost))
	require.NoError(t, err)

	return &testEnv{t: t, db: db, mr: mr, cfg: cfg, srv: srv, app: srv.NewApp(), gen: gen}
}

type testResponse struct {
	Status  int
	Body    map[string]any
	Raw     []byte
	Cookies []*http.Cookie
}

func (r testResponse) String(key string) string {
	v, _ := r.Body[key].(string)
	return v
}

func (e *testEnv) send(req *http.Request) testResponse {
	e.t.Helper()
	resp, err := e.app.Test(req, -1)
	require.NoError(e.t, err)
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(e.t, err)

	out := testResponse{Status: resp.StatusCode, Raw: raw, Cookies: resp.Cookies()}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(e.t, json.Unmarshal(raw, &out.Body))
	}
	return out
}

// do sends a JSON request; token may be empty.
func (e *testEnv) do(method, path, token string, body any) testResponse {
	e.t.Helper()
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return e.send(req)
}

type formFile struct {
	field       string
	filename    string
	contentType string
	content     []byte
}

// doMultipart sends a multipart form with optional files.
func (e *testEnv) doMultipart(path, token string, fields map[string]string, files ...formFile) testResponse {
	e.t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(e.t, w.WriteField(k, v))
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+f.field+`"; filename="`+f.filename+`"`)
		h.Set("Content-Type", f.contentType)
		part, err := w.CreatePart(h)
		require.NoError(e.t, err)
		_, err = part.Write(f.content)
		require.NoError(e.t, err)
	}
	require.NoError(e.t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return e.send(req)
}

// login signs in with the fixture password and returns the bearer token.
func (e *testEnv) login(username string) string {
	e.t.Helper()
	res := e.do(http.MethodPost, "/login", "", map[string]string{
		"username": username,
		"password": "password1",
	})
	require.Equal(e.t, http.StatusOK, res.Status, string(res.Raw))
	token := res.String("token")
	require.NotEmpty(e.t, token)
	return token
}

func (e *testEnv) member(username string) (*models.User, string) {
	e.t.Helper()
	u := testutil.CreateUser(e.t, e.db, username, models.StatusApproved)
	return u, e.login(username)
}

func (e *testEnv) adminUser(username string) (*models.User, string) {
	e.t.Helper()
	u := testutil.CreateAdmin(e.t, e.db, username)
	return u, e.login(username)
}

func (e *testEnv) countRows(model any, query string, args ...any) int64 {
	e.t.Helper()
	var n int64
	require.NoError(e.t, e.db.Model(model).Where(query, args...).Count(&n).Error)
	return n
}

var errGeneratorDown = errors.New("generator down")

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
