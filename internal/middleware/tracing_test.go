package middleware

import (
	"net/http/httptest"
	"testing"

	"tdh/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := observability.Tracer
	observability.Tracer = tp.Tracer("tdh-test")
	t.Cleanup(func() { observability.Tracer = prev })
	return rec
}

func spanAttrs(s sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range s.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestTracingMiddleware_NamesSpanByRouteAndAccount(t *testing.T) {
	rec := recordSpans(t)

	app := fiber.New()
	app.Use(TracingMiddleware())
	signIn := func(c *fiber.Ctx) error {
		c.Locals(LocalsUserID, uint(42))
		c.Locals(LocalsAccountStatus, "pending")
		c.Locals(LocalsIsAdmin, false)
		return c.Next()
	}
	app.Post("/posts/:id/like", signIn, func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusForbidden)
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/posts/7/like", nil), -1)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get("X-Trace-ID"))

	ended := rec.Ended()
	require.Len(t, ended, 1)
	span := ended[0]
	assert.Equal(t, "POST /posts/:id/like", span.Name())

	attrs := spanAttrs(span)
	assert.Equal(t, "/posts/:id/like", attrs[observability.AttrRoute].AsString())
	assert.Equal(t, int64(42), attrs[observability.AttrUserID].AsInt64())
	assert.Equal(t, "pending", attrs[observability.AttrAccountStatus].AsString())
	assert.True(t, attrs[observability.AttrAuthenticated].AsBool())
	assert.Equal(t, int64(fiber.StatusForbidden), attrs["http.status_code"].AsInt64())
	assert.NotEqual(t, codes.Error, span.Status().Code)
}

func TestTracingMiddleware_AnonymousServerError(t *testing.T) {
	rec := recordSpans(t)

	app := fiber.New()
	app.Use(TracingMiddleware())
	app.Get("/feed", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusServiceUnavailable, "database down")
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/feed", nil), -1)
	require.NoError(t, err)
	_ = resp.Body.Close()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	attrs := spanAttrs(ended[0])
	assert.False(t, attrs[observability.AttrAuthenticated].AsBool())
	_, hasUser := attrs[observability.AttrUserID]
	assert.False(t, hasUser)
	assert.Equal(t, int64(fiber.StatusServiceUnavailable), attrs["http.status_code"].AsInt64())
	assert.Equal(t, codes.Error, ended[0].Status().Code)
}
