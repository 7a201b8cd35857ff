package middleware

import (
	"errors"
	"fmt"
	"strconv"

	"tdh/internal/observability"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Locals written by the session boundary and read when a request span closes.
const (
	LocalsUserID        = "userID"
	LocalsAccountStatus = "accountStatus"
	LocalsIsAdmin       = "isAdmin"
)

// TracingMiddleware opens a server span per request. The span is renamed to the
// matched route once routing is done, so /posts/7/like and /posts/8/like
// aggregate under "POST /posts/:id/like".
func TracingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := otel.GetTextMapPropagator().Extract(c.UserContext(), propagation.HeaderCarrier(c.GetReqHeaders()))

		ctx, span := observability.Tracer.Start(ctx, c.Method()+" "+c.Path(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Method()),
				attribute.String("http.target", c.OriginalURL()),
				attribute.String("http.client_ip", c.IP()),
				attribute.String("http.user_agent", c.Get(fiber.HeaderUserAgent)),
			),
		)
		defer span.End()

		traceID := span.SpanContext().TraceID().String()
		c.Locals("traceID", traceID)
		c.Locals("spanID", span.SpanContext().SpanID().String())
		if requestID := c.Locals("requestid"); requestID != nil {
			span.SetAttributes(observability.AttrRequestID.String(fmt.Sprintf("%v", requestID)))
		}
		c.Set("X-Trace-ID", traceID)
		c.SetUserContext(ctx)

		err := c.Next()

		if route := c.Route(); route != nil && route.Path != "" && route.Path != "/" {
			span.SetName(c.Method() + " " + route.Path)
			span.SetAttributes(observability.AttrRoute.String(route.Path))
		}
		status := c.Response().StatusCode()
		if err != nil {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
			span.RecordError(err)
		}
		span.SetAttributes(attribute.Int("http.status_code", status))
		if status >= fiber.StatusInternalServerError {
			span.SetStatus(codes.Error, strconv.Itoa(status))
		}
		annotateAccount(c, span)

		return err
	}
}

// annotateAccount copies the signed-in account, if any, onto span.
func annotateAccount(c *fiber.Ctx, span trace.Span) {
	id, ok := c.Locals(LocalsUserID).(uint)
	if !ok || id == 0 {
		span.SetAttributes(observability.AttrAuthenticated.Bool(false))
		return
	}
	span.SetAttributes(
		observability.AttrAuthenticated.Bool(true),
		observability.AttrUserID.Int64(int64(id)),
	)
	if status, ok := c.Locals(LocalsAccountStatus).(string); ok && status != "" {
		span.SetAttributes(observability.AttrAccountStatus.String(status))
	}
	if admin, ok := c.Locals(LocalsIsAdmin).(bool); ok {
		span.SetAttributes(observability.AttrIsAdmin.Bool(admin))
	}
}
