package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(TracingConfig{ServiceName: "tdh-test", Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTracingStdout(t *testing.T) {
	shutdown, err := InitTracing(TracingConfig{
		ServiceName:  "tdh-test",
		Enabled:      true,
		Exporter:     "stdout",
		SamplerRatio: 1,
	})
	require.NoError(t, err)
	defer func() { _ = shutdown(context.Background()) }()

	span, _ := NewSpan(context.Background(), "assistant.generate")
	assert.NotEmpty(t, span.TraceID())
	span.End()
}

func TestInitTracingRejectsBadExporter(t *testing.T) {
	_, err := InitTracing(TracingConfig{ServiceName: "tdh-test", Enabled: true, Exporter: "zipkin"})
	assert.ErrorContains(t, err, "zipkin")

	_, err = InitTracing(TracingConfig{ServiceName: "tdh-test", Enabled: true, Exporter: "otlp"})
	assert.ErrorContains(t, err, "OTLP_ENDPOINT")
}

func TestSpanRecordsAssistantFailure(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := Tracer
	Tracer = tp.Tracer("tdh-test")
	t.Cleanup(func() { Tracer = prev })

	span, _ := NewSpan(context.Background(), "assistant.generate")
	span.AddAttributes(AttrAnswerSource.String("fallback"))
	span.SetError(errors.New("upstream timeout"))
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "assistant.generate", ended[0].Name())
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Contains(t, ended[0].Attributes(), AttrAnswerSource.String("fallback"))
}

func TestNewSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), newSampler(1).Description())
	assert.Contains(t, newSampler(0.25).Description(), "TraceIDRatioBased")
	assert.Contains(t, newSampler(0).Description(), "AlwaysOffSampler")
}
