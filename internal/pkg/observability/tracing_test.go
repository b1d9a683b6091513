package observability

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestSetupTracing_WithoutEndpoint(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), TracingConfig{ServiceName: "store-api"})
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	// プロパゲーターは設定される
	fields := otel.GetTextMapPropagator().Fields()
	assert.Contains(t, fields, "traceparent")

	assert.NoError(t, shutdown(context.Background()))
}

func TestPropagation_TraceContext(t *testing.T) {
	_, err := SetupTracing(context.Background(), TracingConfig{ServiceName: "booking-api"})
	require.NoError(t, err)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	header := http.Header{}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(header))
	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", header.Get("traceparent"))

	extracted := otel.GetTextMapPropagator().Extract(context.Background(), propagation.HeaderCarrier(header))
	assert.Equal(t, traceID, trace.SpanContextFromContext(extracted).TraceID())
}
