package otel

import (
	"context"
	"errors"
	"testing"

	"github.com/pkgindex/pkgindex/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"disabled ignores other fields", Config{Protocol: "invalid", SampleRatio: -1}, false},
		{"otlphttp", Config{Enabled: true, Protocol: ProtocolHTTP, SampleRatio: 0.5}, false},
		{"otlpgrpc", Config{Enabled: true, Protocol: ProtocolGRPC, SampleRatio: 1}, false},
		{"unknown protocol", Config{Enabled: true, Protocol: "zipkin", SampleRatio: 1}, true},
		{"negative ratio", Config{Enabled: true, Protocol: ProtocolHTTP, SampleRatio: -0.1}, true},
		{"ratio above one", Config{Enabled: true, Protocol: ProtocolHTTP, SampleRatio: 1.5}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	assert.NoError(t, DefaultConfig().Validate())
	assert.False(t, DefaultConfig().Enabled)
}

func TestContextRoundtrip(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, From(ctx))

	h := &Handle{}
	assert.Same(t, h, From(WithHandle(ctx, h)))
}

func recordingContext(t *testing.T) (context.Context, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return WithHandle(observability.WithOpID(context.Background()), InitWithProvider(tp)), recorder
}

func TestStartSpanSuccess(t *testing.T) {
	ctx, recorder := recordingContext(t)

	_, end := StartSpan(ctx, "pkgindex.reconcile", attribute.String("pkgindex.mode", "main"))
	end(nil)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	s := spans[0]
	assert.Equal(t, "pkgindex.reconcile", s.Name())
	assert.Equal(t, codes.Ok, s.Status().Code)

	attrs := map[string]string{}
	for _, kv := range s.Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsString()
	}
	assert.Equal(t, "main", attrs["pkgindex.mode"])
	assert.Equal(t, observability.OpID(ctx), attrs[AttrOpID])
}

func TestStartSpanError(t *testing.T) {
	ctx, recorder := recordingContext(t)

	_, end := StartSpan(ctx, "pkgindex.generate", attribute.String("pkgindex.filter", "author(foo)"))
	end(errors.New("no results"))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	s := spans[0]
	assert.Equal(t, codes.Error, s.Status().Code)
	assert.Equal(t, "no results", s.Status().Description)

	var recorded bool
	for _, e := range s.Events() {
		if e.Name == "exception" {
			recorded = true
		}
	}
	assert.True(t, recorded, "error should be recorded as an exception event")
}

func TestStartSpanNested(t *testing.T) {
	ctx, recorder := recordingContext(t)

	parentCtx, endParent := StartSpan(ctx, "pkgindex.generate")
	_, endChild := StartSpan(parentCtx, "pkgindex.sign")
	endChild(nil)
	endParent(nil)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	child, parent := spans[0], spans[1]
	assert.Equal(t, "pkgindex.sign", child.Name())
	assert.Equal(t, parent.SpanContext().SpanID(), child.Parent().SpanID())
}

func TestStartSpanDisabled(t *testing.T) {
	ctx := context.Background()
	got, end := StartSpan(ctx, "pkgindex.noop")
	assert.NotPanics(t, func() { end(errors.New("ignored")) })
	assert.Equal(t, ctx, got)
}

func TestEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	assert.Equal(t, "http://localhost:4318", endpoint(Config{Protocol: ProtocolHTTP}))
	assert.Equal(t, "localhost:4317", endpoint(Config{Protocol: ProtocolGRPC}))
	assert.Equal(t, "collector:4317", endpoint(Config{Protocol: ProtocolGRPC, Endpoint: "collector:4317"}))

	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "https://otel.example.com")
	assert.Equal(t, "https://otel.example.com", endpoint(Config{Protocol: ProtocolHTTP}))
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), sampler(1).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), sampler(0).Description())
	assert.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased{0.25}")
}
