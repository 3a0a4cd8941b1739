package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecordingProvider() (*Provider, *tracetest.SpanRecorder) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	return NewProvider(tp, "test"), rec
}

func TestDisabledTracerStillProducesSpans(t *testing.T) {
	p, err := InitTracer(Config{ServiceName: "sitectl"})
	require.NoError(t, err)
	defer p.Shutdown(context.Background())

	_, span := p.StartSpan(context.Background(), "noop")
	span.End()
}

func TestEndSpanRecordsError(t *testing.T) {
	p, rec := newRecordingProvider()
	_, span := p.StartClientSpan(context.Background(), "POST data")
	EndSpan(span, errors.New("backend returned status 500"))

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "POST data", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}

func TestTraceContextPropagatesThroughMiddleware(t *testing.T) {
	p, rec := newRecordingProvider()

	var serverTraceID string
	handler := HTTPMiddleware(p)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		serverTraceID = TraceID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	ctx, clientSpan := p.StartClientSpan(context.Background(), "GET data")
	req := httptest.NewRequest(http.MethodGet, "/data?table_name=workers", nil)
	InjectHTTPHeaders(ctx, req)
	assert.NotEmpty(t, req.Header.Get("traceparent"))

	handler.ServeHTTP(httptest.NewRecorder(), req)
	clientSpan.End()

	assert.Equal(t, clientSpan.SpanContext().TraceID().String(), serverTraceID)
	assert.Len(t, rec.Ended(), 2)
}
