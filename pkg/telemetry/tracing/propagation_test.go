package tracing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const testTraceParent = "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"

func useTraceContext(t *testing.T) {
	t.Helper()
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })
}

func TestExtractInject(t *testing.T) {
	useTraceContext(t)

	in := http.Header{}
	in.Set("traceparent", testTraceParent)

	ctx := Extract(context.Background(), in)
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		t.Fatal("expected valid span context after Extract")
	}
	if got := sc.TraceID().String(); got != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("trace id = %s", got)
	}

	out := http.Header{}
	Inject(ctx, out)
	if got := out.Get("traceparent"); got != testTraceParent {
		t.Errorf("injected traceparent = %q, want %q", got, testTraceParent)
	}
}

func TestExtract_NoHeaders(t *testing.T) {
	useTraceContext(t)

	ctx := Extract(context.Background(), http.Header{})
	if trace.SpanContextFromContext(ctx).IsValid() {
		t.Error("expected invalid span context without headers")
	}
}

func TestHTTPMiddleware(t *testing.T) {
	useTraceContext(t)

	var gotRemote bool
	handler := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// With the global noop provider the span inherits the remote context.
		gotRemote = trace.SpanContextFromContext(r.Context()).TraceID().String() == "4bf92f3577b34da6a3ce929d0e0e4736"
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/decisions", nil)
	req.Header.Set("traceparent", testTraceParent)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if !gotRemote {
		t.Error("handler context did not carry the incoming trace")
	}
	if got := rec.Header().Get("X-Trace-ID"); got != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("X-Trace-ID = %q", got)
	}
}
