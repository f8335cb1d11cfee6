package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/friperie/api/internal/platform/requestctx"
)

func TestParseCloudTrace(t *testing.T) {
	sc, ok := parseCloudTrace("105445aa7843bc8bf206b12000100000/1;o=1")
	if !ok {
		t.Fatalf("expected header to parse")
	}
	if sc.TraceID().String() != "105445aa7843bc8bf206b12000100000" {
		t.Fatalf("unexpected trace id %s", sc.TraceID())
	}
	if sc.SpanID().String() != "0000000000000001" || !sc.IsSampled() {
		t.Fatalf("unexpected span %s sampled=%v", sc.SpanID(), sc.IsSampled())
	}

	for _, bad := range []string{"", "nope", "zz/1", "105445aa7843bc8bf206b12000100000/abc"} {
		if _, ok := parseCloudTrace(bad); ok {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func TestFormatCloudTraceRoundTrip(t *testing.T) {
	header := formatCloudTrace(requestctx.TraceInfo{TraceID: "105445aa7843bc8bf206b12000100000", SpanID: "00000000000000ff", Sampled: true})
	if header != "105445aa7843bc8bf206b12000100000/255;o=1" {
		t.Fatalf("unexpected header %s", header)
	}
}

func TestEventLoggerPrefersRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base, baseLogs := observer.New(zap.InfoLevel)

	log := EventLogger(zap.New(base))
	ctx := requestctx.WithActor(requestctx.WithLogger(context.Background(), zap.New(core)), "user-1")
	log(ctx, "order.created", map[string]any{"order": "ord_1"})
	log(context.Background(), "task.failed", map[string]any{"task": "x"})

	if logs.Len() != 1 || baseLogs.Len() != 1 {
		t.Fatalf("expected one entry per logger, got %d/%d", logs.Len(), baseLogs.Len())
	}
	entry := logs.All()[0]
	if entry.Message != "order.created" || entry.ContextMap()["actor_id"] != "user-1" {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if baseLogs.All()[0].Level != zap.WarnLevel {
		t.Fatalf("expected failures at warn level")
	}
}

func TestRecoveryMiddlewareWritesJSON(t *testing.T) {
	handler := RecoveryMiddleware(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("expected json body")
	}
}

func TestTraceMiddlewareSetsContext(t *testing.T) {
	var seen requestctx.TraceInfo
	handler := TraceMiddleware("proj")(RequestLoggerMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = requestctx.Trace(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})))
	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	req.Header.Set(cloudTraceHeader, "105445aa7843bc8bf206b12000100000/1;o=1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if seen.ProjectID != "proj" {
		t.Fatalf("expected project id on trace info, got %+v", seen)
	}
}
