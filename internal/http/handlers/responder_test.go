package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/preston-bernstein/oddsharvester/internal/http/middleware"
	"github.com/preston-bernstein/oddsharvester/internal/logging"
	"github.com/preston-bernstein/oddsharvester/internal/testutil"
)

func TestWriteErrorCarriesMiddlewareRequestID(t *testing.T) {
	failing := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusBadRequest, "invalid date", nil)
	})
	req := httptest.NewRequest(http.MethodGet, "/runs/2024-13-01/abc", nil)
	req.Header.Set("X-Request-ID", "run-lookup-7")

	rr := testutil.ServeRequest(middleware.LoggingMiddleware(nil, nil, failing), req)
	testutil.AssertStatus(t, rr, http.StatusBadRequest)
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected json content type, got %q", ct)
	}
	var body map[string]string
	testutil.DecodeJSON(t, rr, &body)
	if body["error"] != "invalid date" || body["requestId"] != "run-lookup-7" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestWriteErrorWithoutRequestID(t *testing.T) {
	rr := httptest.NewRecorder()
	writeError(rr, httptest.NewRequest(http.MethodGet, "/runs", nil), http.StatusNotFound, "no runs", nil)
	if strings.Contains(rr.Body.String(), "requestId") {
		t.Fatalf("expected request id to be omitted, got %s", rr.Body.String())
	}
}

func TestWriteJSONLogsEncodeError(t *testing.T) {
	logger, buf := testutil.NewBufferLogger()
	rr := httptest.NewRecorder()
	writeJSON(rr, http.StatusOK, map[string]any{"run": make(chan int)}, logger)

	testutil.AssertStatus(t, rr, http.StatusInternalServerError)
	if !strings.Contains(rr.Body.String(), "internal error") {
		t.Fatalf("expected generic error body, got %s", rr.Body.String())
	}
	if !strings.Contains(buf.String(), "failed to encode response") {
		t.Fatalf("expected encode failure to be logged, got %q", buf.String())
	}
}

func TestRequireMethod(t *testing.T) {
	rr := httptest.NewRecorder()
	if !requireMethod(rr, httptest.NewRequest(http.MethodGet, "/runs", nil), http.MethodGet, nil) {
		t.Fatal("expected GET to pass")
	}
	if rr.Body.Len() != 0 {
		t.Fatalf("expected nothing written, got %s", rr.Body.String())
	}

	rr = httptest.NewRecorder()
	if requireMethod(rr, httptest.NewRequest(http.MethodDelete, "/runs", nil), http.MethodGet, nil) {
		t.Fatal("expected DELETE to be rejected")
	}
	testutil.AssertStatus(t, rr, http.StatusMethodNotAllowed)
	if rr.Header().Get("Allow") != http.MethodGet {
		t.Fatalf("expected Allow header, got %q", rr.Header().Get("Allow"))
	}
}

func TestLoggerFromContextPrefersRequestLogger(t *testing.T) {
	fallback, _ := testutil.NewBufferLogger()
	if got := loggerFromContext(nil, fallback); got != fallback {
		t.Fatal("expected fallback for nil request")
	}

	scoped, _ := testutil.NewBufferLogger()
	req := httptest.NewRequest(http.MethodGet, "/runs", nil)
	req = req.WithContext(logging.WithLogger(context.Background(), scoped))
	if got := loggerFromContext(req, fallback); got != scoped {
		t.Fatal("expected request-scoped logger")
	}
}
