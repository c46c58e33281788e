package http

import (
	"net/http"
	"testing"

	"github.com/preston-bernstein/oddsharvester/internal/domain"
	"github.com/preston-bernstein/oddsharvester/internal/http/handlers"
	"github.com/preston-bernstein/oddsharvester/internal/testutil"
)

func TestRouterRoutesKnownPaths(t *testing.T) {
	h := handlers.NewHandler(nil, nil, nil, nil)
	admin := handlers.NewAdminHandler(nil, domain.SportFootball, nil, "secret", nil)
	router := NewRouter(h, admin)

	cases := map[string]int{
		"/health":                http.StatusOK,
		"/ready":                 http.StatusOK,
		"/runs/latest":           http.StatusNotFound,
		"/runs":                  http.StatusNotFound,
		"/runs/2024-03-15/run-1": http.StatusNotFound,
	}
	for path, expected := range cases {
		rr := testutil.Serve(router, http.MethodGet, path, nil)
		if rr.Code != expected {
			t.Fatalf("route %s expected status %d, got %d", path, expected, rr.Code)
		}
	}

	rr := testutil.Serve(router, http.MethodPost, "/admin/runs", nil)
	testutil.AssertStatus(t, rr, http.StatusUnauthorized)
}

func TestRouterWithoutAdmin(t *testing.T) {
	router := NewRouter(handlers.NewHandler(nil, nil, nil, nil), nil)

	rr := testutil.Serve(router, http.MethodPost, "/admin/runs", nil)
	testutil.AssertStatus(t, rr, http.StatusNotFound)

	rr = testutil.Serve(router, http.MethodGet, "/does-not-exist", nil)
	testutil.AssertStatus(t, rr, http.StatusNotFound)
}
