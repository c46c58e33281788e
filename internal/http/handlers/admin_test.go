package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/preston-bernstein/oddsharvester/internal/app/harvest"
	"github.com/preston-bernstein/oddsharvester/internal/domain"
	"github.com/preston-bernstein/oddsharvester/internal/testutil"
)

type stubHarvester struct {
	run  harvest.Run
	err  error
	got  harvest.UpcomingRequest
	hits int
}

func (s *stubHarvester) Upcoming(ctx context.Context, req harvest.UpcomingRequest) (harvest.Run, error) {
	s.hits++
	s.got = req
	return s.run, s.err
}

func newAdmin(h UpcomingHarvester) *AdminHandler {
	a := NewAdminHandler(h, domain.SportFootball, time.UTC, "secret", nil)
	a.now = testutil.NowAt(time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC))
	return a
}

func adminRequest(path string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, nil)
	req.Header.Set("Authorization", "Bearer secret")
	return req
}

func TestAdminTriggerRequiresAuth(t *testing.T) {
	stub := &stubHarvester{}
	h := newAdmin(stub)
	req := httptest.NewRequest(http.MethodPost, "/admin/runs", nil)

	rr := testutil.ServeRequest(http.HandlerFunc(h.TriggerRun), req)
	testutil.AssertStatus(t, rr, http.StatusUnauthorized)

	empty := NewAdminHandler(stub, domain.SportFootball, nil, "", nil)
	rr = testutil.ServeRequest(http.HandlerFunc(empty.TriggerRun), adminRequest("/admin/runs"))
	testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	if stub.hits != 0 {
		t.Fatalf("expected no harvest without auth, got %d", stub.hits)
	}
}

func TestAdminTriggerRunsHarvest(t *testing.T) {
	stub := &stubHarvester{run: harvest.Run{ID: "run-5"}}
	h := newAdmin(stub)

	rr := testutil.ServeRequest(http.HandlerFunc(h.TriggerRun), adminRequest("/admin/runs?sport=tennis&league=atp-dubai&markets=match_winner,+total_games&date=20240316"))
	testutil.AssertStatus(t, rr, http.StatusOK)

	if stub.got.Sport != domain.SportTennis || stub.got.League != "atp-dubai" {
		t.Fatalf("unexpected request %+v", stub.got)
	}
	if len(stub.got.Markets) != 2 || stub.got.Markets[1] != "total_games" {
		t.Fatalf("unexpected markets %v", stub.got.Markets)
	}
	if stub.got.Date.Day() != 16 {
		t.Fatalf("expected requested date, got %s", stub.got.Date)
	}
	var run harvest.Run
	testutil.DecodeJSON(t, rr, &run)
	if run.ID != "run-5" {
		t.Fatalf("unexpected run %+v", run)
	}
}

func TestAdminTriggerDefaultsToToday(t *testing.T) {
	stub := &stubHarvester{}
	h := newAdmin(stub)

	rr := testutil.ServeRequest(http.HandlerFunc(h.TriggerRun), adminRequest("/admin/runs"))
	testutil.AssertStatus(t, rr, http.StatusOK)
	if stub.got.Sport != domain.SportFootball || stub.got.Date.Day() != 15 || stub.got.Date.Hour() != 0 {
		t.Fatalf("expected football today, got %+v", stub.got)
	}
}

func TestAdminTriggerRejectsBadInput(t *testing.T) {
	h := newAdmin(&stubHarvester{})
	for _, path := range []string{"/admin/runs?date=20240301", "/admin/runs?date=tomorrow", "/admin/runs?sport=curling"} {
		rr := testutil.ServeRequest(http.HandlerFunc(h.TriggerRun), adminRequest(path))
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	}

	get := httptest.NewRequest(http.MethodGet, "/admin/runs", nil)
	testutil.AssertStatus(t, testutil.ServeRequest(http.HandlerFunc(h.TriggerRun), get), http.StatusMethodNotAllowed)
}

func TestAdminTriggerHarvestFailure(t *testing.T) {
	h := newAdmin(&stubHarvester{err: errors.New("listing down")})
	rr := testutil.ServeRequest(http.HandlerFunc(h.TriggerRun), adminRequest("/admin/runs"))
	testutil.AssertStatus(t, rr, http.StatusBadGateway)

	missing := newAdmin(nil)
	rr = testutil.ServeRequest(http.HandlerFunc(missing.TriggerRun), adminRequest("/admin/runs"))
	testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
}
