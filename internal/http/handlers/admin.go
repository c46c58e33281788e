package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/preston-bernstein/oddsharvester/internal/app/harvest"
	"github.com/preston-bernstein/oddsharvester/internal/discovery"
	"github.com/preston-bernstein/oddsharvester/internal/domain"
	"github.com/preston-bernstein/oddsharvester/internal/http/requestutil"
	"github.com/preston-bernstein/oddsharvester/internal/logging"
	"github.com/preston-bernstein/oddsharvester/internal/timeutil"
)

// UpcomingHarvester runs an on-demand upcoming harvest.
type UpcomingHarvester interface {
	Upcoming(ctx context.Context, req harvest.UpcomingRequest) (harvest.Run, error)
}

// AdminHandler exposes admin-only endpoints.
type AdminHandler struct {
	harvester UpcomingHarvester
	sport     domain.Sport
	loc       *time.Location
	token     string
	logger    *slog.Logger
	now       func() time.Time
}

// NewAdminHandler constructs an AdminHandler. Requests default to sport and
// interpret dates in loc.
func NewAdminHandler(h UpcomingHarvester, sport domain.Sport, loc *time.Location, token string, logger *slog.Logger) *AdminHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &AdminHandler{
		harvester: h,
		sport:     sport,
		loc:       loc,
		token:     token,
		logger:    logger,
		now:       time.Now,
	}
}

// TriggerRun harvests upcoming matches for ?date= (default today), ?sport=,
// ?league= and a comma separated ?markets=. Guarded by a bearer token.
func (h *AdminHandler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost, h.logger) {
		return
	}
	if !h.authorize(r) {
		logging.Warn(h.logger, "admin unauthorized",
			slog.String("path", r.URL.Path),
			slog.String("client_ip", requestutil.ClientIP(r)),
		)
		writeError(w, r, http.StatusUnauthorized, "unauthorized", h.logger)
		return
	}
	if h.harvester == nil {
		writeError(w, r, http.StatusServiceUnavailable, "harvester not configured", h.logger)
		return
	}

	logger := loggerFromContext(r, h.logger)
	q := r.URL.Query()

	sport := h.sport
	if raw := strings.TrimSpace(q.Get("sport")); raw != "" {
		parsed, ok := domain.ParseSport(raw)
		if !ok {
			writeError(w, r, http.StatusBadRequest, "unknown sport", logger)
			return
		}
		sport = parsed
	}
	date := timeutil.StartOfDay(h.now().In(h.loc))
	if raw := strings.TrimSpace(q.Get("date")); raw != "" {
		parsed, err := discovery.ParseUpcomingDate(raw, h.now(), h.loc)
		if err != nil {
			logging.Warn(logger, "admin run invalid date", slog.String("date", raw))
			writeError(w, r, http.StatusBadRequest, err.Error(), logger)
			return
		}
		date = parsed
	}
	var markets []string
	for _, m := range strings.Split(q.Get("markets"), ",") {
		if m = strings.TrimSpace(m); m != "" {
			markets = append(markets, m)
		}
	}

	run, err := h.harvester.Upcoming(r.Context(), harvest.UpcomingRequest{
		Sport:   sport,
		Date:    date,
		League:  strings.TrimSpace(q.Get("league")),
		Markets: markets,
	})
	if err != nil {
		logging.Warn(logger, "admin run failed", slog.String(logging.FieldSport, string(sport)), slog.Any("error", err))
		writeError(w, r, http.StatusBadGateway, "harvest failed", logger)
		return
	}

	writeJSON(w, http.StatusOK, run, logger)
	logging.Info(logger, "admin run finished",
		slog.String(logging.FieldRunID, run.ID),
		slog.Int("succeeded", run.Report.Succeeded),
		slog.Int("failed", run.Report.Failed),
	)
}

func (h *AdminHandler) authorize(r *http.Request) bool {
	if h.token == "" {
		return false
	}
	return r.Header.Get("Authorization") == "Bearer "+h.token
}
