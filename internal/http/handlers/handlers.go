package handlers

import (
	"errors"
	"io/fs"
	"log/slog"
	nethttp "net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/preston-bernstein/oddsharvester/internal/app/harvest"
	"github.com/preston-bernstein/oddsharvester/internal/domain"
	"github.com/preston-bernstein/oddsharvester/internal/logging"
	"github.com/preston-bernstein/oddsharvester/internal/scheduler"
	"github.com/preston-bernstein/oddsharvester/internal/storage"
	"github.com/preston-bernstein/oddsharvester/internal/timeutil"
)

const defaultRunsLimit = 20

// RunSource exposes the most recent harvest.
type RunSource interface {
	Latest() (harvest.Run, bool)
}

// RunHistory lists persisted runs and reads them back.
type RunHistory interface {
	Manifest() (storage.Manifest, error)
	LoadRun(date, runID string) ([]domain.MatchResult, error)
}

// Handler wires HTTP routes to the harvester.
type Handler struct {
	runs     RunSource
	history  RunHistory
	logger   *slog.Logger
	statusFn func() scheduler.Status
}

// NewHandler constructs a Handler. history and statusFn may be nil.
func NewHandler(runs RunSource, history RunHistory, logger *slog.Logger, statusFn func() scheduler.Status) *Handler {
	return &Handler{
		runs:     runs,
		history:  history,
		logger:   logger,
		statusFn: statusFn,
	}
}

// ServeHTTP routes requests without a mux.
func (h *Handler) ServeHTTP(w nethttp.ResponseWriter, r *nethttp.Request) {
	switch r.URL.Path {
	case "/health":
		h.Health(w, r)
	case "/ready":
		h.Ready(w, r)
	case "/runs/latest":
		h.LatestRun(w, r)
	case "/runs":
		h.Runs(w, r)
	default:
		if strings.HasPrefix(r.URL.Path, "/runs/") {
			h.RunByID(w, r)
			return
		}
		writeError(w, r, nethttp.StatusNotFound, "not found", h.logger)
	}
}

// Health reports the service health.
func (h *Handler) Health(w nethttp.ResponseWriter, r *nethttp.Request) {
	if !requireMethod(w, r, nethttp.MethodGet, h.logger) {
		return
	}
	if err := r.Context().Err(); err != nil {
		writeError(w, r, nethttp.StatusServiceUnavailable, "shutting down", h.logger)
		return
	}
	writeJSON(w, nethttp.StatusOK, map[string]string{"status": "ok"}, h.logger)
}

// Ready reports whether scheduled harvests are succeeding.
func (h *Handler) Ready(w nethttp.ResponseWriter, r *nethttp.Request) {
	if !requireMethod(w, r, nethttp.MethodGet, h.logger) {
		return
	}
	if h.statusFn == nil {
		writeJSON(w, nethttp.StatusOK, map[string]string{"status": "ready"}, h.logger)
		return
	}
	status := h.statusFn()
	if status.IsReady() {
		writeJSON(w, nethttp.StatusOK, map[string]string{"status": "ready", "lastRunId": status.LastRunID}, h.logger)
		return
	}
	msg := status.LastError
	if msg == "" {
		msg = "not ready"
	}
	writeError(w, r, nethttp.StatusServiceUnavailable, msg, h.logger)
}

// LatestRun returns the report of the most recent harvest.
func (h *Handler) LatestRun(w nethttp.ResponseWriter, r *nethttp.Request) {
	if !requireMethod(w, r, nethttp.MethodGet, h.logger) {
		return
	}
	if h.runs == nil {
		writeError(w, r, nethttp.StatusNotFound, "no runs yet", h.logger)
		return
	}
	run, ok := h.runs.Latest()
	if !ok {
		writeError(w, r, nethttp.StatusNotFound, "no runs yet", h.logger)
		return
	}
	writeJSON(w, nethttp.StatusOK, run, h.logger)
}

// Runs lists persisted runs, newest first, from the local storage manifest.
func (h *Handler) Runs(w nethttp.ResponseWriter, r *nethttp.Request) {
	if !requireMethod(w, r, nethttp.MethodGet, h.logger) {
		return
	}
	if h.history == nil {
		writeError(w, r, nethttp.StatusNotFound, "run history not configured", h.logger)
		return
	}
	limit := defaultRunsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, r, nethttp.StatusBadRequest, "invalid limit", h.logger)
			return
		}
		limit = n
	}
	manifest, err := h.history.Manifest()
	if err != nil {
		logging.Warn(loggerFromContext(r, h.logger), "manifest read failed", logging.FieldError, err)
		writeError(w, r, nethttp.StatusInternalServerError, "run history unavailable", h.logger)
		return
	}
	runs := manifest.Runs
	out := make([]storage.RunMeta, 0, min(limit, len(runs)))
	for i := len(runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, runs[i])
	}
	writeJSON(w, nethttp.StatusOK, map[string]any{
		"generatedAt": manifest.GeneratedAt,
		"runs":        out,
	}, h.logger)
}

// RunByID returns the stored match results of one run at /runs/{date}/{runId}.
func (h *Handler) RunByID(w nethttp.ResponseWriter, r *nethttp.Request) {
	if !requireMethod(w, r, nethttp.MethodGet, h.logger) {
		return
	}
	if h.history == nil {
		writeError(w, r, nethttp.StatusNotFound, "run history not configured", h.logger)
		return
	}
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/runs/"), "/"), "/")
	if len(parts) != 2 {
		writeError(w, r, nethttp.StatusBadRequest, "expected /runs/{date}/{runId}", h.logger)
		return
	}
	date, errDate := url.PathUnescape(parts[0])
	runID, errID := url.PathUnescape(parts[1])
	if errDate != nil || errID != nil || !validSegment(date) || !validSegment(runID) {
		writeError(w, r, nethttp.StatusBadRequest, "invalid run path", h.logger)
		return
	}
	if _, err := timeutil.ParseDate(date); err != nil {
		writeError(w, r, nethttp.StatusBadRequest, "invalid date format (expected YYYY-MM-DD)", h.logger)
		return
	}

	results, err := h.history.LoadRun(date, runID)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		writeError(w, r, nethttp.StatusNotFound, "run not found", h.logger)
		return
	case err != nil:
		logging.Warn(loggerFromContext(r, h.logger), "run load failed", "date", date, logging.FieldRunID, runID, logging.FieldError, err)
		writeError(w, r, nethttp.StatusInternalServerError, "run unavailable", h.logger)
		return
	}
	writeJSON(w, nethttp.StatusOK, map[string]any{
		"runId":   runID,
		"date":    date,
		"matches": results,
	}, h.logger)
}

func validSegment(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, " \t/\\")
}
