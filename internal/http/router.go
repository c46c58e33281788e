package http

import (
	nethttp "net/http"

	"github.com/preston-bernstein/oddsharvester/internal/http/handlers"
)

// NewRouter registers HTTP routes on a ServeMux. admin may be nil.
func NewRouter(handler *handlers.Handler, admin *handlers.AdminHandler) nethttp.Handler {
	mux := nethttp.NewServeMux()
	mux.HandleFunc("/health", handler.Health)
	mux.HandleFunc("/ready", handler.Ready)
	mux.HandleFunc("/runs", handler.Runs)
	mux.HandleFunc("/runs/latest", handler.LatestRun)
	mux.HandleFunc("/runs/", handler.RunByID)
	if admin != nil {
		mux.HandleFunc("/admin/runs", admin.TriggerRun)
	}
	return mux
}
