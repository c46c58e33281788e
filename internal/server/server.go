package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/preston-bernstein/oddsharvester/internal/config"
	"github.com/preston-bernstein/oddsharvester/internal/domain"
	httpserver "github.com/preston-bernstein/oddsharvester/internal/http"
	"github.com/preston-bernstein/oddsharvester/internal/http/handlers"
	"github.com/preston-bernstein/oddsharvester/internal/http/middleware"
	"github.com/preston-bernstein/oddsharvester/internal/logging"
	"github.com/preston-bernstein/oddsharvester/internal/metrics"
	"github.com/preston-bernstein/oddsharvester/internal/scheduler"
)

var metricsSetup = metrics.Setup

// buildStack is swapped in tests to avoid launching a browser.
var buildStack = BuildStack

type Server struct {
	cfg           config.Config
	logger        *slog.Logger
	metrics       *metrics.Recorder
	stack         *Stack
	httpServer    httpServer
	metricsServer httpServer
	scheduler     Scheduler
	metricsStop   func(context.Context) error
}

// New assembles the harvesting stack, the scheduler and both HTTP servers.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	recorder, metricsSrv, metricsShutdown := buildMetrics(cfg, logger, nil)

	sport, ok := domain.ParseSport(cfg.Scrape.Sport)
	if !ok {
		return nil, fmt.Errorf("unknown sport %q", cfg.Scrape.Sport)
	}
	stack, err := buildStack(ctx, cfg, logger, recorder)
	if err != nil {
		return nil, err
	}

	sched := scheduler.New(stack.Harvest, scheduler.Target{
		Sport:    sport,
		League:   cfg.Scrape.League,
		Markets:  cfg.Scrape.Markets,
		Location: stack.Location,
	}, logger, recorder, cfg.ScheduleInterval)
	httpSrv := buildHTTPServer(cfg, stack, sport, logger, recorder, sched)

	return &Server{
		cfg:           cfg,
		logger:        logger,
		metrics:       recorder,
		stack:         stack,
		httpServer:    httpSrv,
		metricsServer: metricsSrv,
		scheduler:     sched,
		metricsStop:   metricsShutdown,
	}, nil
}

// newServerWithDeps is used for testing to inject custom components.
func newServerWithDeps(cfg config.Config, logger *slog.Logger, stack *Stack, httpSrv httpServer, sched Scheduler) *Server {
	return &Server{
		cfg:        cfg,
		logger:     logger,
		stack:      stack,
		httpServer: httpSrv,
		scheduler:  sched,
	}
}

func buildHTTPServer(cfg config.Config, stack *Stack, sport domain.Sport, logger *slog.Logger, recorder *metrics.Recorder, sched Scheduler) httpServer {
	if logger == nil {
		logger = logging.NewLogger(logging.Config{})
	}

	var statusFn func() scheduler.Status
	if sched != nil {
		statusFn = sched.Status
	}
	var (
		runs    handlers.RunSource
		history handlers.RunHistory
		loc     *time.Location
		trigger handlers.UpcomingHarvester
	)
	if stack != nil {
		loc = stack.Location
		if stack.Harvest != nil {
			runs = stack.Harvest
			trigger = stack.Harvest
		}
		if stack.Local != nil {
			history = stack.Local
		}
	}

	handler := handlers.NewHandler(runs, history, logger, statusFn)
	var admin *handlers.AdminHandler
	if cfg.AdminToken != "" {
		admin = handlers.NewAdminHandler(trigger, sport, loc, cfg.AdminToken, logger)
	}
	router := httpserver.NewRouter(handler, admin)
	wrapped := middleware.LoggingMiddleware(logger, recorder, router)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      wrapped,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	return netHTTPServer{srv: srv}
}

// Run starts the scheduler and HTTP server, then waits for context cancellation to shut down gracefully.
func (s *Server) Run(ctx context.Context, stop context.CancelFunc) {
	s.startMetrics()
	s.startServer(stop)
	s.scheduler.Start(ctx)

	<-ctx.Done()
	logging.Info(s.logger, "shutdown signal received")

	s.gracefulShutdown()
}

func (s *Server) startServer(stop context.CancelFunc) {
	launchServer("http", s.httpServer, s.logger, func(error) {
		if stop != nil {
			stop()
		}
	})
}

func (s *Server) startMetrics() {
	if s.metricsServer == nil {
		return
	}
	launchServer("metrics", s.metricsServer, s.logger, nil)
}

func (s *Server) gracefulShutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if s.metricsStop != nil {
		if err := s.metricsStop(shutdownCtx); err != nil {
			logging.Warn(s.logger, "metrics shutdown failed", logging.FieldError, err)
		}
	}

	if s.metricsServer != nil {
		if err := s.metricsServer.Shutdown(shutdownCtx); err != nil {
			logging.Warn(s.logger, "metrics server shutdown failed", logging.FieldError, err)
		}
	}

	if err := s.scheduler.Stop(shutdownCtx); err != nil {
		logging.Error(s.logger, "failed to stop scheduler", err)
	}

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		logging.Error(s.logger, "graceful shutdown failed", err)
	}

	// The scheduler has drained, so no cycle is still holding a page.
	s.stack.Close()

	logging.Info(s.logger, "shutdown complete")
}

func buildMetrics(cfg config.Config, logger *slog.Logger, recorder *metrics.Recorder) (*metrics.Recorder, httpServer, func(context.Context) error) {
	if recorder != nil {
		return recorder, nil, nil
	}

	recCfg := metrics.TelemetryConfig{
		Enabled:      cfg.Metrics.Enabled,
		Port:         cfg.Metrics.Port,
		ServiceName:  cfg.Metrics.ServiceName,
		OtlpEndpoint: cfg.Metrics.OtlpEndpoint,
		OtlpInsecure: cfg.Metrics.OtlpInsecure,
	}

	rec, handler, shutdown, err := metricsSetup(context.Background(), recCfg)
	if err != nil {
		logging.Warn(logger, "metrics setup failed, continuing without telemetry", logging.FieldError, err)
		return metrics.NewRecorder(), nil, nil
	}

	var metricsSrv httpServer
	if handler != nil && recCfg.Enabled {
		metricsSrv = netHTTPServer{
			srv: &http.Server{
				Addr:              ":" + recCfg.Port,
				Handler:           handler,
				ReadHeaderTimeout: readTimeout,
			},
		}
	}

	return rec, metricsSrv, shutdown
}

func launchServer(name string, srv httpServer, logger *slog.Logger, onError func(error)) {
	go func() {
		logging.Info(logger, "starting "+name+" server", slog.String("addr", srv.Addr()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Warn(logger, name+" server failed", logging.FieldError, err)
			if onError != nil {
				onError(err)
			}
		}
	}()
}

// Handler exposes the HTTP handler (useful for tests).
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler()
}

