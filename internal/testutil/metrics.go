package testutil

import (
	"context"
	"net/http"

	"github.com/preston-bernstein/oddsharvester/internal/metrics"
)

// MetricsSetupFunc matches metrics.Setup.
type MetricsSetupFunc func(context.Context, metrics.TelemetryConfig) (*metrics.Recorder, http.Handler, func(context.Context) error, error)

// FakeMetricsSetup returns a MetricsSetupFunc that skips exporters. A non-nil
// err is returned as is; otherwise enabled configs get an empty scrape handler.
// The returned counter reports how often setup ran.
func FakeMetricsSetup(err error) (MetricsSetupFunc, *int) {
	calls := 0
	setup := func(_ context.Context, cfg metrics.TelemetryConfig) (*metrics.Recorder, http.Handler, func(context.Context) error, error) {
		calls++
		if err != nil {
			return nil, nil, nil, err
		}
		var handler http.Handler
		if cfg.Enabled {
			handler = http.NewServeMux()
		}
		return metrics.NewRecorder(), handler, func(context.Context) error { return nil }, nil
	}
	return setup, &calls
}
