package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Instrument names as exported to Prometheus and OTLP.
const (
	MetricHTTPRequests      = "http_requests_total"
	MetricHTTPDuration      = "http_request_duration_ms"
	MetricTaskAttempts      = "scrape_task_attempts_total"
	MetricTasks             = "scrape_tasks_total"
	MetricTaskDuration      = "scrape_task_duration_ms"
	MetricMarketRecords     = "market_records_total"
	MetricMarketSkips       = "market_skips_total"
	MetricStorageErrors     = "storage_errors_total"
	MetricSchedulerCycles   = "scheduler_cycles_total"
	MetricSchedulerErrors   = "scheduler_errors_total"
	MetricSchedulerDuration = "scheduler_cycle_duration_ms"
)

var counterDescriptions = map[string]string{
	MetricHTTPRequests:    "HTTP requests served, by route and status.",
	MetricTaskAttempts:    "Match extraction attempts, by outcome and retry class.",
	MetricTasks:           "Finished match tasks, by outcome.",
	MetricMarketRecords:   "Odds records emitted per market.",
	MetricMarketSkips:     "Markets skipped because no data could be read.",
	MetricStorageErrors:   "Failed result writes, by sink.",
	MetricSchedulerCycles: "Scheduled harvest cycles started.",
	MetricSchedulerErrors: "Scheduled harvest cycles that failed.",
}

var histogramDescriptions = map[string]string{
	MetricHTTPDuration:      "HTTP request latency.",
	MetricTaskDuration:      "Wall time of a finished match task.",
	MetricSchedulerDuration: "Wall time of a scheduled harvest cycle.",
}

type otelInstruments struct {
	counters   map[string]metric.Int64Counter
	histograms map[string]metric.Float64Histogram
}

func newOtelInstruments(meter metric.Meter) (*otelInstruments, error) {
	inst := &otelInstruments{
		counters:   make(map[string]metric.Int64Counter, len(counterDescriptions)),
		histograms: make(map[string]metric.Float64Histogram, len(histogramDescriptions)),
	}
	for name, desc := range counterDescriptions {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			return nil, err
		}
		inst.counters[name] = c
	}
	for name, desc := range histogramDescriptions {
		h, err := meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit("ms"))
		if err != nil {
			return nil, err
		}
		inst.histograms[name] = h
	}
	return inst, nil
}

func (o *otelInstruments) add(name string, n int64, attrs ...attribute.KeyValue) {
	if c, ok := o.counters[name]; ok {
		c.Add(context.Background(), n, metric.WithAttributes(attrs...))
	}
}

func (o *otelInstruments) observe(name string, d time.Duration, attrs ...attribute.KeyValue) {
	if h, ok := o.histograms[name]; ok {
		h.Record(context.Background(), float64(d.Milliseconds()), metric.WithAttributes(attrs...))
	}
}

func (o *otelInstruments) recordHTTPRequest(method, route string, status int, d time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String(AttrMethod, method),
		attribute.String(AttrPath, route),
		attribute.Int(AttrStatus, status),
	}
	o.add(MetricHTTPRequests, 1, attrs...)
	o.observe(MetricHTTPDuration, d, attrs...)
}

func (o *otelInstruments) recordTaskAttempt(err error, class string) {
	attrs := []attribute.KeyValue{attribute.String(AttrOutcome, outcomeOf(err))}
	if class != "" {
		attrs = append(attrs, attribute.String(AttrClass, class))
	}
	o.add(MetricTaskAttempts, 1, attrs...)
}

func (o *otelInstruments) recordTask(outcome string, d time.Duration) {
	attr := attribute.String(AttrOutcome, outcome)
	o.add(MetricTasks, 1, attr)
	o.observe(MetricTaskDuration, d, attr)
}

func (o *otelInstruments) recordMarket(market string, records int, skipped bool) {
	attr := attribute.String(AttrMarket, market)
	if records > 0 {
		o.add(MetricMarketRecords, int64(records), attr)
	}
	if skipped {
		o.add(MetricMarketSkips, 1, attr)
	}
}

func (o *otelInstruments) recordStorageError(sink string) {
	o.add(MetricStorageErrors, 1, attribute.String(AttrSink, sink))
}

func (o *otelInstruments) recordScheduler(d time.Duration, err error) {
	o.add(MetricSchedulerCycles, 1)
	o.observe(MetricSchedulerDuration, d)
	if err != nil {
		o.add(MetricSchedulerErrors, 1)
	}
}

func outcomeOf(err error) string {
	if err != nil {
		return OutcomeFailed
	}
	return OutcomeSucceeded
}
