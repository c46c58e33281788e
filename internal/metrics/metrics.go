package metrics

import (
	"sync"
	"time"
)

type marketStats struct {
	records int
	skips   int
}

// Recorder captures in-memory scrape statistics and mirrors them to OpenTelemetry when configured.
type Recorder struct {
	mu              sync.Mutex
	attempts        int
	attemptErrors   int
	tasks           map[string]int
	markets         map[string]*marketStats
	storageErrors   map[string]int
	lastTaskLatency time.Duration
	otel            *otelInstruments
}

func NewRecorder() *Recorder {
	return newRecorder(nil)
}

func newRecorder(otel *otelInstruments) *Recorder {
	return &Recorder{
		tasks:         make(map[string]int),
		markets:       make(map[string]*marketStats),
		storageErrors: make(map[string]int),
		otel:          otel,
	}
}

// RecordTaskAttempt counts one extraction attempt. class is the retry verdict for a failed attempt.
func (r *Recorder) RecordTaskAttempt(err error, class string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.attempts++
	if err != nil {
		r.attemptErrors++
	}
	r.mu.Unlock()
	if r.otel != nil {
		r.otel.recordTaskAttempt(err, class)
	}
}

// RecordTask counts a finished task by outcome and stores its latency.
func (r *Recorder) RecordTask(outcome string, duration time.Duration) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.tasks[outcome]++
	r.lastTaskLatency = duration
	r.mu.Unlock()
	if r.otel != nil {
		r.otel.recordTask(outcome, duration)
	}
}

// RecordMarket counts emitted records for a market, or a skip when skipped is set.
func (r *Recorder) RecordMarket(market string, records int, skipped bool) {
	if r == nil {
		return
	}
	r.mu.Lock()
	stats, ok := r.markets[market]
	if !ok {
		stats = &marketStats{}
		r.markets[market] = stats
	}
	stats.records += records
	if skipped {
		stats.skips++
	}
	r.mu.Unlock()
	if r.otel != nil {
		r.otel.recordMarket(market, records, skipped)
	}
}

// RecordStorageError counts a failed write to sink.
func (r *Recorder) RecordStorageError(sink string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.storageErrors[sink]++
	r.mu.Unlock()
	if r.otel != nil {
		r.otel.recordStorageError(sink)
	}
}

// Snapshot is a copy of the recorder's counters.
type Snapshot struct {
	Attempts        int
	AttemptErrors   int
	Succeeded       int
	Failed          int
	Records         map[string]int
	Skips           map[string]int
	StorageErrors   map[string]int
	LastTaskLatency time.Duration
}

func (r *Recorder) Snapshot() Snapshot {
	if r == nil {
		return Snapshot{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := Snapshot{
		Attempts:        r.attempts,
		AttemptErrors:   r.attemptErrors,
		Succeeded:       r.tasks[OutcomeSucceeded],
		Failed:          r.tasks[OutcomeFailed],
		Records:         make(map[string]int, len(r.markets)),
		Skips:           make(map[string]int, len(r.markets)),
		StorageErrors:   make(map[string]int, len(r.storageErrors)),
		LastTaskLatency: r.lastTaskLatency,
	}
	for market, stats := range r.markets {
		snap.Records[market] = stats.records
		if stats.skips > 0 {
			snap.Skips[market] = stats.skips
		}
	}
	for sink, n := range r.storageErrors {
		snap.StorageErrors[sink] = n
	}
	return snap
}

// RecordHTTPRequest tracks basic HTTP metrics.
func (r *Recorder) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if r == nil || r.otel == nil {
		return
	}
	r.otel.recordHTTPRequest(method, path, status, duration)
}

// RecordSchedulerCycle tracks scheduled harvest cycles and errors.
func (r *Recorder) RecordSchedulerCycle(duration time.Duration, err error) {
	if r == nil || r.otel == nil {
		return
	}
	r.otel.recordScheduler(duration, err)
}
