package domain

import "fmt"

// TaskState tracks where a match extraction currently is.
type TaskState string

const (
	StatePending     TaskState = "PENDING"
	StateNavigating  TaskState = "NAVIGATING"
	StateMarketLoop  TaskState = "MARKET_LOOP"
	StateExpanding   TaskState = "EXPANDING"
	StateParsing     TaskState = "PARSING"
	StateAggregating TaskState = "AGGREGATING"
	StateDone        TaskState = "DONE"
	StateFailed      TaskState = "FAILED"
)

// Terminal reports whether no further transitions are possible.
func (s TaskState) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// MatchRef points at a match before its header has been parsed.
type MatchRef struct {
	URL    string `json:"url"`
	Sport  Sport  `json:"sport"`
	League string `json:"league,omitempty"`
}

// ScrapeTask is the unit of work scheduled by the orchestrator.
type ScrapeTask struct {
	Index    int       `json:"index"`
	Match    MatchRef  `json:"match"`
	Markets  []string  `json:"markets"`
	Periods  []Period  `json:"periods,omitempty"`
	Attempts int       `json:"attempts"`
	State    TaskState `json:"state"`
	LastErr  error     `json:"-"`
}

// NewTasks builds pending tasks in submission order for the given links.
func NewTasks(sport Sport, league string, links []string, markets []string, periods []Period) []ScrapeTask {
	tasks := make([]ScrapeTask, 0, len(links))
	for i, link := range links {
		tasks = append(tasks, ScrapeTask{
			Index:   i,
			Match:   MatchRef{URL: link, Sport: sport, League: league},
			Markets: append([]string(nil), markets...),
			Periods: append([]Period(nil), periods...),
			State:   StatePending,
		})
	}
	return tasks
}

// MarketStatus reports what happened to one requested market.
type MarketStatus string

const (
	MarketSucceeded MarketStatus = "succeeded"
	MarketSkipped   MarketStatus = "skipped"
)

// MarketOutcome summarises one requested market inside a match result.
type MarketOutcome struct {
	Key     string       `json:"key"`
	Status  MarketStatus `json:"status"`
	Reason  string       `json:"reason,omitempty"`
	Records int          `json:"records"`
	Periods []Period     `json:"periods,omitempty"`
}

// MatchResult is the final outcome for one scheduled task.
type MatchResult struct {
	Index    int             `json:"index"`
	Match    Match           `json:"match"`
	Records  []OddsRecord    `json:"records"`
	Markets  []MarketOutcome `json:"markets"`
	Attempts int             `json:"attempts"`
	State    TaskState       `json:"state"`
	Error    string          `json:"error,omitempty"`
}

// Succeeded reports whether the match reached DONE.
func (r MatchResult) Succeeded() bool {
	return r.State == StateDone
}

// Skipped returns the outcomes for markets that produced no data.
func (r MatchResult) Skipped() []MarketOutcome {
	var out []MarketOutcome
	for _, m := range r.Markets {
		if m.Status == MarketSkipped {
			out = append(out, m)
		}
	}
	return out
}

// Outcome returns the outcome recorded for the market key.
func (r MatchResult) Outcome(key string) (MarketOutcome, bool) {
	for _, m := range r.Markets {
		if m.Key == key {
			return m, true
		}
	}
	return MarketOutcome{}, false
}

// ProxyEntry is one upstream proxy the browser may route through.
type ProxyEntry struct {
	Server   string `json:"server"`
	Username string `json:"username,omitempty"`
	Password string `json:"-"`
	InUse    bool   `json:"inUse"`
}

// HasCredentials reports whether the proxy expects authentication.
func (p ProxyEntry) HasCredentials() bool {
	return p.Username != "" && p.Password != ""
}

func (p ProxyEntry) String() string {
	if p.Username != "" {
		return fmt.Sprintf("%s (user=%s)", p.Server, p.Username)
	}
	return p.Server
}
