package orchestrator

import (
	"github.com/preston-bernstein/oddsharvester/internal/domain"
)

// SkippedMarket names a market that produced no data and why.
type SkippedMarket struct {
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

// MatchReport is the per-match line of a run report.
type MatchReport struct {
	Index     int              `json:"index"`
	URL       string           `json:"url"`
	MatchID   string           `json:"matchId,omitempty"`
	State     domain.TaskState `json:"state"`
	Attempts  int              `json:"attempts"`
	Records   int              `json:"records"`
	Succeeded []string         `json:"succeededMarkets,omitempty"`
	Skipped   []SkippedMarket  `json:"skippedMarkets,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// Report summarises a run so partial coverage is never mistaken for full success.
type Report struct {
	Matches   []MatchReport `json:"matches"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Records   int           `json:"records"`
	Skipped   int           `json:"skippedMarkets"`
}

// Summarize builds a report from results in their given order.
func Summarize(results []domain.MatchResult) Report {
	report := Report{Matches: make([]MatchReport, 0, len(results))}
	for _, res := range results {
		line := MatchReport{
			Index:    res.Index,
			URL:      res.Match.URL,
			MatchID:  res.Match.ID,
			State:    res.State,
			Attempts: res.Attempts,
			Records:  len(res.Records),
			Error:    res.Error,
		}
		for _, m := range res.Markets {
			switch m.Status {
			case domain.MarketSucceeded:
				line.Succeeded = append(line.Succeeded, m.Key)
			case domain.MarketSkipped:
				line.Skipped = append(line.Skipped, SkippedMarket{Key: m.Key, Reason: m.Reason})
			}
		}
		if res.Succeeded() {
			report.Succeeded++
		} else {
			report.Failed++
		}
		report.Records += line.Records
		report.Skipped += len(line.Skipped)
		report.Matches = append(report.Matches, line)
	}
	return report
}

// FailedMatches returns the report lines of matches that did not finish.
func (r Report) FailedMatches() []MatchReport {
	var out []MatchReport
	for _, m := range r.Matches {
		if m.State != domain.StateDone {
			out = append(out, m)
		}
	}
	return out
}
