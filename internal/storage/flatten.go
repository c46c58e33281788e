package storage

import (
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/preston-bernstein/oddsharvester/internal/domain"
)

// csvHeader lists the flattened record columns.
var csvHeader = []string{
	"match_id", "match_url", "sport", "league", "scheduled_at", "home_team", "away_team",
	"market", "period", "line", "bookmaker", "odds", "collected_at",
}

// flatten turns a result into one CSV row per odds record. Odds are written as
// label=value pairs ordered by label.
func flatten(result domain.MatchResult) [][]string {
	m := result.Match
	rows := make([][]string, 0, len(result.Records))
	for _, rec := range result.Records {
		line := ""
		if rec.Line != nil {
			line = *rec.Line
		}
		rows = append(rows, []string{
			rec.MatchID,
			m.URL,
			string(m.Sport),
			m.League,
			formatTime(m.ScheduledAt),
			m.HomeTeam,
			m.AwayTeam,
			rec.Market,
			string(rec.Period),
			line,
			rec.Bookmaker,
			formatOdds(rec.Odds),
			formatTime(rec.CollectedAt),
		})
	}
	return rows
}

func formatOdds(odds map[string]float64) string {
	labels := make([]string, 0, len(odds))
	for label := range odds {
		labels = append(labels, label)
	}
	slices.Sort(labels)
	parts := make([]string, 0, len(labels))
	for _, label := range labels {
		parts = append(parts, label+"="+strconv.FormatFloat(odds[label], 'f', -1, 64))
	}
	return strings.Join(parts, ";")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
