package domain

import (
	"sort"
	"strings"
	"time"
)

// Sport identifies which sport a match or market belongs to.
type Sport string

const (
	SportFootball    Sport = "football"
	SportTennis      Sport = "tennis"
	SportBasketball  Sport = "basketball"
	SportRugbyLeague Sport = "rugby-league"
)

// Sports lists every sport the harvester knows about.
func Sports() []Sport {
	return []Sport{SportFootball, SportTennis, SportBasketball, SportRugbyLeague}
}

// ParseSport normalises a user-supplied sport name.
func ParseSport(raw string) (Sport, bool) {
	s := Sport(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range Sports() {
		if s == known {
			return s, true
		}
	}
	return "", false
}

// Score captures the final result of a played match.
type Score struct {
	Home string `json:"home"`
	Away string `json:"away"`
}

// Match is the read-only description of one event on the odds site.
type Match struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Sport       Sport     `json:"sport"`
	League      string    `json:"league,omitempty"`
	ScheduledAt time.Time `json:"scheduledAt"`
	HomeTeam    string    `json:"homeTeam"`
	AwayTeam    string    `json:"awayTeam"`
	Venue       string    `json:"venue,omitempty"`
	Score       *Score    `json:"score,omitempty"`
}

// OddsMovement is one historical odds value for a single outcome.
type OddsMovement struct {
	At   time.Time `json:"at"`
	Odds float64   `json:"odds"`
}

// OddsRecord is one bookmaker's odds for one market, period and line.
type OddsRecord struct {
	MatchID     string                    `json:"matchId"`
	Market      string                    `json:"market"`
	Period      Period                    `json:"period"`
	Line        *string                   `json:"line,omitempty"`
	Bookmaker   string                    `json:"bookmaker"`
	Odds        map[string]float64        `json:"odds"`
	History     map[string][]OddsMovement `json:"history,omitempty"`
	CollectedAt time.Time                 `json:"collectedAt"`

	// RowRef ties the record back to its rendered row for follow-up interactions.
	RowRef string `json:"-"`
}

// RecordKey identifies a record for deduplication within a run.
type RecordKey struct {
	MatchID   string
	Market    string
	Period    Period
	Line      string
	Bookmaker string
}

// Key returns the dedup key for the record.
func (r OddsRecord) Key() RecordKey {
	line := ""
	if r.Line != nil {
		line = *r.Line
	}
	return RecordKey{
		MatchID:   r.MatchID,
		Market:    r.Market,
		Period:    r.Period,
		Line:      line,
		Bookmaker: strings.ToLower(r.Bookmaker),
	}
}

// LineValue returns the line or an empty string for single-line markets.
func (r OddsRecord) LineValue() string {
	if r.Line == nil {
		return ""
	}
	return *r.Line
}

// Labels returns the odds labels present on the record in sorted order.
func (r OddsRecord) Labels() []string {
	labels := make([]string, 0, len(r.Odds))
	for label := range r.Odds {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// WithHistory returns a copy of the record carrying the supplied odds history.
func (r OddsRecord) WithHistory(history map[string][]OddsMovement) OddsRecord {
	if len(history) == 0 {
		return r
	}
	out := r
	out.History = make(map[string][]OddsMovement, len(history))
	for label, moves := range history {
		out.History[label] = append([]OddsMovement(nil), moves...)
	}
	return out
}
