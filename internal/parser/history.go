package parser

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/preston-bernstein/oddsharvester/internal/domain"
	"github.com/preston-bernstein/oddsharvester/internal/logging"
)

var historyLayouts = []string{
	"02 Jan 2006, 15:04",
	"2 Jan 2006, 15:04",
	time.RFC3339,
}

var historyLayoutsNoYear = []string{
	"02 Jan, 15:04",
	"2 Jan, 15:04",
}

// ParseHistory reads an odds movement overlay into entries in document order.
// Timestamps without a year take collectedAt's year, rolling back one year when
// that would place the entry after collection.
func (p *Parser) ParseHistory(fragment string, collectedAt time.Time) ([]domain.OddsMovement, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return nil, fmt.Errorf("parse history fragment: %w", err)
	}
	overlay := doc.Find(p.sel.HistoryOverlay).First()
	if overlay.Length() == 0 {
		overlay = doc.Selection
	}

	var out []domain.OddsMovement
	overlay.Find(p.sel.HistoryEntry).Each(func(_ int, entry *goquery.Selection) {
		rawTime := strings.TrimSpace(entry.Find(p.sel.HistoryTime).First().Text())
		rawOdds := strings.TrimSpace(entry.Find(p.sel.HistoryOdds).First().Text())
		at, ok := parseHistoryTime(rawTime, collectedAt)
		if !ok {
			logging.Warn(p.logger, "skipping odds movement with unreadable time", "raw", rawTime)
			return
		}
		odds, err := ParseOdds(rawOdds)
		if err != nil {
			logging.Warn(p.logger, "skipping odds movement with unreadable odds", "raw", rawOdds)
			return
		}
		out = append(out, domain.OddsMovement{At: at, Odds: odds})
	})
	return out, nil
}

func parseHistoryTime(raw string, collectedAt time.Time) (time.Time, bool) {
	loc := collectedAt.Location()
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range historyLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t.UTC(), true
		}
	}
	for _, layout := range historyLayoutsNoYear {
		t, err := time.ParseInLocation(layout, raw, loc)
		if err != nil {
			continue
		}
		t = time.Date(collectedAt.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, loc)
		if !collectedAt.IsZero() && t.After(collectedAt) {
			t = t.AddDate(-1, 0, 0)
		}
		return t.UTC(), true
	}
	return time.Time{}, false
}
