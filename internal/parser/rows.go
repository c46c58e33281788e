package parser

import (
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/preston-bernstein/oddsharvester/internal/domain"
	"github.com/preston-bernstein/oddsharvester/internal/logging"
)

const unknownBookmaker = "Unknown"

type rowReader struct {
	sel    Selectors
	logger *slog.Logger
}

type parsedRow struct {
	bookmaker string
	odds      map[string]float64
	ref       string
}

// read extracts the bookmaker and odds from one row. Cells that are missing
// or unparseable leave their label out; ok is false only when nothing usable remains.
func (r rowReader) read(row *goquery.Selection, market string, labels []string) (parsedRow, bool) {
	name := r.bookmaker(row)
	cells := row.Find(r.sel.OddsCell)
	if cells.Length() < len(labels) {
		logging.Warn(r.logger, "bookmaker row has fewer odds cells than labels",
			logging.FieldMarket, market,
			logging.FieldBookmaker, name,
			"cells", cells.Length(),
			"labels", len(labels),
		)
	}

	odds := make(map[string]float64, len(labels))
	for i, label := range labels {
		if i >= cells.Length() {
			break
		}
		text := r.cellText(cells.Eq(i))
		if text == "" || text == "-" {
			logging.Warn(r.logger, "missing odds value",
				logging.FieldMarket, market,
				logging.FieldBookmaker, name,
				"label", label,
			)
			continue
		}
		v, err := ParseOdds(text)
		if err != nil {
			logging.Warn(r.logger, "skipping unparseable odds cell",
				logging.FieldMarket, market,
				logging.FieldBookmaker, name,
				"label", label,
				logging.FieldError, err,
			)
			continue
		}
		odds[label] = v
	}

	if len(odds) == 0 {
		logging.Warn(r.logger, "skipping bookmaker row without odds",
			logging.FieldMarket, market,
			logging.FieldBookmaker, name,
		)
		return parsedRow{}, false
	}
	ref, _ := row.Attr(r.sel.RowRefAttr)
	return parsedRow{bookmaker: name, odds: odds, ref: ref}, true
}

func (r rowReader) bookmaker(row *goquery.Selection) string {
	if name := strings.TrimSpace(row.Find(r.sel.BookmakerName).First().Text()); name != "" {
		return name
	}
	if title, ok := row.Find(r.sel.BookmakerLogo).First().Attr("title"); ok && strings.TrimSpace(title) != "" {
		return strings.TrimSpace(title)
	}
	return unknownBookmaker
}

func (r rowReader) cellText(cell *goquery.Selection) string {
	if v := strings.TrimSpace(cell.Find(r.sel.OddsValue).First().Text()); v != "" {
		return v
	}
	return strings.TrimSpace(cell.Text())
}

func (r rowReader) record(row parsedRow, def domain.MarketDefinition, req Request, line *string) domain.OddsRecord {
	return domain.OddsRecord{
		MatchID:     req.MatchID,
		Market:      def.Key(),
		Period:      req.Period,
		Line:        line,
		Bookmaker:   row.bookmaker,
		Odds:        row.odds,
		CollectedAt: req.CollectedAt,
		RowRef:      row.ref,
	}
}

func wantBookmaker(req Request, name string) bool {
	return req.TargetBookmaker == "" || strings.EqualFold(strings.TrimSpace(req.TargetBookmaker), name)
}
