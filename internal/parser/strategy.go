package parser

import (
	"iter"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/preston-bernstein/oddsharvester/internal/domain"
	"github.com/preston-bernstein/oddsharvester/internal/logging"
)

// singleLine reads bookmaker rows directly under the container: one record per row.
type singleLine struct {
	rows rowReader
}

func (s singleLine) Records(root *goquery.Selection, def domain.MarketDefinition, req Request) iter.Seq[domain.OddsRecord] {
	return func(yield func(domain.OddsRecord) bool) {
		labels := def.Labels()
		seen := make(map[string]struct{})
		root.Find(s.rows.sel.Row).EachWithBreak(func(_ int, node *goquery.Selection) bool {
			row, ok := s.rows.read(node, def.Key(), labels)
			if !ok || !wantBookmaker(req, row.bookmaker) {
				return true
			}
			key := strings.ToLower(row.bookmaker)
			if _, dup := seen[key]; dup {
				return true
			}
			seen[key] = struct{}{}
			return yield(s.rows.record(row, def, req, nil))
		})
	}
}

// multiLine walks line-group containers and only reads rows nested inside each group.
type multiLine struct {
	rows   rowReader
	sel    Selectors
	logger *slog.Logger
}

func (m multiLine) Records(root *goquery.Selection, def domain.MarketDefinition, req Request) iter.Seq[domain.OddsRecord] {
	return func(yield func(domain.OddsRecord) bool) {
		labels := def.Labels()
		match := specificMatcher(def.SpecificTab())
		seen := make(map[[2]string]struct{})
		root.Find(m.sel.LineGroupSelector()).EachWithBreak(func(_ int, group *goquery.Selection) bool {
			header := strings.Join(strings.Fields(group.Find(m.sel.LineHeaderSelector()).First().Text()), " ")
			line, err := ParseLine(header)
			if err != nil {
				logging.Warn(m.logger, "skipping line group with unreadable header",
					logging.FieldMarket, def.Key(),
					"header", header,
					logging.FieldError, err,
				)
				return true
			}
			if !match(header, line) {
				return true
			}
			keepGoing := true
			group.Find(m.sel.Row).EachWithBreak(func(_ int, node *goquery.Selection) bool {
				row, ok := m.rows.read(node, def.Key(), labels)
				if !ok || !wantBookmaker(req, row.bookmaker) {
					return true
				}
				key := [2]string{line, strings.ToLower(row.bookmaker)}
				if _, dup := seen[key]; dup {
					return true
				}
				seen[key] = struct{}{}
				lineValue := line
				keepGoing = yield(m.rows.record(row, def, req, &lineValue))
				return keepGoing
			})
			return keepGoing
		})
	}
}

// specificMatcher keeps every group when specific is empty. Otherwise a group
// is kept only when its line value equals the one in specific, so "+1" does
// not also select "+1.25" or "+1.5".
func specificMatcher(specific string) func(header, line string) bool {
	if specific == "" {
		return func(string, string) bool { return true }
	}
	want, err := ParseLine(specific)
	if err != nil {
		return func(header, _ string) bool { return strings.EqualFold(header, specific) }
	}
	return func(_, line string) bool { return line == want }
}
