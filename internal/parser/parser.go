// Package parser turns rendered market fragments into odds records.
package parser

import (
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/preston-bernstein/oddsharvester/internal/domain"
	"github.com/preston-bernstein/oddsharvester/internal/logging"
)

// Request carries the per-call context the parser stamps onto records.
type Request struct {
	MatchID         string
	Period          domain.Period
	CollectedAt     time.Time
	TargetBookmaker string
}

// Strategy emits records for one market layout.
type Strategy interface {
	Records(root *goquery.Selection, def domain.MarketDefinition, req Request) iter.Seq[domain.OddsRecord]
}

// Parser holds the selector configuration and dispatches to a strategy per market.
type Parser struct {
	sel        Selectors
	logger     *slog.Logger
	strategies map[domain.Strategy]Strategy
}

// New constructs a parser. A nil logger silences row-level warnings.
func New(sel Selectors, logger *slog.Logger) *Parser {
	rows := rowReader{sel: sel, logger: logger}
	return &Parser{
		sel:    sel,
		logger: logger,
		strategies: map[domain.Strategy]Strategy{
			domain.SingleLine: singleLine{rows: rows},
			domain.MultiLine:  multiLine{rows: rows, sel: sel, logger: logger},
		},
	}
}

// Selectors exposes the configuration the parser was built with.
func (p *Parser) Selectors() Selectors {
	return p.sel
}

// StrategyFor returns the strategy registered for the definition's tag.
func (p *Parser) StrategyFor(def domain.MarketDefinition) (Strategy, error) {
	s, ok := p.strategies[def.Strategy()]
	if !ok {
		return nil, fmt.Errorf("no parsing strategy for %q", def.Strategy())
	}
	return s, nil
}

// Records lazily parses fragment. Each iteration re-walks the document, so
// ranging twice yields the same sequence.
func (p *Parser) Records(fragment string, def domain.MarketDefinition, req Request) (iter.Seq[domain.OddsRecord], error) {
	strategy, err := p.StrategyFor(def)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return nil, fmt.Errorf("parse market fragment: %w", err)
	}
	if req.Period == "" {
		req.Period = domain.PeriodFullTime
	}
	return strategy.Records(doc.Selection, def, req), nil
}

// Parse collects Records into a slice.
func (p *Parser) Parse(fragment string, def domain.MarketDefinition, req Request) ([]domain.OddsRecord, error) {
	seq, err := p.Records(fragment, def, req)
	if err != nil {
		return nil, err
	}
	records := slices.Collect(seq)
	logging.Debug(p.logger, "parsed market fragment",
		logging.FieldMatchID, req.MatchID,
		logging.FieldMarket, def.Key(),
		logging.FieldPeriod, string(req.Period),
		logging.FieldCount, len(records),
	)
	return records, nil
}
