package domain

import (
	"fmt"
	"strings"
)

// Strategy tags how a market's rendered rows are laid out.
type Strategy string

const (
	// SingleLine markets carry one odds set per bookmaker.
	SingleLine Strategy = "single_line"
	// MultiLine markets group bookmaker rows under one header per line value.
	MultiLine Strategy = "multi_line"
)

// Valid reports whether the strategy is one the parser can dispatch.
func (s Strategy) Valid() bool {
	return s == SingleLine || s == MultiLine
}

// Period is the part of the match an odds set applies to.
type Period string

const (
	PeriodFullTime    Period = "FullTime"
	PeriodFirstHalf   Period = "1stHalf"
	PeriodSecondHalf  Period = "2ndHalf"
	PeriodFullInclOT  Period = "FullTimeInclOT"
	PeriodFirstSet    Period = "1stSet"
	PeriodSecondSet   Period = "2ndSet"
	PeriodFirstQuart  Period = "1stQuarter"
	PeriodSecondQuart Period = "2ndQuarter"
)

var periodLabels = map[Period]string{
	PeriodFullTime:    "Full Time",
	PeriodFirstHalf:   "1st Half",
	PeriodSecondHalf:  "2nd Half",
	PeriodFullInclOT:  "FT including OT",
	PeriodFirstSet:    "1st Set",
	PeriodSecondSet:   "2nd Set",
	PeriodFirstQuart:  "1st Quarter",
	PeriodSecondQuart: "2nd Quarter",
}

// Label returns the text shown on the period sub-tab.
func (p Period) Label() string {
	if label, ok := periodLabels[p]; ok {
		return label
	}
	return string(p)
}

// ParsePeriod accepts either the period identifier or its UI label.
func ParsePeriod(raw string) (Period, bool) {
	trimmed := strings.TrimSpace(raw)
	for p, label := range periodLabels {
		if strings.EqualFold(trimmed, string(p)) || strings.EqualFold(trimmed, label) {
			return p, true
		}
	}
	return "", false
}

// MarketDefinition describes how to locate and parse one market for a sport.
// Values are immutable; slice accessors hand out copies.
type MarketDefinition struct {
	sport       Sport
	key         string
	mainTab     string
	specificTab string
	labels      []string
	periods     []Period
	strategy    Strategy
}

// MarketSpec is the mutable input used to build a MarketDefinition.
type MarketSpec struct {
	Sport       Sport    `yaml:"sport"`
	Key         string   `yaml:"key"`
	MainTab     string   `yaml:"main_tab"`
	SpecificTab string   `yaml:"specific_tab"`
	Labels      []string `yaml:"labels"`
	Periods     []Period `yaml:"periods"`
	Strategy    Strategy `yaml:"strategy"`
}

// NewMarketDefinition validates the spec and freezes it into a definition.
func NewMarketDefinition(spec MarketSpec) (MarketDefinition, error) {
	key := strings.ToLower(strings.TrimSpace(spec.Key))
	switch {
	case spec.Sport == "":
		return MarketDefinition{}, fmt.Errorf("market %q: sport is required", spec.Key)
	case key == "":
		return MarketDefinition{}, fmt.Errorf("market key is required")
	case strings.TrimSpace(spec.MainTab) == "":
		return MarketDefinition{}, fmt.Errorf("market %q: main tab is required", key)
	case len(spec.Labels) == 0:
		return MarketDefinition{}, fmt.Errorf("market %q: at least one odds label is required", key)
	}
	strategy := spec.Strategy
	if strategy == "" {
		strategy = SingleLine
	}
	if !strategy.Valid() {
		return MarketDefinition{}, fmt.Errorf("market %q: unknown strategy %q", key, spec.Strategy)
	}
	periods := spec.Periods
	if len(periods) == 0 {
		periods = []Period{PeriodFullTime}
	}
	return MarketDefinition{
		sport:       spec.Sport,
		key:         key,
		mainTab:     strings.TrimSpace(spec.MainTab),
		specificTab: strings.TrimSpace(spec.SpecificTab),
		labels:      append([]string(nil), spec.Labels...),
		periods:     append([]Period(nil), periods...),
		strategy:    strategy,
	}, nil
}

// MustMarketDefinition panics on invalid input; meant for static tables.
func MustMarketDefinition(spec MarketSpec) MarketDefinition {
	def, err := NewMarketDefinition(spec)
	if err != nil {
		panic(err)
	}
	return def
}

func (d MarketDefinition) Sport() Sport        { return d.sport }
func (d MarketDefinition) Key() string         { return d.key }
func (d MarketDefinition) MainTab() string     { return d.mainTab }
func (d MarketDefinition) SpecificTab() string { return d.specificTab }
func (d MarketDefinition) Strategy() Strategy  { return d.strategy }

// Labels returns the ordered odds-value labels.
func (d MarketDefinition) Labels() []string {
	return append([]string(nil), d.labels...)
}

// Periods returns the periods the market is published for.
func (d MarketDefinition) Periods() []Period {
	return append([]Period(nil), d.periods...)
}

// SupportsPeriod reports whether p is one of the market's periods.
func (d MarketDefinition) SupportsPeriod(p Period) bool {
	for _, candidate := range d.periods {
		if candidate == p {
			return true
		}
	}
	return false
}

// Spec returns a mutable copy of the definition.
func (d MarketDefinition) Spec() MarketSpec {
	return MarketSpec{
		Sport:       d.sport,
		Key:         d.key,
		MainTab:     d.mainTab,
		SpecificTab: d.specificTab,
		Labels:      d.Labels(),
		Periods:     d.Periods(),
		Strategy:    d.strategy,
	}
}
