package parser

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Selectors are the CSS selectors the harvester uses to read and drive match pages.
// Parsing selectors are applied with goquery; interaction selectors are handed to the page.
type Selectors struct {
	// Container is snapshotted before parsing a market.
	Container string `yaml:"container"`

	Row           string `yaml:"row"`
	BookmakerName string `yaml:"bookmaker_name"`
	BookmakerLogo string `yaml:"bookmaker_logo"`
	OddsCell      string `yaml:"odds_cell"`
	OddsValue     string `yaml:"odds_value"`

	// GroupHeader is the site's clickable line-group header. The expand script
	// tags each header with LineHeaderAttr and its parent with LineGroupAttr.
	GroupHeader    string `yaml:"group_header"`
	LineGroupAttr  string `yaml:"line_group_attr"`
	LineHeaderAttr string `yaml:"line_header_attr"`
	RowRefAttr     string `yaml:"row_ref_attr"`
	CellRefAttr    string `yaml:"cell_ref_attr"`

	HistoryOverlay string `yaml:"history_overlay"`
	HistoryEntry   string `yaml:"history_entry"`
	HistoryTime    string `yaml:"history_time"`
	HistoryOdds    string `yaml:"history_odds"`

	EventHeader     string `yaml:"event_header"`
	EventHeaderAttr string `yaml:"event_header_attr"`

	MarketTab    string `yaml:"market_tab"`
	PeriodTab    string `yaml:"period_tab"`
	CookieBanner string `yaml:"cookie_banner"`
	OddsFormat   string `yaml:"odds_format"`
}

// DefaultSelectors returns selectors matching the current odds site layout.
func DefaultSelectors() Selectors {
	return Selectors{
		Container:       "body",
		Row:             `div[class*="border-black-borders"][class*="h-9"]`,
		BookmakerName:   "p.height-content",
		BookmakerLogo:   "img.bookmaker-logo",
		OddsCell:        `div[class*="min-w-[60px]"]`,
		OddsValue:       "a, p",
		GroupHeader:     "div.flex.w-full.items-center.justify-start.pl-3.font-bold",
		LineGroupAttr:   "data-line-group",
		LineHeaderAttr:  "data-line-header",
		RowRefAttr:      "data-row-ref",
		CellRefAttr:     "data-cell-ref",
		HistoryOverlay:  `[data-testid="odds-movement"]`,
		HistoryEntry:    "div.movement-row",
		HistoryTime:     ".movement-time",
		HistoryOdds:     ".movement-odds",
		EventHeader:     "#react-event-header",
		EventHeaderAttr: "data",
		MarketTab:       "ul.visible-links.odds-tabs > li",
		PeriodTab:       `div[data-testid="sub-nav-inactive-tab"], div[data-testid="sub-nav-active-tab"]`,
		CookieBanner:    "#onetrust-accept-btn-handler",
		OddsFormat:      "div.group > button.gap-2",
	}
}

// LineGroupSelector matches tagged line-group containers.
func (s Selectors) LineGroupSelector() string { return "[" + s.LineGroupAttr + "]" }

// LineHeaderSelector matches tagged line-group headers.
func (s Selectors) LineHeaderSelector() string { return "[" + s.LineHeaderAttr + "]" }

// CellRefSelector matches one tagged odds cell.
func (s Selectors) CellRefSelector(rowRef string, cell int) string {
	return fmt.Sprintf(`[%s="%s-%d"]`, s.CellRefAttr, rowRef, cell)
}

// LoadSelectors overlays the YAML file at path on the defaults.
func LoadSelectors(path string) (Selectors, error) {
	sel := DefaultSelectors()
	if path == "" {
		return sel, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return sel, fmt.Errorf("failed to read selector file: %w", err)
	}
	if err := yaml.Unmarshal(data, &sel); err != nil {
		return sel, fmt.Errorf("failed to parse selector file: %w", err)
	}
	return sel, nil
}
