package testutil

import (
	"fmt"
	"html"
	"strings"
)

const (
	rowClass  = "border-black-borders flex h-9 border-b border-l border-r text-xs"
	cellClass = "border-black-borders relative flex min-w-[60px] flex-col items-center justify-center gap-1"
)

// MatchURL builds a realistic match page URL ending in the given id.
func MatchURL(id string) string {
	return "https://www.oddsportal.com/football/england/premier-league/home-away-" + id + "/"
}

// OddsRow renders one bookmaker row with one cell per odds value.
// An empty odds string renders an empty cell.
func OddsRow(bookmaker string, odds ...string) string {
	return oddsRow("", bookmaker, odds...)
}

// OddsRowRef renders a bookmaker row tagged with row/cell references.
func OddsRowRef(ref, bookmaker string, odds ...string) string {
	return oddsRow(ref, bookmaker, odds...)
}

func oddsRow(ref, bookmaker string, odds ...string) string {
	var b strings.Builder
	if ref != "" {
		fmt.Fprintf(&b, `<div class="%s" data-row-ref="%s">`, rowClass, ref)
	} else {
		fmt.Fprintf(&b, `<div class="%s">`, rowClass)
	}
	fmt.Fprintf(&b, `<div class="flex"><img class="bookmaker-logo" title="%s"/><a><p class="height-content">%s</p></a></div>`,
		html.EscapeString(bookmaker), html.EscapeString(bookmaker))
	for i, o := range odds {
		if ref != "" {
			fmt.Fprintf(&b, `<div class="%s" data-cell-ref="%s-%d">`, cellClass, ref, i)
		} else {
			fmt.Fprintf(&b, `<div class="%s">`, cellClass)
		}
		if o != "" {
			fmt.Fprintf(&b, `<p class="height-content">%s</p>`, html.EscapeString(o))
		}
		b.WriteString(`</div>`)
	}
	b.WriteString(`</div>`)
	return b.String()
}

// LineGroup renders a tagged line group with its header and nested rows.
func LineGroup(header string, rows ...string) string {
	return fmt.Sprintf(`<div data-line-group="1"><div class="flex w-full items-center justify-start pl-3 font-bold" data-line-header="1"><p>%s</p></div>%s</div>`,
		html.EscapeString(header), strings.Join(rows, ""))
}

// MarketPage wraps fragments in a minimal HTML document.
func MarketPage(parts ...string) string {
	return "<html><head><title>Match odds</title></head><body><main>" + strings.Join(parts, "") + "</main></body></html>"
}

// EventHeader renders the event header element carrying its JSON payload.
func EventHeader(payload string) string {
	return fmt.Sprintf(`<div id="react-event-header" data="%s"></div>`, html.EscapeString(payload))
}

// HistoryOverlay renders an odds movement overlay from (time, odds) pairs.
func HistoryOverlay(entries ...[2]string) string {
	var b strings.Builder
	b.WriteString(`<div data-testid="odds-movement"><h3>Odds movement</h3>`)
	for _, e := range entries {
		fmt.Fprintf(&b, `<div class="movement-row"><span class="movement-time">%s</span><span class="movement-odds">%s</span></div>`,
			html.EscapeString(e[0]), html.EscapeString(e[1]))
	}
	b.WriteString(`</div>`)
	return b.String()
}

// MatchLinks renders an event listing with the given hrefs.
func MatchLinks(hrefs ...string) string {
	var b strings.Builder
	for _, href := range hrefs {
		fmt.Fprintf(&b, `<div class="eventRow flex w-full"><a href="%s">match</a></div>`, html.EscapeString(href))
	}
	return b.String()
}
