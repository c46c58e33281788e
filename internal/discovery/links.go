package discovery

import (
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/preston-bernstein/oddsharvester/internal/domain"
)

// Selectors locate match links and pagination on listing pages.
type Selectors struct {
	EventRow   string `yaml:"event_row"`
	Pagination string `yaml:"pagination"`
}

// DefaultSelectors matches the current listing layout.
func DefaultSelectors() Selectors {
	return Selectors{
		EventRow:   `div[class^="eventRow"], div[class*=" eventRow"]`,
		Pagination: `a.pagination-link:not([rel='next'])`,
	}
}

func (s Selectors) withDefaults() Selectors {
	def := DefaultSelectors()
	if s.EventRow == "" {
		s.EventRow = def.EventRow
	}
	if s.Pagination == "" {
		s.Pagination = def.Pagination
	}
	return s
}

// ExtractMatchLinks returns absolute match page URLs found inside event rows, in
// document order without duplicates. Links outside sport, or too shallow to be a
// match page, are dropped.
func ExtractMatchLinks(fragment, base string, sport domain.Sport, sel Selectors) []string {
	sel = sel.withDefaults()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return nil
	}
	root, err := url.Parse(strings.TrimRight(base, "/") + "/")
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	var links []string
	doc.Find(sel.EventRow).Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		abs := root.ResolveReference(ref)
		abs.Fragment = ""
		parts := strings.Split(strings.Trim(abs.Path, "/"), "/")
		if len(parts) <= 3 {
			return
		}
		if sport != "" && parts[0] != string(sport) {
			return
		}
		link := abs.String()
		if _, err := domain.MatchIDFromURL(link); err != nil {
			return
		}
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		links = append(links, link)
	})
	return links
}

// PageNumbers reads the numbered pagination links, sorted and capped at maxPages.
// A page without pagination yields page 1 only.
func PageNumbers(fragment string, sel Selectors, maxPages int) []int {
	sel = sel.withDefaults()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return []int{1}
	}
	var pages []int
	doc.Find(sel.Pagination).Each(func(_ int, a *goquery.Selection) {
		n, err := strconv.Atoi(strings.TrimSpace(a.Text()))
		if err != nil || n < 1 {
			return
		}
		pages = append(pages, n)
	})
	if len(pages) == 0 {
		return []int{1}
	}
	slices.Sort(pages)
	pages = slices.Compact(pages)
	if maxPages > 0 && len(pages) > maxPages {
		pages = pages[:maxPages]
	}
	return pages
}
