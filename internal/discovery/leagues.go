package discovery

import (
	"slices"

	"github.com/preston-bernstein/oddsharvester/internal/domain"
)

// leaguePaths maps a league slug to its listing path on the odds site.
var leaguePaths = map[domain.Sport]map[string]string{
	domain.SportFootball: {
		"france-ligue-1":            "/football/france/ligue-1",
		"france-ligue-2":            "/football/france/ligue-2",
		"germany-bundesliga":        "/football/germany/bundesliga",
		"germany-bundesliga-2":      "/football/germany/2-bundesliga",
		"england-premier-league":    "/football/england/premier-league",
		"england-championship":      "/football/england/championship",
		"spain-laliga":              "/football/spain/laliga",
		"spain-laliga2":             "/football/spain/laliga2",
		"italy-serie-a":             "/football/italy/serie-a",
		"italy-serie-b":             "/football/italy/serie-b",
		"usa-mls":                   "/football/usa/mls",
		"brazil-serie-a":            "/football/brazil/serie-a",
		"mexico-liga-mx":            "/football/mexico/liga-de-expansion-mx",
		"liga-portugal":             "/football/portugal/liga-portugal",
		"liga-portugal-2":           "/football/portugal/liga-portugal-2",
		"eredivisie":                "/football/netherlands/eredivisie",
		"champions-league":          "/football/europe/champions-league",
		"europa-league":             "/football/europe/europa-league",
		"jupiler-pro-league":        "/football/belgium/jupiler-pro-league",
		"denmark-superliga":         "/football/denmark/superliga",
		"colombia-primera-a":        "/football/colombia/primera-a",
		"austria-bundesliga":        "/football/austria/bundesliga",
		"bulgaria-parva-liga":       "/football/bulgaria/parva-liga",
		"australia-a-league":        "/football/australia/a-league",
		"greece-super-league":       "/football/greece/super-league",
		"norway-eliteserien":        "/football/norway/eliteserien",
		"romania-superliga":         "/football/romania/superliga",
		"saudi-professional-league": "/football/saudi-arabia/saudi-professional-league",
		"scotland-premiership":      "/football/scotland/premiership",
		"switzerland-super-league":  "/football/switzerland/super-league",
		"turkey-super-lig":          "/football/turkey/super-lig",
		"world-championship-2026":   "/football/world/world-championship-2026",
	},
	domain.SportTennis: {
		"atp-dubai": "/tennis/united-arab-emirates/atp-dubai",
		"atp-paris": "/tennis/france/atp-paris",
	},
}

// Leagues lists the league slugs known for sport, sorted.
func Leagues(sport domain.Sport) []string {
	paths := leaguePaths[sport]
	out := make([]string, 0, len(paths))
	for slug := range paths {
		out = append(out, slug)
	}
	slices.Sort(out)
	return out
}

// LeaguePath returns the listing path for a league slug.
func LeaguePath(sport domain.Sport, league string) (string, bool) {
	path, ok := leaguePaths[sport][league]
	return path, ok
}
