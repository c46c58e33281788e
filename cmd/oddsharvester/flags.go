package main

import (
	"flag"
	"strings"
	"time"

	"github.com/preston-bernstein/oddsharvester/internal/config"
)

// stringList collects a repeatable flag.
type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }

func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

type options struct {
	configPath string

	sport           string
	league          string
	markets         string
	date            string
	season          string
	maxPages        int
	links           stringList
	storage         string
	filePath        string
	format          string
	proxies         stringList
	userAgent       string
	locale          string
	timezoneID      string
	headless        bool
	targetBookmaker string
	oddsHistory     bool
	concurrency     int

	port     string
	interval time.Duration
}

func bindFlags(fs *flag.FlagSet, command string) *options {
	o := &options{}
	fs.StringVar(&o.configPath, "config", "", "YAML config file (defaults to $ODDSHARVESTER_CONFIG)")
	fs.StringVar(&o.sport, "sport", "", "sport to scrape (football, tennis, basketball, rugby-league, ...)")
	fs.StringVar(&o.league, "league", "", "league slug, e.g. premier-league")
	fs.StringVar(&o.markets, "markets", "", "comma separated market keys, e.g. 1x2,btts")
	fs.StringVar(&o.storage, "storage", "", "storage backends: local, remote, postgres or a comma list")
	fs.StringVar(&o.filePath, "file_path", "", "local storage directory")
	fs.StringVar(&o.format, "format", "", "local storage format: json or csv")
	fs.Var(&o.proxies, "proxies", "proxy in 'server user pass' format; repeatable")
	fs.StringVar(&o.userAgent, "browser_user_agent", "", "custom browser user agent")
	fs.StringVar(&o.locale, "browser_locale_timezone", "", "browser locale, e.g. fr-BE")
	fs.StringVar(&o.timezoneID, "browser_timezone_id", "", "browser timezone id, e.g. Europe/Brussels")
	fs.BoolVar(&o.headless, "headless", true, "run the browser headless")
	fs.StringVar(&o.targetBookmaker, "target_bookmaker", "", "only keep odds from this bookmaker")
	fs.BoolVar(&o.oddsHistory, "scrape_odds_history", false, "collect odds movement for every cell")
	fs.IntVar(&o.concurrency, "concurrency_tasks", 0, "matches scraped in parallel")

	switch command {
	case cmdUpcoming:
		fs.StringVar(&o.date, "date", "", "match day as YYYYMMDD (defaults to today)")
		fs.Var(&o.links, "match_links", "match URL to scrape instead of discovering; repeatable")
	case cmdHistoric:
		fs.StringVar(&o.season, "season", "", "season as YYYY-YYYY")
		fs.IntVar(&o.maxPages, "max_pages", 0, "maximum result pages to walk")
		fs.Var(&o.links, "match_links", "match URL to scrape instead of discovering; repeatable")
	case cmdLinks:
		fs.Var(&o.links, "match_links", "match URL to scrape; repeatable, positional URLs also work")
	case cmdServe:
		fs.StringVar(&o.port, "port", "", "HTTP listen port")
		fs.DurationVar(&o.interval, "schedule_interval", 0, "time between scheduled upcoming harvests")
	}
	return o
}

// apply copies explicitly set flags over cfg.
func (o *options) apply(fs *flag.FlagSet, cfg *config.Config) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "sport":
			cfg.Scrape.Sport = o.sport
		case "league":
			cfg.Scrape.League = o.league
		case "markets":
			cfg.Scrape.Markets = splitList(o.markets)
		case "max_pages":
			cfg.Scrape.MaxPages = o.maxPages
		case "storage":
			cfg.Storage.Kinds = o.storage
		case "file_path":
			cfg.Storage.LocalPath = o.filePath
		case "format":
			cfg.Storage.Format = o.format
		case "proxies":
			cfg.Browser.Proxies = append([]string(nil), o.proxies...)
		case "browser_user_agent":
			cfg.Browser.UserAgent = o.userAgent
		case "browser_locale_timezone":
			cfg.Browser.Locale = o.locale
		case "browser_timezone_id":
			cfg.Browser.TimezoneID = o.timezoneID
		case "headless":
			cfg.Browser.Headless = o.headless
		case "target_bookmaker":
			cfg.Scrape.TargetBookmaker = o.targetBookmaker
		case "scrape_odds_history":
			cfg.Scrape.OddsHistory = o.oddsHistory
		case "concurrency_tasks":
			cfg.Scrape.Concurrency = o.concurrency
		case "port":
			cfg.Port = o.port
		case "schedule_interval":
			cfg.ScheduleInterval = o.interval
		}
	})
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
