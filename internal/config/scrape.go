package config

// ScrapeConfig controls discovery and match extraction.
type ScrapeConfig struct {
	Sport           string   `yaml:"sport"`
	League          string   `yaml:"league"`
	Markets         []string `yaml:"markets"`
	Periods         []string `yaml:"periods"`
	Concurrency     int      `yaml:"concurrency"`
	TaskTimeout     Duration `yaml:"task_timeout"`
	MaxAttempts     int      `yaml:"max_attempts"`
	BackoffInitial  Duration `yaml:"backoff_initial"`
	BackoffMax      Duration `yaml:"backoff_max"`
	OddsHistory     bool     `yaml:"odds_history"`
	TargetBookmaker string   `yaml:"target_bookmaker"`
	PageConcurrency int      `yaml:"page_concurrency"`
	MaxPages        int      `yaml:"max_pages"`
	// Timezone is the IANA zone match kick-off times are reported in.
	Timezone        string   `yaml:"timezone"`
	SettleWait      Duration `yaml:"settle_wait"`
	HistoryWait     Duration `yaml:"history_wait"`
	ListingInterval Duration `yaml:"listing_interval"`
}

func defaultScrape() ScrapeConfig {
	return ScrapeConfig{
		Sport:           defaultSport,
		Markets:         append([]string(nil), defaultMarkets...),
		Concurrency:     defaultConcurrency,
		TaskTimeout:     defaultTaskTimeout,
		MaxAttempts:     defaultMaxAttempts,
		BackoffInitial:  defaultBackoffInitial,
		BackoffMax:      defaultBackoffMax,
		PageConcurrency: defaultPageConcurrency,
		Timezone:        defaultMatchTimezone,
		SettleWait:      defaultSettleWait,
		HistoryWait:     defaultHistoryWait,
	}
}

func (s *ScrapeConfig) applyEnv() {
	s.Sport = envOrDefault(envSport, s.Sport)
	s.League = envOrDefault(envLeague, s.League)
	s.Markets = listEnvOrDefault(envMarkets, s.Markets)
	s.Periods = listEnvOrDefault(envPeriods, s.Periods)
	s.Concurrency = intEnvOrDefault(envConcurrency, s.Concurrency)
	s.TaskTimeout = durationEnvOrDefault(envTaskTimeout, s.TaskTimeout)
	s.MaxAttempts = intEnvOrDefault(envMaxAttempts, s.MaxAttempts)
	s.BackoffInitial = durationEnvOrDefault(envBackoffInitial, s.BackoffInitial)
	s.BackoffMax = durationEnvOrDefault(envBackoffMax, s.BackoffMax)
	s.OddsHistory = boolEnvOrDefault(envOddsHistory, s.OddsHistory)
	s.TargetBookmaker = envOrDefault(envTargetBookmaker, s.TargetBookmaker)
	s.PageConcurrency = intEnvOrDefault(envPageConcurrency, s.PageConcurrency)
	s.MaxPages = intEnvOrDefault(envMaxPages, s.MaxPages)
	s.Timezone = envOrDefault(envMatchTimezone, s.Timezone)
	s.SettleWait = durationEnvOrDefault(envSettleWait, s.SettleWait)
	s.HistoryWait = durationEnvOrDefault(envHistoryWait, s.HistoryWait)
	s.ListingInterval = durationEnvOrDefault(envListingInterval, s.ListingInterval)
}
