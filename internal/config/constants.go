package config

import "time"

const (
	envPort             = "PORT"
	envScheduleInterval = "SCHEDULE_INTERVAL"
	envConfigFile       = "ODDSHARVESTER_CONFIG"
	envRegistryFile     = "MARKETS_FILE"
	envSelectorsFile    = "SELECTORS_FILE"
	envLogLevel         = "LOG_LEVEL"
	envLogFormat        = "LOG_FORMAT"
	envAdminToken       = "ADMIN_TOKEN"

	envSport            = "SCRAPE_SPORT"
	envLeague           = "SCRAPE_LEAGUE"
	envMarkets          = "SCRAPE_MARKETS"
	envPeriods          = "SCRAPE_PERIODS"
	envConcurrency      = "SCRAPE_CONCURRENCY"
	envTaskTimeout      = "SCRAPE_TASK_TIMEOUT"
	envMaxAttempts      = "SCRAPE_MAX_ATTEMPTS"
	envBackoffInitial   = "SCRAPE_BACKOFF_INITIAL"
	envBackoffMax       = "SCRAPE_BACKOFF_MAX"
	envOddsHistory      = "SCRAPE_ODDS_HISTORY"
	envTargetBookmaker  = "SCRAPE_TARGET_BOOKMAKER"
	envPageConcurrency  = "SCRAPE_PAGE_CONCURRENCY"
	envMaxPages         = "SCRAPE_MAX_PAGES"
	envMatchTimezone    = "SCRAPE_TIMEZONE"
	envSettleWait       = "SCRAPE_SETTLE_WAIT"
	envHistoryWait      = "SCRAPE_HISTORY_WAIT"
	envListingInterval  = "SCRAPE_LISTING_INTERVAL"
	envBrowserHeadless  = "BROWSER_HEADLESS"
	envBrowserUserAgent = "BROWSER_USER_AGENT"
	envBrowserLocale    = "BROWSER_LOCALE"
	envBrowserTimezone  = "BROWSER_TIMEZONE_ID"
	envBrowserExecPath  = "BROWSER_EXEC_PATH"
	envBrowserWidth     = "BROWSER_WINDOW_WIDTH"
	envBrowserHeight    = "BROWSER_WINDOW_HEIGHT"
	envBrowserMaxPages  = "BROWSER_MAX_PAGES"
	envNavTimeout       = "BROWSER_NAVIGATION_TIMEOUT"
	envBrowserBaseURL   = "BROWSER_BASE_URL"
	envProxies          = "PROXIES"
	envProxyWait        = "PROXY_WAIT"

	envStorageKinds     = "STORAGE"
	envStoragePath      = "STORAGE_PATH"
	envStorageFormat    = "STORAGE_FORMAT"
	envStorageRetention = "STORAGE_RETENTION_DAYS"
	envS3Bucket         = "S3_BUCKET"
	envS3Region         = "S3_REGION"
	envS3Endpoint       = "S3_ENDPOINT"
	envS3AccessKey      = "S3_ACCESS_KEY"
	envS3SecretKey      = "S3_SECRET_KEY"
	envS3Prefix         = "S3_PREFIX"
	envS3PathStyle      = "S3_PATH_STYLE"
	envPostgresDSN      = "POSTGRES_DSN"

	envSeenRedisAddr = "SEEN_REDIS_ADDR"
	envSeenRedisPass = "SEEN_REDIS_PASSWORD"
	envSeenTTL       = "SEEN_TTL"

	envMetricsPort  = "METRICS_PORT"
	envMetricsOn    = "METRICS_ENABLED"
	envOtelEndpoint = "OTEL_EXPORTER_OTLP_ENDPOINT"
	envOtelService  = "OTEL_SERVICE_NAME"
	envOtelInsecure = "OTEL_EXPORTER_OTLP_INSECURE"

	defaultPort = "4000"
	// Upcoming listings change slowly; hourly keeps the site load modest.
	defaultScheduleInterval = Duration(time.Hour)
	defaultLogLevel         = "info"
	defaultLogFormat        = "text"

	defaultSport           = "football"
	defaultConcurrency     = 3
	defaultTaskTimeout     = 3 * Duration(time.Minute)
	defaultMaxAttempts     = 3
	defaultBackoffInitial  = 500 * Duration(time.Millisecond)
	defaultBackoffMax      = 10 * Duration(time.Second)
	defaultPageConcurrency = 3
	defaultMatchTimezone   = "UTC"
	defaultSettleWait      = 3 * Duration(time.Second)
	defaultHistoryWait     = 2 * Duration(time.Second)

	defaultBrowserLocale   = "en-GB"
	defaultBrowserTimezone = "Europe/London"
	defaultBrowserWidth    = 1920
	defaultBrowserHeight   = 1080
	defaultBrowserMaxPages = 3
	defaultNavTimeout      = 20 * Duration(time.Second)
	defaultBaseURL         = "https://www.oddsportal.com"
	defaultProxyWait       = 2 * Duration(time.Second)

	defaultStorageKinds  = "local"
	defaultStoragePath   = "data/harvest"
	defaultStorageFormat = "json"
	defaultRetentionDays = 14
	defaultSeenTTL       = 24 * Duration(time.Hour)

	defaultMetricsPort = "9090"
	defaultServiceName = "oddsharvester"
)

var defaultMarkets = []string{"1x2"}
