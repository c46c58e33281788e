package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds runtime configuration for the harvester.
type Config struct {
	Port             string        `yaml:"port"`
	ScheduleInterval Duration      `yaml:"schedule_interval"`
	RegistryFile     string        `yaml:"registry_file"`
	SelectorsFile    string        `yaml:"selectors_file"`
	AdminToken       string        `yaml:"admin_token"`
	Log              LogConfig     `yaml:"log"`
	Scrape           ScrapeConfig  `yaml:"scrape"`
	Browser          BrowserConfig `yaml:"browser"`
	Storage          StorageConfig `yaml:"storage"`
	Seen             SeenConfig    `yaml:"seen"`
	Metrics          MetricsConfig `yaml:"metrics"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() Config {
	return Config{
		Port:             defaultPort,
		ScheduleInterval: defaultScheduleInterval,
		Log:              LogConfig{Level: defaultLogLevel, Format: defaultLogFormat},
		Scrape:           defaultScrape(),
		Browser:          defaultBrowser(),
		Storage:          defaultStorage(),
		Seen:             SeenConfig{TTL: defaultSeenTTL},
		Metrics:          defaultMetrics(),
	}
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	cfg := Defaults()
	cfg.applyEnv()
	return cfg
}

// LoadFile reads configuration like Read and validates the result.
func LoadFile(path string) (Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Read loads .env (when present), applies the YAML file at path over the
// defaults and lets environment variables override both. An empty path falls
// back to ODDSHARVESTER_CONFIG. Callers layering flags on top validate afterwards.
func Read(path string) (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}
	if path == "" {
		path = os.Getenv(envConfigFile)
	}
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

// loadDotEnv sets variables from files that exist without overriding the environment.
func loadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = envOrDefault(envPort, c.Port)
	c.ScheduleInterval = durationEnvOrDefault(envScheduleInterval, c.ScheduleInterval)
	c.RegistryFile = envOrDefault(envRegistryFile, c.RegistryFile)
	c.SelectorsFile = envOrDefault(envSelectorsFile, c.SelectorsFile)
	c.AdminToken = envOrDefault(envAdminToken, c.AdminToken)
	c.Log.Level = envOrDefault(envLogLevel, c.Log.Level)
	c.Log.Format = envOrDefault(envLogFormat, c.Log.Format)
	c.Scrape.applyEnv()
	c.Browser.applyEnv()
	c.Storage.applyEnv()
	c.Seen.applyEnv()
	c.Metrics.applyEnv()
}

// Validate reports settings the harvester cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Scrape.Concurrency <= 0 {
		errs = append(errs, errors.New("scrape.concurrency must be positive"))
	}
	if c.Scrape.MaxAttempts <= 0 {
		errs = append(errs, errors.New("scrape.max_attempts must be positive"))
	}
	if len(c.Scrape.Markets) == 0 {
		errs = append(errs, errors.New("scrape.markets must not be empty"))
	}
	switch strings.ToLower(c.Storage.Format) {
	case "json", "csv":
	default:
		errs = append(errs, fmt.Errorf("storage.format %q must be json or csv", c.Storage.Format))
	}
	if c.Storage.uses("remote") && c.Storage.S3.Bucket == "" {
		errs = append(errs, errors.New("storage.s3.bucket is required for remote storage"))
	}
	if c.Storage.uses("postgres") && c.Storage.PostgresDSN == "" {
		errs = append(errs, errors.New("storage.postgres_dsn is required for postgres storage"))
	}
	return errors.Join(errs...)
}
