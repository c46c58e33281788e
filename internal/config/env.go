package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Duration is time.Duration; yaml.v3 decodes "90s" style strings into it.
type Duration = time.Duration

// envValue returns the parsed value of key, or fallback when the variable is
// unset, blank or rejected by parse.
func envValue[T any](key string, fallback T, parse func(string) (T, bool)) T {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	if v, ok := parse(raw); ok {
		return v
	}
	return fallback
}

func envOrDefault(key, fallback string) string {
	return envValue(key, fallback, func(s string) (string, bool) { return s, true })
}

func durationEnvOrDefault(key string, fallback time.Duration) time.Duration {
	return envValue(key, fallback, func(s string) (time.Duration, bool) {
		d, err := time.ParseDuration(s)
		return d, err == nil && d > 0
	})
}

func intEnvOrDefault(key string, fallback int) int {
	return envValue(key, fallback, func(s string) (int, bool) {
		n, err := strconv.Atoi(s)
		return n, err == nil && n > 0
	})
}

func boolEnvOrDefault(key string, fallback bool) bool {
	return envValue(key, fallback, parseBool)
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	}
	return false, false
}

// listEnvOrDefault splits a comma separated value, dropping blanks.
func listEnvOrDefault(key string, fallback []string) []string {
	return envValue(key, fallback, func(s string) ([]string, bool) {
		out := splitList(s)
		return out, len(out) > 0
	})
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
