package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	PostHogURL          string
	APIToken            string
	ProjectToken        string
	WebhookURL          string
	ActionCategories    string
	DefaultStartDate    string
	CatchUpDays         int
	PageLimit           int
	TrackingKey         string
	DeliveryPolicy      string
	TickInterval        time.Duration
	HTTPTimeout         time.Duration
	PostgresDSN         string
	Port                string
	APIKeys             map[string]struct{}
	RateLimitRunsPerMin int
	LogLevel            string
	LogFormat           string
	RunOnce             bool
}

// Load reads an optional dotenv file into the process environment and then parses it.
// A missing file is not an error.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, err
		}
	}
	return Parse(), nil
}

func Parse() Config {
	return Config{
		PostHogURL:          strings.TrimRight(getString("POSTHOG_URL", ""), "/"),
		APIToken:            getString("POSTHOG_API_TOKEN", ""),
		ProjectToken:        getString("POSTHOG_PROJECT_TOKEN", ""),
		WebhookURL:          getString("WEBHOOK_URL", ""),
		ActionCategories:    getString("ACTION_CATEGORIES", ""),
		DefaultStartDate:    getString("DEFAULT_START_DATE", "2021-07-01"),
		CatchUpDays:         getInt("CATCHUP_DAYS", 1),
		PageLimit:           getInt("PAGE_LIMIT", 1000),
		TrackingKey:         getString("TRACKING_KEY", "gclid"),
		DeliveryPolicy:      strings.ToLower(getString("DELIVERY_FAILURE_POLICY", PolicyWarn)),
		TickInterval:        time.Duration(getInt("TICK_INTERVAL_SECONDS", 60)) * time.Second,
		HTTPTimeout:         time.Duration(getInt("HTTP_TIMEOUT_SECONDS", 30)) * time.Second,
		PostgresDSN:         getString("POSTGRES_DSN", ""),
		Port:                getString("PORT", "8080"),
		APIKeys:             parseKeys(getString("API_KEYS", "")),
		RateLimitRunsPerMin: getInt("RATE_LIMIT_RUN_PER_MIN", 6),
		LogLevel:            getString("LOG_LEVEL", "info"),
		LogFormat:           getString("LOG_FORMAT", "text"),
		RunOnce:             getBool("RUN_ONCE", false),
	}
}

func parseKeys(csv string) map[string]struct{} {
	csv = strings.TrimSpace(csv)
	if csv == "" {
		return map[string]struct{}{}
	}
	m := make(map[string]struct{})
	for _, k := range strings.Split(csv, ",") {
		k = strings.TrimSpace(k)
		if k != "" {
			m[k] = struct{}{}
		}
	}
	return m
}

func getString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return def
}
