package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

const defaultNOAAFeedURL = "https://api.weather.gov/alerts/active?event=Severe%20Thunderstorm%20Warning"

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	CORSOrigins     []string

	// Pass scheduling.
	PassInterval     time.Duration
	PipelineLockName string

	// NWS active-alerts feed.
	NOAAEnabled   bool
	NOAAFeedURL   string
	NOAAUserAgent string
	NOAATimeout   time.Duration

	// HailStrike notification mailbox.
	MailboxEnabled  bool
	MailboxAddr     string
	MailboxUser     string
	MailboxPassword string
	MailboxFolder   string
	MailboxSubject  string
	MailboxWindow   time.Duration
	MailboxTimeout  time.Duration

	// Overpass roof estimator.
	OverpassURL      string
	OverpassTimeout  time.Duration
	RoofRadiusMeters int
	RoofCacheSize    int

	// Alert store.
	StoreDriver  string
	DatabaseURL  string
	DBPoolMin    int
	DBPoolMax    int
	StoreTimeout time.Duration

	// Optional alert event topic. Empty brokers disables publishing.
	KafkaBrokers    []string
	KafkaAlertTopic string
}

// Load reads configuration from environment variables, applying defaults where
// unset. A .env file in the working directory is loaded first if present;
// variables already set in the environment win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:         sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:         sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:        sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:  shutdownTimeout,
		CORSOrigins:      parseList(sharedcfg.EnvOrDefault("CORS_ORIGINS", "*")),
		PipelineLockName: sharedcfg.EnvOrDefault("PIPELINE_LOCK_NAME", "hailwatch-ingest"),

		NOAAFeedURL:   sharedcfg.EnvOrDefault("NOAA_FEED_URL", defaultNOAAFeedURL),
		NOAAUserAgent: sharedcfg.EnvOrDefault("NOAA_USER_AGENT", "hailwatch (ops@example.com)"),

		MailboxAddr:     sharedcfg.EnvOrDefault("MAILBOX_ADDR", "imap.gmail.com:993"),
		MailboxUser:     os.Getenv("MAILBOX_USER"),
		MailboxPassword: os.Getenv("MAILBOX_PASSWORD"),
		MailboxFolder:   sharedcfg.EnvOrDefault("MAILBOX_FOLDER", "INBOX"),
		MailboxSubject:  sharedcfg.EnvOrDefault("MAILBOX_SUBJECT", "Hail Notification"),

		OverpassURL: sharedcfg.EnvOrDefault("OVERPASS_URL", "https://overpass-api.de/api/interpreter"),

		StoreDriver: sharedcfg.EnvOrDefault("STORE_DRIVER", "postgres"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		KafkaAlertTopic: sharedcfg.EnvOrDefault("KAFKA_ALERT_TOPIC", "hail-alerts"),
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = sharedcfg.ParseBrokers(brokers)
	}

	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"PASS_INTERVAL", "10m", &cfg.PassInterval},
		{"NOAA_TIMEOUT", "15s", &cfg.NOAATimeout},
		{"MAILBOX_WINDOW", "24h", &cfg.MailboxWindow},
		{"MAILBOX_TIMEOUT", "30s", &cfg.MailboxTimeout},
		{"OVERPASS_TIMEOUT", "30s", &cfg.OverpassTimeout},
		{"STORE_TIMEOUT", "5s", &cfg.StoreTimeout},
	}
	for _, d := range durations {
		v, err := parsePositiveDuration(d.key, d.def)
		if err != nil {
			return nil, err
		}
		*d.dst = v
	}

	ints := []struct {
		key string
		def int
		min int
		dst *int
	}{
		{"ROOF_RADIUS_METERS", 1609, 1, &cfg.RoofRadiusMeters},
		{"ROOF_CACHE_SIZE", 1000, 1, &cfg.RoofCacheSize},
		{"DB_POOL_MIN", 1, 0, &cfg.DBPoolMin},
		{"DB_POOL_MAX", 5, 1, &cfg.DBPoolMax},
	}
	for _, i := range ints {
		v, err := parseInt(i.key, i.def, i.min)
		if err != nil {
			return nil, err
		}
		*i.dst = v
	}

	cfg.NOAAEnabled, err = parseBool("NOAA_ENABLED", true)
	if err != nil {
		return nil, err
	}
	cfg.MailboxEnabled, err = parseBool("MAILBOX_ENABLED", cfg.MailboxUser != "")
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when STORE_DRIVER is postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("STORE_DRIVER must be postgres or memory, got %q", c.StoreDriver)
	}
	if c.DBPoolMin > c.DBPoolMax {
		return errors.New("DB_POOL_MIN must be less than or equal to DB_POOL_MAX")
	}
	if c.MailboxEnabled && (c.MailboxUser == "" || c.MailboxPassword == "") {
		return errors.New("MAILBOX_ENABLED is true but MAILBOX_USER or MAILBOX_PASSWORD is not set")
	}
	if c.NOAAEnabled && c.NOAAFeedURL == "" {
		return errors.New("NOAA_FEED_URL is required when NOAA_ENABLED is true")
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaAlertTopic == "" {
		return errors.New("KAFKA_ALERT_TOPIC is required when KAFKA_BROKERS is set")
	}
	if c.PipelineLockName == "" {
		return errors.New("PIPELINE_LOCK_NAME is required")
	}
	return nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseInt(key string, def, minimum int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < minimum {
		return 0, fmt.Errorf("invalid %s: must be an integer >= %d", key, minimum)
	}
	return n, nil
}

func parseBool(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s", key)
	}
	return b, nil
}

func parseList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
