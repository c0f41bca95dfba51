// Package config loads service settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds every environment-driven setting.
type Config struct {
	Port      int    `validate:"min=1,max=65535"`
	StaticDir string `validate:"omitempty,dir"`

	TruthSourceURL            string `validate:"omitempty,url"`
	TruthSourceConsumerKey    string `validate:"required_with=TruthSourceConsumerSecret"`
	TruthSourceConsumerSecret string `validate:"required_with=TruthSourceConsumerKey"`
	TruthSourceTokenKey       string `validate:"required_with=TruthSourceConsumerKey"`
	TruthSourceTokenSecret    string `validate:"required_with=TruthSourceTokenKey"`
	TruthSourceRealm          string
	TruthSourceFixture        string `validate:"omitempty,file"`

	LookupTimeout  time.Duration `validate:"gt=0"`
	RequestTimeout time.Duration `validate:"gt=0"`
	MaxConcurrency int           `validate:"min=1,max=256"`
	RateLimit      float64       `validate:"gte=0"`
	RateBurst      int           `validate:"min=1"`
	RetryCount     int           `validate:"min=0,max=10"`

	DateToleranceDays int `validate:"min=0"`
	PartyDriftPercent int `validate:"min=0,max=100"`

	RedisAddress string
	CacheTTL     time.Duration `validate:"gte=0"`

	LogLevel    string `validate:"oneof=trace debug info warn warning error fatal panic"`
	MaxUploadMB int    `validate:"min=1"`
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds and validates a Config using getenv for lookups.
func FromEnv(getenv func(string) string) (*Config, error) {
	e := envReader{getenv: getenv}
	cfg := &Config{
		Port:      e.getInt("PORT", 8080),
		StaticDir: e.getString("STATIC_DIR", ""),

		TruthSourceURL:            e.getString("TRUTH_SOURCE_URL", ""),
		TruthSourceConsumerKey:    e.getString("TRUTH_SOURCE_CONSUMER_KEY", ""),
		TruthSourceConsumerSecret: e.getString("TRUTH_SOURCE_CONSUMER_SECRET", ""),
		TruthSourceTokenKey:       e.getString("TRUTH_SOURCE_TOKEN_KEY", ""),
		TruthSourceTokenSecret:    e.getString("TRUTH_SOURCE_TOKEN_SECRET", ""),
		TruthSourceRealm:          e.getString("TRUTH_SOURCE_REALM", ""),
		TruthSourceFixture:        e.getString("TRUTH_SOURCE_FIXTURE", ""),

		LookupTimeout:  e.getDuration("LOOKUP_TIMEOUT", 10*time.Second),
		RequestTimeout: e.getDuration("REQUEST_TIMEOUT", 2*time.Minute),
		MaxConcurrency: e.getInt("MAX_CONCURRENCY", 8),
		RateLimit:      e.getFloat("RATE_LIMIT", 10),
		RateBurst:      e.getInt("RATE_BURST", 20),
		RetryCount:     e.getInt("RETRY_COUNT", 3),

		DateToleranceDays: e.getInt("DATE_TOLERANCE_DAYS", 1),
		PartyDriftPercent: e.getInt("PARTY_DRIFT_PERCENT", 20),

		RedisAddress: e.getString("REDIS_ADDRESS", ""),
		CacheTTL:     e.getDuration("CACHE_TTL", 10*time.Minute),

		LogLevel:    strings.ToLower(e.getString("LOG_LEVEL", "info")),
		MaxUploadMB: e.getInt("MAX_UPLOAD_MB", 32),
	}

	if len(e.errs) > 0 {
		return nil, fmt.Errorf("invalid environment: %s", strings.Join(e.errs, "; "))
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// HasTruthSource reports whether a remote or fixture truth source is configured.
func (c *Config) HasTruthSource() bool {
	return c.TruthSourceURL != "" || c.TruthSourceFixture != ""
}

type envReader struct {
	getenv func(string) string
	errs   []string
}

func (e *envReader) getString(key, def string) string {
	if v := strings.TrimSpace(e.getenv(key)); v != "" {
		return v
	}
	return def
}

func (e *envReader) getInt(key string, def int) int {
	v := strings.TrimSpace(e.getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Sprintf("%s=%q is not an integer", key, v))
		return def
	}
	return n
}

func (e *envReader) getFloat(key string, def float64) float64 {
	v := strings.TrimSpace(e.getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Sprintf("%s=%q is not a number", key, v))
		return def
	}
	return f
}

// getDuration accepts Go durations ("90s", "2m") or a bare number of seconds.
func (e *envReader) getDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(e.getenv(key))
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Sprintf("%s=%q is not a duration", key, v))
		return def
	}
	return d
}
