package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"cureports/pkg/telemetry"
)

const (
	defaultQueryAPIURL = "https://api.moonstream.to"
	tokenEnv           = "MOONSTREAM_ACCESS_TOKEN"
)

// Load reads configuration from the environment. Bucket settings are only validated by
// RequirePublish since query management commands never publish.
func Load() (Config, error) {
	cfg := Config{}

	cfg.QueryAPI.URL = strings.TrimRight(getEnv("QUERY_API_URL", defaultQueryAPIURL), "/")
	if u, err := url.Parse(cfg.QueryAPI.URL); err != nil || u.Scheme == "" || u.Host == "" {
		return Config{}, fmt.Errorf("invalid QUERY_API_URL: %q", cfg.QueryAPI.URL)
	}
	cfg.QueryAPI.Token = strings.TrimSpace(os.Getenv(tokenEnv))

	var err error
	if cfg.QueryAPI.Timeout, err = getEnvDuration("QUERY_API_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}

	if cfg.Poll.InitialDelay, err = getEnvDuration("REPORTS_POLL_INITIAL_DELAY", 2*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.Poll.Interval, err = getEnvDuration("REPORTS_POLL_INTERVAL", 2*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.Poll.FetchTimeout, err = getEnvDuration("REPORTS_FETCH_TIMEOUT", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.Poll.MaxRetries, err = getEnvNonNegativeInt("REPORTS_POLL_MAX_RETRIES", 20); err != nil {
		return Config{}, err
	}
	if cfg.Poll.MaxTransportFailures, err = getEnvNonNegativeInt("REPORTS_MAX_TRANSPORT_FAILURES", 0); err != nil {
		return Config{}, err
	}
	if cfg.Poll.Interval <= 0 {
		return Config{}, errors.New("REPORTS_POLL_INTERVAL must be positive")
	}
	if cfg.Poll.FetchTimeout <= 0 {
		return Config{}, errors.New("REPORTS_FETCH_TIMEOUT must be positive")
	}

	cfg.Publish.Bucket = strings.TrimSpace(os.Getenv("REPORTS_S3_BUCKET"))
	cfg.Publish.Prefix = strings.Trim(strings.TrimSpace(os.Getenv("REPORTS_S3_PREFIX")), "/")
	if cfg.Publish.PresignTTL, err = getEnvDuration("REPORTS_PRESIGN_TTL", 0); err != nil {
		return Config{}, err
	}

	cfg.Telemetry.ReportingEnabled = telemetry.ConsentFromEnv("REPORTING_ENABLED")
	cfg.Telemetry.NATSURL = strings.TrimSpace(os.Getenv("NATS_URL"))
	cfg.Telemetry.PushgatewayURL = strings.TrimSpace(os.Getenv("PUSHGATEWAY_URL"))

	return cfg, nil
}

// RequirePublish validates the settings needed to publish reports.
func (c Config) RequirePublish() error {
	if c.Publish.Bucket == "" {
		return errors.New("REPORTS_S3_BUCKET is required")
	}
	if c.Publish.Prefix == "" {
		return errors.New("REPORTS_S3_PREFIX is required")
	}
	return nil
}

// WithToken returns a copy of the config using token when it is not empty.
func (c Config) WithToken(token string) Config {
	if t := strings.TrimSpace(token); t != "" {
		c.QueryAPI.Token = t
	}
	return c
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvNonNegativeInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil || i < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return i, nil
}

// getEnvDuration accepts Go durations ("1500ms") or a bare number of seconds.
func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("invalid %s: %q", key, v)
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return d, nil
}
