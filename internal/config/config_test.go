package config

import (
	"testing"
	"time"
)

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{name: "empty uses default", input: "", want: 3 * time.Second},
		{name: "bare seconds", input: "7", want: 7 * time.Second},
		{name: "go duration", input: "1500ms", want: 1500 * time.Millisecond},
		{name: "negative", input: "-1", wantErr: true},
		{name: "garbage", input: "soon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tt.input)
			got, err := getEnvDuration("TEST_DURATION", 3*time.Second)
			if (err != nil) != tt.wantErr {
				t.Fatalf("getEnvDuration() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if got != tt.want {
				t.Fatalf("getEnvDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"QUERY_API_URL", "QUERY_API_TIMEOUT", "MOONSTREAM_ACCESS_TOKEN",
		"REPORTS_POLL_INITIAL_DELAY", "REPORTS_POLL_INTERVAL", "REPORTS_FETCH_TIMEOUT",
		"REPORTS_POLL_MAX_RETRIES", "REPORTS_MAX_TRANSPORT_FAILURES",
		"REPORTS_S3_BUCKET", "REPORTS_S3_PREFIX", "REPORTS_PRESIGN_TTL",
		"REPORTING_ENABLED", "NATS_URL", "PUSHGATEWAY_URL",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.QueryAPI.URL != defaultQueryAPIURL {
		t.Fatalf("QueryAPI.URL = %q", cfg.QueryAPI.URL)
	}
	if cfg.Poll.Interval != 2*time.Second || cfg.Poll.MaxRetries != 20 || cfg.Poll.FetchTimeout != 5*time.Second {
		t.Fatalf("unexpected poll defaults %+v", cfg.Poll)
	}
	if cfg.Poll.MaxTransportFailures != 0 {
		t.Fatalf("MaxTransportFailures = %d, want unlimited", cfg.Poll.MaxTransportFailures)
	}
	if cfg.Telemetry.ReportingEnabled {
		t.Fatal("reporting should be opt-in")
	}
	if err := cfg.RequirePublish(); err == nil {
		t.Fatal("RequirePublish() should fail without a bucket")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("QUERY_API_URL", "http://localhost:7481/")
	t.Setenv("MOONSTREAM_ACCESS_TOKEN", "env-token")
	t.Setenv("REPORTS_POLL_MAX_RETRIES", "4")
	t.Setenv("REPORTS_POLL_INTERVAL", "250ms")
	t.Setenv("REPORTS_S3_BUCKET", "static.example.com")
	t.Setenv("REPORTS_S3_PREFIX", "/cu/reports/")
	t.Setenv("REPORTING_ENABLED", "yes")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.QueryAPI.URL != "http://localhost:7481" {
		t.Fatalf("QueryAPI.URL = %q", cfg.QueryAPI.URL)
	}
	if cfg.Poll.MaxRetries != 4 || cfg.Poll.Interval != 250*time.Millisecond {
		t.Fatalf("unexpected poll config %+v", cfg.Poll)
	}
	if cfg.Publish.Prefix != "cu/reports" {
		t.Fatalf("Publish.Prefix = %q", cfg.Publish.Prefix)
	}
	if err := cfg.RequirePublish(); err != nil {
		t.Fatalf("RequirePublish() error = %v", err)
	}
	if !cfg.Telemetry.ReportingEnabled {
		t.Fatal("ReportingEnabled = false")
	}

	if got := cfg.WithToken("  ").QueryAPI.Token; got != "env-token" {
		t.Fatalf("blank flag should keep env token, got %q", got)
	}
	if got := cfg.WithToken("flag-token").QueryAPI.Token; got != "flag-token" {
		t.Fatalf("flag token not applied, got %q", got)
	}
}

func TestLoadReportingConsent(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"", false},
		{"1", true},
		{"true", true},
		{"TRUE", true},
		{"t", true},
		{"yes", true},
		{"y", true},
		{"0", false},
		{"no", false},
		{"false", false},
		{"maybe", false},
	}

	for _, tt := range tests {
		t.Run("value="+tt.value, func(t *testing.T) {
			t.Setenv("REPORTING_ENABLED", tt.value)
			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if cfg.Telemetry.ReportingEnabled != tt.want {
				t.Fatalf("ReportingEnabled = %v, want %v", cfg.Telemetry.ReportingEnabled, tt.want)
			}
		})
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"QUERY_API_URL", "not a url"},
		{"REPORTS_POLL_MAX_RETRIES", "-3"},
		{"REPORTS_POLL_INTERVAL", "0"},
		{"REPORTS_FETCH_TIMEOUT", "later"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Fatalf("Load() with %s=%q should fail", tt.key, tt.value)
			}
		})
	}
}
