package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/pfrederiksen/avl-events/internal/event"
)

// Helper to create a temp config file.
func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create temp config file: %v", err)
	}
	return configPath
}

// clearEnv blanks every override so the host environment cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvDBPath, EnvLogLevel, EnvAdminAddr, EnvRedisURL, EnvTimezone, EnvAdminToken} {
		t.Setenv(key, "")
	}
}

const validConfigYAML = `
database:
  path: "/var/lib/avl-events/events.db"
scraper:
  timeout_sec: 15
  fetch_attempts: 3
  retry_delay_ms: 500
schedule:
  daily: "30 7 * * *"
  interval: "0 */4 * * *"
  startup_delay_sec: -1
  timezone: "America/New_York"
cleanup:
  max_age_days: 45
dates:
  year_inference: "current"
admin:
  addr: "127.0.0.1:9090"
  allowed_origins: ["https://avl.example.com"]
redis:
  url: "redis://localhost:6379/0"
  channel: "shows"
logging:
  level: "debug"
venues:
  - name: "The Grey Eagle"
    address: "185 Clingman Ave, Asheville, NC 28801"
    capacity: 500
    url: "https://mirror.example.com/eagle"
  - name: "One World Brewing"
    enabled: false
`

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}

	if len(cfg.EnabledVenues()) != 4 {
		t.Errorf("default enabled venues = %d, want 4", len(cfg.EnabledVenues()))
	}
	if cfg.YearPolicy() != event.YearRollForward {
		t.Errorf("default YearPolicy() = %q, want roll_forward", cfg.YearPolicy())
	}
	if cfg.Timeout() != 10*time.Second || cfg.StartupDelay() != 30*time.Second || cfg.MaxAge() != 30*24*time.Hour {
		t.Errorf("default durations = %v, %v, %v", cfg.Timeout(), cfg.StartupDelay(), cfg.MaxAge())
	}

	peel := cfg.Venues[0]
	if peel.Name != "The Orange Peel" || peel.Capacity != 1050 {
		t.Errorf("first default venue = %+v", peel.Venue)
	}
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(createTempConfigFile(t, validConfigYAML))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/var/lib/avl-events/events.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Scraper.FetchAttempts != 3 || cfg.RetryDelay() != 500*time.Millisecond {
		t.Errorf("Scraper = %+v", cfg.Scraper)
	}
	if cfg.Scraper.MaxBodyBytes != 5<<20 {
		t.Errorf("MaxBodyBytes = %d, want default kept", cfg.Scraper.MaxBodyBytes)
	}
	if cfg.StartupDelay() >= 0 {
		t.Errorf("StartupDelay() = %v, want disabled", cfg.StartupDelay())
	}
	if cfg.YearPolicy() != event.YearCurrent {
		t.Errorf("YearPolicy() = %q, want current", cfg.YearPolicy())
	}
	if cfg.Redis.Channel != "shows" || cfg.Redis.URL != "redis://localhost:6379/0" {
		t.Errorf("Redis = %+v", cfg.Redis)
	}

	if len(cfg.Venues) != 2 {
		t.Fatalf("Venues = %d, want the file to replace the defaults", len(cfg.Venues))
	}
	enabled := cfg.EnabledVenues()
	if len(enabled) != 1 || enabled[0].Name != "The Grey Eagle" || enabled[0].URL != "https://mirror.example.com/eagle" {
		t.Errorf("EnabledVenues() = %+v", enabled)
	}
	if enabled[0].Capacity != 500 {
		t.Errorf("inline venue fields not decoded: %+v", enabled[0].Venue)
	}
	if len(cfg.SeedVenues()) != 2 {
		t.Errorf("SeedVenues() = %d, want 2", len(cfg.SeedVenues()))
	}

	loc, err := cfg.Location()
	if err != nil || loc.String() != "America/New_York" {
		t.Errorf("Location() = %v, %v", loc, err)
	}
}

func TestLoad_NoFile(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if cfg.Admin.Addr != ":8080" {
		t.Errorf("Admin.Addr = %q, want default", cfg.Admin.Addr)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvDBPath, "/tmp/override.db")
	t.Setenv(EnvLogLevel, "WARN")
	t.Setenv(EnvAdminAddr, ":9999")
	t.Setenv(EnvRedisURL, "redis://cache:6379/1")
	t.Setenv(EnvTimezone, "UTC")
	t.Setenv(EnvAdminToken, "s3cret")

	cfg, err := Load(createTempConfigFile(t, validConfigYAML))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/tmp/override.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn", cfg.Logging.Level)
	}
	if cfg.Admin.Addr != ":9999" {
		t.Errorf("Admin.Addr = %q", cfg.Admin.Addr)
	}
	if cfg.Redis.URL != "redis://cache:6379/1" {
		t.Errorf("Redis.URL = %q", cfg.Redis.URL)
	}
	if cfg.Schedule.Timezone != "UTC" {
		t.Errorf("Schedule.Timezone = %q", cfg.Schedule.Timezone)
	}
	if cfg.Admin.Token != "s3cret" {
		t.Errorf("Admin.Token = %q, want the CRON_SECRET value", cfg.Admin.Token)
	}
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() of a missing file should fail")
	}
	if _, err := Load(createTempConfigFile(t, "database: [unclosed")); err == nil {
		t.Error("Load() of invalid YAML should fail")
	}
	_, err := Load(createTempConfigFile(t, "logging:\n  level: loud\n"))
	if !errors.Is(err, ErrInvalidLogLevel) {
		t.Errorf("Load() error = %v, want ErrInvalidLogLevel", err)
	}
}

func TestValidate(t *testing.T) {
	disabled := false

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{"valid", func(c *Config) {}, nil},
		{"missing db path", func(c *Config) { c.Database.Path = "" }, ErrMissingDBPath},
		{"zero timeout", func(c *Config) { c.Scraper.TimeoutSec = 0 }, ErrInvalidTimeout},
		{"zero attempts", func(c *Config) { c.Scraper.FetchAttempts = 0 }, ErrInvalidFetchAttempts},
		{"negative retry delay", func(c *Config) { c.Scraper.RetryDelayMs = -1 }, ErrInvalidRetryDelay},
		{"zero body limit", func(c *Config) { c.Scraper.MaxBodyBytes = 0 }, ErrInvalidMaxBody},
		{"bad daily spec", func(c *Config) { c.Schedule.Daily = "at dawn" }, ErrInvalidSchedule},
		{"bad interval spec", func(c *Config) { c.Schedule.Interval = "0 */6 * *" }, ErrInvalidSchedule},
		{"empty interval allowed", func(c *Config) { c.Schedule.Interval = "" }, nil},
		{"unknown timezone", func(c *Config) { c.Schedule.Timezone = "Mars/Olympus" }, ErrInvalidTimezone},
		{"zero max age", func(c *Config) { c.Cleanup.MaxAgeDays = 0 }, ErrInvalidMaxAge},
		{"bad year policy", func(c *Config) { c.Dates.YearInference = "nearest" }, ErrInvalidYearInference},
		{"missing admin addr", func(c *Config) { c.Admin.Addr = "" }, ErrMissingAdminAddr},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, ErrInvalidLogLevel},
		{"no venues", func(c *Config) { c.Venues = nil }, ErrNoVenues},
		{"unnamed venue", func(c *Config) { c.Venues[1].Name = " " }, ErrVenueMissingName},
		{"duplicate venue", func(c *Config) { c.Venues[1].Name = c.Venues[0].Name }, ErrDuplicateVenue},
		{"all disabled", func(c *Config) {
			for i := range c.Venues {
				c.Venues[i].Enabled = &disabled
			}
		}, ErrNoEnabledVenues},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_String(t *testing.T) {
	cfg := Default()
	cfg.Admin.Token = "s3cret"
	s := cfg.String()
	if !strings.Contains(s, "Venues: 4") || !strings.Contains(s, ":8080") {
		t.Errorf("String() = %q", s)
	}
	if strings.Contains(s, "s3cret") {
		t.Errorf("String() leaks the admin token: %q", s)
	}
}
