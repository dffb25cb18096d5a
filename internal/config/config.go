// Package config provides configuration management for avl-events.
//
// Settings come from, in increasing priority: built-in defaults, an optional YAML
// file, a .env file in the working directory, and process environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/pfrederiksen/avl-events/internal/event"
	"github.com/pfrederiksen/avl-events/internal/scheduler"
)

// Environment variables that override file settings.
const (
	EnvDBPath     = "AVL_DB_PATH"
	EnvLogLevel   = "AVL_LOG_LEVEL"
	EnvAdminAddr  = "AVL_ADMIN_ADDR"
	EnvRedisURL   = "REDIS_URL"
	EnvTimezone   = "AVL_TIMEZONE"
	EnvAdminToken = "CRON_SECRET"
)

// Configuration validation errors.
var (
	ErrMissingDBPath        = errors.New("database.path is required")
	ErrInvalidTimeout       = errors.New("scraper.timeout_sec must be at least 1")
	ErrInvalidFetchAttempts = errors.New("scraper.fetch_attempts must be at least 1")
	ErrInvalidRetryDelay    = errors.New("scraper.retry_delay_ms must be non-negative")
	ErrInvalidMaxBody       = errors.New("scraper.max_body_bytes must be at least 1")
	ErrInvalidSchedule      = errors.New("schedule spec is not a valid cron expression")
	ErrInvalidTimezone      = errors.New("schedule.timezone is not a known location")
	ErrInvalidMaxAge        = errors.New("cleanup.max_age_days must be at least 1")
	ErrInvalidYearInference = errors.New("dates.year_inference must be 'current' or 'roll_forward'")
	ErrMissingAdminAddr     = errors.New("admin.addr is required")
	ErrInvalidLogLevel      = errors.New("logging.level must be one of: debug, info, warn, error")
	ErrNoVenues             = errors.New("at least one venue is required")
	ErrVenueMissingName     = errors.New("venue name is required")
	ErrDuplicateVenue       = errors.New("venue names must be unique")
	ErrNoEnabledVenues      = errors.New("at least one venue must be enabled")
)

// Config represents the complete service configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Scraper  ScraperConfig  `yaml:"scraper"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Cleanup  CleanupConfig  `yaml:"cleanup"`
	Dates    DatesConfig    `yaml:"dates"`
	Admin    AdminConfig    `yaml:"admin"`
	Redis    RedisConfig    `yaml:"redis"`
	Logging  LoggingConfig  `yaml:"logging"`
	Venues   []VenueConfig  `yaml:"venues"`
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ScraperConfig tunes page fetching.
type ScraperConfig struct {
	TimeoutSec    int    `yaml:"timeout_sec"`
	UserAgent     string `yaml:"user_agent"`
	FetchAttempts int    `yaml:"fetch_attempts"`
	RetryDelayMs  int    `yaml:"retry_delay_ms"`
	MaxBodyBytes  int64  `yaml:"max_body_bytes"`
}

// ScheduleConfig defines when cycles run. An empty spec disables that timer and two
// empty specs leave manual triggers only. A startup delay of 0 runs a cycle as soon
// as the service starts; a negative one disables the initial run.
type ScheduleConfig struct {
	Daily           string `yaml:"daily"`
	Interval        string `yaml:"interval"`
	StartupDelaySec int    `yaml:"startup_delay_sec"`
	Timezone        string `yaml:"timezone"`
}

// CleanupConfig defines event retirement.
type CleanupConfig struct {
	MaxAgeDays int `yaml:"max_age_days"`
}

// DatesConfig defines date normalization.
type DatesConfig struct {
	YearInference string `yaml:"year_inference"`
}

// AdminConfig defines the admin HTTP server.
// Token is the bearer token required on /admin routes; CRON_SECRET overrides it.
type AdminConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	Token          string   `yaml:"token"`
}

// RedisConfig enables the Redis notifier when URL is set.
type RedisConfig struct {
	URL     string `yaml:"url"`
	Channel string `yaml:"channel"`
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// VenueConfig is a venue to seed and, when enabled, scrape. URL overrides the
// extractor's listing page.
type VenueConfig struct {
	event.Venue `yaml:",inline"`
	URL         string `yaml:"url,omitempty"`
	Enabled     *bool  `yaml:"enabled,omitempty"`
}

// IsEnabled reports whether the venue is scraped; venues are enabled unless set false.
func (v *VenueConfig) IsEnabled() bool {
	return v.Enabled == nil || *v.Enabled
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "data/avl-events.db"},
		Scraper: ScraperConfig{
			TimeoutSec:    10,
			FetchAttempts: 2,
			RetryDelayMs:  2000,
			MaxBodyBytes:  5 << 20,
		},
		Schedule: ScheduleConfig{
			Daily:           scheduler.DefaultDaily,
			Interval:        scheduler.DefaultInterval,
			StartupDelaySec: int(scheduler.DefaultStartupDelay / time.Second),
			Timezone:        "America/New_York",
		},
		Cleanup: CleanupConfig{MaxAgeDays: 30},
		Dates:   DatesConfig{YearInference: string(event.YearRollForward)},
		Admin:   AdminConfig{Addr: ":8080"},
		Redis:   RedisConfig{Channel: "avl-events"},
		Logging: LoggingConfig{Level: "info"},
		Venues:  DefaultVenues(),
	}
}

// DefaultVenues returns the four supported Asheville venues.
func DefaultVenues() []VenueConfig {
	return []VenueConfig{
		{Venue: event.Venue{
			Name:        "The Orange Peel",
			Address:     "101 Biltmore Ave, Asheville, NC 28801",
			Website:     "https://theorangepeel.net",
			Description: "Premier music venue in downtown Asheville featuring national and international touring acts.",
			Capacity:    1050,
		}},
		{Venue: event.Venue{
			Name:        "The Grey Eagle",
			Address:     "185 Clingman Ave, Asheville, NC 28801",
			Website:     "https://www.thegreyeagle.com",
			Description: "Intimate music venue and tavern in the River Arts District.",
			Capacity:    500,
		}},
		{Venue: event.Venue{
			Name:        "Asheville Music Hall",
			Address:     "31 Patton Ave, Asheville, NC 28801",
			Website:     "https://ashevillemusichall.com",
			Description: "Historic music venue in downtown Asheville hosting diverse musical acts.",
			Capacity:    800,
		}},
		{Venue: event.Venue{
			Name:        "One World Brewing",
			Address:     "10 Patton Ave, Asheville, NC 28801",
			Website:     "https://oneworldbrewing.com",
			Description: "Brewery and music venue featuring local and touring artists.",
			Capacity:    300,
		}},
	}
}

// Load builds the configuration from defaults, the YAML file at path (skipped when
// path is empty), .env and the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadDotEnv loads file into the environment without overriding variables already set
func loadDotEnv(file string) error {
	if _, err := os.Stat(file); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(file); err != nil {
		return fmt.Errorf("failed to load %s: %w", file, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv(EnvDBPath); ok && v != "" {
		c.Database.Path = v
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok && v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v, ok := os.LookupEnv(EnvAdminAddr); ok && v != "" {
		c.Admin.Addr = v
	}
	if v, ok := os.LookupEnv(EnvRedisURL); ok {
		c.Redis.URL = v
	}
	if v, ok := os.LookupEnv(EnvTimezone); ok && v != "" {
		c.Schedule.Timezone = v
	}
	if v, ok := os.LookupEnv(EnvAdminToken); ok && v != "" {
		c.Admin.Token = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}

	if c.Scraper.TimeoutSec < 1 {
		return ErrInvalidTimeout
	}
	if c.Scraper.FetchAttempts < 1 {
		return ErrInvalidFetchAttempts
	}
	if c.Scraper.RetryDelayMs < 0 {
		return ErrInvalidRetryDelay
	}
	if c.Scraper.MaxBodyBytes < 1 {
		return ErrInvalidMaxBody
	}

	for name, spec := range map[string]string{"daily": c.Schedule.Daily, "interval": c.Schedule.Interval} {
		if spec == "" {
			continue
		}
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("%w: schedule.%s %q: %v", ErrInvalidSchedule, name, spec, err)
		}
	}
	if _, err := c.Location(); err != nil {
		return err
	}

	if c.Cleanup.MaxAgeDays < 1 {
		return ErrInvalidMaxAge
	}

	if _, err := event.ParseYearPolicy(c.Dates.YearInference); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYearInference, err)
	}

	if c.Admin.Addr == "" {
		return ErrMissingAdminAddr
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return ErrInvalidLogLevel
	}

	if len(c.Venues) == 0 {
		return ErrNoVenues
	}
	seen := make(map[string]bool, len(c.Venues))
	enabled := 0
	for i, v := range c.Venues {
		if strings.TrimSpace(v.Name) == "" {
			return fmt.Errorf("%w: venues[%d]", ErrVenueMissingName, i)
		}
		if seen[v.Name] {
			return fmt.Errorf("%w: %q", ErrDuplicateVenue, v.Name)
		}
		seen[v.Name] = true
		if v.IsEnabled() {
			enabled++
		}
	}
	if enabled == 0 {
		return ErrNoEnabledVenues
	}

	return nil
}

// Location returns the schedule time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, c.Schedule.Timezone)
	}
	return loc, nil
}

// YearPolicy returns the year inference policy.
func (c *Config) YearPolicy() event.YearPolicy {
	policy, err := event.ParseYearPolicy(c.Dates.YearInference)
	if err != nil {
		return event.YearRollForward
	}
	return policy
}

// Timeout returns the per-request fetch timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Scraper.TimeoutSec) * time.Second
}

// RetryDelay returns the initial wait between fetch attempts.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Scraper.RetryDelayMs) * time.Millisecond
}

// StartupDelay returns the wait before the first cycle; negative disables it.
func (c *Config) StartupDelay() time.Duration {
	if c.Schedule.StartupDelaySec < 0 {
		return -1
	}
	return time.Duration(c.Schedule.StartupDelaySec) * time.Second
}

// MaxAge returns how long after its start an event is retired.
func (c *Config) MaxAge() time.Duration {
	return time.Duration(c.Cleanup.MaxAgeDays) * 24 * time.Hour
}

// EnabledVenues returns the venues to scrape.
func (c *Config) EnabledVenues() []VenueConfig {
	var enabled []VenueConfig
	for _, v := range c.Venues {
		if v.IsEnabled() {
			enabled = append(enabled, v)
		}
	}
	return enabled
}

// SeedVenues returns every configured venue for seeding, enabled or not.
func (c *Config) SeedVenues() []event.Venue {
	venues := make([]event.Venue, 0, len(c.Venues))
	for _, v := range c.Venues {
		venues = append(venues, v.Venue)
	}
	return venues
}

// String returns a string representation of the config.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{DB: %s, Venues: %d, Schedule: %q/%q, Admin: %s}",
		c.Database.Path,
		len(c.EnabledVenues()),
		c.Schedule.Daily,
		c.Schedule.Interval,
		c.Admin.Addr,
	)
}
