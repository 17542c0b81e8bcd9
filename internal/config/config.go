package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the local UI.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// CaptureConfig controls headless snapshots of the /calendar page.
type CaptureConfig struct {
	// OutputPath is where preview PNGs are written. Empty disables
	// capturing after scheduled refreshes.
	OutputPath string `yaml:"output_path" json:"output_path"`
	Width      int    `yaml:"width" json:"width"`
	Height     int    `yaml:"height" json:"height"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the local calendar UI.
	Listen string `yaml:"listen" json:"listen"`

	// APIBaseURL is the root of the collaboration backend, e.g.
	// "http://127.0.0.1:5000". Schedule and event endpoints hang off it.
	APIBaseURL string `yaml:"api_base_url" json:"api_base_url"`

	// Group is the viewer's study group. Without it the calendar is not
	// loaded at all.
	Group string `yaml:"group" json:"group"`

	// Subgroup is the initial subgroup (1 or 2). The backend keeps the
	// authoritative per-user value.
	Subgroup int `yaml:"subgroup" json:"subgroup"`

	// Timezone is the IANA zone used for display (e.g. "Europe/Kyiv").
	// Server timestamps are UTC and converted here.
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron is the polling schedule for schedule refetches.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// MaxEventsPerDay caps the entries shown in a day cell.
	MaxEventsPerDay int `yaml:"max_events_per_day" json:"max_events_per_day"`

	// TitleLimit is the rune count after which entry titles are elided.
	TitleLimit int `yaml:"title_limit" json:"title_limit"`

	// IncludeTasks merges personal/team task deadlines into the calendar.
	IncludeTasks bool `yaml:"include_tasks" json:"include_tasks"`

	// RequestTimeoutSeconds bounds each backend call.
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds" json:"request_timeout_seconds"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	Capture CaptureConfig `yaml:"capture" json:"capture"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen      = "127.0.0.1:8080"
	defaultAPIBaseURL  = "http://127.0.0.1:5000"
	defaultTimezone    = "Europe/Kyiv"
	defaultRefreshCron = "*/5 * * * *"
	defaultMaxPerDay   = 3
	defaultTitleLimit  = 20
	defaultTimeoutSec  = 10
	defaultCaptureW    = 1280
	defaultCaptureH    = 960
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:                defaultListen,
		APIBaseURL:            defaultAPIBaseURL,
		Subgroup:              1,
		Timezone:              defaultTimezone,
		RefreshCron:           defaultRefreshCron,
		MaxEventsPerDay:       defaultMaxPerDay,
		TitleLimit:            defaultTitleLimit,
		IncludeTasks:          true,
		RequestTimeoutSeconds: defaultTimeoutSec,
		LogLevel:              "info",
		Capture: CaptureConfig{
			Width:  defaultCaptureW,
			Height: defaultCaptureH,
		},
	}
}

// Normalize fills in missing/zero values with defaults so that partially
// filled files still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = defaultAPIBaseURL
	}
	c.APIBaseURL = strings.TrimRight(c.APIBaseURL, "/")
	c.Group = strings.TrimSpace(c.Group)
	if c.Subgroup != 1 && c.Subgroup != 2 {
		c.Subgroup = 1
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if c.MaxEventsPerDay <= 0 {
		c.MaxEventsPerDay = defaultMaxPerDay
	}
	if c.TitleLimit <= 0 {
		c.TitleLimit = defaultTitleLimit
	}
	if c.RequestTimeoutSeconds <= 0 {
		c.RequestTimeoutSeconds = defaultTimeoutSec
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Capture.Width <= 0 {
		c.Capture.Width = defaultCaptureW
	}
	if c.Capture.Height <= 0 {
		c.Capture.Height = defaultCaptureH
	}
}

// RequestTimeout returns RequestTimeoutSeconds as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// Location resolves Timezone, falling back to time.Local when the zone
// database does not know it.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local, err
	}
	return loc, nil
}

// Load loads configuration from the given YAML path.
//
// A missing file is created with the defaults (0600) and the defaults are
// returned. An existing file is decoded and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Caller decides whether a read-only location is fatal.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".studycal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}
