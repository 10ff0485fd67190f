package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"qlcal/internal/ql"
)

// Store backends.
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// ICSConfig describes an ICS feed imported into the schedule on refresh.
type ICSConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for the fetch cache and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
}

// StoreConfig selects where event records are persisted.
type StoreConfig struct {
	// Backend is one of "file", "sqlite" or "postgres".
	Backend string `yaml:"backend" json:"backend"`
	// Path is the YAML file (file backend) or database file (sqlite).
	Path string `yaml:"path" json:"path"`
	// DSN is the PostgreSQL connection string.
	DSN string `yaml:"dsn,omitempty" json:"dsn,omitempty"`
}

// CalDAVConfig is the collection occurrences are published to.
type CalDAVConfig struct {
	URL          string `yaml:"url" json:"url"`
	Username     string `yaml:"username" json:"username"`
	Password     string `yaml:"password" json:"password"`
	CalendarPath string `yaml:"calendar_path" json:"calendar_path"`
}

func (c *CalDAVConfig) Enabled() bool {
	return c != nil && c.URL != "" && c.CalendarPath != ""
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone dates and times are interpreted in.
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron is a cron schedule (e.g. "*/15 * * * *") for re-importing
	// ICS feeds and re-publishing to CalDAV.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// HorizonDays is the number of days covered by agendas and exports.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`

	// UpcomingWithin is how far ahead, as H:MM, an event counts as upcoming.
	UpcomingWithin string `yaml:"upcoming_within" json:"upcoming_within"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	Store StoreConfig `yaml:"store" json:"store"`

	// ICS is the list of imported feeds.
	ICS []ICSConfig `yaml:"ics" json:"ics"`

	// CacheDir holds the last good body of every feed.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	CalDAV *CalDAVConfig `yaml:"caldav,omitempty" json:"caldav,omitempty"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:         "127.0.0.1:8080",
		Timezone:       "UTC",
		RefreshCron:    "*/15 * * * *",
		HorizonDays:    7,
		UpcomingWithin: "3:00",
		LogLevel:       "info",
		Store: StoreConfig{
			Backend: BackendFile,
			Path:    "events.yaml",
		},
		ICS:      []ICSConfig{},
		CacheDir: "ics-cache",
	}
}

// Normalize fills in missing/zero values with defaults so that partially
// filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = def.HorizonDays
	}
	if _, err := ql.ParseTime(c.UpcomingWithin); err != nil {
		c.UpcomingWithin = def.UpcomingWithin
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	switch c.Store.Backend {
	case BackendFile, BackendSQLite, BackendPostgres:
	default:
		c.Store.Backend = BackendFile
	}
	if c.Store.Path == "" {
		switch c.Store.Backend {
		case BackendSQLite:
			c.Store.Path = "events.db"
		case BackendFile:
			c.Store.Path = def.Store.Path
		}
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
	if c.CacheDir == "" {
		c.CacheDir = def.CacheDir
	}
}

// Location resolves Timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Within returns UpcomingWithin parsed as a clock time.
func (c *Config) Within() ql.Time {
	t, err := ql.ParseTime(c.UpcomingWithin)
	if err != nil {
		return ql.Time{Hour: 3}
	}
	return t
}

// ResolvePaths makes relative store and cache paths relative to the config
// file's directory.
func (c *Config) ResolvePaths(configPath string) {
	base := filepath.Dir(configPath)
	for _, p := range []*string{&c.Store.Path, &c.CacheDir} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms (creating the parent directory) and returned.
//   - Otherwise the YAML is unmarshalled and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically via a temp file and rename, with 0600
// perms on the result.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, data)
}

// WriteFileAtomic writes data to a temp file in path's directory and renames
// it over path.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".qlcal-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
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

// Save is a convenience method delegating to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
