package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend names accepted in Config.Backend.
const (
	BackendHTTP      = "http"
	BackendFirestore = "firestore"
	BackendSQLite    = "sqlite"
)

// DefaultPath is read when --config is not given. A missing file is not an error.
const DefaultPath = "sunshade.yaml"

// API configures the REST backend.
type API struct {
	BaseURL   string        `yaml:"base_url"`
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
}

// Firestore configures the document store backend.
type Firestore struct {
	ProjectID       string `yaml:"project_id"`
	CredentialsFile string `yaml:"credentials_file"`
}

// SQLite configures the local backend.
type SQLite struct {
	DSN string `yaml:"dsn"`
}

// CalDAV configures publishing events to a personal calendar.
type CalDAV struct {
	Endpoint string `yaml:"endpoint"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Calendar string `yaml:"calendar"`
}

// Config is the top-level application configuration.
type Config struct {
	// Backend selects the event store: "http", "firestore" or "sqlite".
	Backend   string    `yaml:"backend"`
	API       API       `yaml:"api"`
	Firestore Firestore `yaml:"firestore"`
	SQLite    SQLite    `yaml:"sqlite"`
	CalDAV    CalDAV    `yaml:"caldav"`

	// Timezone is the IANA zone that defines "today" and formats dates.
	Timezone string `yaml:"timezone"`
	// ShareBaseURL prefixes event ids in shared links.
	ShareBaseURL string `yaml:"share_base_url"`
	LogLevel     string `yaml:"log_level"`
	// TokenDir holds token-<account>.json files written by the auth command.
	TokenDir string `yaml:"token_dir"`
	// Account selects which saved token to use. Empty picks the only one, if any.
	Account string `yaml:"account"`
}

// Default returns an in-memory default configuration.
func Default() *Config {
	c := &Config{}
	c.Normalize()
	return c
}

// Normalize fills in missing values with defaults.
func (c *Config) Normalize() {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	if c.Backend == "" {
		c.Backend = BackendHTTP
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = "https://uic.sunshade.app/api"
	}
	if c.API.Timeout <= 0 {
		c.API.Timeout = 10 * time.Second
	}
	if c.API.UserAgent == "" {
		c.API.UserAgent = "sunshade/1.0"
	}
	if c.SQLite.DSN == "" {
		c.SQLite.DSN = "file:sunshade.db?cache=shared&mode=rwc"
	}
	if c.CalDAV.Endpoint == "" {
		c.CalDAV.Endpoint = "https://caldav.icloud.com/"
	}
	if c.Timezone == "" {
		c.Timezone = "America/Chicago"
	}
	if c.ShareBaseURL == "" {
		c.ShareBaseURL = "https://uic.sunshade.app/event/"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.TokenDir == "" {
		c.TokenDir = "."
	}
}

// Validate checks settings that Normalize cannot default.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendHTTP, BackendSQLite:
	case BackendFirestore:
		if c.Firestore.ProjectID == "" {
			return errors.New("firestore backend needs a project id (FIRESTORE_PROJECT_ID)")
		}
	default:
		return fmt.Errorf("unknown backend %q, expected http, firestore or sqlite", c.Backend)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone '%s': %w", c.Timezone, err)
	}
	return nil
}

// Location returns the configured timezone, or UTC if it does not load.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Load reads the YAML file at path, applies environment overrides and
// normalizes the result. A missing file yields the defaults. A non-empty
// backend takes precedence over both the file and the environment.
func Load(path, backend string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse yaml: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if backend != "" {
		cfg.Backend = backend
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overrides file values with environment variables.
func (c *Config) applyEnv(getenv func(string) string) error {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.Backend, "SUNSHADE_BACKEND")
	set(&c.API.BaseURL, "SUNSHADE_API_URL")
	set(&c.Firestore.ProjectID, "FIRESTORE_PROJECT_ID")
	set(&c.Firestore.CredentialsFile, "GOOGLE_APPLICATION_CREDENTIALS")
	set(&c.Account, "SUNSHADE_ACCOUNT")
	set(&c.SQLite.DSN, "SUNSHADE_SQLITE_DSN")
	set(&c.CalDAV.Endpoint, "CALDAV_ENDPOINT")
	set(&c.CalDAV.Username, "CALDAV_USERNAME")
	set(&c.CalDAV.Password, "CALDAV_PASSWORD")
	set(&c.CalDAV.Calendar, "CALDAV_CALENDAR_NAME")
	set(&c.Timezone, "PRIMARY_TIMEZONE")
	set(&c.ShareBaseURL, "SUNSHADE_SHARE_URL")
	set(&c.LogLevel, "LOG_LEVEL")
	set(&c.TokenDir, "SUNSHADE_TOKEN_DIR")

	if v := getenv("SUNSHADE_API_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid SUNSHADE_API_TIMEOUT '%s': %w", v, err)
		}
		c.API.Timeout = d
	}
	return nil
}
