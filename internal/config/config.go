package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// APIConfig points at the OpsFlux backend REST API.
type APIConfig struct {
	// BaseURL is the API root, e.g. "https://ops.example.com/api/v1".
	BaseURL string `yaml:"base_url" json:"base_url"`
	// Token, if set, is sent as "Authorization: Bearer <token>".
	Token string `yaml:"token,omitempty" json:"-"`
	// TimeoutSeconds bounds a single HTTP call.
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// FeedConfig describes an external ICS subscription merged into the calendar
// (public holidays, company events).
type FeedConfig struct {
	ID    string `yaml:"id" json:"id"`
	Name  string `yaml:"name" json:"name"`
	URL   string `yaml:"url" json:"url"`
	Color string `yaml:"color" json:"color"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone used for date keys and "today" (e.g. "Europe/Paris").
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron is a cron schedule for re-fetching source data.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// CaptureCron, if set, captures the calendar page to PreviewPath on that schedule.
	CaptureCron string `yaml:"capture,omitempty" json:"capture,omitempty"`

	// LogLevel is one of debug, info, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	API APIConfig `yaml:"api" json:"api"`

	// FetchConcurrency bounds concurrent per-project task requests.
	FetchConcurrency int `yaml:"fetch_concurrency" json:"fetch_concurrency"`

	// IncludeArchived also loads archived projects.
	IncludeArchived bool `yaml:"include_archived" json:"include_archived"`

	// AppBaseURL prefixes navigation targets (task creation, detail routes).
	// Empty means relative URLs.
	AppBaseURL string `yaml:"app_base_url" json:"app_base_url"`

	Feeds []FeedConfig `yaml:"feeds" json:"feeds"`

	// CacheDir holds the ICS feed HTTP cache.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// PreviewPath is where captured PNGs are written and served from.
	PreviewPath string `yaml:"preview_path" json:"preview_path"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen           = "127.0.0.1:8080"
	defaultTimezone         = "Europe/Paris"
	defaultRefreshCron      = "*/15 * * * *"
	defaultTimeoutSeconds   = 15
	defaultFetchConcurrency = 4
	defaultCacheDir         = "/var/lib/opsplan/ics-cache"
	defaultPreviewPath      = "/var/lib/opsplan/preview.png"
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      defaultListen,
		Timezone:    defaultTimezone,
		RefreshCron: defaultRefreshCron,
		LogLevel:    "info",
		API: APIConfig{
			BaseURL:        "http://127.0.0.1:8000/api/v1",
			TimeoutSeconds: defaultTimeoutSeconds,
		},
		FetchConcurrency: defaultFetchConcurrency,
		Feeds:            []FeedConfig{},
		CacheDir:         defaultCacheDir,
		PreviewPath:      defaultPreviewPath,
	}
}

// Normalize fills in missing/zero values so partially-filled configs still work.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "error":
		c.LogLevel = strings.ToLower(c.LogLevel)
	default:
		c.LogLevel = "info"
	}
	c.API.BaseURL = strings.TrimRight(c.API.BaseURL, "/")
	if c.API.TimeoutSeconds <= 0 {
		c.API.TimeoutSeconds = defaultTimeoutSeconds
	}
	if c.FetchConcurrency <= 0 {
		c.FetchConcurrency = defaultFetchConcurrency
	}
	c.AppBaseURL = strings.TrimRight(c.AppBaseURL, "/")
	if c.Feeds == nil {
		c.Feeds = []FeedConfig{}
	}
	for i := range c.Feeds {
		if c.Feeds[i].ID == "" {
			if c.Feeds[i].Name != "" {
				c.Feeds[i].ID = c.Feeds[i].Name
			} else {
				c.Feeds[i].ID = c.Feeds[i].URL
			}
		}
		if c.Feeds[i].Color == "" {
			c.Feeds[i].Color = "gray"
		}
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	if c.PreviewPath == "" {
		c.PreviewPath = defaultPreviewPath
	}
}

// Validate reports configuration that Normalize cannot repair.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("config: api.base_url is required")
	}
	if c.BasicAuth != nil && (c.BasicAuth.Username == "") != (c.BasicAuth.Password == "") {
		return errors.New("config: basic_auth needs both username and password")
	}
	return nil
}

// Load loads configuration from the given YAML path.
//
// If the file does not exist, a default config is written there with 0600
// permissions and returned. Otherwise the YAML is read and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600 perms,
// creating the parent directory (0700) when needed.
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

	tmp, err := os.CreateTemp(dir, ".opsplan-config-*.tmp")
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

// Save is a convenience method delegating to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
