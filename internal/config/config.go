// Package config loads tada settings from ~/.tada/config.toml and the
// environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/Makepad-fr/tada-client/internal/model"
)

const (
	DefaultAPIURL         = "http://localhost:8000/api"
	DefaultTimeout        = 10 * time.Second
	DefaultPageSize       = 100
	DefaultLogLevel       = "warn"
	DefaultTheme          = "classic"
	DefaultSearchDebounce = 300 * time.Millisecond

	configFileName = "config.toml"
	credFileName   = "credentials.json"
	logFileName    = "tada.log"
)

// Duration decodes TOML strings such as "10s" or "300ms".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config holds every tunable of the client.
type Config struct {
	APIURL          string   `toml:"api_url"`
	Timeout         Duration `toml:"timeout"`
	PageSize        int      `toml:"page_size"`
	Theme           string   `toml:"theme"`
	LogLevel        string   `toml:"log_level"`
	LogFile         string   `toml:"log_file"`
	CredentialsFile string   `toml:"credentials_file"`
	SearchDebounce  Duration `toml:"search_debounce"`
	DefaultSort     string   `toml:"default_sort"`
	DefaultOrder    string   `toml:"default_order"`

	// Path is the file the config was read from, empty when defaults only.
	Path string `toml:"-"`
	// Unknown lists keys present in the file that no field consumed.
	Unknown []string `toml:"-"`
}

// Dir returns ~/.tada.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home: %w", err)
	}
	return filepath.Join(home, ".tada"), nil
}

// Default returns the built-in settings.
func Default() *Config {
	cfg := &Config{
		APIURL:         DefaultAPIURL,
		Timeout:        Duration{DefaultTimeout},
		PageSize:       DefaultPageSize,
		Theme:          DefaultTheme,
		LogLevel:       DefaultLogLevel,
		SearchDebounce: Duration{DefaultSearchDebounce},
		DefaultSort:    string(model.SortCreatedAt),
		DefaultOrder:   string(model.Desc),
	}
	if dir, err := Dir(); err == nil {
		cfg.CredentialsFile = filepath.Join(dir, credFileName)
		cfg.LogFile = filepath.Join(dir, logFileName)
	}
	return cfg
}

// Load reads the config file and applies environment overrides.
// Lookup order for the file: explicit path, $TADA_CONFIG, ~/.tada/config.toml.
// A missing default file is not an error; a missing explicit file is.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = os.Getenv("TADA_CONFIG")
		explicit = path != ""
	}
	if !explicit {
		if dir, err := Dir(); err == nil {
			path = filepath.Join(dir, configFileName)
		}
	}

	if path != "" {
		md, err := toml.DecodeFile(path, cfg)
		switch {
		case err == nil:
			cfg.Path = path
			for _, k := range md.Undecoded() {
				cfg.Unknown = append(cfg.Unknown, k.String())
			}
		case errors.Is(err, os.ErrNotExist) && !explicit:
			// defaults only
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg.applyEnv(os.Getenv)
	cfg.expandPaths()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := strings.TrimSpace(getenv("TADA_API_URL")); v != "" {
		c.APIURL = v
	}
	if v := strings.TrimSpace(getenv("TADA_LOG_LEVEL")); v != "" {
		c.LogLevel = v
	}
	if v := strings.TrimSpace(getenv("TADA_THEME")); v != "" {
		c.Theme = v
	}
	if v := strings.TrimSpace(getenv("TADA_PAGE_SIZE")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.PageSize = n
		}
	}
}

func (c *Config) expandPaths() {
	c.CredentialsFile = expandHome(c.CredentialsFile)
	c.LogFile = expandHome(c.LogFile)
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

// Validate rejects settings the client cannot run with.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: api_url must be an absolute URL, got %q", c.APIURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("config: api_url scheme must be http or https, got %q", u.Scheme)
	}
	if c.Timeout.Duration <= 0 {
		return fmt.Errorf("config: timeout must be positive")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("config: page_size must be positive")
	}
	if c.SearchDebounce.Duration < 0 {
		return fmt.Errorf("config: search_debounce cannot be negative")
	}
	if c.CredentialsFile == "" {
		return fmt.Errorf("config: credentials_file is not set and no home directory was found")
	}
	if _, err := model.ParseSortKey(c.DefaultSort); err != nil {
		return fmt.Errorf("config: default_sort: %w", err)
	}
	if _, err := model.ParseSortOrder(c.DefaultOrder); err != nil {
		return fmt.Errorf("config: default_order: %w", err)
	}
	return nil
}

// ViewSpec is the spec used by plain `tada ls` and for index lookups.
func (c *Config) ViewSpec() model.FilterSortSpec {
	spec := model.DefaultSpec()
	if k, err := model.ParseSortKey(c.DefaultSort); err == nil {
		spec.SortBy = k
	}
	if o, err := model.ParseSortOrder(c.DefaultOrder); err == nil {
		spec.Order = o
	}
	return spec
}
