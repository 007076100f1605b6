// Package config loads tasklist settings from defaults, TOML files,
// environment variables and command-line flags, in that order.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// AppName is the configuration directory name.
	AppName = "tasklist"

	// UserConfigFile is the file name looked up in the user config directory.
	UserConfigFile = "config.toml"

	// ProjectConfigFile is the file name looked up in the working directory.
	ProjectConfigFile = "tasklist.toml"
)

// Defaults.
const (
	DefaultAPIURL   = "https://dummyjson.com"
	DefaultPageSize = 10
	DefaultTimeout  = 10 * time.Second
	DefaultOwnerID  = 1
	DefaultRate     = 5.0
	DefaultBurst    = 5
	DefaultLogLevel = "warn"
	DefaultTheme    = "classic"
)

// PageSizes are the sizes the interactive list cycles through.
var PageSizes = []int{5, 10, 20, 50}

// Config holds every tunable of the client.
type Config struct {
	APIURL            string        `toml:"api_url"`
	PageSize          int           `toml:"page_size"`
	Timeout           time.Duration `toml:"timeout"`
	OwnerID           int           `toml:"owner_id"`
	RequestsPerSecond float64       `toml:"requests_per_second"`
	Burst             int           `toml:"burst"`
	LogLevel          string        `toml:"log_level"`
	LogFile           string        `toml:"log_file"`
	Theme             string        `toml:"theme"`

	// Group lists pending and done separately in `ls`. Flag only.
	Group bool `toml:"-"`
	// ConfigFile is an explicit file passed with -config. Flag only.
	ConfigFile string `toml:"-"`
}

func setDefaults(cfg *Config) {
	cfg.APIURL = DefaultAPIURL
	cfg.PageSize = DefaultPageSize
	cfg.Timeout = DefaultTimeout
	cfg.OwnerID = DefaultOwnerID
	cfg.RequestsPerSecond = DefaultRate
	cfg.Burst = DefaultBurst
	cfg.LogLevel = DefaultLogLevel
	cfg.Theme = DefaultTheme
}

// Default returns a Config populated with defaults only.
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api_url: not an absolute URL: %q", c.APIURL)
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page_size: must be > 0, got %d", c.PageSize)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout: must be > 0, got %s", c.Timeout)
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second: must be >= 0, got %g", c.RequestsPerSecond)
	}
	if c.Burst < 1 {
		return fmt.Errorf("burst: must be >= 1, got %d", c.Burst)
	}
	switch strings.ToLower(c.Theme) {
	case "classic", "neon", "mono":
	default:
		return fmt.Errorf("theme: unknown theme %q (classic, neon, mono)", c.Theme)
	}
	return nil
}

// DefaultConfigDir returns the user configuration directory.
// Uses XDG_CONFIG_HOME if set, otherwise $HOME/.config.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

func expandPath(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
