package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Load builds a Config from, in increasing priority:
// 1. Defaults
// 2. User config file ($XDG_CONFIG_HOME/tasklist/config.toml)
// 3. Project config file (tasklist.toml in the working directory), or -config
// 4. Environment variables (TASKLIST_*)
// 5. Flags parsed from args with fs
//
// Flags are parsed twice: once to discover -config, once to override.
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	cfg := &Config{}
	setDefaults(cfg)

	if fs == nil {
		fs = flag.NewFlagSet(AppName, flag.ContinueOnError)
	}
	explicit := peekConfigFlag(args)

	if err := loadIfExists(cfg, filepath.Join(DefaultConfigDir(), UserConfigFile)); err != nil {
		return nil, err
	}
	if explicit != "" {
		if _, err := toml.DecodeFile(expandPath(explicit), cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", explicit, err)
		}
	} else if err := loadIfExists(cfg, ProjectConfigFile); err != nil {
		return nil, err
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, err
	}

	bindFlags(cfg, fs)
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	cfg.LogFile = expandPath(cfg.LogFile)
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadIfExists(cfg *Config, path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat config file %s: %w", path, err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("loading config file %s: %w", path, err)
	}
	return nil
}

// peekConfigFlag finds -config/--config before the flag set is parsed.
func peekConfigFlag(args []string) string {
	for i, a := range args {
		if a == "--" {
			return ""
		}
		if !strings.HasPrefix(a, "-") {
			continue
		}
		name := strings.TrimLeft(a, "-")
		if v, ok := strings.CutPrefix(name, "config="); ok {
			return v
		}
		if name == "config" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func bindFlags(cfg *Config, fs *flag.FlagSet) {
	fs.StringVar(&cfg.ConfigFile, "config", cfg.ConfigFile, "Path to a TOML config file")
	fs.StringVar(&cfg.APIURL, "api", cfg.APIURL, "Base URL of the todo service")
	fs.IntVar(&cfg.PageSize, "limit", cfg.PageSize, "Todos per page")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Per-request timeout")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Write logs to this file")
	fs.StringVar(&cfg.Theme, "theme", cfg.Theme, "Output theme (classic, neon, mono)")
	fs.BoolVar(&cfg.Group, "group", cfg.Group, "Group `ls` output by pending/done")
}

// loadFromEnv overrides config from TASKLIST_* variables.
func loadFromEnv(cfg *Config) error {
	if v := os.Getenv("TASKLIST_API_URL"); v != "" {
		cfg.APIURL = v
	}
	if v := os.Getenv("TASKLIST_PAGE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TASKLIST_PAGE_SIZE: %w", err)
		}
		cfg.PageSize = n
	}
	if v := os.Getenv("TASKLIST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("TASKLIST_TIMEOUT: %w", err)
		}
		cfg.Timeout = d
	}
	if v := os.Getenv("TASKLIST_OWNER_ID"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TASKLIST_OWNER_ID: %w", err)
		}
		cfg.OwnerID = n
	}
	if v := os.Getenv("TASKLIST_RATE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("TASKLIST_RATE: %w", err)
		}
		cfg.RequestsPerSecond = f
	}
	if v := os.Getenv("TASKLIST_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("TASKLIST_LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	if v := os.Getenv("TASKLIST_THEME"); v != "" {
		cfg.Theme = v
	}
	return nil
}
