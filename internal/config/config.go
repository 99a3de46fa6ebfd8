// Package config loads crewgrid settings from a TOML file with environment
// overrides. Precedence is flags > environment > file > defaults; flag
// application happens in the CLI layer, this package resolves the rest.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Server ServerConfig `toml:"server"`
	Grid   GridConfig   `toml:"grid"`
	Scope  ScopeConfig  `toml:"scope"`
	Debug  DebugConfig  `toml:"debug"`
}

type ServerConfig struct {
	// URL is the planning server the grid talks to.
	URL string `toml:"url"`
	// Addr and DB configure `crewgrid serve`.
	Addr string `toml:"addr"`
	DB   string `toml:"db"`
}

type GridConfig struct {
	// Weeks is the horizon (number of week columns) requested on load.
	Weeks int `toml:"weeks"`
}

type ScopeConfig struct {
	Department string `toml:"department"`
	Vertical   string `toml:"vertical"`
}

type DebugConfig struct {
	// Log is a file path for TUI debug logging; empty disables it.
	Log string `toml:"log"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			URL:  "http://127.0.0.1:8787",
			Addr: "127.0.0.1:8787",
			DB:   "crewgrid.db",
		},
		Grid: GridConfig{Weeks: 12},
	}
}

// Path returns the config file location: $CREWGRID_CONFIG if set, else
// ~/.config/crewgrid/config.toml.
func Path() (string, error) {
	if v := strings.TrimSpace(os.Getenv("CREWGRID_CONFIG")); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "crewgrid", "config.toml"), nil
}

// Load reads the file at path (missing file is not an error; defaults apply)
// and applies environment overrides on top.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		p, err := Path()
		if err != nil {
			return nil, err
		}
		path = p
	}
	data, err := os.ReadFile(path)
	if err == nil {
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("CREWGRID_SERVER")); v != "" {
		cfg.Server.URL = v
	}
	if v := strings.TrimSpace(os.Getenv("CREWGRID_WEEKS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Grid.Weeks = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("CREWGRID_DEPARTMENT")); v != "" {
		cfg.Scope.Department = v
	}
	if v := strings.TrimSpace(os.Getenv("CREWGRID_VERTICAL")); v != "" {
		cfg.Scope.Vertical = v
	}
	if v := strings.TrimSpace(os.Getenv("CREWGRID_DEBUG_LOG")); v != "" {
		cfg.Debug.Log = v
	}
}

// Save writes the config as TOML, creating parent directories as needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		p, err := Path()
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
