// Package config loads optional defaults from a TOML file. A missing file
// is not an error; flags on the command line always win.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds report defaults a user can persist instead of repeating
// flags on every run.
type Config struct {
	All         bool     `toml:"all"`
	MPX         bool     `toml:"mpx"`
	CPUID       []string `toml:"cpuid"`
	IgnoreCPUID []string `toml:"ignore_cpuid"`
}

// Path returns the config file location: $CPUFEAT_CONFIG if set, otherwise
// ~/.config/cpufeat/config.toml.
func Path() string {
	if p := os.Getenv("CPUFEAT_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "cpufeat", "config.toml")
}

// Load reads the config file at Path. A missing file yields the zero
// Config; a malformed one is an error.
func Load() (Config, error) {
	var cfg Config
	p := Path()
	if p == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(p, &cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("load config %q: %w", p, err)
	}
	return cfg, nil
}
