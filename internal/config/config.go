// SPDX-License-Identifier: Apache-2.0

// Package config loads plugforge's configuration from a YAML file merged
// with CLI flags, using the koanf stack.
package config

import (
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Config holds the settings that drive a plugforge process: where to
// discover language modules and plugins, which package repositories
// to query, log verbosity, and the loader's symbol-resolution
// preference.
type Config struct {
	BaseDir          string   `koanf:"baseDir"`
	Repositories     []string `koanf:"repositories"`
	LogSeverity      string   `koanf:"logSeverity"`
	PreferOwnSymbols bool     `koanf:"preferOwnSymbols"`
}

// RegisterFlags adds the flags Load reads back via posflag to the
// given flag set, so a cobra command can expose them without
// duplicating field names.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("baseDir", "", "base directory to discover language modules and plugins under")
	flags.StringSlice("repositories", nil, "package repository URLs to query")
	flags.String("logSeverity", "", "minimum log severity (debug, info, warn, error)")
	flags.Bool("preferOwnSymbols", false, "favor a plugin's own exported symbol over one resolved from another loaded plugin")
}

// Default returns the configuration used when no file or flags
// override it.
func Default() Config {
	return Config{
		BaseDir:          ".",
		LogSeverity:      "info",
		PreferOwnSymbols: false,
	}
}

// Load merges, in increasing priority, the built-in defaults, an
// optional YAML config file, and CLI flags bound to the given flag
// set. path may be empty, in which case only defaults and flags
// apply.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	def := Default()
	if err := k.Load(confmap.Provider(map[string]any{
		"baseDir":          def.BaseDir,
		"repositories":     def.Repositories,
		"logSeverity":      def.LogSeverity,
		"preferOwnSymbols": def.PreferOwnSymbols,
	}, "."), nil); err != nil {
		return Config{}, err
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, err
		}
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
