// SPDX-License-Identifier: Apache-2.0

// Package xdg resolves XDG Base Directory paths for plugforge.
package xdg

import (
	"fmt"
	"os"
	"path/filepath"
)

const appName = "plugforge"

func resolve(envVar, fallbackBase string) (string, error) {
	base := os.Getenv(envVar)
	if base != "" {
		return filepath.Join(base, appName), nil
	}
	home := os.Getenv("HOME")
	if home == "" {
		return "", fmt.Errorf("xdg: HOME is not set and %s is not set", envVar)
	}
	return filepath.Join(home, fallbackBase, appName), nil
}

// ConfigDir returns the XDG config directory for plugforge: where
// config.yaml and repository lists live. Checks XDG_CONFIG_HOME
// first, falls back to ~/.config.
func ConfigDir() (string, error) {
	return resolve("XDG_CONFIG_HOME", ".config")
}

// DataDir returns the XDG data directory for plugforge: the default
// base directory plugins and language modules are discovered under.
// Checks XDG_DATA_HOME first, falls back to ~/.local/share.
func DataDir() (string, error) {
	return resolve("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

// StateDir returns the XDG state directory for plugforge: where the
// package manifest snapshot is written. Checks XDG_STATE_HOME first,
// falls back to ~/.local/state.
func StateDir() (string, error) {
	return resolve("XDG_STATE_HOME", filepath.Join(".local", "state"))
}

// RuntimeDir returns the XDG runtime directory for plugforge. Checks
// XDG_RUNTIME_DIR first, falls back to StateDir()/run.
func RuntimeDir() (string, error) {
	base := os.Getenv("XDG_RUNTIME_DIR")
	if base == "" {
		state, err := StateDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(state, "run"), nil
	}
	return filepath.Join(base, appName), nil
}

// CertsDir returns the directory archive-verification keys are read
// from, for callers that opt into a non-default VerifyFunc.
func CertsDir() (string, error) {
	cfg, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfg, "certs"), nil
}

// EnsureDir creates a directory and all parent directories if they
// don't exist, with 0700 permissions.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return nil
}
