// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plugforge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("baseDir: /srv/plugforge\nlogSeverity: debug\n"), 0o600))

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "/srv/plugforge", cfg.BaseDir)
	assert.Equal(t, "debug", cfg.LogSeverity)
	assert.False(t, cfg.PreferOwnSymbols, "unset fields keep their default")
}

func TestLoad_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plugforge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("baseDir: /from/file\n"), 0o600))

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	require.NoError(t, flags.Parse([]string{"--baseDir=/from/flag"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, "/from/flag", cfg.BaseDir)
}

func TestLoad_UnsetFlagsDoNotClobberFileValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plugforge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("baseDir: /from/file\nlogSeverity: warn\n"), 0o600))

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	require.NoError(t, flags.Parse(nil))

	cfg, err := Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, "/from/file", cfg.BaseDir, "an unset flag must not override the file value with its zero default")
	assert.Equal(t, "warn", cfg.LogSeverity)
}

func TestLoad_MissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"), nil)
	require.Error(t, err)
}

func TestLoad_RepositoriesFromFlags(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	require.NoError(t, flags.Parse([]string{"--repositories=https://a.example/index.json,https://b.example/index.json"}))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example/index.json", "https://b.example/index.json"}, cfg.Repositories)
}
