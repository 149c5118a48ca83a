// SPDX-License-Identifier: Apache-2.0

package plugforge

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plugforge/plugforge/internal/config"
	"github.com/plugforge/plugforge/internal/languagemodule/fake"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestRuntime_InitializeLoadsPlugins(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "modules", "fake", "fake.module"), `{"fileVersion":1,"version":1,"language":"fake"}`)
	writeFile(t, filepath.Join(dir, "plugins", "greeter", "greeter.plugin"), `{
		"fileVersion": 1, "version": 1, "entryPoint": "greeter.bin",
		"languageModule": {"name": "fake"}
	}`)

	r := New(config.Config{BaseDir: dir}, nil)
	r.RegisterHost("fake", fake.NewHost())
	require.NoError(t, r.Initialize(context.Background()))

	p := r.Engine.FindPlugin("greeter")
	require.NotNil(t, p)
	assert.Equal(t, "greeter", p.Name())

	r.Shutdown(context.Background())
}

func TestRuntime_WatchForChangesTriggersReinitialize(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "modules", "fake", "fake.module"), `{"fileVersion":1,"version":1,"language":"fake"}`)

	r := New(config.Config{BaseDir: dir}, nil)
	r.RegisterHost("fake", fake.NewHost())
	require.NoError(t, r.Initialize(context.Background()))
	assert.Nil(t, r.Engine.FindPlugin("late"))

	require.NoError(t, r.WatchForChanges(20*time.Millisecond))
	defer r.Shutdown(context.Background())

	writeFile(t, filepath.Join(dir, "plugins", "late", "late.plugin"), `{
		"fileVersion": 1, "version": 1, "entryPoint": "late.bin",
		"languageModule": {"name": "fake"}
	}`)

	require.Eventually(t, func() bool {
		return r.Engine.FindPlugin("late") != nil
	}, 2*time.Second, 20*time.Millisecond, "watcher did not re-initialize after a new plugin appeared")
}
