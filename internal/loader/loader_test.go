// SPDX-License-Identifier: Apache-2.0

package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_MissingFile(t *testing.T) {
	_, _, err := Open(filepath.Join(t.TempDir(), "does-not-exist.so"), "Entry", nil)
	require.Error(t, err)
}

func TestOpen_NotASharedLibrary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "not-a-library.so")
	require.NoError(t, os.WriteFile(path, []byte("definitely not ELF"), 0o600))

	_, _, err := Open(path, "Entry", nil)
	require.Error(t, err)
}

func TestScopedSearchPath_RestoresPreviousValue(t *testing.T) {
	const key = searchPathEnv
	t.Setenv(key, "/preexisting/path")

	restore := ScopedSearchPath([]string{"/extra/lib"})
	current, ok := os.LookupEnv(key)
	require.True(t, ok)
	assert.Contains(t, current, "/extra/lib")
	assert.Contains(t, current, "/preexisting/path")

	restore()
	after, ok := os.LookupEnv(key)
	require.True(t, ok)
	assert.Equal(t, "/preexisting/path", after)
}

func TestScopedSearchPath_UnsetsWhenPreviouslyUnset(t *testing.T) {
	const key = searchPathEnv
	require.NoError(t, os.Unsetenv(key))

	restore := ScopedSearchPath([]string{"/extra/lib"})
	_, ok := os.LookupEnv(key)
	assert.True(t, ok)

	restore()
	_, ok = os.LookupEnv(key)
	assert.False(t, ok)
}

func TestScopedSearchPath_NoOpForEmptyDirs(t *testing.T) {
	const key = searchPathEnv
	require.NoError(t, os.Unsetenv(key))

	restore := ScopedSearchPath(nil)
	_, ok := os.LookupEnv(key)
	assert.False(t, ok, "no dirs means no environment mutation at all")
	restore()
}
