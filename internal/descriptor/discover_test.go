// SPDX-License-Identifier: Apache-2.0

package descriptor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDescriptorFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestDiscover_FindsModulesAndPlugins(t *testing.T) {
	dir := t.TempDir()
	writeDescriptorFile(t, filepath.Join(dir, "modules", "lua", "lua.module"), `{"fileVersion":1,"version":1,"language":"lua"}`)
	writeDescriptorFile(t, filepath.Join(dir, "plugins", "hello", "hello.plugin"), `{
		"fileVersion": 1, "version": 1, "entryPoint": "hello.lua",
		"languageModule": {"name": "lua"}
	}`)

	result, err := Discover(dir, Platform("linux-amd64"), nil)
	require.NoError(t, err)
	require.Len(t, result.Modules, 1)
	require.Len(t, result.Plugins, 1)
	assert.Equal(t, "lua", result.Modules[0].Descriptor.Language)
	assert.Equal(t, "hello", result.Plugins[0].Descriptor.Name())
}

func TestDiscover_PlatformFiltering(t *testing.T) {
	dir := t.TempDir()
	writeDescriptorFile(t, filepath.Join(dir, "modules", "lua", "lua.module"), `{"fileVersion":1,"version":1,"language":"lua","supportedPlatforms":["windows-x64"]}`)

	result, err := Discover(dir, Platform("linux-amd64"), nil)
	require.NoError(t, err)
	assert.Empty(t, result.Modules)
}

func TestDiscover_SkipsInvalidDescriptorsWithoutAborting(t *testing.T) {
	dir := t.TempDir()
	writeDescriptorFile(t, filepath.Join(dir, "modules", "bad", "bad.module"), `not json`)
	writeDescriptorFile(t, filepath.Join(dir, "modules", "lua", "lua.module"), `{"fileVersion":1,"version":1,"language":"lua"}`)

	result, err := Discover(dir, Platform("linux-amd64"), nil)
	require.NoError(t, err)
	require.Len(t, result.Modules, 1)
	assert.Equal(t, "lua", result.Modules[0].Descriptor.Language)
}

func TestDiscover_DedupeKeepsHighestVersion(t *testing.T) {
	dir := t.TempDir()
	writeDescriptorFile(t, filepath.Join(dir, "modules", "a", "lua.module"), `{"fileVersion":1,"version":1,"language":"lua"}`)
	writeDescriptorFile(t, filepath.Join(dir, "modules", "b", "lua.module"), `{"fileVersion":1,"version":3,"language":"lua"}`)

	result, err := Discover(dir, Platform("linux-amd64"), nil)
	require.NoError(t, err)
	require.Len(t, result.Modules, 1)
	assert.EqualValues(t, 3, result.Modules[0].Descriptor.Version)
}

func TestDiscover_BeyondMaxDepthIsIgnored(t *testing.T) {
	dir := t.TempDir()
	deep := filepath.Join(dir, "a", "b", "c", "d", "too-deep.module")
	writeDescriptorFile(t, deep, `{"fileVersion":1,"version":1,"language":"lua"}`)

	result, err := Discover(dir, Platform("linux-amd64"), nil)
	require.NoError(t, err)
	assert.Empty(t, result.Modules)
}

func TestDiscover_MissingBaseDirIsNotAnError(t *testing.T) {
	result, err := Discover(filepath.Join(t.TempDir(), "does-not-exist"), Platform("linux-amd64"), nil)
	require.NoError(t, err)
	assert.Empty(t, result.Modules)
	assert.Empty(t, result.Plugins)
}
