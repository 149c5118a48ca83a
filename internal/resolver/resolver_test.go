// SPDX-License-Identifier: Apache-2.0

package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plugforge/plugforge/internal/descriptor"
)

type fakePlugin struct {
	name    string
	version int64
	desc    *descriptor.PluginDescriptor
	errs    []string
}

func newFakePlugin(name string, version int64, lang string, deps ...descriptor.PluginReference) *fakePlugin {
	return &fakePlugin{
		name:    name,
		version: version,
		desc: &descriptor.PluginDescriptor{
			LanguageModule: descriptor.LanguageModuleRef{Name: lang},
			Dependencies:   deps,
		},
	}
}

func (p *fakePlugin) Name() string                            { return p.name }
func (p *fakePlugin) Version() int64                           { return p.version }
func (p *fakePlugin) Descriptor() *descriptor.PluginDescriptor { return p.desc }
func (p *fakePlugin) MarkError(reason string)                  { p.errs = append(p.errs, reason) }

type fakeModule struct{ lang string }

func (m fakeModule) Language() string { return m.lang }

const testPlatform descriptor.Platform = "linux-amd64"

func names(plugins []Plugin) []string {
	out := make([]string, len(plugins))
	for i, p := range plugins {
		out[i] = p.Name()
	}
	return out
}

func TestResolve_OrdersDependenciesBeforeDependents(t *testing.T) {
	base := newFakePlugin("base", 1, "lua")
	mid := newFakePlugin("mid", 1, "lua", descriptor.PluginReference{Name: "base"})
	top := newFakePlugin("top", 1, "lua", descriptor.PluginReference{Name: "mid"})

	result := Resolve([]Plugin{top, mid, base}, []Module{fakeModule{"lua"}}, testPlatform)

	require.Empty(t, result.Failed)
	order := names(result.Order)
	require.Equal(t, []string{"base", "mid", "top"}, order)
}

func TestResolve_MissingLanguageModuleFails(t *testing.T) {
	p := newFakePlugin("orphan", 1, "python")
	result := Resolve([]Plugin{p}, nil, testPlatform)

	require.Len(t, result.Failed, 1)
	assert.Empty(t, result.Order)
	assert.Contains(t, p.errs[0], "missing language module")
}

func TestResolve_UnresolvedRequiredDependencyFails(t *testing.T) {
	p := newFakePlugin("needs-x", 1, "lua", descriptor.PluginReference{Name: "x"})
	result := Resolve([]Plugin{p}, []Module{fakeModule{"lua"}}, testPlatform)

	require.Len(t, result.Failed, 1)
	assert.Contains(t, p.errs[0], "unresolved dependency")
}

func TestResolve_OptionalDependencyMissingIsFine(t *testing.T) {
	p := newFakePlugin("has-optional", 1, "lua", descriptor.PluginReference{Name: "x", Optional: true})
	result := Resolve([]Plugin{p}, []Module{fakeModule{"lua"}}, testPlatform)

	require.Empty(t, result.Failed)
	require.Len(t, result.Order, 1)
}

func TestResolve_VersionMismatchFails(t *testing.T) {
	requested := int64(2)
	base := newFakePlugin("base", 1, "lua")
	dependent := newFakePlugin("dependent", 1, "lua", descriptor.PluginReference{Name: "base", RequestedVersion: &requested})

	result := Resolve([]Plugin{base, dependent}, []Module{fakeModule{"lua"}}, testPlatform)

	require.Len(t, result.Failed, 1)
	assert.Equal(t, "dependent", result.Failed[0].Name())
	assert.Contains(t, dependent.errs[0], "version mismatch")
}

func TestResolve_CyclicDependencyFails(t *testing.T) {
	a := newFakePlugin("a", 1, "lua", descriptor.PluginReference{Name: "b"})
	b := newFakePlugin("b", 1, "lua", descriptor.PluginReference{Name: "a"})

	result := Resolve([]Plugin{a, b}, []Module{fakeModule{"lua"}}, testPlatform)

	require.Empty(t, result.Order)
	require.Len(t, result.Failed, 2)
	assert.Contains(t, a.errs[0], "cyclic dependency")
	assert.Contains(t, b.errs[0], "cyclic dependency")
}

func TestResolve_PlatformExcludedDependencyMissingIsFine(t *testing.T) {
	p := newFakePlugin("needs-windows-only", 1, "lua", descriptor.PluginReference{
		Name:               "windows-thing",
		SupportedPlatforms: []descriptor.Platform{"windows-amd64"},
	})
	result := Resolve([]Plugin{p}, []Module{fakeModule{"lua"}}, testPlatform)

	require.Empty(t, result.Failed)
	require.Len(t, result.Order, 1)
}

func TestResolve_PlatformExcludedDependencyDoesNotConstrainOrdering(t *testing.T) {
	windowsOnlyDep := descriptor.PluginReference{
		Name:               "base",
		SupportedPlatforms: []descriptor.Platform{"windows-amd64"},
	}
	base := newFakePlugin("base", 1, "lua")
	dependent := newFakePlugin("dependent", 1, "lua", windowsOnlyDep)

	result := Resolve([]Plugin{dependent, base}, []Module{fakeModule{"lua"}}, testPlatform)

	require.Empty(t, result.Failed)
	// dependent comes first despite naming base as a dependency: the
	// platform-excluded reference added no edge, so discovery order
	// (dependent, base) survives untouched.
	assert.Equal(t, []string{"dependent", "base"}, names(result.Order))
}

func TestResolve_IndependentPluginsBothSucceed(t *testing.T) {
	a := newFakePlugin("a", 1, "lua")
	b := newFakePlugin("b", 1, "lua")

	result := Resolve([]Plugin{a, b}, []Module{fakeModule{"lua"}}, testPlatform)

	require.Empty(t, result.Failed)
	require.Len(t, result.Order, 2)
}
