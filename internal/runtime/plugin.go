// SPDX-License-Identifier: Apache-2.0

package runtime

import (
	"github.com/plugforge/plugforge/internal/descriptor"
)

// PluginState is a plugin's lifecycle state.
type PluginState int

// Plugin lifecycle states, per spec §3.
const (
	PluginNotLoaded PluginState = iota
	PluginLoaded
	PluginRunning
	PluginTerminating
	PluginError
)

func (s PluginState) String() string {
	switch s {
	case PluginNotLoaded:
		return "not_loaded"
	case PluginLoaded:
		return "loaded"
	case PluginRunning:
		return "running"
	case PluginTerminating:
		return "terminating"
	case PluginError:
		return "error"
	default:
		return "unknown"
	}
}

// Plugin is a discovered plugin and its lifecycle state. ModuleLanguage
// is a borrowed key into the engine's module set, not a pointer,
// matching Module's own no-back-pointer discipline.
type Plugin struct {
	UniqueID   uint64
	desc       *descriptor.PluginDescriptor
	Path       string
	BaseDir    string
	ContentDir string

	ModuleLanguage string

	State PluginState
	Error string
}

// newPlugin allocates a Plugin, assigning it the UniqueID e has on
// record for its name, or the next one if this name has never been
// seen before (spec §8 Property 1: unchanged plugins keep their
// UniqueId across consecutive discoveries; the first plugin ever
// discovered gets id 0).
func (e *Engine) newPlugin(d *descriptor.PluginDescriptor, path, baseDir, contentDir string) *Plugin {
	name := d.Name()
	id, ok := e.pluginIDs[name]
	if !ok {
		id = e.nextPluginID
		e.nextPluginID++
		e.pluginIDs[name] = id
	}
	return &Plugin{
		UniqueID:       id,
		desc:           d,
		Path:           path,
		BaseDir:        baseDir,
		ContentDir:     contentDir,
		ModuleLanguage: d.LanguageModule.Name,
		State:          PluginNotLoaded,
	}
}

// Descriptor returns the plugin's descriptor, satisfying
// internal/resolver.Plugin.
func (p *Plugin) Descriptor() *descriptor.PluginDescriptor { return p.desc }

// Name returns the plugin's identity, satisfying internal/resolver.Plugin.
func (p *Plugin) Name() string { return p.desc.Name() }

// Version returns the plugin's descriptor version, satisfying
// internal/resolver.Plugin.
func (p *Plugin) Version() int64 { return p.desc.Version }

// MarkError transitions the plugin to Error and records why,
// satisfying internal/resolver.Plugin.
func (p *Plugin) MarkError(reason string) {
	p.State = PluginError
	p.Error = reason
}

// MarkLoaded transitions the plugin to Loaded.
func (p *Plugin) MarkLoaded() { p.State = PluginLoaded }

// MarkRunning transitions the plugin to Running.
func (p *Plugin) MarkRunning() { p.State = PluginRunning }

// MarkTerminating transitions the plugin to Terminating, ahead of an
// OnEndPlugin call.
func (p *Plugin) MarkTerminating() { p.State = PluginTerminating }
