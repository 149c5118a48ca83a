// SPDX-License-Identifier: Apache-2.0

package runtime

import (
	"path/filepath"

	"github.com/gobwas/glob"

	"github.com/plugforge/plugforge/internal/descriptor"
)

// FindPlugin returns the plugin named name, or nil if none was
// discovered.
func (e *Engine) FindPlugin(name string) *Plugin {
	for _, p := range e.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// FindModule returns the language module for language, or nil if none
// was discovered.
func (e *Engine) FindModule(language string) *Module {
	for _, m := range e.modules {
		if m.Language() == language {
			return m
		}
	}
	return nil
}

// FindPluginByID returns the plugin holding id, or nil if none was
// discovered with it. Mirrors FindPluginFromId on the original's
// plugin manager.
func (e *Engine) FindPluginByID(id uint64) *Plugin {
	for _, p := range e.plugins {
		if p.UniqueID == id {
			return p
		}
	}
	return nil
}

// FindPluginByPath returns the plugin whose descriptor was loaded from
// path, or nil if none was discovered there. Mirrors FindPluginFromPath.
func (e *Engine) FindPluginByPath(path string) *Plugin {
	for _, p := range e.plugins {
		if p.Path == path {
			return p
		}
	}
	return nil
}

// FindPluginByDescriptor returns the plugin matching ref: by name, and
// additionally by exact version if ref.RequestedVersion is set. Mirrors
// FindPluginFromDescriptor.
func (e *Engine) FindPluginByDescriptor(ref descriptor.PluginReference) *Plugin {
	for _, p := range e.plugins {
		if p.Name() != ref.Name {
			continue
		}
		if ref.RequestedVersion != nil && p.Descriptor().Version != *ref.RequestedVersion {
			continue
		}
		return p
	}
	return nil
}

// FindModuleByPath returns the language module whose descriptor was
// loaded from path, or nil if none was discovered there. Mirrors
// FindModuleFromPath.
func (e *Engine) FindModuleByPath(path string) *Module {
	for _, m := range e.modules {
		if m.Path == path {
			return m
		}
	}
	return nil
}

// FindModuleByDescriptor returns the language module ref.Name names,
// equivalent to FindModule but taking the same reference shape a
// plugin's languageModule/dependency entries use. Mirrors
// FindModuleFromDescriptor.
func (e *Engine) FindModuleByDescriptor(ref descriptor.PluginReference) *Module {
	return e.FindModule(ref.Name)
}

// GetPlugins returns every discovered plugin, in load order for those
// that made it into the load order and, appended after, any that
// failed resolution.
func (e *Engine) GetPlugins() []*Plugin {
	out := make([]*Plugin, 0, len(e.plugins))
	seen := make(map[uint64]bool, len(e.order))
	for _, p := range e.order {
		out = append(out, p)
		seen[p.UniqueID] = true
	}
	for _, p := range e.plugins {
		if !seen[p.UniqueID] {
			out = append(out, p)
		}
	}
	return out
}

// GetModules returns every discovered language module.
func (e *Engine) GetModules() []*Module {
	out := make([]*Module, len(e.modules))
	copy(out, e.modules)
	return out
}

// ResolveResource finds resourceName within p's declared
// resourceDirectories, matching resourceDirectories entries as glob
// patterns against the resource's directory component (spec §4.4's
// packaged-resource lookup). It returns the first match's absolute
// path.
func (e *Engine) ResolveResource(p *Plugin, resourceName string) (string, bool) {
	if p == nil {
		return "", false
	}
	for _, pattern := range p.Descriptor().ResourceDirectories {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			continue
		}
		dir := filepath.ToSlash(filepath.Dir(resourceName))
		if g.Match(dir) {
			candidate := filepath.Join(p.ContentDir, resourceName)
			return candidate, true
		}
	}
	// No resourceDirectories declared means the whole content
	// directory is fair game.
	if len(p.Descriptor().ResourceDirectories) == 0 {
		return filepath.Join(p.ContentDir, resourceName), true
	}
	return "", false
}
