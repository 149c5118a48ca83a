// SPDX-License-Identifier: Apache-2.0

// Package runtime is the lifecycle engine (spec §4.1, §9): it drives
// discovery, resolution, and per-entity state transitions for modules
// and plugins, and exposes the public query surface over the result.
package runtime

import (
	"github.com/plugforge/plugforge/internal/descriptor"
)

// ModuleState is a language module's lifecycle state.
type ModuleState int

// Module lifecycle states, per spec §3.
const (
	ModuleNotLoaded ModuleState = iota
	ModuleLoaded
	ModuleError
)

func (s ModuleState) String() string {
	switch s {
	case ModuleNotLoaded:
		return "not_loaded"
	case ModuleLoaded:
		return "loaded"
	case ModuleError:
		return "error"
	default:
		return "unknown"
	}
}

// Module is a discovered language module and its lifecycle state. Its
// only reference to the engine that owns it is by language tag, not a
// pointer, so nothing in this package can form a reference cycle (spec
// §9: back-references are borrowed, index/key based).
type Module struct {
	Descriptor *descriptor.LanguageModuleDescriptor
	Path       string
	BaseDir    string
	State      ModuleState
	Error      string
}

// Language returns the module's language tag, satisfying
// internal/resolver.Module.
func (m *Module) Language() string { return m.Descriptor.Language }

// MarkLoaded transitions the module to Loaded, clearing any prior error.
func (m *Module) MarkLoaded() {
	m.State = ModuleLoaded
	m.Error = ""
}

// MarkError transitions the module to Error and records why. Per spec
// §9's "no throw across module boundaries," this is the only way a
// module load failure becomes visible — never a panic.
func (m *Module) MarkError(reason string) {
	m.State = ModuleError
	m.Error = reason
}
