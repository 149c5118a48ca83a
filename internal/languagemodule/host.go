// SPDX-License-Identifier: Apache-2.0

// Package languagemodule defines the contract the lifecycle engine uses
// to talk to a language module (spec §3, §4.4): the thing that turns a
// plugin's entry point into loaded code and exposes its exported
// methods as callables.
//
// Every exported method is invoked through the same packed-argument
// shape used by the JIT call-bridge: one uint64 lane per parameter,
// one uint64 lane back. What a language module does with those lanes
// is its own business — the native module hands them to purego
// trampolines over real machine registers, the Lua module converts
// them to Lua values and back. The engine never needs to know which.
package languagemodule

import (
	"context"

	"github.com/plugforge/plugforge/internal/descriptor"
)

// Host is implemented once per supported language.
type Host interface {
	// Initialize prepares the host for use, e.g. opening its own
	// shared library or allocating a shared interpreter pool.
	Initialize(ctx context.Context) error

	// Shutdown releases every resource the host owns, including any
	// plugins still loaded under it.
	Shutdown(ctx context.Context) error

	// OnLoadPlugin loads a plugin's entry point (relative to
	// contentDir) and prepares its exported methods for invocation.
	// It does not run any plugin-defined start-up logic.
	OnLoadPlugin(ctx context.Context, p *descriptor.PluginDescriptor, contentDir string) error

	// OnStartPlugin runs a previously loaded plugin's start-up hook,
	// if the language convention defines one.
	OnStartPlugin(ctx context.Context, name string) error

	// OnEndPlugin runs a previously loaded plugin's shutdown hook and
	// releases its language-side state, removing the plugin from the
	// host; a subsequent OnLoadPlugin under the same name loads it
	// afresh.
	OnEndPlugin(ctx context.Context, name string) error

	// CallExportedMethod invokes one of plugin's ExportedMethods by
	// name, given packed argument lanes, and returns the packed result.
	CallExportedMethod(ctx context.Context, plugin string, method descriptor.Method, args []uint64) (uint64, error)
}

// Updater is optionally implemented by hosts that need a per-tick hook
// (spec §6: "Update dispatch is opt-in per plugin").
type Updater interface {
	OnUpdate(dtSeconds float64)
}
