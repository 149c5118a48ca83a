// SPDX-License-Identifier: Apache-2.0

// Package native is a language module hosting plugins compiled to a
// C-ABI shared library (C, C++, Rust, or anything else that exports a
// flat symbol table), using purego's dlopen/dlsym wrappers to open the
// library and internal/bridge to JIT-generate calls into whatever
// arbitrary signature its exported methods declare (spec §4.3, §4.6).
//
// This is distinct from internal/languagemodule/goplugin, which hosts
// plugins built with Go's own -buildmode=plugin: those symbols are
// already typed Go values once resolved and need no ABI bridging at
// all. Native's whole reason to exist is that its symbols are *not*
// Go values — just addresses — so every call has to be shaped by hand.
package native

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/ebitengine/purego"
	"github.com/samber/oops"

	"github.com/plugforge/plugforge/internal/bridge"
	"github.com/plugforge/plugforge/internal/descriptor"
	"github.com/plugforge/plugforge/internal/languagemodule"
	"github.com/plugforge/plugforge/internal/loader"
)

// Compile-time interface check.
var _ languagemodule.Host = (*Host)(nil)

// loadedPlugin holds the open library handle and bridge for a single
// native plugin.
type loadedPlugin struct {
	libHandle uintptr
	bridge    *bridge.Bridge
}

// Host is the native (C-ABI shared-library) language module.
type Host struct {
	// LibraryDirectories are search-path entries applied to every
	// plugin this host loads, in addition to the module's own
	// libraryDirectories (spec §4.3).
	LibraryDirectories []string

	// PreferOwnSymbols opens each plugin with RTLD_LOCAL instead of
	// RTLD_GLOBAL, so a plugin's own exported symbols always resolve
	// its own dependencies rather than a same-named symbol another
	// already-loaded plugin happened to export first (spec §7,
	// supplemented from original_source/include/plugify/config.hpp's
	// preferOwnSymbols).
	PreferOwnSymbols bool

	mu      sync.RWMutex
	plugins map[string]*loadedPlugin
	closed  bool
}

// NewHost creates a native language module.
func NewHost() *Host {
	return &Host{plugins: make(map[string]*loadedPlugin)}
}

// Initialize is a no-op: there is no shared native runtime to warm up
// beyond what each plugin's own library brings with it.
func (h *Host) Initialize(_ context.Context) error { return nil }

// Shutdown releases every loaded library handle.
func (h *Host) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for name, p := range h.plugins {
		if err := purego.Dlclose(p.libHandle); err != nil {
			// Nothing sensible to do with a close failure during
			// shutdown besides not letting it stop the others.
			_ = name
		}
	}
	h.closed = true
	h.plugins = nil
	return nil
}

// OnLoadPlugin opens p's entry point (a shared library path relative
// to contentDir).
func (h *Host) OnLoadPlugin(_ context.Context, p *descriptor.PluginDescriptor, contentDir string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return oops.In("native").With("plugin", p.Name()).New("host is closed")
	}
	if _, ok := h.plugins[p.Name()]; ok {
		return oops.In("native").With("plugin", p.Name()).New("plugin already loaded")
	}

	visibility := purego.RTLD_GLOBAL
	if h.PreferOwnSymbols {
		visibility = purego.RTLD_LOCAL
	}

	libPath := filepath.Join(contentDir, p.EntryPoint)
	restore := loader.ScopedSearchPath(h.LibraryDirectories)
	handle, err := purego.Dlopen(libPath, purego.RTLD_NOW|visibility)
	restore()
	if err != nil {
		return oops.In("native").Code("LibraryLoad").With("plugin", p.Name()).With("path", libPath).Wrap(err)
	}

	h.plugins[p.Name()] = &loadedPlugin{libHandle: handle, bridge: bridge.NewBridge()}
	return nil
}

// OnStartPlugin is a no-op: native plugins run their initialization
// from a library constructor at load time, mirroring dlopen's
// constructor-runs-on-load semantics.
func (h *Host) OnStartPlugin(_ context.Context, _ string) error { return nil }

// OnEndPlugin closes a plugin's library handle and forgets it.
func (h *Host) OnEndPlugin(_ context.Context, name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.plugins[name]
	if !ok {
		return oops.In("native").With("plugin", name).New("plugin not loaded")
	}
	delete(h.plugins, name)
	if err := purego.Dlclose(p.libHandle); err != nil {
		return oops.In("native").With("plugin", name).Wrap(err)
	}
	return nil
}

// CallExportedMethod resolves method.FuncName in plugin's library on
// first use and invokes it through a JIT-generated call, per spec
// §4.6.
func (h *Host) CallExportedMethod(_ context.Context, plugin string, method descriptor.Method, args []uint64) (uint64, error) {
	h.mu.RLock()
	p, ok := h.plugins[plugin]
	h.mu.RUnlock()
	if !ok {
		return 0, oops.In("native").With("plugin", plugin).New("plugin not loaded")
	}

	addr, err := purego.Dlsym(p.libHandle, method.FuncName)
	if err != nil {
		return 0, oops.In("native").Code("SymbolResolve").With("plugin", plugin).With("method", method.FuncName).Wrap(err)
	}

	fn, err := p.bridge.GetJitFunc(method, addr)
	if err != nil {
		return 0, oops.In("native").Code("JitGenerationFailed").With("plugin", plugin).With("method", method.Name).Wrap(err)
	}

	return fn.Call(args...), nil
}
