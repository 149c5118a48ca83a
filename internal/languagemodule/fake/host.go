// SPDX-License-Identifier: Apache-2.0

// Package fake is an in-memory languagemodule.Host used by resolver
// and runtime tests so they can exercise the lifecycle engine without
// a real interpreter or shared library.
package fake

import (
	"context"
	"sync"

	"github.com/plugforge/plugforge/internal/descriptor"
	"github.com/plugforge/plugforge/internal/languagemodule"
)

// Compile-time interface check.
var _ languagemodule.Host = (*Host)(nil)

// MethodFunc is a test-supplied implementation of one exported method.
type MethodFunc func(args []uint64) (uint64, error)

// Host is a scriptable fake language module. Tests register methods
// keyed by "plugin.methodName" via RegisterMethod before exercising
// the lifecycle engine.
type Host struct {
	mu sync.Mutex

	// LoadErr, when set, is returned by OnLoadPlugin for the named
	// plugin, simulating spec's PluginLoadFailed.
	LoadErr map[string]error

	loaded  map[string]bool
	started map[string]bool
	methods map[string]MethodFunc

	calls []string // call log, for assertions
}

// NewHost creates an empty fake host.
func NewHost() *Host {
	return &Host{
		LoadErr: make(map[string]error),
		loaded:  make(map[string]bool),
		started: make(map[string]bool),
		methods: make(map[string]MethodFunc),
	}
}

// RegisterMethod installs fn as the implementation of methodName on
// plugin. Must be called before the lifecycle engine loads the plugin.
func (h *Host) RegisterMethod(plugin, methodName string, fn MethodFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.methods[plugin+"."+methodName] = fn
}

// Loaded reports whether OnLoadPlugin succeeded for name.
func (h *Host) Loaded(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loaded[name]
}

// Started reports whether OnStartPlugin has run (without a matching
// OnEndPlugin) for name.
func (h *Host) Started(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.started[name]
}

// Calls returns the ordered log of lifecycle calls made against this
// host, e.g. "load:foo", "start:foo", "end:foo".
func (h *Host) Calls() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.calls))
	copy(out, h.calls)
	return out
}

func (h *Host) Initialize(_ context.Context) error { return nil }

func (h *Host) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.loaded = make(map[string]bool)
	h.started = make(map[string]bool)
	return nil
}

func (h *Host) OnLoadPlugin(_ context.Context, p *descriptor.PluginDescriptor, _ string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	name := p.Name()
	h.calls = append(h.calls, "load:"+name)
	if err, ok := h.LoadErr[name]; ok && err != nil {
		return err
	}
	h.loaded[name] = true
	return nil
}

func (h *Host) OnStartPlugin(_ context.Context, name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, "start:"+name)
	h.started[name] = true
	return nil
}

func (h *Host) OnEndPlugin(_ context.Context, name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, "end:"+name)
	delete(h.started, name)
	delete(h.loaded, name)
	return nil
}

func (h *Host) CallExportedMethod(_ context.Context, plugin string, method descriptor.Method, args []uint64) (uint64, error) {
	h.mu.Lock()
	fn, ok := h.methods[plugin+"."+method.Name]
	h.mu.Unlock()
	if !ok {
		return 0, nil
	}
	return fn(args)
}
