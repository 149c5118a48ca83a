// SPDX-License-Identifier: Apache-2.0

// Package goplugin is a language module hosting plugins built with
// Go's own -buildmode=plugin, via internal/loader. Because a symbol
// resolved by the stdlib plugin package is already a typed Go value,
// not a bare address, this host calls it through reflection rather
// than through internal/bridge's JIT trampolines — there is no ABI gap
// to bridge between two Go binaries built with the same toolchain.
package goplugin

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"reflect"
	"sync"

	"github.com/samber/oops"

	"github.com/plugforge/plugforge/internal/descriptor"
	"github.com/plugforge/plugforge/internal/languagemodule"
	"github.com/plugforge/plugforge/internal/loader"
)

// Compile-time interface check.
var _ languagemodule.Host = (*Host)(nil)

// entrySymbolName is looked up once per plugin at load time; its
// presence proves the shared object was built as a plugforge Go
// plugin rather than an unrelated .so someone dropped in the
// directory.
const entrySymbolName = "PlugforgeEntry"

type loadedPlugin struct {
	handle *loader.Handle
}

// Host is the Go-plugin language module.
type Host struct {
	// LibraryDirectories are search-path entries applied to every
	// plugin this host loads.
	LibraryDirectories []string

	mu      sync.RWMutex
	plugins map[string]*loadedPlugin
	closed  bool
}

// NewHost creates a Go-plugin language module.
func NewHost() *Host {
	return &Host{plugins: make(map[string]*loadedPlugin)}
}

// Initialize is a no-op.
func (h *Host) Initialize(_ context.Context) error { return nil }

// Shutdown forgets every loaded plugin. The stdlib plugin package
// keeps every opened .so mapped for the life of the process (see
// internal/loader.Handle's doc comment); this only stops routing calls
// to them.
func (h *Host) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.plugins = nil
	return nil
}

// OnLoadPlugin opens p's entry point, a .so built with
// -buildmode=plugin, and confirms it exports entrySymbolName.
func (h *Host) OnLoadPlugin(_ context.Context, p *descriptor.PluginDescriptor, contentDir string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return oops.In("goplugin").With("plugin", p.Name()).New("host is closed")
	}
	if _, ok := h.plugins[p.Name()]; ok {
		return oops.In("goplugin").With("plugin", p.Name()).New("plugin already loaded")
	}

	libPath := filepath.Join(contentDir, p.EntryPoint)
	handle, _, err := loader.Open(libPath, entrySymbolName, h.LibraryDirectories)
	if err != nil {
		return oops.In("goplugin").Code("PluginLoadFailed").With("plugin", p.Name()).With("path", libPath).Wrap(err)
	}

	h.plugins[p.Name()] = &loadedPlugin{handle: handle}
	return nil
}

// OnStartPlugin is a no-op: a Go plugin's package init() functions run
// implicitly when the .so is opened.
func (h *Host) OnStartPlugin(_ context.Context, _ string) error { return nil }

// OnEndPlugin forgets a plugin.
func (h *Host) OnEndPlugin(_ context.Context, name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.plugins[name]; !ok {
		return oops.In("goplugin").With("plugin", name).New("plugin not loaded")
	}
	delete(h.plugins, name)
	return nil
}

// CallExportedMethod resolves method.FuncName as an exported symbol
// and invokes it by reflection, converting packed lanes to and from
// the arguments its real Go signature declares.
func (h *Host) CallExportedMethod(_ context.Context, plugin string, method descriptor.Method, args []uint64) (uint64, error) {
	h.mu.RLock()
	p, ok := h.plugins[plugin]
	h.mu.RUnlock()
	if !ok {
		return 0, oops.In("goplugin").With("plugin", plugin).New("plugin not loaded")
	}

	sym, err := p.handle.Lookup(method.FuncName)
	if err != nil {
		return 0, oops.In("goplugin").Code("SymbolResolve").With("plugin", plugin).With("method", method.FuncName).Wrap(err)
	}

	fn := reflect.ValueOf(sym)
	if fn.Kind() != reflect.Func {
		return 0, oops.In("goplugin").Code("SymbolResolve").With("plugin", plugin).With("method", method.FuncName).New("symbol is not a function")
	}

	ft := fn.Type()
	if ft.NumIn() != len(method.ParamTypes) {
		return 0, oops.In("goplugin").With("plugin", plugin).With("method", method.Name).New(fmt.Sprintf("exported function takes %d parameters, descriptor declares %d", ft.NumIn(), len(method.ParamTypes)))
	}

	in := make([]reflect.Value, ft.NumIn())
	for i := range in {
		var lane uint64
		if i < len(args) {
			lane = args[i]
		}
		v, err := packedToGo(ft.In(i), lane)
		if err != nil {
			return 0, oops.In("goplugin").With("plugin", plugin).With("method", method.Name).With("param", i).Wrap(err)
		}
		in[i] = v
	}

	out := fn.Call(in)
	if method.RetType.Type == descriptor.ValueVoid || len(out) == 0 {
		return 0, nil
	}
	return goToPacked(out[0])
}

func packedToGo(t reflect.Type, v uint64) (reflect.Value, error) {
	switch t.Kind() {
	case reflect.Bool:
		return reflect.ValueOf(v != 0), nil
	case reflect.Float32:
		return reflect.ValueOf(math.Float32frombits(uint32(v))), nil
	case reflect.Float64:
		return reflect.ValueOf(math.Float64frombits(v)), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		rv := reflect.New(t).Elem()
		rv.SetInt(int64(v))
		return rv, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		rv := reflect.New(t).Elem()
		rv.SetUint(v)
		return rv, nil
	default:
		return reflect.Value{}, fmt.Errorf("goplugin: unsupported parameter kind %s", t.Kind())
	}
}

func goToPacked(rv reflect.Value) (uint64, error) {
	switch rv.Kind() {
	case reflect.Bool:
		if rv.Bool() {
			return 1, nil
		}
		return 0, nil
	case reflect.Float32:
		return uint64(math.Float32bits(float32(rv.Float()))), nil
	case reflect.Float64:
		return math.Float64bits(rv.Float()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return uint64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint(), nil
	default:
		return 0, fmt.Errorf("goplugin: unsupported return kind %s", rv.Kind())
	}
}
