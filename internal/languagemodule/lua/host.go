// SPDX-License-Identifier: Apache-2.0

package lua

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/samber/oops"
	glua "github.com/yuin/gopher-lua"

	"github.com/plugforge/plugforge/internal/descriptor"
	"github.com/plugforge/plugforge/internal/languagemodule"
)

// Compile-time interface check.
var _ languagemodule.Host = (*Host)(nil)

// loadedPlugin holds the compiled source of a loaded Lua plugin. Each
// call re-executes it in a fresh state, matching gopher-lua's
// single-goroutine state model and giving every call a clean global
// table (spec §4.4: language modules own their own isolation policy).
type loadedPlugin struct {
	descriptor *descriptor.PluginDescriptor
	code       string
}

// Host is the Lua language module.
type Host struct {
	factory *StateFactory

	mu      sync.RWMutex
	plugins map[string]*loadedPlugin
	closed  bool
}

// NewHost creates a Lua language module.
func NewHost() *Host {
	return &Host{
		factory: NewStateFactory(),
		plugins: make(map[string]*loadedPlugin),
	}
}

// Initialize is a no-op: gopher-lua states are created per call, there
// is no shared interpreter to warm up.
func (h *Host) Initialize(_ context.Context) error { return nil }

// Shutdown discards every loaded plugin.
func (h *Host) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.plugins = nil
	return nil
}

// OnLoadPlugin reads p's entry point relative to contentDir and
// validates it compiles.
func (h *Host) OnLoadPlugin(ctx context.Context, p *descriptor.PluginDescriptor, contentDir string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return oops.In("lua").With("plugin", p.Name()).New("host is closed")
	}

	entryPath := filepath.Join(contentDir, p.EntryPoint)
	code, err := os.ReadFile(filepath.Clean(entryPath))
	if err != nil {
		return oops.In("lua").Code("PluginLoadFailed").With("plugin", p.Name()).With("path", entryPath).Wrap(err)
	}

	L, err := h.factory.NewState(ctx)
	if err != nil {
		return oops.In("lua").Code("PluginLoadFailed").With("plugin", p.Name()).Wrap(err)
	}
	defer L.Close()

	if err := L.DoString(string(code)); err != nil {
		return oops.In("lua").Code("PluginLoadFailed").With("plugin", p.Name()).With("entry", p.EntryPoint).Hint("syntax error").Wrap(err)
	}

	h.plugins[p.Name()] = &loadedPlugin{descriptor: p, code: string(code)}
	return nil
}

// OnStartPlugin calls the plugin's optional on_start() function, if defined.
func (h *Host) OnStartPlugin(ctx context.Context, name string) error {
	return h.callLifecycleHook(ctx, name, "on_start")
}

// OnEndPlugin calls the plugin's optional on_end() function and drops it.
func (h *Host) OnEndPlugin(ctx context.Context, name string) error {
	err := h.callLifecycleHook(ctx, name, "on_end")
	h.mu.Lock()
	delete(h.plugins, name)
	h.mu.Unlock()
	return err
}

func (h *Host) callLifecycleHook(ctx context.Context, name, hook string) error {
	h.mu.RLock()
	p, ok := h.plugins[name]
	h.mu.RUnlock()
	if !ok {
		return oops.In("lua").With("plugin", name).New("plugin not loaded")
	}

	L, err := h.factory.NewState(ctx)
	if err != nil {
		return oops.In("lua").With("plugin", name).Wrap(err)
	}
	defer L.Close()

	if err := L.DoString(p.code); err != nil {
		return oops.In("lua").With("plugin", name).With("hook", hook).Wrap(err)
	}

	fn := L.GetGlobal(hook)
	if fn.Type() != glua.LTFunction {
		return nil
	}
	if err := L.CallByParam(glua.P{Fn: fn, NRet: 0, Protect: true}); err != nil {
		return oops.In("lua").With("plugin", name).With("hook", hook).Wrap(err)
	}
	return nil
}

// CallExportedMethod invokes method.FuncName as a Lua global function,
// converting each packed argument lane according to method's declared
// parameter type and packing the single Lua return value back.
//
// Only scalar numeric and boolean parameter types are supported;
// pointer-shaped types (strings, function references, arrays, vectors)
// have no meaningful single-register Lua representation and are
// rejected rather than silently truncated.
func (h *Host) CallExportedMethod(ctx context.Context, plugin string, method descriptor.Method, args []uint64) (uint64, error) {
	h.mu.RLock()
	p, ok := h.plugins[plugin]
	h.mu.RUnlock()
	if !ok {
		return 0, oops.In("lua").With("plugin", plugin).New("plugin not loaded")
	}

	L, err := h.factory.NewState(ctx)
	if err != nil {
		return 0, oops.In("lua").With("plugin", plugin).Wrap(err)
	}
	defer L.Close()

	if err := L.DoString(p.code); err != nil {
		return 0, oops.In("lua").With("plugin", plugin).With("method", method.Name).Wrap(err)
	}

	fn := L.GetGlobal(method.FuncName)
	if fn.Type() != glua.LTFunction {
		return 0, oops.In("lua").Code("SymbolResolve").With("plugin", plugin).With("method", method.FuncName).New("exported function not found")
	}

	luaArgs := make([]glua.LValue, 0, len(method.ParamTypes))
	for i, pt := range method.ParamTypes {
		var lane uint64
		if i < len(args) {
			lane = args[i]
		}
		v, err := packedToLua(pt.Type, lane)
		if err != nil {
			return 0, oops.In("lua").With("plugin", plugin).With("method", method.Name).With("param", i).Wrap(err)
		}
		luaArgs = append(luaArgs, v)
	}

	nret := 0
	if method.RetType.Type != descriptor.ValueVoid {
		nret = 1
	}
	if err := L.CallByParam(glua.P{Fn: fn, NRet: nret, Protect: true}, luaArgs...); err != nil {
		return 0, oops.In("lua").With("plugin", plugin).With("method", method.Name).Wrap(err)
	}
	if nret == 0 {
		return 0, nil
	}

	ret := L.Get(-1)
	L.Pop(1)
	return luaToPacked(method.RetType.Type, ret)
}

func packedToLua(t descriptor.ValueType, v uint64) (glua.LValue, error) {
	switch t {
	case descriptor.ValueBool:
		return glua.LBool(v != 0), nil
	case descriptor.ValueInt8, descriptor.ValueInt16, descriptor.ValueInt32, descriptor.ValueInt64:
		return glua.LNumber(int64(v)), nil
	case descriptor.ValueUInt8, descriptor.ValueUInt16, descriptor.ValueUInt32, descriptor.ValueUInt64:
		return glua.LNumber(v), nil
	case descriptor.ValueFloat:
		return glua.LNumber(math.Float32frombits(uint32(v))), nil
	case descriptor.ValueDouble:
		return glua.LNumber(math.Float64frombits(v)), nil
	default:
		return nil, fmt.Errorf("lua: parameter type %s has no scalar Lua representation", t)
	}
}

func luaToPacked(t descriptor.ValueType, v glua.LValue) (uint64, error) {
	switch t {
	case descriptor.ValueVoid:
		return 0, nil
	case descriptor.ValueBool:
		b, ok := v.(glua.LBool)
		if !ok {
			return 0, fmt.Errorf("lua: expected boolean return, got %s", v.Type())
		}
		if b {
			return 1, nil
		}
		return 0, nil
	case descriptor.ValueInt8, descriptor.ValueInt16, descriptor.ValueInt32, descriptor.ValueInt64,
		descriptor.ValueUInt8, descriptor.ValueUInt16, descriptor.ValueUInt32, descriptor.ValueUInt64:
		n, ok := v.(glua.LNumber)
		if !ok {
			return 0, fmt.Errorf("lua: expected numeric return, got %s", v.Type())
		}
		return uint64(int64(n)), nil
	case descriptor.ValueFloat:
		n, ok := v.(glua.LNumber)
		if !ok {
			return 0, fmt.Errorf("lua: expected numeric return, got %s", v.Type())
		}
		return uint64(math.Float32bits(float32(n))), nil
	case descriptor.ValueDouble:
		n, ok := v.(glua.LNumber)
		if !ok {
			return 0, fmt.Errorf("lua: expected numeric return, got %s", v.Type())
		}
		return math.Float64bits(float64(n)), nil
	default:
		return 0, fmt.Errorf("lua: return type %s has no scalar Lua representation", t)
	}
}
