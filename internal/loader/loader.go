// SPDX-License-Identifier: Apache-2.0

// Package loader opens a shared library at a path and resolves a
// single named entry symbol, per spec §4.3. It is the Go-native
// dlopen-equivalent: the stdlib "plugin" package on platforms that
// support it (Linux, Darwin), fronted by scoped library-search-path
// augmentation so a module's libraryDirectories never leak into later
// loads.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"plugin" //nolint:depguard // this IS the library loader
	"strings"
	"sync"

	"github.com/samber/oops"
)

// searchPathEnv is the platform environment variable consulted for
// shared-library search paths. On non-Linux platforms this loader
// still works for local absolute paths; only the augmentation step is
// Linux-specific in spirit (mirrors LD_LIBRARY_PATH semantics).
const searchPathEnv = "LD_LIBRARY_PATH"

// searchPathMu serializes search-path mutation across concurrent
// loads: the augmentation is process-global state (an environment
// variable) even though the runtime itself is single-threaded on the
// host thread, so this guards against any host-side reentrancy.
var searchPathMu sync.Mutex

// Symbol is the entry-point value resolved from a shared library.
type Symbol = plugin.Symbol

// Handle wraps an opened shared library. It is never actually
// "unloaded" by the Go runtime (the stdlib plugin package has no
// close/unload primitive), so Handle has no Close method and the
// process keeps the library mapped — matching the spec's guidance that unloading must
// be deterministic *from the runtime's point of view* (the Module
// transitions state, resolves no more symbols) even where the
// underlying platform cannot truly evict the code.
type Handle struct {
	path string
	lib  *plugin.Plugin
}

// Open loads the shared library at path, resolves entrySymbol, and
// returns it. libraryDirectories are added to the search path only
// for the duration of this call.
func Open(path string, entrySymbol string, libraryDirectories []string) (*Handle, Symbol, error) {
	restore := ScopedSearchPath(libraryDirectories)
	defer restore()

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, nil, oops.In("loader").Code("LibraryLoad").With("path", path).Wrap(err)
	}

	lib, err := plugin.Open(abs)
	if err != nil {
		return nil, nil, oops.In("loader").Code("LibraryLoad").With("path", abs).Wrap(err)
	}

	sym, err := lib.Lookup(entrySymbol)
	if err != nil {
		return nil, nil, oops.In("loader").Code("SymbolResolve").With("path", abs).With("symbol", entrySymbol).Wrap(err)
	}

	return &Handle{path: abs, lib: lib}, sym, nil
}

// Path returns the absolute path the library was opened from.
func (h *Handle) Path() string { return h.path }

// Lookup resolves an additional symbol from an already-open library,
// used by the Go plugin language module to find per-method symbols
// inside a plugin binary.
func (h *Handle) Lookup(name string) (Symbol, error) {
	sym, err := h.lib.Lookup(name)
	if err != nil {
		return nil, oops.In("loader").Code("SymbolResolve").With("path", h.path).With("symbol", name).Wrap(err)
	}
	return sym, nil
}

// ScopedSearchPath prepends dirs to LD_LIBRARY_PATH and returns a
// function that restores the previous value exactly, so a failed or
// completed load never leaks path entries into later loads (spec
// §4.3: "search-path augmentation is scoped"). Exported so other
// language-module hosts that open libraries their own way (e.g.
// internal/languagemodule/native, via purego.Dlopen) share the same
// scoping discipline.
func ScopedSearchPath(dirs []string) func() {
	if len(dirs) == 0 {
		return func() {}
	}

	searchPathMu.Lock()
	prev, had := os.LookupEnv(searchPathEnv)

	abs := make([]string, 0, len(dirs))
	for _, d := range dirs {
		if a, err := filepath.Abs(d); err == nil {
			abs = append(abs, a)
		}
	}
	next := strings.Join(abs, string(os.PathListSeparator))
	if had && prev != "" {
		next = next + string(os.PathListSeparator) + prev
	}
	_ = os.Setenv(searchPathEnv, next)

	return func() {
		defer searchPathMu.Unlock()
		if had {
			_ = os.Setenv(searchPathEnv, prev)
		} else {
			_ = os.Unsetenv(searchPathEnv)
		}
	}
}

// ErrPlatformUnsupported is returned by callers that detect the
// stdlib plugin package is unavailable on GOOS (e.g. Windows), where
// the language-module contract requires a native shared-library host
// instead (see internal/languagemodule/native).
var ErrPlatformUnsupported = fmt.Errorf("loader: platform does not support dynamic plugin loading")
