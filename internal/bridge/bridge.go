// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"fmt"
	"sync"

	"github.com/plugforge/plugforge/internal/descriptor"
)

// Handler is the Go-side implementation invoked by a JitCallback when
// foreign code calls into it. Params holds one packed lane per
// parameter in signature order; the return value is the method's
// packed result (zero, and ignored, for a void method).
type Handler func(params []uint64) uint64

// JitCallback is a native-callable function pointer synthesized from a
// Method descriptor, along with everything needed to describe it to
// foreign code (spec §4.6). Its Addr can be handed to a language
// module as the resolved function for an exported method.
type JitCallback struct {
	Method descriptor.Method
	Addr   uintptr
}

// JitFunction is a Go closure bound to a native function pointer,
// synthesized from a Method descriptor. Calling it invokes the target
// address using the calling convention sig implies.
type JitFunction struct {
	Method descriptor.Method
	call   func(args []uint64) uint64
}

// Call invokes the bound native function with packed arguments and
// returns its packed result. Passing fewer arguments than the method
// declares is treated as zero-filling the remainder (used for
// variadic tails the caller chose not to supply).
func (f *JitFunction) Call(args ...uint64) uint64 {
	return f.call(args)
}

// Bridge owns the JIT-generated trampolines for a single loaded
// library. Every generated JitCallback is cached by method name, and
// every JitFunction by method name plus target address, so repeated lookups (e.g. re-resolving an export after a
// language module restarts a plugin) are idempotent and don't leak
// native callback slots.
type Bridge struct {
	// HiddenParam overrides the default "does this return type need a
	// hidden out-pointer" predicate. Left nil, no supported return type
	// needs one (spec §4.6: only 128-bit-by-value PODs would, and those
	// are already rejected as unsupported widths before this matters).
	HiddenParam func(descriptor.ValueType) bool

	mu        sync.Mutex
	callbacks map[string]*JitCallback
	functions map[string]*JitFunction
	errors    map[string]string
}

// NewBridge creates an empty call-bridge.
func NewBridge() *Bridge {
	return &Bridge{
		callbacks: make(map[string]*JitCallback),
		functions: make(map[string]*JitFunction),
		errors:    make(map[string]string),
	}
}

// GetJitCallback returns the cached native callback for m, generating
// it on first use. handler is only consulted on generation; later
// calls with the same method name ignore it and return the cached
// value, matching spec §4.6's "generation is idempotent per method."
func (b *Bridge) GetJitCallback(m descriptor.Method, handler Handler) (*JitCallback, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cb, ok := b.callbacks[m.Name]; ok {
		return cb, nil
	}
	if errStr, ok := b.errors[m.Name]; ok {
		return nil, fmt.Errorf("bridge: %s", errStr)
	}

	sig, err := buildSignature(m, b.HiddenParam)
	if err != nil {
		b.errors[m.Name] = err.Error()
		return nil, fmt.Errorf("bridge: generate callback for %s: %w", m.Name, err)
	}

	addr := buildCallback(sig, func(args []uint64) uint64 { return handler(args) })
	cb := &JitCallback{Method: m, Addr: addr}
	b.callbacks[m.Name] = cb
	return cb, nil
}

// GetJitFunc returns the cached Go-callable wrapper around addr for m,
// generating it on first use. Distinct addresses for the same method
// name (e.g. re-resolving after a plugin reload) get distinct cache
// entries keyed by name+addr, since the method identity, not the
// address, is what "idempotent per method" refers to for a single load.
func (b *Bridge) GetJitFunc(m descriptor.Method, addr uintptr) (*JitFunction, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	cacheKey := fmt.Sprintf("%s@%x", m.Name, addr)
	if fn, ok := b.functions[cacheKey]; ok {
		return fn, nil
	}
	if errStr, ok := b.errors[m.Name]; ok {
		return nil, fmt.Errorf("bridge: %s", errStr)
	}

	sig, err := buildSignature(m, b.HiddenParam)
	if err != nil {
		b.errors[m.Name] = err.Error()
		return nil, fmt.Errorf("bridge: generate call for %s: %w", m.Name, err)
	}

	call := buildCall(sig, addr)
	fn := &JitFunction{Method: m, call: call}
	b.functions[cacheKey] = fn
	return fn, nil
}

// Error returns the captured generation-failure message for a method
// name, if generation was previously attempted and failed. Used by the
// lifecycle engine to report JitGenerationFailed without re-attempting
// generation (spec §4.6: a failed method is skipped, not retried).
func (b *Bridge) Error(methodName string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.errors[methodName]
	return s, ok
}
