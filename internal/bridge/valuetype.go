// SPDX-License-Identifier: Apache-2.0

// Package bridge is the JIT call-bridge (spec §4.6): it synthesizes
// native trampolines from a Method descriptor so that foreign-language
// callees can be invoked through a uniform callback, and vice versa.
//
// Go has no runtime code emitter in the standard toolchain comparable
// to the source's hand-rolled x86-64 assembler, so trampoline
// generation is built on github.com/ebitengine/purego: reflect.FuncOf
// synthesizes the native-ABI-shaped Go function type a Method implies,
// reflect.MakeFunc builds the Go-side body, and purego.NewCallback /
// purego.RegisterFunc turn that into (respectively) a callable native
// function pointer or a Go func bound to a native symbol. This is the
// "precompiled dispatch table" scope limitation the design notes
// anticipate: signatures purego/reflect cannot express as a Go
// function type fail generation with JitGenerationFailed instead of
// being emitted as raw machine code.
package bridge

import (
	"fmt"
	"reflect"

	"github.com/plugforge/plugforge/internal/descriptor"
)

// storageClass is the native register class a ValueType is packed
// into, per spec §4.6's parameter classification.
type storageClass int

// The three storage classes the bridge can pack a value into.
const (
	classInteger storageClass = iota // general-purpose register
	classFloat                       // xmm register (single/double precision)
	classUnsupported                 // wider than 64 bits by value
)

// ErrUnsupportedWidth is the exact message spec §4.6 mandates for
// values that don't fit in a single 64-bit register slot.
const ErrUnsupportedWidth = "Parameters wider than 64 bits not supported"

// classify returns the storage class and the Go reflect.Type used to
// represent t across the purego boundary.
func classify(t descriptor.ValueType) (storageClass, reflect.Type) {
	switch t {
	case descriptor.ValueVoid:
		return classInteger, nil
	case descriptor.ValueBool:
		return classInteger, reflect.TypeOf(bool(false))
	case descriptor.ValueChar8, descriptor.ValueInt8:
		return classInteger, reflect.TypeOf(int8(0))
	case descriptor.ValueUInt8:
		return classInteger, reflect.TypeOf(uint8(0))
	case descriptor.ValueChar16, descriptor.ValueInt16:
		return classInteger, reflect.TypeOf(int16(0))
	case descriptor.ValueUInt16:
		return classInteger, reflect.TypeOf(uint16(0))
	case descriptor.ValueInt32:
		return classInteger, reflect.TypeOf(int32(0))
	case descriptor.ValueUInt32:
		return classInteger, reflect.TypeOf(uint32(0))
	case descriptor.ValueInt64:
		return classInteger, reflect.TypeOf(int64(0))
	case descriptor.ValueUInt64:
		return classInteger, reflect.TypeOf(uint64(0))
	case descriptor.ValuePointer, descriptor.ValueFunc, descriptor.ValueString:
		return classInteger, reflect.TypeOf(uintptr(0))
	case descriptor.ValueFloat:
		return classFloat, reflect.TypeOf(float32(0))
	case descriptor.ValueDouble:
		return classFloat, reflect.TypeOf(float64(0))
	default:
		// Arrays, Vector2..Vector4, Matrix4x4: passed by value, wider
		// than one 64-bit register.
		return classUnsupported, nil
	}
}

// Supported reports whether the bridge can generate a trampoline for a
// single value type.
func Supported(t descriptor.ValueType) bool {
	class, _ := classify(t)
	return class != classUnsupported
}

// hiddenParamDefault is the caller-supplied predicate from spec §4.6's
// "Hidden return" rule, used when the caller does not override it via
// Bridge.HiddenParam. 128-bit POD returns never occur in this bridge's
// supported type set (they're all classUnsupported and rejected before
// reaching this point), so the default always answers false; it exists
// as an extension point for a future wide-return type.
func hiddenParamDefault(descriptor.ValueType) bool { return false }

// signature is the resolved, purego-ready shape of a Method: for each
// parameter and the return value, the Go type used to cross the
// boundary.
type signature struct {
	paramTypes []reflect.Type
	retType    reflect.Type
	voidReturn bool
	hiddenPtr  bool
}

// buildSignature classifies every parameter and the return type of m,
// failing fast on the first unsupported width.
func buildSignature(m descriptor.Method, hiddenParam func(descriptor.ValueType) bool) (signature, error) {
	if hiddenParam == nil {
		hiddenParam = hiddenParamDefault
	}

	sig := signature{paramTypes: make([]reflect.Type, 0, len(m.ParamTypes))}

	for i, p := range m.ParamTypes {
		class, rt := classify(p.Type)
		if class == classUnsupported {
			return signature{}, fmt.Errorf("bridge: method %s param %d (%s): %s", m.Name, i, p.Type, ErrUnsupportedWidth)
		}
		if p.ByReference {
			rt = reflect.TypeOf(uintptr(0))
		}
		sig.paramTypes = append(sig.paramTypes, rt)
	}

	retClass, retType := classify(m.RetType.Type)
	if retClass == classUnsupported {
		return signature{}, fmt.Errorf("bridge: method %s return (%s): %s", m.Name, m.RetType.Type, ErrUnsupportedWidth)
	}
	if m.RetType.Type == descriptor.ValueVoid {
		sig.voidReturn = true
	} else {
		sig.retType = retType
	}
	sig.hiddenPtr = hiddenParam(m.RetType.Type)

	return sig, nil
}
