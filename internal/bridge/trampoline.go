// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"math"
	"reflect"

	"github.com/ebitengine/purego"
)

// packed is the uniform, register-sized representation the rest of the
// bridge deals in: every argument and every return value, whatever its
// native storage class, is boxed into a single uint64 lane. Floats are
// boxed by bit-reinterpretation (movq, in the source's terms) rather
// than conversion, so a float32 payload occupies the low 32 bits and a
// float64 payload occupies all 64.
type packed = uint64

func boxFloat64(v float64) packed { return math.Float64bits(v) }
func boxFloat32(v float32) packed { return uint64(math.Float32bits(v)) }
func unboxFloat64(v packed) float64 { return math.Float64frombits(v) }
func unboxFloat32(v packed) float32 { return math.Float32frombits(uint32(v)) }

// toReflectValue converts a packed lane into a reflect.Value of type t,
// per t's storage class.
func toReflectValue(t reflect.Type, v packed) reflect.Value {
	switch t.Kind() {
	case reflect.Float32:
		return reflect.ValueOf(unboxFloat32(v)).Convert(t)
	case reflect.Float64:
		return reflect.ValueOf(unboxFloat64(v)).Convert(t)
	case reflect.Bool:
		return reflect.ValueOf(v != 0)
	default:
		rv := reflect.New(t).Elem()
		switch t.Kind() {
		case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int:
			rv.SetInt(int64(v))
		default:
			rv.SetUint(v)
		}
		return rv
	}
}

// fromReflectValue is the inverse of toReflectValue.
func fromReflectValue(rv reflect.Value) packed {
	switch rv.Kind() {
	case reflect.Float32:
		return boxFloat32(float32(rv.Float()))
	case reflect.Float64:
		return boxFloat64(rv.Float())
	case reflect.Bool:
		if rv.Bool() {
			return 1
		}
		return 0
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int:
		return packed(rv.Int())
	default:
		return rv.Uint()
	}
}

// funcType builds the reflect.Type of the Go function purego needs to
// see in order to classify each argument into the right kind of native
// register (integer vs xmm).
func (s signature) funcType() reflect.Type {
	in := make([]reflect.Type, len(s.paramTypes))
	copy(in, s.paramTypes)
	var out []reflect.Type
	if !s.voidReturn {
		out = []reflect.Type{s.retType}
	}
	return reflect.FuncOf(in, out, false)
}

// buildCallback synthesizes a native function pointer that, when
// invoked by foreign code with arguments matching sig, packs the
// arguments and forwards them to handler, then unpacks and returns
// handler's result. This is the C-calls-into-foreign direction (spec
// §4.6's callback trampoline: exported methods a plugin registers for
// the host, or a native language module's per-method entry points).
func buildCallback(sig signature, handler func(args []packed) packed) uintptr {
	ft := sig.funcType()
	goFn := reflect.MakeFunc(ft, func(args []reflect.Value) []reflect.Value {
		packedArgs := make([]packed, len(args))
		for i, a := range args {
			packedArgs[i] = fromReflectValue(a)
		}
		result := handler(packedArgs)
		if sig.voidReturn {
			return nil
		}
		return []reflect.Value{toReflectValue(sig.retType, result)}
	})
	return purego.NewCallback(goFn.Interface())
}

// buildCall binds addr, a native function pointer whose ABI shape
// matches sig, into a Go closure that accepts and returns packed
// lanes. This is the foreign-calls-into-C direction: invoking a
// plugin's exported method, or a language module's native symbol.
func buildCall(sig signature, addr uintptr) func(args []packed) packed {
	ft := sig.funcType()
	fnPtr := reflect.New(ft)
	purego.RegisterFunc(fnPtr.Interface(), addr)
	fn := fnPtr.Elem()

	return func(args []packed) packed {
		in := make([]reflect.Value, len(sig.paramTypes))
		for i, t := range sig.paramTypes {
			var a packed
			if i < len(args) {
				a = args[i]
			}
			in[i] = toReflectValue(t, a)
		}
		out := fn.Call(in)
		if sig.voidReturn || len(out) == 0 {
			return 0
		}
		return fromReflectValue(out[0])
	}
}
