// SPDX-License-Identifier: Apache-2.0

// Package valuetype holds the wire-format type definitions shared by
// the descriptor package and its signature subpackage. It exists as a
// separate leaf package so that descriptor/signature (which needs
// these types) does not need to import descriptor (which needs
// descriptor/signature), avoiding an import cycle.
package valuetype

// ValueType is the closed set of parameter/return types the JIT
// call-bridge understands.
type ValueType string

// The full ValueType enum from the wire format.
const (
	ValueVoid    ValueType = "void"
	ValueBool    ValueType = "bool"
	ValueChar8   ValueType = "char8"
	ValueChar16  ValueType = "char16"
	ValueInt8    ValueType = "int8"
	ValueInt16   ValueType = "int16"
	ValueInt32   ValueType = "int32"
	ValueInt64   ValueType = "int64"
	ValueUInt8   ValueType = "uint8"
	ValueUInt16  ValueType = "uint16"
	ValueUInt32  ValueType = "uint32"
	ValueUInt64  ValueType = "uint64"
	ValuePointer ValueType = "ptr64"
	ValueFloat   ValueType = "float"
	ValueDouble  ValueType = "double"
	ValueFunc    ValueType = "function"
	ValueString  ValueType = "string"

	ValueArrayBool   ValueType = "bool[]"
	ValueArrayInt8   ValueType = "int8[]"
	ValueArrayInt16  ValueType = "int16[]"
	ValueArrayInt32  ValueType = "int32[]"
	ValueArrayInt64  ValueType = "int64[]"
	ValueArrayUInt8  ValueType = "uint8[]"
	ValueArrayUInt16 ValueType = "uint16[]"
	ValueArrayUInt32 ValueType = "uint32[]"
	ValueArrayUInt64 ValueType = "uint64[]"
	ValueArrayFloat  ValueType = "float[]"
	ValueArrayDouble ValueType = "double[]"
	ValueArrayString ValueType = "string[]"

	ValueVector2   ValueType = "vec2"
	ValueVector3   ValueType = "vec3"
	ValueVector4   ValueType = "vec4"
	ValueMatrix4x4 ValueType = "mat4x4"
)

// Valid reports whether t is a member of the closed ValueType enum.
func (t ValueType) Valid() bool {
	switch t {
	case ValueVoid, ValueBool, ValueChar8, ValueChar16,
		ValueInt8, ValueInt16, ValueInt32, ValueInt64,
		ValueUInt8, ValueUInt16, ValueUInt32, ValueUInt64,
		ValuePointer, ValueFloat, ValueDouble, ValueFunc, ValueString,
		ValueArrayBool, ValueArrayInt8, ValueArrayInt16, ValueArrayInt32, ValueArrayInt64,
		ValueArrayUInt8, ValueArrayUInt16, ValueArrayUInt32, ValueArrayUInt64,
		ValueArrayFloat, ValueArrayDouble, ValueArrayString,
		ValueVector2, ValueVector3, ValueVector4, ValueMatrix4x4:
		return true
	default:
		return false
	}
}

// CallingConvention enumerates the native ABIs a Method may be bound to.
type CallingConvention string

// Supported calling conventions.
const (
	ConventionDefault    CallingConvention = "default"
	ConventionCdecl      CallingConvention = "cdecl"
	ConventionStdcall    CallingConvention = "stdcall"
	ConventionFastcall   CallingConvention = "fastcall"
	ConventionThiscall   CallingConvention = "thiscall"
	ConventionVectorcall CallingConvention = "vectorcall"
)

// Valid reports whether c is a recognized calling convention.
func (c CallingConvention) Valid() bool {
	switch c {
	case ConventionDefault, ConventionCdecl, ConventionStdcall,
		ConventionFastcall, ConventionThiscall, ConventionVectorcall:
		return true
	default:
		return false
	}
}

// ParamType describes one parameter slot of a Method.
type ParamType struct {
	Type        ValueType `json:"type" yaml:"type"`
	ByReference bool      `json:"byReference,omitempty" yaml:"byReference,omitempty"`
	Prototype   *Method   `json:"prototype,omitempty" yaml:"prototype,omitempty"`
	Enum        []string  `json:"enum,omitempty" yaml:"enum,omitempty"`
}

// NoVarIndex marks a Method with no variadic tail.
const NoVarIndex = -1

// Method is a named entry point exported by a plugin.
type Method struct {
	Name              string            `json:"name" yaml:"name"`
	FuncName          string            `json:"funcName" yaml:"funcName"`
	CallingConvention CallingConvention `json:"callingConvention,omitempty" yaml:"callingConvention,omitempty"`
	ParamTypes        []ParamType       `json:"paramTypes,omitempty" yaml:"paramTypes,omitempty"`
	RetType           ParamType         `json:"retType" yaml:"retType"`
	VarIndex          int               `json:"varIndex,omitempty" yaml:"varIndex,omitempty"`
}

// Variadic reports whether the method has a variadic tail.
func (m Method) Variadic() bool {
	return m.VarIndex >= 0 && m.VarIndex <= len(m.ParamTypes)
}
