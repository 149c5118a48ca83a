// SPDX-License-Identifier: Apache-2.0

// Package signature parses a compact method-signature shorthand into
// a descriptor Method, as a terser spelling of the JSON Method object,
// e.g.:
//
//	Add(int32, int32) int32
//	Log(string, ...) void
package signature

import (
	"fmt"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/plugforge/plugforge/internal/descriptor/valuetype"
)

// grammar is the participle AST for the shorthand signature.
type grammar struct {
	Name    string   `@Ident`
	Params  []*param `"(" (@@ ("," @@)*)?`
	Variadic bool    `@("," "...")? ")"`
	Ret     string   `@Ident`
}

type param struct {
	Type string `@Ident`
}

var signatureLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*(\[\])?`},
	{Name: "Ellipsis", Pattern: `\.\.\.`},
	{Name: "Punct", Pattern: `[(),.]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var parser = participle.MustBuild[grammar](
	participle.Lexer(signatureLexer),
	participle.Elide("Whitespace"),
	participle.UseLookahead(2),
)

// aliases maps the shorthand's friendlier type spellings onto the
// wire ValueType enum.
var aliases = map[string]valuetype.ValueType{
	"void": valuetype.ValueVoid, "bool": valuetype.ValueBool,
	"i8": valuetype.ValueInt8, "i16": valuetype.ValueInt16, "i32": valuetype.ValueInt32, "i64": valuetype.ValueInt64,
	"int8": valuetype.ValueInt8, "int16": valuetype.ValueInt16, "int32": valuetype.ValueInt32, "int64": valuetype.ValueInt64,
	"u8": valuetype.ValueUInt8, "u16": valuetype.ValueUInt16, "u32": valuetype.ValueUInt32, "u64": valuetype.ValueUInt64,
	"uint8": valuetype.ValueUInt8, "uint16": valuetype.ValueUInt16, "uint32": valuetype.ValueUInt32, "uint64": valuetype.ValueUInt64,
	"ptr": valuetype.ValuePointer, "ptr64": valuetype.ValuePointer,
	"float": valuetype.ValueFloat, "double": valuetype.ValueDouble,
	"string": valuetype.ValueString, "function": valuetype.ValueFunc,
	"vec2": valuetype.ValueVector2, "vec3": valuetype.ValueVector3, "vec4": valuetype.ValueVector4,
	"mat4x4": valuetype.ValueMatrix4x4,
}

func resolveType(tok string) (valuetype.ValueType, error) {
	if vt, ok := aliases[tok]; ok {
		return vt, nil
	}
	return "", fmt.Errorf("signature: unknown type %q", tok)
}

// Parse converts a shorthand signature string into a Method. FuncName
// defaults to Name; callers may override it once the caller resolves the
// actual exported symbol.
func Parse(src string) (valuetype.Method, error) {
	ast, err := parser.ParseString("", src)
	if err != nil {
		return valuetype.Method{}, fmt.Errorf("signature: parse %q: %w", src, err)
	}

	ret, err := resolveType(ast.Ret)
	if err != nil {
		return valuetype.Method{}, err
	}

	params := make([]valuetype.ParamType, 0, len(ast.Params))
	for _, p := range ast.Params {
		vt, err := resolveType(p.Type)
		if err != nil {
			return valuetype.Method{}, err
		}
		params = append(params, valuetype.ParamType{Type: vt})
	}

	varIndex := valuetype.NoVarIndex
	if ast.Variadic {
		varIndex = len(params)
	}

	return valuetype.Method{
		Name:              ast.Name,
		FuncName:          ast.Name,
		CallingConvention: valuetype.ConventionDefault,
		ParamTypes:        params,
		RetType:           valuetype.ParamType{Type: ret},
		VarIndex:          varIndex,
	}, nil
}
