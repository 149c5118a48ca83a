// SPDX-License-Identifier: Apache-2.0

package descriptor

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// Kind selects which descriptor schema to validate against.
type Kind int

// The two descriptor kinds that carry a JSON Schema.
const (
	SchemaModule Kind = iota
	SchemaPlugin
)

var (
	compileOnce [2]sync.Once
	compiled    [2]*jschema.Schema
	compileErr  [2]error
)

// GenerateSchema reflects a JSON Schema from the Go descriptor struct
// for the given kind, following the teacher's GenerateSchema pattern
// of deriving the schema from the type instead of hand-authoring it.
func GenerateSchema(kind Kind) ([]byte, error) {
	r := jsonschema.Reflector{AllowAdditionalProperties: true}

	var schema *jsonschema.Schema
	var title string
	switch kind {
	case SchemaModule:
		schema = r.Reflect(&LanguageModuleDescriptor{})
		title = "Language Module Descriptor"
	case SchemaPlugin:
		schema = r.Reflect(&PluginDescriptor{})
		title = "Plugin Descriptor"
	default:
		return nil, fmt.Errorf("descriptor: unknown schema kind %d", kind)
	}

	schema.Title = title
	schema.ID = jsonschema.ID(schemaID(kind))

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("descriptor: marshal schema: %w", err)
	}
	return data, nil
}

func schemaID(kind Kind) string {
	switch kind {
	case SchemaModule:
		return "https://plugforge.dev/schemas/module.schema.json"
	case SchemaPlugin:
		return "https://plugforge.dev/schemas/plugin.schema.json"
	default:
		return ""
	}
}

func compiledSchema(kind Kind) (*jschema.Schema, error) {
	compileOnce[kind].Do(func() {
		raw, err := GenerateSchema(kind)
		if err != nil {
			compileErr[kind] = err
			return
		}
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			compileErr[kind] = fmt.Errorf("descriptor: parse generated schema: %w", err)
			return
		}
		c := jschema.NewCompiler()
		resource := fmt.Sprintf("schema-%d.json", kind)
		if err := c.AddResource(resource, doc); err != nil {
			compileErr[kind] = fmt.Errorf("descriptor: add schema resource: %w", err)
			return
		}
		sch, err := c.Compile(resource)
		if err != nil {
			compileErr[kind] = fmt.Errorf("descriptor: compile schema: %w", err)
			return
		}
		compiled[kind] = sch
	})
	return compiled[kind], compileErr[kind]
}

// ValidateSchema validates raw JSON descriptor data against the
// generated schema for kind. Unknown fields are always ignored (the
// wire format allows forward-compatible additions per spec §6); the
// schema only enforces the required/typed fields.
func ValidateSchema(kind Kind, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("descriptor: empty data")
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("descriptor: invalid JSON: %w", err)
	}
	sch, err := compiledSchema(kind)
	if err != nil {
		return err
	}
	if err := sch.Validate(doc); err != nil {
		return fmt.Errorf("descriptor: schema validation failed: %w", err)
	}
	return nil
}

// resetSchemaCache clears the compiled-schema cache. Test-only.
func resetSchemaCache() {
	compileOnce = [2]sync.Once{}
	compiled = [2]*jschema.Schema{}
	compileErr = [2]error{}
}
