// SPDX-License-Identifier: Apache-2.0

// Command gen-schema generates the module and plugin descriptor JSON Schemas.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/plugforge/plugforge/internal/descriptor"
)

func generate(kind descriptor.Kind, outPath string) error {
	schema, err := descriptor.GenerateSchema(kind)
	if err != nil {
		return fmt.Errorf("generating schema for %s: %w", outPath, err)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o750); err != nil {
		return fmt.Errorf("creating directory for %s: %w", outPath, err)
	}

	if err := os.WriteFile(outPath, schema, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", outPath, err)
	}

	fmt.Printf("Generated %s\n", outPath)
	return nil
}

func main() {
	targets := []struct {
		kind    descriptor.Kind
		outPath string
	}{
		{descriptor.SchemaModule, filepath.Join("schemas", "module.schema.json")},
		{descriptor.SchemaPlugin, filepath.Join("schemas", "plugin.schema.json")},
	}

	for _, target := range targets {
		if err := generate(target.kind, target.outPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
}
