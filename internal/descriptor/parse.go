// SPDX-License-Identifier: Apache-2.0

package descriptor

import (
	"encoding/json"
	"fmt"

	"github.com/samber/oops"

	"github.com/plugforge/plugforge/internal/descriptor/signature"
)

// ModuleExtension and PluginExtension are the file extensions the
// discovery walk looks for under baseDir.
const (
	ModuleExtension = ".module"
	PluginExtension = ".plugin"
)

// ParseModule parses and validates a language-module descriptor file.
func ParseModule(data []byte) (*LanguageModuleDescriptor, error) {
	var d LanguageModuleDescriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, oops.In("descriptor").Code("DescriptorParse").Wrap(err)
	}
	if err := ValidateSchema(SchemaModule, data); err != nil {
		return nil, oops.In("descriptor").Code("DescriptorParse").Wrap(err)
	}
	if err := d.validate(); err != nil {
		return nil, oops.In("descriptor").Code("DescriptorParse").Wrap(err)
	}
	return &d, nil
}

func (d *LanguageModuleDescriptor) validate() error {
	if d.Language == "" {
		return fmt.Errorf("language module: language is required")
	}
	if d.Language == ForbiddenLanguage {
		return fmt.Errorf("language module: language cannot be %q", ForbiddenLanguage)
	}
	return nil
}

// ParsePlugin parses and validates a plugin descriptor file. name is
// the plugin's containing directory name, assigned as the plugin's
// identity (the JSON payload never carries a name field of its own).
func ParsePlugin(data []byte, name string) (*PluginDescriptor, error) {
	var d PluginDescriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, oops.In("descriptor").Code("DescriptorParse").With("plugin", name).Wrap(err)
	}
	if err := ValidateSchema(SchemaPlugin, data); err != nil {
		return nil, oops.In("descriptor").Code("DescriptorParse").With("plugin", name).Wrap(err)
	}
	d.SetName(name)
	if err := d.validate(); err != nil {
		return nil, oops.In("descriptor").Code("DescriptorParse").With("plugin", name).Wrap(err)
	}
	d.DroppedDependencies = dedupeDependencies(&d)
	d.DroppedMethods = dedupeMethods(&d)
	return &d, nil
}

func (d *PluginDescriptor) validate() error {
	if d.EntryPoint == "" {
		return fmt.Errorf("plugin %s: entryPoint is required", d.name)
	}
	if d.LanguageModule.Name == "" {
		return fmt.Errorf("plugin %s: languageModule.name is required", d.name)
	}
	for i, m := range d.ExportedMethods {
		if m.Name == "" {
			return fmt.Errorf("plugin %s: exportedMethods[%d] has no name", d.name, i)
		}
		if m.RetType.Type != "" && !m.RetType.Type.Valid() {
			return fmt.Errorf("plugin %s: method %s has unknown return type %q", d.name, m.Name, m.RetType.Type)
		}
		for _, p := range m.ParamTypes {
			if !p.Type.Valid() {
				return fmt.Errorf("plugin %s: method %s has unknown param type %q", d.name, m.Name, p.Type)
			}
		}
	}
	return nil
}

// ParseSignature expands a compact shorthand signature (see the
// signature subpackage) into a full Method entry. ParsePlugin does not
// call it: descriptor files list exportedMethods as JSON objects only,
// and a string entry there fails to parse.
func ParseSignature(src string) (Method, error) {
	return signature.Parse(src)
}

// dedupeDependencies strips duplicate-by-name dependency entries,
// keeping the first occurrence, per spec: "Method vectors contain no
// duplicates by name; duplicates are stripped at load time with a
// warning." The same rule applies to dependency lists.
func dedupeDependencies(d *PluginDescriptor) int {
	seen := make(map[string]bool, len(d.Dependencies))
	out := make([]PluginReference, 0, len(d.Dependencies))
	dropped := 0
	for _, dep := range d.Dependencies {
		if seen[dep.Name] {
			dropped++
			continue
		}
		seen[dep.Name] = true
		out = append(out, dep)
	}
	d.Dependencies = out
	return dropped
}

func dedupeMethods(d *PluginDescriptor) int {
	seen := make(map[string]bool, len(d.ExportedMethods))
	out := make([]Method, 0, len(d.ExportedMethods))
	dropped := 0
	for _, m := range d.ExportedMethods {
		if seen[m.Name] {
			dropped++
			continue
		}
		seen[m.Name] = true
		out = append(out, m)
	}
	d.ExportedMethods = out
	return dropped
}
