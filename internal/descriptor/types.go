// SPDX-License-Identifier: Apache-2.0

// Package descriptor defines the typed records parsed from the JSON
// manifests on disk (language modules, plugins) and the logic that
// discovers, validates, and de-duplicates them.
package descriptor

import (
	"fmt"

	"github.com/plugforge/plugforge/internal/descriptor/valuetype"
)

// Platform is a short tag identifying an OS/architecture combination,
// e.g. "linux-x64", "windows-x64", "darwin-arm64".
type Platform string

// ValueType is the closed set of parameter/return types the JIT
// call-bridge understands.
type ValueType = valuetype.ValueType

// The full ValueType enum from the wire format.
const (
	ValueVoid    = valuetype.ValueVoid
	ValueBool    = valuetype.ValueBool
	ValueChar8   = valuetype.ValueChar8
	ValueChar16  = valuetype.ValueChar16
	ValueInt8    = valuetype.ValueInt8
	ValueInt16   = valuetype.ValueInt16
	ValueInt32   = valuetype.ValueInt32
	ValueInt64   = valuetype.ValueInt64
	ValueUInt8   = valuetype.ValueUInt8
	ValueUInt16  = valuetype.ValueUInt16
	ValueUInt32  = valuetype.ValueUInt32
	ValueUInt64  = valuetype.ValueUInt64
	ValuePointer = valuetype.ValuePointer
	ValueFloat   = valuetype.ValueFloat
	ValueDouble  = valuetype.ValueDouble
	ValueFunc    = valuetype.ValueFunc
	ValueString  = valuetype.ValueString

	ValueArrayBool   = valuetype.ValueArrayBool
	ValueArrayInt8   = valuetype.ValueArrayInt8
	ValueArrayInt16  = valuetype.ValueArrayInt16
	ValueArrayInt32  = valuetype.ValueArrayInt32
	ValueArrayInt64  = valuetype.ValueArrayInt64
	ValueArrayUInt8  = valuetype.ValueArrayUInt8
	ValueArrayUInt16 = valuetype.ValueArrayUInt16
	ValueArrayUInt32 = valuetype.ValueArrayUInt32
	ValueArrayUInt64 = valuetype.ValueArrayUInt64
	ValueArrayFloat  = valuetype.ValueArrayFloat
	ValueArrayDouble = valuetype.ValueArrayDouble
	ValueArrayString = valuetype.ValueArrayString

	ValueVector2   = valuetype.ValueVector2
	ValueVector3   = valuetype.ValueVector3
	ValueVector4   = valuetype.ValueVector4
	ValueMatrix4x4 = valuetype.ValueMatrix4x4
)

// CallingConvention enumerates the native ABIs a Method may be bound to.
type CallingConvention = valuetype.CallingConvention

// Supported calling conventions.
const (
	ConventionDefault    = valuetype.ConventionDefault
	ConventionCdecl      = valuetype.ConventionCdecl
	ConventionStdcall    = valuetype.ConventionStdcall
	ConventionFastcall   = valuetype.ConventionFastcall
	ConventionThiscall   = valuetype.ConventionThiscall
	ConventionVectorcall = valuetype.ConventionVectorcall
)

// ParamType describes one parameter slot of a Method.
type ParamType = valuetype.ParamType

// NoVarIndex marks a Method with no variadic tail.
const NoVarIndex = valuetype.NoVarIndex

// Method is a named entry point exported by a plugin.
type Method = valuetype.Method

// PluginReference names a dependency of a plugin on another plugin.
type PluginReference struct {
	Name               string     `json:"name" yaml:"name"`
	Optional           bool       `json:"optional,omitempty" yaml:"optional,omitempty"`
	SupportedPlatforms []Platform `json:"supportedPlatforms,omitempty" yaml:"supportedPlatforms,omitempty"`
	RequestedVersion   *int64     `json:"requestedVersion,omitempty" yaml:"requestedVersion,omitempty"`
}

// LanguageModuleRef is the languageModule.name field of a plugin descriptor.
type LanguageModuleRef struct {
	Name string `json:"name" yaml:"name"`
}

// base carries the fields shared by every descriptor kind.
type base struct {
	FileVersion        int64      `json:"fileVersion" yaml:"fileVersion"`
	Version            int64      `json:"version" yaml:"version"`
	VersionName        string     `json:"versionName,omitempty" yaml:"versionName,omitempty"`
	FriendlyName       string     `json:"friendlyName,omitempty" yaml:"friendlyName,omitempty"`
	Description        string     `json:"description,omitempty" yaml:"description,omitempty"`
	CreatedBy          string     `json:"createdBy,omitempty" yaml:"createdBy,omitempty"`
	CreatedByURL       string     `json:"createdByURL,omitempty" yaml:"createdByURL,omitempty"`
	DocsURL            string     `json:"docsURL,omitempty" yaml:"docsURL,omitempty"`
	DownloadURL        string     `json:"downloadURL,omitempty" yaml:"downloadURL,omitempty"`
	UpdateURL          string     `json:"updateURL,omitempty" yaml:"updateURL,omitempty"`
	SupportedPlatforms []Platform `json:"supportedPlatforms,omitempty" yaml:"supportedPlatforms,omitempty"`
	ResourceDirectories []string  `json:"resourceDirectories,omitempty" yaml:"resourceDirectories,omitempty"`
}

// LanguageModuleDescriptor is the manifest of a language module.
type LanguageModuleDescriptor struct {
	base `yaml:",inline"`

	Language           string   `json:"language" yaml:"language"`
	LibraryDirectories []string `json:"libraryDirectories,omitempty" yaml:"libraryDirectories,omitempty"`
	ForceLoad          bool     `json:"forceLoad,omitempty" yaml:"forceLoad,omitempty"`
}

// ForbiddenLanguage is the reserved language tag no module may claim.
const ForbiddenLanguage = "plugin"

// Name returns the display name used for de-duplication and lookup.
func (d *LanguageModuleDescriptor) Name() string { return d.Language }

// PluginDescriptor is the manifest of a plugin.
type PluginDescriptor struct {
	base `yaml:",inline"`

	EntryPoint      string            `json:"entryPoint" yaml:"entryPoint"`
	LanguageModule  LanguageModuleRef `json:"languageModule" yaml:"languageModule"`
	Dependencies    []PluginReference `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	ExportedMethods []Method          `json:"exportedMethods,omitempty" yaml:"exportedMethods,omitempty"`

	// name is derived from the descriptor's containing directory at
	// discovery time, not from the JSON payload.
	name string

	// DroppedDependencies/DroppedMethods count duplicate-by-name
	// entries stripped during parsing, for the discovery warning log.
	DroppedDependencies int `json:"-" yaml:"-"`
	DroppedMethods      int `json:"-" yaml:"-"`
}

// Name returns the plugin name, set by the discovery walk.
func (d *PluginDescriptor) Name() string { return d.name }

// SetName is called by the discovery walk once the containing
// directory name is known.
func (d *PluginDescriptor) SetName(name string) { d.name = name }

func (d *LanguageModuleDescriptor) String() string {
	return fmt.Sprintf("module(%s v%d)", d.Language, d.Version)
}

func (d *PluginDescriptor) String() string {
	return fmt.Sprintf("plugin(%s v%d)", d.name, d.Version)
}
