// SPDX-License-Identifier: Apache-2.0

// Package pkgmanager resolves, installs, updates, and uninstalls
// packages from configured remote repositories (spec §4.5).
package pkgmanager

import (
	"encoding/json"

	"github.com/plugforge/plugforge/internal/descriptor"
)

// PluginType is the package type tag reserved for a plugin package.
// Any other type value is a language tag naming the module that type
// of package installs, mirroring descriptor.ForbiddenLanguage's split
// between "plugin" and every other language string.
const PluginType = descriptor.ForbiddenLanguage

// PackageVersion is one published version of a remote package.
type PackageVersion struct {
	Version   int64                 `json:"version"`
	Platforms []descriptor.Platform `json:"platforms,omitempty"`
	Mirrors   []string              `json:"mirrors"`
}

// SupportsPlatform reports whether v may be installed on platform. An
// empty Platforms list, like an empty supportedPlatforms on a
// descriptor, means unrestricted.
func (v PackageVersion) SupportsPlatform(platform descriptor.Platform) bool {
	if len(v.Platforms) == 0 {
		return true
	}
	for _, p := range v.Platforms {
		if p == platform {
			return true
		}
	}
	return false
}

// RemotePackage is an entry in a repository manifest.
type RemotePackage struct {
	Name        string           `json:"name"`
	Type        string           `json:"type"`
	Author      string           `json:"author,omitempty"`
	Description string           `json:"description,omitempty"`
	Versions    []PackageVersion `json:"versions"`
}

// Latest returns the highest-versioned PackageVersion, or the zero
// value and false if the package has no versions.
func (p RemotePackage) Latest() (PackageVersion, bool) {
	var best PackageVersion
	found := false
	for _, v := range p.Versions {
		if !found || v.Version > best.Version {
			best = v
			found = true
		}
	}
	return best, found
}

// Version returns the exact PackageVersion for version, or false if
// none of p's versions carries it.
func (p RemotePackage) Version(version int64) (PackageVersion, bool) {
	for _, v := range p.Versions {
		if v.Version == version {
			return v, true
		}
	}
	return PackageVersion{}, false
}

// packageManifest is the document format fetched from each configured
// repository URL, restored from an `install -f` manifest, and written
// by SnapshotPackages: a name-keyed map of RemotePackage entries under
// a "content" key (spec §6 Manifest format).
type packageManifest struct {
	Content map[string]RemotePackage `json:"content"`
}

// LocalPackage is a package this installation has already placed on
// disk, per the installer's tracking manifest.
type LocalPackage struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Version int64    `json:"version"`
	Path    string   `json:"path"`
	// Mirrors carries forward the mirror URLs this version was
	// installed from, so SnapshotPackages can restore it later
	// without depending on a live repository still listing this exact
	// version.
	Mirrors    []string        `json:"mirrors,omitempty"`
	Descriptor json.RawMessage `json:"descriptor,omitempty"`
}

// FolderForType returns the type-scoped folder a package of pkgType
// installs under, relative to baseDir: "plugins" for a plugin
// package, "modules" for any language-tagged one (spec §6's on-disk
// layout, e.g. "modules/lua/lua.module" vs "plugins/hello/hello.plugin").
func FolderForType(pkgType string) string {
	if pkgType == PluginType {
		return "plugins"
	}
	return "modules"
}

// LanguageModuleDescriptor decodes p's stored descriptor as a
// language-module manifest. Only meaningful when p.Type != PluginType.
func (p LocalPackage) LanguageModuleDescriptor() (*descriptor.LanguageModuleDescriptor, error) {
	var d descriptor.LanguageModuleDescriptor
	if err := json.Unmarshal(p.Descriptor, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// PluginDescriptor decodes p's stored descriptor as a plugin manifest.
// Only meaningful when p.Type == PluginType.
func (p LocalPackage) PluginDescriptor() (*descriptor.PluginDescriptor, error) {
	var d descriptor.PluginDescriptor
	if err := json.Unmarshal(p.Descriptor, &d); err != nil {
		return nil, err
	}
	return &d, nil
}
