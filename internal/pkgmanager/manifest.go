// SPDX-License-Identifier: Apache-2.0

package pkgmanager

import (
	"encoding/json"
	"os"

	"github.com/samber/oops"
)

// ManifestFile is the name of the installation-state snapshot written
// alongside a package base directory.
const ManifestFile = "plugforge-packages.json"

// Manifest is the on-disk record of everything this installation has
// installed, keyed by package name.
type Manifest struct {
	Packages map[string]LocalPackage `json:"packages"`
}

// LoadManifest reads a manifest from path. A missing file is not an
// error: it is treated as an empty manifest, since a fresh
// installation has installed nothing yet.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is operator-supplied config, not user input
	if os.IsNotExist(err) {
		return &Manifest{Packages: make(map[string]LocalPackage)}, nil
	}
	if err != nil {
		return nil, oops.In("pkgmanager").Code("FilesystemIO").With("path", path).Wrap(err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, oops.In("pkgmanager").Code("FilesystemIO").With("path", path).Wrap(err)
	}
	if m.Packages == nil {
		m.Packages = make(map[string]LocalPackage)
	}
	return &m, nil
}

// Save writes the manifest to path, pretty-printed for the sake of
// operators who diff it in version control.
func (m *Manifest) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return oops.In("pkgmanager").Wrap(err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return oops.In("pkgmanager").Code("FilesystemIO").With("path", path).Wrap(err)
	}
	return nil
}

// Local returns every package this manifest tracks, as a slice.
func (m *Manifest) Local() []LocalPackage {
	out := make([]LocalPackage, 0, len(m.Packages))
	for _, p := range m.Packages {
		out = append(out, p)
	}
	return out
}

// Put records or updates a package entry.
func (m *Manifest) Put(p LocalPackage) {
	if m.Packages == nil {
		m.Packages = make(map[string]LocalPackage)
	}
	m.Packages[p.Name] = p
}

// Remove deletes a package entry.
func (m *Manifest) Remove(name string) {
	delete(m.Packages, name)
}
