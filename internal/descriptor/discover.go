// SPDX-License-Identifier: Apache-2.0

package descriptor

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/samber/oops"
)

// maxWalkDepth bounds the discovery walk relative to baseDir, per spec §4.1.
const maxWalkDepth = 3

// DiscoveredPlugin pairs a validated plugin descriptor with its
// on-disk location.
type DiscoveredPlugin struct {
	Descriptor *PluginDescriptor
	Path       string // path to the .plugin file
	BaseDir    string // directory containing the descriptor
	ContentDir string // BaseDir, alias kept for clarity at call sites
}

// DiscoveredModule pairs a validated language-module descriptor with
// its on-disk location.
type DiscoveredModule struct {
	Descriptor *LanguageModuleDescriptor
	Path       string
	BaseDir    string
}

// Result is the outcome of one discovery pass.
type Result struct {
	Plugins []DiscoveredPlugin
	Modules []DiscoveredModule
}

// Discover walks baseDir to maxWalkDepth, parses every *.module and
// *.plugin file it finds, applies platform filtering, and resolves
// duplicate names by keeping the highest version. Parse failures are
// logged and the offending file is skipped; they never abort the walk.
func Discover(baseDir string, platform Platform, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var modules []DiscoveredModule
	var plugins []DiscoveredPlugin

	err := walkDepth(baseDir, maxWalkDepth, func(path string, depth int) error {
		switch {
		case strings.HasSuffix(path, ModuleExtension):
			data, rerr := os.ReadFile(path) //nolint:gosec // path from a bounded directory walk
			if rerr != nil {
				logger.Warn("descriptor: cannot read module file", "path", path, "error", rerr)
				return nil
			}
			d, perr := ParseModule(data)
			if perr != nil {
				logger.Warn("descriptor: skipping invalid module descriptor", "path", path, "error", perr)
				return nil
			}
			if !PlatformMatches(d.SupportedPlatforms, platform) {
				logger.Debug("descriptor: module filtered by platform", "module", d.Language, "platform", platform)
				return nil
			}
			modules = append(modules, DiscoveredModule{
				Descriptor: d,
				Path:       path,
				BaseDir:    filepath.Dir(path),
			})
		case strings.HasSuffix(path, PluginExtension):
			data, rerr := os.ReadFile(path) //nolint:gosec // path from a bounded directory walk
			if rerr != nil {
				logger.Warn("descriptor: cannot read plugin file", "path", path, "error", rerr)
				return nil
			}
			name := pluginNameFromPath(path)
			d, perr := ParsePlugin(data, name)
			if perr != nil {
				logger.Warn("descriptor: skipping invalid plugin descriptor", "path", path, "error", perr)
				return nil
			}
			if !PlatformMatches(d.SupportedPlatforms, platform) {
				logger.Debug("descriptor: plugin filtered by platform", "plugin", d.Name(), "platform", platform)
				return nil
			}
			if d.DroppedDependencies > 0 {
				logger.Warn("descriptor: dropped duplicate dependencies", "plugin", d.Name(), "count", d.DroppedDependencies)
			}
			if d.DroppedMethods > 0 {
				logger.Warn("descriptor: dropped duplicate exported methods", "plugin", d.Name(), "count", d.DroppedMethods)
			}
			dir := filepath.Dir(path)
			plugins = append(plugins, DiscoveredPlugin{
				Descriptor: d,
				Path:       path,
				BaseDir:    dir,
				ContentDir: dir,
			})
		}
		return nil
	})
	if err != nil {
		return Result{}, oops.In("descriptor").Code("FilesystemIO").With("baseDir", baseDir).Wrap(err)
	}

	modules = dedupeModules(modules, logger)
	plugins = dedupePlugins(plugins, logger)

	// Discovery order is filesystem-walk order; sort by path for a
	// stable, reproducible tie-break as spec §4.2 requires.
	sort.Slice(modules, func(i, j int) bool { return modules[i].Path < modules[j].Path })
	sort.Slice(plugins, func(i, j int) bool { return plugins[i].Path < plugins[j].Path })

	return Result{Plugins: plugins, Modules: modules}, nil
}

// pluginNameFromPath derives a plugin's identity from its containing
// directory, e.g. plugins/hello/hello.plugin -> "hello".
func pluginNameFromPath(path string) string {
	return filepath.Base(filepath.Dir(path))
}

// PlatformMatches reports whether current is in supported, or
// supported is empty (meaning "every platform").
func PlatformMatches(supported []Platform, current Platform) bool {
	if len(supported) == 0 {
		return true
	}
	for _, p := range supported {
		if p == current {
			return true
		}
	}
	return false
}

// walkDepth walks root up to maxDepth directory levels deep, invoking
// fn for every regular file encountered.
func walkDepth(root string, maxDepth int, fn func(path string, depth int) error) error {
	return walkLevel(root, 0, maxDepth, fn)
}

func walkLevel(dir string, depth, maxDepth int, fn func(path string, depth int) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		full := filepath.Join(dir, e.Name())
		if e.IsDir() {
			if depth < maxDepth {
				if err := walkLevel(full, depth+1, maxDepth, fn); err != nil {
					return err
				}
			}
			continue
		}
		if err := fn(full, depth); err != nil {
			return err
		}
	}
	return nil
}

// dedupeModules keeps, for each language tag, the descriptor with the
// highest version; ties are logged and the later-encountered copy is
// dropped, per spec's invariant on module/plugin name uniqueness.
func dedupeModules(in []DiscoveredModule, logger *slog.Logger) []DiscoveredModule {
	best := make(map[string]DiscoveredModule, len(in))
	for _, m := range in {
		key := m.Descriptor.Language
		cur, ok := best[key]
		if !ok {
			best[key] = m
			continue
		}
		switch {
		case m.Descriptor.Version > cur.Descriptor.Version:
			best[key] = m
		case m.Descriptor.Version == cur.Descriptor.Version:
			logger.Warn("descriptor: duplicate module version, keeping first seen", "module", key, "version", m.Descriptor.Version)
		default:
			logger.Warn("descriptor: superseded module descriptor discarded", "module", key, "discarded_version", m.Descriptor.Version, "kept_version", cur.Descriptor.Version)
		}
	}
	out := make([]DiscoveredModule, 0, len(best))
	for _, m := range best {
		out = append(out, m)
	}
	return out
}

func dedupePlugins(in []DiscoveredPlugin, logger *slog.Logger) []DiscoveredPlugin {
	best := make(map[string]DiscoveredPlugin, len(in))
	for _, p := range in {
		key := p.Descriptor.Name()
		cur, ok := best[key]
		if !ok {
			best[key] = p
			continue
		}
		switch {
		case p.Descriptor.Version > cur.Descriptor.Version:
			best[key] = p
		case p.Descriptor.Version == cur.Descriptor.Version:
			logger.Warn("descriptor: duplicate plugin version, keeping first seen", "plugin", key, "version", p.Descriptor.Version)
		default:
			logger.Warn("descriptor: superseded plugin descriptor discarded", "plugin", key, "discarded_version", p.Descriptor.Version, "kept_version", cur.Descriptor.Version)
		}
	}
	out := make([]DiscoveredPlugin, 0, len(best))
	for _, p := range best {
		out = append(out, p)
	}
	return out
}
