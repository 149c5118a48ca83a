// SPDX-License-Identifier: Apache-2.0

package pkgmanager

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/samber/oops"

	"github.com/plugforge/plugforge/internal/descriptor"
	"github.com/plugforge/plugforge/internal/pkgmanager/downloader"
	"github.com/plugforge/plugforge/pkg/errutil"
)

// FetchRemoteIndex downloads and merges every repository's package
// manifest into one flat list, keyed by name (the same name seen in
// several repositories yields one entry whose versions are the union
// of theirs; the first-seen entry's metadata is kept).
// A manifest entry whose key disagrees with its embedded package name
// is discarded and logged, per spec §4.5 remote scan.
func FetchRemoteIndex(ctx context.Context, pool *downloader.Pool, repositories []string, logger *slog.Logger) ([]RemotePackage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	for i, url := range repositories {
		pool.Submit(downloader.Request{Name: fmt.Sprintf("repository-%d", i), URL: url})
	}
	results := pool.WaitForAllRequests(ctx)

	byName := make(map[string]RemotePackage)
	var order []string
	for _, r := range results {
		if r.Err != nil {
			return nil, oops.In("pkgmanager").Code("HttpFailure").With("url", r.Request.URL).Wrap(r.Err)
		}
		merged, err := parsePackageManifest(r.Body)
		if err != nil {
			return nil, oops.In("pkgmanager").Code("ArchiveInvalid").With("url", r.Request.URL).Wrap(err)
		}
		for key, pkg := range merged.Content {
			if pkg.Name != key {
				logger.Error("pkgmanager: manifest key disagrees with package name, discarding entry",
					"url", r.Request.URL, "key", key, "name", pkg.Name)
				continue
			}
			if _, seen := byName[pkg.Name]; !seen {
				order = append(order, pkg.Name)
			}
			byName[pkg.Name] = mergeVersions(byName[pkg.Name], pkg)
		}
	}

	out := make([]RemotePackage, 0, len(order))
	for _, name := range order {
		out = append(out, byName[name])
	}
	return out, nil
}

func parsePackageManifest(body []byte) (packageManifest, error) {
	var m packageManifest
	if err := json.Unmarshal(body, &m); err != nil {
		return packageManifest{}, err
	}
	return m, nil
}

// mergeVersions unions the version sets of the same-named package
// seen across multiple repositories, by PackageVersion identity (its Version number),
// keeping the first-seen entry for a given version.
func mergeVersions(existing, incoming RemotePackage) RemotePackage {
	if existing.Name == "" {
		return incoming
	}
	seen := make(map[int64]bool, len(existing.Versions))
	merged := existing
	for _, v := range existing.Versions {
		seen[v.Version] = true
	}
	for _, v := range incoming.Versions {
		if !seen[v.Version] {
			merged.Versions = append(merged.Versions, v)
			seen[v.Version] = true
		}
	}
	return merged
}

// DiagnosisResult is the outcome of a diagnosis pass over the local
// package set against the merged remote index (spec §4.5 Diagnosis).
type DiagnosisResult struct {
	// Missed maps a language tag or plugin name that is absent
	// locally but resolvable remotely to the version that should be
	// installed to close the gap.
	Missed map[string]int64
	// Conflicted lists local plugin names whose language module, or a
	// non-optional dependency, could not be resolved either locally
	// or remotely.
	Conflicted []string
}

// Diagnose walks every locally installed plugin, checking that its
// language module and every non-optional dependency are satisfiable —
// either already installed locally or resolvable from remote — and
// reports the gaps. Missing local packages that a remote repository
// can supply are recorded in Missed; anything unresolvable anywhere is
// recorded in Conflicted. platform is the running platform: a
// dependency whose SupportedPlatforms excludes it is skipped
// altogether, the same as internal/resolver.Resolve's rule 2
// (`original_source/src/core/package_manager.cpp`'s
// `dependency.optional || !IsSupportsPlatform(...)`).
func Diagnose(local []LocalPackage, remote []RemotePackage, platform descriptor.Platform, logger *slog.Logger) DiagnosisResult {
	if logger == nil {
		logger = slog.Default()
	}

	localByName := make(map[string]LocalPackage, len(local))
	for _, l := range local {
		localByName[l.Name] = l
	}
	remoteByName := make(map[string]RemotePackage, len(remote))
	for _, r := range remote {
		remoteByName[r.Name] = r
	}

	result := DiagnosisResult{Missed: make(map[string]int64)}

	addMissed := func(name string, version int64) {
		existing, ok := result.Missed[name]
		switch {
		case !ok:
			result.Missed[name] = version
		case existing == version:
			logger.Warn("pkgmanager: duplicate missing package requested at the same version, ignoring duplicate", "name", name, "version", version)
		case version > existing:
			logger.Warn("pkgmanager: conflicting versions requested for missing package, retaining the higher one", "name", name, "kept", version, "discarded", existing)
			result.Missed[name] = version
		default:
			logger.Warn("pkgmanager: conflicting versions requested for missing package, retaining the higher one", "name", name, "kept", existing, "discarded", version)
		}
	}

	for _, lp := range local {
		if lp.Type != PluginType {
			continue
		}
		pd, err := lp.PluginDescriptor()
		if err != nil {
			errutil.LogError(logger, "pkgmanager: local plugin has an unreadable stored descriptor", oops.In("pkgmanager").With("plugin", lp.Name).Wrap(err))
			result.Conflicted = append(result.Conflicted, lp.Name)
			continue
		}

		langTag := pd.LanguageModule.Name
		if _, ok := localByName[langTag]; !ok {
			if rp, ok := remoteByName[langTag]; ok {
				if latest, ok := rp.Latest(); ok {
					addMissed(langTag, latest.Version)
				} else {
					result.Conflicted = append(result.Conflicted, lp.Name)
				}
			} else {
				result.Conflicted = append(result.Conflicted, lp.Name)
			}
		}

		for _, dep := range pd.Dependencies {
			if dep.Optional || !descriptor.PlatformMatches(dep.SupportedPlatforms, platform) {
				continue
			}
			if _, ok := localByName[dep.Name]; ok {
				continue
			}
			rp, ok := remoteByName[dep.Name]
			if !ok {
				result.Conflicted = append(result.Conflicted, lp.Name)
				continue
			}
			if dep.RequestedVersion != nil {
				if _, ok := rp.Version(*dep.RequestedVersion); !ok {
					result.Conflicted = append(result.Conflicted, lp.Name)
					continue
				}
				addMissed(dep.Name, *dep.RequestedVersion)
				continue
			}
			latest, ok := rp.Latest()
			if !ok {
				result.Conflicted = append(result.Conflicted, lp.Name)
				continue
			}
			addMissed(dep.Name, latest.Version)
		}
	}

	return result
}
