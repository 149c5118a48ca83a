// SPDX-License-Identifier: Apache-2.0

// Package resolver builds the plugin dependency graph, detects cycles,
// and emits a load-ordered plugin list, per spec §4.2.
package resolver

import (
	"fmt"

	"github.com/plugforge/plugforge/internal/descriptor"
)

// Plugin is the minimal view the resolver needs of a discovered plugin.
// The lifecycle engine's runtime.Plugin satisfies this.
type Plugin interface {
	Name() string
	Version() int64
	Descriptor() *descriptor.PluginDescriptor
	// MarkError records a fatal resolution error on the plugin.
	MarkError(reason string)
}

// Module is the minimal view the resolver needs of a discovered module.
type Module interface {
	Language() string
}

// color is the DFS node state used for cycle detection.
type color int

const (
	white color = iota
	gray
	black
)

// Result is the outcome of dependency resolution.
type Result struct {
	// Order is the load order: dependencies precede their dependents.
	Order []Plugin
	// Failed holds every plugin excluded from Order because of a
	// missing language module, an unresolved dependency, or a cycle.
	Failed []Plugin
}

// Resolve builds the plugin dependency graph over plugins and modules,
// applies spec §4.2's four rules, and returns the load order. platform
// is the running platform: a dependency whose SupportedPlatforms
// excludes it is treated as absent for both resolution and ordering
// (spec §4.2 rule 2's "whose platform filter matches").
func Resolve(plugins []Plugin, modules []Module, platform descriptor.Platform) Result {
	byName := make(map[string]Plugin, len(plugins))
	for _, p := range plugins {
		byName[p.Name()] = p
	}
	languageAvailable := make(map[string]bool, len(modules))
	for _, m := range modules {
		languageAvailable[m.Language()] = true
	}

	var failed []Plugin
	failedSet := make(map[string]bool)

	fail := func(p Plugin, reason string) {
		if failedSet[p.Name()] {
			return
		}
		failedSet[p.Name()] = true
		p.MarkError(reason)
		failed = append(failed, p)
	}

	// Rule 1: missing language module.
	for _, p := range plugins {
		lang := p.Descriptor().LanguageModule.Name
		if !languageAvailable[lang] {
			fail(p, fmt.Sprintf("missing language module %q", lang))
		}
	}

	// Rule 2: unresolved non-optional dependencies (missing, or
	// version mismatch when requestedVersion is set).
	for _, p := range plugins {
		if failedSet[p.Name()] {
			continue
		}
		for _, dep := range p.Descriptor().Dependencies {
			if dep.Optional || !descriptor.PlatformMatches(dep.SupportedPlatforms, platform) {
				continue
			}
			target, ok := byName[dep.Name]
			if !ok {
				fail(p, fmt.Sprintf("unresolved dependency %q", dep.Name))
				break
			}
			if dep.RequestedVersion != nil && *dep.RequestedVersion != target.Version() {
				fail(p, fmt.Sprintf("dependency %q version mismatch: requested %d, found %d", dep.Name, *dep.RequestedVersion, target.Version()))
				break
			}
		}
	}

	// Build the graph over the plugins that survived rules 1-2. Both
	// optional (when present) and non-optional dependencies constrain
	// ordering, per rule 4.
	nodes := make([]Plugin, 0, len(plugins))
	for _, p := range plugins {
		if !failedSet[p.Name()] {
			nodes = append(nodes, p)
		}
	}
	// Discovery order (already the walk order the caller provides) is
	// the tie-break among independent plugins; sort defensively by
	// name isn't right here since order must be the incoming order.

	edges := make(map[string][]string, len(nodes))
	for _, p := range nodes {
		var deps []string
		for _, dep := range p.Descriptor().Dependencies {
			if !descriptor.PlatformMatches(dep.SupportedPlatforms, platform) {
				continue // platform-excluded: never constrains ordering, present or not
			}
			if _, ok := byName[dep.Name]; !ok {
				continue // optional and absent: does not constrain ordering
			}
			if failedSet[dep.Name] {
				continue
			}
			deps = append(deps, dep.Name)
		}
		edges[p.Name()] = deps
	}

	colors := make(map[string]color, len(nodes))
	var order []Plugin
	inCycle := make(map[string]bool)

	var stack []string
	var visit func(name string) bool
	visit = func(name string) bool {
		switch colors[name] {
		case black:
			return true
		case gray:
			// Back-edge to a gray node: every plugin on the stack from
			// name onward is part of the cycle.
			started := false
			for _, s := range stack {
				if s == name {
					started = true
				}
				if started {
					inCycle[s] = true
				}
			}
			inCycle[name] = true
			return false
		}
		colors[name] = gray
		stack = append(stack, name)
		ok := true
		for _, dep := range edges[name] {
			if inCycle[dep] {
				inCycle[name] = true
				ok = false
				continue
			}
			if !visit(dep) {
				ok = false
			}
		}
		stack = stack[:len(stack)-1]
		colors[name] = black
		if ok && !inCycle[name] {
			order = append(order, byName[name])
		}
		return ok
	}

	for _, p := range nodes {
		if colors[p.Name()] == white {
			visit(p.Name())
		}
	}

	for _, p := range nodes {
		if inCycle[p.Name()] {
			fail(p, "cyclic dependency")
		}
	}

	// order was appended in post-order (dependencies-first for the
	// portion of the tree already emitted), which is exactly the load
	// order spec §4.2 rule 3 wants ("ordered by post-order reverse" of
	// the visit, i.e. dependency-before-dependent in our bottom-up
	// append). Drop anything that ended up in a cycle after the fact.
	final := order[:0]
	for _, p := range order {
		if !inCycle[p.Name()] {
			final = append(final, p)
		}
	}

	return Result{Order: final, Failed: failed}
}
