// SPDX-License-Identifier: Apache-2.0

package runtime

import (
	"context"
	"log/slog"

	"github.com/samber/oops"

	"github.com/plugforge/plugforge/internal/descriptor"
	"github.com/plugforge/plugforge/internal/languagemodule"
	"github.com/plugforge/plugforge/internal/resolver"
)

// Engine drives the full lifecycle: discover, resolve, load, start,
// and — in reverse — end, unload, and shut down (spec §4.1, §9). It
// never panics on a per-entity failure; every failure is captured on
// the offending Module or Plugin instead.
type Engine struct {
	BaseDir  string
	Platform descriptor.Platform
	Logger   *slog.Logger

	hosts             map[string]languagemodule.Host
	initializedHosts  map[string]bool
	modules           []*Module
	plugins           []*Plugin
	order             []*Plugin

	// pluginIDs and nextPluginID give plugin UniqueIds process-lifetime
	// stability across repeated Initialize calls, keyed by plugin name.
	pluginIDs    map[string]uint64
	nextPluginID uint64
}

// NewEngine creates an engine rooted at baseDir.
func NewEngine(baseDir string, platform descriptor.Platform, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		BaseDir:          baseDir,
		Platform:         platform,
		Logger:           logger,
		hosts:            make(map[string]languagemodule.Host),
		initializedHosts: make(map[string]bool),
		pluginIDs:        make(map[string]uint64),
	}
}

// RegisterHost associates a language tag with the host that will load
// and run plugins declaring that languageModule.name. Must be called
// before Initialize.
func (e *Engine) RegisterHost(language string, host languagemodule.Host) {
	e.hosts[language] = host
}

// Initialize runs discovery, resolution, load, and start in one pass.
// It returns an error only for conditions that make the whole pass
// meaningless (e.g. the base directory is unreadable); ordinary
// per-plugin failures are recorded on the plugin, not returned.
func (e *Engine) Initialize(ctx context.Context) error {
	result, err := descriptor.Discover(e.BaseDir, e.Platform, e.Logger)
	if err != nil {
		return oops.In("runtime").Wrap(err)
	}

	e.plugins = make([]*Plugin, 0, len(result.Plugins))
	for _, dp := range result.Plugins {
		e.plugins = append(e.plugins, e.newPlugin(dp.Descriptor, dp.Path, dp.BaseDir, dp.ContentDir))
	}

	// spec §4.4 step 2: only load a module whose language at least one
	// discovered plugin references, or whose descriptor sets forceLoad.
	// Anything else stays ModuleNotLoaded without ever touching its host.
	referencedLanguages := make(map[string]bool, len(e.plugins))
	for _, p := range e.plugins {
		referencedLanguages[p.ModuleLanguage] = true
	}

	e.modules = make([]*Module, 0, len(result.Modules))
	for _, dm := range result.Modules {
		m := &Module{Descriptor: dm.Descriptor, Path: dm.Path, BaseDir: dm.BaseDir}
		if referencedLanguages[m.Language()] || dm.Descriptor.ForceLoad {
			e.initModule(ctx, m)
		}
		e.modules = append(e.modules, m)
	}

	resolverPlugins := make([]resolver.Plugin, len(e.plugins))
	for i, p := range e.plugins {
		resolverPlugins[i] = p
	}
	resolverModules := make([]resolver.Module, 0, len(e.modules))
	for _, m := range e.modules {
		if m.State == ModuleLoaded {
			resolverModules = append(resolverModules, m)
		}
	}

	res := resolver.Resolve(resolverPlugins, resolverModules, e.Platform)

	e.order = make([]*Plugin, 0, len(res.Order))
	for _, rp := range res.Order {
		e.order = append(e.order, rp.(*Plugin))
	}

	for _, p := range e.order {
		e.loadAndStart(ctx, p)
	}

	return nil
}

// initModule ensures the host for m's language is registered and
// initialized exactly once.
func (e *Engine) initModule(ctx context.Context, m *Module) {
	host, ok := e.hosts[m.Language()]
	if !ok {
		m.MarkError("missing language module host: " + m.Language())
		return
	}
	if !e.initializedHosts[m.Language()] {
		if err := host.Initialize(ctx); err != nil {
			m.MarkError(err.Error())
			return
		}
		e.initializedHosts[m.Language()] = true
	}
	m.MarkLoaded()
}

func (e *Engine) loadAndStart(ctx context.Context, p *Plugin) {
	host, ok := e.hosts[p.ModuleLanguage]
	if !ok {
		p.MarkError("missing language module host: " + p.ModuleLanguage)
		return
	}

	if err := host.OnLoadPlugin(ctx, p.Descriptor(), p.ContentDir); err != nil {
		p.MarkError(err.Error())
		e.Logger.Warn("runtime: plugin load failed", "plugin", p.Name(), "error", err)
		return
	}
	p.MarkLoaded()

	if err := host.OnStartPlugin(ctx, p.Name()); err != nil {
		p.MarkError(err.Error())
		e.Logger.Warn("runtime: plugin start failed", "plugin", p.Name(), "error", err)
		return
	}
	p.MarkRunning()
}

// Shutdown ends and unloads every running plugin in reverse load
// order, then shuts down every initialized host, mirroring
// Initialize's forward order (spec §9).
func (e *Engine) Shutdown(ctx context.Context) {
	for i := len(e.order) - 1; i >= 0; i-- {
		p := e.order[i]
		if p.State != PluginRunning && p.State != PluginLoaded {
			continue
		}
		host, ok := e.hosts[p.ModuleLanguage]
		if !ok {
			continue
		}
		p.MarkTerminating()
		if err := host.OnEndPlugin(ctx, p.Name()); err != nil {
			e.Logger.Warn("runtime: plugin end failed", "plugin", p.Name(), "error", err)
		}
	}

	for lang := range e.initializedHosts {
		host := e.hosts[lang]
		if err := host.Shutdown(ctx); err != nil {
			e.Logger.Warn("runtime: host shutdown failed", "language", lang, "error", err)
		}
	}
	e.initializedHosts = make(map[string]bool)
}

// Update dispatches a per-tick hook to every host that implements
// languagemodule.Updater. Dispatch is per-host, not per-plugin: a
// scripting runtime's tick (e.g. incremental GC) is a property of the
// interpreter, not of any one plugin running inside it.
func (e *Engine) Update(dtSeconds float64) {
	for _, host := range e.hosts {
		if u, ok := host.(languagemodule.Updater); ok {
			u.OnUpdate(dtSeconds)
		}
	}
}

// CallMethod invokes a Running plugin's exported method by name.
func (e *Engine) CallMethod(ctx context.Context, pluginName, methodName string, args []uint64) (uint64, error) {
	p := e.FindPlugin(pluginName)
	if p == nil {
		return 0, oops.In("runtime").With("plugin", pluginName).New("plugin not found")
	}
	if p.State != PluginRunning {
		return 0, oops.In("runtime").With("plugin", pluginName).With("state", p.State.String()).New("plugin is not running")
	}
	var method *descriptor.Method
	for i := range p.Descriptor().ExportedMethods {
		if p.Descriptor().ExportedMethods[i].Name == methodName {
			method = &p.Descriptor().ExportedMethods[i]
			break
		}
	}
	if method == nil {
		return 0, oops.In("runtime").With("plugin", pluginName).With("method", methodName).New("method not exported")
	}
	host := e.hosts[p.ModuleLanguage]
	return host.CallExportedMethod(ctx, pluginName, *method, args)
}
