// SPDX-License-Identifier: Apache-2.0

// Package plugforge is a thin facade over the plugin lifecycle engine
// and package manager, wiring them from a Config the way a host
// process would.
package plugforge

import (
	"context"
	"log/slog"
	goruntime "runtime"
	"time"

	"github.com/plugforge/plugforge/internal/config"
	"github.com/plugforge/plugforge/internal/descriptor"
	"github.com/plugforge/plugforge/internal/languagemodule"
	"github.com/plugforge/plugforge/internal/pkgmanager"
	"github.com/plugforge/plugforge/internal/pkgmanager/downloader"
	"github.com/plugforge/plugforge/internal/runtime"
)

// CurrentPlatform reports this process's OS/architecture as the short
// tag descriptors compare supportedPlatforms entries against.
func CurrentPlatform() descriptor.Platform {
	return descriptor.Platform(goruntime.GOOS + "-" + goruntime.GOARCH)
}

// Runtime bundles the pieces a host process needs: the plugin
// lifecycle engine, the package manager, and the scheduler that
// drives its unattended updates, all rooted at the same base
// directory.
type Runtime struct {
	Config    config.Config
	Engine    *runtime.Engine
	Installer *pkgmanager.Installer
	Scheduler *pkgmanager.Scheduler
	Watcher   *descriptor.Watcher
}

// New builds a Runtime from cfg. Callers must still RegisterHost for
// every language they support before calling Initialize.
func New(cfg config.Config, logger *slog.Logger) *Runtime {
	platform := CurrentPlatform()
	engine := runtime.NewEngine(cfg.BaseDir, platform, logger)
	installer := pkgmanager.NewInstaller(cfg.BaseDir, platform, downloader.NewPool(), logger)
	scheduler := pkgmanager.NewScheduler(installer, cfg.Repositories, logger)

	return &Runtime{
		Config:    cfg,
		Engine:    engine,
		Installer: installer,
		Scheduler: scheduler,
	}
}

// RegisterHost associates a language tag with the host implementation
// that loads and runs plugins declaring that language.
func (r *Runtime) RegisterHost(language string, host languagemodule.Host) {
	r.Engine.RegisterHost(language, host)
}

// Initialize discovers, resolves, loads, and starts every plugin under
// Config.BaseDir.
func (r *Runtime) Initialize(ctx context.Context) error {
	return r.Engine.Initialize(ctx)
}

// Shutdown ends and unloads every running plugin and shuts down every
// initialized language module host. It also stops the scheduler and
// the descriptor watcher, if either was started.
func (r *Runtime) Shutdown(ctx context.Context) {
	if r.Watcher != nil {
		_ = r.Watcher.Close()
	}
	r.Scheduler.Stop()
	r.Engine.Shutdown(ctx)
}

// StartScheduler begins an unattended sync against Config.Repositories
// on the given cron spec, updating every locally installed package
// that has a newer remote version (spec §6's cron-scheduled remote
// sync). It is optional: a host that never calls it gets no
// background activity from the package manager at all.
func (r *Runtime) StartScheduler(spec string) error {
	return r.Scheduler.Start(spec)
}

// WatchForChanges starts an fsnotify watch on Config.BaseDir that
// re-runs Initialize, debounced by the given interval, whenever a
// descriptor file is created, written, or removed. It is optional,
// mirroring StartScheduler: a host that never calls it must still
// trigger re-discovery itself after package-manager mutations. Calling
// it twice replaces the previous watcher.
func (r *Runtime) WatchForChanges(debounce time.Duration) error {
	w, err := descriptor.NewWatcher(r.Config.BaseDir, debounce, func() {
		_ = r.Engine.Initialize(context.Background())
	})
	if err != nil {
		return err
	}
	if r.Watcher != nil {
		_ = r.Watcher.Close()
	}
	r.Watcher = w
	return nil
}
