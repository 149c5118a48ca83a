// SPDX-License-Identifier: Apache-2.0

package main

import (
	"log/slog"

	"github.com/plugforge/plugforge"
	"github.com/plugforge/plugforge/internal/config"
	"github.com/plugforge/plugforge/internal/logging"
	"github.com/plugforge/plugforge/internal/pkgmanager"
	"github.com/plugforge/plugforge/internal/pkgmanager/downloader"
)

// newLogger builds the logger every subcommand hands to the installer
// and downloader pool, tagged with the CLI's own version.
func newLogger() *slog.Logger {
	return logging.Setup("plugforge", version, "json", nil)
}

// newInstallerFor wires an Installer and its downloader pool from a
// resolved configuration, following the same construction the
// scheduled sync path uses.
func newInstallerFor(cfg config.Config) *pkgmanager.Installer {
	pool := downloader.NewPool()
	return pkgmanager.NewInstaller(cfg.BaseDir, plugforge.CurrentPlatform(), pool, newLogger())
}
