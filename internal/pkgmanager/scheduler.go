// SPDX-License-Identifier: Apache-2.0

package pkgmanager

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler periodically re-syncs against configured repositories and
// updates every locally installed package that has a newer remote
// version. It funnels through the same Installer/downloader barrier
// as a manually triggered update — a scheduled tick is not a special
// code path (spec §6).
type Scheduler struct {
	Installer    *Installer
	Repositories []string
	Logger       *slog.Logger

	cron *cron.Cron
}

// NewScheduler creates a scheduler using the standard 5-field cron
// parser.
func NewScheduler(installer *Installer, repositories []string, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		Installer:    installer,
		Repositories: repositories,
		Logger:       logger,
		cron:         cron.New(),
	}
}

// Start schedules a sync at the given cron spec (e.g. "0 */6 * * *"
// for every six hours) and begins running it in the background.
func (s *Scheduler) Start(spec string) error {
	_, err := s.cron.AddFunc(spec, s.syncOnce)
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the scheduler and waits for any in-flight sync to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) syncOnce() {
	ctx := context.Background()

	remote, err := FetchRemoteIndex(ctx, s.Installer.Pool, s.Repositories, s.Logger)
	if err != nil {
		s.Logger.Warn("pkgmanager: scheduled sync failed to fetch repositories", "error", err)
		return
	}

	results, err := s.Installer.UpdateAllPackages(ctx, remote)
	if err != nil {
		s.Logger.Warn("pkgmanager: scheduled sync failed to read manifest", "error", err)
		return
	}
	for _, r := range results {
		if r.Err != nil {
			s.Logger.Warn("pkgmanager: scheduled update failed", "package", r.Name, "error", r.Err)
		}
	}
}
