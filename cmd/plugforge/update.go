// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/plugforge/plugforge/internal/pkgmanager"
)

func newUpdateCmd() *cobra.Command {
	var all bool
	var schedule string

	cmd := &cobra.Command{
		Use:   "update [<name>]",
		Short: "Update one or all installed packages to their latest remote version",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Flags())
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			in := newInstallerFor(cfg)

			if schedule != "" {
				return runScheduledUpdates(cmd, in, cfg.Repositories, schedule)
			}

			if !all && len(args) != 1 {
				return fmt.Errorf("update requires a package name, --all, or --schedule")
			}

			remote, err := pkgmanager.FetchRemoteIndex(cmd.Context(), in.Pool, cfg.Repositories, in.Logger)
			if err != nil {
				return fmt.Errorf("fetching repository index: %w", err)
			}

			manifest, err := pkgmanager.LoadManifest(in.ManifestPath)
			if err != nil {
				return fmt.Errorf("loading manifest: %w", err)
			}

			names := args
			if all {
				names = nil
				for name := range manifest.Packages {
					names = append(names, name)
				}
			}

			for _, name := range names {
				if err := in.Update(cmd.Context(), remote, name); err != nil {
					return fmt.Errorf("updating %q: %w", name, err)
				}
				cmd.Printf("checked %s\n", name)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "update every installed package")
	cmd.Flags().StringVar(&schedule, "schedule", "", "run unattended, re-syncing on this cron spec, until interrupted")
	return cmd
}

// runScheduledUpdates starts a pkgmanager.Scheduler on spec and blocks
// until SIGINT/SIGTERM, mirroring the teacher's core command's
// signal-driven shutdown (spec §6's cron-scheduled remote sync).
func runScheduledUpdates(cmd *cobra.Command, in *pkgmanager.Installer, repositories []string, spec string) error {
	scheduler := pkgmanager.NewScheduler(in, repositories, in.Logger)
	if err := scheduler.Start(spec); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	cmd.Printf("scheduled updates running on %q, press Ctrl+C to stop\n", spec)
	<-sigCh

	scheduler.Stop()
	cmd.Println("scheduler stopped")
	return nil
}
