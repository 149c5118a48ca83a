// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plugforge/plugforge/internal/pkgmanager"
)

func newUninstallCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "uninstall [<name>]",
		Short: "Uninstall one or all installed packages",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) != 1 {
				return fmt.Errorf("uninstall requires a package name or --all")
			}

			cfg, err := loadConfig(cmd.Flags())
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			in := newInstallerFor(cfg)
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
				if err := in.Uninstall(name); err != nil {
					return fmt.Errorf("uninstalling %q: %w", name, err)
				}
				cmd.Printf("uninstalled %s\n", name)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "uninstall every installed package")
	return cmd
}
