// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/plugforge/plugforge/internal/pkgmanager"
)

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List installed packages",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Flags())
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			in := newInstallerFor(cfg)
			manifest, err := pkgmanager.LoadManifest(in.ManifestPath)
			if err != nil {
				return fmt.Errorf("loading manifest: %w", err)
			}

			names := make([]string, 0, len(manifest.Packages))
			for name := range manifest.Packages {
				names = append(names, name)
			}
			sort.Strings(names)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "NAME\tVERSION\tPATH")
			for _, name := range names {
				local := manifest.Packages[name]
				_, _ = fmt.Fprintf(w, "%s\t%d\t%s\n", local.Name, local.Version, local.Path)
			}
			return w.Flush()
		},
	}
	return cmd
}
