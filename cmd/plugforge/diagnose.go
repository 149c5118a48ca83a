// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/plugforge/plugforge/internal/pkgmanager"
)

func newDiagnoseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Check installed plugins for missing or conflicting dependencies",
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
			local := make([]pkgmanager.LocalPackage, 0, len(manifest.Packages))
			for _, p := range manifest.Packages {
				local = append(local, p)
			}

			remote, err := pkgmanager.FetchRemoteIndex(cmd.Context(), in.Pool, cfg.Repositories, in.Logger)
			if err != nil {
				return fmt.Errorf("fetching remote index: %w", err)
			}

			result := pkgmanager.Diagnose(local, remote, in.Platform, in.Logger)

			if len(result.Missed) == 0 && len(result.Conflicted) == 0 {
				cmd.Println("no missing or conflicting dependencies")
				return nil
			}

			if len(result.Missed) > 0 {
				names := make([]string, 0, len(result.Missed))
				for name := range result.Missed {
					names = append(names, name)
				}
				sort.Strings(names)

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				_, _ = fmt.Fprintln(w, "MISSED\tLATEST REMOTE VERSION")
				for _, name := range names {
					_, _ = fmt.Fprintf(w, "%s\t%d\n", name, result.Missed[name])
				}
				_ = w.Flush()
			}

			if len(result.Conflicted) > 0 {
				sort.Strings(result.Conflicted)
				cmd.Println("conflicted:", result.Conflicted)
			}

			return nil
		},
	}
	return cmd
}
