// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/plugforge/plugforge/internal/pkgmanager"
)

func newInstallCmd() *cobra.Command {
	var fromManifest string
	var reinstall bool

	cmd := &cobra.Command{
		Use:   "install <name[@version]>",
		Short: "Install a package from the configured repositories, or from a manifest with -f",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Flags())
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			in := newInstallerFor(cfg)

			if fromManifest != "" {
				results, err := in.InstallAllPackages(cmd.Context(), fromManifest, reinstall)
				if err != nil {
					return fmt.Errorf("installing from manifest %q: %w", fromManifest, err)
				}
				for _, r := range results {
					if r.Err != nil {
						cmd.PrintErrf("install %s: %v\n", r.Name, r.Err)
						continue
					}
					cmd.Printf("installed %s\n", r.Name)
				}
				return nil
			}

			if len(args) != 1 {
				return fmt.Errorf("install requires a package name or -f <manifest>")
			}
			name, wantVersion, hasVersion := parseNameVersion(args[0])

			remote, err := pkgmanager.FetchRemoteIndex(cmd.Context(), in.Pool, cfg.Repositories, in.Logger)
			if err != nil {
				return fmt.Errorf("fetching repository index: %w", err)
			}

			var pkg pkgmanager.RemotePackage
			found := false
			for _, r := range remote {
				if r.Name == name {
					pkg = r
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("package %q not found in any configured repository", name)
			}

			var versionOpt *int64
			if hasVersion {
				versionOpt = &wantVersion
			}
			if err := in.InstallPackage(cmd.Context(), pkg, versionOpt); err != nil {
				return fmt.Errorf("installing %q: %w", name, err)
			}

			cmd.Printf("installed %s\n", name)
			return nil
		},
	}
	cmd.Flags().StringVarP(&fromManifest, "file", "f", "", "install every package listed in a manifest path or URL")
	cmd.Flags().BoolVar(&reinstall, "reinstall", false, "reinstall packages already present at the manifest's version")
	return cmd
}

// parseNameVersion splits "name@version" into its parts.
func parseNameVersion(arg string) (name string, version int64, hasVersion bool) {
	idx := strings.LastIndex(arg, "@")
	if idx < 0 {
		return arg, 0, false
	}
	v, err := strconv.ParseInt(arg[idx+1:], 10, 64)
	if err != nil {
		return arg, 0, false
	}
	return arg[:idx], v, true
}
