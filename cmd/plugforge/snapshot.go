// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSnapshotCmd() *cobra.Command {
	var pretty bool

	cmd := &cobra.Command{
		Use:   "snapshot <path>",
		Short: "Write the currently installed package set to a snapshot file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Flags())
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			in := newInstallerFor(cfg)
			if err := in.SnapshotPackages(args[0], pretty); err != nil {
				return fmt.Errorf("writing snapshot: %w", err)
			}

			cmd.Printf("wrote snapshot to %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&pretty, "pretty", false, "pretty-print the snapshot JSON")
	return cmd
}
