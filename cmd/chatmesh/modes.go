package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/chatmesh/chatmode"
)

func newModesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "modes",
		Short: "List supported chat modes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, m := range chatmode.SupportedModes() {
				fmt.Fprintln(cmd.OutOrStdout(), m)
			}
			return nil
		},
	}
}
