package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iconidentify/reelgrabba/internal/domain"
	"github.com/iconidentify/reelgrabba/internal/platform"
)

func newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan <text...>",
		Short: "Print the first supported video link found in a message",
		Args:  cobra.MinimumNArgs(1),
		// scan needs no configuration
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			url, tag, ok := platform.ExtractLink(strings.Join(args, " "))
			if !ok {
				return domain.ErrNoLink
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", tag, url)
			return nil
		},
	}
}
