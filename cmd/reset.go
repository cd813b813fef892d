package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// resetCmd clears the stored orders and totals. Keys outside the configured
// namespace are left alone.
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Remove every stored order and reset the totals",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := setup(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		removed, err := rt.store.Reset(ctx)
		if err != nil {
			return err
		}
		rt.logger.WithField("keys", removed).Info("store reset")
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d key(s)\n", removed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)
}
