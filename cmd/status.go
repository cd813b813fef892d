package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/order-history-export/internal/assembler"
)

// statusCmd prints the running totals kept in the store.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show how many orders are stored and their date range",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := setup(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		stats, err := rt.store.Stats(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), assembler.StatusText(stats, false))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
