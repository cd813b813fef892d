// =============================================================================
// Order History Export - Main Entry Point
// =============================================================================
//
// This is the main entry point for the orderexport CLI. It delegates command
// execution to the cmd package.
//
// USAGE:
//   orderexport fetch    - Process a saved order list page into the store
//   orderexport export   - Write the stored orders to orders.csv / orders.xlsx
//   orderexport status   - Show the stored order count and date range
//   orderexport reset    - Clear the store
//   orderexport version  - Display the application version
//
// ARCHITECTURE:
//   - cmd/       : CLI command definitions (Cobra)
//   - internal/  : locators, normalizers, assembler, store, exporters
//   - pkg/       : file delivery and report helpers
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/order-history-export/cmd"
)

func main() {
	cmd.Execute()
}
