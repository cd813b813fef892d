// =============================================================================
// Order History Export - Fetch Command
// =============================================================================
//
// This file defines the 'fetch' command, which processes one saved order
// list page: every order on it is resolved, its invoice fetched, and the
// result accumulated in the store.
//
// COMMAND USAGE:
//   orderexport fetch --list <page.html> [flags]
//
// FLAGS:
//   --list          : Saved order list page to process (required)
//   --invoice-dir   : Read invoices from <dir>/<order id>.html
//   --invoice-url   : Invoice URL prefix; the order id is appended
//   --export        : Export the store when the sweep finishes
//   --report        : Write a sweep_<timestamp>.log summary to the output dir
//   --metrics-file  : Write sweep metrics in the prometheus textfile format
//
// PROCESSING PIPELINE:
//   1. Load configuration and open the store
//   2. Parse the list page
//   3. Sweep every order card (see internal/assembler)
//   4. Print the per-order results and the status line
//   5. Optionally write the report, the metrics file and the export
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/order-history-export/internal/assembler"
	"github.com/ginjaninja78/order-history-export/internal/config"
	"github.com/ginjaninja78/order-history-export/internal/document"
	"github.com/ginjaninja78/order-history-export/internal/fetcher"
	"github.com/ginjaninja78/order-history-export/internal/locator"
	"github.com/ginjaninja78/order-history-export/internal/metrics"
	"github.com/ginjaninja78/order-history-export/pkg/utils"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	listFile    string
	invoiceDir  string
	invoiceURL  string
	exportAfter bool
	writeReport bool
	metricsFile string
)

// =============================================================================
// FETCH COMMAND DEFINITION
// =============================================================================

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Process one saved order list page into the store",
	Long: `The fetch command reads a saved order-history list page and processes every
order card on it:

  - digital orders are skipped and not counted
  - cancelled or returned orders are counted but not fetched
  - every other order has its invoice fetched, and its date and priced line
    items stored under the order id

Running the same page twice replaces the stored records. Orders that fail to
extract are reported and skipped unless continue_on_error is false.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runFetch(cmd.Context(), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().StringVar(&listFile, "list", "", "Saved order list page to process")
	fetchCmd.Flags().StringVar(&invoiceDir, "invoice-dir", "", "Read invoices from <dir>/<order id>.html")
	fetchCmd.Flags().StringVar(&invoiceURL, "invoice-url", "", "Invoice URL prefix; the order id is appended")
	fetchCmd.Flags().BoolVar(&exportAfter, "export", false, "Export the store after the sweep")
	fetchCmd.Flags().BoolVar(&writeReport, "report", false, "Write a sweep summary log to the output directory")
	fetchCmd.Flags().StringVar(&metricsFile, "metrics-file", "", "Write sweep metrics to this file")

	fetchCmd.MarkFlagRequired("list")
	fetchCmd.MarkFlagsMutuallyExclusive("invoice-dir", "invoice-url")
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

func runFetch(ctx context.Context, out io.Writer) error {
	rt, err := setup(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	fmt.Fprintln(out, "=== Order History Export ===")

	doc, err := document.ParseFile(listFile)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	sweepMetrics := metrics.NewSweepMetrics(registry)

	asm := assembler.New(
		locator.New(rt.cfg.Layout),
		newFetcher(rt.cfg),
		rt.store,
		assembler.WithLogger(rt.logger.WithField("list", filepath.Base(listFile))),
		assembler.WithMetrics(sweepMetrics),
		assembler.WithMaxConcurrency(rt.cfg.MaxConcurrency),
		assembler.WithContinueOnError(rt.cfg.ShouldContinueOnError()),
		assembler.WithFetchTimeout(rt.cfg.FetchTimeout),
	)

	result, sweepErr := asm.Sweep(ctx, doc)

	// =========================================================================
	// PER-ORDER RESULTS
	// =========================================================================

	for _, o := range result.Outcomes {
		id := o.OrderID
		if id == "" {
			id = fmt.Sprintf("card #%d", o.Index+1)
		}
		switch o.Status {
		case assembler.StatusStored:
			fmt.Fprintf(out, "  ✓ %s  %s  %d item(s)\n", id, o.Record.Date, len(o.Record.Items))
		case assembler.StatusCancelled:
			fmt.Fprintf(out, "  - %s  cancelled\n", id)
		case assembler.StatusDigital:
			fmt.Fprintf(out, "  - %s  digital, skipped\n", id)
		case assembler.StatusFetchSkipped:
			fmt.Fprintf(out, "  ? %s  no invoice\n", id)
		case assembler.StatusFailed:
			fmt.Fprintf(out, "  ✗ %s: %v\n", id, o.Err)
		}
	}

	stats, err := rt.store.Stats(ctx)
	if err != nil {
		return err
	}
	status := assembler.StatusText(stats, result.Completed)

	fmt.Fprintln(out, "\n=== Sweep Complete ===")
	fmt.Fprintf(out, "Orders on page:  %d\n", result.Cards)
	if !result.Completed {
		fmt.Fprintf(out, "Processed:       %d\n", len(result.Outcomes))
	}
	fmt.Fprintf(out, "Stored:          %d\n", result.Stored)
	fmt.Fprintf(out, "Cancelled:       %d\n", result.Cancelled)
	fmt.Fprintf(out, "Digital:         %d\n", result.DigitalSkipped)
	fmt.Fprintf(out, "No invoice:      %d\n", result.FetchSkipped)
	fmt.Fprintf(out, "Failed:          %d\n", result.Failed)
	fmt.Fprintf(out, "Time elapsed:    %s\n", result.Duration())
	fmt.Fprintln(out, status)

	// =========================================================================
	// REPORTS
	// =========================================================================

	if writeReport {
		path, err := utils.WriteSummaryLog(summaryOf(result, status), rt.cfg.OutputDir)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Summary written to %s\n", path)
	}

	if metricsFile != "" {
		if err := metrics.WriteTextfile(metricsFile, registry); err != nil {
			return err
		}
	}

	if sweepErr != nil {
		return fmt.Errorf("sweep stopped: %w", sweepErr)
	}

	if exportAfter {
		location, err := exportStore(ctx, rt, formatCSV, utils.NewFileManager(rt.cfg.OutputDir))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Exported to %s\n", location)
	}

	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// newFetcher picks the invoice source: flags first, then config.
func newFetcher(cfg *config.MainConfig) fetcher.Fetcher {
	switch {
	case invoiceDir != "":
		return fetcher.NewDirFetcher(invoiceDir)
	case invoiceURL != "":
		return fetcher.NewHTTPFetcher(&http.Client{}, invoiceURL, cfg.InvoiceHeaders)
	case cfg.InvoiceDir != "":
		return fetcher.NewDirFetcher(cfg.InvoiceDir)
	default:
		return fetcher.NewHTTPFetcher(&http.Client{}, cfg.InvoiceURLTemplate, cfg.InvoiceHeaders)
	}
}

func summaryOf(result *assembler.SweepResult, status string) utils.SweepSummary {
	summary := utils.SweepSummary{
		SweepID:        result.SweepID,
		ListFile:       listFile,
		StartTime:      result.StartTime,
		EndTime:        result.EndTime,
		Completed:      result.Completed,
		StatusLine:     status,
		Orders:         result.Cards,
		Stored:         result.Stored,
		Cancelled:      result.Cancelled,
		DigitalSkipped: result.DigitalSkipped,
		FetchSkipped:   result.FetchSkipped,
		Failed:         result.Failed,
	}
	for _, d := range result.Diagnostics {
		summary.Diagnostics = append(summary.Diagnostics, utils.DiagnosticEntry{
			OrderID:  d.OrderID,
			Kind:     d.Kind,
			Severity: d.Severity,
			Message:  d.Message,
		})
	}
	return summary
}
