// =============================================================================
// Order History Export - Export Command
// =============================================================================
//
// COMMAND USAGE:
//   orderexport export [--format csv|xlsx] [--stdout]
//
// OUTPUT:
//   csv  : orders.csv, one "id|date|item|price" line per line item
//   xlsx : orders.xlsx, sheet "Orders", same rows under a header row
//
// The export reads the store and never changes it.
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/order-history-export/internal/config"
	"github.com/ginjaninja78/order-history-export/internal/exporter"
	"github.com/ginjaninja78/order-history-export/internal/xlsxwriter"
	"github.com/ginjaninja78/order-history-export/pkg/utils"
)

const (
	formatCSV  = "csv"
	formatXLSX = "xlsx"
)

var (
	exportFormat string
	exportStdout bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the stored orders",
	Long: `Export every stored order as orders.csv (pipe-delimited, no header, sorted
by order date then order id) or as an orders.xlsx workbook.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := setup(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		var sink utils.Sink = utils.NewFileManager(rt.cfg.OutputDir)
		if exportStdout {
			sink = utils.WriterSink{W: cmd.OutOrStdout()}
		}

		location, err := exportStore(ctx, rt, exportFormat, sink)
		if err != nil {
			return err
		}
		if !exportStdout {
			fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", location)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportFormat, "format", formatCSV, "Export format: csv or xlsx")
	exportCmd.Flags().BoolVar(&exportStdout, "stdout", false, "Write the export to standard output")
}

// exportStore renders every stored record and delivers it to sink.
func exportStore(ctx context.Context, rt *session, format string, sink utils.Sink) (string, error) {
	records, err := rt.store.All(ctx)
	if err != nil {
		return "", err
	}

	var (
		data        []byte
		contentType string
		name        string
	)
	switch format {
	case formatCSV:
		data = exporter.Serialize(records)
		contentType = exporter.ContentType
		name = exportFileName(rt.cfg, ".csv")
	case formatXLSX:
		data, err = xlsxwriter.Generate(records)
		if err != nil {
			return "", err
		}
		contentType = xlsxwriter.ContentType
		name = exportFileName(rt.cfg, ".xlsx")
	default:
		return "", fmt.Errorf("unknown export format %q (want %s or %s)", format, formatCSV, formatXLSX)
	}

	location, err := sink.Deliver(name, contentType, data)
	if err != nil {
		return "", err
	}

	rt.logger.WithField("records", len(records)).
		WithField("bytes", len(data)).
		WithField("location", location).
		Info("export delivered")
	return location, nil
}

// exportFileName is output_name_format when set, else export_file_name with
// its extension swapped for ext.
func exportFileName(cfg *config.MainConfig, ext string) string {
	if cfg.OutputNameFormat != "" {
		format := strings.TrimSuffix(cfg.OutputNameFormat, filepath.Ext(cfg.OutputNameFormat))
		return utils.GenerateOutputFileName(format, ext, nil)
	}
	return strings.TrimSuffix(cfg.ExportFileName, filepath.Ext(cfg.ExportFileName)) + ext
}
