// =============================================================================
// Order History Export - File Manager Utility
// =============================================================================
//
// This module provides the file side of the exporter, including:
//   - Output directory management
//   - Export delivery (a named file with a content type)
//   - Output file naming
//   - Sweep summary logs
//
// DELIVERY:
//   - Exports are written to a temporary file in the output directory and
//     renamed into place, so a reader never sees a half-written orders.csv
//   - An existing export with the same name is replaced
//   - A WriterSink delivers to a stream instead (used for --stdout)
//
// =============================================================================

package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// EXPORT SINKS
// =============================================================================

// Sink receives a finished export.
type Sink interface {
	// Deliver hands over the export and returns where it ended up.
	Deliver(name, contentType string, data []byte) (string, error)
}

// FileManager handles file operations for the exporter.
type FileManager struct {
	// OutputDir is the directory where exports and logs are placed.
	OutputDir string
}

// NewFileManager creates a new FileManager writing into outputDir.
func NewFileManager(outputDir string) *FileManager {
	return &FileManager{OutputDir: outputDir}
}

// EnsureDirectories creates the output directory if it doesn't exist.
func (fm *FileManager) EnsureDirectories() error {
	if err := os.MkdirAll(fm.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", fm.OutputDir, err)
	}
	return nil
}

// Deliver writes data to OutputDir/name. The content type is not stored on
// disk; the file extension carries it.
func (fm *FileManager) Deliver(name, contentType string, data []byte) (string, error) {
	if err := fm.EnsureDirectories(); err != nil {
		return "", err
	}

	target := filepath.Join(fm.OutputDir, filepath.Base(name))

	tmp, err := os.CreateTemp(fm.OutputDir, "."+filepath.Base(name)+".*")
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to close export: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to set export permissions: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to move export into place: %w", err)
	}

	return target, nil
}

// WriterSink delivers exports to a stream.
type WriterSink struct {
	W io.Writer
}

// Deliver writes data to the stream and reports "-" as the location.
func (s WriterSink) Deliver(_, _ string, data []byte) (string, error) {
	if _, err := s.W.Write(data); err != nil {
		return "", fmt.Errorf("failed to write export: %w", err)
	}
	return "-", nil
}

var (
	_ Sink = (*FileManager)(nil)
	_ Sink = WriterSink{}
)

// =============================================================================
// OUTPUT FILE NAMING
// =============================================================================

// GenerateOutputFileName expands a file name format.
//
// PARAMETERS:
//   - format: The format string for the file name.
//             Placeholders:
//               {uuid}      - A random UUID
//               {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
//               {date}      - Current date (YYYYMMDD)
//               {time}      - Current time (HHMMSS)
//   - ext: The extension the name must end in, e.g. ".csv".
//   - params: Extra placeholder values.
//
// EXAMPLE:
//   format: "orders_{date}"   ext: ".csv"
//   output: "orders_20240115.csv"
func GenerateOutputFileName(format, ext string, params map[string]string) string {
	now := time.Now()

	replacements := map[string]string{
		"{uuid}":      uuid.New().String(),
		"{timestamp}": now.Format("20060102_150405"),
		"{date}":      now.Format("20060102"),
		"{time}":      now.Format("150405"),
	}
	for key, value := range params {
		replacements["{"+key+"}"] = value
	}

	result := format
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, placeholder, value)
	}

	if ext != "" && !strings.HasSuffix(strings.ToLower(result), strings.ToLower(ext)) {
		result += ext
	}
	return result
}

// =============================================================================
// SWEEP SUMMARY
// =============================================================================

// SweepSummary contains summary information about one page sweep.
type SweepSummary struct {
	SweepID    string
	ListFile   string
	StartTime  time.Time
	EndTime    time.Time
	Completed  bool
	StatusLine string

	Orders         int
	Stored         int
	Cancelled      int
	DigitalSkipped int
	FetchSkipped   int
	Failed         int

	Diagnostics []DiagnosticEntry
}

// DiagnosticEntry is one reported problem.
type DiagnosticEntry struct {
	OrderID  string
	Kind     string
	Severity string
	Message  string
}

// WriteSummaryLog writes a sweep summary to sweep_<timestamp>_<sweep id>.log
// in outputDir. The sweep id keeps two sweeps started in the same second
// apart.
//
// RETURNS:
//   - The path to the summary file.
//   - An error if writing fails.
func WriteSummaryLog(summary SweepSummary, outputDir string) (_ string, err error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", outputDir, err)
	}

	summaryPath := filepath.Join(outputDir, summaryFileName(summary))

	file, err := os.Create(summaryPath)
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close summary file: %w", cerr)
		}
	}()

	writer := bufio.NewWriter(file)

	completed := "no"
	if summary.Completed {
		completed = "yes"
	}

	fmt.Fprintf(writer, "Order History Export - Sweep Summary\n"+
		"================================================================================\n\n"+
		"Run Information:\n"+
		"  Sweep ID:       %s\n"+
		"  List Page:      %s\n"+
		"  Start Time:     %s\n"+
		"  End Time:       %s\n"+
		"  Duration:       %s\n"+
		"  Completed:      %s\n\n"+
		"Statistics:\n"+
		"  Orders on Page:     %d\n"+
		"  Stored:             %d\n"+
		"  Cancelled:          %d\n"+
		"  Digital (skipped):  %d\n"+
		"  No Invoice:         %d\n"+
		"  Failed:             %d\n\n"+
		"Status:\n"+
		"  %s\n\n",
		summary.SweepID,
		summary.ListFile,
		summary.StartTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Sub(summary.StartTime).String(),
		completed,
		summary.Orders,
		summary.Stored,
		summary.Cancelled,
		summary.DigitalSkipped,
		summary.FetchSkipped,
		summary.Failed,
		summary.StatusLine)

	if len(summary.Diagnostics) > 0 {
		writer.WriteString("Diagnostics:\n")
		writer.WriteString("--------------------------------------------------------------------------------\n")
		for i, d := range summary.Diagnostics {
			fmt.Fprintf(writer, "  #%d [%s] %s\n", i+1, d.Severity, d.Kind)
			if d.OrderID != "" {
				fmt.Fprintf(writer, "     Order:   %s\n", d.OrderID)
			}
			fmt.Fprintf(writer, "     Message: %s\n\n", d.Message)
		}
	}

	writer.WriteString("================================================================================\n" +
		"End of Summary\n")

	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush summary file: %w", err)
	}

	return summaryPath, nil
}

func summaryFileName(summary SweepSummary) string {
	name := "sweep_" + summary.StartTime.Format("20060102_150405")
	if id := filepath.Base(summary.SweepID); summary.SweepID != "" && id != "." {
		name += "_" + id
	}
	return name + ".log"
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
