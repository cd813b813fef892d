package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const locatorTestdata = "../internal/locator/testdata"

// execute runs the CLI with args. Flag variables are package globals, so
// they are reset before every run.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cfgFile, envFile, verbose = "config.yaml", "", false
	listFile, invoiceDir, invoiceURL, metricsFile = "", "", "", ""
	exportAfter, writeReport = false, false
	exportFormat, exportStdout = formatCSV, false
	versionShort = false
	for _, c := range append(rootCmd.Commands(), rootCmd) {
		for _, name := range []string{"config", "env-file", "verbose", "list", "invoice-dir", "invoice-url",
			"export", "report", "metrics-file", "format", "stdout", "short"} {
			if f := c.Flags().Lookup(name); f != nil {
				f.Changed = false
			}
			if f := c.PersistentFlags().Lookup(name); f != nil {
				f.Changed = false
			}
		}
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

type workspace struct {
	config   string
	output   string
	invoices string
	list     string
}

func newWorkspace(t *testing.T) workspace {
	t.Helper()
	dir := t.TempDir()

	ws := workspace{
		config:   filepath.Join(dir, "config.yaml"),
		output:   filepath.Join(dir, "output"),
		invoices: filepath.Join(dir, "invoices"),
		list:     filepath.Join(locatorTestdata, "list_primary.html"),
	}

	body := "output_dir: " + ws.output + "\n" +
		"log_level: error\n" +
		"store:\n" +
		"  backend: file\n" +
		"  path: " + filepath.Join(dir, "session.json") + "\n"
	require.NoError(t, os.WriteFile(ws.config, []byte(body), 0o644))

	invoice, err := os.ReadFile(filepath.Join(locatorTestdata, "invoice_table.html"))
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(ws.invoices, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(ws.invoices, "250-1111111-1111111.html"), invoice, 0o644))

	return ws
}

const wantCSV = "250-1111111-1111111|2021-03-01|Green Tea 500ml|1280\n" +
	"250-1111111-1111111|2021-03-01|Notebook A5 x3|600\n"

func TestFetchExportReset(t *testing.T) {
	ws := newWorkspace(t)
	metricsPath := filepath.Join(ws.output, "sweep.prom")

	out, err := execute(t, "fetch", "--config", ws.config,
		"--list", ws.list, "--invoice-dir", ws.invoices,
		"--report", "--metrics-file", metricsPath)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ 250-1111111-1111111  2021-03-01  2 item(s)")
	assert.Contains(t, out, "D01-2222222-2222222  digital, skipped")
	assert.Contains(t, out, "503-3333333-3333333  cancelled")
	assert.Contains(t, out, "Fetched order(s): 3. Date(s): 2021-03-01 to 2021-03-01. Page completed")
	assert.Contains(t, out, "Summary written to")

	reports, err := filepath.Glob(filepath.Join(ws.output, "sweep_*.log"))
	require.NoError(t, err)
	assert.Len(t, reports, 1)

	prom, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `orderexport_orders_total{outcome="cancelled"} 2`)

	out, err = execute(t, "status", "--config", ws.config)
	require.NoError(t, err)
	assert.Equal(t, "Fetched order(s): 3. Date(s): 2021-03-01 to 2021-03-01\n", out)

	out, err = execute(t, "export", "--config", ws.config, "--stdout")
	require.NoError(t, err)
	assert.Equal(t, wantCSV, out)

	out, err = execute(t, "export", "--config", ws.config)
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(ws.output, "orders.csv"))
	data, err := os.ReadFile(filepath.Join(ws.output, "orders.csv"))
	require.NoError(t, err)
	assert.Equal(t, wantCSV, string(data))

	_, err = execute(t, "export", "--config", ws.config, "--format", "xlsx")
	require.NoError(t, err)
	f, err := excelize.OpenFile(filepath.Join(ws.output, "orders.xlsx"))
	require.NoError(t, err)
	rows, err := f.GetRows("Orders")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Len(t, rows, 3)

	out, err = execute(t, "reset", "--config", ws.config)
	require.NoError(t, err)
	assert.Equal(t, "Removed 4 key(s)\n", out)

	out, err = execute(t, "status", "--config", ws.config)
	require.NoError(t, err)
	assert.Equal(t, "Fetched order(s): 0\n", out)

	out, err = execute(t, "export", "--config", ws.config, "--stdout")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestFetch_RepeatedPageDoesNotDuplicateRecords(t *testing.T) {
	ws := newWorkspace(t)

	for range 2 {
		_, err := execute(t, "fetch", "--config", ws.config, "--list", ws.list, "--invoice-dir", ws.invoices)
		require.NoError(t, err)
	}

	out, err := execute(t, "export", "--config", ws.config, "--stdout")
	require.NoError(t, err)
	assert.Equal(t, wantCSV, out)
}

func TestFetch_WithExport(t *testing.T) {
	ws := newWorkspace(t)

	out, err := execute(t, "fetch", "--config", ws.config, "--list", ws.list, "--invoice-dir", ws.invoices, "--export")
	require.NoError(t, err)
	assert.Contains(t, out, "Exported to")

	data, err := os.ReadFile(filepath.Join(ws.output, "orders.csv"))
	require.NoError(t, err)
	assert.Equal(t, wantCSV, string(data))
}

func TestFetch_MissingInvoicesAreReported(t *testing.T) {
	ws := newWorkspace(t)
	require.NoError(t, os.RemoveAll(ws.invoices))

	out, err := execute(t, "fetch", "--config", ws.config, "--list", ws.list, "--invoice-dir", ws.invoices)
	require.NoError(t, err)
	assert.Contains(t, out, "250-1111111-1111111  no invoice")
	assert.Contains(t, out, "Fetched order(s): 2. Page completed")
}

func TestFetch_StoppedSweepReportsEveryCard(t *testing.T) {
	ws := newWorkspace(t)

	cfg, err := os.OpenFile(ws.config, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = cfg.WriteString("continue_on_error: false\n")
	require.NoError(t, err)
	require.NoError(t, cfg.Close())
	require.NoError(t, os.WriteFile(filepath.Join(ws.invoices, "250-1111111-1111111.html"), []byte("<html><body></body></html>"), 0o644))

	out, err := execute(t, "fetch", "--config", ws.config, "--list", ws.list, "--invoice-dir", ws.invoices)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sweep stopped")
	assert.Contains(t, out, "Orders on page:  4\n")
	assert.Contains(t, out, "Processed:       1\n")
}

func TestFetch_RequiresList(t *testing.T) {
	ws := newWorkspace(t)

	_, err := execute(t, "fetch", "--config", ws.config)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list")
}

func TestExport_UnknownFormat(t *testing.T) {
	ws := newWorkspace(t)

	_, err := execute(t, "export", "--config", ws.config, "--format", "json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown export format")
}

func TestEnvFileSelectsBackend(t *testing.T) {
	ws := newWorkspace(t)
	envPath := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(envPath, []byte("ORDERS_STORE_BACKEND=postgres\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("ORDERS_STORE_BACKEND") })

	_, err := execute(t, "status", "--config", ws.config, "--env-file", envPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres")
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Order History Export\nVersion:    "+Version))
	assert.Contains(t, out, "Commit:     ")
	assert.Contains(t, out, "Layouts:    table, grid\n")
	assert.Contains(t, out, "Backends:   memory, file, redis\n")

	out, err = execute(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, Version+"\n", out)
}
