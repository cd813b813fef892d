package assembler_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/order-history-export/internal/assembler"
	"github.com/ginjaninja78/order-history-export/internal/config"
	"github.com/ginjaninja78/order-history-export/internal/document"
	"github.com/ginjaninja78/order-history-export/internal/locator"
	"github.com/ginjaninja78/order-history-export/internal/metrics"
	"github.com/ginjaninja78/order-history-export/internal/store"
	"github.com/ginjaninja78/order-history-export/internal/types"
)

// =============================================================================
// FIXTURES
// =============================================================================

func card(id, status string) string {
	return fmt.Sprintf(`<div class="order-card"><div class="yohtmlc-order-id"><span dir="ltr">%s</span></div>`+
		`<div class="yohtmlc-shipment-status-primaryText">%s</div></div>`, id, status)
}

func listPage(cards ...string) string {
	return "<html><body>" + strings.Join(cards, "\n") + "</body></html>"
}

func tableInvoice(date string, rows ...string) string {
	return `<html><body><table><tr><td>header</td></tr></table><table>` +
		`<tr><td>注文日： ` + date + `</td></tr><tr><td><table>` +
		strings.Join(rows, "") + `</table></td></tr></table></body></html>`
}

func tableRow(qty, name, price string) string {
	return fmt.Sprintf(`<tr><input type="hidden" name="q" value="%s"><td>%s 点 <i>%s</i></td><td>%s</td></tr>`, qty, qty, name, price)
}

func gridInvoice(date string, blocks ...string) string {
	return `<html><body><span data-component="orderDate">` + date + `</span>` + strings.Join(blocks, "") + `</body></html>`
}

func gridBlock(name, price string) string {
	return `<div class="a-fixed-left-grid-col a-col-left"></div>` +
		`<div class="a-fixed-left-grid-col a-col-right"><div data-component="itemTitle">` + name +
		`</div><div data-component="unitPrice">` + price + `</div></div>`
}

// mapFetcher serves invoices from memory. Unknown ids fail like a 404.
type mapFetcher struct {
	pages map[string]string
	calls atomic.Int32
}

func (f *mapFetcher) Fetch(ctx context.Context, orderID string) ([]byte, error) {
	f.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	page, ok := f.pages[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: status 404", types.ErrFetchFailure)
	}
	return []byte(page), nil
}

func mixedPage() (string, *mapFetcher) {
	list := listPage(
		card("250-1000001-0000001", "配達しました"),
		card("D01-1000002-0000002", ""),
		card("503-1000003-0000003", "キャンセル済み"),
		card("250-1000004-0000004", "配達しました"),
		card("250-1000005-0000005", "配達しました"),
		card("250-1000006-0000006", "配達しました"),
	)
	f := &mapFetcher{pages: map[string]string{
		"250-1000001-0000001": tableInvoice("2021年3月1日",
			tableRow("1", "Green Tea", "￥ 1,280"),
			tableRow("3", "Notebook", "￥ 200"),
		),
		"250-1000004-0000004": gridInvoice("2019年11月5日",
			gridBlock("Charger", "￥2,480"),
			gridBlock("Returned Mouse", ""),
		),
		// 250-1000005 has no invoice
		"250-1000006-0000006": tableInvoice("2021年3月日"),
	}}
	return list, f
}

func newAssembler(t *testing.T, f *mapFetcher, opts ...assembler.Option) (*assembler.Assembler, *store.AggregateStore) {
	t.Helper()
	st := store.NewAggregateStore(store.NewMemoryKV(), "HIST_ADDON_")
	loc := locator.New(config.DefaultLayout())
	return assembler.New(loc, f, st, opts...), st
}

// =============================================================================
// SWEEP
// =============================================================================

func TestSweep_MixedPage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	list, f := mixedPage()
	a, st := newAssembler(t, f)
	doc, err := document.ParseString(list)
	require.NoError(t, err)

	result, err := a.Sweep(ctx, doc)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Completed)
	assert.NotEmpty(t, result.SweepID)
	assert.Equal(t, 2, result.Stored)
	assert.Equal(t, 1, result.Cancelled)
	assert.Equal(t, 1, result.DigitalSkipped)
	assert.Equal(t, 1, result.FetchSkipped)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, map[string]int{types.KindMalformedDate: 1}, result.ErrorsByKind)
	assert.Len(t, result.Outcomes, 6)

	// digital and cancelled orders never reach the fetcher
	assert.EqualValues(t, 4, f.calls.Load())

	stats, err := st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.AggregateStats{OrderCount: 3, MinDate: "2019-11-05", MaxDate: "2021-03-01"}, stats)

	all, err := st.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	byID := map[string]types.OrderRecord{}
	for _, r := range all {
		byID[r.ID] = r
	}
	assert.Equal(t, []types.LineItem{{Name: "Green Tea", Price: 1280}, {Name: "Notebook x3", Price: 600}},
		byID["250-1000001-0000001"].Items)
	assert.Equal(t, []types.LineItem{{Name: "Charger", Price: 2480}}, byID["250-1000004-0000004"].Items)

	var kinds []string
	for _, d := range result.Diagnostics {
		kinds = append(kinds, d.Severity+":"+d.Kind)
	}
	assert.ElementsMatch(t, []string{
		"warning:SkippedItem",
		"warning:FetchFailure",
		"error:MalformedDate",
	}, kinds)

	assert.Equal(t, "Fetched order(s): 3. Date(s): 2019-11-05 to 2021-03-01. Page completed",
		assembler.StatusText(stats, result.Completed))
}

func TestSweep_StopsOnFailureWhenConfigured(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	list := listPage(
		card("250-2000001-0000001", ""),
		card("250-2000002-0000002", ""),
		card("250-2000003-0000003", ""),
	)
	f := &mapFetcher{pages: map[string]string{
		"250-2000001-0000001": tableInvoice("2022年1月2日", tableRow("1", "Pen", "￥ 100")),
		"250-2000002-0000002": gridInvoice("2022年1月3日", gridBlock("", "￥100")),
		"250-2000003-0000003": tableInvoice("2022年1月4日", tableRow("1", "Ink", "￥ 300")),
	}}
	a, st := newAssembler(t, f, assembler.WithContinueOnError(false))
	doc, err := document.ParseString(list)
	require.NoError(t, err)

	result, err := a.Sweep(ctx, doc)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.False(t, result.Completed)
	assert.Equal(t, 1, result.Stored)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 3, result.Cards)
	assert.Len(t, result.Outcomes, 2, "the third card is never reached")

	stats, err := st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.OrderCount)
	assert.Equal(t, "2022-01-02", stats.MaxDate)
	assert.Equal(t, "Fetched order(s): 1. Date(s): 2022-01-02 to 2022-01-02", assembler.StatusText(stats, result.Completed))
}

func TestSweep_DigitalOnlyPageLeavesStoreUntouched(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	list := listPage(
		card("D01-0000001-0000001", "配達しました"),
		card("D01-0000002-0000002", "キャンセル済み"),
		card("D02-0000003-0000003", ""),
	)
	f := &mapFetcher{pages: map[string]string{
		"D01-0000001-0000001": tableInvoice("2021年3月1日", tableRow("1", "E-book", "￥ 500")),
	}}
	a, st := newAssembler(t, f)
	doc, err := document.ParseString(list)
	require.NoError(t, err)

	result, err := a.Sweep(ctx, doc)
	require.NoError(t, err)
	assert.True(t, result.Completed)
	assert.Equal(t, 3, result.DigitalSkipped)
	assert.Zero(t, result.Stored)
	assert.Zero(t, result.Cancelled)
	assert.EqualValues(t, 0, f.calls.Load(), "digital orders are never fetched")

	stats, err := st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.AggregateStats{}, stats)

	all, err := st.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSweep_FailuresAreIsolatedByDefault(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	list := listPage(
		`<div class="order-card"><div class="yohtmlc-order-id">no id here</div></div>`,
		card("250-3000002-0000002", ""),
	)
	f := &mapFetcher{pages: map[string]string{
		"250-3000002-0000002": tableInvoice("2020年2月29日", tableRow("2", "Socks", "￥ 500")),
	}}
	a, st := newAssembler(t, f)
	doc, err := document.ParseString(list)
	require.NoError(t, err)

	result, err := a.Sweep(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Stored)
	assert.Equal(t, 1, result.ErrorsByKind[types.KindNotFound])

	got, ok, err := st.Get(ctx, "250-3000002-0000002")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []types.LineItem{{Name: "Socks x2", Price: 1000}}, got.Items)
}

func TestSweep_ConcurrentMatchesSequential(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	list, _ := mixedPage()
	doc, err := document.ParseString(list)
	require.NoError(t, err)

	_, f1 := mixedPage()
	seq, seqStore := newAssembler(t, f1)
	seqResult, err := seq.Sweep(ctx, doc)
	require.NoError(t, err)

	_, f2 := mixedPage()
	par, parStore := newAssembler(t, f2, assembler.WithMaxConcurrency(4))
	parResult, err := par.Sweep(ctx, doc)
	require.NoError(t, err)

	seqAll, err := seqStore.All(ctx)
	require.NoError(t, err)
	parAll, err := parStore.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, seqAll, parAll)

	seqStats, err := seqStore.Stats(ctx)
	require.NoError(t, err)
	parStats, err := parStore.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, seqStats, parStats)

	require.Len(t, parResult.Outcomes, len(seqResult.Outcomes))
	for i := range seqResult.Outcomes {
		assert.Equal(t, seqResult.Outcomes[i].OrderID, parResult.Outcomes[i].OrderID)
		assert.Equal(t, seqResult.Outcomes[i].Status, parResult.Outcomes[i].Status)
	}
}

func TestSweep_RepeatedPageReplacesRecords(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	list := listPage(card("250-4000001-0000001", ""))
	f := &mapFetcher{pages: map[string]string{
		"250-4000001-0000001": tableInvoice("2021年6月1日", tableRow("1", "Mug", "￥ 900")),
	}}
	a, st := newAssembler(t, f)
	doc, err := document.ParseString(list)
	require.NoError(t, err)

	for range 2 {
		_, err := a.Sweep(ctx, doc)
		require.NoError(t, err)
	}

	all, err := st.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSweep_CancelledContext(t *testing.T) {
	t.Parallel()

	list, f := mixedPage()
	a, _ := newAssembler(t, f)
	doc, err := document.ParseString(list)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := a.Sweep(ctx, doc)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, result.Completed)
	assert.Empty(t, result.Outcomes)
}

func TestSweep_RecordsMetrics(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	registry := prometheus.NewRegistry()
	list, f := mixedPage()
	a, _ := newAssembler(t, f, assembler.WithMetrics(metrics.NewSweepMetrics(registry)))
	doc, err := document.ParseString(list)
	require.NoError(t, err)

	_, err = a.Sweep(ctx, doc)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "sweep.prom")
	require.NoError(t, metrics.WriteTextfile(path, registry))
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	text := string(data)
	assert.Contains(t, text, `orderexport_orders_total{outcome="stored"} 2`)
	assert.Contains(t, text, `orderexport_orders_total{outcome="digital"} 1`)
	assert.Contains(t, text, `orderexport_extraction_errors_total{kind="MalformedDate"} 1`)
	assert.Contains(t, text, "orderexport_line_items_stored_total 3")
	assert.Contains(t, text, "orderexport_line_items_skipped_total 1")
}

// =============================================================================
// SINGLE ORDER
// =============================================================================

func TestBuild(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := &mapFetcher{pages: map[string]string{
		"250-5000001-0000001": tableInvoice("2021年3月1日", tableRow("1", "Tea", "￥ 100"), tableRow("1", "Refund", "")),
	}}
	a, st := newAssembler(t, f)

	record, notices, err := a.Build(ctx, "250-5000001-0000001")
	require.NoError(t, err)
	assert.Equal(t, "2021-03-01", record.Date)
	assert.Equal(t, []types.LineItem{{Name: "Tea", Price: 100}}, record.Items)
	assert.Equal(t, []locator.Notice{{Item: "Refund", Reason: "no price"}}, notices)

	// Build alone never writes.
	stats, err := st.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.OrderCount)

	_, _, err = a.Build(ctx, "250-0000000-0000000")
	assert.ErrorIs(t, err, types.ErrFetchFailure)
}

func TestStatusText(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Fetched order(s): 0", assembler.StatusText(types.AggregateStats{}, false))
	assert.Equal(t, "Fetched order(s): 2. Page completed", assembler.StatusText(types.AggregateStats{OrderCount: 2}, true))
}
