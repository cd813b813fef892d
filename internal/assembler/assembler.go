// =============================================================================
// Order History Export - Order Assembler
// =============================================================================
//
// This module builds OrderRecords from order pages and hands them to the
// aggregate store. It orchestrates the locators, the normalizers, the invoice
// fetcher and the store for one order list page at a time (a "sweep").
//
// PER ORDER:
//   1. Resolve the order id from its card on the list page
//   2. Digital order?   -> skip, not counted
//   3. Cancelled order? -> count only, no fetch
//   4. Fetch the invoice document
//   5. Detect the invoice layout, extract and normalize date and items
//   6. Validate the record
//   7. Upsert it into the aggregate store
//
// FAILURES:
//   A failure in steps 1 or 5-6 is a hard failure for that order. By default
//   it is recorded as a diagnostic and the sweep moves on to the next order;
//   with ContinueOnError disabled the sweep stops there. A failed fetch never
//   stops the sweep: the order is reported and skipped.
//
// CONCURRENCY:
//   With MaxConcurrency > 1 invoices are fetched and extracted in parallel,
//   but nothing touches the store until every build has finished, and the
//   store is then updated strictly in list order. Counts and date bounds
//   therefore come out exactly as in a one-at-a-time sweep.
//
// =============================================================================

package assembler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ginjaninja78/order-history-export/internal/document"
	"github.com/ginjaninja78/order-history-export/internal/fetcher"
	"github.com/ginjaninja78/order-history-export/internal/locator"
	"github.com/ginjaninja78/order-history-export/internal/logging"
	"github.com/ginjaninja78/order-history-export/internal/metrics"
	"github.com/ginjaninja78/order-history-export/internal/store"
	"github.com/ginjaninja78/order-history-export/internal/types"
	"github.com/ginjaninja78/order-history-export/internal/validation"
)

// =============================================================================
// ASSEMBLER STRUCTURE
// =============================================================================

// Assembler processes order list pages into the aggregate store.
type Assembler struct {
	locator *locator.Locator
	fetcher fetcher.Fetcher
	store   *store.AggregateStore
	metrics *metrics.SweepMetrics
	logger  log.FieldLogger

	maxConcurrency  int
	continueOnError bool
	fetchTimeout    time.Duration
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithLogger sets the logger. The default discards output.
func WithLogger(logger log.FieldLogger) Option {
	return func(a *Assembler) { a.logger = logger }
}

// WithMetrics sets the metrics sink. Without it nothing is recorded.
func WithMetrics(m *metrics.SweepMetrics) Option {
	return func(a *Assembler) { a.metrics = m }
}

// WithMaxConcurrency sets how many invoices are fetched at once.
func WithMaxConcurrency(n int) Option {
	return func(a *Assembler) {
		if n < 1 {
			n = 1
		}
		a.maxConcurrency = n
	}
}

// WithContinueOnError controls whether an order failure stops the sweep.
func WithContinueOnError(v bool) Option {
	return func(a *Assembler) { a.continueOnError = v }
}

// WithFetchTimeout bounds each invoice fetch. Zero disables the timeout.
func WithFetchTimeout(d time.Duration) Option {
	return func(a *Assembler) { a.fetchTimeout = d }
}

// New creates an Assembler.
func New(loc *locator.Locator, f fetcher.Fetcher, st *store.AggregateStore, opts ...Option) *Assembler {
	a := &Assembler{
		locator:         loc,
		fetcher:         f,
		store:           st,
		logger:          logging.Discard(),
		maxConcurrency:  1,
		continueOnError: true,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// =============================================================================
// SINGLE ORDER
// =============================================================================

// Build fetches and extracts one order's invoice and returns the validated
// record together with notices for skipped rows. It does not touch the store.
func (a *Assembler) Build(ctx context.Context, orderID string) (types.OrderRecord, []locator.Notice, error) {
	logger := a.logger.WithField("order_id", orderID)

	fetchCtx := ctx
	if a.fetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, a.fetchTimeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := a.fetcher.Fetch(fetchCtx, orderID)
	if a.metrics != nil {
		a.metrics.RecordFetchDuration(time.Since(start))
	}
	if err != nil {
		return types.OrderRecord{}, nil, err
	}

	doc, err := document.ParseBytes(raw)
	if err != nil {
		return types.OrderRecord{}, nil, err
	}

	inv, err := a.locator.ReadInvoice(doc)
	if err != nil {
		return types.OrderRecord{}, nil, types.WithOrderID(err, orderID)
	}
	logger.WithFields(log.Fields{
		"layout": inv.Variant.String(),
		"date":   inv.Date,
		"items":  len(inv.Items),
	}).Debug("extracted invoice")

	record := types.OrderRecord{ID: orderID, Date: inv.Date, Items: inv.Items}
	if err := validation.Validate(record); err != nil {
		return types.OrderRecord{}, nil, err
	}

	return record, inv.Notices, nil
}

// =============================================================================
// PAGE SWEEP
// =============================================================================

// pending is one order card on its way through the sweep.
type pending struct {
	entry    locator.Entry
	entryErr error

	record  types.OrderRecord
	notices []locator.Notice
	err     error
	built   bool
}

func (p *pending) needsFetch() bool {
	return p.entryErr == nil && !p.entry.Digital && !p.entry.Cancelled
}

// Sweep processes every order card on a list page.
//
// The returned result is never nil. The error is non-nil only when the sweep
// stopped early: a store failure, a cancelled context, or an order failure
// with ContinueOnError disabled.
func (a *Assembler) Sweep(ctx context.Context, listDoc *goquery.Document) (*SweepResult, error) {
	result := newSweepResult(uuid.NewString())
	logger := a.logger.WithField("sweep_id", result.SweepID)

	cards := a.locator.OrderCards(listDoc)
	orders := make([]*pending, cards.Length())
	result.Cards = len(orders)
	cards.Each(func(i int, card *goquery.Selection) {
		entry, err := a.locator.ReadEntry(i, card)
		orders[i] = &pending{entry: entry, entryErr: err}
	})
	logger.WithField("orders", len(orders)).Info("starting sweep")

	if a.maxConcurrency > 1 {
		if err := a.prefetch(ctx, orders); err != nil {
			result.finish(false)
			return result, err
		}
	}

	for _, p := range orders {
		if err := ctx.Err(); err != nil {
			result.finish(false)
			return result, err
		}
		if p.needsFetch() && !p.built {
			p.record, p.notices, p.err = a.Build(ctx, p.entry.ID)
			p.built = true
		}
		if err := a.apply(ctx, logger, result, p); err != nil {
			result.finish(false)
			logger.WithError(err).Error("sweep stopped")
			return result, err
		}
	}

	result.finish(true)
	logger.WithFields(log.Fields{
		"stored":    result.Stored,
		"cancelled": result.Cancelled,
		"digital":   result.DigitalSkipped,
		"failed":    result.Failed,
		"skipped":   result.FetchSkipped,
	}).Info("sweep completed")
	return result, nil
}

// prefetch builds every fetchable order with bounded parallelism. Per-order
// failures are kept on the order; only a cancelled context is returned.
func (a *Assembler) prefetch(ctx context.Context, orders []*pending) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.maxConcurrency)

	for _, p := range orders {
		if !p.needsFetch() {
			continue
		}
		g.Go(func() error {
			p.record, p.notices, p.err = a.Build(gctx, p.entry.ID)
			p.built = true
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// apply records the outcome of one order and updates the store. It returns
// an error only when the sweep must stop.
func (a *Assembler) apply(ctx context.Context, logger log.FieldLogger, result *SweepResult, p *pending) error {
	entry := p.entry
	logger = logger.WithField("order_index", entry.Index)

	switch {
	case p.entryErr != nil:
		logger.WithError(p.entryErr).Error("could not read order card")
		a.recordFailure(result, Outcome{Index: entry.Index, Status: StatusFailed, Err: p.entryErr})
		if !a.continueOnError {
			return fmt.Errorf("order card %d: %w", entry.Index, p.entryErr)
		}
		return nil

	case entry.Digital:
		logger.WithField("order_id", entry.ID).Warn("skipping digital order, its invoice layout is not supported")
		result.add(Outcome{Index: entry.Index, OrderID: entry.ID, Status: StatusDigital})
		a.recordOrder(metrics.OutcomeDigital)
		return nil

	case entry.Cancelled:
		if err := a.store.IncrementCancelled(ctx); err != nil {
			return fmt.Errorf("order %s: %w", entry.ID, err)
		}
		logger.WithField("order_id", entry.ID).Info("counted cancelled order")
		result.add(Outcome{Index: entry.Index, OrderID: entry.ID, Status: StatusCancelled})
		a.recordOrder(metrics.OutcomeCancelled)
		return nil
	}

	logger = logger.WithField("order_id", entry.ID)

	if p.err != nil {
		if errors.Is(p.err, types.ErrFetchFailure) {
			logger.WithError(p.err).Warn("no invoice available, skipping order")
			result.add(Outcome{Index: entry.Index, OrderID: entry.ID, Status: StatusFetchSkipped, Err: p.err})
			a.recordOrder(metrics.OutcomeFetchSkipped)
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		logger.WithError(p.err).Error("failed to extract order")
		a.recordFailure(result, Outcome{Index: entry.Index, OrderID: entry.ID, Status: StatusFailed, Err: p.err})
		if !a.continueOnError {
			return fmt.Errorf("order %s: %w", entry.ID, p.err)
		}
		return nil
	}

	for _, n := range p.notices {
		logger.WithField("item", n.Item).Warn("skipping invoice row: " + n.Reason)
	}

	if err := a.store.Upsert(ctx, p.record); err != nil {
		return err
	}
	record := p.record
	result.add(Outcome{Index: entry.Index, OrderID: entry.ID, Status: StatusStored, Record: &record, Notices: p.notices})
	a.recordOrder(metrics.OutcomeStored)
	if a.metrics != nil {
		a.metrics.RecordLineItems(len(record.Items), len(p.notices))
	}
	logger.WithFields(log.Fields{"date": record.Date, "items": len(record.Items)}).Info("stored order")
	return nil
}

func (a *Assembler) recordFailure(result *SweepResult, o Outcome) {
	result.add(o)
	a.recordOrder(metrics.OutcomeFailed)
	if a.metrics != nil {
		a.metrics.RecordExtractionError(types.KindOf(o.Err))
	}
}

func (a *Assembler) recordOrder(outcome string) {
	if a.metrics != nil {
		a.metrics.RecordOrder(outcome)
	}
}
