// Package metrics exposes prometheus counters for page sweeps.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Order outcomes, used as the "outcome" label.
const (
	OutcomeStored       = "stored"
	OutcomeCancelled    = "cancelled"
	OutcomeDigital      = "digital"
	OutcomeFailed       = "failed"
	OutcomeFetchSkipped = "fetch_skipped"
)

// SweepMetrics holds the collectors updated while processing order pages.
type SweepMetrics struct {
	orders           *prometheus.CounterVec
	lineItemsStored  prometheus.Counter
	lineItemsSkipped prometheus.Counter
	extractionErrors *prometheus.CounterVec
	fetchDuration    prometheus.Histogram
}

// NewSweepMetrics registers the sweep collectors on registerer. A nil
// registerer means the default prometheus registry.
func NewSweepMetrics(registerer prometheus.Registerer) *SweepMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &SweepMetrics{
		orders: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orderexport_orders_total",
			Help: "Order entries processed, by outcome",
		}, []string{"outcome"}),
		lineItemsStored: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderexport_line_items_stored_total",
			Help: "Line items stored as part of an order record",
		}),
		lineItemsSkipped: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderexport_line_items_skipped_total",
			Help: "Invoice rows skipped because no price or quantity could be read",
		}),
		extractionErrors: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orderexport_extraction_errors_total",
			Help: "Per-order extraction failures, by error kind",
		}, []string{"kind"}),
		fetchDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "orderexport_invoice_fetch_seconds",
			Help:    "Time spent fetching one invoice document",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

// RecordOrder counts one order entry with the given outcome.
func (m *SweepMetrics) RecordOrder(outcome string) {
	m.orders.WithLabelValues(outcome).Inc()
}

// RecordLineItems counts stored and skipped invoice rows for one order.
func (m *SweepMetrics) RecordLineItems(stored, skipped int) {
	m.lineItemsStored.Add(float64(stored))
	m.lineItemsSkipped.Add(float64(skipped))
}

// RecordExtractionError counts a failure of the given kind.
func (m *SweepMetrics) RecordExtractionError(kind string) {
	m.extractionErrors.WithLabelValues(kind).Inc()
}

// RecordFetchDuration observes one invoice fetch.
func (m *SweepMetrics) RecordFetchDuration(d time.Duration) {
	m.fetchDuration.Observe(d.Seconds())
}

// WriteTextfile dumps everything gathered by g in the text exposition format,
// for the node exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	return nil
}
