package assembler

import (
	"fmt"
	"time"

	"github.com/ginjaninja78/order-history-export/internal/locator"
	"github.com/ginjaninja78/order-history-export/internal/types"
)

// Status is what happened to one order entry during a sweep.
type Status string

const (
	StatusStored       Status = "stored"
	StatusCancelled    Status = "cancelled"
	StatusDigital      Status = "digital"
	StatusFailed       Status = "failed"
	StatusFetchSkipped Status = "fetch_skipped"
)

// Severity of a diagnostic.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Outcome records how one order entry was handled.
type Outcome struct {
	Index   int
	OrderID string
	Status  Status
	Record  *types.OrderRecord
	Notices []locator.Notice
	Err     error
}

// Diagnostic is one problem worth reporting after a sweep.
type Diagnostic struct {
	Index    int
	OrderID  string
	Kind     string
	Severity string
	Message  string
}

func (d Diagnostic) String() string {
	id := d.OrderID
	if id == "" {
		id = fmt.Sprintf("#%d", d.Index)
	}
	return fmt.Sprintf("[%s] order %s: %s: %s", d.Severity, id, d.Kind, d.Message)
}

// SweepResult summarizes one pass over an order list page.
type SweepResult struct {
	SweepID   string
	StartTime time.Time
	EndTime   time.Time

	// Cards is the number of order cards on the page. Outcomes is shorter
	// when the sweep stopped early.
	Cards       int
	Outcomes    []Outcome
	Diagnostics []Diagnostic

	// ErrorsByKind counts hard failures by types.Kind* name.
	ErrorsByKind map[string]int

	Stored         int
	Cancelled      int
	DigitalSkipped int
	Failed         int
	FetchSkipped   int

	// Completed is false when the sweep stopped before the last entry.
	Completed bool
}

func newSweepResult(id string) *SweepResult {
	return &SweepResult{
		SweepID:      id,
		StartTime:    time.Now(),
		ErrorsByKind: make(map[string]int),
	}
}

// Duration returns how long the sweep ran.
func (r *SweepResult) Duration() time.Duration {
	if r.EndTime.IsZero() {
		return time.Since(r.StartTime)
	}
	return r.EndTime.Sub(r.StartTime)
}

func (r *SweepResult) finish(completed bool) {
	r.Completed = completed
	r.EndTime = time.Now()
}

func (r *SweepResult) add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)

	switch o.Status {
	case StatusStored:
		r.Stored++
		for _, n := range o.Notices {
			r.Diagnostics = append(r.Diagnostics, Diagnostic{
				Index:    o.Index,
				OrderID:  o.OrderID,
				Kind:     "SkippedItem",
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("%q: %s", n.Item, n.Reason),
			})
		}
	case StatusCancelled:
		r.Cancelled++
	case StatusDigital:
		r.DigitalSkipped++
	case StatusFetchSkipped:
		r.FetchSkipped++
		r.Diagnostics = append(r.Diagnostics, Diagnostic{
			Index:    o.Index,
			OrderID:  o.OrderID,
			Kind:     types.KindFetchFailure,
			Severity: SeverityWarning,
			Message:  o.Err.Error(),
		})
	case StatusFailed:
		r.Failed++
		kind := types.KindOf(o.Err)
		r.ErrorsByKind[kind]++
		r.Diagnostics = append(r.Diagnostics, Diagnostic{
			Index:    o.Index,
			OrderID:  o.OrderID,
			Kind:     kind,
			Severity: SeverityError,
			Message:  o.Err.Error(),
		})
	}
}

// StatusText renders the progress line shown after a page is processed.
func StatusText(stats types.AggregateStats, pageCompleted bool) string {
	text := fmt.Sprintf("Fetched order(s): %d", stats.OrderCount)
	if stats.HasDates() {
		text += fmt.Sprintf(". Date(s): %s to %s", stats.MinDate, stats.MaxDate)
	}
	if pageCompleted {
		text += ". Page completed"
	}
	return text
}
