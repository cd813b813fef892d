package types

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a required element or field is absent from a document.
	ErrNotFound = errors.New("not found")
	// ErrMalformedDate is returned when date text is present but fails digit-run validation.
	ErrMalformedDate = errors.New("malformed date")
	// ErrStructuralMismatch is returned when paired grid blocks on an invoice disagree in count.
	ErrStructuralMismatch = errors.New("structural mismatch")
	// ErrFetchFailure is returned when the invoice collaborator answers with a non-success response.
	ErrFetchFailure = errors.New("fetch failure")
	// ErrInvalidRecord is returned when an assembled record fails validation before storage.
	ErrInvalidRecord = errors.New("invalid record")
)

// Error kind names, used as diagnostic and metric labels.
const (
	KindNotFound           = "NotFound"
	KindMalformedDate      = "MalformedDate"
	KindStructuralMismatch = "StructuralMismatch"
	KindFetchFailure       = "FetchFailure"
	KindInvalidRecord      = "InvalidRecord"
	KindUnknown            = "Unknown"
)

// ExtractionError describes a failure to extract one field of one order.
type ExtractionError struct {
	// Err is one of the sentinel errors above.
	Err error
	// OrderID is the order being processed, when known.
	OrderID string
	// Field names what was being located ("date", "items", "order id", ...).
	Field string
	// Detail is a short human readable explanation.
	Detail string
}

func (e *ExtractionError) Error() string {
	msg := e.Field + ": " + e.Err.Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.OrderID != "" {
		msg = fmt.Sprintf("order %s: %s", e.OrderID, msg)
	}
	return msg
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// NotFound builds an ExtractionError wrapping ErrNotFound.
func NotFound(field, detail string) error {
	return &ExtractionError{Err: ErrNotFound, Field: field, Detail: detail}
}

// MalformedDate builds an ExtractionError wrapping ErrMalformedDate.
func MalformedDate(text, detail string) error {
	return &ExtractionError{Err: ErrMalformedDate, Field: "date", Detail: fmt.Sprintf("%s (%q)", detail, text)}
}

// StructuralMismatch builds an ExtractionError wrapping ErrStructuralMismatch.
func StructuralMismatch(field, detail string) error {
	return &ExtractionError{Err: ErrStructuralMismatch, Field: field, Detail: detail}
}

// WithOrderID attaches an order id to an ExtractionError anywhere in err's chain.
// Other errors are returned unchanged.
func WithOrderID(err error, orderID string) error {
	var ee *ExtractionError
	if errors.As(err, &ee) && ee.OrderID == "" {
		ee.OrderID = orderID
	}
	return err
}

// KindOf maps an error to its taxonomy name.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrMalformedDate):
		return KindMalformedDate
	case errors.Is(err, ErrStructuralMismatch):
		return KindStructuralMismatch
	case errors.Is(err, ErrFetchFailure):
		return KindFetchFailure
	case errors.Is(err, ErrInvalidRecord):
		return KindInvalidRecord
	default:
		return KindUnknown
	}
}
