// =============================================================================
// Order History Export - Record Validation
// =============================================================================
//
// Checks an assembled OrderRecord before it is handed to the store. A record
// that fails here never reaches the store, so the store can never hold a
// half-built order.
//
// RULES:
//   - id:    digits and hyphens only, at least one digit
//   - date:  YYYY-MM-DD, zero padded
//   - items: non-empty name, non-negative price
//
// Errors are collected per field rather than returned on the first hit, so a
// single report lists everything wrong with the record.
//
// =============================================================================

package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ginjaninja78/order-history-export/internal/types"
)

var (
	orderIDPattern = regexp.MustCompile(`^[0-9-]*[0-9][0-9-]*$`)
	datePattern    = regexp.MustCompile(`^[0-9]{4}-[0-9]{2}-[0-9]{2}$`)
)

// =============================================================================
// VALIDATION ERROR TYPES
// =============================================================================

// ValidationError describes one rule a record broke.
type ValidationError struct {
	// Field is the record field that failed ("id", "date", "items[2].price").
	Field string

	// Value is the offending value.
	Value string

	// Message is a human-readable error message.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("field '%s': %s (value: '%s')", e.Field, e.Message, e.Value)
}

// RecordError is returned by Validate. It wraps types.ErrInvalidRecord.
type RecordError struct {
	OrderID string
	Errors  []*ValidationError
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("order %s: %s", e.OrderID, FormatErrors(e.Errors))
}

func (e *RecordError) Unwrap() error {
	return types.ErrInvalidRecord
}

// =============================================================================
// MAIN VALIDATION FUNCTION
// =============================================================================

// Validate checks a record. It returns nil or a *RecordError.
func Validate(record types.OrderRecord) error {
	var errs []*ValidationError

	if !orderIDPattern.MatchString(record.ID) {
		errs = append(errs, &ValidationError{Field: "id", Value: record.ID, Message: "must be digits and hyphens"})
	}

	if !datePattern.MatchString(record.Date) {
		errs = append(errs, &ValidationError{Field: "date", Value: record.Date, Message: "must be YYYY-MM-DD"})
	}

	for i, item := range record.Items {
		if strings.TrimSpace(item.Name) == "" {
			errs = append(errs, &ValidationError{Field: fmt.Sprintf("items[%d].name", i), Message: "must not be empty"})
		}
		if item.Price < 0 {
			errs = append(errs, &ValidationError{
				Field:   fmt.Sprintf("items[%d].price", i),
				Value:   fmt.Sprint(item.Price),
				Message: "must not be negative",
			})
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return &RecordError{OrderID: record.ID, Errors: errs}
}

// =============================================================================
// ERROR FORMATTING
// =============================================================================

// FormatErrors joins validation errors into one line.
func FormatErrors(errors []*ValidationError) string {
	if len(errors) == 0 {
		return "no validation errors"
	}

	parts := make([]string, len(errors))
	for i, err := range errors {
		parts[i] = err.Error()
	}
	return strings.Join(parts, "; ")
}
