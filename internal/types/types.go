// =============================================================================
// Order History Export - Shared Types
// =============================================================================
//
// This package contains the types shared by every stage of the pipeline, so
// that the locators, the assembler, the store and the exporters never import
// each other just to agree on a record shape. Types defined here are used by:
//   - locator / assembler   (build records)
//   - validation            (check records before they are stored)
//   - store                 (persist and enumerate records)
//   - exporter / xlsxwriter (flatten records into rows)
//
// =============================================================================

package types

// =============================================================================
// ORDER TYPES
// =============================================================================

// OrderRecord is one extracted order. ID is the natural key: the store keeps
// at most one record per ID.
type OrderRecord struct {
	// ID is the order identifier as printed on the order list, e.g. "250-1234567-7654321".
	ID string `json:"id"`

	// Date is the order date in canonical YYYY-MM-DD form.
	Date string `json:"date"`

	// Items are the priced line items in document order.
	Items []LineItem `json:"items"`
}

// LineItem is one purchased line of an order.
type LineItem struct {
	// Name is the product name. When more than one unit was bought it carries
	// a " x<N>" suffix.
	Name string `json:"name"`

	// Price is the total for the line (unit price times quantity) in the
	// smallest currency unit.
	Price int `json:"price"`
}

// =============================================================================
// AGGREGATE STATISTICS
// =============================================================================

// AggregateStats are derived counters kept next to the stored records.
// OrderCount includes cancelled orders, which never produce a record.
// MinDate and MaxDate are empty until the first record is stored.
type AggregateStats struct {
	OrderCount int
	MinDate    string
	MaxDate    string
}

// HasDates reports whether at least one dated record has been stored.
func (s AggregateStats) HasDates() bool {
	return s.MinDate != "" && s.MaxDate != ""
}
