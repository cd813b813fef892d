// =============================================================================
// Order History Export - Flat File Exporter
// =============================================================================
//
// Flattens the stored order records into one line per line item.
//
// OUTPUT FORMAT:
//   One line per line item, fields joined by "|", every line ending in "\n":
//
//   100-9|2020-12-31|Mouse|800
//   100-9|2020-12-31|Pad x2|600
//   250-1|2021-01-02|Book|1200
//
//   There is no header line and no escaping. Orders are sorted by date, then
//   by order id; items keep their order within the invoice. An order with no
//   items produces no lines, and an empty store produces an empty file.
//
//   Names are written as extracted. A name containing "|" or a newline will
//   not round-trip; consumers of this file split on the first three "|" only
//   if they need to tolerate that.
//
// =============================================================================

package exporter

import (
	"bytes"
	"cmp"
	"slices"
	"strconv"

	"github.com/ginjaninja78/order-history-export/internal/types"
)

// =============================================================================
// EXPORT OPTIONS
// =============================================================================

// ContentType is the media type of the export.
const ContentType = "text/plain; charset=utf-8"

// Options controls serialization.
type Options struct {
	// Delimiter separates the fields of a line.
	// Default: "|"
	Delimiter string

	// LineTerminator ends every line, including the last.
	// Default: "\n"
	LineTerminator string
}

// DefaultOptions returns the export format used for orders.csv.
func DefaultOptions() Options {
	return Options{
		Delimiter:      "|",
		LineTerminator: "\n",
	}
}

// =============================================================================
// ROWS
// =============================================================================

// Row is one exported line.
type Row struct {
	OrderID string
	Date    string
	Item    string
	Price   int
}

// Sort returns the records ordered by date, then id. The input is not modified.
func Sort(records []types.OrderRecord) []types.OrderRecord {
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b types.OrderRecord) int {
		if c := cmp.Compare(a.Date, b.Date); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return sorted
}

// Rows flattens the records into export rows in output order.
func Rows(records []types.OrderRecord) []Row {
	var rows []Row
	for _, record := range Sort(records) {
		for _, item := range record.Items {
			rows = append(rows, Row{
				OrderID: record.ID,
				Date:    record.Date,
				Item:    item.Name,
				Price:   item.Price,
			})
		}
	}
	return rows
}

// =============================================================================
// SERIALIZATION
// =============================================================================

// Serialize renders the records in the orders.csv format.
func Serialize(records []types.OrderRecord) []byte {
	return SerializeWithOptions(records, DefaultOptions())
}

// SerializeWithOptions renders the records with a custom delimiter or line
// terminator.
func SerializeWithOptions(records []types.OrderRecord, options Options) []byte {
	var buffer bytes.Buffer
	for _, row := range Rows(records) {
		buffer.WriteString(row.OrderID)
		buffer.WriteString(options.Delimiter)
		buffer.WriteString(row.Date)
		buffer.WriteString(options.Delimiter)
		buffer.WriteString(row.Item)
		buffer.WriteString(options.Delimiter)
		buffer.WriteString(strconv.Itoa(row.Price))
		buffer.WriteString(options.LineTerminator)
	}
	return buffer.Bytes()
}
