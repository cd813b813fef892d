package locator

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/ginjaninja78/order-history-export/internal/types"
)

// Variant identifies an invoice page generation.
type Variant int

const (
	// VariantTable is the older nested-table invoice.
	VariantTable Variant = iota
	// VariantGrid is the newer invoice built from left/right grid blocks.
	VariantGrid
)

func (v Variant) String() string {
	switch v {
	case VariantTable:
		return "table"
	case VariantGrid:
		return "grid"
	default:
		return "unknown"
	}
}

// Notice is a non-fatal problem with one invoice row. The row is left out of
// the order but the order itself is still stored.
type Notice struct {
	Item   string
	Reason string
}

// Layout extracts the order date and line items from one invoice generation.
type Layout interface {
	Variant() Variant

	// Date returns the order date as YYYY-MM-DD.
	Date(doc *goquery.Document) (string, error)

	// Items returns the priced line items in document order, plus a notice
	// for each row that had to be skipped.
	Items(doc *goquery.Document) ([]types.LineItem, []Notice, error)
}

// Detect picks the layout by probing for the grid blocks only the newer
// generation has.
func (l *Locator) Detect(doc *goquery.Document) Layout {
	if doc.Find(l.layout.LeftBlockSelector).Length() > 0 || doc.Find(l.layout.RightBlockSelector).Length() > 0 {
		return &gridLayout{layout: l.layout}
	}
	return &tableLayout{layout: l.layout}
}

// Invoice is everything extracted from one invoice document.
type Invoice struct {
	Variant Variant
	Date    string
	Items   []types.LineItem
	Notices []Notice
}

// ReadInvoice detects the layout and extracts the date and items.
func (l *Locator) ReadInvoice(doc *goquery.Document) (Invoice, error) {
	layout := l.Detect(doc)
	inv := Invoice{Variant: layout.Variant()}

	date, err := layout.Date(doc)
	if err != nil {
		return inv, err
	}
	inv.Date = date

	items, notices, err := layout.Items(doc)
	if err != nil {
		return inv, err
	}
	inv.Items = items
	inv.Notices = notices

	return inv, nil
}
