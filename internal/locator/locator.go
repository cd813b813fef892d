// =============================================================================
// Order History Export - Document Field Locators
// =============================================================================
//
// Finds the domain fields inside order pages. Two incompatible page
// generations are in the wild, so every locator here works for both:
//
//   ORDER LIST PAGE
//     - order cards      (.order-card, else .js-order-card)
//     - order id         (digital orders start with "D")
//     - cancellation     (shipment status phrases)
//
//   INVOICE PAGE (see invoice.go)
//     - table layout     hidden input anchors, date in the 2nd table
//     - grid layout      paired left/right grid blocks, tagged date element
//
// A locator either returns its field or an error wrapping types.ErrNotFound.
//
// =============================================================================

package locator

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ginjaninja78/order-history-export/internal/config"
	"github.com/ginjaninja78/order-history-export/internal/normalize"
	"github.com/ginjaninja78/order-history-export/internal/types"
)

var orderIDRegEx = regexp.MustCompile(`[D0-9-]+`)

// digitalPrefix marks orders whose invoice uses a layout this tool cannot read.
const digitalPrefix = "D"

// Locator reads fields from order list and invoice documents.
type Locator struct {
	layout config.LayoutConfig
}

// New creates a Locator for the given selectors.
func New(layout config.LayoutConfig) *Locator {
	return &Locator{layout: layout}
}

// =============================================================================
// ORDER LIST PAGE
// =============================================================================

// Entry is one order's summary block on the list page.
type Entry struct {
	// Index is the card's position on the page, starting at 0.
	Index int

	// ID is the order identifier.
	ID string

	// Digital is set for digital orders, which are skipped entirely.
	Digital bool

	// Cancelled is set for cancelled or returned orders. They are counted
	// but never fetched.
	Cancelled bool
}

// OrderCards returns the order entries on a list page.
//
// Depending on where the page was opened from, cards are tagged with the
// primary class, the fallback class, or both (one generation nests the
// fallback inside the primary). The fallback is only consulted when the
// primary finds nothing, so nested cards are never counted twice.
func (l *Locator) OrderCards(doc *goquery.Document) *goquery.Selection {
	cards := doc.Find(l.layout.OrderCardSelector)
	if cards.Length() == 0 {
		cards = doc.Find(l.layout.OrderCardFallbackSelector)
	}
	return cards
}

// ReadEntry resolves the identifier and status of one order card.
func (l *Locator) ReadEntry(index int, card *goquery.Selection) (Entry, error) {
	id, err := l.OrderID(card)
	if err != nil {
		return Entry{Index: index}, err
	}
	return Entry{
		Index:     index,
		ID:        id,
		Digital:   IsDigital(id),
		Cancelled: l.IsCancelled(card),
	}, nil
}

// OrderID extracts the order identifier from a card.
func (l *Locator) OrderID(card *goquery.Selection) (string, error) {
	idNode := card.Find(l.layout.OrderIDSelector).First()
	if idNode.Length() == 0 {
		return "", types.NotFound("order id", "no "+l.layout.OrderIDSelector+" element")
	}

	text := idNode.Text()
	for _, match := range orderIDRegEx.FindAllString(text, -1) {
		if strings.ContainsAny(match, "0123456789") {
			return match, nil
		}
	}
	return "", types.NotFound("order id", "no identifier in "+strings.TrimSpace(text))
}

// IsDigital reports whether id belongs to a digital order.
func IsDigital(id string) bool {
	return strings.HasPrefix(id, digitalPrefix)
}

// IsCancelled reports whether the card's shipment status says the order was
// cancelled or its return received. Cards without a status are not cancelled.
func (l *Locator) IsCancelled(card *goquery.Selection) bool {
	status := card.Find(l.layout.ShipmentStatusSelector)
	if status.Length() == 0 {
		return false
	}

	text := normalize.CollapseSpace(status.Text())
	for _, phrase := range l.layout.CancelledPhrases {
		if phrase != "" && strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}
