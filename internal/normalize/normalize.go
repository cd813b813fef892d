// =============================================================================
// Order History Export - Value Normalizers
// =============================================================================
//
// Pure functions that turn the free text found on order pages into canonical
// values. Nothing in this file touches a document.
//
// NORMALIZERS:
//   - Date:     "2021年3月1日" -> "2021-03-01"
//   - Price:    "￥ 1,280"      -> 1280
//   - Quantity: "2"            -> 2 (blank -> 1)
//
// =============================================================================

package normalize

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/ginjaninja78/order-history-export/internal/types"
)

// ErrNoPrice is returned by Price when the text holds no digits, which is
// how returned items render.
var ErrNoPrice = errors.New("no price")

var (
	digitRunRegEx = regexp.MustCompile(`[0-9]+`)
	priceRegEx    = regexp.MustCompile(`[0-9,]+`)
)

// =============================================================================
// DATE NORMALIZATION
// =============================================================================

// Date converts date text to YYYY-MM-DD.
//
// The text must contain exactly three digit runs: a 4 digit year followed by
// a 1-2 digit month and a 1-2 digit day. Anything else is ErrMalformedDate.
// Month and day are zero padded.
func Date(text string) (string, error) {
	parts := digitRunRegEx.FindAllString(text, -1)
	if len(parts) != 3 {
		return "", types.MalformedDate(text, fmt.Sprintf("expected 3 digit runs, got %d", len(parts)))
	}

	year, month, day := parts[0], parts[1], parts[2]
	if len(year) != 4 {
		return "", types.MalformedDate(text, "wrong year")
	}
	if len(month) < 1 || len(month) > 2 {
		return "", types.MalformedDate(text, "wrong month")
	}
	if len(day) < 1 || len(day) > 2 {
		return "", types.MalformedDate(text, "wrong day")
	}

	return year + "-" + PadLeft(month, 2, '0') + "-" + PadLeft(day, 2, '0'), nil
}

// =============================================================================
// PRICE AND QUANTITY NORMALIZATION
// =============================================================================

// Price extracts the first run of digits and thousand separators from text
// and returns it as an integer. Text without digits yields ErrNoPrice; a
// value that does not fit an int is an error of its own.
func Price(text string) (int, error) {
	for _, match := range priceRegEx.FindAllString(text, -1) {
		digits := strings.ReplaceAll(match, ",", "")
		if digits == "" {
			continue
		}
		value, err := strconv.Atoi(digits)
		if err != nil {
			return 0, fmt.Errorf("price %q out of range", match)
		}
		return value, nil
	}
	return 0, ErrNoPrice
}

// Quantity parses a free text quantity. Blank text means one unit.
func Quantity(text string) (int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 1, nil
	}
	qty, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("invalid quantity %q: %w", text, err)
	}
	if qty < 1 {
		return 0, fmt.Errorf("invalid quantity %q: must be positive", text)
	}
	return qty, nil
}

// LineItem builds a line item from a unit price and quantity. The name gets a
// " x<N>" suffix when more than one unit was bought and the price is the
// line total. A total that would overflow an int is an error.
func LineItem(name string, unitPrice, qty int) (types.LineItem, error) {
	if qty > 1 && unitPrice > math.MaxInt/qty {
		return types.LineItem{}, fmt.Errorf("line total %d x %d out of range", unitPrice, qty)
	}
	if qty > 1 {
		name = fmt.Sprintf("%s x%d", name, qty)
	}
	return types.LineItem{Name: name, Price: unitPrice * qty}, nil
}

// =============================================================================
// STRING HELPERS
// =============================================================================

// PadLeft pads a string with a character on the left to reach the target length.
func PadLeft(s string, length int, padChar rune) string {
	if len(s) >= length {
		return s
	}
	return strings.Repeat(string(padChar), length-len(s)) + s
}

// CollapseSpace trims text and folds internal whitespace runs to one space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
