package locator

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ginjaninja78/order-history-export/internal/config"
	"github.com/ginjaninja78/order-history-export/internal/normalize"
	"github.com/ginjaninja78/order-history-export/internal/types"
)

// tableLayout reads the nested-table invoice.
//
// Product rows carry no classes. Each one holds a hidden input whose value is
// the unit count; the enclosing row has the product name inside an <i> and
// the unit price in its second cell:
//
//	<tr>
//	  <input type="hidden" value="{count}">
//	  <td>{count} <i>{product name}</i> {seller}</td>
//	  <td>￥ {price}</td>
//	</tr>
type tableLayout struct {
	layout config.LayoutConfig
}

func (t *tableLayout) Variant() Variant { return VariantTable }

// Date scans the cells of the second table for the order date. The cell is
// not at a fixed position: it may come after a reissue-date cell, or be a
// subscription confirmation sentence carrying the date.
func (t *tableLayout) Date(doc *goquery.Document) (string, error) {
	tables := doc.Find("table")
	if tables.Length() < 2 {
		return "", types.NotFound("date", fmt.Sprintf("expected at least 2 tables, got %d", tables.Length()))
	}

	var text string
	found := false
	tables.Eq(1).Find("td").EachWithBreak(func(_ int, cell *goquery.Selection) bool {
		cellText := cell.Text()
		if strings.Contains(cellText, t.layout.OrderDateMarker) && strings.Contains(cellText, t.layout.DayMarker) {
			text = cellText
			found = true
			return false
		}
		return true
	})
	if !found {
		return "", types.NotFound("date", "no order date cell")
	}

	return normalize.Date(text)
}

func (t *tableLayout) Items(doc *goquery.Document) ([]types.LineItem, []Notice, error) {
	items := []types.LineItem{}
	var notices []Notice

	doc.Find(`input[type="hidden"]`).Each(func(_ int, marker *goquery.Selection) {
		if name, _ := marker.Attr("name"); name == t.layout.SentinelInputName {
			return
		}

		row := marker.Parent()
		nameNode := row.Find("i").First()
		if nameNode.Length() == 0 {
			notices = append(notices, Notice{Reason: "hidden input outside a product row"})
			return
		}
		name := normalize.CollapseSpace(nameNode.Text())

		price, err := normalize.Price(row.Find("td").Eq(1).Text())
		if err != nil {
			// Returned items keep their row but lose the price.
			notices = append(notices, Notice{Item: name, Reason: err.Error()})
			return
		}

		value, _ := marker.Attr("value")
		qty, err := normalize.Quantity(value)
		if err != nil {
			notices = append(notices, Notice{Item: name, Reason: err.Error()})
			return
		}

		item, err := normalize.LineItem(name, price, qty)
		if err != nil {
			notices = append(notices, Notice{Item: name, Reason: err.Error()})
			return
		}
		items = append(items, item)
	})

	return items, notices, nil
}
