package locator

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"github.com/ginjaninja78/order-history-export/internal/config"
	"github.com/ginjaninja78/order-history-export/internal/normalize"
	"github.com/ginjaninja78/order-history-export/internal/types"
)

// gridLayout reads the grid invoice, where every item is a left block
// (product image) paired with a right block (title, unit price).
//
// The quantity field in the right block is always blank on these pages. A
// quantity above one is only shown as a number overlaid on the image in the
// left block.
type gridLayout struct {
	layout config.LayoutConfig
}

func (g *gridLayout) Variant() Variant { return VariantGrid }

func (g *gridLayout) Date(doc *goquery.Document) (string, error) {
	node := doc.Find(g.layout.OrderDateSelector).First()
	if node.Length() == 0 {
		return "", types.NotFound("date", "no "+g.layout.OrderDateSelector+" element")
	}
	return normalize.Date(node.Text())
}

func (g *gridLayout) Items(doc *goquery.Document) ([]types.LineItem, []Notice, error) {
	left := doc.Find(g.layout.LeftBlockSelector)
	right := doc.Find(g.layout.RightBlockSelector)
	if left.Length() != right.Length() {
		return nil, nil, types.StructuralMismatch("items",
			fmt.Sprintf("%d left blocks, %d right blocks", left.Length(), right.Length()))
	}

	items := make([]types.LineItem, 0, right.Length())
	var notices []Notice

	for i := 0; i < right.Length(); i++ {
		block := right.Eq(i)

		name := normalize.CollapseSpace(block.Find(g.layout.ItemTitleSelector).First().Text())
		if name == "" {
			return nil, nil, types.NotFound("items", fmt.Sprintf("no item title in block %d", i))
		}

		price, err := normalize.Price(block.Find(g.layout.UnitPriceSelector).First().Text())
		if err != nil {
			notices = append(notices, Notice{Item: name, Reason: err.Error()})
			continue
		}

		qty, err := normalize.Quantity(left.Eq(i).Find(g.layout.QuantitySelector).First().Text())
		if err != nil {
			notices = append(notices, Notice{Item: name, Reason: err.Error()})
			continue
		}

		item, err := normalize.LineItem(name, price, qty)
		if err != nil {
			notices = append(notices, Notice{Item: name, Reason: err.Error()})
			continue
		}
		items = append(items, item)
	}

	return items, notices, nil
}
