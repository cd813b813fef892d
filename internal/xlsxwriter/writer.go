// =============================================================================
// Order History Export - XLSX Writer
// =============================================================================
//
// Writes the same rows as the flat export into a spreadsheet, for users who
// open the export in a spreadsheet application rather than feed it to a
// script.
//
// WORKBOOK STRUCTURE:
//
//   Sheet "Orders"
//   | Order ID | Date       | Item   | Price |
//   |----------|------------|--------|-------|
//   | 100-9    | 2020-12-31 | Mouse  |   800 |
//   | 100-9    | 2020-12-31 | Pad x2 |   600 |
//
//   Row order is identical to orders.csv. Prices are numeric cells.
//
// =============================================================================

package xlsxwriter

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/order-history-export/internal/exporter"
	"github.com/ginjaninja78/order-history-export/internal/types"
)

const (
	// SheetName is the worksheet holding the rows.
	SheetName = "Orders"

	// ContentType is the media type of the workbook.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Header is the first row of the sheet.
var Header = []string{"Order ID", "Date", "Item", "Price"}

// Generate builds a workbook from the records and returns its bytes.
func Generate(records []types.OrderRecord) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]interface{}, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	if err := f.SetRowStyle(SheetName, 1, 1, bold); err != nil {
		return nil, fmt.Errorf("failed to style header: %w", err)
	}

	for i, row := range exporter.Rows(records) {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		values := []interface{}{row.OrderID, row.Date, row.Item, row.Price}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(SheetName, "A", "B", 22); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(SheetName, "C", "C", 48); err != nil {
		return nil, err
	}

	buffer, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buffer.Bytes(), nil
}
