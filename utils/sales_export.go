package utils

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
	"github.com/yourusername/cropverse/models"
)

const SalesSheet = "Sales"

var salesHeader = []interface{}{"Transaction", "Date", "Crop", "Buyer", "Quantity (kg)", "Total Price"}

// BuildSalesWorkbook renders rows into an xlsx workbook with a totals row at the bottom.
func BuildSalesWorkbook(rows []models.SaleRow) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SalesSheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := f.SetSheetRow(SalesSheet, "A1", &salesHeader); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	var qty, total float64
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		values := []interface{}{
			r.TransactionID,
			r.TransactionDate.UTC().Format("2006-01-02 15:04"),
			r.CropName,
			r.BuyerName,
			r.QuantityBoughtKg,
			r.TotalPrice,
		}
		if err := f.SetSheetRow(SalesSheet, cell, &values); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
		qty += r.QuantityBoughtKg
		total += r.TotalPrice
	}

	cell, err := excelize.CoordinatesToCellName(1, len(rows)+2)
	if err != nil {
		return nil, err
	}
	totals := []interface{}{"Total", "", "", "", RoundQuantity(qty), RoundCents(total)}
	if err := f.SetSheetRow(SalesSheet, cell, &totals); err != nil {
		return nil, fmt.Errorf("failed to write totals: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to encode workbook: %w", err)
	}
	return buf, nil
}
