package backup

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"chefia/internal/menu"
	"chefia/internal/models"
)

// Sheet names of the spreadsheet export.
const (
	MenuSheet    = "Menu"
	SummarySheet = "Summary"
)

// WriteXLSX writes the analysis as a workbook: a Menu sheet with one row per
// item and a Summary sheet with thresholds and per-class counts.
func WriteXLSX(w io.Writer, a *menu.Analysis) error {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", MenuSheet)

	headers := []string{
		ColProductName, ColProductionCost, ColSalePrice, ColPopularity,
		ColProfitability, ColTotalRevenue, ColClassification,
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(MenuSheet, cell, h)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#E2E8F0"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err == nil {
		f.SetRowStyle(MenuSheet, 1, 1, headerStyle)
	}

	for i, it := range a.Items {
		row := i + 2
		f.SetCellValue(MenuSheet, fmt.Sprintf("A%d", row), it.ProductName)
		f.SetCellValue(MenuSheet, fmt.Sprintf("B%d", row), it.ProductionCost)
		f.SetCellValue(MenuSheet, fmt.Sprintf("C%d", row), it.UnitPrice)
		f.SetCellValue(MenuSheet, fmt.Sprintf("D%d", row), it.Popularity)
		f.SetCellValue(MenuSheet, fmt.Sprintf("E%d", row), it.Profitability)
		f.SetCellValue(MenuSheet, fmt.Sprintf("F%d", row), it.TotalRevenue)
		f.SetCellValue(MenuSheet, fmt.Sprintf("G%d", row), it.Classification.Label())
	}

	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}
	summary := [][]interface{}{
		{"items", len(a.Items)},
		{"mean_popularity", a.Thresholds.Popularity},
		{"mean_profitability", a.Thresholds.Profitability},
	}
	for _, c := range models.Classifications {
		summary = append(summary, []interface{}{c.Label(), a.Count(c)})
	}
	for i, row := range summary {
		f.SetCellValue(SummarySheet, fmt.Sprintf("A%d", i+1), row[0])
		f.SetCellValue(SummarySheet, fmt.Sprintf("B%d", i+1), row[1])
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
