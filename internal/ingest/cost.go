package ingest

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"chefia/internal/models"
)

// Recipe export headers, lower-cased. Both spellings occur in the wild.
var (
	costColProduct = []string{"produto_principal", "produto principal"}
	costColValue   = []string{"valor_custo", "valor custo"}
)

// CostStats describes what ParseCosts discarded.
type CostStats struct {
	// DroppedRows counts component rows whose cost could not be parsed.
	DroppedRows int
}

// ParseCosts reads a recipe export and sums component costs per finished
// product. Rows with an unparseable cost are dropped rather than counted as
// free. The result is sorted by product name.
func ParseCosts(r io.Reader) ([]models.CostRecord, CostStats, error) {
	var stats CostStats

	t, err := readTable(r, strings.ToLower)
	if err != nil {
		return nil, stats, err
	}

	value, ok := t.column(costColValue...)
	if !ok {
		return nil, stats, fmt.Errorf("%w: %q", ErrMissingColumn, costColValue[0])
	}
	product, ok := t.column(costColProduct...)
	if !ok {
		return nil, stats, fmt.Errorf("%w: %q", ErrMissingColumn, costColProduct[0])
	}

	totals := make(map[string]float64)
	for _, row := range t.rows {
		cost, ok := ParseCostNumber(cell(row, value))
		if !ok {
			stats.DroppedRows++
			continue
		}
		name := NormalizeCostProductName(cell(row, product))
		if name == "" {
			stats.DroppedRows++
			continue
		}
		totals[name] += cost
	}

	records := make([]models.CostRecord, 0, len(totals))
	for name, cost := range totals {
		records = append(records, models.CostRecord{ProductName: name, ProductionCost: cost})
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].ProductName < records[j].ProductName
	})
	return records, stats, nil
}

// NormalizeCosts is ParseCosts with every failure reported as an empty table.
func NormalizeCosts(r io.Reader) []models.CostRecord {
	records, _, err := ParseCosts(r)
	if err != nil {
		return []models.CostRecord{}
	}
	return records
}
