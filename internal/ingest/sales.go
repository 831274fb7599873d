package ingest

import (
	"fmt"
	"io"
	"strings"

	"chefia/internal/models"
)

// Sales export headers, upper-cased.
const (
	salesColProduct       = "PRODUTO DE VENDA"
	salesColStoreUnits    = "VENDA DE FRENTE DE LOJA"
	salesColDeliveryUnits = "VENDA DELIVERY"
	salesColStoreRevenue  = "RECEITA FRENTE DE LOJA"
	salesColDeliveryRev   = "RECEITA DELIVERY"
)

// ParseSales reads a point-of-sale export into one SalesRecord per row.
//
// Unparseable or missing numbers count as zero. Rows without a product name
// are skipped since they cannot be joined to a cost.
func ParseSales(r io.Reader) ([]models.SalesRecord, error) {
	t, err := readTable(r, strings.ToUpper)
	if err != nil {
		return nil, err
	}

	product, ok := t.column(salesColProduct)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, salesColProduct)
	}

	// UNIDADE is never read; the remaining columns are optional.
	storeUnits, _ := t.column(salesColStoreUnits)
	deliveryUnits, _ := t.column(salesColDeliveryUnits)
	storeRevenue, _ := t.column(salesColStoreRevenue)
	deliveryRevenue, _ := t.column(salesColDeliveryRev)

	records := make([]models.SalesRecord, 0, len(t.rows))
	for _, row := range t.rows {
		name := NormalizeProductName(cell(row, product))
		if name == "" {
			continue
		}

		popularity := zeroFill(cell(row, storeUnits)) + zeroFill(cell(row, deliveryUnits))
		revenue := zeroFill(cell(row, storeRevenue)) + zeroFill(cell(row, deliveryRevenue))

		var price float64
		if popularity > 0 {
			price = revenue / popularity
		}

		records = append(records, models.SalesRecord{
			ProductName:  name,
			Popularity:   popularity,
			UnitPrice:    price,
			TotalRevenue: revenue,
		})
	}
	return records, nil
}

// NormalizeSales is ParseSales with every failure reported as an empty table.
func NormalizeSales(r io.Reader) []models.SalesRecord {
	records, err := ParseSales(r)
	if err != nil {
		return []models.SalesRecord{}
	}
	return records
}

func zeroFill(s string) float64 {
	v, _ := ParseLocaleNumber(s)
	return v
}
