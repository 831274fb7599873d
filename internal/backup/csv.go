// Package backup reads and writes the dataset files a user downloads and
// re-imports: a semicolon CSV with decimal commas and a spreadsheet export.
package backup

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"chefia/internal/menu"
	"chefia/internal/models"
)

// Backup columns. The first four are required on import.
const (
	ColProductName    = "produto_nome"
	ColProductionCost = "custo_producao"
	ColSalePrice      = "preco_venda"
	ColPopularity     = "popularidade"
	ColProfitability  = "lucratividade"
	ColTotalRevenue   = "receita_total"
	ColClassification = "classificacao"
)

// RequiredColumns must all be present in an imported backup.
var RequiredColumns = []string{ColProductName, ColProductionCost, ColSalePrice, ColPopularity}

// ErrMissingColumns means an imported file lacks one of RequiredColumns.
var ErrMissingColumns = errors.New("backup must contain the columns " + strings.Join(RequiredColumns, ", "))

const utf8BOM = "\ufeff"

// WriteCSV writes items as a UTF-8 (with BOM) semicolon CSV, decimals with a
// comma.
func WriteCSV(w io.Writer, items []models.MenuItem) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}

	cw := csv.NewWriter(w)
	cw.Comma = ';'
	if err := cw.Write([]string{
		ColProductName, ColProductionCost, ColSalePrice, ColPopularity,
		ColProfitability, ColTotalRevenue, ColClassification,
	}); err != nil {
		return fmt.Errorf("failed to write backup header: %w", err)
	}

	for _, it := range items {
		if err := cw.Write([]string{
			it.ProductName,
			menu.FormatDecimal(it.ProductionCost),
			menu.FormatDecimal(it.UnitPrice),
			menu.FormatDecimal(it.Popularity),
			menu.FormatDecimal(it.Profitability),
			menu.FormatDecimal(it.TotalRevenue),
			it.Classification.String(),
		}); err != nil {
			return fmt.Errorf("failed to write backup row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a backup into dataset entries. Unparseable numbers become
// zero. The optional revenue column is kept so imported figures match the
// exported ones. A leading BOM is ignored.
func ReadCSV(r io.Reader) ([]models.Entry, error) {
	cr := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	cr.Comma = ';'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrMissingColumns
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range RequiredColumns {
		if _, ok := index[col]; !ok {
			return nil, ErrMissingColumns
		}
	}

	var entries []models.Entry
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read backup row: %w", err)
		}

		field := func(col string) string {
			i, ok := index[col]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		name := field(ColProductName)
		if name == "" {
			continue
		}
		entries = append(entries, models.Entry{
			Position:       len(entries),
			ProductName:    name,
			ProductionCost: decimalOrZero(field(ColProductionCost)),
			SalePrice:      decimalOrZero(field(ColSalePrice)),
			Popularity:     decimalOrZero(field(ColPopularity)),
			TotalRevenue:   decimalOrZero(field(ColTotalRevenue)),
		})
	}
	return entries, nil
}

// ImportID identifies an uploaded file so the same upload is not applied
// twice in a row.
func ImportID(filename string, size int64) string {
	return fmt.Sprintf("%s_%d", filename, size)
}

func decimalOrZero(s string) float64 {
	v, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
