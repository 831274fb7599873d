package menu

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"chefia/internal/models"
)

// ExtractOptions bounds the tables handed to the LLM.
type ExtractOptions struct {
	TopProfit     int
	TopPopularity int
	BottomProfit  int
}

// DefaultExtractOptions matches the report the dashboard has always sent.
var DefaultExtractOptions = ExtractOptions{TopProfit: 10, TopPopularity: 10, BottomProfit: 5}

// ReportExtract picks the extremes of the matrix: the most profitable, the
// most popular and the least profitable items, without repeats, in that order.
func ReportExtract(items []models.MenuItem, opts ExtractOptions) []models.MenuItem {
	byProfitDesc := sortedBy(items, func(a, b models.MenuItem) bool { return a.Profitability > b.Profitability })
	byPopDesc := sortedBy(items, func(a, b models.MenuItem) bool { return a.Popularity > b.Popularity })
	byProfitAsc := sortedBy(items, func(a, b models.MenuItem) bool { return a.Profitability < b.Profitability })

	seen := make(map[models.MenuItem]bool)
	var out []models.MenuItem
	for _, part := range [][]models.MenuItem{
		head(byProfitDesc, opts.TopProfit),
		head(byPopDesc, opts.TopPopularity),
		head(byProfitAsc, opts.BottomProfit),
	} {
		for _, it := range part {
			if seen[it] {
				continue
			}
			seen[it] = true
			out = append(out, it)
		}
	}
	return out
}

// ChatContext returns the n items with the highest total revenue.
func ChatContext(items []models.MenuItem, n int) []models.MenuItem {
	byRevenue := sortedBy(items, func(a, b models.MenuItem) bool { return a.TotalRevenue > b.TotalRevenue })
	return head(byRevenue, n)
}

// EncodeTable serializes items as semicolon-delimited text with comma
// decimals, the format the agents receive.
func EncodeTable(items []models.MenuItem) (string, error) {
	var buf bytes.Buffer
	if err := WriteTable(&buf, items); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// WriteTable is EncodeTable writing to out.
func WriteTable(out io.Writer, items []models.MenuItem) error {
	w := csv.NewWriter(out)
	w.Comma = ';'
	if err := w.Write([]string{
		"product_name", "popularity", "unit_price", "production_cost",
		"profitability", "total_revenue", "classification",
	}); err != nil {
		return fmt.Errorf("failed to write table header: %w", err)
	}
	for _, it := range items {
		if err := w.Write([]string{
			it.ProductName,
			FormatDecimal(it.Popularity),
			FormatDecimal(it.UnitPrice),
			FormatDecimal(it.ProductionCost),
			FormatDecimal(it.Profitability),
			FormatDecimal(it.TotalRevenue),
			it.Classification.Label(),
		}); err != nil {
			return fmt.Errorf("failed to write table row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to write table: %w", err)
	}
	return nil
}

// FormatDecimal renders v with a decimal comma and no thousands separator.
func FormatDecimal(v float64) string {
	return strings.Replace(strconv.FormatFloat(v, 'f', -1, 64), ".", ",", 1)
}

func sortedBy(items []models.MenuItem, less func(a, b models.MenuItem) bool) []models.MenuItem {
	out := make([]models.MenuItem, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func head(items []models.MenuItem, n int) []models.MenuItem {
	if n < 0 {
		n = 0
	}
	if n > len(items) {
		n = len(items)
	}
	return items[:n]
}
