package menu

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chefia/internal/models"
)

func TestClassify(t *testing.T) {
	th := models.Thresholds{Popularity: 15, Profitability: 5}
	tests := []struct {
		name          string
		popularity    float64
		profitability float64
		want          models.Classification
	}{
		{"star", 20, 8, models.ClassificationStar},
		{"workhorse", 20, 3, models.ClassificationWorkhorse},
		{"puzzle", 10, 8, models.ClassificationPuzzle},
		{"dog", 10, 3, models.ClassificationDog},
		{"tie on both axes", 15, 5, models.ClassificationStar},
		{"tie on popularity", 15, 4.99, models.ClassificationWorkhorse},
		{"tie on profit", 14.99, 5, models.ClassificationPuzzle},
		{"negative profit", 1, -2, models.ClassificationDog},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.popularity, tt.profitability, th))
		})
	}
}

func TestClassifyIsTotal(t *testing.T) {
	values := []float64{-10, -0.5, 0, 0.5, 1, 15, 1e9}
	for _, pop := range values {
		for _, profit := range values {
			for _, tp := range values {
				for _, tq := range values {
					got := Classify(pop, profit, models.Thresholds{Popularity: tp, Profitability: tq})
					assert.Contains(t, models.Classifications, got)
				}
			}
		}
	}
}

func sales(rows ...models.SalesRecord) []models.SalesRecord { return rows }
func costs(rows ...models.CostRecord) []models.CostRecord   { return rows }

func TestMerge(t *testing.T) {
	a := Merge(
		sales(
			models.SalesRecord{ProductName: "BURGER", Popularity: 20, UnitPrice: 30, TotalRevenue: 600},
			models.SalesRecord{ProductName: "SALAD", Popularity: 5, UnitPrice: 25, TotalRevenue: 125},
			models.SalesRecord{ProductName: "SODA", Popularity: 0, UnitPrice: 0, TotalRevenue: 0},
			models.SalesRecord{ProductName: "WATER", Popularity: 40, UnitPrice: 4, TotalRevenue: 160},
		),
		costs(
			models.CostRecord{ProductName: "BURGER", ProductionCost: 12.5},
			models.CostRecord{ProductName: "SALAD", ProductionCost: 6},
			models.CostRecord{ProductName: "SODA", ProductionCost: 2},
			models.CostRecord{ProductName: "TIRAMISU", ProductionCost: 9},
		),
	)

	require.Equal(t, OutcomeOK, a.Outcome)
	require.Len(t, a.Items, 2)
	assert.Equal(t, []string{"WATER"}, a.Report.SalesOnly)
	assert.Equal(t, []string{"TIRAMISU"}, a.Report.CostOnly)
	assert.Equal(t, []string{"SODA"}, a.Report.ZeroPopularity)
	assert.Equal(t, 2, a.Report.Unmatched())
	assert.Len(t, a.Report.Warnings(), 3)

	for _, it := range a.Items {
		assert.Equal(t, it.UnitPrice-it.ProductionCost, it.Profitability)
		assert.NotEqual(t, "WATER", it.ProductName)
		assert.NotEqual(t, "TIRAMISU", it.ProductName)
		assert.NotEqual(t, "SODA", it.ProductName)
	}

	// Means over BURGER (20, 17.5) and SALAD (5, 19).
	assert.Equal(t, 12.5, a.Thresholds.Popularity)
	assert.Equal(t, 18.25, a.Thresholds.Profitability)
	assert.Equal(t, models.ClassificationWorkhorse, a.Items[0].Classification)
	assert.Equal(t, models.ClassificationPuzzle, a.Items[1].Classification)
	assert.Equal(t, 1, a.Count(models.ClassificationWorkhorse))
	assert.Equal(t, 0, a.CountsByName()["star"])
}

func TestMergeSingleItemIsStar(t *testing.T) {
	a := Merge(
		sales(models.SalesRecord{ProductName: "COCA COLA", Popularity: 15, UnitPrice: 5, TotalRevenue: 75}),
		costs(models.CostRecord{ProductName: "COCA COLA", ProductionCost: 2.2}),
	)
	require.Len(t, a.Items, 1)
	assert.Equal(t, a.Items[0].Popularity, a.Thresholds.Popularity)
	assert.Equal(t, a.Items[0].Profitability, a.Thresholds.Profitability)
	assert.Equal(t, models.ClassificationStar, a.Items[0].Classification)
}

func TestMergeOutcomes(t *testing.T) {
	a := Merge(nil, costs(models.CostRecord{ProductName: "A", ProductionCost: 1}))
	assert.Equal(t, OutcomeNoData, a.Outcome)
	assert.NotNil(t, a.Items)
	assert.Equal(t, []string{"A"}, a.Report.CostOnly)
	assert.Empty(t, a.Report.SalesOnly)

	a = Merge(sales(models.SalesRecord{ProductName: "A", Popularity: 1, UnitPrice: 2}), nil)
	assert.Equal(t, OutcomeNoData, a.Outcome)
	assert.Equal(t, []string{"A"}, a.Report.SalesOnly)
	assert.Empty(t, a.Report.CostOnly)

	a = Merge(
		sales(models.SalesRecord{ProductName: "A", Popularity: 1, UnitPrice: 2}),
		costs(models.CostRecord{ProductName: "B", ProductionCost: 1}),
	)
	assert.Equal(t, OutcomeNoOverlap, a.Outcome)
	assert.Empty(t, a.Items)

	a = Merge(
		sales(models.SalesRecord{ProductName: "A", Popularity: 0}),
		costs(models.CostRecord{ProductName: "A", ProductionCost: 1}),
	)
	assert.Equal(t, OutcomeNoSales, a.Outcome)
	assert.Equal(t, []string{"A"}, a.Report.ZeroPopularity)
}

func TestFromEntries(t *testing.T) {
	a := FromEntries([]models.Entry{
		{ProductName: "PIZZA", ProductionCost: 20, SalePrice: 50, Popularity: 10},
		{ProductName: "PASTA", ProductionCost: 15, SalePrice: 30, Popularity: 30},
	})
	require.Equal(t, OutcomeOK, a.Outcome)
	require.Len(t, a.Items, 2)
	assert.Equal(t, 30.0, a.Items[0].Profitability)
	assert.Equal(t, 500.0, a.Items[0].TotalRevenue)
	assert.Equal(t, models.ClassificationPuzzle, a.Items[0].Classification)
	assert.Equal(t, models.ClassificationWorkhorse, a.Items[1].Classification)

	entries := a.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, 30.0, entries[1].Popularity)
	assert.Equal(t, 30.0, entries[1].SalePrice)

	assert.Equal(t, OutcomeNoData, FromEntries(nil).Outcome)
}

func TestFromEntriesSkipsZeroPopularity(t *testing.T) {
	a := FromEntries([]models.Entry{
		{ProductName: "PIZZA", ProductionCost: 20, SalePrice: 50, Popularity: 10},
		{ProductName: "PUDIM", ProductionCost: 3, SalePrice: 9, Popularity: 0},
	})
	require.Equal(t, OutcomeOK, a.Outcome)
	require.Len(t, a.Items, 1)
	assert.Equal(t, []string{"PUDIM"}, a.Report.ZeroPopularity)
	assert.Equal(t, 10.0, a.Thresholds.Popularity)

	a = FromEntries([]models.Entry{{ProductName: "PUDIM", ProductionCost: 3, SalePrice: 9}})
	assert.Equal(t, OutcomeNoSales, a.Outcome)
	assert.Empty(t, a.Items)
}

func TestStoredMergeKeepsFigures(t *testing.T) {
	merged := Merge(
		sales(
			models.SalesRecord{ProductName: "BURGER", Popularity: 20, UnitPrice: 30, TotalRevenue: 600},
			models.SalesRecord{ProductName: "SALAD", Popularity: 5, UnitPrice: 12, TotalRevenue: 52},
			models.SalesRecord{ProductName: "PICANHA KG", Popularity: 0.4, UnitPrice: 100, TotalRevenue: 40},
		),
		costs(
			models.CostRecord{ProductName: "BURGER", ProductionCost: 12},
			models.CostRecord{ProductName: "SALAD", ProductionCost: 5},
			models.CostRecord{ProductName: "PICANHA KG", ProductionCost: 60},
		),
	)
	require.Equal(t, OutcomeOK, merged.Outcome)

	rebuilt := FromEntries(merged.Entries())
	require.Equal(t, OutcomeOK, rebuilt.Outcome)
	assert.Equal(t, merged.Items, rebuilt.Items)
	assert.Equal(t, merged.Thresholds, rebuilt.Thresholds)

	picanha := rebuilt.Items[2]
	assert.Equal(t, 0.4, picanha.Popularity)
	assert.Equal(t, 40.0, picanha.TotalRevenue)
	assert.Equal(t, 52.0, rebuilt.Items[1].TotalRevenue)
}

func TestReportExtract(t *testing.T) {
	var items []models.MenuItem
	for i := 0; i < 30; i++ {
		items = append(items, models.MenuItem{
			ProductName:   string(rune('A'+i%26)) + strings.Repeat("X", i/26),
			Popularity:    float64(i),
			Profitability: float64(i),
		})
	}

	extract := ReportExtract(items, DefaultExtractOptions)
	// Top-10 by profit and by popularity coincide here; the bottom 5 add five more.
	assert.Len(t, extract, 15)
	assert.Equal(t, 29.0, extract[0].Profitability)
	assert.Equal(t, 0.0, extract[10].Profitability)

	ctx := ChatContext(items, 3)
	require.Len(t, ctx, 3)
	assert.Len(t, ChatContext(items, 100), 30)
	assert.Empty(t, ChatContext(items, 0))
}

func TestEncodeTable(t *testing.T) {
	out, err := EncodeTable([]models.MenuItem{{
		ProductName: "BURGER", Popularity: 20, UnitPrice: 30.5, ProductionCost: 12.25,
		Profitability: 18.25, TotalRevenue: 610, Classification: models.ClassificationStar,
	}})
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "product_name;popularity;unit_price;production_cost;profitability;total_revenue;classification", lines[0])
	assert.Equal(t, "BURGER;20;30,5;12,25;18,25;610;Star", lines[1])
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errWriteFailed
}

var errWriteFailed = errors.New("disk full")

func TestWriteTableReportsWriterErrors(t *testing.T) {
	err := WriteTable(failingWriter{}, []models.MenuItem{{ProductName: "BURGER", Popularity: 1}})
	assert.ErrorIs(t, err, errWriteFailed)
}

func TestScatterChart(t *testing.T) {
	a := FromEntries([]models.Entry{
		{ProductName: "PIZZA", ProductionCost: 20, SalePrice: 50, Popularity: 10},
	})
	c := ScatterChart(a)
	require.Len(t, c.Points, 1)
	assert.Equal(t, 10.0, c.Points[0].X)
	assert.Equal(t, 30.0, c.Points[0].Y)
	assert.Equal(t, "#FFD700", c.Points[0].Color)
	assert.Equal(t, 10.0, c.VLine.Value)
	assert.Equal(t, 30.0, c.HLine.Value)
	assert.Len(t, c.Colors, 4)
}
