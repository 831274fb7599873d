package menu

import (
	"strconv"
	"strings"

	"chefia/internal/models"
)

// Outcome tells callers why an analysis has no items.
type Outcome string

const (
	// OutcomeOK means at least one item was classified.
	OutcomeOK Outcome = "ok"
	// OutcomeNoData means one of the inputs was empty.
	OutcomeNoData Outcome = "no_data"
	// OutcomeNoOverlap means both inputs had rows but no product name matched.
	OutcomeNoOverlap Outcome = "no_overlap"
	// OutcomeNoSales means every matched product had zero popularity.
	OutcomeNoSales Outcome = "no_sales"
)

// MergeReport lists the products the merge excluded.
type MergeReport struct {
	SalesOnly      []string `json:"sales_only"`
	CostOnly       []string `json:"cost_only"`
	ZeroPopularity []string `json:"zero_popularity"`
}

// Unmatched is the number of product names present on only one side.
func (r MergeReport) Unmatched() int {
	return len(r.SalesOnly) + len(r.CostOnly)
}

// Warnings renders the report as user-facing messages.
func (r MergeReport) Warnings() []string {
	var out []string
	if n := len(r.SalesOnly); n > 0 {
		out = append(out, plural(n, "sold product has", "sold products have")+" no recipe cost: "+strings.Join(r.SalesOnly, ", "))
	}
	if n := len(r.CostOnly); n > 0 {
		out = append(out, plural(n, "recipe has", "recipes have")+" no sales record: "+strings.Join(r.CostOnly, ", "))
	}
	if n := len(r.ZeroPopularity); n > 0 {
		out = append(out, plural(n, "product was", "products were")+" excluded for zero sales: "+strings.Join(r.ZeroPopularity, ", "))
	}
	return out
}

// Analysis is a classified menu together with its reference thresholds.
type Analysis struct {
	Outcome    Outcome                       `json:"outcome"`
	Items      []models.MenuItem             `json:"items"`
	Thresholds models.Thresholds             `json:"thresholds"`
	Counts     map[models.Classification]int `json:"-"`
	Report     MergeReport                   `json:"report"`
}

// Count returns how many items fell in class c.
func (a *Analysis) Count(c models.Classification) int {
	return a.Counts[c]
}

// CountsByName returns per-class counts keyed by classification name.
func (a *Analysis) CountsByName() map[string]int {
	out := make(map[string]int, len(models.Classifications))
	for _, c := range models.Classifications {
		out[c.String()] = a.Counts[c]
	}
	return out
}

// Merge inner-joins sales and costs on product name, drops items without
// sales, derives profitability and classifies the survivors against the means
// of the surviving set. Product order follows the sales table.
func Merge(sales []models.SalesRecord, costs []models.CostRecord) *Analysis {
	a := &Analysis{Items: []models.MenuItem{}}

	if len(sales) == 0 || len(costs) == 0 {
		// Still name the products of the readable side.
		for _, s := range sales {
			a.Report.SalesOnly = appendUnique(a.Report.SalesOnly, s.ProductName)
		}
		for _, c := range costs {
			a.Report.CostOnly = appendUnique(a.Report.CostOnly, c.ProductName)
		}
		a.Outcome = OutcomeNoData
		a.finish()
		return a
	}

	costByName := make(map[string]float64, len(costs))
	for _, c := range costs {
		costByName[c.ProductName] = c.ProductionCost
	}

	sold := make(map[string]bool, len(sales))
	matched := false
	for _, s := range sales {
		sold[s.ProductName] = true
		cost, ok := costByName[s.ProductName]
		if !ok {
			a.Report.SalesOnly = appendUnique(a.Report.SalesOnly, s.ProductName)
			continue
		}
		matched = true
		if s.Popularity <= 0 {
			a.Report.ZeroPopularity = appendUnique(a.Report.ZeroPopularity, s.ProductName)
			continue
		}
		a.Items = append(a.Items, models.MenuItem{
			ProductName:    s.ProductName,
			Popularity:     s.Popularity,
			UnitPrice:      s.UnitPrice,
			ProductionCost: cost,
			Profitability:  s.UnitPrice - cost,
			TotalRevenue:   s.TotalRevenue,
		})
	}
	for _, c := range costs {
		if !sold[c.ProductName] {
			a.Report.CostOnly = appendUnique(a.Report.CostOnly, c.ProductName)
		}
	}

	switch {
	case !matched:
		a.Outcome = OutcomeNoOverlap
	case len(a.Items) == 0:
		a.Outcome = OutcomeNoSales
	default:
		a.Outcome = OutcomeOK
	}
	a.finish()
	return a
}

// FromEntries classifies a session dataset. Entries without sales are left
// out and reported like Merge does. Revenue is the stored export revenue,
// or price times popularity when none was stored.
func FromEntries(entries []models.Entry) *Analysis {
	a := &Analysis{Items: make([]models.MenuItem, 0, len(entries))}
	for _, e := range entries {
		if e.Popularity <= 0 {
			a.Report.ZeroPopularity = appendUnique(a.Report.ZeroPopularity, e.ProductName)
			continue
		}
		revenue := e.TotalRevenue
		if revenue <= 0 {
			revenue = e.SalePrice * e.Popularity
		}
		a.Items = append(a.Items, models.MenuItem{
			ProductName:    e.ProductName,
			Popularity:     e.Popularity,
			UnitPrice:      e.SalePrice,
			ProductionCost: e.ProductionCost,
			Profitability:  e.SalePrice - e.ProductionCost,
			TotalRevenue:   revenue,
		})
	}
	switch {
	case len(entries) == 0:
		a.Outcome = OutcomeNoData
	case len(a.Items) == 0:
		a.Outcome = OutcomeNoSales
	default:
		a.Outcome = OutcomeOK
	}
	a.finish()
	return a
}

// Entries converts the analysed items back into dataset rows, the form a
// session stores.
func (a *Analysis) Entries() []models.Entry {
	entries := make([]models.Entry, 0, len(a.Items))
	for i, it := range a.Items {
		entries = append(entries, models.Entry{
			Position:       i,
			ProductName:    it.ProductName,
			ProductionCost: it.ProductionCost,
			SalePrice:      it.UnitPrice,
			Popularity:     it.Popularity,
			TotalRevenue:   it.TotalRevenue,
		})
	}
	return entries
}

func (a *Analysis) finish() {
	for _, list := range []*[]string{&a.Report.SalesOnly, &a.Report.CostOnly, &a.Report.ZeroPopularity} {
		if *list == nil {
			*list = []string{}
		}
	}
	a.Thresholds = ClassifyAll(a.Items)
	a.Counts = make(map[models.Classification]int, len(models.Classifications))
	for _, it := range a.Items {
		a.Counts[it.Classification]++
	}
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return strconv.Itoa(n) + " " + many
}
