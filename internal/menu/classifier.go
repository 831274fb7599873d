// Package menu turns normalized sales and cost tables into a classified menu:
// the popularity/profitability matrix of menu engineering.
package menu

import "chefia/internal/models"

// Classify places an item in its quadrant. profitability must already be
// price minus cost. Ties go to the high side on both axes.
func Classify(popularity, profitability float64, t models.Thresholds) models.Classification {
	highPop := popularity >= t.Popularity
	highProfit := profitability >= t.Profitability

	switch {
	case highPop && highProfit:
		return models.ClassificationStar
	case highPop:
		return models.ClassificationWorkhorse
	case highProfit:
		return models.ClassificationPuzzle
	default:
		return models.ClassificationDog
	}
}

// ComputeThresholds returns the mean popularity and mean profitability of
// items. An empty set has zero thresholds.
func ComputeThresholds(items []models.MenuItem) models.Thresholds {
	if len(items) == 0 {
		return models.Thresholds{}
	}
	var pop, profit float64
	for _, it := range items {
		pop += it.Popularity
		profit += it.Profitability
	}
	n := float64(len(items))
	return models.Thresholds{Popularity: pop / n, Profitability: profit / n}
}

// ClassifyAll computes thresholds over items and classifies each one in place.
func ClassifyAll(items []models.MenuItem) models.Thresholds {
	t := ComputeThresholds(items)
	for i := range items {
		items[i].Classification = Classify(items[i].Popularity, items[i].Profitability, t)
	}
	return t
}
