package menu

import "chefia/internal/models"

// ChartPoint is one bubble of the menu matrix scatter plot.
type ChartPoint struct {
	Name           string                `json:"name"`
	X              float64               `json:"x"`
	Y              float64               `json:"y"`
	Size           float64               `json:"size"`
	Classification models.Classification `json:"classification"`
	Color          string                `json:"color"`
}

// ChartLine is a dashed reference line at a threshold.
type ChartLine struct {
	Value float64 `json:"value"`
	Label string  `json:"label"`
	Dash  string  `json:"dash"`
	Color string  `json:"color"`
}

// Chart is the data behind the dashboard scatter plot: popularity on x,
// profitability on y, bubble size by popularity, coloured by quadrant.
type Chart struct {
	Title  string            `json:"title"`
	XLabel string            `json:"x_label"`
	YLabel string            `json:"y_label"`
	Points []ChartPoint      `json:"points"`
	VLine  ChartLine         `json:"vline"`
	HLine  ChartLine         `json:"hline"`
	Colors map[string]string `json:"colors"`
}

// ScatterChart builds the matrix chart of an analysis.
func ScatterChart(a *Analysis) Chart {
	c := Chart{
		Title:  "Menu Engineering Matrix",
		XLabel: "popularity",
		YLabel: "profitability",
		Points: make([]ChartPoint, 0, len(a.Items)),
		VLine:  ChartLine{Value: a.Thresholds.Popularity, Label: "Mean popularity", Dash: "dash", Color: "gray"},
		HLine:  ChartLine{Value: a.Thresholds.Profitability, Label: "Mean profit", Dash: "dash", Color: "gray"},
		Colors: make(map[string]string, len(models.Classifications)),
	}
	for _, cl := range models.Classifications {
		c.Colors[cl.String()] = cl.Color()
	}
	for _, it := range a.Items {
		c.Points = append(c.Points, ChartPoint{
			Name:           it.ProductName,
			X:              it.Popularity,
			Y:              it.Profitability,
			Size:           it.Popularity,
			Classification: it.Classification,
			Color:          it.Classification.Color(),
		})
	}
	return c
}
