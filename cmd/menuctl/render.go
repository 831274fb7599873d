package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"chefia/internal/menu"
	"chefia/internal/models"
)

// Styling
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#ff9f0a")).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#ff453a")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().Bold(true)
)

var tableHeader = []string{"product", "popularity", "unit price", "cost", "profit", "revenue", "class"}

// renderTable lays items out as aligned columns. Widths are display widths so
// accented product names line up.
func renderTable(items []models.MenuItem, color bool) string {
	rows := make([][]string, 0, len(items))
	for _, it := range items {
		rows = append(rows, []string{
			it.ProductName,
			menu.FormatDecimal(it.Popularity),
			menu.FormatDecimal(it.UnitPrice),
			menu.FormatDecimal(it.ProductionCost),
			menu.FormatDecimal(it.Profitability),
			menu.FormatDecimal(it.TotalRevenue),
			it.Classification.Label(),
		})
	}

	widths := make([]int, len(tableHeader))
	for i, h := range tableHeader {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var sb strings.Builder
	line := formatRow(tableHeader, widths)
	if color {
		line = headerStyle.Render(line)
	}
	sb.WriteString(line)
	sb.WriteByte('\n')
	for i, row := range rows {
		line := formatRow(row, widths)
		if color {
			line = lipgloss.NewStyle().Foreground(lipgloss.Color(items[i].Classification.Color())).Render(line)
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}

func formatRow(cells []string, widths []int) string {
	var sb strings.Builder
	for i, cell := range cells {
		if i > 0 {
			sb.WriteString("  ")
		}
		sb.WriteString(cell)
		if i < len(cells)-1 {
			sb.WriteString(strings.Repeat(" ", widths[i]-runewidth.StringWidth(cell)))
		}
	}
	return sb.String()
}

// renderSummary prints quadrant counts and thresholds.
func renderSummary(a *menu.Analysis) string {
	parts := make([]string, 0, len(models.Classifications))
	for _, c := range models.Classifications {
		parts = append(parts, fmt.Sprintf("%s: %d", c.Label(), a.Count(c)))
	}
	return fmt.Sprintf("%s | mean popularity %s | mean profit %s",
		strings.Join(parts, "  "),
		menu.FormatDecimal(a.Thresholds.Popularity),
		menu.FormatDecimal(a.Thresholds.Profitability),
	)
}
