package ingest

import (
	"math"
	"strconv"
	"strings"
)

// NormalizeProductName builds the join key shared by both exports: trimmed,
// internal whitespace runs collapsed to one space, upper-cased.
func NormalizeProductName(name string) string {
	return strings.ToUpper(strings.Join(strings.Fields(name), " "))
}

// NormalizeCostProductName is NormalizeProductName plus removal of trailing
// periods, which the recipe export appends to some product names. A space
// left in front of the periods is trimmed too.
func NormalizeCostProductName(name string) string {
	return strings.TrimSpace(strings.TrimRight(NormalizeProductName(name), "."))
}

// ParseLocaleNumber parses a pt-BR formatted number such as "1.234,56".
// Every '.' is a thousands separator and ',' is the decimal mark.
func ParseLocaleNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, ".", "")
	s = strings.Replace(s, ",", ".", 1)
	return parseFinite(s)
}

// ParseCostNumber parses a component cost. Values carrying a decimal comma
// are read as pt-BR numbers; anything else is read as a plain float, so a
// recipe sheet exported with "2.5" keeps its decimal point.
func ParseCostNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") {
		return ParseLocaleNumber(s)
	}
	if s == "" {
		return 0, false
	}
	return parseFinite(s)
}

func parseFinite(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
