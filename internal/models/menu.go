package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Classification is the menu-engineering quadrant of an item.
type Classification int

const (
	// ClassificationDog is low popularity and low profitability.
	ClassificationDog Classification = iota
	// ClassificationPuzzle is low popularity and high profitability.
	ClassificationPuzzle
	// ClassificationWorkhorse is high popularity and low profitability.
	ClassificationWorkhorse
	// ClassificationStar is high popularity and high profitability.
	ClassificationStar
)

// Classifications lists every quadrant in display order.
var Classifications = []Classification{
	ClassificationStar,
	ClassificationWorkhorse,
	ClassificationPuzzle,
	ClassificationDog,
}

var classificationNames = map[Classification]string{
	ClassificationStar:      "star",
	ClassificationWorkhorse: "workhorse",
	ClassificationPuzzle:    "puzzle",
	ClassificationDog:       "dog",
}

var classificationLabels = map[Classification]string{
	ClassificationStar:      "Star",
	ClassificationWorkhorse: "Workhorse",
	ClassificationPuzzle:    "Puzzle",
	ClassificationDog:       "Dog",
}

var classificationColors = map[Classification]string{
	ClassificationStar:      "#FFD700",
	ClassificationWorkhorse: "#1E90FF",
	ClassificationPuzzle:    "#32CD32",
	ClassificationDog:       "#FF4500",
}

// String returns the machine name used in JSON and CSV output.
func (c Classification) String() string {
	if name, ok := classificationNames[c]; ok {
		return name
	}
	return fmt.Sprintf("classification(%d)", int(c))
}

// Label returns the display label.
func (c Classification) Label() string {
	return classificationLabels[c]
}

// Color returns the chart colour of the quadrant.
func (c Classification) Color() string {
	return classificationColors[c]
}

// ParseClassification is the inverse of String. It also accepts labels.
func ParseClassification(s string) (Classification, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for c, name := range classificationNames {
		if s == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown classification: %q", s)
}

func (c Classification) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Classification) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseClassification(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// SalesRecord is one normalized row of a point-of-sale export.
type SalesRecord struct {
	ProductName  string  `json:"product_name"`
	Popularity   float64 `json:"popularity"`
	UnitPrice    float64 `json:"unit_price"`
	TotalRevenue float64 `json:"total_revenue"`
}

// CostRecord is the production cost of one finished product, summed over its
// recipe components.
type CostRecord struct {
	ProductName    string  `json:"product_name"`
	ProductionCost float64 `json:"production_cost"`
}

// MenuItem is a classified dish. It is rebuilt on every refresh and never
// stored.
type MenuItem struct {
	ProductName    string         `json:"product_name"`
	Popularity     float64        `json:"popularity"`
	UnitPrice      float64        `json:"unit_price"`
	ProductionCost float64        `json:"production_cost"`
	Profitability  float64        `json:"profitability"`
	TotalRevenue   float64        `json:"total_revenue"`
	Classification Classification `json:"classification"`
}

// Thresholds are the reference means the classifier compares against.
type Thresholds struct {
	Popularity    float64 `json:"popularity"`
	Profitability float64 `json:"profitability"`
}
