package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassificationJSON(t *testing.T) {
	item := MenuItem{ProductName: "BURGER", Classification: ClassificationWorkhorse}
	data, err := json.Marshal(item)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"classification":"workhorse"`)

	var back MenuItem
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, ClassificationWorkhorse, back.Classification)

	assert.Error(t, json.Unmarshal([]byte(`{"classification":"plowhorse"}`), &back))
}

func TestClassificationLabels(t *testing.T) {
	assert.Len(t, Classifications, 4)
	for _, c := range Classifications {
		assert.NotEmpty(t, c.Label())
		assert.NotEmpty(t, c.Color())
		parsed, err := ParseClassification(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, parsed)
	}
}

func TestValidateEntry(t *testing.T) {
	valid := Entry{ProductName: "PIZZA", ProductionCost: 10, SalePrice: 30, Popularity: 1}
	assert.NoError(t, ValidateEntry(&valid))

	for _, e := range []Entry{
		{ProductionCost: 10, SalePrice: 30, Popularity: 1},
		{ProductName: "PIZZA", ProductionCost: 0, SalePrice: 30, Popularity: 1},
		{ProductName: "PIZZA", ProductionCost: 10, SalePrice: 0, Popularity: 1},
		{ProductName: "PIZZA", ProductionCost: 10, SalePrice: 30, Popularity: 0},
	} {
		e := e
		assert.Error(t, ValidateEntry(&e))
	}
}
