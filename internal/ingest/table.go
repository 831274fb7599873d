// Package ingest normalizes the vendor CSV exports a restaurant uploads: the
// point-of-sale sales report and the recipe cost sheet.
//
// Both exports are semicolon-delimited and Latin-1 encoded. ParseSales and
// ParseCosts report failures as errors; NormalizeSales and NormalizeCosts are
// the lenient variants that degrade every failure to an empty table.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

var (
	// ErrMissingColumn means a required column is absent from the header.
	ErrMissingColumn = errors.New("required column missing")
	// ErrUnreadable means the input could not be decoded as a delimited table.
	ErrUnreadable = errors.New("unreadable table")
)

// table is a decoded export: cleaned header names and raw string cells.
type table struct {
	header []string
	index  map[string]int
	rows   [][]string
}

// readTable decodes a Latin-1, semicolon-delimited export. caseFn is applied
// to every header after quotes and surrounding whitespace are stripped.
func readTable(r io.Reader, caseFn func(string) string) (*table, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: no input", ErrUnreadable)
	}

	cr := csv.NewReader(charmap.ISO8859_1.NewDecoder().Reader(r))
	cr.Comma = ';'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrUnreadable)
	}

	t := &table{
		header: make([]string, len(records[0])),
		index:  make(map[string]int, len(records[0])),
	}
	for i, h := range records[0] {
		name := caseFn(strings.TrimSpace(strings.ReplaceAll(h, `"`, "")))
		t.header[i] = name
		if _, dup := t.index[name]; !dup {
			t.index[name] = i
		}
	}

	for _, rec := range records[1:] {
		if isBlank(rec) {
			continue
		}
		t.rows = append(t.rows, rec)
	}
	return t, nil
}

// column returns the position of the first header matching any of names.
func (t *table) column(names ...string) (int, bool) {
	for _, n := range names {
		if i, ok := t.index[n]; ok {
			return i, true
		}
	}
	return -1, false
}

// cell returns the value of column i in row, or "" when the row is short or
// the column is absent.
func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
