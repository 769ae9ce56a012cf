// Package dataset provides loading and joining of the per-cell tabular
// manifests consumed by the shape-space pipeline. A Table is a column-
// oriented view of one manifest: numeric feature columns are parsed into
// float64 vectors, anything non-numeric (structure names, file paths) is
// kept as a string column.
package dataset

import (
	"errors"
	"fmt"
	"strings"
)

// ErrFeatureNotFound indicates a required column is absent from the
// table schema. Fatal to the run.
var ErrFeatureNotFound = errors.New("feature not found")

// Table holds one manifest keyed by cell identifier.
type Table struct {
	// CellIDs holds the row keys in load order
	CellIDs []string

	numericCols []string
	numericIdx  map[string]int
	numeric     [][]float64 // [row][col]

	stringCols []string
	stringIdx  map[string]int
	strings    [][]string // [row][col]
}

// NewTable creates an empty table with the given numeric and string
// column schemas.
func NewTable(numericCols, stringCols []string) *Table {
	t := &Table{
		numericCols: append([]string(nil), numericCols...),
		numericIdx:  make(map[string]int, len(numericCols)),
		stringCols:  append([]string(nil), stringCols...),
		stringIdx:   make(map[string]int, len(stringCols)),
	}
	for i, c := range numericCols {
		t.numericIdx[c] = i
	}
	for i, c := range stringCols {
		t.stringIdx[c] = i
	}
	return t
}

// AppendRow adds one record. The slices must match the column schemas.
func (t *Table) AppendRow(cellID string, numeric []float64, strs []string) error {
	if len(numeric) != len(t.numericCols) {
		return fmt.Errorf("expected %d numeric values, got %d", len(t.numericCols), len(numeric))
	}
	if len(strs) != len(t.stringCols) {
		return fmt.Errorf("expected %d string values, got %d", len(t.stringCols), len(strs))
	}
	t.CellIDs = append(t.CellIDs, cellID)
	t.numeric = append(t.numeric, append([]float64(nil), numeric...))
	t.strings = append(t.strings, append([]string(nil), strs...))
	return nil
}

// Len returns the number of records in the table.
func (t *Table) Len() int { return len(t.CellIDs) }

// NumericColumns returns the names of all numeric columns.
func (t *Table) NumericColumns() []string {
	return append([]string(nil), t.numericCols...)
}

// HasColumn reports whether a numeric column exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.numericIdx[name]
	return ok
}

// Column returns the full numeric column as a new slice.
// Fails with ErrFeatureNotFound if the column is absent.
func (t *Table) Column(name string) ([]float64, error) {
	idx, ok := t.numericIdx[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFeatureNotFound, name)
	}
	out := make([]float64, len(t.numeric))
	for i, row := range t.numeric {
		out[i] = row[idx]
	}
	return out, nil
}

// Value returns the numeric value at (row, column).
func (t *Table) Value(row int, name string) (float64, error) {
	idx, ok := t.numericIdx[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrFeatureNotFound, name)
	}
	return t.numeric[row][idx], nil
}

// StringValue returns the string value at (row, column), or "" when
// the column does not exist.
func (t *Table) StringValue(row int, name string) string {
	idx, ok := t.stringIdx[name]
	if !ok {
		return ""
	}
	return t.strings[row][idx]
}

// HasStringColumn reports whether a string column exists.
func (t *Table) HasStringColumn(name string) bool {
	_, ok := t.stringIdx[name]
	return ok
}

// Row returns a named view of one record, suitable for the
// coefficient matrix builder.
type Row struct {
	table *Table
	idx   int
}

// Row returns the record at the given index.
func (t *Table) Row(i int) Row { return Row{table: t, idx: i} }

// CellID returns the row key.
func (r Row) CellID() string { return r.table.CellIDs[r.idx] }

// Value returns the numeric value of a column in this row.
func (r Row) Value(name string) (float64, error) {
	return r.table.Value(r.idx, name)
}

// Select returns a new table containing only the rows for which
// keep[i] is true. Column schemas are shared layouts, row data is
// copied, so the input table is never mutated.
func (t *Table) Select(keep []bool) *Table {
	out := NewTable(t.numericCols, t.stringCols)
	for i := range t.CellIDs {
		if i < len(keep) && keep[i] {
			out.CellIDs = append(out.CellIDs, t.CellIDs[i])
			out.numeric = append(out.numeric, append([]float64(nil), t.numeric[i]...))
			out.strings = append(out.strings, append([]string(nil), t.strings[i]...))
		}
	}
	return out
}

// MeanRow averages the listed rows column-wise and returns the result
// as a detached single-row table view. String columns take the value
// of the first listed row.
func (t *Table) MeanRow(rows []int) (Row, error) {
	if len(rows) == 0 {
		return Row{}, fmt.Errorf("cannot average zero rows")
	}
	agg := NewTable(t.numericCols, t.stringCols)
	numeric := make([]float64, len(t.numericCols))
	for _, r := range rows {
		for c := range t.numericCols {
			numeric[c] += t.numeric[r][c]
		}
	}
	for c := range numeric {
		numeric[c] /= float64(len(rows))
	}
	strs := append([]string(nil), t.strings[rows[0]]...)
	if err := agg.AppendRow(t.CellIDs[rows[0]], numeric, strs); err != nil {
		return Row{}, err
	}
	return agg.Row(0), nil
}

// InnerJoin merges this table with another on the cell identifier,
// keeping only the listed columns from the right table. Records
// without a match on either side are dropped, mirroring a dataframe
// inner join.
func (t *Table) InnerJoin(other *Table, columns []string) (*Table, error) {
	rightRows := make(map[string]int, other.Len())
	for i, id := range other.CellIDs {
		rightRows[id] = i
	}

	var numericAdd, stringAdd []string
	for _, c := range columns {
		switch {
		case other.HasColumn(c):
			numericAdd = append(numericAdd, c)
		case other.HasStringColumn(c):
			stringAdd = append(stringAdd, c)
		default:
			return nil, fmt.Errorf("%w: %s (join)", ErrFeatureNotFound, c)
		}
	}

	out := NewTable(
		append(t.NumericColumns(), numericAdd...),
		append(append([]string(nil), t.stringCols...), stringAdd...),
	)
	for i, id := range t.CellIDs {
		j, ok := rightRows[id]
		if !ok {
			continue
		}
		numeric := append([]float64(nil), t.numeric[i]...)
		for _, c := range numericAdd {
			v, err := other.Value(j, c)
			if err != nil {
				return nil, err
			}
			numeric = append(numeric, v)
		}
		strs := append([]string(nil), t.strings[i]...)
		for _, c := range stringAdd {
			strs = append(strs, other.StringValue(j, c))
		}
		if err := out.AppendRow(id, numeric, strs); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// RowsByID returns the row indices of the given cell identifiers, in
// the order provided. Unknown identifiers are skipped.
func (t *Table) RowsByID(ids []string) []int {
	lookup := make(map[string]int, t.Len())
	for i, id := range t.CellIDs {
		lookup[id] = i
	}
	rows := make([]int, 0, len(ids))
	for _, id := range ids {
		if i, ok := lookup[id]; ok {
			rows = append(rows, i)
		}
	}
	return rows
}

// ColumnsWithPrefix returns all numeric column names containing the
// given prefix, in schema order.
func (t *Table) ColumnsWithPrefix(prefix string) []string {
	var out []string
	for _, c := range t.numericCols {
		if strings.Contains(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}
