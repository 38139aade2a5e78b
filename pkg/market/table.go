package market

import "fmt"

// Table is an ordered sequence of named columns with row-aligned values.
// It is the uniform tabular shape every provider adapter produces and the
// response formatter consumes. Cells are strings; numeric formatting is the
// adapter's responsibility so that values survive a CSV round trip without
// float drift.
//
// A Table is passed downstream exactly once and never shared, so it carries
// no synchronization.
type Table struct {
	// Columns is the ordered list of column names.
	Columns []string

	// Rows holds the data, one slice per row, aligned with Columns.
	Rows [][]string
}

// NewTable creates an empty table with the given column names.
func NewTable(columns ...string) *Table {
	return &Table{Columns: columns}
}

// AppendRow adds a row to the table. It returns an error if the row length
// does not match the column count.
func (t *Table) AppendRow(values ...string) error {
	if len(values) != len(t.Columns) {
		return fmt.Errorf("row has %d values, table has %d columns", len(values), len(t.Columns))
	}
	t.Rows = append(t.Rows, values)
	return nil
}

// NumRows returns the number of data rows.
func (t *Table) NumRows() int {
	return len(t.Rows)
}

// ColumnIndex returns the index of the named column, or -1 if absent.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns the ordered values of the named column.
// The second return value is false if the column does not exist.
func (t *Table) Column(name string) ([]string, bool) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, false
	}
	values := make([]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		values = append(values, row[idx])
	}
	return values, true
}

// InsertColumn inserts a column at the given index with a constant value in
// every row. Index values beyond the current column count append at the end.
func (t *Table) InsertColumn(index int, name, value string) {
	if index < 0 {
		index = 0
	}
	if index > len(t.Columns) {
		index = len(t.Columns)
	}

	t.Columns = append(t.Columns, "")
	copy(t.Columns[index+1:], t.Columns[index:])
	t.Columns[index] = name

	for i, row := range t.Rows {
		row = append(row, "")
		copy(row[index+1:], row[index:])
		row[index] = value
		t.Rows[i] = row
	}
}

// Concat appends the rows of other to t. Both tables must have identical
// column sets in identical order.
func (t *Table) Concat(other *Table) error {
	if len(t.Columns) != len(other.Columns) {
		return fmt.Errorf("column count mismatch: %d vs %d", len(t.Columns), len(other.Columns))
	}
	for i, c := range t.Columns {
		if other.Columns[i] != c {
			return fmt.Errorf("column mismatch at %d: %q vs %q", i, c, other.Columns[i])
		}
	}
	t.Rows = append(t.Rows, other.Rows...)
	return nil
}

// Clone returns a deep copy of the table. Adapters that cache results use
// this to hand out independent copies.
func (t *Table) Clone() *Table {
	clone := &Table{
		Columns: append([]string(nil), t.Columns...),
		Rows:    make([][]string, 0, len(t.Rows)),
	}
	for _, row := range t.Rows {
		clone.Rows = append(clone.Rows, append([]string(nil), row...))
	}
	return clone
}
