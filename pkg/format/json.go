package format

import (
	"bytes"
	"encoding/json"
	"strings"

	"vinalytics-hq/mekong/pkg/market"
)

// DefaultSeparator joins hierarchical column name segments when flattening.
const DefaultSeparator = "_"

// Options controls response shaping. The zero value applies no shaping.
type Options struct {
	// DropNA removes columns whose cells are empty in every row.
	DropNA bool `json:"dropna"`

	// FlattenColumns rewrites dot-delimited column names (produced when an
	// upstream payload nests objects) into a single level joined by
	// Separator.
	FlattenColumns bool `json:"flatten_columns"`

	// Separator joins name segments when FlattenColumns is set.
	// Default: "_".
	Separator string `json:"separator"`
}

// ColumnMap is the JSON form of a table: column name → ordered values.
// It marshals columns in table order, which encoding/json's built-in map
// handling would not preserve.
type ColumnMap struct {
	columns []string
	values  [][]string
}

// Columns returns the ordered column names.
func (m *ColumnMap) Columns() []string {
	return m.columns
}

// Values returns the ordered values of the named column, or nil.
func (m *ColumnMap) Values(name string) []string {
	for i, c := range m.columns {
		if c == name {
			return m.values[i]
		}
	}
	return nil
}

// MarshalJSON implements json.Marshaler, emitting keys in column order.
func (m *ColumnMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range m.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		vals, err := json.Marshal(m.values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(vals)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// JSON shapes the table per opts and returns its JSON column map.
func JSON(table *market.Table, opts Options) *ColumnMap {
	shaped := Shape(table, opts)

	m := &ColumnMap{
		columns: shaped.Columns,
		values:  make([][]string, len(shaped.Columns)),
	}
	for i := range shaped.Columns {
		col := make([]string, 0, len(shaped.Rows))
		for _, row := range shaped.Rows {
			col = append(col, row[i])
		}
		m.values[i] = col
	}
	return m
}

// Shape applies the requested shaping options, returning a new table when
// anything changes and the input table otherwise.
func Shape(table *market.Table, opts Options) *market.Table {
	shaped := table
	if opts.DropNA {
		shaped = dropEmptyColumns(shaped)
	}
	if opts.FlattenColumns {
		shaped = flattenColumns(shaped, opts.Separator)
	}
	return shaped
}

func dropEmptyColumns(table *market.Table) *market.Table {
	keep := make([]int, 0, len(table.Columns))
	for i := range table.Columns {
		empty := true
		for _, row := range table.Rows {
			if row[i] != "" {
				empty = false
				break
			}
		}
		// Columns of an empty table are kept: with no rows there is
		// nothing to judge emptiness by.
		if !empty || len(table.Rows) == 0 {
			keep = append(keep, i)
		}
	}
	if len(keep) == len(table.Columns) {
		return table
	}

	out := &market.Table{
		Columns: make([]string, 0, len(keep)),
		Rows:    make([][]string, 0, len(table.Rows)),
	}
	for _, i := range keep {
		out.Columns = append(out.Columns, table.Columns[i])
	}
	for _, row := range table.Rows {
		selected := make([]string, 0, len(keep))
		for _, i := range keep {
			selected = append(selected, row[i])
		}
		out.Rows = append(out.Rows, selected)
	}
	return out
}

func flattenColumns(table *market.Table, separator string) *market.Table {
	if separator == "" {
		separator = DefaultSeparator
	}

	changed := false
	columns := make([]string, len(table.Columns))
	for i, name := range table.Columns {
		flat := strings.ReplaceAll(name, ".", separator)
		columns[i] = flat
		if flat != name {
			changed = true
		}
	}
	if !changed {
		return table
	}
	return &market.Table{Columns: columns, Rows: table.Rows}
}
