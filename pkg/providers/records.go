package providers

import (
	"fmt"
	"sort"
	"strconv"

	"vinalytics-hq/mekong/pkg/market"
)

// HistoryColumns is the normalized column order for price history tables.
// Every source adapter emits its candles in this shape.
var HistoryColumns = []string{"time", "open", "high", "low", "close", "volume"}

// TableFromRecords flattens a list of upstream JSON objects into a table.
// Columns named in preferred come first, in order, when present in the
// data; remaining keys follow alphabetically so the output is stable for
// a given input. Missing cells render empty.
func TableFromRecords(records []map[string]any, preferred []string) *market.Table {
	seen := make(map[string]bool)
	var columns []string

	for _, col := range preferred {
		for _, rec := range records {
			if _, ok := rec[col]; ok {
				columns = append(columns, col)
				seen[col] = true
				break
			}
		}
	}

	var extras []string
	for _, rec := range records {
		for key := range rec {
			if !seen[key] {
				seen[key] = true
				extras = append(extras, key)
			}
		}
	}
	sort.Strings(extras)
	columns = append(columns, extras...)

	table := market.NewTable(columns...)
	for _, rec := range records {
		row := make([]string, len(columns))
		for i, col := range columns {
			if v, ok := rec[col]; ok {
				row[i] = FormatCell(v)
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

// FormatCell renders a decoded JSON value as a table cell. Numbers print
// without exponent notation or trailing zeros so they survive a CSV round
// trip unchanged.
func FormatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	default:
		return fmt.Sprintf("%v", x)
	}
}
