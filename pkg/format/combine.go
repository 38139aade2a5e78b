package format

import (
	"fmt"

	"vinalytics-hq/mekong/pkg/market"
)

// TicketColumn names the symbol tag column added to download tables.
const TicketColumn = "ticket"

// SymbolTable pairs a symbol with its fetched table.
type SymbolTable struct {
	Symbol string
	Table  *market.Table
}

// Tag returns a copy of the table with a ticket column holding the symbol
// in every row, placed immediately after the time column (or first when
// the table has no time column). Tables already carrying a ticket column
// are copied unchanged.
func Tag(table *market.Table, symbol string) *market.Table {
	tagged := table.Clone()
	if tagged.ColumnIndex(TicketColumn) >= 0 {
		return tagged
	}
	tagged.InsertColumn(tagged.ColumnIndex("time")+1, TicketColumn, symbol)
	return tagged
}

// Combine merges per-symbol tables into a single table tagged by a ticket
// column. Row order follows the input order: all rows of the first symbol,
// then the second, and so on. All tables must share one column set.
func Combine(results []SymbolTable) (*market.Table, error) {
	if len(results) == 0 {
		return nil, fmt.Errorf("no tables to combine")
	}

	combined := Tag(results[0].Table, results[0].Symbol)
	for _, r := range results[1:] {
		if err := combined.Concat(Tag(r.Table, r.Symbol)); err != nil {
			return nil, fmt.Errorf("combining %s: %w", r.Symbol, err)
		}
	}
	return combined, nil
}
