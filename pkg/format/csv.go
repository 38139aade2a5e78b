package format

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"vinalytics-hq/mekong/pkg/market"
)

// WriteCSV serializes the table as RFC 4180 CSV text with a header line.
// Cells containing the delimiter, quotes, or newlines are quoted by
// encoding/csv.
func WriteCSV(table *market.Table) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	if err := w.Write(table.Columns); err != nil {
		return "", fmt.Errorf("writing csv header: %w", err)
	}
	for i, row := range table.Rows {
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("writing csv row %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flushing csv: %w", err)
	}
	return sb.String(), nil
}

// ParseCSV parses CSV text produced by WriteCSV back into a table. The
// first record is the header.
func ParseCSV(text string) (*market.Table, error) {
	r := csv.NewReader(strings.NewReader(text))

	header, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("csv has no header line")
	}
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}

	table := market.NewTable(header...)
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv row: %w", err)
		}
		if err := table.AppendRow(record...); err != nil {
			return nil, err
		}
	}
	return table, nil
}
