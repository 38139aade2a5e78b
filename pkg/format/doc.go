// Package format converts market tables into response payloads.
//
// Two output modes are supported: a JSON column map that preserves both
// column and row order, and RFC 4180 CSV text. CSV output round-trips
// losslessly through ParseCSV for any table whose cells contain no
// embedded newlines.
//
// Shaping options (drop empty columns, flatten hierarchical column names)
// apply before serialization. Multi-symbol results are either merged into
// one table tagged with a ticket column or emitted per symbol.
package format
