// Package tcbs implements the provider adapter for TCBS (Techcom
// Securities). TCBS serves candles row-oriented through its stock-insight
// bars endpoints and company/financial/trading datasets through per-ticker
// analysis endpoints.
package tcbs
