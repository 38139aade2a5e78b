// Package vci implements the provider adapter for VCI (Vietcap Securities).
// VCI serves candle data through a batch chart endpoint that returns
// column-oriented arrays, and company/financial/trading datasets through
// per-dataset JSON endpoints.
package vci
