// Package market defines the core domain types shared across the gateway:
// the tabular result shape produced by provider adapters, the typed query
// consumed by the dispatcher, and the enumerations for data sources, report
// kinds, and candle intervals.
//
// These types are deliberately free of transport or provider concerns so
// that adapters, the dispatcher, and the response formatter can exchange
// data without depending on each other.
package market
