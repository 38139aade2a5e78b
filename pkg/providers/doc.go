// Package providers defines the adapter contract for upstream Vietnamese
// market-data sources and the shared HTTP machinery the concrete adapters
// build on.
//
// Each upstream source (VCI, TCBS, MSN) is wrapped by an Adapter that turns
// a typed market.Query into a market.Table. Adapters classify their own
// failures into transient and permanent classes; the dispatcher relies on
// that classification for its retry decisions and never inspects adapter
// internals.
//
// Adding a new data source means implementing Adapter in a new subpackage
// and registering it with the dispatcher; no dispatcher changes required.
package providers
