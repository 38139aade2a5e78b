// Mekong is an authenticated gateway for Vietnamese stock market data.
//
// It brokers requests for company facts, financial statements, and trading
// data from interchangeable upstream providers (VCI, TCBS, MSN), returning
// results as structured JSON or CSV:
//   - JWT-based user authentication with a pluggable credential store
//   - Per-source adapters behind a retrying dispatcher
//   - CSV and column-oriented JSON output shaping
//   - Prometheus metrics and structured logging
//
// Usage:
//
//	# Start the gateway with default configuration
//	mekong run
//
//	# Start with a custom configuration file
//	mekong run --config /etc/mekong/config.yaml
//
//	# Validate configuration without starting
//	mekong validate
//
//	# Show version information
//	mekong version
package main

func main() {
	Execute()
}
