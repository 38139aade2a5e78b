// Package gateway is the HTTP surface of the market-data service.
//
// It wires the route table: auth endpoints backed by the credential store
// and token service, data and download endpoints backed by the dispatcher
// and formatter, and the operational endpoints (health, readiness,
// provider status, metrics). Every non-2xx response body is
// {"detail": "<message>"}.
//
// Auth and validation failures reject before any dispatch happens.
// Dispatch outcomes arrive fully classified; handlers map them to status
// codes and never re-interpret raw adapter errors.
package gateway
