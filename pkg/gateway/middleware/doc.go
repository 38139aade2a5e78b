// Package middleware contains the gateway's HTTP middleware chain:
// request IDs, structured request logging, panic recovery, CORS, and
// per-request timeouts. Each middleware wraps an http.Handler and the
// chain is assembled in pkg/gateway.
package middleware
