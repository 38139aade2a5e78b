// Package auth provides stateless token identity for the gateway.
//
// The TokenService issues and validates HS256-signed JWTs carrying the
// username as subject. Validation is pure: it needs only the token and the
// shared secret, takes no locks, and touches no storage, so any gateway
// instance holding the secret can validate a token issued by another.
//
// Password hashing uses bcrypt. The Middleware type enforces bearer
// authentication on protected routes and attaches the validated subject to
// the request context.
package auth
