// Package store persists gateway user credentials.
//
// UserStore is the pluggable contract: an in-memory backend for tests and
// ephemeral deployments, and a SQLite backend for single-instance
// deployments that need accounts to survive restarts. Registration relies
// on CreateUser being an atomic check-and-insert, so two concurrent
// registrations of one username cannot both succeed.
package store
