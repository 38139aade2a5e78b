// Package dispatch routes market-data queries to the adapter registered
// for the query's source and owns the retry policy for transient upstream
// failures.
//
// Adapters perform a single fetch attempt and classify their errors; the
// dispatcher decides whether and when to try again. Retries use capped
// exponential backoff with jitter, bounded by both an attempt count and a
// total wait budget. Permanent errors (bad symbols, unsupported reports,
// client-side rejections) fail immediately without retry.
//
// Every dispatch returns an Outcome describing what happened: the result
// table on success, or the terminal error with its classification and the
// number of attempts consumed.
package dispatch
