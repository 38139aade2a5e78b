// Package symbols maintains the catalog of tradable symbols the gateway
// exposes.
//
// The catalog starts from a built-in list of liquid HOSE tickers and can
// be replaced by a YAML file. When a file backs the catalog, a watcher
// picks up in-place edits and a cron schedule can force periodic reloads
// for files replaced behind the watcher's back (network mounts, config
// management agents).
package symbols
