// Package logs tails the daemon log file with bounded memory usage.
//
// It supports "last N lines" reads via negative offsets and follow-mode
// polling for `montage logs --follow`. Callers supply context deadlines so
// polling shuts down cleanly when the CLI exits.
package logs
