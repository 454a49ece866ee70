// Package logging constructs slog loggers with console and JSON handlers
// and standardizes the structured field names used across the pipeline.
//
// WithContext lifts project, job, stage, and correlation identifiers out of
// a context into logger attributes so every record emitted inside a stage
// carries the same identity fields.
package logging
