// Package services defines shared utilities consumed by the pipeline
// services and the workflow orchestrator.
//
// Key responsibilities:
//   - Context helpers that stamp project IDs, job IDs, stage names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     (validation vs transient external vs fatal render) consistently.
//
// Use these helpers when wiring new pipeline logic so operational behaviour
// (error handling, observability) stays uniform across the pipeline.
package services
