// Package workflow drives a project through the processing pipeline:
// validation, synchronization, quality assessment, and stitching. Each media
// stage runs as a queue job so the single-flight scheduler bounds external
// toolchain load; the orchestrator sequences the stages, reports progress
// through the notification bus, and records which stages completed when a
// run fails.
package workflow
