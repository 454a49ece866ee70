// Package daemon coordinates the long-running montage process.
//
// It wires configuration, the job and project stores, the single-flight
// scheduler, and the push notification forwarder into one lifecycle with
// flock-based locking to prevent multiple instances. The daemon also handles
// recording uploads and exposes queue health summaries.
//
// Keep orchestration logic in the workflow package; the daemon focuses on
// startup, shutdown, and high level coordination.
package daemon
