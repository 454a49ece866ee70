// Package timesync aligns a project's recordings on a shared timeline. The
// first recording by upload order is the reference; every other recording is
// cross-correlated against it over a bounded offset window, with a
// frame-histogram visual fallback when audio confidence is low. Chosen
// offsets are persisted on the recordings.
package timesync
