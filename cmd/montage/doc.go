// Package main hosts the montage CLI entrypoint and command graph.
//
// The Cobra-based command tree covers project management, queue maintenance,
// individual stage runs, the full-pipeline process command, and configuration
// scaffolding. It centralizes configuration resolution and runtime wiring so
// subcommands can focus on user experience instead of plumbing.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
