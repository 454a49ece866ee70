// Package media wraps the ffmpeg toolchain behind the Engine interface:
// probing files, decoding audio and frames for analysis, and rendering the
// stitched output through a generated filter graph.
package media
