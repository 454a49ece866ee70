// Package stitching assembles a project's synchronized recordings into one
// output video: fixed windows over the shared timeline, per-window source
// selection favoring camera-angle variety, transition assignment, and a
// single filter-graph render.
package stitching
