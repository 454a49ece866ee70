package media

import (
	"errors"
	"fmt"
	"strings"
)

// transitionSeconds is the length of crossfade and fade transitions.
const transitionSeconds = 0.5

// renderArgs translates a RenderSpec into a full ffmpeg argument list with a
// single filter_complex graph. Segments are trimmed from their sources,
// normalized to the output geometry, then folded left to right with the
// transition each segment declares at its leading edge.
func renderArgs(spec RenderSpec) ([]string, error) {
	if len(spec.Segments) == 0 {
		return nil, errors.New("render: no segments")
	}
	out := spec.Output
	if out.Path == "" {
		return nil, errors.New("render: no output path")
	}
	if out.Width <= 0 || out.Height <= 0 || out.FrameRate <= 0 {
		return nil, fmt.Errorf("render: invalid output geometry %dx%d@%d", out.Width, out.Height, out.FrameRate)
	}

	args := []string{"-hide_banner", "-loglevel", "error", "-y"}
	var graph strings.Builder

	for i, seg := range spec.Segments {
		if seg.End <= seg.Start {
			return nil, fmt.Errorf("render: segment %d has no duration [%.2f, %.2f)", i, seg.Start, seg.End)
		}
		args = append(args, "-i", seg.SourcePath)

		srcStart := seg.Start - seg.SyncOffset
		srcEnd := seg.End - seg.SyncOffset
		if srcStart < 0 {
			srcStart = 0
		}
		if srcEnd <= srcStart {
			return nil, fmt.Errorf("render: segment %d falls outside its source", i)
		}

		fmt.Fprintf(&graph,
			"[%d:v]trim=start=%s:end=%s,setpts=PTS-STARTPTS,scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,fps=%d[v%d];",
			i, formatSeconds(srcStart), formatSeconds(srcEnd), out.Width, out.Height, out.Width, out.Height, out.FrameRate, i)
		fmt.Fprintf(&graph,
			"[%d:a]atrim=start=%s:end=%s,asetpts=PTS-STARTPTS[a%d];",
			i, formatSeconds(srcStart), formatSeconds(srcEnd), i)
	}

	curV := fmt.Sprintf("[v%d]", 0)
	curA := fmt.Sprintf("[a%d]", 0)
	elapsed := spec.Segments[0].End - spec.Segments[0].Start

	for i := 1; i < len(spec.Segments); i++ {
		seg := spec.Segments[i]
		segDur := seg.End - seg.Start
		nextV := fmt.Sprintf("[v%d]", i)
		nextA := fmt.Sprintf("[a%d]", i)
		outV := fmt.Sprintf("[vm%d]", i)
		outA := fmt.Sprintf("[am%d]", i)

		fade := transitionSeconds
		if half := segDur / 2; fade > half {
			fade = half
		}

		switch seg.Transition {
		case TransitionCrossfade:
			fmt.Fprintf(&graph, "%s%sxfade=transition=fade:duration=%s:offset=%s%s;",
				curV, nextV, formatSeconds(fade), formatSeconds(elapsed-fade), outV)
			fmt.Fprintf(&graph, "%s%sacrossfade=d=%s%s;",
				curA, nextA, formatSeconds(fade), outA)
			elapsed += segDur - fade
		case TransitionFade:
			fadedV := fmt.Sprintf("[vf%d]", i)
			fmt.Fprintf(&graph, "%sfade=t=in:st=0:d=%s%s;", nextV, formatSeconds(fade), fadedV)
			fmt.Fprintf(&graph, "%s%sconcat=n=2:v=1:a=0%s;", curV, fadedV, outV)
			fadedA := fmt.Sprintf("[af%d]", i)
			fmt.Fprintf(&graph, "%safade=t=in:st=0:d=%s%s;", nextA, formatSeconds(fade), fadedA)
			fmt.Fprintf(&graph, "%s%sconcat=n=2:v=0:a=1%s;", curA, fadedA, outA)
			elapsed += segDur
		default:
			fmt.Fprintf(&graph, "%s%sconcat=n=2:v=1:a=0%s;", curV, nextV, outV)
			fmt.Fprintf(&graph, "%s%sconcat=n=2:v=0:a=1%s;", curA, nextA, outA)
			elapsed += segDur
		}
		curV = outV
		curA = outA
	}

	filter := strings.TrimSuffix(graph.String(), ";")
	args = append(args, "-filter_complex", filter, "-map", curV, "-map", curA)

	if out.VideoCodec != "" {
		args = append(args, "-c:v", out.VideoCodec)
	}
	if out.VideoBitrate != "" {
		args = append(args, "-b:v", out.VideoBitrate)
	}
	if out.AudioCodec != "" {
		args = append(args, "-c:a", out.AudioCodec)
	}
	if out.AudioBitrate != "" {
		args = append(args, "-b:a", out.AudioBitrate)
	}
	args = append(args, out.Path)
	return args, nil
}
