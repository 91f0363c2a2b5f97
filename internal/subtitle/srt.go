package subtitle

import (
	"fmt"
	"io"
	"strings"

	"github.com/ronaldod-hc/legendas-app/internal/segment"
)

// SubRip format
type SRTWriter struct{}

// WebVTT format
type VTTWriter struct{}

// RenderSRT renders segments in start order; entries are separated by a
// blank line with no trailing separator.
func RenderSRT(segments []segment.Segment) string {
	sorted := segment.SortedByStart(segments)
	blocks := make([]string, len(sorted))
	for i, seg := range sorted {
		blocks[i] = fmt.Sprintf("%d\n%s --> %s\n%s",
			i+1,
			formatSRTTime(seg.StartTime),
			formatSRTTime(seg.EndTime),
			seg.Text,
		)
	}
	return strings.Join(blocks, "\n\n")
}

func RenderVTT(segments []segment.Segment) string {
	var sb strings.Builder
	sb.WriteString("WEBVTT\n\n")

	for i, seg := range segment.SortedByStart(segments) {
		// optional cue identifier
		sb.WriteString(fmt.Sprintf("%d\n", i+1))
		sb.WriteString(fmt.Sprintf("%s --> %s\n",
			formatVTTTime(seg.StartTime),
			formatVTTTime(seg.EndTime)))
		sb.WriteString(seg.Text)
		sb.WriteString("\n\n")
	}

	return sb.String()
}

func (w *SRTWriter) Write(out io.Writer, segments []segment.Segment) error {
	_, err := io.WriteString(out, RenderSRT(segments))
	return err
}

func (w *VTTWriter) Write(out io.Writer, segments []segment.Segment) error {
	_, err := io.WriteString(out, RenderVTT(segments))
	return err
}
