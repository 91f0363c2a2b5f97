package editor

import (
	"github.com/ronaldod-hc/legendas-app/internal/media"
	"github.com/ronaldod-hc/legendas-app/internal/segment"
	"github.com/ronaldod-hc/legendas-app/internal/subtitle"
	"github.com/ronaldod-hc/legendas-app/internal/timeline"
)

type MediaInfo struct {
	Kind     media.Kind `json:"kind"`
	Name     string     `json:"name"`
	Duration float64    `json:"duration"`
	Width    int        `json:"width,omitempty"`
	Height   int        `json:"height,omitempty"`
}

// DragInfo describes a drag in progress.
type DragInfo struct {
	SegmentID int    `json:"segmentId"`
	Mode      string `json:"mode"`
}

// Snapshot is a point-in-time copy of everything a view needs to draw the
// editor.
type Snapshot struct {
	Media         *MediaInfo        `json:"media,omitempty"`
	Segments      []segment.Segment `json:"segments"`
	ActiveID      int               `json:"activeId,omitempty"`
	CurrentTime   float64           `json:"currentTime"`
	Playing       bool              `json:"playing"`
	Zoom          int               `json:"zoom"`
	ViewportWidth float64           `json:"viewportWidth"`
	RenderedWidth float64           `json:"renderedWidth"`
	ScrollLeft    float64           `json:"scrollLeft"`
	PlayheadX     float64           `json:"playheadX"`
	Markers       []float64         `json:"markers"`
	Caption       string            `json:"caption"`
	Style         subtitle.Style    `json:"style"`
	Drag          *DragInfo         `json:"drag,omitempty"`
	Busy          bool              `json:"busy"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.engine.Viewport
	snap := Snapshot{
		Segments:      segment.SortedByStart(s.segments),
		ActiveID:      s.active,
		CurrentTime:   s.player.CurrentTime(),
		Playing:       s.player.Playing(),
		Zoom:          v.Zoom,
		ViewportWidth: v.ViewportWidth,
		RenderedWidth: v.RenderedWidth(),
		ScrollLeft:    s.player.ScrollLeft(),
		PlayheadX:     s.player.PlayheadPixels(),
		Markers:       v.Markers(),
		Style:         s.style,
		Busy:          s.busy,
	}
	if seg, ok := segment.ActiveAt(s.segments, snap.CurrentTime); ok {
		snap.Caption = seg.Text
	}

	switch m := s.media.(type) {
	case media.Video:
		snap.Media = &MediaInfo{Kind: m.Kind(), Name: m.Name, Duration: m.Duration, Width: m.Width, Height: m.Height}
	case media.Audio:
		snap.Media = &MediaInfo{Kind: m.Kind(), Name: m.Name, Duration: m.Duration}
	}

	if drag, ok := s.engine.State().(timeline.Dragging); ok {
		snap.Drag = &DragInfo{SegmentID: drag.SegmentID, Mode: drag.Mode.String()}
	}
	return snap
}
