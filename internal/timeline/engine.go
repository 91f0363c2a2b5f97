package timeline

import (
	"math"

	"github.com/ronaldod-hc/legendas-app/internal/segment"
)

// HandleWidth is the grab area, in pixels, at each edge of a segment.
const HandleWidth = 3.0

type Mode int

const (
	ModeMove Mode = iota
	ModeResizeStart
	ModeResizeEnd
)

func (m Mode) String() string {
	switch m {
	case ModeMove:
		return "move"
	case ModeResizeStart:
		return "resize-start"
	case ModeResizeEnd:
		return "resize-end"
	default:
		return "unknown"
	}
}

// State is either Idle or Dragging.
type State interface {
	isState()
}

type Idle struct{}

// Dragging captures the segment boundaries at pointer-down; every move is
// computed from these, never from the previous move.
type Dragging struct {
	SegmentID     int
	Mode          Mode
	AnchorX       float64
	OriginalStart float64
	OriginalEnd   float64
}

func (Idle) isState()     {}
func (Dragging) isState() {}

// Hit is the result of a pointer landing on a segment.
type Hit struct {
	SegmentID int
	Mode      Mode
}

// Engine turns pointer events on the timeline into segment edits. Pixel
// positions are measured from the left edge of the rendered timeline, so
// callers add the scroll offset before passing them in.
type Engine struct {
	Viewport Viewport
	state    State
}

func NewEngine(v Viewport) *Engine {
	return &Engine{Viewport: v, state: Idle{}}
}

func (e *Engine) State() State {
	if e.state == nil {
		return Idle{}
	}
	return e.state
}

func (e *Engine) Dragging() bool {
	_, ok := e.State().(Dragging)
	return ok
}

// HitTest finds the segment under x and which part of it was hit.
func (e *Engine) HitTest(segments []segment.Segment, x float64) (Hit, bool) {
	for _, s := range segment.SortedByStart(segments) {
		left := e.Viewport.SecondsToPixels(s.StartTime)
		right := e.Viewport.SecondsToPixels(s.EndTime)
		if x < left || x > right {
			continue
		}
		switch {
		case x < left+HandleWidth:
			return Hit{SegmentID: s.ID, Mode: ModeResizeStart}, true
		case x > right-HandleWidth:
			return Hit{SegmentID: s.ID, Mode: ModeResizeEnd}, true
		default:
			return Hit{SegmentID: s.ID, Mode: ModeMove}, true
		}
	}
	return Hit{}, false
}

// PointerDown starts a drag on the segment under x and returns its id, which
// the caller makes the active selection. Ignored while a drag is in progress.
func (e *Engine) PointerDown(segments []segment.Segment, x float64) (int, bool) {
	if e.Dragging() {
		return 0, false
	}
	hit, ok := e.HitTest(segments, x)
	if !ok {
		return 0, false
	}
	s, _ := segment.Find(segments, hit.SegmentID)
	e.state = Dragging{
		SegmentID:     s.ID,
		Mode:          hit.Mode,
		AnchorX:       x,
		OriginalStart: s.StartTime,
		OriginalEnd:   s.EndTime,
	}
	return s.ID, true
}

// SetViewport replaces the viewport. An in-progress drag keeps its anchor at
// the same time position, so later move deltas use the new scale.
func (e *Engine) SetViewport(v Viewport) {
	if drag, ok := e.State().(Dragging); ok {
		drag.AnchorX = v.SecondsToPixels(e.Viewport.PixelsToSeconds(drag.AnchorX))
		e.state = drag
	}
	e.Viewport = v
}

// PointerMove returns the collection with the dragged segment moved to the
// candidate position. When the candidate would overlap another segment the
// input is returned untouched and committed is false.
func (e *Engine) PointerMove(segments []segment.Segment, x float64) (result []segment.Segment, committed bool) {
	drag, ok := e.State().(Dragging)
	if !ok {
		return segments, false
	}
	current, ok := segment.Find(segments, drag.SegmentID)
	if !ok {
		return segments, false
	}

	delta := e.Viewport.PixelsToSeconds(x - drag.AnchorX)
	start, end := Candidate(drag, delta, e.Viewport.Duration)

	moved := current
	moved.StartTime = start
	moved.EndTime = end
	if segment.WouldOverlapAny(moved, segment.Without(segments, drag.SegmentID)) {
		return segments, false
	}
	return segment.Replace(segments, moved), true
}

// PointerUp ends any drag; it reports whether one was in progress.
func (e *Engine) PointerUp() bool {
	wasDragging := e.Dragging()
	e.state = Idle{}
	return wasDragging
}

// Click resolves a background click into a seek time. Clicks during a drag
// or on a segment do not seek.
func (e *Engine) Click(segments []segment.Segment, x float64) (float64, bool) {
	if e.Dragging() {
		return 0, false
	}
	if _, hit := e.HitTest(segments, x); hit {
		return 0, false
	}
	return segment.Clamp(e.Viewport.PixelsToSeconds(x), e.Viewport.Duration), true
}

// Candidate computes the boundaries a drag would produce for a time delta.
func Candidate(drag Dragging, delta, duration float64) (start, end float64) {
	start, end = drag.OriginalStart, drag.OriginalEnd

	switch drag.Mode {
	case ModeMove:
		length := drag.OriginalEnd - drag.OriginalStart
		start = math.Max(0, drag.OriginalStart+delta)
		end = start + length
		if end > duration {
			end = duration
			start = duration - length
		}
	case ModeResizeStart:
		start = clampRange(drag.OriginalStart+delta, 0, drag.OriginalEnd-segment.MinDuration)
	case ModeResizeEnd:
		end = clampRange(drag.OriginalEnd+delta, drag.OriginalStart+segment.MinDuration, duration)
	}
	return start, end
}

func clampRange(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
