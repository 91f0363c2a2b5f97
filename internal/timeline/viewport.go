package timeline

import "math"

const (
	MinZoom = 1
	MaxZoom = 20
)

// Viewport maps the media duration onto a horizontal pixel axis. At zoom 1
// the whole duration fits in ViewportWidth; zoom n renders n times wider.
type Viewport struct {
	Duration      float64
	ViewportWidth float64
	Zoom          int
}

func NewViewport(duration, width float64) Viewport {
	return Viewport{Duration: duration, ViewportWidth: width, Zoom: MinZoom}
}

func (v Viewport) zoom() int {
	if v.Zoom < MinZoom {
		return MinZoom
	}
	if v.Zoom > MaxZoom {
		return MaxZoom
	}
	return v.Zoom
}

func (v Viewport) RenderedWidth() float64 {
	return v.ViewportWidth * float64(v.zoom())
}

func (v Viewport) PixelsToSeconds(px float64) float64 {
	width := v.RenderedWidth()
	if width <= 0 || v.Duration <= 0 {
		return 0
	}
	return px / width * v.Duration
}

func (v Viewport) SecondsToPixels(t float64) float64 {
	width := v.RenderedWidth()
	if width <= 0 || v.Duration <= 0 {
		return 0
	}
	return t / v.Duration * width
}

func (v Viewport) PixelsPerSecond() float64 {
	if v.Duration <= 0 {
		return 0
	}
	return v.RenderedWidth() / v.Duration
}

// SetZoom returns a copy with the level clamped to [MinZoom, MaxZoom].
func (v Viewport) SetZoom(level int) Viewport {
	v.Zoom = level
	v.Zoom = v.zoom()
	return v
}

func (v Viewport) ZoomIn() Viewport {
	return v.SetZoom(v.zoom() + 1)
}

func (v Viewport) ZoomOut() Viewport {
	return v.SetZoom(v.zoom() - 1)
}

// MarkerInterval picks the gridline spacing in seconds for the current density.
func (v Viewport) MarkerInterval() float64 {
	pps := v.PixelsPerSecond()
	switch {
	case pps < 0.5:
		return 60
	case pps < 2:
		return 30
	case pps < 10:
		return 10
	case pps < 40:
		return 5
	default:
		return 1
	}
}

// Markers lists gridline times strictly inside the media duration.
func (v Viewport) Markers() []float64 {
	if v.Duration <= 0 {
		return nil
	}
	interval := v.MarkerInterval()
	var out []float64
	for t := interval; t < v.Duration; t += interval {
		out = append(out, t)
	}
	return out
}

// AutoScroll returns the scroll offset that keeps the playhead visible.
// At zoom 1 the offset is always 0. While playing, a playhead within 10% of
// either viewport edge is re-centred.
func AutoScroll(scrollLeft, viewportWidth, playheadPx float64, zoom int, playing bool) float64 {
	if zoom <= MinZoom || viewportWidth <= 0 {
		return 0
	}

	maxScroll := viewportWidth*float64(zoom) - viewportWidth
	clampScroll := func(s float64) float64 {
		return math.Max(0, math.Min(s, maxScroll))
	}

	if !playing {
		return clampScroll(scrollLeft)
	}

	buffer := viewportWidth * 0.1
	if playheadPx > scrollLeft+viewportWidth-buffer || playheadPx < scrollLeft+buffer {
		return clampScroll(playheadPx - viewportWidth*0.5)
	}
	return clampScroll(scrollLeft)
}
