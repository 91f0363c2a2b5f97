package playback

import (
	"github.com/ronaldod-hc/legendas-app/internal/segment"
	"github.com/ronaldod-hc/legendas-app/internal/timeline"
)

// Synchronizer owns the playhead: current time, play state and the
// timeline scroll offset that follows it.
type Synchronizer struct {
	viewport    timeline.Viewport
	currentTime float64
	playing     bool
	scrollLeft  float64
}

func NewSynchronizer(v timeline.Viewport) *Synchronizer {
	return &Synchronizer{viewport: v}
}

func (s *Synchronizer) CurrentTime() float64 { return s.currentTime }
func (s *Synchronizer) Playing() bool        { return s.playing }
func (s *Synchronizer) ScrollLeft() float64  { return s.scrollLeft }
func (s *Synchronizer) Viewport() timeline.Viewport {
	return s.viewport
}

// SetViewport applies a zoom or size change and re-derives the scroll offset.
func (s *Synchronizer) SetViewport(v timeline.Viewport) {
	s.viewport = v
	if s.currentTime > v.Duration {
		s.currentTime = segment.Clamp(s.currentTime, v.Duration)
	}
	s.rescroll()
}

// Seek jumps to t clamped to the media duration.
func (s *Synchronizer) Seek(t float64) {
	s.currentTime = segment.Clamp(t, s.viewport.Duration)
	s.rescroll()
}

// OnTimeUpdate mirrors a time report from the media element.
func (s *Synchronizer) OnTimeUpdate(t float64) {
	s.Seek(t)
}

// Advance moves a playing playhead forward by dt seconds and pauses at the
// end of the media. It returns the new time.
func (s *Synchronizer) Advance(dt float64) float64 {
	if !s.playing || dt <= 0 {
		return s.currentTime
	}
	next := s.currentTime + dt
	if next >= s.viewport.Duration {
		next = s.viewport.Duration
		s.playing = false
	}
	s.currentTime = next
	s.rescroll()
	return next
}

func (s *Synchronizer) Play() {
	if s.viewport.Duration <= 0 {
		return
	}
	// restart from the top once the end was reached
	if s.currentTime >= s.viewport.Duration {
		s.currentTime = 0
	}
	s.playing = true
	s.rescroll()
}

func (s *Synchronizer) Pause() {
	s.playing = false
}

func (s *Synchronizer) Toggle() bool {
	if s.playing {
		s.Pause()
	} else {
		s.Play()
	}
	return s.playing
}

func (s *Synchronizer) PlayheadPixels() float64 {
	return s.viewport.SecondsToPixels(s.currentTime)
}

func (s *Synchronizer) rescroll() {
	s.scrollLeft = timeline.AutoScroll(
		s.scrollLeft,
		s.viewport.ViewportWidth,
		s.PlayheadPixels(),
		s.viewport.Zoom,
		s.playing,
	)
}
