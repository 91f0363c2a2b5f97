package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ronaldod-hc/legendas-app/internal/logging"
	"github.com/ronaldod-hc/legendas-app/internal/media"
	"github.com/ronaldod-hc/legendas-app/internal/playback"
	"github.com/ronaldod-hc/legendas-app/internal/segment"
	"github.com/ronaldod-hc/legendas-app/internal/subtitle"
	"github.com/ronaldod-hc/legendas-app/internal/timeline"
	"github.com/ronaldod-hc/legendas-app/internal/transcribe"
	"github.com/ronaldod-hc/legendas-app/internal/video"
)

var (
	ErrNoMedia = errors.New("no media loaded")
	ErrBusy    = errors.New("another operation is in progress")
)

const (
	// width used until the host reports the real timeline width
	DefaultViewportWidth = 1000.0

	failurePrefix = "transcription failed: "
)

type Options struct {
	Style         subtitle.Style
	MaxChars      int
	ViewportWidth float64
	// fonts directory handed to ffmpeg on burn-in
	FontsDir string
	Logger   *logging.Logger
}

// Session owns one media file and its subtitle collection. All methods are
// safe for concurrent use; edits are applied one at a time.
type Session struct {
	mu sync.Mutex

	media    media.Context
	segments []segment.Segment
	ids      segment.IDAllocator
	active   int

	engine   *timeline.Engine
	player   *playback.Synchronizer
	style    subtitle.Style
	splitter *subtitle.Splitter
	fontsDir string
	busy     bool

	logger *logging.Logger
}

func NewSession(opts Options) *Session {
	style := opts.Style
	if style == (subtitle.Style{}) {
		style = subtitle.DefaultStyle()
	}
	width := opts.ViewportWidth
	if width <= 0 {
		width = DefaultViewportWidth
	}
	v := timeline.NewViewport(0, width)
	return &Session{
		engine:   timeline.NewEngine(v),
		player:   playback.NewSynchronizer(v),
		style:    style,
		splitter: subtitle.NewSplitter(opts.MaxChars),
		fontsDir: opts.FontsDir,
		logger:   logging.OrNop(opts.Logger),
	}
}

// LoadMedia replaces the current media; the collection, selection and
// playhead start over.
func (s *Session) LoadMedia(m media.Context) error {
	if m == nil {
		return ErrNoMedia
	}
	if m.MediaDuration() <= 0 {
		return fmt.Errorf("%w: %s has no duration", media.ErrUnsupportedMedia, m.DisplayName())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.media = m
	s.segments = nil
	s.active = 0
	v := timeline.NewViewport(m.MediaDuration(), s.engine.Viewport.ViewportWidth)
	s.engine = timeline.NewEngine(v)
	s.player = playback.NewSynchronizer(v)
	return nil
}

func (s *Session) Media() (media.Context, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.media, s.media != nil
}

func (s *Session) duration() float64 {
	if s.media == nil {
		return 0
	}
	return s.media.MediaDuration()
}

// Segments returns a copy of the collection in start order.
func (s *Session) Segments() []segment.Segment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return segment.SortedByStart(s.segments)
}

func (s *Session) commit(next []segment.Segment) {
	s.segments = next
	if _, ok := segment.Find(next, s.active); !ok {
		s.active = 0
	}
}

// renumber hands out fresh ids so none repeats within the session
func (s *Session) renumber(segs []segment.Segment) []segment.Segment {
	out := make([]segment.Segment, len(segs))
	for i, seg := range segs {
		seg.ID = s.ids.Next()
		out[i] = seg
	}
	return out
}

// ApplyTranscription replaces the collection with a transcription result.
// A failed transcription becomes a single full-length segment carrying the
// error text.
func (s *Session) ApplyTranscription(raw []segment.Segment, transcribeErr error) ([]segment.Segment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.media == nil {
		return nil, ErrNoMedia
	}
	s.applyTranscriptionLocked(raw, transcribeErr)
	return segment.SortedByStart(s.segments), nil
}

func (s *Session) applyTranscriptionLocked(raw []segment.Segment, transcribeErr error) {
	duration := s.duration()
	if transcribeErr != nil {
		s.commit([]segment.Segment{{
			ID:        s.ids.Next(),
			StartTime: 0,
			EndTime:   duration,
			Text:      failurePrefix + transcribeErr.Error(),
		}})
		return
	}

	segs := s.renumber(s.splitter.Process(segment.Sanitize(raw, duration)))
	if err := segment.Validate(segs, duration); err != nil {
		s.logger.Warnw("transcription has inconsistent segments", "error", err)
	}
	s.commit(segs)
}

// ImportSegments replaces the collection with segments read from a
// subtitle file. They must fit the media and must not overlap.
func (s *Session) ImportSegments(segs []segment.Segment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.media == nil {
		return ErrNoMedia
	}
	imported := s.renumber(segment.SortedByStart(segs))
	if err := segment.Validate(imported, s.duration()); err != nil {
		return fmt.Errorf("cannot import subtitles: %w", err)
	}
	s.commit(imported)
	return nil
}

// acquire marks a long operation in flight and returns the loaded media.
func (s *Session) acquire() (media.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.media == nil {
		return nil, ErrNoMedia
	}
	if s.busy {
		return nil, ErrBusy
	}
	s.busy = true
	return s.media, nil
}

func (s *Session) release() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

// Busy reports whether a transcription or media job is running.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Transcribe runs t over the loaded media and applies the result. On
// failure the sentinel segment is applied and the error returned.
func (s *Session) Transcribe(ctx context.Context, t transcribe.Transcriber) error {
	m, err := s.acquire()
	if err != nil {
		return err
	}
	defer s.release()

	s.logger.Infow("transcribing", "media", m.DisplayName())
	result, err := t.Transcribe(ctx, m.MediaPath())

	var raw []segment.Segment
	if err == nil && result != nil {
		raw = result.Segments
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.media != m {
		// media was replaced while the job ran
		return ErrNoMedia
	}
	s.applyTranscriptionLocked(raw, err)
	if err != nil {
		s.logger.Errorw("transcription failed", "media", m.DisplayName(), "error", err)
		return err
	}
	s.logger.Infow("transcription applied", "media", m.DisplayName(), "segments", len(s.segments))
	return nil
}

// AddSegment inserts a segment at the playhead or after the selection and
// selects it.
func (s *Session) AddSegment() (segment.Segment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.media == nil {
		return segment.Segment{}, false
	}
	next, added, ok := AddSegment(s.segments, s.duration(), s.player.CurrentTime(), s.active, s.ids.Peek())
	if !ok {
		return segment.Segment{}, false
	}
	s.ids.Next()
	s.commit(next)
	s.active = added.ID
	return added, true
}

func (s *Session) DeleteSegment(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, ok := DeleteSegment(s.segments, id)
	if ok {
		s.commit(next)
	}
	return ok
}

func (s *Session) ReorderByDrag(draggedID, dropOnID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, ok := ReorderByDrag(s.segments, s.duration(), draggedID, dropOnID)
	if ok {
		s.commit(next)
	}
	return ok
}

func (s *Session) UpdateText(id int, text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, ok := UpdateText(s.segments, id, text)
	if ok {
		s.commit(next)
	}
	return ok
}

func (s *Session) Select(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := segment.Find(s.segments, id); !ok {
		return false
	}
	s.active = id
	return true
}

func (s *Session) ClearSelection() {
	s.mu.Lock()
	s.active = 0
	s.mu.Unlock()
}

func (s *Session) Active() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active, s.active != 0
}

// PointerDown starts a drag and selects the segment under x. x is measured
// from the left of the rendered timeline.
func (s *Session) PointerDown(x float64) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.engine.PointerDown(s.segments, x)
	if ok {
		s.active = id
	}
	return id, ok
}

// PointerMove reports whether the drag step was committed.
func (s *Session) PointerMove(x float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, ok := s.engine.PointerMove(s.segments, x)
	if ok {
		s.commit(next)
	}
	return ok
}

func (s *Session) PointerUp() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.PointerUp()
}

// Click seeks to x when it lands on empty timeline.
func (s *Session) Click(x float64) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.engine.Click(s.segments, x)
	if ok {
		s.player.Seek(t)
	}
	return t, ok
}

func (s *Session) setViewport(v timeline.Viewport) {
	s.engine.SetViewport(v)
	s.player.SetViewport(v)
}

func (s *Session) ZoomIn() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setViewport(s.engine.Viewport.ZoomIn())
	return s.engine.Viewport.Zoom
}

func (s *Session) ZoomOut() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setViewport(s.engine.Viewport.ZoomOut())
	return s.engine.Viewport.Zoom
}

// SetZoom clamps level to the supported range and returns the applied one.
func (s *Session) SetZoom(level int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setViewport(s.engine.Viewport.SetZoom(level))
	return s.engine.Viewport.Zoom
}

func (s *Session) SetViewportWidth(width float64) {
	if width <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.engine.Viewport
	v.ViewportWidth = width
	s.setViewport(v)
}

func (s *Session) Viewport() timeline.Viewport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Viewport
}

func (s *Session) Seek(t float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.player.Seek(t)
	return s.player.CurrentTime()
}

func (s *Session) OnTimeUpdate(t float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.player.OnTimeUpdate(t)
}

// Advance moves a playing playhead by dt seconds.
func (s *Session) Advance(dt float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.player.Advance(dt)
}

// TogglePlay returns whether playback is running afterwards.
func (s *Session) TogglePlay() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.media == nil {
		return false
	}
	return s.player.Toggle()
}

func (s *Session) CurrentTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.player.CurrentTime()
}

func (s *Session) Style() subtitle.Style {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.style
}

func (s *Session) SetStyle(style subtitle.Style) error {
	if err := style.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.style = style
	s.mu.Unlock()
	return nil
}

func (s *Session) ExportSRT() string {
	return subtitle.RenderSRT(s.Segments())
}

func (s *Session) ExportVTT() string {
	return subtitle.RenderVTT(s.Segments())
}

// ExportASS renders burn-in markup for the loaded video. previewWidth is the
// width the style was previewed at; zero means the video's own width.
func (s *Session) ExportASS(previewWidth int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assLocked(previewWidth)
}

func (s *Session) assLocked(previewWidth int) (string, error) {
	v, ok := s.media.(media.Video)
	if !ok {
		if s.media == nil {
			return "", ErrNoMedia
		}
		return "", fmt.Errorf("%w: burn-in needs a video", media.ErrUnsupportedMedia)
	}
	canvas := subtitle.Canvas{VideoWidth: v.Width, VideoHeight: v.Height, PreviewWidth: previewWidth}
	if canvas.VideoWidth <= 0 || canvas.VideoHeight <= 0 {
		canvas.VideoWidth, canvas.VideoHeight = subtitle.DefaultCanvas().VideoWidth, subtitle.DefaultCanvas().VideoHeight
	}
	if canvas.PreviewWidth <= 0 {
		canvas.PreviewWidth = canvas.VideoWidth
	}
	w := &subtitle.ASSWriter{Style: s.style, Canvas: canvas}
	return w.Render(s.segments), nil
}

// BurnIn renders the current subtitles into input, the bytes of the loaded
// video.
func (s *Session) BurnIn(ctx context.Context, p video.Processor, input []byte, previewWidth int) ([]byte, error) {
	s.mu.Lock()
	markup, err := s.assLocked(previewWidth)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	m, err := s.acquire()
	if err != nil {
		return nil, err
	}
	defer s.release()

	s.logger.Infow("burning subtitles", "media", m.DisplayName(), "bytes", len(input))
	out, err := p.Process(ctx, input, video.BurnSubtitles{Markup: markup, FontsDir: s.fontsDir})
	if err != nil {
		s.logger.Errorw("burn-in failed", "media", m.DisplayName(), "error", err)
		return nil, err
	}
	return out, nil
}

// ExtractAudio pulls an mp3 track out of input.
func (s *Session) ExtractAudio(ctx context.Context, p video.Processor, input []byte) ([]byte, error) {
	m, err := s.acquire()
	if err != nil {
		return nil, err
	}
	defer s.release()

	s.logger.Infow("extracting audio", "media", m.DisplayName(), "bytes", len(input))
	out, err := p.Process(ctx, input, video.ExtractAudio{})
	if err != nil {
		s.logger.Errorw("audio extraction failed", "media", m.DisplayName(), "error", err)
		return nil, err
	}
	return out, nil
}

// FullText joins every caption in display order.
func (s *Session) FullText() string {
	return segment.FullText(s.Segments())
}

// CurrentCaption is the text shown at the playhead, empty between segments.
func (s *Session) CurrentCaption() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	seg, ok := segment.ActiveAt(s.segments, s.player.CurrentTime())
	if !ok {
		return ""
	}
	return seg.Text
}
