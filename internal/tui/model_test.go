package tui

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ronaldod-hc/legendas-app/internal/editor"
	"github.com/ronaldod-hc/legendas-app/internal/media"
	"github.com/ronaldod-hc/legendas-app/internal/segment"
	"github.com/ronaldod-hc/legendas-app/internal/transcribe"
)

type stubTranscriber struct {
	err error
}

func (s stubTranscriber) Transcribe(context.Context, string) (*transcribe.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &transcribe.Result{Segments: []segment.Segment{
		{ID: 1, StartTime: 1, EndTime: 4, Text: "Bom dia"},
		{ID: 2, StartTime: 5, EndTime: 7, Text: "Tudo bem?"},
	}}, nil
}

// 600 columns over 60 seconds: 10 cells per second
func newModel(t *testing.T, opts Options) Model {
	t.Helper()
	session := editor.NewSession(editor.Options{})
	err := session.LoadMedia(media.Video{Path: "clip.mp4", Name: "clip.mp4", Duration: 60, Width: 1280, Height: 720})
	if err != nil {
		t.Fatalf("LoadMedia() error: %v", err)
	}
	m := New(context.Background(), session, opts)
	return update(t, m, tea.WindowSizeMsg{Width: 600, Height: 30})
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func key(s string) tea.KeyMsg {
	switch s {
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestModel_AddAndDelete(t *testing.T) {
	m := newModel(t, Options{})

	m = update(t, m, key("l"))
	m = update(t, m, key("a"))
	segs := m.session.Segments()
	if len(segs) != 1 || segs[0].StartTime != 1 || segs[0].EndTime != 4 {
		t.Fatalf("segments after add = %+v", segs)
	}
	if id, ok := m.session.Active(); !ok || id != segs[0].ID {
		t.Errorf("active = %d, %v", id, ok)
	}

	m = update(t, m, key("d"))
	if len(m.session.Segments()) != 0 {
		t.Errorf("segments after delete = %+v", m.session.Segments())
	}
	m = update(t, m, key("d"))
	if m.Status() != "nothing selected" {
		t.Errorf("status = %q", m.Status())
	}
}

func TestModel_PlaybackAndZoom(t *testing.T) {
	m := newModel(t, Options{})

	m = update(t, m, key(" "))
	m = update(t, m, tickMsg{})
	if got := m.session.CurrentTime(); !near(got, tickInterval.Seconds()) {
		t.Errorf("time after tick = %v, want %v", got, tickInterval.Seconds())
	}
	m = update(t, m, key(" "))
	m = update(t, m, tickMsg{})
	if got := m.session.CurrentTime(); !near(got, tickInterval.Seconds()) {
		t.Errorf("paused playhead moved to %v", got)
	}

	m = update(t, m, key("+"))
	m = update(t, m, key("+"))
	m = update(t, m, key("-"))
	if z := m.session.Viewport().Zoom; z != 2 {
		t.Errorf("zoom = %d, want 2", z)
	}
}

func TestModel_MouseDragAndClick(t *testing.T) {
	m := newModel(t, Options{})
	m.session.Seek(10)
	m = update(t, m, key("a")) // 10..13, cells 100..129

	m = update(t, m, tea.MouseMsg{X: 114, Y: timelineRow, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	m = update(t, m, tea.MouseMsg{X: 124, Y: timelineRow, Action: tea.MouseActionMotion})
	m = update(t, m, tea.MouseMsg{X: 134, Y: timelineRow, Action: tea.MouseActionRelease})

	seg := m.session.Segments()[0]
	if !near(seg.StartTime, 12) || !near(seg.EndTime, 15) {
		t.Errorf("dragged segment = [%v, %v], want [12, 15]", seg.StartTime, seg.EndTime)
	}
	if m.session.Snapshot().Drag != nil {
		t.Error("drag still in progress after release")
	}

	m = update(t, m, tea.MouseMsg{X: 300, Y: timelineRow, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	if got := m.session.CurrentTime(); !near(got, 30.05) {
		t.Errorf("time after click = %v, want 30.05", got)
	}

	// presses off the timeline row are ignored
	m = update(t, m, tea.MouseMsg{X: 500, Y: 0, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	if got := m.session.CurrentTime(); !near(got, 30.05) {
		t.Errorf("time moved to %v by a press outside the timeline", got)
	}
}

func TestModel_EditText(t *testing.T) {
	m := newModel(t, Options{})

	m = update(t, m, key("e"))
	if m.editing {
		t.Fatal("editing started without a selection")
	}

	m = update(t, m, key("a"))
	m = update(t, m, key("e"))
	if !m.editing {
		t.Fatal("editing did not start")
	}
	m = update(t, m, key("!"))
	m = update(t, m, key("enter"))

	if m.editing {
		t.Error("still editing after enter")
	}
	if got := m.session.Segments()[0].Text; got != editor.NewSegmentText+"!" {
		t.Errorf("text = %q", got)
	}

	m = update(t, m, key("e"))
	m = update(t, m, key("?"))
	m = update(t, m, key("esc"))
	if got := m.session.Segments()[0].Text; got != editor.NewSegmentText+"!" {
		t.Errorf("cancelled edit changed text to %q", got)
	}
}

func TestModel_SelectRelative(t *testing.T) {
	m := newModel(t, Options{})
	if _, err := m.session.ApplyTranscription([]segment.Segment{
		{StartTime: 1, EndTime: 2, Text: "one"},
		{StartTime: 3, EndTime: 4, Text: "two"},
	}, nil); err != nil {
		t.Fatal(err)
	}
	segs := m.session.Segments()

	m = update(t, m, key("tab"))
	if id, _ := m.session.Active(); id != segs[0].ID || m.session.CurrentTime() != 1 {
		t.Errorf("first tab: active %d at %v", id, m.session.CurrentTime())
	}
	m = update(t, m, key("tab"))
	m = update(t, m, key("tab"))
	if id, _ := m.session.Active(); id != segs[0].ID {
		t.Errorf("tab did not wrap around, active %d", id)
	}
}

func runTranscription(t *testing.T, m Model) Model {
	t.Helper()
	next, cmd := m.Update(key("t"))
	m = next.(Model)
	if cmd == nil {
		t.Fatal("no command returned")
	}
	batch, ok := cmd().(tea.BatchMsg)
	if !ok {
		t.Fatal("expected a batch of spinner and transcription")
	}
	for _, c := range batch {
		if c == nil {
			continue
		}
		if msg, ok := c().(transcribedMsg); ok {
			m = update(t, m, msg)
		}
	}
	return m
}

func TestModel_Transcribe(t *testing.T) {
	m := newModel(t, Options{})
	m = update(t, m, key("t"))
	if m.Status() != "no transcriber configured" {
		t.Errorf("status = %q", m.Status())
	}

	m = runTranscription(t, newModel(t, Options{Transcriber: stubTranscriber{}}))
	if m.Status() != "transcribed 2 segments" {
		t.Errorf("status = %q", m.Status())
	}

	m = runTranscription(t, newModel(t, Options{Transcriber: stubTranscriber{err: errors.New("quota")}}))
	segs := m.session.Segments()
	if len(segs) != 1 || !strings.HasSuffix(segs[0].Text, "quota") {
		t.Errorf("segments after failure = %+v", segs)
	}
	if m.session.Busy() {
		t.Error("session still busy")
	}
}

func TestModel_Save(t *testing.T) {
	out := filepath.Join(t.TempDir(), "clip.srt")
	m := newModel(t, Options{OutputPath: out})
	m = update(t, m, key("a"))
	m = update(t, m, key("s"))

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	want := "1\n00:00:00,000 --> 00:00:03,000\n" + editor.NewSegmentText
	if string(data) != want {
		t.Errorf("saved %q, want %q", data, want)
	}
}

func TestModel_Quit(t *testing.T) {
	m := newModel(t, Options{})
	next, cmd := m.Update(key("q"))
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
	if next.(Model).View() != "" {
		t.Error("view not empty after quit")
	}
}

func TestStripCells(t *testing.T) {
	m := newModel(t, Options{})
	m.session.Seek(10)
	m = update(t, m, key("a"))
	m.session.Seek(0)

	cells := stripCells(m.session.Snapshot(), 600)
	tests := []struct {
		col  int
		want cell
	}{
		{0, cellPlayhead},
		{1, cellTrack},
		{99, cellTrack},
		{100, cellActive},
		{129, cellActive},
		{130, cellTrack},
	}
	for _, tt := range tests {
		if got := cells[tt.col]; got != tt.want {
			t.Errorf("cell %d = %v, want %v", tt.col, got, tt.want)
		}
	}

	m.session.ClearSelection()
	if got := stripCells(m.session.Snapshot(), 600)[110]; got != cellSegment {
		t.Errorf("unselected segment cell = %v, want %v", got, cellSegment)
	}
}

func TestView(t *testing.T) {
	m := newModel(t, Options{})
	view := m.View()
	for _, want := range []string{"clip.mp4", "00:00.000 / 01:00.000", "zoom 1x", "(no caption)", "|0:10"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}

	m = update(t, m, key("a"))
	view = m.View()
	if !strings.Contains(view, editor.NewSegmentText) || !strings.Contains(view, "#1  00:00.000 → 00:03.000") {
		t.Errorf("view after add:\n%s", view)
	}
	if lines := strings.Split(view, "\n"); !strings.Contains(lines[timelineRow], "█") {
		t.Errorf("timeline row %d = %q", timelineRow, lines[timelineRow])
	}
}
