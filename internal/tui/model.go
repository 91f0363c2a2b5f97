package tui

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ronaldod-hc/legendas-app/internal/editor"
	"github.com/ronaldod-hc/legendas-app/internal/segment"
	"github.com/ronaldod-hc/legendas-app/internal/transcribe"
)

const (
	tickInterval = 100 * time.Millisecond
	seekStep     = 1.0
	// screen row of the timeline strip; header and a blank line sit above it
	timelineRow = 2
)

type tickMsg time.Time

type transcribedMsg struct {
	err error
}

// Options configures the editor model.
type Options struct {
	// transcriber for the "t" key; nil disables it
	Transcriber transcribe.Transcriber
	// where "s" writes the SRT export
	OutputPath string
}

// Model is the bubbletea model of the timeline editor. It draws a session
// and turns keys and mouse events into session operations.
type Model struct {
	ctx         context.Context
	session     *editor.Session
	transcriber transcribe.Transcriber
	outputPath  string

	spinner spinner.Model
	input   textinput.Model
	editing bool

	width    int
	status   string
	quitting bool
}

func New(ctx context.Context, session *editor.Session, opts Options) Model {
	s := spinner.New(spinner.WithSpinner(spinner.Dot))
	s.Style = busyStyle

	in := textinput.New()
	in.Prompt = "text: "
	in.CharLimit = 500

	return Model{
		ctx:         ctx,
		session:     session,
		transcriber: opts.Transcriber,
		outputPath:  opts.OutputPath,
		spinner:     s,
		input:       in,
		status:      "space play · a add · d delete · tab select · e edit · t transcribe · s save · q quit",
	}
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return tick()
}

// Status is the last message shown in the footer.
func (m Model) Status() string {
	return m.status
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		if msg.Width > 0 {
			m.session.SetViewportWidth(float64(msg.Width))
		}
		return m, nil

	case tickMsg:
		m.session.Advance(tickInterval.Seconds())
		return m, tick()

	case spinner.TickMsg:
		if !m.session.Busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case transcribedMsg:
		if msg.err != nil {
			m.status = "transcription failed: " + msg.err.Error()
		} else {
			m.status = fmt.Sprintf("transcribed %d segments", len(m.session.Segments()))
		}
		return m, nil

	case tea.MouseMsg:
		if m.editing {
			return m, nil
		}
		return m.handleMouse(msg), nil

	case tea.KeyMsg:
		if m.editing {
			return m.updateEditing(msg)
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case " ":
		if m.session.TogglePlay() {
			m.status = "playing"
		} else {
			m.status = "paused"
		}
	case "left", "h":
		m.session.Seek(m.session.CurrentTime() - seekStep)
	case "right", "l":
		m.session.Seek(m.session.CurrentTime() + seekStep)
	case "home":
		m.session.Seek(0)
	case "+", "=":
		m.status = fmt.Sprintf("zoom %dx", m.session.ZoomIn())
	case "-":
		m.status = fmt.Sprintf("zoom %dx", m.session.ZoomOut())
	case "a":
		if seg, ok := m.session.AddSegment(); ok {
			m.status = fmt.Sprintf("added segment %d", seg.ID)
		} else {
			m.status = "no room for a new segment here"
		}
	case "d", "delete":
		id, ok := m.session.Active()
		if !ok {
			m.status = "nothing selected"
			break
		}
		m.session.DeleteSegment(id)
		m.status = fmt.Sprintf("deleted segment %d", id)
	case "tab":
		m.selectRelative(1)
	case "shift+tab":
		m.selectRelative(-1)
	case "esc":
		m.session.ClearSelection()
	case "e", "enter":
		return m.startEditing()
	case "t":
		return m.startTranscription()
	case "s":
		m.save()
	}
	return m, nil
}

// selectRelative moves the selection along the segments in start order and
// seeks to the newly selected one.
func (m *Model) selectRelative(step int) {
	segs := m.session.Segments()
	if len(segs) == 0 {
		return
	}
	idx := -1
	if id, ok := m.session.Active(); ok {
		for i, s := range segs {
			if s.ID == id {
				idx = i
				break
			}
		}
	}
	switch {
	case idx < 0 && step < 0:
		idx = len(segs) - 1
	case idx < 0:
		idx = 0
	default:
		idx = (idx + step + len(segs)) % len(segs)
	}
	m.session.Select(segs[idx].ID)
	m.session.Seek(segs[idx].StartTime)
}

func (m Model) startEditing() (tea.Model, tea.Cmd) {
	id, ok := m.session.Active()
	if !ok {
		m.status = "select a segment to edit"
		return m, nil
	}
	seg, _ := segment.Find(m.session.Segments(), id)
	m.editing = true
	m.input.SetValue(seg.Text)
	m.input.CursorEnd()
	return m, m.input.Focus()
}

func (m Model) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		if id, ok := m.session.Active(); ok && m.session.UpdateText(id, m.input.Value()) {
			m.status = fmt.Sprintf("updated segment %d", id)
		}
		m.editing = false
		m.input.Blur()
		return m, nil
	case tea.KeyEsc:
		m.editing = false
		m.input.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) startTranscription() (tea.Model, tea.Cmd) {
	if m.transcriber == nil {
		m.status = "no transcriber configured"
		return m, nil
	}
	if m.session.Busy() {
		return m, nil
	}
	m.status = "transcribing"

	ctx, session, tr := m.ctx, m.session, m.transcriber
	run := func() tea.Msg {
		return transcribedMsg{err: session.Transcribe(ctx, tr)}
	}
	return m, tea.Batch(m.spinner.Tick, run)
}

func (m *Model) save() {
	if m.outputPath == "" {
		m.status = "no output path"
		return
	}
	if err := os.WriteFile(m.outputPath, []byte(m.session.ExportSRT()), 0o644); err != nil {
		m.status = "save failed: " + err.Error()
		return
	}
	m.status = "saved " + m.outputPath
}

// handleMouse maps terminal cells on the timeline row to timeline pixels,
// one cell per pixel.
func (m Model) handleMouse(msg tea.MouseMsg) Model {
	px := m.session.Snapshot().ScrollLeft + float64(msg.X) + 0.5

	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft || msg.Y != timelineRow {
			return m
		}
		if _, ok := m.session.PointerDown(px); ok {
			return m
		}
		if t, ok := m.session.Click(px); ok {
			m.status = "seek " + clock(t)
		}
	case tea.MouseActionMotion:
		m.session.PointerMove(px)
	case tea.MouseActionRelease:
		m.session.PointerMove(px)
		m.session.PointerUp()
	}
	return m
}
