package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ronaldod-hc/legendas-app/internal/editor"
	"github.com/ronaldod-hc/legendas-app/internal/subtitle"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	trackStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	segmentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	activeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	playStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	captionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230"))
	busyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true)
)

type cell int

const (
	cellTrack cell = iota
	cellSegment
	cellActive
	cellPlayhead
)

var cellGlyph = map[cell]string{
	cellTrack:    "─",
	cellSegment:  "▓",
	cellActive:   "█",
	cellPlayhead: "┃",
}

var cellStyle = map[cell]lipgloss.Style{
	cellTrack:    trackStyle,
	cellSegment:  segmentStyle,
	cellActive:   activeStyle,
	cellPlayhead: playStyle,
}

func clock(t float64) string {
	return subtitle.FormatClock(t)
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	snap := m.session.Snapshot()
	if snap.Media == nil {
		return dimStyle.Render("no media loaded") + "\n"
	}

	width := m.width
	if width <= 0 {
		width = int(snap.ViewportWidth)
	}

	var sb strings.Builder

	header := titleStyle.Render(snap.Media.Name) +
		fmt.Sprintf("  %s / %s  zoom %dx", clock(snap.CurrentTime), clock(snap.Media.Duration), snap.Zoom)
	if snap.Busy {
		header += "  " + m.spinner.View() + " working"
	}
	sb.WriteString(header)
	sb.WriteString("\n\n")

	sb.WriteString(renderStrip(snap, width))
	sb.WriteString("\n")
	sb.WriteString(dimStyle.Render(renderMarkers(snap, width)))
	sb.WriteString("\n\n")

	if snap.Caption != "" {
		sb.WriteString(captionStyle.Render(snap.Caption))
	} else {
		sb.WriteString(dimStyle.Render("(no caption)"))
	}
	sb.WriteString("\n")

	for _, seg := range snap.Segments {
		if seg.ID != snap.ActiveID {
			continue
		}
		sb.WriteString(fmt.Sprintf("#%d  %s → %s  %s\n",
			seg.ID, clock(seg.StartTime), clock(seg.EndTime), seg.Text))
	}
	if m.editing {
		sb.WriteString(m.input.View())
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(statusStyle.Render(m.status))
	sb.WriteString("\n")
	return sb.String()
}

// stripCells classifies each visible column of the timeline.
func stripCells(snap editor.Snapshot, width int) []cell {
	cells := make([]cell, width)
	if snap.Media == nil || snap.RenderedWidth <= 0 {
		return cells
	}
	duration := snap.Media.Duration

	for col := range cells {
		t := (snap.ScrollLeft + float64(col) + 0.5) / snap.RenderedWidth * duration
		for _, seg := range snap.Segments {
			if t >= seg.StartTime && t < seg.EndTime {
				cells[col] = cellSegment
				if seg.ID == snap.ActiveID {
					cells[col] = cellActive
				}
				break
			}
		}
	}

	if col := int(math.Floor(snap.PlayheadX - snap.ScrollLeft)); col >= 0 && col <= width {
		cells[min(col, width-1)] = cellPlayhead
	}
	return cells
}

// renderStrip draws the cells, styling runs of equal cells together.
func renderStrip(snap editor.Snapshot, width int) string {
	cells := stripCells(snap, width)

	var sb strings.Builder
	for i := 0; i < len(cells); {
		j := i
		for j < len(cells) && cells[j] == cells[i] {
			j++
		}
		sb.WriteString(cellStyle[cells[i]].Render(strings.Repeat(cellGlyph[cells[i]], j-i)))
		i = j
	}
	return sb.String()
}

func markerLabel(t float64) string {
	total := int(math.Round(t))
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// renderMarkers places gridline labels under the strip, skipping any that
// would collide with the previous one.
func renderMarkers(snap editor.Snapshot, width int) string {
	row := []rune(strings.Repeat(" ", width))
	if snap.Media == nil || snap.Media.Duration <= 0 {
		return string(row)
	}

	next := 0
	for _, t := range snap.Markers {
		col := int(math.Floor(t/snap.Media.Duration*snap.RenderedWidth - snap.ScrollLeft))
		label := []rune("|" + markerLabel(t))
		if col < next || col < 0 || col+len(label) > width {
			continue
		}
		copy(row[col:], label)
		next = col + len(label) + 1
	}
	return string(row)
}
