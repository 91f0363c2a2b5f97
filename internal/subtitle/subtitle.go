package subtitle

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ronaldod-hc/legendas-app/internal/segment"
)

// represents supported subtitle formats
type Format string

const (
	FormatSRT Format = "srt"
	FormatVTT Format = "vtt"
	FormatASS Format = "ass"
)

// interface for writing segments in a subtitle format
type Writer interface {
	Write(w io.Writer, segments []segment.Segment) error
}

func NewWriter(format Format) (Writer, error) {
	switch format {
	case FormatSRT:
		return &SRTWriter{}, nil
	case FormatVTT:
		return &VTTWriter{}, nil
	case FormatASS:
		return &ASSWriter{
			Style:  DefaultStyle(),
			Canvas: DefaultCanvas(),
		}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// ParseFormat maps a user supplied name such as "SRT" to a Format.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "srt":
		return FormatSRT, nil
	case "vtt":
		return FormatVTT, nil
	case "ass", "ssa":
		return FormatASS, nil
	default:
		return "", fmt.Errorf("unsupported format %q: use srt, vtt, or ass", name)
	}
}

// WriteFile writes segments to path, creating parent directories.
func WriteFile(writer Writer, segments []segment.Segment, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create subtitle file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	if err := writer.Write(file, segments); err != nil {
		return fmt.Errorf("failed to write subtitles: %w", err)
	}
	return file.Close()
}

// subtitle format based on file extension
func GetFormatFromExtension(path string) Format {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".srt":
		return FormatSRT
	case ".vtt":
		return FormatVTT
	case ".ass", ".ssa":
		return FormatASS
	default:
		return FormatSRT
	}
}

// file extension for a format
func GetExtensionForFormat(format Format) string {
	switch format {
	case FormatSRT:
		return ".srt"
	case FormatVTT:
		return ".vtt"
	case FormatASS:
		return ".ass"
	default:
		return ".srt"
	}
}

// splits seconds into clock fields, truncating below the millisecond
func clockParts(seconds float64) (hours, minutes, secs, millis int) {
	if seconds < 0 {
		seconds = 0
	}
	// the epsilon keeps 1.5 from printing as 1.499
	total := int64(seconds*1000 + 1e-6)
	millis = int(total % 1000)
	total /= 1000
	secs = int(total % 60)
	total /= 60
	minutes = int(total % 60)
	hours = int(total / 60)
	return hours, minutes, secs, millis
}

func formatSRTTime(seconds float64) string {
	h, m, s, ms := clockParts(seconds)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

func formatVTTTime(seconds float64) string {
	h, m, s, ms := clockParts(seconds)
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

func formatASSTime(seconds float64) string {
	h, m, s, ms := clockParts(seconds)
	return fmt.Sprintf("%d:%02d:%02d.%02d", h, m, s, ms/10)
}

// FormatClock renders a playhead time as MM:SS.mmm.
func FormatClock(seconds float64) string {
	h, m, s, ms := clockParts(seconds)
	return fmt.Sprintf("%02d:%02d.%03d", h*60+m, s, ms)
}
