package subtitle

import (
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strings"

	"github.com/ronaldod-hc/legendas-app/internal/segment"
)

var ErrInvalidStyle = errors.New("invalid subtitle style")

var hexColorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// Style is the user-facing look of burned-in captions.
type Style struct {
	Color        string  `json:"color" yaml:"color"`
	OutlineColor string  `json:"outlineColor" yaml:"outline_color"`
	OutlineWidth float64 `json:"outlineWidth" yaml:"outline_width"`
	FontSize     float64 `json:"fontSize" yaml:"font_size"`
	// vertical position of the caption centre, percent of video height
	PositionY float64 `json:"positionY" yaml:"position_y"`
}

func DefaultStyle() Style {
	return Style{
		Color:        "#FFFFFF",
		OutlineColor: "#000000",
		OutlineWidth: 2,
		FontSize:     16,
		PositionY:    85,
	}
}

func (s Style) Validate() error {
	if !hexColorPattern.MatchString(s.Color) {
		return fmt.Errorf("%w: color %q is not #RRGGBB", ErrInvalidStyle, s.Color)
	}
	if !hexColorPattern.MatchString(s.OutlineColor) {
		return fmt.Errorf("%w: outline color %q is not #RRGGBB", ErrInvalidStyle, s.OutlineColor)
	}
	if s.OutlineWidth < 0 || s.OutlineWidth > 20 {
		return fmt.Errorf("%w: outline width %v outside 0..20", ErrInvalidStyle, s.OutlineWidth)
	}
	if s.FontSize < 1 || s.FontSize > 200 {
		return fmt.Errorf("%w: font size %v outside 1..200", ErrInvalidStyle, s.FontSize)
	}
	if s.PositionY < 0 || s.PositionY > 100 {
		return fmt.Errorf("%w: vertical position %v outside 0..100", ErrInvalidStyle, s.PositionY)
	}
	return nil
}

// Canvas describes the target video and the width of the preview the style
// was chosen against.
type Canvas struct {
	VideoWidth   int
	VideoHeight  int
	PreviewWidth int
}

func DefaultCanvas() Canvas {
	return Canvas{VideoWidth: 1920, VideoHeight: 1080, PreviewWidth: 1920}
}

func (c Canvas) scale() float64 {
	if c.PreviewWidth <= 0 {
		return 1
	}
	return float64(c.VideoWidth) / float64(c.PreviewWidth)
}

// ASS (Advanced SubStation Alpha) markup used for burn-in
type ASSWriter struct {
	Style  Style
	Canvas Canvas
	// font family looked up in the fonts directory handed to ffmpeg
	FontName string
}

// HexToASSColor converts #RRGGBB to the &H00BBGGRR form.
func HexToASSColor(hex string) string {
	c := strings.TrimPrefix(hex, "#")
	if len(c) != 6 {
		return "&H00FFFFFF"
	}
	c = strings.ToUpper(c)
	return "&H00" + c[4:6] + c[2:4] + c[0:2]
}

func (w *ASSWriter) Write(out io.Writer, segments []segment.Segment) error {
	_, err := io.WriteString(out, w.Render(segments))
	return err
}

// Render builds the full script with one positioned dialogue line per segment.
func (w *ASSWriter) Render(segments []segment.Segment) string {
	canvas := w.Canvas
	if canvas.VideoWidth <= 0 || canvas.VideoHeight <= 0 {
		canvas = DefaultCanvas()
	}
	font := w.FontName
	if font == "" {
		font = "Roboto"
	}

	scale := canvas.scale()
	fontSize := roundHalfUp(w.Style.FontSize * scale * 1.15)
	outline := roundHalfUp(w.Style.OutlineWidth * scale)
	margin := roundHalfUp(float64(canvas.VideoWidth) * 0.05)
	posX := roundHalfUp(float64(canvas.VideoWidth) / 2)
	posY := roundHalfUp(float64(canvas.VideoHeight) * w.Style.PositionY / 100)

	var sb strings.Builder
	sb.WriteString("[Script Info]\n")
	sb.WriteString("Title: Subtitles\n")
	sb.WriteString("ScriptType: v4.00+\n")
	sb.WriteString("WrapStyle: 0\n")
	sb.WriteString("ScaledBorderAndShadow: yes\n")
	sb.WriteString(fmt.Sprintf("PlayResX: %d\n", canvas.VideoWidth))
	sb.WriteString(fmt.Sprintf("PlayResY: %d\n\n", canvas.VideoHeight))

	sb.WriteString("[V4+ Styles]\n")
	sb.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")
	sb.WriteString(fmt.Sprintf(
		"Style: Default,%s,%d,%s,&H000000FF,%s,&H00000000,0,0,0,0,100,100,0,0,1,%d,0,5,%d,%d,0,1\n\n",
		font, fontSize, HexToASSColor(w.Style.Color), HexToASSColor(w.Style.OutlineColor),
		outline, margin, margin,
	))

	sb.WriteString("[Events]\n")
	sb.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")

	sorted := segment.SortedByStart(segments)
	lines := make([]string, len(sorted))
	for i, seg := range sorted {
		lines[i] = fmt.Sprintf("Dialogue: 0,%s,%s,Default,,0,0,0,,{\\pos(%d,%d)}%s",
			formatASSTime(seg.StartTime),
			formatASSTime(seg.EndTime),
			posX, posY,
			escapeASSText(seg.Text),
		)
	}
	sb.WriteString(strings.Join(lines, "\n"))
	sb.WriteString("\n")

	return sb.String()
}

func escapeASSText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\n", "\\N")
}

func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}
