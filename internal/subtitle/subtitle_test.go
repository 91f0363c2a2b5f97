package subtitle

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
	"github.com/ronaldod-hc/legendas-app/internal/segment"
)

func TestRenderSRT(t *testing.T) {
	got := RenderSRT([]segment.Segment{
		{ID: 7, StartTime: 1.5, EndTime: 3.25, Text: "Hello"},
	})
	want := "1\n00:00:01,500 --> 00:00:03,250\nHello"
	if got != want {
		t.Errorf("RenderSRT() = %q, want %q", got, want)
	}
}

func TestRenderSRTSortsAndSeparates(t *testing.T) {
	got := RenderSRT([]segment.Segment{
		{ID: 2, StartTime: 3661.2, EndTime: 3662, Text: "second"},
		{ID: 1, StartTime: 0, EndTime: 2.01, Text: "first"},
	})
	want := "1\n00:00:00,000 --> 00:00:02,010\nfirst\n\n" +
		"2\n01:01:01,200 --> 01:01:02,000\nsecond"
	if got != want {
		t.Errorf("RenderSRT() mismatch:\n got %q\nwant %q", got, want)
	}
}

func TestRenderVTT(t *testing.T) {
	got := RenderVTT([]segment.Segment{
		{ID: 1, StartTime: 1.5, EndTime: 3.25, Text: "Hello"},
	})
	want := "WEBVTT\n\n1\n00:00:01.500 --> 00:00:03.250\nHello\n\n"
	if got != want {
		t.Errorf("RenderVTT() = %q, want %q", got, want)
	}
}

func TestFormatClock(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00.000"},
		{5.25, "00:05.250"},
		{61.001, "01:01.001"},
		{3600, "60:00.000"},
	}

	for _, tt := range tests {
		if got := FormatClock(tt.seconds); got != tt.want {
			t.Errorf("FormatClock(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestHexToASSColor(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"#FFFFFF", "&H00FFFFFF"},
		{"#000000", "&H00000000"},
		{"#FF8800", "&H000088FF"},
		{"#12ab34", "&H0034AB12"},
	}

	for _, tt := range tests {
		if got := HexToASSColor(tt.in); got != tt.want {
			t.Errorf("HexToASSColor(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestASSRenderScalesToVideo(t *testing.T) {
	w := &ASSWriter{
		Style:  DefaultStyle(),
		Canvas: Canvas{VideoWidth: 1920, VideoHeight: 1080, PreviewWidth: 960},
	}

	got := w.Render([]segment.Segment{
		{ID: 2, StartTime: 4, EndTime: 5, Text: "later"},
		{ID: 1, StartTime: 1.5, EndTime: 3.25, Text: "two\nlines"},
	})

	wantLines := []string{
		"PlayResX: 1920",
		"PlayResY: 1080",
		"Style: Default,Roboto,37,&H00FFFFFF,&H000000FF,&H00000000,&H00000000,0,0,0,0,100,100,0,0,1,4,0,5,96,96,0,1",
		"Dialogue: 0,0:00:01.50,0:00:03.25,Default,,0,0,0,,{\\pos(960,918)}two\\Nlines",
		"Dialogue: 0,0:00:04.00,0:00:05.00,Default,,0,0,0,,{\\pos(960,918)}later",
	}
	for _, line := range wantLines {
		if !strings.Contains(got, line+"\n") {
			t.Errorf("markup missing line %q\n%s", line, got)
		}
	}

	if strings.Index(got, "two") > strings.Index(got, "later") {
		t.Error("dialogue lines are not in start order")
	}
}

func TestStyleValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Style)
		wantErr bool
	}{
		{"default", func(s *Style) {}, false},
		{"bad color", func(s *Style) { s.Color = "white" }, true},
		{"short outline color", func(s *Style) { s.OutlineColor = "#000" }, true},
		{"font too large", func(s *Style) { s.FontSize = 500 }, true},
		{"position below frame", func(s *Style) { s.PositionY = 101 }, true},
		{"negative outline", func(s *Style) { s.OutlineWidth = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			style := DefaultStyle()
			tt.mutate(&style)
			err := style.Validate()
			if tt.wantErr && !errors.Is(err, ErrInvalidStyle) {
				t.Errorf("Validate() error = %v, want ErrInvalidStyle", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Validate() unexpected error: %v", err)
			}
		})
	}
}

func TestSplitterKeepsShortSegments(t *testing.T) {
	raw := []segment.Segment{
		{ID: 40, StartTime: 5, EndTime: 6, Text: "later"},
		{ID: 41, StartTime: 0, EndTime: 2, Text: "earlier"},
		{ID: 42, StartTime: 3, EndTime: 3, Text: strings.Repeat("x ", 60)},
		{ID: 43, StartTime: 7, EndTime: 8, Text: ""},
	}

	got := NewSplitter(DefaultMaxChars).Process(raw)
	want := []segment.Segment{
		{ID: 1, StartTime: 5, EndTime: 6, Text: "later"},
		{ID: 2, StartTime: 0, EndTime: 2, Text: "earlier"},
		{ID: 3, StartTime: 3, EndTime: 3, Text: strings.Repeat("x ", 60)},
		{ID: 4, StartTime: 7, EndTime: 8, Text: ""},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Process() mismatch (-want +got):\n%s", diff)
	}
}

func TestSplitterProportionalChunks(t *testing.T) {
	text := strings.TrimSpace(strings.Repeat("hello ", 26)) + " abcdef"
	if n := utf8.RuneCountInString(text); n != 162 {
		t.Fatalf("fixture has %d runes, want 162", n)
	}

	got := NewSplitter(80).Process([]segment.Segment{
		{ID: 9, StartTime: 0, EndTime: 10, Text: text},
	})

	if len(got) < 2 {
		t.Fatalf("expected at least 2 segments, got %d", len(got))
	}
	if got[0].StartTime != 0 {
		t.Errorf("first start = %v, want 0", got[0].StartTime)
	}
	if last := got[len(got)-1]; last.EndTime != 10 {
		t.Errorf("last end = %v, want exactly 10", last.EndTime)
	}

	total := 0
	for _, s := range got {
		total += visibleRunes(s.Text)
	}
	if total != visibleRunes(text) {
		t.Fatalf("chunks carry %d visible runes, source has %d", total, visibleRunes(text))
	}

	for i, s := range got {
		if s.ID != i+1 {
			t.Errorf("segment %d has id %d, want %d", i, s.ID, i+1)
		}
		if utf8.RuneCountInString(s.Text) > 80 {
			t.Errorf("chunk %d is %d runes long", i, utf8.RuneCountInString(s.Text))
		}
		if s.EndTime <= s.StartTime {
			t.Errorf("chunk %d is not increasing: %+v", i, s)
		}
		if i > 0 && s.StartTime != got[i-1].EndTime {
			t.Errorf("chunk %d starts at %v, previous ended at %v", i, s.StartTime, got[i-1].EndTime)
		}
		want := 10 * float64(visibleRunes(s.Text)) / float64(total)
		if math.Abs(s.Duration()-want) > 0.002 {
			t.Errorf("chunk %d lasts %v, want about %v", i, s.Duration(), want)
		}
	}
}

func TestChunkWordsLongWord(t *testing.T) {
	long := strings.Repeat("a", 12)
	got := chunkWords("tiny "+long+" end", 10)
	want := []string{"tiny", long, "end"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("chunkWords() mismatch (-want +got):\n%s", diff)
	}
}

func TestSplitterKeepsWhitespaceOnlyText(t *testing.T) {
	blank := strings.Repeat(" ", 90)
	raw := []segment.Segment{
		{ID: 1, StartTime: 0, EndTime: 2, Text: "a"},
		{ID: 2, StartTime: 3, EndTime: 6, Text: blank},
	}

	got := NewSplitter(80).Process(raw)
	want := []segment.Segment{
		{ID: 1, StartTime: 0, EndTime: 2, Text: "a"},
		{ID: 2, StartTime: 3, EndTime: 6, Text: blank},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Process() mismatch (-want +got):\n%s", diff)
	}
}

func TestSplitterKeepsLineBreaks(t *testing.T) {
	text := "line one\nline two " + strings.Repeat("word ", 20)

	got := NewSplitter(80).Process([]segment.Segment{{ID: 1, StartTime: 0, EndTime: 10, Text: text}})
	if len(got) < 2 {
		t.Fatalf("expected the caption to be split, got %d segments", len(got))
	}
	if !strings.HasPrefix(got[0].Text, "line one\nline two word") {
		t.Errorf("first chunk = %q, want the line break kept", got[0].Text)
	}
	for i, s := range got[1:] {
		if strings.Contains(s.Text, "\n") {
			t.Errorf("chunk %d = %q has a stray line break", i+1, s.Text)
		}
	}
}

func TestSplitterMergesShortChunks(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []segment.Segment
	}{
		{
			name: "trailing",
			text: "aaaaaaaaa bbbbbbbbb c",
			want: []segment.Segment{
				{ID: 1, StartTime: 0, EndTime: 0.142, Text: "aaaaaaaaa"},
				{ID: 2, StartTime: 0.142, EndTime: 0.3, Text: "bbbbbbbbb c"},
			},
		},
		{
			name: "leading",
			text: "c aaaaaaaaa bbbbbbbbb",
			want: []segment.Segment{
				{ID: 1, StartTime: 0, EndTime: 0.158, Text: "c aaaaaaaaa"},
				{ID: 2, StartTime: 0.158, EndTime: 0.3, Text: "bbbbbbbbb"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewSplitter(10).Process([]segment.Segment{{ID: 1, StartTime: 0, EndTime: 0.3, Text: tt.text}})
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Process() mismatch (-want +got):\n%s", diff)
			}
			for _, s := range got {
				if s.Duration() < segment.MinDuration {
					t.Errorf("%+v is shorter than the minimum", s)
				}
			}
		})
	}
}

func TestOpenSRT(t *testing.T) {
	content := `1
00:00:01,000 --> 00:00:04,000
Hello, world!

2
00:00:05,500 --> 00:00:08,200
This is a test.
With multiple lines.

3
00:00:10,000 --> 00:00:12,500
Final subtitle.
`
	path := filepath.Join(t.TempDir(), "test.srt")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	got, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open SRT file: %v", err)
	}

	want := []segment.Segment{
		{ID: 1, StartTime: 1, EndTime: 4, Text: "Hello, world!"},
		{ID: 2, StartTime: 5.5, EndTime: 8.2, Text: "This is a test.\nWith multiple lines."},
		{ID: 3, StartTime: 10, EndTime: 12.5, Text: "Final subtitle."},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Open() mismatch (-want +got):\n%s", diff)
	}
}

func TestOpenVTT(t *testing.T) {
	content := `WEBVTT
Kind: captions

NOTE this block is ignored
00:00:00.000 --> 00:00:00.500

1
00:00:01.000 --> 00:00:04.000
Hello, world!

00:10.000 --> 00:12.500
No cue identifier.
`
	path := filepath.Join(t.TempDir(), "test.vtt")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	got, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open VTT file: %v", err)
	}

	want := []segment.Segment{
		{ID: 1, StartTime: 1, EndTime: 4, Text: "Hello, world!"},
		{ID: 2, StartTime: 10, EndTime: 12.5, Text: "No cue identifier."},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Open() mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteFileRoundTrip(t *testing.T) {
	segments := []segment.Segment{
		{ID: 1, StartTime: 0.25, EndTime: 2, Text: "one"},
		{ID: 2, StartTime: 2.5, EndTime: 4.75, Text: "two"},
	}

	for _, format := range []Format{FormatSRT, FormatVTT} {
		t.Run(string(format), func(t *testing.T) {
			writer, err := NewWriter(format)
			if err != nil {
				t.Fatalf("NewWriter() error: %v", err)
			}
			path := filepath.Join(t.TempDir(), "nested", "out"+GetExtensionForFormat(format))
			if err := WriteFile(writer, segments, path); err != nil {
				t.Fatalf("WriteFile() error: %v", err)
			}

			got, err := Open(path)
			if err != nil {
				t.Fatalf("Open() error: %v", err)
			}
			if diff := cmp.Diff(segments, got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	for name, want := range map[string]Format{"SRT": FormatSRT, " vtt ": FormatVTT, "ssa": FormatASS} {
		got, err := ParseFormat(name)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %v, %v; want %v", name, got, err, want)
		}
	}
	if _, err := ParseFormat("docx"); err == nil {
		t.Error("ParseFormat(docx) should fail")
	}
}
