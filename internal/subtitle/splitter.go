package subtitle

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ronaldod-hc/legendas-app/internal/segment"
)

// DefaultMaxChars is the longest caption kept on screen as a single segment.
const DefaultMaxChars = 80

// Splitter breaks overlong transcription segments into shorter ones,
// dividing the original time span by how much text each piece carries.
type Splitter struct {
	MaxChars int
}

func NewSplitter(maxChars int) *Splitter {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Splitter{MaxChars: maxChars}
}

// Process returns a new slice in input order with ids renumbered from 1.
func (s *Splitter) Process(raw []segment.Segment) []segment.Segment {
	limit := s.MaxChars
	if limit <= 0 {
		limit = DefaultMaxChars
	}

	out := make([]segment.Segment, 0, len(raw))
	nextID := 1
	emit := func(start, end float64, text string) {
		out = append(out, segment.Segment{
			ID:        nextID,
			StartTime: start,
			EndTime:   end,
			Text:      text,
		})
		nextID++
	}

	for _, seg := range raw {
		if seg.Text == "" || seg.EndTime-seg.StartTime <= 0 || utf8.RuneCountInString(seg.Text) <= limit {
			emit(seg.StartTime, seg.EndTime, seg.Text)
			continue
		}

		chunks := chunkWords(seg.Text, limit)
		if len(chunks) == 0 {
			emit(seg.StartTime, seg.EndTime, seg.Text)
			continue
		}
		for _, span := range mergeShort(distribute(seg.StartTime, seg.EndTime, chunks)) {
			emit(span.start, span.end, span.text)
		}
	}
	return out
}

// chunkWords greedily packs space-separated words into chunks of at most
// limit runes. Line breaks stay inside their word. A word longer than limit
// becomes a chunk of its own.
func chunkWords(text string, limit int) []string {
	var chunks []string
	var current strings.Builder
	currentLen := 0

	for _, word := range strings.Split(text, " ") {
		if word == "" {
			continue
		}
		wordLen := utf8.RuneCountInString(word)
		if currentLen > 0 && currentLen+1+wordLen > limit {
			chunks = append(chunks, current.String())
			current.Reset()
			currentLen = 0
		}
		if currentLen > 0 {
			current.WriteByte(' ')
			currentLen++
		}
		current.WriteString(word)
		currentLen += wordLen
	}
	if currentLen > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

type timedChunk struct {
	start, end float64
	text       string
}

func distribute(start, end float64, chunks []string) []timedChunk {
	weights := make([]int, len(chunks))
	total := 0
	for i, c := range chunks {
		weights[i] = visibleRunes(c)
		total += weights[i]
	}

	span := end - start
	out := make([]timedChunk, len(chunks))
	cursor := start
	cumulative := 0
	for i, c := range chunks {
		var boundary float64
		switch {
		case i == len(chunks)-1:
			boundary = end
		case total == 0:
			boundary = segment.RoundMillis(start + span*float64(i+1)/float64(len(chunks)))
		default:
			cumulative += weights[i]
			boundary = segment.RoundMillis(start + span*float64(cumulative)/float64(total))
		}
		out[i] = timedChunk{start: cursor, end: boundary, text: c}
		cursor = boundary
	}
	return out
}

// mergeShort folds chunks shorter than segment.MinDuration into the
// following chunk, or into the previous one at the end.
func mergeShort(chunks []timedChunk) []timedChunk {
	short := func(c timedChunk) bool {
		return c.end-c.start < segment.MinDuration-1e-9
	}

	out := make([]timedChunk, 0, len(chunks))
	for _, c := range chunks {
		if n := len(out); n > 0 && short(out[n-1]) {
			out[n-1].end = c.end
			out[n-1].text += " " + c.text
			continue
		}
		out = append(out, c)
	}
	if n := len(out); n > 1 && short(out[n-1]) {
		out[n-2].end = out[n-1].end
		out[n-2].text += " " + out[n-1].text
		out = out[:n-1]
	}
	return out
}

func visibleRunes(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
