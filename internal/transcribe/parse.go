package transcribe

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/ronaldod-hc/legendas-app/internal/segment"
)

// one timed phrase as models return it; both the short start/end keys and
// the startTime/endTime keys are accepted
type transcriptSegment struct {
	ID        int     `json:"id,omitempty"`
	Start     float64 `json:"start,omitempty"`
	End       float64 `json:"end,omitempty"`
	StartTime float64 `json:"startTime,omitempty"`
	EndTime   float64 `json:"endTime,omitempty"`
	Text      string  `json:"text"`
}

func (s transcriptSegment) bounds() (float64, float64) {
	if s.Start == 0 && s.End == 0 {
		return s.StartTime, s.EndTime
	}
	return s.Start, s.End
}

var jsonBlockRegex = regexp.MustCompile("```(?:json)?\\s*")

// removes markdown formatting from the response
func cleanJSONResponse(s string) string {
	s = strings.TrimSpace(s)
	s = jsonBlockRegex.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// validateSegments reports whether at least one entry carries data.
func validateSegments(segments []transcriptSegment) bool {
	for _, s := range segments {
		start, end := s.bounds()
		if s.Text != "" || start != 0 || end != 0 {
			return true
		}
	}
	return false
}

// extractTranscriptSegments finds the first usable segment array in a model
// response, tolerating prose around it and wrapper objects.
func extractTranscriptSegments(text string) ([]transcriptSegment, error) {
	for i := 0; i < len(text); i++ {
		if text[i] != '[' && text[i] != '{' {
			continue
		}

		var raw json.RawMessage
		dec := json.NewDecoder(strings.NewReader(text[i:]))
		if err := dec.Decode(&raw); err != nil {
			continue
		}

		if segments, ok := findSegments(raw, 0); ok {
			return segments, nil
		}
	}
	return nil, fmt.Errorf("%w: no segment array found in %q", ErrMalformedResponse, truncateString(text, 200))
}

// findSegments searches a JSON value, descending into object fields.
func findSegments(raw json.RawMessage, depth int) ([]transcriptSegment, bool) {
	if depth > 4 {
		return nil, false
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, false
	}

	switch trimmed[0] {
	case '[':
		var segments []transcriptSegment
		if err := json.Unmarshal(trimmed, &segments); err != nil {
			return nil, false
		}
		if !validateSegments(segments) {
			return nil, false
		}
		return segments, true
	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			return nil, false
		}
		// well known keys first, then the rest in a stable order
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.SliceStable(keys, func(i, j int) bool {
			return keyRank(keys[i]) < keyRank(keys[j]) ||
				(keyRank(keys[i]) == keyRank(keys[j]) && keys[i] < keys[j])
		})
		for _, k := range keys {
			if segments, ok := findSegments(fields[k], depth+1); ok {
				return segments, true
			}
		}
	}
	return nil, false
}

func keyRank(key string) int {
	switch strings.ToLower(key) {
	case "segments":
		return 0
	case "transcript", "subtitles":
		return 1
	case "data", "result":
		return 2
	default:
		return 3
	}
}

// toSegments converts parsed entries, numbering them from 1.
func toSegments(parsed []transcriptSegment) []segment.Segment {
	segments := make([]segment.Segment, len(parsed))
	for i, ts := range parsed {
		start, end := ts.bounds()
		segments[i] = segment.Segment{
			ID:        i + 1,
			StartTime: start,
			EndTime:   end,
			Text:      strings.TrimSpace(ts.Text),
		}
	}
	return segments
}

// ParseSegments decodes a raw transcription payload as produced by the
// transcription endpoint.
func ParseSegments(raw string) ([]segment.Segment, error) {
	parsed, err := extractTranscriptSegments(cleanJSONResponse(raw))
	if err != nil {
		return nil, err
	}
	return toSegments(parsed), nil
}

// EncodeSegments renders segments as the JSON array the endpoint returns.
func EncodeSegments(segments []segment.Segment) (string, error) {
	if segments == nil {
		segments = []segment.Segment{}
	}
	data, err := json.Marshal(segments)
	if err != nil {
		return "", fmt.Errorf("failed to encode segments: %w", err)
	}
	return string(data), nil
}

// truncates a string to maxLen characters
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
