package segment

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

const (
	// shortest segment a drag or resize may produce, in seconds
	MinDuration = 0.1

	// spacing inserted between segments by add and reorder, in seconds
	Gap = 0.01
)

var (
	ErrOverlap     = errors.New("segments overlap")
	ErrOutOfBounds = errors.New("segment outside media bounds")
	ErrTooShort    = errors.New("segment shorter than minimum duration")
	ErrDuplicateID = errors.New("duplicate segment id")
)

// represents one timed subtitle unit; times are seconds
type Segment struct {
	ID        int     `json:"id"`
	StartTime float64 `json:"startTime"`
	EndTime   float64 `json:"endTime"`
	Text      string  `json:"text"`
}

func (s Segment) Duration() float64 {
	return s.EndTime - s.StartTime
}

// Contains reports whether t falls inside the segment, both ends inclusive.
func (s Segment) Contains(t float64) bool {
	return t >= s.StartTime && t <= s.EndTime
}

// SortedByStart returns a sorted copy; ties are broken by id.
func SortedByStart(segments []Segment) []Segment {
	out := make([]Segment, len(segments))
	copy(out, segments)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].StartTime != out[j].StartTime {
			return out[i].StartTime < out[j].StartTime
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Overlaps is strict: touching boundaries do not overlap.
func Overlaps(a, b Segment) bool {
	return a.StartTime < b.EndTime && b.StartTime < a.EndTime
}

func Clamp(t, duration float64) float64 {
	if t < 0 {
		return 0
	}
	if t > duration {
		return duration
	}
	return t
}

func WouldOverlapAny(candidate Segment, others []Segment) bool {
	for _, o := range others {
		if Overlaps(candidate, o) {
			return true
		}
	}
	return false
}

// Without returns a copy of segments minus the one with the given id.
func Without(segments []Segment, id int) []Segment {
	out := make([]Segment, 0, len(segments))
	for _, s := range segments {
		if s.ID != id {
			out = append(out, s)
		}
	}
	return out
}

func Find(segments []Segment, id int) (Segment, bool) {
	for _, s := range segments {
		if s.ID == id {
			return s, true
		}
	}
	return Segment{}, false
}

// Replace returns a copy with the segment of the same id swapped for s.
func Replace(segments []Segment, s Segment) []Segment {
	out := make([]Segment, len(segments))
	for i, existing := range segments {
		if existing.ID == s.ID {
			out[i] = s
			continue
		}
		out[i] = existing
	}
	return out
}

// Validate checks ordering-independent invariants over a whole collection:
// unique ids, bounds, minimum duration and pairwise non-overlap.
func Validate(segments []Segment, duration float64) error {
	seen := make(map[int]bool, len(segments))
	for _, s := range segments {
		if seen[s.ID] {
			return fmt.Errorf("%w: %d", ErrDuplicateID, s.ID)
		}
		seen[s.ID] = true

		if s.StartTime < 0 || s.EndTime > duration {
			return fmt.Errorf(
				"%w: segment %d [%.3f, %.3f] with duration %.3f",
				ErrOutOfBounds, s.ID, s.StartTime, s.EndTime, duration,
			)
		}
		// tolerate float noise from arithmetic on millisecond values
		if s.Duration() < MinDuration-1e-9 {
			return fmt.Errorf("%w: segment %d lasts %.4fs", ErrTooShort, s.ID, s.Duration())
		}
	}

	sorted := SortedByStart(segments)
	for i := 1; i < len(sorted); i++ {
		if Overlaps(sorted[i-1], sorted[i]) {
			return fmt.Errorf(
				"%w: %d and %d",
				ErrOverlap, sorted[i-1].ID, sorted[i].ID,
			)
		}
	}
	return nil
}

// Sanitize clamps untrusted upstream times into [0, duration] and drops
// segments left shorter than MinDuration.
func Sanitize(raw []Segment, duration float64) []Segment {
	out := make([]Segment, 0, len(raw))
	for _, s := range raw {
		start := Clamp(s.StartTime, duration)
		end := math.Max(start, math.Min(s.EndTime, duration))
		if end-start < MinDuration-1e-9 {
			continue
		}
		out = append(out, Segment{
			ID:        s.ID,
			StartTime: start,
			EndTime:   end,
			Text:      s.Text,
		})
	}
	return out
}

// ActiveAt returns the segment displayed at time t, if any.
func ActiveAt(segments []Segment, t float64) (Segment, bool) {
	for _, s := range SortedByStart(segments) {
		if s.Contains(t) {
			return s, true
		}
	}
	return Segment{}, false
}

// FullText joins all texts in display order.
func FullText(segments []Segment) string {
	sorted := SortedByStart(segments)
	parts := make([]string, len(sorted))
	for i, s := range sorted {
		parts[i] = s.Text
	}
	return strings.Join(parts, " ")
}

func RoundMillis(t float64) float64 {
	return math.Round(t*1000) / 1000
}

func MaxID(segments []Segment) int {
	max := 0
	for _, s := range segments {
		if s.ID > max {
			max = s.ID
		}
	}
	return max
}
