package editor

import (
	"math"
	"slices"

	"github.com/ronaldod-hc/legendas-app/internal/segment"
)

const (
	// length of a freshly added segment, in seconds
	DefaultSegmentLength = 3.0

	NewSegmentText = "New subtitle"
)

// within float noise of the minimum
func tooShort(s segment.Segment) bool {
	return s.Duration() < segment.MinDuration-1e-9
}

// AddSegment inserts a new segment with the given id and returns the updated
// collection in start order. active is the selected segment id, 0 for none.
//
// With a selection the segment goes right after it. Otherwise it starts at
// currentTime, or just after the segment under the playhead when there is
// one. Later segments are pushed forward as needed, keeping their length.
// Nothing is inserted when the new segment would not fit before the end of
// the media or the push would squeeze a segment below the minimum length.
func AddSegment(
	segments []segment.Segment,
	duration float64,
	currentTime float64,
	active int,
	id int,
) ([]segment.Segment, segment.Segment, bool) {
	sorted := segment.SortedByStart(segments)

	insert := len(sorted)
	start := math.Max(0, currentTime)

	activeIdx := -1
	if active != 0 {
		for i, s := range sorted {
			if s.ID == active {
				activeIdx = i
				break
			}
		}
	}

	if activeIdx >= 0 {
		insert = activeIdx + 1
		start = sorted[activeIdx].EndTime + segment.Gap
	} else {
		for i, s := range sorted {
			if s.StartTime >= currentTime {
				insert = i
				break
			}
		}
		if insert > 0 {
			start = math.Max(start, sorted[insert-1].EndTime+segment.Gap)
		}
	}

	start = segment.RoundMillis(start)
	if start >= duration {
		return segments, segment.Segment{}, false
	}

	added := segment.Segment{
		ID:        id,
		StartTime: start,
		EndTime:   math.Min(segment.RoundMillis(start+DefaultSegmentLength), duration),
		Text:      NewSegmentText,
	}
	if tooShort(added) {
		return segments, segment.Segment{}, false
	}

	out := make([]segment.Segment, 0, len(sorted)+1)
	out = append(out, sorted[:insert]...)
	out = append(out, added)
	out = append(out, sorted[insert:]...)

	lastEnd := added.EndTime
	for i := insert + 1; i < len(out); i++ {
		s := out[i]
		next := segment.RoundMillis(lastEnd + segment.Gap)
		if s.StartTime < next {
			length := math.Max(segment.MinDuration, s.Duration())
			s.StartTime = next
			s.EndTime = math.Min(segment.RoundMillis(next+length), duration)
			if tooShort(s) {
				return segments, segment.Segment{}, false
			}
			out[i] = s
		}
		lastEnd = out[i].EndTime
	}

	return out, added, true
}

// DeleteSegment removes a segment; neighbours keep their times.
func DeleteSegment(segments []segment.Segment, id int) ([]segment.Segment, bool) {
	if _, ok := segment.Find(segments, id); !ok {
		return segments, false
	}
	return segment.Without(segments, id), true
}

// ReorderByDrag moves the dragged segment to the drop target's place in
// start order, then packs every segment from zero with a Gap between them.
// Each segment keeps its own length; the last ones are cut at the end of the
// media, and the reorder is refused if that leaves one too short.
func ReorderByDrag(
	segments []segment.Segment,
	duration float64,
	draggedID int,
	dropOnID int,
) ([]segment.Segment, bool) {
	if draggedID == dropOnID {
		return segments, false
	}

	sorted := segment.SortedByStart(segments)
	from, to := -1, -1
	for i, s := range sorted {
		switch s.ID {
		case draggedID:
			from = i
		case dropOnID:
			to = i
		}
	}
	if from < 0 || to < 0 {
		return segments, false
	}

	order := slices.Delete(slices.Clone(sorted), from, from+1)
	order = slices.Insert(order, to, sorted[from])

	out := make([]segment.Segment, len(order))
	lastEnd := 0.0
	for i, s := range order {
		start := 0.0
		if i > 0 {
			start = segment.RoundMillis(lastEnd + segment.Gap)
		}
		length := math.Max(segment.MinDuration, s.Duration())
		s.StartTime = start
		s.EndTime = math.Min(segment.RoundMillis(start+length), duration)
		if tooShort(s) {
			return segments, false
		}
		out[i] = s
		lastEnd = s.EndTime
	}
	return out, true
}

// UpdateText replaces the caption of one segment.
func UpdateText(segments []segment.Segment, id int, text string) ([]segment.Segment, bool) {
	s, ok := segment.Find(segments, id)
	if !ok {
		return segments, false
	}
	s.Text = text
	return segment.Replace(segments, s), true
}
