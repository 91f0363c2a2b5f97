package subtitle

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/ronaldod-hc/legendas-app/internal/segment"
)

// hours are optional in WebVTT; SRT uses a comma before milliseconds
var cueTimingRegex = regexp.MustCompile(
	`(?:(\d+):)?(\d{2}):(\d{2})[,.](\d{3})\s*-->\s*(?:(\d+):)?(\d{2}):(\d{2})[,.](\d{3})`,
)

// Open reads an SRT or VTT file into segments numbered from 1 in file order.
func Open(path string) ([]segment.Segment, error) {
	format := GetFormatFromExtension(path)
	if format == FormatASS {
		return nil, fmt.Errorf("unsupported format for import: %s", format)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open subtitle file: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// Parse accepts both SRT and WebVTT cue blocks.
func Parse(r io.Reader) ([]segment.Segment, error) {
	var segments []segment.Segment
	scanner := bufio.NewScanner(r)

	var current *segment.Segment
	var textLines []string
	skipping := false
	lineNum := 0

	flush := func() {
		if current != nil {
			current.Text = strings.Join(textLines, "\n")
			current.ID = len(segments) + 1
			segments = append(segments, *current)
		}
		current = nil
		textLines = nil
		skipping = false
	}

	for scanner.Scan() {
		line := scanner.Text()
		lineNum++

		if lineNum == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
			if strings.HasPrefix(line, "WEBVTT") {
				skipping = true
				continue
			}
		}

		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		if skipping {
			continue
		}

		if current == nil {
			// NOTE and STYLE blocks carry no cues
			if strings.HasPrefix(line, "NOTE") || strings.HasPrefix(line, "STYLE") {
				skipping = true
				continue
			}
			matches := cueTimingRegex.FindStringSubmatch(line)
			if matches == nil {
				// cue identifier or index line
				continue
			}
			start, err := parseCueTimestamp(matches[1:5])
			if err != nil {
				return nil, fmt.Errorf("invalid start timestamp at line %d: %w", lineNum, err)
			}
			end, err := parseCueTimestamp(matches[5:9])
			if err != nil {
				return nil, fmt.Errorf("invalid end timestamp at line %d: %w", lineNum, err)
			}
			current = &segment.Segment{StartTime: start, EndTime: end}
			continue
		}

		textLines = append(textLines, line)
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading subtitle file: %w", err)
	}

	return segments, nil
}

func parseCueTimestamp(parts []string) (float64, error) {
	var fields [4]int
	for i, p := range parts {
		if p == "" {
			continue
		}
		v, err := strconv.Atoi(p)
		if err != nil {
			return 0, err
		}
		fields[i] = v
	}
	h, m, s, ms := fields[0], fields[1], fields[2], fields[3]
	return float64(h*3600+m*60+s) + float64(ms)/1000, nil
}
