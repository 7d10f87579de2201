package parser

import (
	"bufio"
	"bytes"
	"log/slog"
	"strconv"
	"strings"

	"transcriptfetch/internal/core/domain"
)

// VTTCue parses WebVTT-like cue text into canonical segments.
//
// A line containing "-->" opens a cue; following non-empty lines that
// are not headers, NOTE lines, or new cue markers accumulate as the
// cue's text. A malformed timestamp drops only that cue.
type VTTCue struct{}

func (VTTCue) Parse(data []byte) ([]domain.TranscriptSegment, error) {
	var segments []domain.TranscriptSegment

	var (
		inCue     bool
		start     float64
		duration  float64
		textLines []string
	)

	flush := func() {
		if !inCue {
			return
		}
		text := strings.TrimSpace(strings.Join(textLines, " "))
		if text != "" {
			if seg, err := domain.NewSegment(text, start, duration); err == nil {
				segments = append(segments, seg)
			}
		}
		inCue = false
		textLines = nil
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\uFEFF"))

		if strings.Contains(line, "-->") {
			flush()
			left, right, ok := splitCueTimes(line)
			if !ok {
				// Drop just this cue; the rest of the document
				// may still be fine.
				continue
			}
			start = left
			duration = right - left
			if duration < 0 {
				slog.Warn("vtt cue ends before it starts, clamping duration",
					slog.Float64("start", left), slog.Float64("end", right))
				duration = 0
			}
			inCue = true
			continue
		}

		if line == "" {
			flush()
			continue
		}
		if strings.HasPrefix(line, "WEBVTT") || strings.HasPrefix(line, "NOTE") {
			continue
		}
		if inCue {
			textLines = append(textLines, line)
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, domain.NewClassified(domain.KindParseFailure, "vtt: "+err.Error())
	}
	return segments, nil
}

func splitCueTimes(line string) (left, right float64, ok bool) {
	parts := strings.SplitN(line, "-->", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	left, okL := parseCueTimestamp(parts[0])
	right, okR := parseCueTimestamp(parts[1])
	if !okL || !okR {
		return 0, 0, false
	}
	return left, right, true
}

// parseCueTimestamp accepts [HH:]MM:SS[.mmm]. Two fields are
// minutes:seconds, three are hours:minutes:seconds. Cue settings
// after the timestamp ("00:03.500 align:start") are ignored.
func parseCueTimestamp(raw string) (float64, bool) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return 0, false
	}
	if idx := strings.Index(v, " "); idx >= 0 {
		v = v[:idx]
	}
	v = strings.ReplaceAll(v, ",", ".")

	parts := strings.Split(v, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, false
	}

	var hours, minutes float64
	secPart := ""
	if len(parts) == 3 {
		h, errH := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		m, errM := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if errH != nil || errM != nil {
			return 0, false
		}
		hours, minutes = h, m
		secPart = parts[2]
	} else {
		m, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return 0, false
		}
		minutes = m
		secPart = parts[1]
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(secPart), 64)
	if err != nil {
		return 0, false
	}

	total := hours*3600 + minutes*60 + seconds
	if total < 0 {
		return 0, false
	}
	return total, true
}
