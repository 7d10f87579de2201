// Package format renders a canonical transcript into the output
// serializations the CLI exposes. These consume Transcript.Segments
// and contain no pipeline logic.
package format

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"transcriptfetch/internal/core/domain"
)

// Text joins all segment texts with single spaces.
func Text(t *domain.Transcript) string {
	parts := make([]string, 0, len(t.Segments))
	for _, seg := range t.Segments {
		parts = append(parts, seg.Text)
	}
	return strings.Join(parts, " ")
}

// SRT renders SubRip: 1-based index, start --> end, text, blank line.
func SRT(t *domain.Transcript) string {
	var sb strings.Builder
	for i, seg := range t.Segments {
		sb.WriteString(strconv.Itoa(i + 1))
		sb.WriteByte('\n')
		sb.WriteString(srtTime(seg.OffsetSeconds))
		sb.WriteString(" --> ")
		sb.WriteString(srtTime(seg.OffsetSeconds + seg.DurationSeconds))
		sb.WriteByte('\n')
		sb.WriteString(seg.Text)
		sb.WriteString("\n\n")
	}
	return sb.String()
}

// JSON renders an indented dump of the transcript.
func JSON(t *domain.Transcript) (string, error) {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// srtTime formats seconds as HH:MM:SS,mmm using integer floor
// division on the millisecond total.
func srtTime(sec float64) string {
	totalMillis := int64(sec * 1000)
	if totalMillis < 0 {
		totalMillis = 0
	}
	ms := totalMillis % 1000
	totalSeconds := totalMillis / 1000
	s := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	m := totalMinutes % 60
	h := totalMinutes / 60
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
