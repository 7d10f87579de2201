package domain

import (
	"errors"
	"fmt"
)

// PayloadFormat identifies which parser a raw subtitle payload belongs to.
type PayloadFormat string

const (
	FormatSegmentJSON PayloadFormat = "segment_json" // json3 event documents
	FormatCueXML      PayloadFormat = "cue_xml"      // timedtext cue markup
	FormatVTTCue      PayloadFormat = "vtt_cue"      // WebVTT-like cue text
)

// ErrInvalidSegment is returned by NewSegment for negative timing values.
var ErrInvalidSegment = errors.New("invalid transcript segment")

// TranscriptSegment is one timed span of spoken text. Immutable once
// constructed; only parsers build these.
type TranscriptSegment struct {
	Text            string  `json:"text"`
	OffsetSeconds   float64 `json:"offset"`
	DurationSeconds float64 `json:"duration"`
}

// NewSegment validates timing invariants. Empty text is the caller's
// concern: parsers drop empty cues before constructing segments.
func NewSegment(text string, offsetSeconds, durationSeconds float64) (TranscriptSegment, error) {
	if offsetSeconds < 0 {
		return TranscriptSegment{}, fmt.Errorf("%w: negative offset %g", ErrInvalidSegment, offsetSeconds)
	}
	if durationSeconds < 0 {
		return TranscriptSegment{}, fmt.Errorf("%w: negative duration %g", ErrInvalidSegment, durationSeconds)
	}
	return TranscriptSegment{Text: text, OffsetSeconds: offsetSeconds, DurationSeconds: durationSeconds}, nil
}

// Transcript is the canonical result of one acquisition call.
// Segments are ordered by non-decreasing offset. An empty segment list
// means the upstream genuinely has no captions for the language, never
// a fetch failure.
type Transcript struct {
	VideoID  string              `json:"video_id"`
	Language string              `json:"language"`
	Segments []TranscriptSegment `json:"segments"`
}

// RawSubtitlePayload is what a strategy hands back: an opaque blob
// tagged with the format its retrieval path produces. Exactly one
// parser consumes it, chosen by Format.
type RawSubtitlePayload struct {
	Format    PayloadFormat
	Data      []byte
	SourceURL string
}

const videoIDLength = 11

// ValidVideoID reports whether s is an 11-character identifier drawn
// from [A-Za-z0-9_-]. Checked at the orchestrator boundary before any
// network activity.
func ValidVideoID(s string) bool {
	if len(s) != videoIDLength {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '-':
		default:
			return false
		}
	}
	return true
}
