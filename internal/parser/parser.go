// Package parser converts raw upstream subtitle payloads into the
// canonical segment model. Each parser is a pure function over bytes;
// format selection happens upstream, in the strategy that fetched the
// payload.
package parser

import (
	"transcriptfetch/internal/core/domain"
	"transcriptfetch/internal/core/ports"
)

// ForFormat returns the parser for a payload format, or nil when the
// format is unknown.
func ForFormat(f domain.PayloadFormat) ports.Parser {
	switch f {
	case domain.FormatSegmentJSON:
		return SegmentJSON{}
	case domain.FormatCueXML:
		return CueXML{}
	case domain.FormatVTTCue:
		return VTTCue{}
	}
	return nil
}
