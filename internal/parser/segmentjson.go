package parser

import (
	"encoding/json"
	"strings"

	"transcriptfetch/internal/core/domain"
)

// json3 event document as served with fmt=json3. Events without text
// fragments carry window metadata, not captions.
type segmentJSONDoc struct {
	Events *[]segmentJSONEvent `json:"events"`
}

type segmentJSONEvent struct {
	StartMs    int64            `json:"tStartMs"`
	DurationMs int64            `json:"dDurationMs"`
	Segs       []segmentJSONSeg `json:"segs"`
}

type segmentJSONSeg struct {
	UTF8 string `json:"utf8"`
}

// SegmentJSON parses json3 event documents into canonical segments.
type SegmentJSON struct{}

func (SegmentJSON) Parse(data []byte) ([]domain.TranscriptSegment, error) {
	var doc segmentJSONDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, domain.NewClassified(domain.KindParseFailure, "segment-json: not a JSON document")
	}
	// A document without an events member is some other payload
	// entirely, not an empty transcript.
	if doc.Events == nil {
		return nil, domain.NewClassified(domain.KindParseFailure, "segment-json: missing events member")
	}

	segments := make([]domain.TranscriptSegment, 0, len(*doc.Events))
	for _, ev := range *doc.Events {
		if len(ev.Segs) == 0 {
			continue
		}
		var sb strings.Builder
		for _, s := range ev.Segs {
			sb.WriteString(s.UTF8)
		}
		text := strings.TrimSpace(sb.String())
		if text == "" {
			continue
		}
		seg, err := domain.NewSegment(text, float64(ev.StartMs)/1000, float64(ev.DurationMs)/1000)
		if err != nil {
			return nil, domain.NewClassified(domain.KindParseFailure, "segment-json: "+err.Error())
		}
		segments = append(segments, seg)
	}
	return segments, nil
}
