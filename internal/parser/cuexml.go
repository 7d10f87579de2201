package parser

import (
	"regexp"
	"strconv"
	"strings"

	"transcriptfetch/internal/core/domain"
)

// Cue markup arrives in three structural variants. Patterns are tried
// in precedence order; the first one that yields at least one match
// wins for the whole document.
var (
	// <text start="1.2" dur="3.4">inline text</text>
	cueStrictRE = regexp.MustCompile(`<text start="([0-9.]+)" dur="([0-9.]+)">([^<]*)</text>`)
	// Same shape with a CDATA escape block around the text.
	cueCDATARE = regexp.MustCompile(`(?s)<text start="([0-9.]+)" dur="([0-9.]+)"><!\[CDATA\[(.*?)\]\]></text>`)
	// Loose: attribute order varies and extra attributes appear.
	cueLooseRE = regexp.MustCompile(`(?s)<text([^>]*)>(.*?)</text>`)

	cueAttrStartRE = regexp.MustCompile(`start="([0-9.]+)"`)
	cueAttrDurRE   = regexp.MustCompile(`dur="([0-9.]+)"`)

	numericEntityRE = regexp.MustCompile(`&#([0-9]+);`)
)

// CueXML parses timedtext cue markup into canonical segments.
type CueXML struct{}

func (CueXML) Parse(data []byte) ([]domain.TranscriptSegment, error) {
	doc := string(data)

	if m := cueStrictRE.FindAllStringSubmatch(doc, -1); len(m) > 0 {
		return cuesFromTimed(m)
	}
	if m := cueCDATARE.FindAllStringSubmatch(doc, -1); len(m) > 0 {
		return cuesFromTimed(m)
	}
	if m := cueLooseRE.FindAllStringSubmatch(doc, -1); len(m) > 0 {
		return cuesFromLoose(m)
	}
	return nil, domain.NewClassified(domain.KindParseFailure, "cue-xml: no cue elements matched")
}

// cuesFromTimed handles matches shaped [full, start, dur, text].
func cuesFromTimed(matches [][]string) ([]domain.TranscriptSegment, error) {
	segments := make([]domain.TranscriptSegment, 0, len(matches))
	for _, m := range matches {
		start, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return nil, domain.NewClassified(domain.KindParseFailure, "cue-xml: bad start attribute "+m[1])
		}
		dur, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			return nil, domain.NewClassified(domain.KindParseFailure, "cue-xml: bad dur attribute "+m[2])
		}
		text := DecodeEntities(m[3])
		if text == "" {
			continue
		}
		seg, err := domain.NewSegment(text, start, dur)
		if err != nil {
			return nil, domain.NewClassified(domain.KindParseFailure, "cue-xml: "+err.Error())
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

// cuesFromLoose handles matches shaped [full, attrs, text]; start and
// dur are pulled out of the attribute blob wherever they sit. A cue
// without a start attribute is not a caption cue and is skipped; a
// missing dur means zero, not an error.
func cuesFromLoose(matches [][]string) ([]domain.TranscriptSegment, error) {
	segments := make([]domain.TranscriptSegment, 0, len(matches))
	for _, m := range matches {
		attrs := m[1]
		sm := cueAttrStartRE.FindStringSubmatch(attrs)
		if sm == nil {
			continue
		}
		start, err := strconv.ParseFloat(sm[1], 64)
		if err != nil {
			return nil, domain.NewClassified(domain.KindParseFailure, "cue-xml: bad start attribute "+sm[1])
		}
		var dur float64
		if dm := cueAttrDurRE.FindStringSubmatch(attrs); dm != nil {
			dur, err = strconv.ParseFloat(dm[1], 64)
			if err != nil {
				return nil, domain.NewClassified(domain.KindParseFailure, "cue-xml: bad dur attribute "+dm[1])
			}
		}
		text := DecodeEntities(m[2])
		if text == "" {
			continue
		}
		seg, err := domain.NewSegment(text, start, dur)
		if err != nil {
			return nil, domain.NewClassified(domain.KindParseFailure, "cue-xml: "+err.Error())
		}
		segments = append(segments, seg)
	}
	if len(segments) == 0 && len(matches) == 0 {
		return nil, domain.NewClassified(domain.KindParseFailure, "cue-xml: no cue elements matched")
	}
	return segments, nil
}

var namedEntities = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&nbsp;", " ",
)

// DecodeEntities decodes the five standard markup entities, the
// non-breaking-space entity, and numeric character references, then
// trims whitespace. &amp; is decoded last so double-escaped sequences
// are not resolved twice.
func DecodeEntities(s string) string {
	s = numericEntityRE.ReplaceAllStringFunc(s, func(ref string) string {
		digits := ref[2 : len(ref)-1]
		n, err := strconv.Atoi(digits)
		if err != nil || n < 0 || n > 0x10FFFF {
			return ref
		}
		return string(rune(n))
	})
	s = namedEntities.Replace(s)
	s = strings.ReplaceAll(s, "&amp;", "&")
	return strings.TrimSpace(s)
}
