// Package watchpage implements the direct-page fallback strategy: it
// scrapes the video's public watch page for the embedded caption track
// descriptor list and fetches the selected track as XML cue markup.
// Track URLs found this way are time-limited, so the fetch happens
// immediately after extraction.
package watchpage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"transcriptfetch/internal/adapters/transport"
	"transcriptfetch/internal/core/domain"
)

const watchURL = "https://www.youtube.com/watch?v="

// The descriptor list appears either as plain JSON inside
// ytInitialPlayerResponse or backslash-escaped inside a nested string,
// depending on how the page was rendered.
var (
	tracksPlainRE   = regexp.MustCompile(`"captionTracks":(\[.*?\])`)
	tracksEscapedRE = regexp.MustCompile(`\\"captionTracks\\":(\[.*?\])(?:,\\")`)
)

// Strategy scrapes the watch page for caption tracks.
type Strategy struct {
	client  *transport.Client
	logger  *slog.Logger
	baseURL string
}

// New creates the watch page strategy.
func New(client *transport.Client, logger *slog.Logger) *Strategy {
	return &Strategy{
		client:  client,
		logger:  logger.With(slog.String("strategy", "watchpage")),
		baseURL: watchURL,
	}
}

func (s *Strategy) Name() string { return "watchpage" }

type pageTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"`
}

// Attempt fetches the watch page, locates the caption track for lang
// and downloads it as a cue-XML payload.
func (s *Strategy) Attempt(ctx context.Context, videoID, lang string) (*domain.RawSubtitlePayload, error) {
	page, err := s.client.Get(ctx, s.baseURL+videoID, map[string]string{
		"Accept":  "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Referer": "https://www.youtube.com/",
	})
	if err != nil {
		return nil, err
	}

	html := string(page)
	if strings.Contains(html, "class=\"g-recaptcha\"") {
		return nil, domain.NewClassified(domain.KindRateLimited, "watch page served a captcha challenge")
	}

	tracks, err := extractCaptionTracks(html)
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return nil, domain.NewClassified(domain.KindNoCaptionsForLanguage,
			"no transcript found on the watch page")
	}

	codes := make([]string, len(tracks))
	for i, t := range tracks {
		codes[i] = t.LanguageCode
	}
	idx, ok := domain.PickLanguage(lang, codes)
	if !ok {
		return nil, domain.NewClassified(domain.KindNoCaptionsForLanguage,
			fmt.Sprintf("no transcript found for language %q among %v", lang, codes))
	}

	trackURL, err := xmlTrackURL(tracks[idx].BaseURL)
	if err != nil {
		return nil, domain.NewClassified(domain.KindParseFailure, "caption track url is malformed")
	}
	s.logger.Debug("caption track selected",
		slog.String("video_id", videoID),
		slog.String("language", tracks[idx].LanguageCode))

	data, err := s.client.Get(ctx, trackURL, nil)
	if err != nil {
		return nil, err
	}

	return &domain.RawSubtitlePayload{
		Format:    domain.FormatCueXML,
		Data:      data,
		SourceURL: trackURL,
	}, nil
}

// extractCaptionTracks pulls the descriptor list out of the page HTML,
// tolerating the plain and escaped embeddings. A page without the
// marker at all has captions disabled; a marker that won't decode is a
// parse failure.
func extractCaptionTracks(html string) ([]pageTrack, error) {
	if m := tracksPlainRE.FindStringSubmatch(html); m != nil {
		return decodeTrackList(m[1])
	}
	if m := tracksEscapedRE.FindStringSubmatch(html); m != nil {
		return decodeTrackList(unescapeEmbedded(m[1]))
	}
	if !strings.Contains(html, "captionTracks") {
		return nil, nil
	}
	return nil, domain.NewClassified(domain.KindParseFailure,
		"caption track list present but in an unrecognized embedding")
}

func decodeTrackList(blob string) ([]pageTrack, error) {
	var tracks []pageTrack
	if err := json.Unmarshal([]byte(blob), &tracks); err != nil {
		return nil, domain.NewClassified(domain.KindParseFailure,
			"caption track descriptor list did not decode")
	}
	out := tracks[:0]
	for _, t := range tracks {
		// json.Unmarshal already resolved unicode escapes, but
		// entity escaping can still linger in the URL itself.
		t.BaseURL = strings.ReplaceAll(t.BaseURL, "&amp;", "&")
		if t.BaseURL != "" {
			out = append(out, t)
		}
	}
	return out, nil
}

// unescapeEmbedded reverses the extra escaping layer applied when the
// descriptor list sits inside a JSON string.
func unescapeEmbedded(s string) string {
	s = strings.ReplaceAll(s, `\\u0026`, "&")
	s = strings.ReplaceAll(s, `\\`, `\`)
	s = strings.ReplaceAll(s, `\"`, `"`)
	return s
}

// xmlTrackURL normalizes a caption URL so the response comes back as
// the XML cue variant: any fmt parameter selecting another encoding is
// dropped, since timedtext defaults to cue markup.
func xmlTrackURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Del("fmt")
	u.RawQuery = q.Encode()
	return u.String(), nil
}
