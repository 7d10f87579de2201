// Package innertube implements the library-backed retrieval strategy:
// it talks to the public player endpoint that the upstream transcript
// libraries wrap, enumerates the caption track list, and fetches the
// selected track as a json3 event document.
package innertube

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"

	"transcriptfetch/internal/adapters/transport"
	"transcriptfetch/internal/core/domain"
)

const (
	playerEndpoint = "https://www.youtube.com/youtubei/v1/player"

	// Android client context; its player responses carry caption
	// track URLs that don't require signature decryption.
	clientName    = "ANDROID"
	clientVersion = "20.10.38"
)

// Strategy fetches transcripts through the player API.
type Strategy struct {
	client   *transport.Client
	logger   *slog.Logger
	endpoint string
}

// New creates the player API strategy.
func New(client *transport.Client, logger *slog.Logger) *Strategy {
	return &Strategy{
		client:   client,
		logger:   logger.With(slog.String("strategy", "innertube")),
		endpoint: playerEndpoint,
	}
}

func (s *Strategy) Name() string { return "innertube" }

type playerRequest struct {
	Context struct {
		Client struct {
			ClientName    string `json:"clientName"`
			ClientVersion string `json:"clientVersion"`
			HL            string `json:"hl"`
		} `json:"client"`
	} `json:"context"`
	VideoID string `json:"videoId"`
}

type playerResponse struct {
	PlayabilityStatus struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
	Captions struct {
		Renderer *struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"` // "asr" for auto-generated
}

// Attempt resolves the caption track for lang and fetches it as a
// segment-JSON payload. A video that plays fine but exposes no caption
// tracks is a classified "no captions" outcome, not a fetch failure —
// the orchestrator decides whether another strategy should still look.
func (s *Strategy) Attempt(ctx context.Context, videoID, lang string) (*domain.RawSubtitlePayload, error) {
	var reqBody playerRequest
	reqBody.Context.Client.ClientName = clientName
	reqBody.Context.Client.ClientVersion = clientVersion
	reqBody.Context.Client.HL = lang
	reqBody.VideoID = videoID

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal player request: %w", err)
	}

	respBody, err := s.client.Post(ctx, s.endpoint, body, map[string]string{
		"Origin":  "https://www.youtube.com",
		"Referer": "https://www.youtube.com/watch?v=" + videoID,
	})
	if err != nil {
		return nil, err
	}

	var resp playerResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, domain.NewClassified(domain.KindParseFailure, "player response is not JSON")
	}

	switch resp.PlayabilityStatus.Status {
	case "", "OK":
	case "ERROR":
		return nil, domain.NewClassified(domain.KindInvalidInput,
			"video not found: "+resp.PlayabilityStatus.Reason)
	case "LOGIN_REQUIRED":
		return nil, domain.NewClassified(domain.KindRateLimited,
			"player access blocked: "+resp.PlayabilityStatus.Reason)
	default:
		return nil, domain.NewClassified(domain.KindUpstreamUnavailable,
			fmt.Sprintf("playability %s: %s", resp.PlayabilityStatus.Status, resp.PlayabilityStatus.Reason))
	}

	if resp.Captions.Renderer == nil || len(resp.Captions.Renderer.CaptionTracks) == 0 {
		return nil, domain.NewClassified(domain.KindNoCaptionsForLanguage,
			"transcript is disabled or video has no caption tracks")
	}

	tracks := resp.Captions.Renderer.CaptionTracks
	codes := make([]string, len(tracks))
	for i, t := range tracks {
		codes[i] = t.LanguageCode
	}
	idx, ok := domain.PickLanguage(lang, codes)
	if !ok {
		return nil, domain.NewClassified(domain.KindNoCaptionsForLanguage,
			fmt.Sprintf("no transcript found for language %q among %v", lang, codes))
	}
	track := tracks[idx]
	s.logger.Debug("caption track selected",
		slog.String("video_id", videoID),
		slog.String("language", track.LanguageCode),
		slog.String("kind", track.Kind))

	trackURL, err := withFormatParam(track.BaseURL, "json3")
	if err != nil {
		return nil, domain.NewClassified(domain.KindParseFailure, "caption track url is malformed")
	}

	data, err := s.client.Get(ctx, trackURL, nil)
	if err != nil {
		return nil, err
	}

	return &domain.RawSubtitlePayload{
		Format:    domain.FormatSegmentJSON,
		Data:      data,
		SourceURL: trackURL,
	}, nil
}

// withFormatParam forces the fmt query parameter on a caption URL.
func withFormatParam(rawURL, format string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("fmt", format)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
