// Package ytdlp implements the external-tool retrieval strategy: it
// asks the local yt-dlp binary to enumerate subtitle tracks for a
// video, then fetches the selected track over the shared transport.
package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"transcriptfetch/internal/adapters/transport"
	"transcriptfetch/internal/core/domain"
)

const enumerateTimeout = 2 * time.Minute

// Strategy shells out to yt-dlp for track discovery.
type Strategy struct {
	binaryPath string
	client     *transport.Client
	logger     *slog.Logger
}

// New creates the yt-dlp strategy. The binary is resolved from
// YTDLP_PATH or assumed to be on PATH.
func New(client *transport.Client, logger *slog.Logger) *Strategy {
	path := os.Getenv("YTDLP_PATH")
	if path == "" {
		path = "yt-dlp"
	}
	return &Strategy{
		binaryPath: path,
		client:     client,
		logger:     logger.With(slog.String("strategy", "ytdlp")),
	}
}

func (s *Strategy) Name() string { return "ytdlp" }

type subtitleVariant struct {
	Ext string `json:"ext"`
	URL string `json:"url"`
}

type videoMeta struct {
	ID                string                       `json:"id"`
	Subtitles         map[string][]subtitleVariant `json:"subtitles"`
	AutomaticCaptions map[string][]subtitleVariant `json:"automatic_captions"`
}

// Attempt enumerates subtitle tracks via `yt-dlp -J`, selects the
// requested language (manual tracks ahead of automatic ones), prefers
// the segment-JSON track encoding and otherwise the VTT one, and
// fetches the track content. If the preferred encoding's URL cannot be
// fetched, the other one is tried before giving up.
func (s *Strategy) Attempt(ctx context.Context, videoID, lang string) (*domain.RawSubtitlePayload, error) {
	meta, err := s.enumerate(ctx, videoID)
	if err != nil {
		return nil, err
	}

	variants := selectTrack(meta, lang)
	if len(variants) == 0 {
		return nil, domain.NewClassified(domain.KindNoCaptionsForLanguage,
			fmt.Sprintf("no transcript found for language %q via yt-dlp", lang))
	}

	ordered := orderByPreference(variants)
	if len(ordered) == 0 {
		return nil, domain.NewClassified(domain.KindParseFailure,
			"track offers no segment-JSON or VTT encoding")
	}

	var lastErr error
	for _, v := range ordered {
		data, err := s.client.Get(ctx, v.URL, nil)
		if err != nil {
			lastErr = err
			s.logger.Debug("track fetch failed, trying next encoding",
				slog.String("ext", v.Ext), slog.Any("error", err))
			continue
		}
		return &domain.RawSubtitlePayload{
			Format:    formatForExt(v.Ext),
			Data:      data,
			SourceURL: v.URL,
		}, nil
	}
	return nil, lastErr
}

func (s *Strategy) enumerate(ctx context.Context, videoID string) (*videoMeta, error) {
	ctx, cancel := context.WithTimeout(ctx, enumerateTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.binaryPath,
		"-J", "--skip-download", "--no-warnings", "--no-playlist",
		"https://www.youtube.com/watch?v="+videoID)

	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, classifyToolError(stderr.String(), err)
	}

	var meta videoMeta
	if err := json.Unmarshal(out.Bytes(), &meta); err != nil {
		return nil, domain.NewClassified(domain.KindParseFailure, "yt-dlp metadata did not decode")
	}
	return &meta, nil
}

// selectTrack picks the variants for the requested language. Manual
// subtitle tracks win over automatic captions. JSON objects don't
// preserve listing order, so keys are sorted for a deterministic
// prefix-match choice.
func selectTrack(meta *videoMeta, lang string) []subtitleVariant {
	for _, tracks := range []map[string][]subtitleVariant{meta.Subtitles, meta.AutomaticCaptions} {
		if len(tracks) == 0 {
			continue
		}
		codes := make([]string, 0, len(tracks))
		for code := range tracks {
			codes = append(codes, code)
		}
		sort.Strings(codes)
		if idx, ok := domain.PickLanguage(lang, codes); ok {
			return tracks[codes[idx]]
		}
	}
	return nil
}

// orderByPreference returns the fetchable variants, segment-JSON
// encoding first, then VTT. Other encodings have no parser and are
// skipped.
func orderByPreference(variants []subtitleVariant) []subtitleVariant {
	ordered := make([]subtitleVariant, 0, 2)
	for _, want := range []string{"json3", "vtt"} {
		for _, v := range variants {
			if v.Ext == want && v.URL != "" {
				ordered = append(ordered, v)
				break
			}
		}
	}
	return ordered
}

func formatForExt(ext string) domain.PayloadFormat {
	if ext == "json3" {
		return domain.FormatSegmentJSON
	}
	return domain.FormatVTTCue
}

func classifyToolError(stderr string, err error) error {
	detail := strings.TrimSpace(stderr)
	if detail == "" {
		detail = err.Error()
	}
	lower := strings.ToLower(detail)
	switch {
	case strings.Contains(lower, "sign in to confirm"), strings.Contains(lower, "429"):
		return domain.NewClassified(domain.KindRateLimited, "yt-dlp blocked: "+detail)
	case strings.Contains(lower, "video unavailable"), strings.Contains(lower, "private video"):
		return domain.NewClassified(domain.KindInvalidInput, "video not found: "+detail)
	case strings.Contains(lower, "executable file not found"), strings.Contains(lower, "no such file"):
		return domain.NewClassified(domain.KindUpstreamUnavailable, "yt-dlp binary missing: "+detail)
	}
	return fmt.Errorf("yt-dlp failed: %w, stderr: %s", err, detail)
}
