package ports

import (
	"context"

	"transcriptfetch/internal/core/domain"
)

// Strategy is one retrieval path capable of producing a raw subtitle
// payload for a video/language pair. Implementations must not retry
// internally; retry and backoff belong to the orchestrator so each
// strategy stays simple and testable in isolation.
type Strategy interface {
	// Name identifies the strategy in logs and error signals.
	Name() string

	// Attempt fetches the raw subtitle payload for videoID in lang.
	// The payload is tagged with the format this retrieval path
	// produces; the matching parser is chosen from that tag.
	Attempt(ctx context.Context, videoID, lang string) (*domain.RawSubtitlePayload, error)
}

// Parser converts one raw payload into canonical segments. Pure: no
// network, no retries, idempotent for identical input.
type Parser interface {
	Parse(data []byte) ([]domain.TranscriptSegment, error)
}

// Sink persists rendered transcript artifacts. Write-only: results
// are never read back, so this is not a cache.
type Sink interface {
	// Save writes one artifact under the video's directory.
	Save(ctx context.Context, videoID, filename string, data []byte) error

	// Path returns the filesystem path for a video's artifacts.
	Path(videoID string) string
}
