package localstorage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalSink implements ports.Sink on the local filesystem. Artifacts
// are written once per acquisition and never read back.
type LocalSink struct {
	BaseDir string
}

// NewLocalSink creates a sink rooted at baseDir.
func NewLocalSink(baseDir string) *LocalSink {
	return &LocalSink{BaseDir: baseDir}
}

// Save writes one rendered transcript artifact under the video's
// directory, creating it as needed.
func (s *LocalSink) Save(ctx context.Context, videoID, filename string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := s.Path(videoID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create transcript directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to save %s: %w", filename, err)
	}
	return nil
}

// Path returns the directory for a video's artifacts.
func (s *LocalSink) Path(videoID string) string {
	return filepath.Join(s.BaseDir, "transcripts", videoID)
}
