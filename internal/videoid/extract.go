// Package videoid extracts 11-character video identifiers from the
// URL shapes users paste in.
package videoid

import (
	"net/url"
	"strings"

	"transcriptfetch/internal/core/domain"
)

// Extract pulls a video identifier out of watch, short-link, shorts,
// embed and live URL shapes, or accepts a bare identifier. Returns
// false when nothing valid can be found.
func Extract(input string) (string, bool) {
	input = strings.TrimSpace(input)
	if domain.ValidVideoID(input) {
		return input, true
	}

	u, err := url.Parse(input)
	if err != nil {
		return "", false
	}

	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	switch host {
	case "youtu.be":
		return checked(strings.TrimPrefix(u.Path, "/"))
	case "youtube.com", "m.youtube.com", "music.youtube.com", "youtube-nocookie.com":
		if id := u.Query().Get("v"); id != "" {
			return checked(id)
		}
		for _, prefix := range []string{"/shorts/", "/embed/", "/live/", "/v/"} {
			if strings.HasPrefix(u.Path, prefix) {
				rest := strings.TrimPrefix(u.Path, prefix)
				if idx := strings.IndexByte(rest, '/'); idx >= 0 {
					rest = rest[:idx]
				}
				return checked(rest)
			}
		}
	}
	return "", false
}

func checked(id string) (string, bool) {
	if domain.ValidVideoID(id) {
		return id, true
	}
	return "", false
}
