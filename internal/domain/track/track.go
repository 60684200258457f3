// Package track provides the Track domain entity.
package track

import (
	"strings"
	"time"
)

// SpotifyURIPrefix is the URI scheme prefix used by the Spotify player for tracks.
const SpotifyURIPrefix = "spotify:track:"

// SpotifyTrack is a Spotify playback handle for a track.
type SpotifyTrack struct {
	SpotifyID string // Spotify Track ID
}

// Track represents a playable track.
// Tracks are values: the queue owns them and controllers only read them.
type Track struct {
	ID            string         // Catalog ID
	Name          string         // Display name
	Artists       []string       // Artist names
	ArtworkS      string         // Small artwork URL
	ArtworkM      string         // Medium artwork URL (300x300)
	ArtworkL      string         // Large artwork URL
	DurationMs    int            // Track duration in milliseconds
	SpotifyTracks []SpotifyTrack // Spotify playback handles (zero or more)
}

// Duration returns the track duration.
func (t *Track) Duration() time.Duration {
	return time.Duration(t.DurationMs) * time.Millisecond
}

// SpotifyID returns the first non-empty Spotify handle.
func (t *Track) SpotifyID() (string, bool) {
	for _, st := range t.SpotifyTracks {
		if id := strings.TrimSpace(st.SpotifyID); id != "" {
			return id, true
		}
	}
	return "", false
}

// SpotifyURI returns the Spotify URI of the track, if it has a Spotify handle.
func (t *Track) SpotifyURI() (string, bool) {
	id, ok := t.SpotifyID()
	if !ok {
		return "", false
	}
	return SpotifyURIPrefix + id, true
}

// Artwork returns the best artwork URL for media metadata (medium, then large, then small).
func (t *Track) Artwork() string {
	switch {
	case t.ArtworkM != "":
		return t.ArtworkM
	case t.ArtworkL != "":
		return t.ArtworkL
	default:
		return t.ArtworkS
	}
}
