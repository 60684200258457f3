// Package spotify provides the Spotify Web API backed track lookup, login
// exchange and Connect device used by the playback core.
package spotify

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/osa030/jukebox/internal/domain/track"
)

// maxTracksPerRequest is the Web API limit for the several-tracks endpoint.
const maxTracksPerRequest = 50

// ErrTrackNotFound is returned when Spotify does not know a track id.
var ErrTrackNotFound = errors.New("track not found")

// Client is a Spotify Web API client for track metadata.
type Client struct {
	client     *spotify.Client
	market     string
	maxRetries int
	retryDelay time.Duration
}

// Config represents Spotify client configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	Market       string
	BaseURL      string // API base URL, empty for the public endpoint
}

// New creates a new Spotify client using the client-credentials flow.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("spotify client credentials are required")
	}

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}

	return newClient(cc.Client(ctx), cfg), nil
}

func newClient(httpClient *http.Client, cfg Config) *Client {
	var opts []spotify.ClientOption
	if cfg.BaseURL != "" {
		opts = append(opts, spotify.WithBaseURL(cfg.BaseURL))
	}

	market := cfg.Market
	if market == "" {
		market = "JP"
	}

	return &Client{
		client:     spotify.New(httpClient, opts...),
		market:     market,
		maxRetries: 3,
		retryDelay: time.Second,
	}
}

// GetTrack retrieves track information by ID, URL, or URI.
func (c *Client) GetTrack(ctx context.Context, trackID string) (*track.Track, error) {
	id := extractTrackID(trackID)
	if id == "" {
		return nil, errors.New("track id is required")
	}

	var result *spotify.FullTrack
	err := c.retry(func() error {
		t, err := c.client.GetTrack(ctx, spotify.ID(id), spotify.Market(c.market))
		if err != nil {
			return err
		}
		result = t
		return nil
	})
	if err != nil {
		if isNotFound(err) {
			return nil, errors.Wrapf(ErrTrackNotFound, "id=%s", id)
		}
		return nil, errors.Wrap(err, "failed to get track")
	}

	t := convertTrack(result)
	return &t, nil
}

// GetTracks retrieves several tracks by ID, URL, or URI.
// The result is keyed by the input string; unknown ids are omitted.
func (c *Client) GetTracks(ctx context.Context, inputs []string) (map[string]track.Track, error) {
	byID := make(map[spotify.ID][]string, len(inputs))
	ids := make([]spotify.ID, 0, len(inputs))
	for _, input := range inputs {
		id := spotify.ID(extractTrackID(input))
		if id == "" {
			continue
		}
		if _, seen := byID[id]; !seen {
			ids = append(ids, id)
		}
		byID[id] = append(byID[id], input)
	}

	found := make(map[string]track.Track, len(inputs))
	for i := 0; i < len(ids); i += maxTracksPerRequest {
		end := min(i+maxTracksPerRequest, len(ids))
		batch := ids[i:end]

		var result []*spotify.FullTrack
		err := c.retry(func() error {
			r, err := c.client.GetTracks(ctx, batch, spotify.Market(c.market))
			if err != nil {
				return err
			}
			result = r
			return nil
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to get tracks")
		}

		for j, t := range result {
			if t == nil || t.ID == "" || j >= len(batch) {
				continue
			}
			for _, input := range byID[batch[j]] {
				found[input] = convertTrack(t)
			}
		}
	}

	return found, nil
}

// convertTrack converts a Spotify FullTrack to a domain Track.
// The catalog id of a Spotify-sourced track is its Spotify id.
func convertTrack(t *spotify.FullTrack) track.Track {
	artists := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = a.Name
	}

	s, m, l := artworkSizes(t.Album.Images)

	return track.Track{
		ID:            string(t.ID),
		Name:          t.Name,
		Artists:       artists,
		ArtworkS:      s,
		ArtworkM:      m,
		ArtworkL:      l,
		DurationMs:    int(t.Duration),
		SpotifyTracks: []track.SpotifyTrack{{SpotifyID: string(t.ID)}},
	}
}

// artworkSizes picks small, medium and large artwork from album images.
// Spotify returns 640, 300 and 64 pixel images; missing sizes fall back to neighbours.
func artworkSizes(images []spotify.Image) (small, medium, large string) {
	for _, img := range images {
		switch {
		case img.Width >= 600:
			large = img.URL
		case img.Width >= 200:
			medium = img.URL
		default:
			small = img.URL
		}
	}
	if len(images) > 0 {
		if large == "" {
			large = images[0].URL
		}
		if medium == "" {
			medium = large
		}
		if small == "" {
			small = images[len(images)-1].URL
		}
	}
	return small, medium, large
}

// TrackURL returns the Spotify URL for a track.
func TrackURL(trackID string) string {
	return "https://open.spotify.com/track/" + trackID
}

// retry retries an operation with linear backoff.
func (c *Client) retry(fn func() error) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}

		if i < c.maxRetries-1 {
			time.Sleep(c.retryDelay * time.Duration(i+1))
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

// isRetryable checks if an error is retryable.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusTooManyRequests || apiErr.Status >= http.StatusInternalServerError
	}
	// Rate limit errors and server errors are retryable
	errStr := err.Error()
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504")
}

func isNotFound(err error) bool {
	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusNotFound || apiErr.Status == http.StatusBadRequest
	}
	return false
}

// extractTrackID extracts the track ID from a Spotify track URL or URI.
func extractTrackID(input string) string {
	input = strings.TrimSpace(input)
	// Handle Spotify URI format: spotify:track:TRACK_ID
	if strings.HasPrefix(input, track.SpotifyURIPrefix) {
		return strings.TrimPrefix(input, track.SpotifyURIPrefix)
	}

	// Handle URL format: https://open.spotify.com/track/TRACK_ID or https://open.spotify.com/intl-XX/track/TRACK_ID
	if strings.Contains(input, "open.spotify.com") && strings.Contains(input, "/track/") {
		parts := strings.Split(input, "/track/")
		if len(parts) >= 2 {
			// Remove query parameters and trailing slashes
			id := strings.Split(parts[len(parts)-1], "?")[0]
			id = strings.TrimRight(id, "/")
			return id
		}
	}

	// Assume it's already a track ID
	return input
}
