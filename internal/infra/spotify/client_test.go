package spotify

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zmb3/spotify/v2"
)

func TestExtractTrackID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Spotify URI format",
			input:    "spotify:track:4uLU6hMCjMI75M1A2tKUQC",
			expected: "4uLU6hMCjMI75M1A2tKUQC",
		},
		{
			name:     "Spotify URL format",
			input:    "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC",
			expected: "4uLU6hMCjMI75M1A2tKUQC",
		},
		{
			name:     "Spotify URL with query params",
			input:    "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC?si=abc123",
			expected: "4uLU6hMCjMI75M1A2tKUQC",
		},
		{
			name:     "Localized URL",
			input:    "https://open.spotify.com/intl-ja/track/4uLU6hMCjMI75M1A2tKUQC",
			expected: "4uLU6hMCjMI75M1A2tKUQC",
		},
		{
			name:     "Plain track ID with spaces",
			input:    "  4uLU6hMCjMI75M1A2tKUQC ",
			expected: "4uLU6hMCjMI75M1A2tKUQC",
		},
		{
			name:     "Empty string",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := extractTrackID(tt.input)
			assert.Equal(t, tt.expected, result,
				"extractTrackID(%s) should return %s", tt.input, tt.expected)
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
		{
			name:     "rate limit error with 429",
			err:      errors.New("Error 429: rate limit exceeded"),
			expected: true,
		},
		{
			name:     "rate limit text",
			err:      errors.New("rate limit exceeded"),
			expected: true,
		},
		{
			name:     "server error 500",
			err:      errors.New("Error 500: internal server error"),
			expected: true,
		},
		{
			name:     "server error 502",
			err:      errors.New("502 Bad Gateway"),
			expected: true,
		},
		{
			name:     "server error 503",
			err:      errors.New("503 Service Unavailable"),
			expected: true,
		},
		{
			name:     "server error 504",
			err:      errors.New("504 Gateway Timeout"),
			expected: true,
		},
		{
			name:     "client error 400",
			err:      errors.New("400 Bad Request"),
			expected: false,
		},
		{
			name:     "not found error",
			err:      errors.New("404 not found"),
			expected: false,
		},
		{
			name:     "api error 429",
			err:      spotify.Error{Message: "too many requests", Status: 429},
			expected: true,
		},
		{
			name:     "api error 404",
			err:      spotify.Error{Message: "non existing id", Status: 404},
			expected: false,
		},
		{
			name:     "generic error",
			err:      errors.New("something went wrong"),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isRetryable(tt.err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestConvertTrack(t *testing.T) {
	full := &spotify.FullTrack{
		SimpleTrack: spotify.SimpleTrack{
			ID:       "abc",
			Name:     "Song",
			Artists:  []spotify.SimpleArtist{{Name: "A"}, {Name: "B"}},
			Duration: 215000,
		},
		Album: spotify.SimpleAlbum{
			Images: []spotify.Image{
				{URL: "l.jpg", Width: 640, Height: 640},
				{URL: "m.jpg", Width: 300, Height: 300},
				{URL: "s.jpg", Width: 64, Height: 64},
			},
		},
	}

	got := convertTrack(full)
	assert.Equal(t, "abc", got.ID)
	assert.Equal(t, "Song", got.Name)
	assert.Equal(t, []string{"A", "B"}, got.Artists)
	assert.Equal(t, 215000, got.DurationMs)
	assert.Equal(t, "s.jpg", got.ArtworkS)
	assert.Equal(t, "m.jpg", got.ArtworkM)
	assert.Equal(t, "l.jpg", got.ArtworkL)

	uri, ok := got.SpotifyURI()
	assert.True(t, ok)
	assert.Equal(t, "spotify:track:abc", uri)
}

func TestArtworkSizes(t *testing.T) {
	tests := []struct {
		name   string
		images []spotify.Image
		small  string
		medium string
		large  string
	}{
		{name: "no images"},
		{
			name:   "single image",
			images: []spotify.Image{{URL: "only.jpg", Width: 640}},
			small:  "only.jpg",
			medium: "only.jpg",
			large:  "only.jpg",
		},
		{
			name:   "missing medium",
			images: []spotify.Image{{URL: "l.jpg", Width: 640}, {URL: "s.jpg", Width: 64}},
			small:  "s.jpg",
			medium: "l.jpg",
			large:  "l.jpg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, m, l := artworkSizes(tt.images)
			assert.Equal(t, tt.small, s)
			assert.Equal(t, tt.medium, m)
			assert.Equal(t, tt.large, l)
		})
	}
}

func TestClient_GetTracks(t *testing.T) {
	var query string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query().Get("ids") + " " + r.URL.Query().Get("market")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"tracks":[
			{"id":"a","name":"A","duration_ms":1000,"artists":[{"name":"X"}],"album":{"images":[]}},
			null
		]}`)
	}))
	defer server.Close()

	c := newClient(server.Client(), Config{BaseURL: server.URL + "/"})
	found, err := c.GetTracks(context.Background(), []string{"spotify:track:a", "https://open.spotify.com/track/b", "a"})
	require.NoError(t, err)

	assert.Equal(t, "a,b JP", query)
	require.Len(t, found, 2)
	assert.Equal(t, "A", found["spotify:track:a"].Name)
	assert.Equal(t, 1000, found["a"].DurationMs)
	_, ok := found["https://open.spotify.com/track/b"]
	assert.False(t, ok)
}
