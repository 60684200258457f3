// Package credential defines the named-token store the playback core polls.
package credential

import (
	"context"
	"sync"
)

// Token names shared by the login exchange and the remote player.
const (
	SpotifyAccessToken  = "spotify_access_token"
	SpotifyRefreshToken = "spotify_refresh_token"
)

// Store is a get/set store of named string tokens.
// Absence is an expected, transient state: Get reports it as ok=false and
// backend failures are reported the same way.
type Store interface {
	Get(ctx context.Context, name string) (string, bool)
	Set(ctx context.Context, name, value string) error
}

// MemoryStore keeps tokens in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[string]string)}
}

// Get returns the token for name. Empty values count as absent.
func (s *MemoryStore) Get(_ context.Context, name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.tokens[name]
	return v, ok && v != ""
}

// Set stores a token. An empty value deletes it.
func (s *MemoryStore) Set(_ context.Context, name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if value == "" {
		delete(s.tokens, name)
		return nil
	}
	s.tokens[name] = value
	return nil
}
