// Package mpris exposes the jukebox as an MPRIS media player on the session bus,
// so desktop media keys and now-playing widgets can drive it.
package mpris

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/jukebox/internal/app/mediasession"
)

// ErrActionUnavailable is returned when no handler is registered for a media key.
var ErrActionUnavailable = errors.New("action not available")

// Session is the media session state shared with the D-Bus adapters.
type Session struct {
	identity string

	mu       sync.RWMutex
	handlers map[mediasession.Action]func()
	metadata mediasession.Metadata
	status   mediasession.PlaybackStatus
	position func() time.Duration
}

// NewSession creates a session announced under identity.
func NewSession(identity string) *Session {
	return &Session{
		identity: identity,
		handlers: make(map[mediasession.Action]func()),
		status:   mediasession.StatusStopped,
	}
}

// SetActionHandler registers h for a. A nil h removes the handler.
func (s *Session) SetActionHandler(a mediasession.Action, h func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h == nil {
		delete(s.handlers, a)
		return
	}
	s.handlers[a] = h
}

// SetMetadata sets the now-playing metadata.
func (s *Session) SetMetadata(m mediasession.Metadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metadata = m
}

// SetPlaybackStatus sets the reported playback status.
func (s *Session) SetPlaybackStatus(st mediasession.PlaybackStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = st
}

// SetPositionFunc sets the source of the reported playback position.
func (s *Session) SetPositionFunc(f func() time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.position = f
}

func (s *Session) trigger(a mediasession.Action) error {
	s.mu.RLock()
	h := s.handlers[a]
	s.mu.RUnlock()

	if h == nil {
		return errors.Wrapf(ErrActionUnavailable, "action=%s", a)
	}
	h()
	return nil
}

func (s *Session) has(a mediasession.Action) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handlers[a] != nil
}

func (s *Session) current() (mediasession.Metadata, mediasession.PlaybackStatus) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.metadata, s.status
}

func (s *Session) currentPosition() time.Duration {
	s.mu.RLock()
	f := s.position
	s.mu.RUnlock()
	if f == nil {
		return 0
	}
	return f()
}
