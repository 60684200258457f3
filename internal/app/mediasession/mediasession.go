// Package mediasession defines the OS-level media integration: hardware media
// keys coming in, now-playing metadata and status going out.
package mediasession

import "time"

// Action is a hardware media key.
type Action string

const (
	ActionPlay          Action = "play"
	ActionPause         Action = "pause"
	ActionPlayPause     Action = "playpause"
	ActionStop          Action = "stop"
	ActionNextTrack     Action = "nexttrack"
	ActionPreviousTrack Action = "previoustrack"
)

// PlaybackStatus is the status shown by the OS.
type PlaybackStatus string

const (
	StatusPlaying PlaybackStatus = "Playing"
	StatusPaused  PlaybackStatus = "Paused"
	StatusStopped PlaybackStatus = "Stopped"
)

// Metadata describes the current track.
type Metadata struct {
	TrackID    string
	Title      string
	Artists    []string
	ArtworkURL string
	Length     time.Duration
}

// Session is the OS media surface.
type Session interface {
	// SetActionHandler registers h for a. A nil h removes the handler.
	SetActionHandler(a Action, h func())
	SetMetadata(m Metadata)
	SetPlaybackStatus(s PlaybackStatus)
}

// Noop is a Session that ignores everything.
type Noop struct{}

func (Noop) SetActionHandler(Action, func()) {}

func (Noop) SetMetadata(Metadata) {}

func (Noop) SetPlaybackStatus(PlaybackStatus) {}
