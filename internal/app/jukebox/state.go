// Package jukebox provides the queue controller: the top-level state machine
// that owns the track queue and the single player it drives.
package jukebox

import "github.com/osa030/jukebox/internal/domain/track"

// State represents the jukebox state.
type State int

const (
	StateIdle    State = iota // Player spawned, nothing requested yet
	StateLoading              // Current track sent to the player
	StatePlaying              // Player reported playing
	StatePaused               // Player reported paused
	StateStopped              // Player reported stopped
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Snapshot is a consistent copy of the jukebox context.
// Tracks must not be modified.
type Snapshot struct {
	State             State
	Name              string
	Tracks            []track.Track
	CurrentPlaybackNo int
	CurrentTrack      *track.Track
	Repeat            bool
	Seek              int
}
