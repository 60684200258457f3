// Package playback provides the player controller: the state machine that owns
// one remote device session and the lifecycle of the track loaded into it.
package playback

// State represents the player state.
type State int

const (
	StateInitializing State = iota // Waiting for a refresh credential
	StateIdle                      // Credential present, nothing loaded
	StateConnecting                // listening: opening a device session
	StateLoading                   // listening: track sent to the device
	StatePlaying                   // listening: device is playing
	StatePaused                    // listening: device is paused
	StateStopped                   // Session ended
	StateFinished                  // Track ended or was unplayable
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "listening.connecting"
	case StateLoading:
		return "listening.loading"
	case StatePlaying:
		return "listening.playing"
	case StatePaused:
		return "listening.paused"
	case StateStopped:
		return "stopped"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Listening reports whether s is a sub-state of listening,
// i.e. a device session is open.
func (s State) Listening() bool {
	switch s {
	case StateConnecting, StateLoading, StatePlaying, StatePaused:
		return true
	default:
		return false
	}
}
