package playback

import "github.com/osa030/jukebox/internal/domain/track"

// CommandType represents a command accepted by the controller.
type CommandType int

const (
	CommandLoad         CommandType = iota // Open a new session and play the current track
	CommandPlay                            // Resume, or reload from stopped/finished
	CommandPause                           // Pause the device
	CommandStop                            // Stop the device and end the session
	CommandChangeSeek                      // Seek the device
	CommandTick                            // Advance the local position by one second
	CommandSetTrack                        // Replace the track without side effects
	CommandSetSeek                         // Replace the position without side effects
	CommandSetDeviceID                     // Replace the device id without side effects
)

// String returns the string representation of the command type.
func (c CommandType) String() string {
	switch c {
	case CommandLoad:
		return "LOAD"
	case CommandPlay:
		return "PLAY"
	case CommandPause:
		return "PAUSE"
	case CommandStop:
		return "STOP"
	case CommandChangeSeek:
		return "CHANGE_SEEK"
	case CommandTick:
		return "TICK"
	case CommandSetTrack:
		return "SET_TRACK"
	case CommandSetSeek:
		return "SET_SEEK"
	case CommandSetDeviceID:
		return "SET_DEVICE_ID"
	default:
		return "UNKNOWN"
	}
}

// Command is sent to the controller.
type Command struct {
	Type     CommandType
	Track    *track.Track // CommandSetTrack; nil clears the track
	Seek     int          // CommandChangeSeek, CommandSetSeek (ms)
	DeviceID string       // CommandSetDeviceID
}

// SignalType represents a lifecycle signal reported to the parent.
type SignalType int

const (
	SignalLoading  SignalType = iota // Entered loading
	SignalPlaying                    // Entered playing
	SignalPaused                     // Entered paused
	SignalStopped                    // Entered stopped
	SignalFinished                   // Entered finished
	SignalSeek                       // Position changed
)

// String returns the string representation of the signal type.
func (s SignalType) String() string {
	switch s {
	case SignalLoading:
		return "LOADING"
	case SignalPlaying:
		return "PLAYING"
	case SignalPaused:
		return "PAUSED"
	case SignalStopped:
		return "STOPPED"
	case SignalFinished:
		return "FINISHED"
	case SignalSeek:
		return "SET_SEEK"
	default:
		return "UNKNOWN"
	}
}

// Signal is broadcast to subscribers.
type Signal struct {
	Type SignalType
	Seek int // SignalSeek (ms)
}

// Snapshot is a consistent copy of the controller context.
type Snapshot struct {
	State    State
	Track    *track.Track
	Seek     int
	DeviceID string
}
