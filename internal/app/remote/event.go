package remote

// EventType represents an adapter event type.
type EventType int

const (
	EventIdle        EventType = iota // Refresh credential found
	EventDeviceReady                  // Device id assigned
	EventConnected                    // Device connected and ready for playback
	EventPosition                     // Position correction reported by the device
	EventPlaying                      // Device reports playing
	EventPaused                       // Explicit pause succeeded
	EventStopped                      // Session ended (no credential, ceiling, connect failure)
	EventFinished                     // Track ended or is unplayable on this device
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventIdle:
		return "IDLE"
	case EventDeviceReady:
		return "SET_DEVICE_ID"
	case EventConnected:
		return "CONNECTED"
	case EventPosition:
		return "SET_SEEK"
	case EventPlaying:
		return "PLAYING"
	case EventPaused:
		return "PAUSED"
	case EventStopped:
		return "STOPPED"
	case EventFinished:
		return "FINISHED"
	default:
		return "UNKNOWN"
	}
}

// Event is emitted by adapter services back to their owner.
type Event struct {
	Type       EventType
	DeviceID   string // EventDeviceReady
	PositionMs int    // EventPosition
}

// Emit delivers an adapter event. Implementations must not block.
type Emit func(Event)
