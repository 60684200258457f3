package jukebox

import (
	"github.com/cockroachdb/errors"

	"github.com/osa030/jukebox/internal/domain/track"
)

// EventType represents a jukebox event type.
type EventType int

const (
	// Queue
	EventSetName EventType = iota
	EventReplaceAndPlay
	EventMove
	EventRemove
	EventShuffle

	// Transport
	EventPlay
	EventPlayOrPause
	EventChangePlaybackNo
	EventNextPlay
	EventPreviousPlay
	EventPause
	EventStop
	EventRepeat
	EventChangeSeek

	// Reported by the player
	EventLoading
	EventPlaying
	EventPaused
	EventStopped
	EventFinished
	EventSetSeek
)

var eventNames = map[EventType]string{
	EventSetName:          "SET_NAME",
	EventReplaceAndPlay:   "REPLACE_AND_PLAY",
	EventMove:             "MOVE",
	EventRemove:           "REMOVE",
	EventShuffle:          "SHUFFLE",
	EventPlay:             "PLAY",
	EventPlayOrPause:      "PLAY_OR_PAUSE",
	EventChangePlaybackNo: "CHANGE_PLAYBACK_NO",
	EventNextPlay:         "NEXT_PLAY",
	EventPreviousPlay:     "PREVIOUS_PLAY",
	EventPause:            "PAUSE",
	EventStop:             "STOP",
	EventRepeat:           "REPEAT",
	EventChangeSeek:       "CHANGE_SEEK",
	EventLoading:          "LOADING",
	EventPlaying:          "PLAYING",
	EventPaused:           "PAUSED",
	EventStopped:          "STOPPED",
	EventFinished:         "FINISHED",
	EventSetSeek:          "SET_SEEK",
}

// String returns the string representation of the event type.
func (e EventType) String() string {
	if name, ok := eventNames[e]; ok {
		return name
	}
	return "UNKNOWN"
}

// IsCommand reports whether e belongs to the command vocabulary offered to
// collaborators, as opposed to signals reported by the player.
func (e EventType) IsCommand() bool {
	return e >= EventSetName && e <= EventChangeSeek
}

// ParseCommand returns the command with the given name.
func ParseCommand(name string) (EventType, error) {
	for t, n := range eventNames {
		if n == name && t.IsCommand() {
			return t, nil
		}
	}
	return 0, errors.Newf("unknown command: %s", name)
}

// Commands returns the command vocabulary in declaration order.
func Commands() []EventType {
	commands := make([]EventType, 0, EventChangeSeek+1)
	for t := EventSetName; t <= EventChangeSeek; t++ {
		commands = append(commands, t)
	}
	return commands
}

// Event is sent to the jukebox.
type Event struct {
	Type              EventType
	Name              string        // EventSetName
	Tracks            []track.Track // EventReplaceAndPlay, EventMove
	CurrentPlaybackNo int           // EventReplaceAndPlay, EventChangePlaybackNo
	RemoveIndex       int           // EventRemove
	Seek              int           // EventChangeSeek, EventSetSeek (ms)
}
