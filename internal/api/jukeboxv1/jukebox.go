// Package jukeboxv1 defines the wire messages of the jukebox.v1 RPC API.
package jukeboxv1

// NotificationType identifies why a notification was sent.
type NotificationType string

const (
	NotificationTypeInitialState NotificationType = "INITIAL_STATE"
	NotificationTypeChangeState  NotificationType = "CHANGE_STATE"
)

// Track is a track as seen by clients.
type Track struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Artists    []string `json:"artists,omitempty"`
	ArtworkURL string   `json:"artworkUrl,omitempty"`
	DurationMs int32    `json:"durationMs"`
	SpotifyURI string   `json:"spotifyUri,omitempty"`
}

// Status is the observable jukebox state.
type Status struct {
	State             string   `json:"state"`
	Name              string   `json:"name"`
	Tracks            []*Track `json:"tracks"`
	CurrentPlaybackNo int32    `json:"currentPlaybackNo"`
	CurrentTrack      *Track   `json:"currentTrack,omitempty"`
	Repeat            bool     `json:"repeat"`
	SeekMs            int32    `json:"seekMs"`
	PlayerState       string   `json:"playerState,omitempty"`
	DeviceID          string   `json:"deviceId,omitempty"`
}

// Notification is one message of the status stream.
type Notification struct {
	Type       NotificationType `json:"type"`
	SequenceNo uint64           `json:"sequenceNo"`
	Status     *Status          `json:"status"`
}

// DispatchRequest carries one command-vocabulary event.
// Track ids are resolved server side before the event is queued.
type DispatchRequest struct {
	Type              string   `json:"type"`
	Name              string   `json:"name,omitempty"`
	TrackIDs          []string `json:"trackIds,omitempty"`
	CurrentPlaybackNo int32    `json:"currentPlaybackNo,omitempty"`
	RemoveIndex       int32    `json:"removeIndex,omitempty"`
	SeekMs            int32    `json:"seekMs,omitempty"`
}

// DispatchResponse acknowledges a queued event.
type DispatchResponse struct {
	Accepted bool   `json:"accepted"`
	Message  string `json:"message,omitempty"`
}

type GetStatusRequest struct{}

type GetStatusResponse struct {
	Status *Status `json:"status"`
}

type SubscribeStatusRequest struct{}
