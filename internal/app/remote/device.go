package remote

import "context"

// DeviceState is the payload of a device state-changed callback.
type DeviceState struct {
	Paused         bool
	PositionMs     int
	PreviousTracks int
}

// Listener receives device callbacks. Either field may be nil.
type Listener struct {
	Ready        func(deviceID string)
	StateChanged func(state DeviceState)
}

// Device is one connected playback device instance.
type Device interface {
	// Connect starts the device. Ready is reported through the Listener.
	Connect(ctx context.Context) error
	// Disconnect releases the device. It is safe to call more than once.
	Disconnect()
}

// Controls issues playback commands to a device on behalf of one access token.
type Controls interface {
	Play(ctx context.Context, deviceID, uri string) error
	Resume(ctx context.Context) error
	Pause(ctx context.Context) error
	Seek(ctx context.Context, positionMs int) error
	SetVolume(ctx context.Context, percent int) error
}

// SDK is the external playback SDK.
type SDK interface {
	// Load prepares the SDK. It is called at most once per adapter.
	Load(ctx context.Context) error
	// NewDevice creates a device with the given name.
	// token is consulted whenever the device needs an access token.
	NewDevice(name string, token func() string, l Listener) Device
	// Controls returns a command client for the access token.
	Controls(accessToken string) Controls
}

// Login performs the login/token-refresh exchange.
// On success the access token is available in the credential store.
type Login interface {
	Login(ctx context.Context) error
}
