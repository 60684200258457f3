// Package remote wraps an external, asynchronously-initializing playback device
// behind a uniform set of cancellable services and commands.
package remote

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/jukebox/internal/app/credential"
	"github.com/osa030/jukebox/internal/domain/track"
)

const commandTimeout = 10 * time.Second

// Config holds adapter configuration.
type Config struct {
	DeviceName     string        // Name the device registers under
	PollInterval   time.Duration // Credential polling interval
	SessionCeiling time.Duration // Maximum lifetime of one device session
	Volume         int           // Volume applied after a track is loaded (percent)
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		DeviceName:     "Jukebox",
		PollInterval:   time.Second,
		SessionCeiling: 55 * time.Minute,
		Volume:         30,
	}
}

// Adapter drives one remote playback device.
// Long-running operations are services: they report through an Emit and
// return a cancel function that must be called when the owning state exits.
type Adapter struct {
	config Config
	store  credential.Store
	sdk    SDK
	login  Login

	sdkOnce sync.Once
	sdkDone chan struct{}
}

// NewAdapter creates a new adapter.
func NewAdapter(config Config, store credential.Store, sdk SDK, login Login) *Adapter {
	defaults := DefaultConfig()
	if config.DeviceName == "" {
		config.DeviceName = defaults.DeviceName
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.SessionCeiling <= 0 {
		config.SessionCeiling = defaults.SessionCeiling
	}
	if config.Volume <= 0 {
		config.Volume = defaults.Volume
	}
	return &Adapter{
		config:  config,
		store:   store,
		sdk:     sdk,
		login:   login,
		sdkDone: make(chan struct{}),
	}
}

// PollCredentials polls the store until a refresh token exists, then emits EventIdle once.
func (a *Adapter) PollCredentials(emit Emit) func() {
	return every(a.config.PollInterval, func(ctx context.Context) bool {
		if !a.hasRefreshToken(ctx) {
			return true
		}
		zlog.Debug().Msg("remote: refresh token found")
		emit(Event{Type: EventIdle})
		return false
	})
}

// LoadSDK loads the external SDK in the background. Only the first call has an effect.
func (a *Adapter) LoadSDK() {
	a.sdkOnce.Do(func() {
		go func() {
			defer close(a.sdkDone)

			ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
			defer cancel()

			if err := a.sdk.Load(ctx); err != nil {
				zlog.Warn().Err(err).Msg("remote: failed to load sdk")
				return
			}
			zlog.Info().Msg("remote: sdk loaded")
		}()
	})
}

// Connect opens a new device session in the background.
// Without a refresh token it emits EventStopped and starts nothing.
// Otherwise it logs in, creates the device, and arms the session ceiling;
// when the ceiling passes the device is disconnected and EventStopped emitted.
// The returned cancel function clears the ceiling and disconnects the device.
func (a *Adapter) Connect(emit Emit) func() {
	ctx, cancel := context.WithCancel(context.Background())

	s := &deviceSession{id: uuid.NewString()}
	guarded := func(e Event) {
		if ctx.Err() == nil {
			emit(e)
		}
	}

	go a.openDevice(ctx, s, guarded)

	stopCeiling := afterWallClock(a.config.SessionCeiling, func() {
		zlog.Info().Msgf("remote: session ceiling reached, disconnecting: session=%s ceiling=%v",
			s.id, a.config.SessionCeiling)
		s.disconnect()
		guarded(Event{Type: EventStopped})
	})

	var once sync.Once
	return func() {
		once.Do(func() {
			stopCeiling()
			cancel()
			s.close()
			zlog.Debug().Msgf("remote: session closed: session=%s", s.id)
		})
	}
}

func (a *Adapter) openDevice(ctx context.Context, s *deviceSession, emit Emit) {
	if !a.hasRefreshToken(ctx) {
		if ctx.Err() == nil {
			zlog.Info().Msgf("remote: no refresh token, session not started: session=%s", s.id)
		}
		emit(Event{Type: EventStopped})
		return
	}

	if err := a.login.Login(ctx); err != nil {
		if ctx.Err() == nil {
			zlog.Warn().Err(err).Msg("remote: login failed")
		}
		emit(Event{Type: EventStopped})
		return
	}

	accessToken, ok := a.store.Get(ctx, credential.SpotifyAccessToken)
	if !ok {
		zlog.Info().Msg("remote: no access token after login")
		emit(Event{Type: EventStopped})
		return
	}

	// The SDK must be loaded before a device can be created.
	a.LoadSDK()
	select {
	case <-a.sdkDone:
	case <-ctx.Done():
		return
	}

	device := a.sdk.NewDevice(a.config.DeviceName, func() string { return accessToken }, Listener{
		Ready: func(deviceID string) {
			zlog.Info().Msgf("remote: device ready: session=%s device=%s", s.id, deviceID)
			emit(Event{Type: EventDeviceReady, DeviceID: deviceID})
			emit(Event{Type: EventConnected})
		},
		StateChanged: func(state DeviceState) {
			for _, e := range stateEvents(state) {
				emit(e)
			}
		},
	})
	if !s.attach(device) {
		return
	}

	if err := device.Connect(ctx); err != nil {
		if ctx.Err() == nil {
			zlog.Warn().Err(err).Msgf("remote: device connect failed: session=%s", s.id)
		}
		s.disconnect()
		emit(Event{Type: EventStopped})
	}
}

// stateEvents translates a device state report.
// A paused report at position 0 with no track history means the track ended;
// a paused report with history is left to explicit pause handling.
func stateEvents(state DeviceState) []Event {
	events := []Event{{Type: EventPosition, PositionMs: state.PositionMs}}
	switch {
	case state.Paused && state.PreviousTracks == 0 && state.PositionMs == 0:
		events = append(events, Event{Type: EventFinished})
	case !state.Paused:
		events = append(events, Event{Type: EventPlaying})
	}
	return events
}

// Load plays t on the device.
// With no playable handle or no device id it emits EventFinished immediately.
// A rejected play command is also reported as EventFinished.
func (a *Adapter) Load(t track.Track, deviceID string, emit Emit) func() {
	uri, ok := t.SpotifyURI()
	if !ok || deviceID == "" {
		zlog.Info().Msgf("remote: track not playable on device: track=%s device=%q", t.ID, deviceID)
		emit(Event{Type: EventFinished})
		return func() {}
	}

	var mu sync.Mutex
	active := true
	guarded := func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		if active {
			emit(e)
		}
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		controls, ok := a.controls(ctx)
		if !ok {
			guarded(Event{Type: EventFinished})
			return
		}
		if err := controls.Play(ctx, deviceID, uri); err != nil {
			zlog.Warn().Err(err).Msgf("remote: play failed: track=%s device=%s", t.ID, deviceID)
			guarded(Event{Type: EventFinished})
			return
		}
		if err := controls.SetVolume(ctx, a.config.Volume); err != nil {
			zlog.Warn().Err(err).Msg("remote: set volume failed")
		}
		guarded(Event{Type: EventPosition, PositionMs: 0})
	}()

	return func() {
		mu.Lock()
		defer mu.Unlock()
		active = false
	}
}

// Resume resumes playback. Failures are logged.
func (a *Adapter) Resume() {
	a.command("resume", func(ctx context.Context, c Controls) error {
		return c.Resume(ctx)
	}, nil)
}

// Pause pauses playback and emits EventPaused on success. Failures are logged.
func (a *Adapter) Pause(emit Emit) {
	a.command("pause", func(ctx context.Context, c Controls) error {
		return c.Pause(ctx)
	}, func() {
		emit(Event{Type: EventPaused})
	})
}

// Stop halts playback. Failures, such as pausing an already stopped device, are logged.
func (a *Adapter) Stop() {
	a.command("stop", func(ctx context.Context, c Controls) error {
		return c.Pause(ctx)
	}, nil)
}

// Seek seeks the device. Failures, including a missing access token, are logged.
func (a *Adapter) Seek(positionMs int) {
	a.command("seek", func(ctx context.Context, c Controls) error {
		return c.Seek(ctx, positionMs)
	}, nil)
}

func (a *Adapter) command(name string, fn func(context.Context, Controls) error, onSuccess func()) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		controls, ok := a.controls(ctx)
		if !ok {
			zlog.Debug().Msgf("remote: %s skipped, no access token", name)
			return
		}
		if err := fn(ctx, controls); err != nil {
			zlog.Warn().Err(err).Msgf("remote: %s failed", name)
			return
		}
		if onSuccess != nil {
			onSuccess()
		}
	}()
}

func (a *Adapter) hasRefreshToken(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	_, ok := a.store.Get(ctx, credential.SpotifyRefreshToken)
	return ok
}

func (a *Adapter) controls(ctx context.Context) (Controls, bool) {
	token, ok := a.store.Get(ctx, credential.SpotifyAccessToken)
	if !ok {
		return nil, false
	}
	return a.sdk.Controls(token), true
}

// deviceSession tracks the device of one connection.
type deviceSession struct {
	id string

	mu     sync.Mutex
	device Device
	closed bool
}

// attach records the device. If the session is already closed the device is
// disconnected and attach returns false.
func (s *deviceSession) attach(d Device) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		d.Disconnect()
		return false
	}
	s.device = d
	s.mu.Unlock()
	return true
}

// disconnect releases the device but leaves the session open.
func (s *deviceSession) disconnect() {
	s.mu.Lock()
	d := s.device
	s.device = nil
	s.mu.Unlock()

	if d != nil {
		d.Disconnect()
	}
}

// close disconnects and rejects any device attached later.
func (s *deviceSession) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.disconnect()
}
