package spotify

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"

	"github.com/osa030/jukebox/internal/app/remote"
)

// SDKConfig configures the Connect device SDK.
type SDKConfig struct {
	ClientID     string
	PollInterval time.Duration // Device discovery and player state polling interval
	BaseURL      string        // API base URL, empty for the public endpoint
}

// SDK attaches to Spotify Connect receivers through the Web API.
// A device is a receiver (librespot, spotifyd, a speaker) registered under the
// configured name; it becomes ready once it shows up in the device list.
type SDK struct {
	config SDKConfig
}

// NewSDK creates a new SDK.
func NewSDK(cfg SDKConfig) *SDK {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &SDK{config: cfg}
}

// Load checks the SDK configuration.
func (s *SDK) Load(context.Context) error {
	if s.config.ClientID == "" {
		return errors.New("spotify client id is required")
	}
	return nil
}

// NewDevice creates a device that waits for a receiver called name.
func (s *SDK) NewDevice(name string, token func() string, l remote.Listener) remote.Device {
	return &ConnectDevice{
		name:     name,
		client:   s.client(accessTokenSource(token)),
		interval: s.config.PollInterval,
		listener: l,
	}
}

// Controls returns a command client for the access token.
func (s *SDK) Controls(accessToken string) remote.Controls {
	return &Controls{
		client: s.client(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})),
	}
}

func (s *SDK) client(ts oauth2.TokenSource) *spotify.Client {
	httpClient := oauth2.NewClient(context.Background(), ts)
	var opts []spotify.ClientOption
	if s.config.BaseURL != "" {
		opts = append(opts, spotify.WithBaseURL(s.config.BaseURL))
	}
	return spotify.New(httpClient, opts...)
}

// accessTokenSource reads the current access token on every request.
type accessTokenSource func() string

func (f accessTokenSource) Token() (*oauth2.Token, error) {
	token := f()
	if token == "" {
		return nil, errors.New("no access token")
	}
	return &oauth2.Token{AccessToken: token, TokenType: "Bearer"}, nil
}

// playerState is the part of the player state the device reports.
type playerState struct {
	playing    bool
	positionMs int
	trackID    spotify.ID
}

// ConnectDevice is one attachment to a Connect receiver.
type ConnectDevice struct {
	name     string
	client   *spotify.Client
	interval time.Duration
	listener remote.Listener

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Connect starts polling for the receiver. Ready is reported once it is listed,
// after which player state changes are forwarded to the listener.
func (d *ConnectDevice) Connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		return errors.New("device already connected")
	}

	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})
	go d.run(ctx)
	return nil
}

// Disconnect stops polling and waits for the poller to exit.
func (d *ConnectDevice) Disconnect() {
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (d *ConnectDevice) run(ctx context.Context) {
	defer close(d.done)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	var deviceID spotify.ID
	var last *playerState
	for {
		if deviceID == "" {
			deviceID = d.discover(ctx)
			if deviceID != "" && d.listener.Ready != nil {
				d.listener.Ready(string(deviceID))
			}
		} else {
			last = d.poll(ctx, deviceID, last)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (d *ConnectDevice) discover(ctx context.Context) spotify.ID {
	devices, err := d.client.PlayerDevices(ctx)
	if err != nil {
		if ctx.Err() == nil {
			zlog.Debug().Err(err).Msg("spotify: failed to list devices")
		}
		return ""
	}
	for _, dev := range devices {
		if dev.Name == d.name && !dev.Restricted {
			zlog.Debug().Msgf("spotify: device found: name=%s id=%s", dev.Name, dev.ID)
			return dev.ID
		}
	}
	return ""
}

// poll reads the player state and forwards it when it differs from last.
// The first observation is the baseline and is not forwarded. While playing
// every poll is forwarded so position drift is corrected.
func (d *ConnectDevice) poll(ctx context.Context, deviceID spotify.ID, last *playerState) *playerState {
	ps, err := d.client.PlayerState(ctx)
	if err != nil {
		if ctx.Err() == nil {
			zlog.Debug().Err(err).Msg("spotify: failed to read player state")
		}
		return last
	}

	cur, ok := toPlayerState(ps, deviceID)
	if !ok {
		return last
	}
	if last != nil && changed(*last, cur) && d.listener.StateChanged != nil {
		d.listener.StateChanged(remote.DeviceState{
			Paused:     !cur.playing,
			PositionMs: cur.positionMs,
		})
	}
	return &cur
}

// toPlayerState reduces a player state. It reports false while playback is
// on another device or no device is active; such observations are not ours
// and must not be read as the end of a track.
func toPlayerState(ps *spotify.PlayerState, deviceID spotify.ID) (playerState, bool) {
	if ps == nil || ps.Device.ID != deviceID {
		return playerState{}, false
	}
	s := playerState{
		playing:    ps.Playing,
		positionMs: int(ps.Progress),
	}
	if ps.Item != nil {
		s.trackID = ps.Item.ID
	}
	return s, true
}

func changed(last, cur playerState) bool {
	return cur.playing || last.playing != cur.playing ||
		last.trackID != cur.trackID || last.positionMs != cur.positionMs
}

// Controls issues playback commands through the Web API.
type Controls struct {
	client *spotify.Client
}

// Play starts uri on deviceID.
func (c *Controls) Play(ctx context.Context, deviceID, uri string) error {
	id := spotify.ID(deviceID)
	err := c.client.PlayOpt(ctx, &spotify.PlayOptions{
		DeviceID: &id,
		URIs:     []spotify.URI{spotify.URI(uri)},
	})
	return wrapCommand(err, "play")
}

// Resume resumes playback on the active device.
func (c *Controls) Resume(ctx context.Context) error {
	return wrapCommand(c.client.Play(ctx), "resume")
}

// Pause pauses playback on the active device.
func (c *Controls) Pause(ctx context.Context) error {
	return wrapCommand(c.client.Pause(ctx), "pause")
}

// Seek seeks the active device.
func (c *Controls) Seek(ctx context.Context, positionMs int) error {
	return wrapCommand(c.client.Seek(ctx, positionMs), "seek")
}

// SetVolume sets the volume of the active device.
func (c *Controls) SetVolume(ctx context.Context, percent int) error {
	return wrapCommand(c.client.Volume(ctx, percent), "volume")
}

func wrapCommand(err error, name string) error {
	if err == nil {
		return nil
	}
	var apiErr spotify.Error
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return errors.Wrapf(err, "%s: no active device", name)
	}
	return errors.Wrapf(err, "%s failed", name)
}
