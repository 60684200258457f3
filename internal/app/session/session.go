// Package session provides the application context: it builds the queue
// controller, its player and their collaborators from configuration and
// exposes them to the RPC layer.
package session

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	jukeboxv1 "github.com/osa030/jukebox/internal/api/jukeboxv1"
	"github.com/osa030/jukebox/internal/app/credential"
	"github.com/osa030/jukebox/internal/app/fsm"
	"github.com/osa030/jukebox/internal/app/jukebox"
	"github.com/osa030/jukebox/internal/app/mediasession"
	"github.com/osa030/jukebox/internal/app/notification"
	"github.com/osa030/jukebox/internal/app/playback"
	"github.com/osa030/jukebox/internal/app/remote"
	"github.com/osa030/jukebox/internal/app/shuffle"
	"github.com/osa030/jukebox/internal/domain/track"
	"github.com/osa030/jukebox/internal/infra/config"
)

var (
	ErrSessionNotRunning = errors.New("session is not running")
	ErrInvalidCommand    = errors.New("invalid command")
)

// Resolver turns track ids into tracks in the requested order.
type Resolver interface {
	Resolve(ctx context.Context, ids []string) ([]track.Track, error)
}

// Deps are the collaborators the session cannot build from configuration.
type Deps struct {
	Store   credential.Store
	SDK     remote.SDK
	Login   remote.Login
	Library Resolver
	Media   mediasession.Session // Optional
}

// Command is one command-vocabulary event as received from a client.
type Command struct {
	Type              string
	Name              string
	TrackIDs          []string
	CurrentPlaybackNo int
	RemoveIndex       int
	Seek              int
}

// Session owns the running jukebox.
type Session struct {
	config       *config.Config
	jukebox      *jukebox.Jukebox
	library      Resolver
	notification *notification.Manager

	mu      sync.RWMutex
	player  *playback.Controller
	started bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a session. Nothing runs until Start is called.
func New(cfg *config.Config, deps Deps) (*Session, error) {
	if deps.Store == nil || deps.SDK == nil || deps.Login == nil || deps.Library == nil {
		return nil, errors.New("session: store, sdk, login and library are required")
	}

	policy, err := shuffle.New(cfg.Shuffle.Type, cfg.Shuffle.Settings)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create shuffle policy")
	}

	adapter := remote.NewAdapter(remote.Config{
		DeviceName:     cfg.Player.DeviceName,
		PollInterval:   cfg.Player.PollInterval(),
		SessionCeiling: cfg.Player.SessionCeiling(),
		Volume:         cfg.Player.Volume,
	}, deps.Store, deps.SDK, deps.Login)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		config:       cfg,
		library:      deps.Library,
		notification: notification.NewManager(),
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}

	s.jukebox = jukebox.New(jukebox.Config{
		Name:        cfg.Jukebox.Name,
		AutoAdvance: cfg.Jukebox.AutoAdvanceEnabled(),
		MediaKeys:   cfg.Jukebox.MediaKeys,
	}, func() jukebox.Player {
		p := playback.NewController(playerConfig(cfg), adapter)
		s.mu.Lock()
		s.player = p
		s.mu.Unlock()
		return p
	}, policy, deps.Media)

	return s, nil
}

// playerConfig builds the controller configuration. The tick interval is
// independent of the polling interval and always matches the TICK step.
func playerConfig(cfg *config.Config) playback.Config {
	return playback.Config{
		SelfTick:     cfg.Player.SelfTickEnabled(),
		TickInterval: playback.TickInterval,
	}
}

// Start resolves the initial tracks, starts the jukebox and begins
// broadcasting status changes. A session whose Start failed is done.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("session already started")
	}
	s.started = true
	s.mu.Unlock()

	var initial []track.Track
	if ids := s.config.Jukebox.InitialTracks; len(ids) > 0 {
		tracks, err := s.library.Resolve(ctx, ids)
		if err != nil {
			s.jukebox.Close()
			close(s.done)
			return errors.Wrap(err, "failed to resolve initial tracks")
		}
		initial = tracks
		zlog.Info().Msgf("session: initial tracks resolved: count=%d", len(initial))
	}

	sub := s.jukebox.Subscribe()
	s.jukebox.Start(s.ctx)
	go s.statusLoop(sub)

	if len(initial) > 0 {
		s.jukebox.Send(jukebox.Event{
			Type:              jukebox.EventReplaceAndPlay,
			Tracks:            initial,
			CurrentPlaybackNo: s.config.Jukebox.InitialPlaybackNo,
		})
	}

	zlog.Info().Msgf("session: started: name=%s", s.config.Jukebox.Name)
	return nil
}

// statusLoop broadcasts every jukebox snapshot until the jukebox stops.
func (s *Session) statusLoop(sub *fsm.Subscription[jukebox.Snapshot]) {
	defer close(s.done)
	defer sub.Close()

	for snap := range sub.C() {
		s.notification.Broadcast(s.toStatus(snap))
	}
	<-s.jukebox.Done()
	zlog.Debug().Msg("session: status loop stopped")
}

// Dispatch validates a command, resolves its track ids and queues it.
func (s *Session) Dispatch(ctx context.Context, cmd Command) error {
	if !s.running() {
		return ErrSessionNotRunning
	}

	typ, err := jukebox.ParseCommand(cmd.Type)
	if err != nil {
		return errors.Wrap(ErrInvalidCommand, err.Error())
	}

	e := jukebox.Event{
		Type:              typ,
		Name:              cmd.Name,
		CurrentPlaybackNo: cmd.CurrentPlaybackNo,
		RemoveIndex:       cmd.RemoveIndex,
		Seek:              cmd.Seek,
	}

	switch typ {
	case jukebox.EventReplaceAndPlay, jukebox.EventMove:
		if len(cmd.TrackIDs) > 0 {
			tracks, err := s.library.Resolve(ctx, cmd.TrackIDs)
			if err != nil {
				return errors.Wrap(err, "failed to resolve tracks")
			}
			e.Tracks = tracks
		}
	case jukebox.EventChangeSeek:
		if cmd.Seek < 0 {
			return errors.Wrapf(ErrInvalidCommand, "negative seek: %d", cmd.Seek)
		}
	}

	if !s.jukebox.Send(e) {
		return ErrSessionNotRunning
	}
	zlog.Debug().Msgf("session: dispatched: type=%s tracks=%d", typ, len(e.Tracks))
	return nil
}

// Status returns the current observable state.
func (s *Session) Status() *jukeboxv1.Status {
	return s.toStatus(s.jukebox.Snapshot())
}

// Notifications returns the notification manager.
func (s *Session) Notifications() *notification.Manager {
	return s.notification
}

// Done is closed once the jukebox has stopped and the last status was broadcast.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close stops the jukebox and its player and releases subscribers.
func (s *Session) Close() {
	s.cancel()
	s.jukebox.Close()

	// A session closed before Start can no longer be started.
	s.mu.Lock()
	started := s.started
	s.started = true
	s.mu.Unlock()
	if started {
		<-s.done
	} else {
		close(s.done)
	}
	s.notification.Close()
}

func (s *Session) running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// toStatus converts a jukebox snapshot, adding the player's view.
func (s *Session) toStatus(snap jukebox.Snapshot) *jukeboxv1.Status {
	status := &jukeboxv1.Status{
		State:             snap.State.String(),
		Name:              snap.Name,
		Tracks:            make([]*jukeboxv1.Track, len(snap.Tracks)),
		CurrentPlaybackNo: int32(snap.CurrentPlaybackNo),
		Repeat:            snap.Repeat,
		SeekMs:            int32(snap.Seek),
	}
	for i := range snap.Tracks {
		status.Tracks[i] = toTrack(&snap.Tracks[i])
	}
	if snap.CurrentTrack != nil {
		status.CurrentTrack = toTrack(snap.CurrentTrack)
	}

	s.mu.RLock()
	player := s.player
	s.mu.RUnlock()
	if player != nil {
		ps := player.Snapshot()
		status.PlayerState = ps.State.String()
		status.DeviceID = ps.DeviceID
	}
	return status
}

func toTrack(t *track.Track) *jukeboxv1.Track {
	uri, _ := t.SpotifyURI()
	return &jukeboxv1.Track{
		ID:         t.ID,
		Name:       t.Name,
		Artists:    t.Artists,
		ArtworkURL: t.Artwork(),
		DurationMs: int32(t.DurationMs),
		SpotifyURI: uri,
	}
}
