package session

import (
	"context"
	"sync"
	"testing"
	"testing/synctest"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jukeboxv1 "github.com/osa030/jukebox/internal/api/jukeboxv1"
	"github.com/osa030/jukebox/internal/app/credential"
	"github.com/osa030/jukebox/internal/app/remote"
	"github.com/osa030/jukebox/internal/domain/track"
	"github.com/osa030/jukebox/internal/infra/config"
)

type fakeSDK struct{}

func (fakeSDK) Load(context.Context) error { return nil }

func (fakeSDK) NewDevice(string, func() string, remote.Listener) remote.Device { return nil }

func (fakeSDK) Controls(string) remote.Controls { return nil }

type fakeLogin struct{}

func (fakeLogin) Login(context.Context) error { return nil }

type fakeLibrary struct {
	tracks map[string]track.Track
}

func (l *fakeLibrary) Resolve(_ context.Context, ids []string) ([]track.Track, error) {
	out := make([]track.Track, 0, len(ids))
	for _, id := range ids {
		t, ok := l.tracks[id]
		if !ok {
			return nil, errors.Newf("unknown track: %s", id)
		}
		out = append(out, t)
	}
	return out, nil
}

type fakeStream struct {
	mu       sync.Mutex
	received []*jukeboxv1.Notification
}

func (s *fakeStream) Send(n *jukeboxv1.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received = append(s.received, n)
	return nil
}

func (s *fakeStream) last() *jukeboxv1.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.received) == 0 {
		return nil
	}
	return s.received[len(s.received)-1]
}

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	require.NoError(t, defaults.Set(cfg))
	cfg.Jukebox.Name = "Test Box"
	return cfg
}

func newTestLibrary() *fakeLibrary {
	return &fakeLibrary{tracks: map[string]track.Track{
		"a": {ID: "a", Name: "Song A", DurationMs: 1000, SpotifyTracks: []track.SpotifyTrack{{SpotifyID: "sp-a"}}},
		"b": {ID: "b", Name: "Song B", DurationMs: 2000},
		"c": {ID: "c", Name: "Song C", DurationMs: 3000},
	}}
}

func newTestSession(t *testing.T, cfg *config.Config) *Session {
	t.Helper()
	s, err := New(cfg, Deps{
		Store:   credential.NewMemoryStore(),
		SDK:     fakeSDK{},
		Login:   fakeLogin{},
		Library: newTestLibrary(),
	})
	require.NoError(t, err)
	return s
}

func TestNew_Errors(t *testing.T) {
	cfg := newTestConfig(t)

	_, err := New(cfg, Deps{})
	assert.Error(t, err, "missing deps")

	cfg.Shuffle.Type = "smart"
	_, err = New(cfg, Deps{
		Store:   credential.NewMemoryStore(),
		SDK:     fakeSDK{},
		Login:   fakeLogin{},
		Library: newTestLibrary(),
	})
	assert.Error(t, err, "unknown shuffle type")
}

func TestSession_DispatchBeforeStart(t *testing.T) {
	s := newTestSession(t, newTestConfig(t))
	err := s.Dispatch(context.Background(), Command{Type: "PLAY"})
	assert.ErrorIs(t, err, ErrSessionNotRunning)

	s.Close()
	<-s.Done()
}

func TestSession_Dispatch(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctx := context.Background()
		s := newTestSession(t, newTestConfig(t))
		stream := &fakeStream{}
		s.Notifications().Subscribe(stream)

		require.NoError(t, s.Start(ctx))
		synctest.Wait()

		status := s.Status()
		assert.Equal(t, "idle", status.State)
		assert.Equal(t, "Test Box", status.Name)
		assert.Equal(t, "initializing", status.PlayerState)

		require.NoError(t, s.Dispatch(ctx, Command{Type: "SET_NAME", Name: "Party"}))
		require.NoError(t, s.Dispatch(ctx, Command{Type: "REPLACE_AND_PLAY", TrackIDs: []string{"b", "a"}, CurrentPlaybackNo: 1}))
		synctest.Wait()

		status = s.Status()
		assert.Equal(t, "Party", status.Name)
		// Without a refresh token the player cannot open a device session.
		assert.Equal(t, "stopped", status.State)
		assert.Equal(t, "stopped", status.PlayerState)
		require.Len(t, status.Tracks, 2)
		assert.Equal(t, "b", status.Tracks[0].ID)
		assert.Equal(t, int32(1), status.CurrentPlaybackNo)
		require.NotNil(t, status.CurrentTrack)
		assert.Equal(t, "a", status.CurrentTrack.ID)
		assert.Equal(t, "spotify:track:sp-a", status.CurrentTrack.SpotifyURI)

		last := stream.last()
		require.NotNil(t, last)
		assert.Equal(t, jukeboxv1.NotificationTypeChangeState, last.Type)
		assert.Equal(t, "Party", last.Status.Name)

		s.Close()
		<-s.Done()
		assert.ErrorIs(t, s.Dispatch(ctx, Command{Type: "PLAY"}), ErrSessionNotRunning)
	})
}

func TestSession_DispatchErrors(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctx := context.Background()
		s := newTestSession(t, newTestConfig(t))
		require.NoError(t, s.Start(ctx))
		defer func() {
			s.Close()
			<-s.Done()
		}()

		tests := []struct {
			name    string
			cmd     Command
			wantErr error
		}{
			{name: "unknown command", cmd: Command{Type: "EJECT"}, wantErr: ErrInvalidCommand},
			{name: "player signal is not a command", cmd: Command{Type: "FINISHED"}, wantErr: ErrInvalidCommand},
			{name: "negative seek", cmd: Command{Type: "CHANGE_SEEK", Seek: -1}, wantErr: ErrInvalidCommand},
			{name: "unknown track", cmd: Command{Type: "REPLACE_AND_PLAY", TrackIDs: []string{"a", "zz"}}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := s.Dispatch(ctx, tt.cmd)
				require.Error(t, err)
				if tt.wantErr != nil {
					assert.ErrorIs(t, err, tt.wantErr)
				}
			})
		}

		synctest.Wait()
		assert.Empty(t, s.Status().Tracks, "rejected commands are not queued")
	})
}

func TestSession_InitialTracks(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		cfg := newTestConfig(t)
		cfg.Jukebox.InitialTracks = []string{"a", "b", "c"}
		cfg.Jukebox.InitialPlaybackNo = 2
		s := newTestSession(t, cfg)

		require.NoError(t, s.Start(context.Background()))
		synctest.Wait()

		status := s.Status()
		require.Len(t, status.Tracks, 3)
		assert.Equal(t, int32(2), status.CurrentPlaybackNo)
		assert.Equal(t, "c", status.CurrentTrack.ID)

		s.Close()
		<-s.Done()
	})
}

func TestSession_StartFailsOnUnknownInitialTrack(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		cfg := newTestConfig(t)
		cfg.Jukebox.InitialTracks = []string{"missing"}
		s := newTestSession(t, cfg)

		assert.Error(t, s.Start(context.Background()))
		<-s.Done()
		assert.ErrorIs(t, s.Dispatch(context.Background(), Command{Type: "PLAY"}), ErrSessionNotRunning)
		s.Close()
	})
}
