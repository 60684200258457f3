//go:build linux

package mpris

import (
	"fmt"
	"hash/fnv"

	"github.com/godbus/dbus/v5"
	"github.com/quarckster/go-mpris-server/pkg/server"
	"github.com/quarckster/go-mpris-server/pkg/types"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/jukebox/internal/app/mediasession"
)

// Server publishes a Session on D-Bus.
type Server struct {
	server *server.Server
}

// Serve starts an MPRIS server for session under the bus name suffix name.
func Serve(name string, session *Session) (*Server, error) {
	srv := server.NewServer(name, &rootAdapter{session: session}, &playerAdapter{session: session})

	go func() {
		if err := srv.Listen(); err != nil {
			zlog.Warn().Err(err).Msg("mpris: server stopped")
		}
	}()
	zlog.Info().Msgf("mpris: serving: name=%s", name)

	return &Server{server: srv}, nil
}

// Close stops the server and releases D-Bus resources.
func (s *Server) Close() error {
	return s.server.Stop()
}

// rootAdapter implements OrgMprisMediaPlayer2Adapter.
type rootAdapter struct {
	session *Session
}

func (r *rootAdapter) Raise() error {
	return nil
}

func (r *rootAdapter) Quit() error {
	return nil
}

func (r *rootAdapter) CanQuit() (bool, error) {
	return false, nil
}

func (r *rootAdapter) CanRaise() (bool, error) {
	return false, nil
}

func (r *rootAdapter) HasTrackList() (bool, error) {
	return false, nil
}

func (r *rootAdapter) Identity() (string, error) {
	return r.session.identity, nil
}

//nolint:revive // Method name required by interface.
func (r *rootAdapter) SupportedUriSchemes() ([]string, error) {
	return []string{"spotify"}, nil
}

func (r *rootAdapter) SupportedMimeTypes() ([]string, error) {
	return []string{}, nil
}

// playerAdapter implements OrgMprisMediaPlayer2PlayerAdapter.
type playerAdapter struct {
	session *Session
}

func (p *playerAdapter) Next() error {
	return p.session.trigger(mediasession.ActionNextTrack)
}

func (p *playerAdapter) Previous() error {
	return p.session.trigger(mediasession.ActionPreviousTrack)
}

func (p *playerAdapter) Pause() error {
	return p.session.trigger(mediasession.ActionPause)
}

func (p *playerAdapter) PlayPause() error {
	return p.session.trigger(mediasession.ActionPlayPause)
}

func (p *playerAdapter) Stop() error {
	return p.session.trigger(mediasession.ActionStop)
}

func (p *playerAdapter) Play() error {
	return p.session.trigger(mediasession.ActionPlay)
}

func (p *playerAdapter) Seek(types.Microseconds) error {
	return nil
}

func (p *playerAdapter) SetPosition(string, types.Microseconds) error {
	return nil
}

//nolint:revive // Method name required by interface.
func (p *playerAdapter) OpenUri(string) error {
	return nil
}

func (p *playerAdapter) PlaybackStatus() (types.PlaybackStatus, error) {
	_, status := p.session.current()
	return toPlaybackStatus(status), nil
}

func (p *playerAdapter) Rate() (float64, error) {
	return 1.0, nil
}

func (p *playerAdapter) SetRate(float64) error {
	return nil
}

func (p *playerAdapter) Metadata() (types.Metadata, error) {
	m, _ := p.session.current()
	return toMetadata(m), nil
}

func (p *playerAdapter) Volume() (float64, error) {
	return 1.0, nil
}

func (p *playerAdapter) SetVolume(float64) error {
	return nil
}

func (p *playerAdapter) Position() (int64, error) {
	return p.session.currentPosition().Microseconds(), nil
}

func (p *playerAdapter) MinimumRate() (float64, error) {
	return 1.0, nil
}

func (p *playerAdapter) MaximumRate() (float64, error) {
	return 1.0, nil
}

func (p *playerAdapter) CanGoNext() (bool, error) {
	return p.session.has(mediasession.ActionNextTrack), nil
}

func (p *playerAdapter) CanGoPrevious() (bool, error) {
	return p.session.has(mediasession.ActionPreviousTrack), nil
}

func (p *playerAdapter) CanPlay() (bool, error) {
	return p.session.has(mediasession.ActionPlay), nil
}

func (p *playerAdapter) CanPause() (bool, error) {
	return p.session.has(mediasession.ActionPause), nil
}

func (p *playerAdapter) CanSeek() (bool, error) {
	return false, nil
}

func (p *playerAdapter) CanControl() (bool, error) {
	return true, nil
}

func toPlaybackStatus(s mediasession.PlaybackStatus) types.PlaybackStatus {
	switch s {
	case mediasession.StatusPlaying:
		return types.PlaybackStatusPlaying
	case mediasession.StatusPaused:
		return types.PlaybackStatusPaused
	}
	return types.PlaybackStatusStopped
}

func toMetadata(m mediasession.Metadata) types.Metadata {
	if m.TrackID == "" {
		return types.Metadata{}
	}
	return types.Metadata{
		TrackId: dbus.ObjectPath(formatTrackID(m.TrackID)),
		Length:  types.Microseconds(m.Length.Microseconds()),
		Title:   m.Title,
		Artist:  m.Artists,
		ArtUrl:  m.ArtworkURL,
	}
}

// formatTrackID maps a catalog id onto a valid D-Bus object path.
func formatTrackID(id string) string {
	h := fnv.New64a()
	h.Write([]byte(id))
	return fmt.Sprintf("/org/mpris/MediaPlayer2/Track/%x", h.Sum64())
}
