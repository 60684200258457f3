// Package connect provides Connect RPC service implementations.
package connect

import (
	"context"
	"sync"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	jukeboxv1 "github.com/osa030/jukebox/internal/api/jukeboxv1"
	"github.com/osa030/jukebox/internal/api/jukeboxv1/jukeboxv1connect"
	"github.com/osa030/jukebox/internal/app/library"
	"github.com/osa030/jukebox/internal/app/notification"
	"github.com/osa030/jukebox/internal/app/session"
)

// Jukebox is the running application the service exposes.
type Jukebox interface {
	Dispatch(ctx context.Context, cmd session.Command) error
	Status() *jukeboxv1.Status
	Notifications() *notification.Manager
	Done() <-chan struct{}
}

// JukeboxService implements the JukeboxService RPC.
type JukeboxService struct {
	jukebox Jukebox
}

// NewJukeboxService creates a new JukeboxService.
func NewJukeboxService(jukebox Jukebox) *JukeboxService {
	return &JukeboxService{jukebox: jukebox}
}

// Ensure JukeboxService implements the interface.
var _ jukeboxv1connect.JukeboxServiceHandler = (*JukeboxService)(nil)

// Dispatch queues one command-vocabulary event.
// Rejected commands are reported in the response, not as RPC errors.
func (s *JukeboxService) Dispatch(
	ctx context.Context,
	req *connect.Request[jukeboxv1.DispatchRequest],
) (*connect.Response[jukeboxv1.DispatchResponse], error) {
	msg := req.Msg
	err := s.jukebox.Dispatch(ctx, session.Command{
		Type:              msg.Type,
		Name:              msg.Name,
		TrackIDs:          msg.TrackIDs,
		CurrentPlaybackNo: int(msg.CurrentPlaybackNo),
		RemoveIndex:       int(msg.RemoveIndex),
		Seek:              int(msg.SeekMs),
	})
	switch {
	case err == nil:
		return connect.NewResponse(&jukeboxv1.DispatchResponse{Accepted: true}), nil
	case errors.Is(err, session.ErrSessionNotRunning):
		return nil, connect.NewError(connect.CodeUnavailable, err)
	case errors.Is(err, session.ErrInvalidCommand), errors.Is(err, library.ErrUnknownTracks):
		zlog.Info().Msgf("api: command rejected: type=%s reason=%v", msg.Type, err)
		return connect.NewResponse(&jukeboxv1.DispatchResponse{
			Accepted: false,
			Message:  err.Error(),
		}), nil
	default:
		return nil, connect.NewError(connect.CodeInternal, err)
	}
}

// GetStatus returns the current jukebox status.
func (s *JukeboxService) GetStatus(
	ctx context.Context,
	req *connect.Request[jukeboxv1.GetStatusRequest],
) (*connect.Response[jukeboxv1.GetStatusResponse], error) {
	return connect.NewResponse(&jukeboxv1.GetStatusResponse{
		Status: s.jukebox.Status(),
	}), nil
}

// SubscribeStatus streams the current status followed by every change.
func (s *JukeboxService) SubscribeStatus(
	ctx context.Context,
	req *connect.Request[jukeboxv1.SubscribeStatusRequest],
	stream *connect.ServerStream[jukeboxv1.Notification],
) error {
	notifManager := s.jukebox.Notifications()

	initial := &jukeboxv1.Notification{
		Type:       jukeboxv1.NotificationTypeInitialState,
		SequenceNo: notifManager.NextSequenceNo(),
		Status:     s.jukebox.Status(),
	}
	if err := stream.Send(initial); err != nil {
		return err
	}

	subscriptionID := notifManager.Subscribe(&notificationStreamAdapter{stream: stream})
	defer notifManager.Unsubscribe(subscriptionID)

	// Wait for context cancellation or jukebox end
	select {
	case <-ctx.Done():
	case <-s.jukebox.Done():
	}
	return nil
}

// notificationStreamAdapter adapts connect.ServerStream to notification.Stream.
// A broadcast that timed out may still be sending when the next one starts.
type notificationStreamAdapter struct {
	mu     sync.Mutex
	stream *connect.ServerStream[jukeboxv1.Notification]
}

func (a *notificationStreamAdapter) Send(notification *jukeboxv1.Notification) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stream.Send(notification)
}
