package jukebox

import (
	"context"
	"sync"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/jukebox/internal/app/fsm"
	"github.com/osa030/jukebox/internal/app/mediasession"
	"github.com/osa030/jukebox/internal/app/playback"
	"github.com/osa030/jukebox/internal/app/shuffle"
	"github.com/osa030/jukebox/internal/domain/queue"
	"github.com/osa030/jukebox/internal/domain/track"
)

// Player is the child state machine the jukebox drives.
type Player interface {
	Start(ctx context.Context)
	Send(cmd playback.Command) bool
	Subscribe() *fsm.Subscription[playback.Signal]
	Close()
	Done() <-chan struct{}
}

// Config holds jukebox configuration.
type Config struct {
	Name        string // Initial name
	AutoAdvance bool   // Treat FINISHED as NEXT_PLAY
	MediaKeys   bool   // Register media key handlers
}

var mediaActions = map[mediasession.Action]EventType{
	mediasession.ActionPlay:          EventPlay,
	mediasession.ActionPause:         EventPause,
	mediasession.ActionPlayPause:     EventPlayOrPause,
	mediasession.ActionStop:          EventStop,
	mediasession.ActionNextTrack:     EventNextPlay,
	mediasession.ActionPreviousTrack: EventPreviousPlay,
}

// Jukebox is the queue state machine.
// All transitions run on one goroutine, one event at a time; commands from
// collaborators, media keys and player signals share the same mailbox.
type Jukebox struct {
	config    Config
	spawn     func() Player
	shuffle   shuffle.Policy
	media     mediasession.Session
	box       *fsm.Mailbox[Event]
	snapshots *fsm.Broadcaster[Snapshot]

	// Owned by the run goroutine
	state        State
	name         string
	queue        queue.Queue
	currentTrack *track.Track
	seek         int
	player       Player
	forwardDone  chan struct{}

	mu       sync.RWMutex
	snapshot Snapshot

	startOnce sync.Once
	done      chan struct{}
}

// New creates a jukebox. spawn is called once, when the jukebox starts.
func New(config Config, spawn func() Player, policy shuffle.Policy, media mediasession.Session) *Jukebox {
	if policy == nil {
		policy = shuffle.None{}
	}
	if media == nil {
		media = mediasession.Noop{}
	}
	return &Jukebox{
		config:    config,
		spawn:     spawn,
		shuffle:   policy,
		media:     media,
		box:       fsm.NewMailbox[Event](),
		snapshots: fsm.NewBroadcaster[Snapshot](),
		state:     StateIdle,
		name:      config.Name,
		snapshot:  Snapshot{State: StateIdle, Name: config.Name},
		done:      make(chan struct{}),
	}
}

// Start enters idle, spawns the player and processes events until ctx is
// done or Close is called.
func (j *Jukebox) Start(ctx context.Context) {
	j.startOnce.Do(func() {
		go j.run(ctx)
	})
}

// Send queues an event. It returns false after Close.
func (j *Jukebox) Send(e Event) bool {
	return j.box.Post(e)
}

// Subscribe returns a subscription receiving a snapshot after every event.
func (j *Jukebox) Subscribe() *fsm.Subscription[Snapshot] {
	return j.snapshots.Subscribe()
}

// Snapshot returns the context as of the last handled event.
func (j *Jukebox) Snapshot() Snapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.snapshot
}

// Done is closed once the jukebox and its player have stopped.
func (j *Jukebox) Done() <-chan struct{} {
	return j.done
}

// Close stops the jukebox after pending events are handled.
func (j *Jukebox) Close() {
	j.box.Close()
	j.startOnce.Do(func() {
		j.snapshots.Close()
		close(j.done)
	})
}

func (j *Jukebox) run(ctx context.Context) {
	defer func() {
		j.box.Close()
		if j.config.MediaKeys {
			for action := range mediaActions {
				j.media.SetActionHandler(action, nil)
			}
		}
		if j.player != nil {
			j.player.Close()
			<-j.player.Done()
			<-j.forwardDone
		}
		j.snapshots.Close()
		close(j.done)
		zlog.Debug().Msg("jukebox: stopped")
	}()

	j.enterIdle(ctx)
	j.publishSnapshot()
	j.box.Run(ctx, j.handle)
}

// enterIdle spawns the player and registers media keys.
func (j *Jukebox) enterIdle(ctx context.Context) {
	j.player = j.spawn()
	sub := j.player.Subscribe()
	j.forwardDone = make(chan struct{})
	go j.forward(sub)
	j.player.Start(ctx)

	if j.config.MediaKeys {
		for action, typ := range mediaActions {
			j.media.SetActionHandler(action, func() {
				zlog.Debug().Msgf("jukebox: media key: action=%s", action)
				j.Send(Event{Type: typ})
			})
		}
	}
	zlog.Info().Msg("jukebox: player spawned")
}

// forward translates player signals into jukebox events.
func (j *Jukebox) forward(sub *fsm.Subscription[playback.Signal]) {
	defer close(j.forwardDone)
	defer sub.Close()

	for s := range sub.C() {
		switch s.Type {
		case playback.SignalLoading:
			j.Send(Event{Type: EventLoading})
		case playback.SignalPlaying:
			j.Send(Event{Type: EventPlaying})
		case playback.SignalPaused:
			j.Send(Event{Type: EventPaused})
		case playback.SignalStopped:
			j.Send(Event{Type: EventStopped})
		case playback.SignalFinished:
			j.Send(Event{Type: EventFinished})
		case playback.SignalSeek:
			j.Send(Event{Type: EventSetSeek, Seek: s.Seek})
		}
	}
}

func (j *Jukebox) handle(e Event) {
	switch e.Type {
	case EventSetName:
		j.name = e.Name
	case EventReplaceAndPlay:
		j.queue.Replace(e.Tracks, e.CurrentPlaybackNo)
		j.changeCurrentTrack()
		if j.queue.IsEmpty() {
			zlog.Info().Msg("jukebox: queue cleared")
			j.stopAndSetTrack()
			break
		}
		j.transition(StateLoading)
	case EventChangePlaybackNo:
		if !j.queue.IsValidIndex(e.CurrentPlaybackNo) {
			zlog.Warn().Msgf("jukebox: playback number out of range, ignored: no=%d len=%d",
				e.CurrentPlaybackNo, j.queue.Len())
			break
		}
		j.queue.Position = e.CurrentPlaybackNo
		j.changeCurrentTrack()
		j.transition(StateLoading)
	case EventMove:
		j.queue.Move(e.Tracks)
	case EventRemove:
		if !j.queue.Remove(e.RemoveIndex) {
			zlog.Warn().Msgf("jukebox: remove index out of range, ignored: index=%d len=%d",
				e.RemoveIndex, j.queue.Len())
		}
	case EventShuffle:
		j.shuffleQueue()
	case EventRepeat:
		j.queue.Repeat = !j.queue.Repeat
	case EventNextPlay:
		j.next()
	case EventPreviousPlay:
		j.previous()
	case EventPlay:
		if j.state == StatePaused || j.state == StateStopped {
			j.send(playback.Command{Type: playback.CommandPlay})
		}
	case EventPause:
		if j.state == StatePlaying {
			j.send(playback.Command{Type: playback.CommandPause})
		}
	case EventPlayOrPause:
		switch j.state {
		case StatePlaying:
			j.send(playback.Command{Type: playback.CommandPause})
		case StatePaused, StateStopped:
			j.send(playback.Command{Type: playback.CommandPlay})
		}
	case EventStop:
		j.send(playback.Command{Type: playback.CommandStop})
	case EventChangeSeek:
		j.send(playback.Command{Type: playback.CommandChangeSeek, Seek: e.Seek})

	case EventLoading:
	case EventPlaying:
		switch j.state {
		case StateLoading, StatePaused, StateStopped:
			j.transition(StatePlaying)
		}
	case EventPaused:
		if j.state == StatePlaying {
			j.transition(StatePaused)
		}
	case EventStopped:
		if j.state != StateStopped {
			j.transition(StateStopped)
		}
	case EventFinished:
		if j.config.AutoAdvance {
			j.next()
		} else if j.state != StateStopped {
			j.transition(StateStopped)
		}
	case EventSetSeek:
		j.seek = e.Seek
	}

	j.publishSnapshot()
}

// next advances the queue. Past the last track without repeat the position
// wraps to 0 but the player is stopped instead of loaded.
func (j *Jukebox) next() {
	if j.queue.IsEmpty() {
		zlog.Debug().Msg("jukebox: next on empty queue, ignored")
		return
	}

	canAdvance := j.queue.CanAdvance()
	j.queue.Advance()
	j.changeCurrentTrack()
	if canAdvance {
		j.transition(StateLoading)
		return
	}
	zlog.Info().Msg("jukebox: end of queue, stopping")
	j.stopAndSetTrack()
}

// previous moves back one track. At position 0 it stops instead of wrapping.
func (j *Jukebox) previous() {
	if j.queue.IsEmpty() {
		zlog.Debug().Msg("jukebox: previous on empty queue, ignored")
		return
	}

	canRetreat := j.queue.CanRetreat()
	j.queue.Retreat()
	j.changeCurrentTrack()
	if canRetreat {
		j.transition(StateLoading)
		return
	}
	j.stopAndSetTrack()
}

func (j *Jukebox) shuffleQueue() {
	if j.queue.IsEmpty() {
		return
	}
	perm := j.shuffle.Permutation(j.queue.Len(), j.queue.Position)
	if err := j.queue.Permute(perm); err != nil {
		zlog.Warn().Err(err).Msgf("jukebox: shuffle ignored: policy=%s", j.shuffle.Name())
		return
	}
	zlog.Debug().Msgf("jukebox: shuffled: policy=%s position=%d", j.shuffle.Name(), j.queue.Position)
}

func (j *Jukebox) changeCurrentTrack() {
	cur, ok := j.queue.Current()
	if !ok {
		j.currentTrack = nil
		return
	}
	j.currentTrack = &cur
}

func (j *Jukebox) stopAndSetTrack() {
	j.send(playback.Command{Type: playback.CommandStop})
	j.send(playback.Command{Type: playback.CommandSetTrack, Track: j.currentTrack})
}

func (j *Jukebox) transition(to State) {
	from := j.state
	j.state = to
	zlog.Debug().Msgf("jukebox: transition: from=%s to=%s", from, to)

	switch to {
	case StateLoading:
		j.seek = 0
		j.send(playback.Command{Type: playback.CommandSetTrack, Track: j.currentTrack})
		j.send(playback.Command{Type: playback.CommandLoad})
	case StatePlaying:
		j.setMediaMetadata()
		j.media.SetPlaybackStatus(mediasession.StatusPlaying)
	case StatePaused:
		j.media.SetPlaybackStatus(mediasession.StatusPaused)
	case StateStopped:
		j.media.SetPlaybackStatus(mediasession.StatusStopped)
	}
}

func (j *Jukebox) setMediaMetadata() {
	if j.currentTrack == nil {
		return
	}
	j.media.SetMetadata(mediasession.Metadata{
		TrackID:    j.currentTrack.ID,
		Title:      j.currentTrack.Name,
		Artists:    j.currentTrack.Artists,
		ArtworkURL: j.currentTrack.Artwork(),
		Length:     j.currentTrack.Duration(),
	})
}

func (j *Jukebox) send(cmd playback.Command) {
	if !j.player.Send(cmd) {
		zlog.Debug().Msgf("jukebox: player closed, command dropped: %s", cmd.Type)
	}
}

func (j *Jukebox) publishSnapshot() {
	s := Snapshot{
		State:             j.state,
		Name:              j.name,
		Tracks:            j.queue.Tracks,
		CurrentPlaybackNo: j.queue.Position,
		CurrentTrack:      j.currentTrack,
		Repeat:            j.queue.Repeat,
		Seek:              j.seek,
	}

	j.mu.Lock()
	j.snapshot = s
	j.mu.Unlock()

	j.snapshots.Publish(s)
}
