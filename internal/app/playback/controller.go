package playback

import (
	"context"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/jukebox/internal/app/fsm"
	"github.com/osa030/jukebox/internal/app/remote"
	"github.com/osa030/jukebox/internal/domain/track"
)

const tickStepMs = 1000

// TickInterval is the interval of the self-scheduled TICK and matches tickStepMs.
const TickInterval = time.Second

// Adapter is the remote device the controller drives.
// Service methods return a cancel function called when the owning state exits.
type Adapter interface {
	PollCredentials(emit remote.Emit) func()
	LoadSDK()
	Connect(emit remote.Emit) func()
	Load(t track.Track, deviceID string, emit remote.Emit) func()
	Resume()
	Pause(emit remote.Emit)
	Stop()
	Seek(positionMs int)
}

// Config holds controller configuration.
type Config struct {
	SelfTick     bool          // Schedule TICK while playing
	TickInterval time.Duration // Interval of the self-scheduled TICK, TickInterval if zero
}

// origin tells which generation a message must match to be handled.
type origin int

const (
	originCommand origin = iota // External command, always handled
	originSession               // Poll or connect service
	originState                 // Service owned by the current state only
)

type message struct {
	origin  origin
	gen     uint64
	command *Command
	event   *remote.Event
}

// Controller is the player state machine.
// All transitions run on one goroutine, one message at a time.
type Controller struct {
	config  Config
	adapter Adapter
	box     *fsm.Mailbox[message]
	signals *fsm.Broadcaster[Signal]

	// Owned by the run goroutine
	state      State
	track      *track.Track
	seek       int
	deviceID   string
	sessionGen uint64
	stateGen   uint64

	cancelPoll    func()
	cancelConnect func()
	cancelLoad    func()
	cancelTick    func()

	mu       sync.RWMutex
	snapshot Snapshot

	startOnce sync.Once
	done      chan struct{}
}

// NewController creates a new controller. It does nothing until Start is called.
func NewController(config Config, adapter Adapter) *Controller {
	if config.TickInterval <= 0 {
		config.TickInterval = TickInterval
	}
	return &Controller{
		config:   config,
		adapter:  adapter,
		box:      fsm.NewMailbox[message](),
		signals:  fsm.NewBroadcaster[Signal](),
		state:    StateInitializing,
		snapshot: Snapshot{State: StateInitializing},
		done:     make(chan struct{}),
	}
}

// Start runs the machine until ctx is done or Close is called.
func (c *Controller) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		go c.run(ctx)
	})
}

// Send queues a command. It returns false after Close.
func (c *Controller) Send(cmd Command) bool {
	return c.box.Post(message{origin: originCommand, command: &cmd})
}

// Subscribe returns a subscription to lifecycle signals.
func (c *Controller) Subscribe() *fsm.Subscription[Signal] {
	return c.signals.Subscribe()
}

// Snapshot returns the context as of the last handled message.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// Done is closed once the controller has stopped and released its services.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Close stops the controller after pending commands are handled.
func (c *Controller) Close() {
	c.box.Close()
	c.startOnce.Do(func() {
		c.signals.Close()
		close(c.done)
	})
}

func (c *Controller) run(ctx context.Context) {
	defer func() {
		c.box.Close()
		c.cancelServices()
		c.signals.Close()
		close(c.done)
		zlog.Debug().Msg("playback: controller stopped")
	}()

	c.enter(StateInitializing)
	c.updateSnapshot()
	c.box.Run(ctx, c.handle)
}

func (c *Controller) handle(m message) {
	switch m.origin {
	case originSession:
		if m.gen != c.sessionGen {
			return
		}
	case originState:
		if m.gen != c.stateGen {
			return
		}
	}

	if m.command != nil {
		c.handleCommand(*m.command)
	} else if m.event != nil {
		c.handleEvent(*m.event)
	}
	c.updateSnapshot()
}

func (c *Controller) handleCommand(cmd Command) {
	switch cmd.Type {
	case CommandLoad:
		c.transition(StateConnecting)
	case CommandPlay:
		switch c.state {
		case StatePaused:
			c.adapter.Resume()
		case StateStopped, StateFinished:
			c.transition(StateConnecting)
		}
	case CommandPause:
		if c.state == StatePlaying {
			c.adapter.Pause(c.emitter(originState))
		}
	case CommandStop:
		switch {
		case c.state.Listening():
			c.adapter.Stop()
			c.transition(StateStopped)
		case c.state == StateFinished:
			c.transition(StateStopped)
		}
	case CommandChangeSeek:
		// Without a known device there is nothing to seek.
		if c.deviceID != "" {
			c.adapter.Seek(cmd.Seek)
			c.seek = cmd.Seek
		} else {
			c.seek = 0
		}
		c.publishSeek()
	case CommandTick:
		c.tick()
		c.publishSeek()
	case CommandSetTrack:
		c.track = cmd.Track
	case CommandSetSeek:
		c.seek = cmd.Seek
	case CommandSetDeviceID:
		c.deviceID = cmd.DeviceID
	}
}

func (c *Controller) handleEvent(e remote.Event) {
	switch e.Type {
	case remote.EventIdle:
		if c.state == StateInitializing {
			c.transition(StateIdle)
		}
	case remote.EventDeviceReady:
		c.deviceID = e.DeviceID
	case remote.EventConnected:
		if c.state == StateConnecting {
			c.transition(StateLoading)
		}
	case remote.EventPosition:
		c.seek = e.PositionMs
		c.publishSeek()
	case remote.EventPlaying:
		if c.state == StateLoading || c.state == StatePaused {
			c.transition(StatePlaying)
		}
	case remote.EventPaused:
		if c.state == StatePlaying {
			c.transition(StatePaused)
		}
	case remote.EventStopped:
		if c.state.Listening() {
			c.transition(StateStopped)
		}
	case remote.EventFinished:
		if c.state != StateFinished {
			c.transition(StateFinished)
		}
	}
}

// tick advances the position by one second unless that would pass the
// track duration, in which case the position holds until the device reports
// the end of the track.
func (c *Controller) tick() {
	next := c.seek + tickStepMs
	if c.track != nil && c.track.DurationMs < next {
		return
	}
	c.seek = next
}

func (c *Controller) transition(to State) {
	from := c.state
	c.exit(from, to)
	c.state = to
	c.stateGen++
	zlog.Debug().Msgf("playback: transition: from=%s to=%s", from, to)
	c.enter(to)
}

func (c *Controller) exit(from, to State) {
	switch from {
	case StateInitializing:
		stop(&c.cancelPoll)
	case StateLoading:
		stop(&c.cancelLoad)
	case StatePlaying:
		stop(&c.cancelTick)
	}

	// Entering connecting always opens a new session, even from inside listening.
	if from.Listening() && (to == StateConnecting || !to.Listening()) {
		stop(&c.cancelConnect)
		c.sessionGen++
	}
}

func (c *Controller) enter(s State) {
	switch s {
	case StateInitializing:
		c.sessionGen++
		c.cancelPoll = c.adapter.PollCredentials(c.emitter(originSession))
	case StateIdle:
		c.adapter.LoadSDK()
	case StateConnecting:
		c.sessionGen++
		c.cancelConnect = c.adapter.Connect(c.emitter(originSession))
	case StateLoading:
		c.seek = 0
		c.publish(Signal{Type: SignalLoading})
		var t track.Track
		if c.track != nil {
			t = *c.track
		}
		c.cancelLoad = c.adapter.Load(t, c.deviceID, c.emitter(originState))
	case StatePlaying:
		c.publish(Signal{Type: SignalPlaying})
		if c.config.SelfTick {
			c.cancelTick = c.startTick()
		}
	case StatePaused:
		c.publish(Signal{Type: SignalPaused})
	case StateStopped:
		c.publish(Signal{Type: SignalStopped})
	case StateFinished:
		c.publish(Signal{Type: SignalFinished})
	}
}

// emitter returns an Emit bound to the current generation of o.
// Events from a service whose state has since exited are dropped.
func (c *Controller) emitter(o origin) remote.Emit {
	gen := c.stateGen
	if o == originSession {
		gen = c.sessionGen
	}
	return func(e remote.Event) {
		c.box.Post(message{origin: o, gen: gen, event: &e})
	}
}

func (c *Controller) startTick() func() {
	gen := c.stateGen
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)

		ticker := time.NewTicker(c.config.TickInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.box.Post(message{origin: originState, gen: gen, command: &Command{Type: CommandTick}})
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func (c *Controller) cancelServices() {
	stop(&c.cancelPoll)
	stop(&c.cancelConnect)
	stop(&c.cancelLoad)
	stop(&c.cancelTick)
}

func (c *Controller) publish(s Signal) {
	c.signals.Publish(s)
}

func (c *Controller) publishSeek() {
	c.publish(Signal{Type: SignalSeek, Seek: c.seek})
}

func (c *Controller) updateSnapshot() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = Snapshot{
		State:    c.state,
		Track:    c.track,
		Seek:     c.seek,
		DeviceID: c.deviceID,
	}
}

func stop(cancel *func()) {
	if *cancel != nil {
		(*cancel)()
		*cancel = nil
	}
}
