package playback

import (
	"context"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/jukebox/internal/app/fsm"
	"github.com/osa030/jukebox/internal/app/remote"
	"github.com/osa030/jukebox/internal/domain/track"
)

type fakeAdapter struct {
	mu sync.Mutex

	pollEmit    remote.Emit
	connectEmit remote.Emit
	loadEmit    remote.Emit
	pauseEmit   remote.Emit

	polls       int
	pollCancels int
	sdkLoads    int
	connects    int
	active      int
	maxActive   int
	loads       []string
	resumes     int
	pauses      int
	stops       int
	seeks       []int

	connectEvents []remote.Event
}

func (a *fakeAdapter) PollCredentials(emit remote.Emit) func() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.polls++
	a.pollEmit = emit
	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.pollCancels++
	}
}

func (a *fakeAdapter) LoadSDK() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sdkLoads++
}

func (a *fakeAdapter) Connect(emit remote.Emit) func() {
	a.mu.Lock()
	a.connects++
	a.active++
	a.maxActive = max(a.maxActive, a.active)
	a.connectEmit = emit
	events := a.connectEvents
	a.mu.Unlock()

	for _, e := range events {
		emit(e)
	}
	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.active--
	}
}

func (a *fakeAdapter) Load(t track.Track, deviceID string, emit remote.Emit) func() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.loads = append(a.loads, t.ID+"@"+deviceID)
	a.loadEmit = emit
	return func() {}
}

func (a *fakeAdapter) Resume() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resumes++
}

func (a *fakeAdapter) Pause(emit remote.Emit) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pauses++
	a.pauseEmit = emit
}

func (a *fakeAdapter) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stops++
}

func (a *fakeAdapter) Seek(positionMs int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seeks = append(a.seeks, positionMs)
}

// emit sends an event through the most recent emitter selected by pick.
func (a *fakeAdapter) emit(pick func(*fakeAdapter) remote.Emit, events ...remote.Event) {
	a.mu.Lock()
	emit := pick(a)
	a.mu.Unlock()
	for _, e := range events {
		emit(e)
	}
}

func poll(a *fakeAdapter) remote.Emit    { return a.pollEmit }
func connect(a *fakeAdapter) remote.Emit { return a.connectEmit }
func load(a *fakeAdapter) remote.Emit    { return a.loadEmit }
func pause(a *fakeAdapter) remote.Emit   { return a.pauseEmit }

type signalRecorder struct {
	mu      sync.Mutex
	signals []Signal
}

func record(sub *fsm.Subscription[Signal]) *signalRecorder {
	r := &signalRecorder{}
	go func() {
		for s := range sub.C() {
			r.mu.Lock()
			r.signals = append(r.signals, s)
			r.mu.Unlock()
		}
	}()
	return r
}

// lifecycle returns recorded signals other than SignalSeek.
func (r *signalRecorder) lifecycle() []SignalType {
	r.mu.Lock()
	defer r.mu.Unlock()
	var types []SignalType
	for _, s := range r.signals {
		if s.Type != SignalSeek {
			types = append(types, s.Type)
		}
	}
	return types
}

func (r *signalRecorder) seeks() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var seeks []int
	for _, s := range r.signals {
		if s.Type == SignalSeek {
			seeks = append(seeks, s.Seek)
		}
	}
	return seeks
}

var trackA = &track.Track{ID: "a", DurationMs: 180000, SpotifyTracks: []track.SpotifyTrack{{SpotifyID: "sa"}}}

func startController(t *testing.T, config Config) (*Controller, *fakeAdapter, *signalRecorder) {
	t.Helper()
	a := &fakeAdapter{}
	c := NewController(config, a)
	rec := record(c.Subscribe())
	c.Start(context.Background())
	t.Cleanup(func() {
		c.Close()
		<-c.Done()
	})
	synctest.Wait()
	return c, a, rec
}

// toPlaying drives a started controller to listening.playing.
func toPlaying(t *testing.T, c *Controller, a *fakeAdapter) {
	t.Helper()
	a.emit(poll, remote.Event{Type: remote.EventIdle})
	c.Send(Command{Type: CommandSetTrack, Track: trackA})
	c.Send(Command{Type: CommandLoad})
	synctest.Wait()
	a.emit(connect,
		remote.Event{Type: remote.EventDeviceReady, DeviceID: "dev"},
		remote.Event{Type: remote.EventConnected})
	synctest.Wait()
	a.emit(load, remote.Event{Type: remote.EventPlaying})
	synctest.Wait()
	require.Equal(t, StatePlaying, c.Snapshot().State)
}

func TestController_Lifecycle(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		c, a, rec := startController(t, Config{})
		assert.Equal(t, StateInitializing, c.Snapshot().State)
		assert.Equal(t, 1, a.polls)

		a.emit(poll, remote.Event{Type: remote.EventIdle})
		synctest.Wait()
		assert.Equal(t, StateIdle, c.Snapshot().State)
		assert.Equal(t, 1, a.pollCancels, "leaving initializing cancels polling")
		assert.Equal(t, 1, a.sdkLoads)

		c.Send(Command{Type: CommandSetTrack, Track: trackA})
		c.Send(Command{Type: CommandLoad})
		synctest.Wait()
		assert.Equal(t, StateConnecting, c.Snapshot().State)
		assert.Equal(t, 1, a.connects)

		a.emit(connect,
			remote.Event{Type: remote.EventDeviceReady, DeviceID: "dev"},
			remote.Event{Type: remote.EventConnected})
		synctest.Wait()
		snap := c.Snapshot()
		assert.Equal(t, StateLoading, snap.State)
		assert.Equal(t, "dev", snap.DeviceID)
		assert.Equal(t, []string{"a@dev"}, a.loads)

		a.emit(connect, remote.Event{Type: remote.EventPlaying})
		synctest.Wait()
		assert.Equal(t, StatePlaying, c.Snapshot().State)

		c.Send(Command{Type: CommandPause})
		synctest.Wait()
		assert.Equal(t, 1, a.pauses)
		assert.Equal(t, StatePlaying, c.Snapshot().State, "pause waits for the device")

		a.emit(pause, remote.Event{Type: remote.EventPaused})
		synctest.Wait()
		assert.Equal(t, StatePaused, c.Snapshot().State)

		c.Send(Command{Type: CommandPlay})
		synctest.Wait()
		assert.Equal(t, 1, a.resumes)

		a.emit(connect, remote.Event{Type: remote.EventPlaying})
		synctest.Wait()
		assert.Equal(t, StatePlaying, c.Snapshot().State)

		c.Send(Command{Type: CommandStop})
		synctest.Wait()
		assert.Equal(t, StateStopped, c.Snapshot().State)
		assert.Equal(t, 1, a.stops)
		assert.Equal(t, 0, a.active, "leaving listening closes the session")

		assert.Equal(t, []SignalType{
			SignalLoading, SignalPlaying, SignalPaused, SignalPlaying, SignalStopped,
		}, rec.lifecycle())
	})
}

func TestController_StaleSessionEventsDropped(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		c, a, rec := startController(t, Config{})
		toPlaying(t, c, a)

		c.Send(Command{Type: CommandStop})
		synctest.Wait()

		a.emit(connect, remote.Event{Type: remote.EventFinished})
		a.emit(load, remote.Event{Type: remote.EventPlaying})
		synctest.Wait()

		assert.Equal(t, StateStopped, c.Snapshot().State)
		assert.Equal(t, []SignalType{SignalLoading, SignalPlaying, SignalStopped}, rec.lifecycle())
	})
}

func TestController_StoppedWhileConnecting(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		c, a, rec := startController(t, Config{})
		a.connectEvents = []remote.Event{{Type: remote.EventStopped}}

		c.Send(Command{Type: CommandLoad})
		synctest.Wait()

		assert.Equal(t, StateStopped, c.Snapshot().State)
		assert.Equal(t, []SignalType{SignalStopped}, rec.lifecycle())
		assert.Equal(t, 0, a.active)
	})
}

func TestController_FinishedThenPlayReconnects(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		c, a, rec := startController(t, Config{})
		toPlaying(t, c, a)

		a.emit(connect, remote.Event{Type: remote.EventFinished})
		synctest.Wait()
		assert.Equal(t, StateFinished, c.Snapshot().State)
		assert.Equal(t, 0, a.active)

		c.Send(Command{Type: CommandPlay})
		synctest.Wait()
		assert.Equal(t, StateConnecting, c.Snapshot().State)
		assert.Equal(t, 2, a.connects)
		assert.Equal(t, 1, a.maxActive)

		assert.Equal(t, []SignalType{SignalLoading, SignalPlaying, SignalFinished}, rec.lifecycle())
	})
}

func TestController_LoadWhileListeningReconnects(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		c, a, _ := startController(t, Config{})
		toPlaying(t, c, a)

		c.Send(Command{Type: CommandLoad})
		synctest.Wait()

		assert.Equal(t, StateConnecting, c.Snapshot().State)
		assert.Equal(t, 2, a.connects)
		assert.Equal(t, 1, a.active)
		assert.Equal(t, 1, a.maxActive, "at most one session at a time")
	})
}

func TestController_StopFromFinished(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		c, a, _ := startController(t, Config{})
		toPlaying(t, c, a)
		a.emit(load, remote.Event{Type: remote.EventFinished})
		synctest.Wait()
		require.Equal(t, StatePlaying, c.Snapshot().State, "load events are scoped to loading")

		a.emit(connect, remote.Event{Type: remote.EventFinished})
		synctest.Wait()
		require.Equal(t, StateFinished, c.Snapshot().State)

		c.Send(Command{Type: CommandStop})
		synctest.Wait()
		assert.Equal(t, StateStopped, c.Snapshot().State)
		assert.Equal(t, 0, a.stops, "no device command outside listening")
	})
}

func TestController_IgnoresUnhandledCommands(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		c, a, rec := startController(t, Config{})

		c.Send(Command{Type: CommandPause})
		c.Send(Command{Type: CommandPlay})
		c.Send(Command{Type: CommandStop})
		synctest.Wait()

		assert.Equal(t, StateInitializing, c.Snapshot().State)
		assert.Equal(t, 0, a.pauses+a.resumes+a.stops)
		assert.Empty(t, rec.lifecycle())
	})
}

func TestController_Tick(t *testing.T) {
	tests := []struct {
		name       string
		durationMs int
		startMs    int
		ticks      int
		expected   int
	}{
		{name: "advances by one second", durationMs: 180000, startMs: 0, ticks: 3, expected: 3000},
		{name: "holds before passing duration", durationMs: 2500, startMs: 0, ticks: 5, expected: 2000},
		{name: "reaches duration exactly", durationMs: 3000, startMs: 1000, ticks: 5, expected: 3000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			synctest.Test(t, func(t *testing.T) {
				c, _, rec := startController(t, Config{})
				c.Send(Command{Type: CommandSetTrack, Track: &track.Track{ID: "x", DurationMs: tt.durationMs}})
				c.Send(Command{Type: CommandSetSeek, Seek: tt.startMs})
				for range tt.ticks {
					c.Send(Command{Type: CommandTick})
				}
				synctest.Wait()

				assert.Equal(t, tt.expected, c.Snapshot().Seek)
				seeks := rec.seeks()
				require.Len(t, seeks, tt.ticks, "every tick reports the position")
				for _, s := range seeks {
					assert.LessOrEqual(t, s, tt.durationMs)
				}
			})
		})
	}
}

func TestController_SelfTick(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		c, a, _ := startController(t, Config{SelfTick: true, TickInterval: time.Second})
		toPlaying(t, c, a)

		time.Sleep(3*time.Second + time.Millisecond)
		synctest.Wait()
		assert.Equal(t, 3000, c.Snapshot().Seek)

		c.Send(Command{Type: CommandPause})
		synctest.Wait()
		a.emit(pause, remote.Event{Type: remote.EventPaused})
		synctest.Wait()
		require.Equal(t, StatePaused, c.Snapshot().State)

		time.Sleep(5 * time.Second)
		synctest.Wait()
		assert.Equal(t, 3000, c.Snapshot().Seek, "no ticks while paused")
	})
}

func TestController_ChangeSeek(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		c, a, rec := startController(t, Config{})

		c.Send(Command{Type: CommandChangeSeek, Seek: 10000})
		synctest.Wait()
		assert.Equal(t, 0, c.Snapshot().Seek, "no device to seek")

		c.Send(Command{Type: CommandSetDeviceID, DeviceID: "dev"})
		c.Send(Command{Type: CommandChangeSeek, Seek: 42000})
		synctest.Wait()
		assert.Equal(t, 42000, c.Snapshot().Seek)

		a.mu.Lock()
		defer a.mu.Unlock()
		assert.Equal(t, []int{42000}, a.seeks)
		assert.Equal(t, []int{0, 42000}, rec.seeks())
	})
}

// blockingStore holds every read until the caller's context ends.
type blockingStore struct{}

func (blockingStore) Get(ctx context.Context, _ string) (string, bool) {
	<-ctx.Done()
	return "", false
}

func (blockingStore) Set(context.Context, string, string) error { return nil }

func TestController_SlowStoreDoesNotBlockCommands(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		adapter := remote.NewAdapter(remote.DefaultConfig(), blockingStore{}, nil, nil)
		c := NewController(Config{}, adapter)
		c.Start(context.Background())
		defer func() {
			c.Close()
			<-c.Done()
		}()

		// A credential poll is now waiting on the store.
		time.Sleep(time.Second + time.Millisecond)
		synctest.Wait()

		start := time.Now()
		c.Send(Command{Type: CommandSetDeviceID, DeviceID: "dev"})
		c.Send(Command{Type: CommandChangeSeek, Seek: 42000})
		c.Send(Command{Type: CommandSetDeviceID, DeviceID: "dev-2"})
		c.Send(Command{Type: CommandLoad})
		synctest.Wait()

		snap := c.Snapshot()
		assert.Equal(t, 42000, snap.Seek)
		assert.Equal(t, "dev-2", snap.DeviceID)
		assert.Equal(t, StateConnecting, snap.State)
		assert.Zero(t, time.Since(start), "no command waited on the store")
	})
}

func TestController_PositionCorrection(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		c, a, _ := startController(t, Config{})
		toPlaying(t, c, a)

		c.Send(Command{Type: CommandTick})
		a.emit(connect, remote.Event{Type: remote.EventPosition, PositionMs: 15000})
		synctest.Wait()
		assert.Equal(t, 15000, c.Snapshot().Seek)
	})
}

func TestController_Close(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		a := &fakeAdapter{}
		c := NewController(Config{SelfTick: true}, a)
		sub := c.Subscribe()
		c.Start(context.Background())
		synctest.Wait()

		c.Close()
		<-c.Done()

		_, ok := <-sub.C()
		assert.False(t, ok)
		assert.Equal(t, 1, a.pollCancels)
		assert.False(t, c.Send(Command{Type: CommandPlay}))
	})
}

func TestController_CloseBeforeStart(t *testing.T) {
	c := NewController(Config{}, &fakeAdapter{})
	c.Close()
	<-c.Done()
	c.Start(context.Background())
}
