package remote

import (
	"context"
	"time"
)

const wallClockResolution = 100 * time.Millisecond

// afterWallClock calls fn once duration has passed on the wall clock.
// It returns a cancel function; fn is not called after cancel returns
// unless it had already started.
func afterWallClock(duration time.Duration, fn func()) func() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)

		endTime := toWallTime(time.Now()).Add(duration)
		ticker := time.NewTicker(wallClockResolution)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !toWallTime(time.Now()).Before(endTime) {
					fn()
					return
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// every calls fn each interval until cancelled or fn returns false.
// fn receives a context that is cancelled with the returned function.
func every(interval time.Duration, fn func(ctx context.Context) bool) func() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !fn(ctx) {
					return
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// toWallTime strips the monotonic reading so suspended hosts do not stretch timers.
func toWallTime(t time.Time) time.Time {
	return time.Unix(t.Unix(), int64(t.Nanosecond()))
}
