package srv

import (
	"sync"
	"time"
)

// OneShot is a cancellable single-fire timer. Cancel is idempotent and a
// no-op once the timer has fired; the callback runs on its own goroutine
// and must take whatever room lock it needs itself.
type OneShot struct {
	mu    sync.Mutex
	timer *time.Timer
	fired bool
	done  bool
}

// NewOneShot schedules fn to run after d.
func NewOneShot(d time.Duration, fn func()) *OneShot {
	os := &OneShot{}
	os.timer = time.AfterFunc(d, func() {
		os.mu.Lock()
		if os.done {
			os.mu.Unlock()
			return
		}
		os.fired = true
		os.mu.Unlock()
		fn()
	})
	return os
}

// Cancel stops the timer if it has not fired yet.
func (os *OneShot) Cancel() {
	os.mu.Lock()
	defer os.mu.Unlock()
	if os.done || os.fired {
		return
	}
	os.done = true
	os.timer.Stop()
}

// Fired reports whether the callback has started running.
func (os *OneShot) Fired() bool {
	os.mu.Lock()
	defer os.mu.Unlock()
	return os.fired
}

// Countdown runs the pre-game countdown: it emits seconds, seconds-1, ...
// 1 at one-second intervals starting immediately, then calls onDone one
// second after the final tick.
type Countdown struct {
	mu     sync.Mutex
	cancel chan struct{}
}

// NewCountdown starts a countdown from the given number of seconds.
// onTick receives each remaining-seconds value; onDone fires once after
// the last interval elapses. Stop aborts both.
func NewCountdown(seconds int, onTick func(left int), onDone func()) *Countdown {
	c := &Countdown{cancel: make(chan struct{})}
	go c.run(seconds, onTick, onDone)
	return c
}

func (c *Countdown) run(seconds int, onTick func(int), onDone func()) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	onTick(seconds)
	left := seconds
	for {
		select {
		case <-c.cancel:
			return
		case <-ticker.C:
			left--
			if left <= 0 {
				onDone()
				return
			}
			onTick(left)
		}
	}
}

// Stop cancels the countdown. Safe to call more than once and after the
// countdown has completed.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.cancel:
	default:
		close(c.cancel)
	}
}

// TickLoop invokes a callback every second until stopped. The room uses
// one to broadcast timerSync while the game is in progress.
type TickLoop struct {
	mu     sync.Mutex
	cancel chan struct{}
}

// NewTickLoop starts the loop; onTick runs once per second.
func NewTickLoop(onTick func()) *TickLoop {
	tl := &TickLoop{cancel: make(chan struct{})}
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-tl.cancel:
				return
			case <-ticker.C:
				onTick()
			}
		}
	}()
	return tl
}

// Stop halts the loop. Idempotent.
func (tl *TickLoop) Stop() {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	select {
	case <-tl.cancel:
	default:
		close(tl.cancel)
	}
}
