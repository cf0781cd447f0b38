// Package transport is the master clock. It publishes one bus.Pulse per
// 24 PPQ tick on the TimingBus from its own goroutine.
package transport

import (
	"context"
	"runtime"
	"sync"
	"time"

	"go-beatgen/bus"
	"go-beatgen/debug"
)

// Tempo limits
const (
	MinTempo = 20
	MaxTempo = 300
)

// Clock drives the TimingBus. Pulse times are computed from an anchor so
// late wakeups do not accumulate drift.
type Clock struct {
	timing      *bus.TimingBus
	beatsPerBar int
	barsPerPart int

	mu      sync.Mutex
	bpm     float64
	tick    int64
	running bool
	stop    chan struct{}
	done    chan struct{}
	retempo chan struct{}
}

// New creates a stopped clock at tick 0
func New(timing *bus.TimingBus, bpm float64, beatsPerBar, barsPerPart int) *Clock {
	return &Clock{
		timing:      timing,
		beatsPerBar: beatsPerBar,
		barsPerPart: barsPerPart,
		bpm:         clampTempo(bpm),
		retempo:     make(chan struct{}, 1),
	}
}

func clampTempo(bpm float64) float64 {
	if bpm < MinTempo {
		return MinTempo
	}
	if bpm > MaxTempo {
		return MaxTempo
	}
	return bpm
}

// PulseDuration is the time between ticks at bpm
func PulseDuration(bpm float64) time.Duration {
	return time.Duration(float64(time.Minute) / (clampTempo(bpm) * bus.PPQ))
}

// SetTempo changes the BPM, clamped to [MinTempo, MaxTempo]
func (c *Clock) SetTempo(bpm float64) {
	c.mu.Lock()
	c.bpm = clampTempo(bpm)
	c.mu.Unlock()
	select {
	case c.retempo <- struct{}{}:
	default:
	}
}

func (c *Clock) Tempo() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bpm
}

// Tick returns the next tick to be published
func (c *Clock) Tick() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tick
}

func (c *Clock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Rewind moves the clock back to tick 0
func (c *Clock) Rewind() {
	c.mu.Lock()
	c.tick = 0
	c.mu.Unlock()
}

// Start launches the clock goroutine. It stops on Stop or when ctx ends.
// Starting a running clock does nothing.
func (c *Clock) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}
	c.running = true
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	go c.run(ctx, c.stop, c.done)
	debug.Log("transport", "start bpm=%.1f tick=%d", c.bpm, c.tick)
}

// Stop halts the clock and waits for its goroutine. Stopping a stopped clock
// does nothing.
func (c *Clock) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	stop, done := c.stop, c.done
	c.mu.Unlock()

	close(stop)
	<-done
	debug.Log("transport", "stop tick=%d", c.Tick())
}

// Pulse publishes the current tick and advances. The run loop calls it; it
// is exported so the clock can be stepped by hand.
func (c *Clock) Pulse() bus.Pulse {
	c.mu.Lock()
	p := bus.PulseAt(c.tick, c.bpm, c.beatsPerBar, c.barsPerPart)
	c.tick++
	c.mu.Unlock()

	if c.timing != nil {
		c.timing.Publish(p)
	}
	return p
}

func (c *Clock) run(ctx context.Context, stop, done chan struct{}) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(done)

	anchor := time.Now()
	anchorTick := c.Tick()
	interval := PulseDuration(c.Tempo())

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			c.mu.Lock()
			c.running = false
			c.mu.Unlock()
			return
		case <-stop:
			return
		case <-c.retempo:
			// Re-anchor so the new tempo applies from the next tick
			anchor = time.Now()
			anchorTick = c.Tick()
			interval = PulseDuration(c.Tempo())
			debug.Log("transport", "tempo %.1f", c.Tempo())
		case <-timer.C:
			p := c.Pulse()
			debug.LogEvery(bus.PPQ*16, "transport", "tick=%d bar=%d", p.Tick, p.Bar)
		}

		next := anchor.Add(time.Duration(c.Tick()-anchorTick) * interval)
		wait := time.Until(next)
		if wait < 0 {
			wait = 0
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)
	}
}
