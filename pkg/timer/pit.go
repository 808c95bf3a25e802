// Package timer provides the periodic tick that drives preemption.
package timer

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultHz is the default tick rate: one tick every 10ms.
const DefaultHz = 100

// ErrBadFrequency is returned for a tick rate that is not positive.
var ErrBadFrequency = errors.New("timer frequency must be positive")

// Handler receives timer interrupts.
type Handler interface {
	Tick()
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func()

// Tick calls f.
func (f HandlerFunc) Tick() { f() }

// PIT is a programmable interval timer. Every period it counts a tick and
// calls its handler.
type PIT struct {
	hz      int
	handler Handler

	mu    sync.Mutex
	ticks uint64
	// tick is closed and replaced on every tick.
	tick chan struct{}
}

// New creates a timer firing hz times a second. A nil handler only counts
// ticks.
func New(hz int, h Handler) (*PIT, error) {
	if hz <= 0 {
		return nil, ErrBadFrequency
	}
	return &PIT{hz: hz, handler: h, tick: make(chan struct{})}, nil
}

// Hz returns the tick rate.
func (p *PIT) Hz() int {
	return p.hz
}

// Period returns the time between ticks.
func (p *PIT) Period() time.Duration {
	return time.Second / time.Duration(p.hz)
}

// Run fires the timer until ctx is done.
func (p *PIT) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.Period())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.Fire()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Fire delivers one interrupt: the tick count advances, then the handler
// runs.
func (p *PIT) Fire() {
	p.mu.Lock()
	p.ticks++
	close(p.tick)
	p.tick = make(chan struct{})
	p.mu.Unlock()

	if p.handler != nil {
		p.handler.Tick()
	}
}

// Ticks returns the number of ticks since the timer was created.
func (p *PIT) Ticks() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ticks
}

// Sleep waits until ms milliseconds' worth of ticks have passed. Sleeps
// shorter than one tick return immediately.
func (p *PIT) Sleep(ctx context.Context, ms uint32) error {
	p.mu.Lock()
	target := p.ticks + uint64(ms)*uint64(p.hz)/1000
	p.mu.Unlock()

	for {
		p.mu.Lock()
		if p.ticks >= target {
			p.mu.Unlock()
			return nil
		}
		ch := p.tick
		p.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
