package ipc

import (
	"context"
	"sync"
)

// DefaultPoolSize is the number of system-wide pipes.
const DefaultPoolSize = 8

// Pool is the fixed set of pipes available to the system.
type Pool struct {
	mu    sync.Mutex
	pipes []*Pipe
	// onWait runs before a reader or writer parks; onWake runs after it
	// is woken, before it looks at the pipe again.
	onWait func(ctx context.Context)
	onWake func(ctx context.Context) error
}

// NewPool creates a pool of size pipes. A size below one uses
// DefaultPoolSize.
func NewPool(size int) *Pool {
	if size < 1 {
		size = DefaultPoolSize
	}

	pl := &Pool{pipes: make([]*Pipe, size)}
	for i := range pl.pipes {
		pl.pipes[i] = &Pipe{
			pool:    pl,
			index:   i,
			changed: make(chan struct{}),
		}
	}
	return pl
}

// SetYield installs fn as the hook run before any pipe wait parks. It is
// called with the waiting operation's context. The process table uses it to
// let other tasks make progress.
func (pl *Pool) SetYield(fn func(ctx context.Context)) {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	pl.onWait = fn
}

func (pl *Pool) yield(ctx context.Context) {
	pl.mu.Lock()
	fn := pl.onWait
	pl.mu.Unlock()

	if fn != nil {
		fn(ctx)
	}
}

// SetResume installs fn as the hook run when a parked reader or writer is
// woken. The wait fails with fn's error. The CPU uses it to take the
// processor back before the pipe is touched again.
func (pl *Pool) SetResume(fn func(ctx context.Context) error) {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	pl.onWake = fn
}

func (pl *Pool) resume(ctx context.Context) error {
	pl.mu.Lock()
	fn := pl.onWake
	pl.mu.Unlock()

	if fn == nil {
		return nil
	}
	return fn(ctx)
}

// Create allocates the first inactive pipe with one reader and one writer.
func (pl *Pool) Create() (*Pipe, error) {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	for _, p := range pl.pipes {
		p.mu.Lock()
		if !p.active {
			p.active = true
			p.readPos = 0
			p.writePos = 0
			p.count = 0
			p.readers = 1
			p.writers = 1
			p.mu.Unlock()
			return p, nil
		}
		p.mu.Unlock()
	}

	return nil, ErrPoolExhausted
}

// Get returns the pipe in slot i, or nil if i is out of range.
func (pl *Pool) Get(i int) *Pipe {
	if i < 0 || i >= len(pl.pipes) {
		return nil
	}
	return pl.pipes[i]
}

// Len returns the pool capacity.
func (pl *Pool) Len() int {
	return len(pl.pipes)
}

// Active returns the number of allocated pipes.
func (pl *Pool) Active() int {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	n := 0
	for _, p := range pl.pipes {
		p.mu.Lock()
		if p.active {
			n++
		}
		p.mu.Unlock()
	}
	return n
}
