package ipc

import (
	"context"
	"sync"

	"oasis/pkg/errno"
)

// PipeCapacity is the size of a pipe's ring buffer in bytes.
const PipeCapacity = 512

// Pipe errors.
var (
	ErrBrokenPipe    = errno.ErrBrokenPipe
	ErrWouldBlock    = errno.ErrWouldBlock
	ErrPoolExhausted = errno.ErrPipePoolExhausted
)

// Pipe is a fixed-capacity FIFO byte channel shared by every descriptor
// that references it. The reader and writer counts are its reference count:
// the pipe returns to its pool when both reach zero.
type Pipe struct {
	pool  *Pool
	index int

	// mu protects everything below.
	mu       sync.Mutex
	buf      [PipeCapacity]byte
	readPos  int
	writePos int
	count    int
	readers  int
	writers  int
	active   bool
	// changed is closed and replaced whenever data, space or the endpoint
	// counts change.
	changed chan struct{}
}

// Index returns the pipe's slot in its pool.
func (p *Pipe) Index() int {
	return p.index
}

// Read reads up to len(b) bytes, waiting while the pipe is empty and at
// least one writer remains. It returns 0 with a nil error at EOF.
func (p *Pipe) Read(ctx context.Context, b []byte) (int, error) {
	return p.read(ctx, b, true)
}

// TryRead is Read that fails with ErrWouldBlock instead of waiting.
func (p *Pipe) TryRead(b []byte) (int, error) {
	return p.read(context.Background(), b, false)
}

func (p *Pipe) read(ctx context.Context, b []byte, block bool) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}

	for {
		p.mu.Lock()
		if p.count > 0 {
			n := p.drain(b)
			p.notify()
			p.mu.Unlock()
			return n, nil
		}
		if p.writers == 0 {
			p.mu.Unlock()
			return 0, nil
		}
		if !block {
			p.mu.Unlock()
			return 0, ErrWouldBlock
		}
		ch := p.changed
		p.mu.Unlock()

		if err := p.wait(ctx, ch); err != nil {
			return 0, err
		}
	}
}

// Write writes b in FIFO order, waiting for space while readers remain. If
// the last reader goes away mid-write the bytes written so far are reported;
// with none written the result is ErrBrokenPipe.
func (p *Pipe) Write(ctx context.Context, b []byte) (int, error) {
	return p.write(ctx, b, true)
}

// TryWrite is Write that stops instead of waiting for space. It fails with
// ErrWouldBlock only when nothing could be written.
func (p *Pipe) TryWrite(b []byte) (int, error) {
	return p.write(context.Background(), b, false)
}

func (p *Pipe) write(ctx context.Context, b []byte, block bool) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}

	p.mu.Lock()
	if p.readers == 0 {
		p.mu.Unlock()
		return 0, ErrBrokenPipe
	}

	written := 0
	for written < len(b) {
		if p.count < PipeCapacity {
			written += p.fill(b[written:])
			p.notify()
			continue
		}

		if p.readers == 0 {
			p.mu.Unlock()
			if written > 0 {
				return written, nil
			}
			return 0, ErrBrokenPipe
		}
		if !block {
			p.mu.Unlock()
			if written > 0 {
				return written, nil
			}
			return 0, ErrWouldBlock
		}

		ch := p.changed
		p.mu.Unlock()
		if err := p.wait(ctx, ch); err != nil {
			return written, err
		}
		p.mu.Lock()
	}
	p.mu.Unlock()

	return written, nil
}

// drain copies buffered bytes into b. The caller holds p.mu.
func (p *Pipe) drain(b []byte) int {
	n := min(len(b), p.count)
	for i := 0; i < n; i++ {
		b[i] = p.buf[p.readPos]
		p.readPos = (p.readPos + 1) % PipeCapacity
	}
	p.count -= n
	return n
}

// fill copies as much of b as fits. The caller holds p.mu.
func (p *Pipe) fill(b []byte) int {
	n := min(len(b), PipeCapacity-p.count)
	for i := 0; i < n; i++ {
		p.buf[p.writePos] = b[i]
		p.writePos = (p.writePos + 1) % PipeCapacity
	}
	p.count += n
	return n
}

// notify wakes every waiter. The caller holds p.mu.
func (p *Pipe) notify() {
	close(p.changed)
	p.changed = make(chan struct{})
}

// wait yields to the scheduler and parks until ch is closed or ctx is
// done. A woken waiter runs the resume hook before it returns.
func (p *Pipe) wait(ctx context.Context, ch <-chan struct{}) error {
	p.pool.yield(ctx)

	select {
	case <-ch:
	case <-ctx.Done():
		return ctx.Err()
	}
	return p.pool.resume(ctx)
}

// AddReader records another descriptor referencing the read end.
func (p *Pipe) AddReader() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readers++
}

// AddWriter records another descriptor referencing the write end.
func (p *Pipe) AddWriter() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writers++
}

// ReleaseReader drops one read-end reference. It reports whether the pipe
// went back to the pool.
func (p *Pipe) ReleaseReader() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.readers > 0 {
		p.readers--
	}
	return p.releaseLocked()
}

// ReleaseWriter drops one write-end reference. It reports whether the pipe
// went back to the pool.
func (p *Pipe) ReleaseWriter() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writers > 0 {
		p.writers--
	}
	return p.releaseLocked()
}

func (p *Pipe) releaseLocked() bool {
	p.notify()
	if p.readers == 0 && p.writers == 0 && p.active {
		p.active = false
		return true
	}
	return false
}

// Stats is a point-in-time view of a pipe.
type Stats struct {
	Index    int
	Active   bool
	Buffered int
	Readers  int
	Writers  int
}

// Stats returns the pipe's counters.
func (p *Pipe) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Index:    p.index,
		Active:   p.active,
		Buffered: p.count,
		Readers:  p.readers,
		Writers:  p.writers,
	}
}
