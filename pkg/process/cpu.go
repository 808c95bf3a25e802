package process

import (
	"context"
	"sync"
)

// CPU serializes task execution when tasks run as goroutines. A goroutine
// may issue a system call only while it holds the CPU, and it holds the CPU
// only while its task is current. Timer ticks take the CPU too, so a tick
// never lands in the middle of a call.
type CPU struct {
	table *Table
	// mu is the processor itself.
	mu sync.Mutex
}

type cpuKey struct{}

// hold is one system call's claim on the CPU. A pipe wait gives the CPU up
// while the caller is parked and takes it back before the call continues.
// A hold belongs to the goroutine making the call.
type hold struct {
	cpu  *CPU
	id   TaskID
	held bool
}

func (h *hold) release() {
	if h.held {
		h.held = false
		h.cpu.mu.Unlock()
	}
}

// NewCPU creates a CPU for the tasks of table and installs its wait hooks
// on the table's pipe pool.
func NewCPU(table *Table) *CPU {
	c := &CPU{table: table}
	table.Pipes().SetYield(c.yield)
	table.Pipes().SetResume(c.resume)
	return c
}

// Acquire waits until id is the current task and takes the CPU. The
// returned context must be passed to the system call so a parked pipe wait
// can give the CPU back. Call release when the call returns.
func (c *CPU) Acquire(ctx context.Context, id TaskID) (context.Context, func(), error) {
	if err := c.acquire(ctx, id); err != nil {
		return nil, nil, err
	}
	h := &hold{cpu: c, id: id, held: true}
	return context.WithValue(ctx, cpuKey{}, h), h.release, nil
}

// acquire returns with c.mu held and id current.
func (c *CPU) acquire(ctx context.Context, id TaskID) error {
	for {
		switched := c.table.Switched()

		c.mu.Lock()
		if c.table.GetPID() == id {
			return nil
		}
		c.mu.Unlock()

		select {
		case <-switched:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Tick runs the timer interrupt handler on the CPU.
func (c *CPU) Tick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.table.Tick()
}

// yield is the pipe wait hook. It gives up the CPU held by the waiting call,
// if any, and runs the scheduler.
func (c *CPU) yield(ctx context.Context) {
	if h, ok := ctx.Value(cpuKey{}).(*hold); ok {
		h.release()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.table.Schedule()
}

// resume is the pipe wake hook. A woken call waits for its task's next turn
// and takes the CPU back before it touches the pipe again. If ctx ends
// first the call returns without the CPU.
func (c *CPU) resume(ctx context.Context) error {
	h, ok := ctx.Value(cpuKey{}).(*hold)
	if !ok || h.held {
		return nil
	}
	if err := c.acquire(ctx, h.id); err != nil {
		return err
	}
	h.held = true
	return nil
}
