package process

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"

	"oasis/pkg/errno"
	"oasis/pkg/process/fd"
	"oasis/pkg/process/ipc"
)

// Lifecycle errors.
var (
	ErrTableFull     = errno.ErrTaskTableFull
	ErrNoCurrentTask = errno.ErrNoCurrentTask
	ErrNoChild       = errno.ErrNoChild
)

// Default table geometry.
const (
	DefaultMaxTasks  = 16
	DefaultStackBase = 0x10000
	DefaultStackSize = 4096
)

// Config contains configuration for a task table.
type Config struct {
	// MaxTasks is the number of task slots. Slots are never reused.
	MaxTasks int
	// StackBase is the address of slot 0's stack.
	StackBase uint32
	// StackSize is the size of each task's stack.
	StackSize uint32
	// Policy selects the scheduling behaviour.
	Policy Policy
	// Logger receives lifecycle messages. Nil discards them.
	Logger *log.Logger
	// Console backs stdio in every descriptor table. Nil discards output.
	Console fd.Console
	// Pipes is the system pipe pool. Nil creates a default-sized pool.
	Pipes *ipc.Pool
}

// DefaultConfig returns the default table configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxTasks:  DefaultMaxTasks,
		StackBase: DefaultStackBase,
		StackSize: DefaultStackSize,
		Policy:    PolicyRoundRobin,
	}
}

// Table is the fixed-capacity task table together with its circular ready
// list and the current-task pointer.
type Table struct {
	mu  sync.Mutex
	cfg Config
	log *log.Logger

	slots   []Task
	count   int
	current int
	lastID  TaskID

	switches uint64
	// switched is closed and replaced whenever the current task changes.
	switched chan struct{}
}

// NewTable creates an empty task table. Pipe waits in the table's pool
// yield to the scheduler.
func NewTable(cfg *Config) *Table {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := *cfg
	if c.MaxTasks < 1 {
		c.MaxTasks = DefaultMaxTasks
	}
	if c.StackSize == 0 {
		c.StackSize = DefaultStackSize
	}
	if c.Console == nil {
		c.Console = fd.Discard
	}
	if c.Pipes == nil {
		c.Pipes = ipc.NewPool(ipc.DefaultPoolSize)
	}
	logger := c.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	t := &Table{
		cfg:      c,
		log:      logger,
		slots:    make([]Task, c.MaxTasks),
		current:  -1,
		switched: make(chan struct{}),
	}
	c.Pipes.SetYield(func(context.Context) { t.Schedule() })
	return t
}

// Pipes returns the pipe pool shared by every task.
func (t *Table) Pipes() *ipc.Pool {
	return t.cfg.Pipes
}

// Console returns the console device bound to stdio.
func (t *Table) Console() fd.Console {
	return t.cfg.Console
}

// Logger returns the table's logger.
func (t *Table) Logger() *log.Logger {
	return t.log
}

// stackFor returns the stack region of a slot.
func (t *Table) stackFor(slot int) Stack {
	return Stack{
		Base: t.cfg.StackBase + uint32(slot)*t.cfg.StackSize,
		Size: t.cfg.StackSize,
	}
}

// allocLocked claims the next slot and assigns it a fresh ID. Callers check
// capacity first.
func (t *Table) allocLocked() *Task {
	slot := t.count
	t.lastID++
	task := &t.slots[slot]
	*task = Task{
		ID:    t.lastID,
		State: StateReady,
		Stack: t.stackFor(slot),
		slot:  slot,
	}
	return task
}

// commitLocked links an allocated task into the ready list and counts it.
func (t *Table) commitLocked(task *Task) {
	t.linkLocked(task.slot)
	t.count++
}

// Create creates a Ready task that starts at entry with a fresh descriptor
// table.
func (t *Table) Create(entry uint32) (TaskID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.count >= len(t.slots) {
		t.log.Printf("[!] task limit reached (%d)", len(t.slots))
		return NoTask, ErrTableFull
	}

	task := t.allocLocked()
	task.Files = fd.NewTable(t.cfg.Console, t.cfg.Pipes)
	task.Context = Context{
		ESP:    task.Stack.initialSP(),
		EIP:    entry,
		EFLAGS: initialEFlags,
		CS:     kernelCS,
	}
	task.Context.EBP = task.Context.ESP
	t.commitLocked(task)

	t.log.Printf("[+] task created: id=%d stack=%#x", task.ID, task.Stack.Base)
	return task.ID, nil
}

// Fork duplicates the current task. The child gets a copy of the parent's
// saved context with its own stack pointer and EAX cleared, so that its
// first resumption sees 0, and a copy of the parent's descriptor table.
// Stack contents are not copied. Fork returns the child's ID.
func (t *Table) Fork() (TaskID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current < 0 {
		return NoTask, ErrNoCurrentTask
	}
	if t.count >= len(t.slots) {
		t.log.Printf("[!] fork: task limit reached (%d)", len(t.slots))
		return NoTask, ErrTableFull
	}

	parent := &t.slots[t.current]
	child := t.allocLocked()
	child.ParentID = parent.ID
	child.Context = parent.Context
	child.Context.ESP = child.Stack.initialSP()
	child.Context.EAX = 0

	child.Files = fd.NewTable(t.cfg.Console, t.cfg.Pipes)
	fd.Copy(child.Files, parent.Files)
	t.commitLocked(child)

	t.log.Printf("[+] task forked: id=%d parent=%d", child.ID, parent.ID)
	return child.ID, nil
}

// Exit terminates the current task. Every descriptor is closed, which
// returns drained pipes to the pool. The task keeps its slot and its place
// in the ready list. Exit does nothing when there is no current task.
func (t *Table) Exit(code int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current < 0 {
		return
	}
	task := &t.slots[t.current]
	if task.State == StateDead {
		return
	}

	task.Files.CloseAll()
	task.ExitCode = code
	task.mustTransition(StateDead)

	t.log.Printf("[+] task exited: id=%d code=%d", task.ID, code)
}

// Wait returns the first live child of the current task in table order
// along with its recorded exit code. It neither blocks nor reaps.
func (t *Table) Wait() (TaskID, int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current < 0 {
		return NoTask, 0, ErrNoCurrentTask
	}
	self := t.slots[t.current].ID
	for i := 0; i < t.count; i++ {
		c := &t.slots[i]
		if c.ParentID == self && c.State != StateDead {
			return c.ID, c.ExitCode, nil
		}
	}
	return NoTask, 0, ErrNoChild
}

// Exec resets the current task's stack pointer, frame pointer and general
// registers. No program image is loaded; image is accepted for the calling
// convention only.
func (t *Table) Exec(image []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current < 0 {
		return ErrNoCurrentTask
	}
	task := &t.slots[t.current]
	task.Context.ESP = task.Stack.initialSP()
	task.Context.EBP = task.Context.ESP
	task.Context.clearGeneral()

	t.log.Printf("[+] task exec: id=%d image=%d bytes", task.ID, len(image))
	return nil
}

// GetPID returns the current task's ID, or NoTask.
func (t *Table) GetPID() TaskID {
	t.mu.Lock()
	defer t.mu.Unlock()

	id, _ := t.currentIDLocked()
	return id
}

// GetPPID returns the current task's parent ID, or NoTask.
func (t *Table) GetPPID() TaskID {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current < 0 {
		return NoTask
	}
	return t.slots[t.current].ParentID
}

// Current returns a copy of the current task. ok is false until the
// scheduler has selected a task.
func (t *Table) Current() (task Task, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current < 0 {
		return Task{}, false
	}
	return t.slots[t.current], true
}

// CurrentFiles returns the current task's descriptor table.
func (t *Table) CurrentFiles() (*fd.Table, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current < 0 {
		return nil, ErrNoCurrentTask
	}
	return t.slots[t.current].Files, nil
}

// Get returns a copy of the task with the given ID.
func (t *Table) Get(id TaskID) (Task, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	task, err := t.lookupLocked(id)
	if err != nil {
		return Task{}, err
	}
	return *task, nil
}

// Len returns the number of tasks ever created.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// Cap returns the number of task slots.
func (t *Table) Cap() int {
	return len(t.slots)
}

// Snapshot returns copies of every task in table order.
func (t *Table) Snapshot() []Task {
	t.mu.Lock()
	defer t.mu.Unlock()

	tasks := make([]Task, t.count)
	copy(tasks, t.slots[:t.count])
	return tasks
}

// WriteInfo prints the task table to w.
func (t *Table) WriteInfo(w io.Writer) error {
	tasks := t.Snapshot()
	if _, err := fmt.Fprintf(w, "Task Info:\n  Total tasks: %d\n\n", len(tasks)); err != nil {
		return err
	}
	cur := t.GetPID()
	for i, task := range tasks {
		mark := " "
		if task.ID == cur {
			mark = "*"
		}
		_, err := fmt.Fprintf(w, " %s Task %d: ID=%d PPID=%d State=%s Stack=%#x EIP=%#x\n",
			mark, i, task.ID, task.ParentID, task.State, task.Stack.Base, task.Context.EIP)
		if err != nil {
			return err
		}
	}
	return nil
}

// Switched returns a channel that is closed the next time the current task
// changes.
func (t *Table) Switched() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.switched
}

func (t *Table) notifySwitchLocked() {
	t.switches++
	close(t.switched)
	t.switched = make(chan struct{})
}

func (t *Table) currentIDLocked() (TaskID, bool) {
	if t.current < 0 {
		return NoTask, false
	}
	return t.slots[t.current].ID, true
}

func (t *Table) lookupLocked(id TaskID) (*Task, error) {
	for i := 0; i < t.count; i++ {
		if t.slots[i].ID == id {
			return &t.slots[i], nil
		}
	}
	return nil, fmt.Errorf("task %d: %w", id, ErrTaskNotFound)
}
