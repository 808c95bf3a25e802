package process

import (
	"oasis/pkg/process/fd"
)

// TaskID identifies a task. IDs start at 1 and are never reused.
type TaskID uint32

// NoTask is the zero TaskID. It never names a task.
const NoTask TaskID = 0

// Default EFLAGS (IF set) and kernel code segment for new tasks.
const (
	initialEFlags uint32 = 0x202
	kernelCS      uint32 = 0x08
)

// Context is a task's saved register state. The context-switch trampoline
// loads it when the task is resumed.
type Context struct {
	EAX, EBX, ECX, EDX uint32
	ESI, EDI, EBP, ESP uint32
	EIP                uint32
	EFLAGS             uint32
	CS                 uint32
	CR3                uint32
}

// clearGeneral zeroes the general-purpose registers.
func (c *Context) clearGeneral() {
	c.EAX, c.EBX, c.ECX, c.EDX = 0, 0, 0, 0
	c.ESI, c.EDI = 0, 0
}

// Stack is the region a task's stack occupies in the flat address space.
type Stack struct {
	Base uint32
	Size uint32
}

// Top returns the first address above the stack.
func (s Stack) Top() uint32 {
	return s.Base + s.Size
}

// initialSP returns the stack pointer a fresh task starts with.
func (s Stack) initialSP() uint32 {
	return s.Top() - 4
}

// Task is one process control block.
type Task struct {
	// ID is the unique task identifier.
	ID TaskID
	// ParentID is the ID of the forking task, or NoTask.
	ParentID TaskID
	// State is the lifecycle state.
	State State
	// ExitCode is recorded by Exit.
	ExitCode int
	// Context is the saved register state.
	Context Context
	// Stack is the task's stack region.
	Stack Stack
	// Files is the task's descriptor table. It is never nil once the task
	// exists.
	Files *fd.Table

	// slot is the task's index in the table; next and prev are the slots
	// of its ready-list neighbours.
	slot int
	next int
	prev int
}

// Slot returns the task's index in its table.
func (t *Task) Slot() int {
	return t.slot
}

// IsRunnable returns true if the task can be given the CPU.
func (t *Task) IsRunnable() bool {
	return t.State == StateReady || t.State == StateRunning
}
