/*
Package process provides the task table, scheduler and process lifecycle
of the Oasis kernel.

A Table holds a fixed number of task slots. Each task owns exactly one
descriptor table from package fd, and every table draws its pipes from one
shared pool in package ipc. Slots are handed out in order and never reused:
once MaxTasks tasks have been created, Create and Fork fail with
ErrTableFull.

# Task States

  - Ready: the task is waiting for the CPU
  - Running: the task is the current task
  - Blocked: the task is suspended until Wake
  - Dead: the task has exited; it keeps its slot and its ready-list turn

# Scheduling

Schedule advances the current task round-robin through the circular ready
list. It runs on every timer tick and on every yield, including the yield a
pipe read or write performs before it parks. Under PolicyRoundRobin the
scheduler moves to the next task whatever its state, so Dead and Blocked
tasks keep occupying turns. PolicySkipInactive passes over them.

# Usage

	t := process.NewTable(process.DefaultConfig())
	id, err := t.Create(entry)
	if err != nil {
		// table full
	}
	t.Switch(id)

	child, err := t.Fork()
	...
	t.Exit(0)

When tasks run as goroutines, a CPU serializes them: a goroutine acquires
the CPU for its task before each system call, and timer ticks go through
CPU.Tick.
*/
package process
