package main

import (
	"context"
	"strconv"

	"golang.org/x/sync/errgroup"

	"oasis/pkg/errno"
	"oasis/pkg/process"
	"oasis/pkg/process/fd"
	"oasis/pkg/trap"
)

// program is the code a task runs. It reaches the kernel only through the
// system calls on p.
type program func(p *proc)

// machine runs task programs as goroutines on one simulated CPU.
type machine struct {
	tasks *process.Table
	cpu   *process.CPU
	sys   *trap.Dispatcher
	mem   trap.FlatMemory

	ctx   context.Context
	progs *errgroup.Group
	boot  []bootTask
}

type bootTask struct {
	id   process.TaskID
	prog program
}

func newMachine(cfg *process.Config) *machine {
	tasks := process.NewTable(cfg)
	mem := trap.NewFlatMemory(int(cfg.StackBase) + cfg.MaxTasks*int(cfg.StackSize))
	return &machine{
		tasks: tasks,
		cpu:   process.NewCPU(tasks),
		sys:   trap.NewDispatcher(tasks, mem),
		mem:   mem,
	}
}

// spawn creates a task for prog. It starts running when the machine does.
func (m *machine) spawn(entry uint32, prog program) (process.TaskID, error) {
	id, err := m.tasks.Create(entry)
	if err != nil {
		return process.NoTask, err
	}
	m.boot = append(m.boot, bootTask{id: id, prog: prog})
	return id, nil
}

// run switches to the first task, starts every spawned program and waits
// for all of them, forked children included, to finish.
func (m *machine) run(ctx context.Context) error {
	m.progs, m.ctx = errgroup.WithContext(ctx)
	if len(m.boot) > 0 {
		if err := m.tasks.Switch(m.boot[0].id); err != nil {
			return err
		}
	}
	for _, b := range m.boot {
		m.start(b.id, b.prog)
	}
	return m.progs.Wait()
}

func (m *machine) start(id process.TaskID, prog program) {
	m.progs.Go(func() error {
		task, err := m.tasks.Get(id)
		if err != nil {
			return err
		}
		p := &proc{m: m, id: id, scratch: task.Stack.Base}
		prog(p)
		if !p.exited {
			p.exit(0)
		}
		return p.err
	})
}

// Scratch layout inside a task's stack region. Arguments are copied to the
// bottom of the region; the stack itself grows down from the top.
const (
	argArea  = 0
	argSize  = 1024
	bufArea  = argSize
	bufSize  = 1024
	pairArea = bufArea + bufSize
)

// proc is the user-space view of one task.
type proc struct {
	m       *machine
	id      process.TaskID
	scratch uint32
	exited  bool
	err     error
}

// syscall traps into the kernel once this task holds the CPU.
func (p *proc) syscall(sel trap.Selector, a1, a2, a3 uint32) uint32 {
	if p.err != nil {
		return trap.Invalid
	}
	ctx, release, err := p.m.cpu.Acquire(p.m.ctx, p.id)
	if err != nil {
		p.err = err
		return trap.Invalid
	}
	defer release()
	return p.m.sys.Dispatch(ctx, sel, a1, a2, a3)
}

// ret decodes a system call result into a value and an errno.
func ret(v uint32) (int, error) {
	n, e, ok := errno.FromReturn(v)
	if !ok {
		return -1, e
	}
	return int(n), nil
}

func (p *proc) writeFD(fdn int, b []byte) int {
	total := 0
	for len(b) > 0 {
		chunk := b
		if len(chunk) > argSize {
			chunk = chunk[:argSize]
		}
		addr := p.scratch + argArea
		copy(p.m.mem[addr:], chunk)
		n, err := ret(p.syscall(trap.SysWriteFD, uint32(fdn), addr, uint32(len(chunk))))
		if err != nil {
			if total == 0 {
				return n
			}
			break
		}
		total += n
		if n < len(chunk) {
			break
		}
		b = b[n:]
	}
	return total
}

func (p *proc) print(s string)  { p.writeFD(fd.Stdout, []byte(s)) }
func (p *proc) eprint(s string) { p.writeFD(fd.Stderr, []byte(s)) }

func (p *proc) printNum(n int) { p.print(strconv.Itoa(n)) }

// write is the legacy stdout write.
func (p *proc) write(s string) int {
	addr := p.scratch + argArea
	n := copy(p.m.mem[addr:addr+argSize], s)
	v, _ := ret(p.syscall(trap.SysWrite, addr, uint32(n), 0))
	return v
}

func (p *proc) read(fdn int, max int) (string, int) {
	if max > bufSize {
		max = bufSize
	}
	addr := p.scratch + bufArea
	n, err := ret(p.syscall(trap.SysRead, uint32(fdn), addr, uint32(max)))
	if err != nil || n <= 0 {
		return "", n
	}
	return string(p.m.mem[addr : addr+uint32(n)]), n
}

func (p *proc) pipe() (int, int, error) {
	addr := p.scratch + pairArea
	if _, err := ret(p.syscall(trap.SysPipe, addr, 0, 0)); err != nil {
		return -1, -1, err
	}
	rfd, _ := trap.ReadUint32(p.m.mem, addr)
	wfd, _ := trap.ReadUint32(p.m.mem, addr+4)
	return int(rfd), int(wfd), nil
}

func (p *proc) open(path string, flags int) int {
	addr := p.scratch + argArea
	trap.WriteString(p.m.mem, addr, path)
	n, _ := ret(p.syscall(trap.SysOpen, addr, uint32(flags), 0))
	return n
}

func (p *proc) close(fdn int) int {
	n, _ := ret(p.syscall(trap.SysClose, uint32(fdn), 0, 0))
	return n
}

func (p *proc) dup(fdn int) int {
	n, _ := ret(p.syscall(trap.SysDup, uint32(fdn), 0, 0))
	return n
}

func (p *proc) dup2(oldfd, newfd int) int {
	n, _ := ret(p.syscall(trap.SysDup2, uint32(oldfd), uint32(newfd), 0))
	return n
}

func (p *proc) fdinfo() {
	p.syscall(trap.SysFDInfo, 0, 0, 0)
}

func (p *proc) getpid() int {
	return int(p.syscall(trap.SysGetPID, 0, 0, 0))
}

func (p *proc) getppid() int {
	return int(p.syscall(trap.SysGetPPID, 0, 0, 0))
}

func (p *proc) yield() {
	p.syscall(trap.SysYield, 0, 0, 0)
}

func (p *proc) sleep(ms uint32) {
	p.syscall(trap.SysSleep, ms, 0, 0)
}

func (p *proc) exec() int {
	n, _ := ret(p.syscall(trap.SysExec, 0, 0, 0))
	return n
}

// fork duplicates the task. The child runs child; the parent gets the
// child's ID, or -1.
func (p *proc) fork(child program) int {
	id, err := ret(p.syscall(trap.SysFork, 0, 0, 0))
	if err != nil {
		return -1
	}
	p.m.start(process.TaskID(id), child)
	return id
}

// wait returns the first live child and its status, or -1 without one.
func (p *proc) wait() (int, int) {
	addr := p.scratch + pairArea
	id, err := ret(p.syscall(trap.SysWait, addr, 0, 0))
	if err != nil {
		return -1, 0
	}
	status, _ := trap.ReadUint32(p.m.mem, addr)
	return id, int(int32(status))
}

// waitAll polls wait, yielding between polls, until no child is live.
func (p *proc) waitAll() {
	for {
		if id, _ := p.wait(); id < 0 {
			return
		}
		p.yield()
	}
}

func (p *proc) exit(code int) {
	p.syscall(trap.SysExit, uint32(int32(code)), 0, 0)
	p.exited = true
}
