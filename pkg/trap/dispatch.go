package trap

import (
	"context"
	"encoding/binary"

	"oasis/pkg/errno"
	"oasis/pkg/process"
	"oasis/pkg/process/fd"
)

// Dispatcher routes system calls to the current task. Calls made while no
// task is current use a kernel descriptor table bound to the console.
type Dispatcher struct {
	tasks  *process.Table
	kernel *fd.Table
	mem    Memory
}

// NewDispatcher creates a dispatcher for tasks whose pointers refer to mem.
func NewDispatcher(tasks *process.Table, mem Memory) *Dispatcher {
	return &Dispatcher{
		tasks:  tasks,
		kernel: fd.NewTable(tasks.Console(), tasks.Pipes()),
		mem:    mem,
	}
}

// Memory returns the address space the dispatcher reads arguments from.
func (d *Dispatcher) Memory() Memory {
	return d.mem
}

// files returns the descriptor table calls operate on.
func (d *Dispatcher) files() *fd.Table {
	if f, err := d.tasks.CurrentFiles(); err == nil {
		return f
	}
	return d.kernel
}

// Dispatch performs system call sel. Failures are returned as a negative
// errno; an unknown selector returns Invalid. Calls that may block, such
// as reads from an empty pipe, wait until ctx is done.
func (d *Dispatcher) Dispatch(ctx context.Context, sel Selector, a1, a2, a3 uint32) uint32 {
	switch sel {
	case SysWrite:
		return d.sysWrite(ctx, a1, a2)
	case SysSleep:
		return 0
	case SysYield:
		d.tasks.Yield()
		return 0
	case SysExit:
		d.tasks.Exit(int(int32(a1)))
		return 0
	case SysGetPID:
		return uint32(d.tasks.GetPID())
	case SysFork:
		id, err := d.tasks.Fork()
		if err != nil {
			return errno.Return(err)
		}
		return uint32(id)
	case SysExec:
		return d.sysExec(a1, a2)
	case SysWait:
		return d.sysWait(a1)
	case SysGetPPID:
		return uint32(d.tasks.GetPPID())
	case SysOpen:
		path, err := ReadString(d.mem, a1, MaxPath)
		if err != nil {
			return errno.Return(err)
		}
		return result(d.files().Open(path, int(a2)))
	case SysClose:
		return status(d.files().Close(fdArg(a1)))
	case SysRead:
		buf, err := d.mem.Slice(a2, a3)
		if err != nil {
			return errno.Return(err)
		}
		return transfer(d.files().Read(ctx, fdArg(a1), buf))
	case SysWriteFD:
		buf, err := d.mem.Slice(a2, a3)
		if err != nil {
			return errno.Return(err)
		}
		return transfer(d.files().Write(ctx, fdArg(a1), buf))
	case SysPipe:
		return d.sysPipe(a1)
	case SysDup:
		return result(d.files().Dup(fdArg(a1)))
	case SysDup2:
		return result(d.files().Dup2(fdArg(a1), fdArg(a2)))
	case SysSeek:
		off, err := d.files().Seek(fdArg(a1), int32(a2), int(a3))
		if err != nil {
			return errno.Return(err)
		}
		return off
	case SysFDInfo:
		f := d.files()
		return status(f.WriteInfo(f.Console()))
	}

	d.tasks.Logger().Printf("[!] invalid syscall %d", uint32(sel))
	return Invalid
}

// sysWrite is the legacy write to stdout. A null pointer or an empty
// buffer writes nothing.
func (d *Dispatcher) sysWrite(ctx context.Context, ptr, n uint32) uint32 {
	if ptr == 0 || n == 0 {
		return 0
	}
	buf, err := d.mem.Slice(ptr, n)
	if err != nil {
		return errno.Return(err)
	}
	return transfer(d.files().Write(ctx, fd.Stdout, buf))
}

func (d *Dispatcher) sysExec(ptr, size uint32) uint32 {
	var image []byte
	if ptr != 0 && size > 0 {
		b, err := d.mem.Slice(ptr, size)
		if err != nil {
			return errno.Return(err)
		}
		image = b
	}
	return status(d.tasks.Exec(image))
}

func (d *Dispatcher) sysWait(statusPtr uint32) uint32 {
	id, code, err := d.tasks.Wait()
	if err != nil {
		return errno.Return(err)
	}
	if statusPtr != 0 {
		if err := WriteUint32(d.mem, statusPtr, uint32(int32(code))); err != nil {
			return errno.Return(err)
		}
	}
	return uint32(id)
}

// sysPipe stores the read and write descriptors of a new pipe in the two
// words at ptr.
func (d *Dispatcher) sysPipe(ptr uint32) uint32 {
	if ptr == 0 {
		return errno.Return(ErrFault)
	}
	pair, err := d.mem.Slice(ptr, 8)
	if err != nil {
		return errno.Return(err)
	}
	rfd, wfd, err := d.files().Pipe()
	if err != nil {
		return errno.Return(err)
	}
	binary.LittleEndian.PutUint32(pair[0:], uint32(rfd))
	binary.LittleEndian.PutUint32(pair[4:], uint32(wfd))
	return 0
}

// fdArg decodes a descriptor argument. Negative values stay negative so
// they are rejected as bad descriptors.
func fdArg(a uint32) int {
	return int(int32(a))
}

func result(v int, err error) uint32 {
	if err != nil {
		return errno.Return(err)
	}
	return uint32(v)
}

func status(err error) uint32 {
	if err != nil {
		return errno.Return(err)
	}
	return 0
}

// transfer reports a byte count. A partial transfer that then failed
// reports the bytes moved.
func transfer(n int, err error) uint32 {
	if err != nil && n == 0 {
		return errno.Return(err)
	}
	return uint32(n)
}
