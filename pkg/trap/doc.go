// Package trap implements the system call boundary of the Oasis kernel.
//
// A system call is a selector plus up to three machine words. Pointer
// arguments refer to a Memory shared by every task. Each call runs
// against the descriptor table of the current task:
//
//	d := trap.NewDispatcher(tasks, trap.NewFlatMemory(1<<20))
//	ret := d.Dispatch(ctx, trap.SysWriteFD, 1, ptr, n)
//	if v, e, ok := errno.FromReturn(ret); !ok {
//	    // e is the errno
//	}
//
// Successful calls return a non-negative value. Failures return the
// negated errno of the error kind, so a failed fork is never mistaken for
// a task ID. An unknown selector returns Invalid.
package trap
