// Package errno defines the error kinds reported by the process and I/O
// core and their mapping onto Unix errno values for the system-call ABI.
package errno

import (
	"context"
	"errors"

	"golang.org/x/sys/unix"
)

// Error is a kernel error kind. It carries the errno reported to user tasks
// and, for refined kinds, the broader kind it belongs to.
type Error struct {
	msg   string
	errno unix.Errno
	kind  *Error
}

// New creates an error kind reported as e.
func New(msg string, e unix.Errno) *Error {
	return &Error{msg: msg, errno: e}
}

// Refine creates a narrower kind of k, so that errors.Is(err, k) holds.
func Refine(k *Error, msg string, e unix.Errno) *Error {
	return &Error{msg: msg, errno: e, kind: k}
}

func (e *Error) Error() string { return e.msg }

// Errno returns the errno value reported to user tasks.
func (e *Error) Errno() unix.Errno { return e.errno }

// Unwrap returns the broader kind, if any.
func (e *Error) Unwrap() error {
	if e.kind == nil {
		return nil
	}
	return e.kind
}

// Error kinds.
var (
	ErrResourceExhausted = New("resource exhausted", unix.EAGAIN)
	ErrTooManyOpenFiles  = Refine(ErrResourceExhausted, "too many open files", unix.EMFILE)
	ErrPipePoolExhausted = Refine(ErrResourceExhausted, "pipe pool exhausted", unix.ENFILE)
	ErrTaskTableFull     = Refine(ErrResourceExhausted, "task table full", unix.EAGAIN)
	ErrBadDescriptor     = New("bad file descriptor", unix.EBADF)
	ErrPermissionDenied  = New("permission denied", unix.EACCES)
	ErrBrokenPipe        = New("broken pipe", unix.EPIPE)
	ErrNotFound          = New("no such device", unix.ENOENT)
	ErrNotSupported      = New("operation not supported", unix.EOPNOTSUPP)
	ErrNoCurrentTask     = New("no current task", unix.ESRCH)
	ErrNoChild           = New("no child task", unix.ECHILD)
	ErrWouldBlock        = New("operation would block", unix.EAGAIN)
	ErrFault             = New("bad address", unix.EFAULT)
	ErrInvalid           = New("invalid argument", unix.EINVAL)
)

// Code returns the errno for err. An interrupted wait maps to EINTR or
// ETIMEDOUT, other errors that are not kernel kinds map to EIO, and a nil
// error maps to 0.
func Code(err error) unix.Errno {
	if err == nil {
		return 0
	}
	var e *Error
	switch {
	case errors.As(err, &e):
		return e.errno
	case errors.Is(err, context.DeadlineExceeded):
		return unix.ETIMEDOUT
	case errors.Is(err, context.Canceled):
		return unix.EINTR
	}
	return unix.EIO
}

// Return encodes err as the negative errno a system call hands back in a
// machine word.
func Return(err error) uint32 {
	return uint32(-int32(Code(err)))
}

// FromReturn decodes a system call return value. ok is false when ret holds
// a negative errno.
func FromReturn(ret uint32) (val int32, e unix.Errno, ok bool) {
	v := int32(ret)
	if v < 0 && v > -4096 {
		return 0, unix.Errno(-v), false
	}
	return v, 0, true
}

// Name returns the symbolic name of e, such as "EBADF".
func Name(e unix.Errno) string {
	if name := unix.ErrnoName(e); name != "" {
		return name
	}
	return e.Error()
}
