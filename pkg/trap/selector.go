package trap

import "fmt"

// Selector identifies a system call. The values are part of the ABI and
// must not change.
type Selector uint32

// System call selectors.
const (
	// SysWrite writes ptr,len bytes to the caller's stdout.
	SysWrite Selector = iota
	// SysSleep is a placeholder that returns immediately.
	SysSleep
	// SysYield invokes the scheduler.
	SysYield
	// SysExit terminates the caller with code.
	SysExit
	// SysGetPID returns the caller's ID.
	SysGetPID
	// SysFork duplicates the caller.
	SysFork
	// SysExec resets the caller's context.
	SysExec
	// SysWait reports the caller's first live child.
	SysWait
	// SysGetPPID returns the caller's parent ID.
	SysGetPPID
	SysOpen
	SysClose
	SysRead
	SysWriteFD
	SysPipe
	SysDup
	SysDup2
	SysSeek
	// SysFDInfo prints the caller's descriptor table to its console.
	SysFDInfo
)

// Invalid is returned for an unknown selector.
const Invalid uint32 = 0xFFFFFFFF

var selectorNames = [...]string{
	SysWrite:   "write",
	SysSleep:   "sleep",
	SysYield:   "yield",
	SysExit:    "exit",
	SysGetPID:  "getpid",
	SysFork:    "fork",
	SysExec:    "exec",
	SysWait:    "wait",
	SysGetPPID: "getppid",
	SysOpen:    "open",
	SysClose:   "close",
	SysRead:    "read",
	SysWriteFD: "write_fd",
	SysPipe:    "pipe",
	SysDup:     "dup",
	SysDup2:    "dup2",
	SysSeek:    "seek",
	SysFDInfo:  "fdinfo",
}

// String returns the system call name.
func (s Selector) String() string {
	if s.IsValid() {
		return selectorNames[s]
	}
	return fmt.Sprintf("syscall(%d)", uint32(s))
}

// IsValid checks if s names a system call.
func (s Selector) IsValid() bool {
	return s <= SysFDInfo
}

// ParseSelector returns the selector with the given name.
func ParseSelector(name string) (Selector, bool) {
	for i, n := range selectorNames {
		if n == name {
			return Selector(i), true
		}
	}
	return 0, false
}
