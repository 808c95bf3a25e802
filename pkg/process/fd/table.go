// Package fd implements per-process file descriptor tables. A table maps
// small integers to I/O endpoints: the console and the two ends of pipes.
package fd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"oasis/pkg/errno"
	"oasis/pkg/process/ipc"
)

// MaxFDs is the number of descriptors per table.
const MaxFDs = 16

// Standard descriptors.
const (
	Stdin  = 0
	Stdout = 1
	Stderr = 2
)

// Open flags. Console devices ignore them; they are reserved for
// file-backed descriptors.
const (
	ORdonly = 0x0000
	OWronly = 0x0001
	ORdwr   = 0x0002
	OCreat  = 0x0040
	OTrunc  = 0x0200
	OAppend = 0x0400
)

// Descriptor errors.
var (
	ErrBadDescriptor    = errno.ErrBadDescriptor
	ErrPermissionDenied = errno.ErrPermissionDenied
	ErrTooManyOpenFiles = errno.ErrTooManyOpenFiles
	ErrNotFound         = errno.ErrNotFound
	ErrNotSupported     = errno.ErrNotSupported
)

// Type is the kind of endpoint a descriptor names.
type Type int

const (
	TypeNone Type = iota
	TypeConsole
	TypePipeRead
	TypePipeWrite
	// TypeFile is reserved for block-backed files.
	TypeFile
)

func (t Type) String() string {
	switch t {
	case TypeNone:
		return "NONE"
	case TypeConsole:
		return "CONSOLE"
	case TypePipeRead:
		return "PIPE_R"
	case TypePipeWrite:
		return "PIPE_W"
	case TypeFile:
		return "FILE"
	}
	return "UNKNOWN"
}

// Flags are a descriptor's access flags.
type Flags uint32

const (
	FlagRead Flags = 1 << iota
	FlagWrite
	FlagAppend
	FlagNonBlock
)

const statusFlags = FlagAppend | FlagNonBlock

func (f Flags) String() string {
	var b strings.Builder
	if f&FlagRead != 0 {
		b.WriteByte('R')
	}
	if f&FlagWrite != 0 {
		b.WriteByte('W')
	}
	if f&FlagAppend != 0 {
		b.WriteByte('A')
	}
	if f&FlagNonBlock != 0 {
		b.WriteByte('N')
	}
	return b.String()
}

// Entry is one descriptor slot. The zero Entry is a free slot.
type Entry struct {
	Type     Type
	Flags    Flags
	RefCount uint32
	// Offset is only meaningful for TypeFile.
	Offset uint32
	Pipe   *ipc.Pipe
}

// acquire records one more reference to the entry's pipe end.
func (e *Entry) acquire() {
	switch {
	case e.Pipe == nil:
	case e.Type == TypePipeRead:
		e.Pipe.AddReader()
	case e.Type == TypePipeWrite:
		e.Pipe.AddWriter()
	}
}

// release drops the entry's reference to its pipe end.
func (e *Entry) release() {
	switch {
	case e.Pipe == nil:
	case e.Type == TypePipeRead:
		e.Pipe.ReleaseReader()
	case e.Type == TypePipeWrite:
		e.Pipe.ReleaseWriter()
	}
}

// Table is a per-process descriptor table.
type Table struct {
	mu      sync.Mutex
	entries [MaxFDs]Entry
	console Console
	pool    *ipc.Pool
}

// NewTable creates a table with stdio bound to console. Pipes are drawn
// from pool. A nil console behaves like Discard.
func NewTable(console Console, pool *ipc.Pool) *Table {
	if console == nil {
		console = Discard
	}
	t := &Table{console: console, pool: pool}
	t.Init()
	return t
}

// Init clears every slot and binds 0, 1 and 2 to the console. It does not
// release what the slots referenced; use CloseAll for that.
func (t *Table) Init() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries = [MaxFDs]Entry{}
	t.entries[Stdin] = Entry{Type: TypeConsole, Flags: FlagRead, RefCount: 1}
	t.entries[Stdout] = Entry{Type: TypeConsole, Flags: FlagWrite, RefCount: 1}
	t.entries[Stderr] = Entry{Type: TypeConsole, Flags: FlagWrite, RefCount: 1}
}

// Copy overwrites dest with the entries of src, as fork does. Each copied
// entry's ref-count is one above the source's, and every pipe end gains a
// reader or writer so that src keeps its own counts untouched. The two
// tables are never locked together: src is snapshotted first, so Copy
// calls in opposite directions cannot deadlock.
func Copy(dest, src *Table) {
	if dest == src {
		return
	}

	src.mu.Lock()
	entries := src.entries
	console, pool := src.console, src.pool
	for i := range entries {
		if entries[i].Type == TypeNone {
			continue
		}
		entries[i].RefCount++
		entries[i].acquire()
	}
	src.mu.Unlock()

	dest.mu.Lock()
	defer dest.mu.Unlock()
	dest.console = console
	dest.pool = pool
	dest.entries = entries
}

// Console returns the table's console device.
func (t *Table) Console() Console {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.console
}

func (t *Table) validLocked(fd int) bool {
	return fd >= 0 && fd < MaxFDs && t.entries[fd].Type != TypeNone
}

// Valid reports whether fd names an open descriptor.
func (t *Table) Valid(fd int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.validLocked(fd)
}

// Get returns a copy of the entry at fd.
func (t *Table) Get(fd int) (Entry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.validLocked(fd) {
		return Entry{}, ErrBadDescriptor
	}
	return t.entries[fd], nil
}

// lowestFreeLocked returns the lowest free slot at or above from, or -1.
func (t *Table) lowestFreeLocked(from int) int {
	for i := from; i < MaxFDs; i++ {
		if t.entries[i].Type == TypeNone {
			return i
		}
	}
	return -1
}

var devices = map[string]Flags{
	"/dev/console": FlagRead | FlagWrite,
	"/dev/tty":     FlagRead | FlagWrite,
	"/dev/stdin":   FlagRead,
	"/dev/stdout":  FlagWrite,
	"/dev/stderr":  FlagWrite,
}

// Open opens a console device path in the lowest free slot. There is no
// file system behind the table, so every other path is ErrNotFound.
func (t *Table) Open(path string, flags int) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fd := t.lowestFreeLocked(0)
	if fd < 0 {
		return -1, ErrTooManyOpenFiles
	}

	access, ok := devices[path]
	if !ok {
		return -1, fmt.Errorf("open %s: %w", path, ErrNotFound)
	}

	t.entries[fd] = Entry{Type: TypeConsole, Flags: access, RefCount: 1}
	return fd, nil
}

// Close frees fd, releasing its pipe end.
func (t *Table) Close(fd int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.validLocked(fd) {
		return ErrBadDescriptor
	}
	t.closeLocked(fd)
	return nil
}

func (t *Table) closeLocked(fd int) {
	t.entries[fd].release()
	t.entries[fd] = Entry{}
}

// CloseAll closes every open descriptor, as exit does.
func (t *Table) CloseAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.entries {
		if t.entries[i].Type != TypeNone {
			t.closeLocked(i)
		}
	}
}

// endpoint validates fd for the direction want and returns a copy of its
// entry along with the console.
func (t *Table) endpoint(fd int, want Flags) (Entry, Console, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.validLocked(fd) {
		return Entry{}, nil, ErrBadDescriptor
	}
	e := t.entries[fd]
	if e.Flags&want == 0 {
		return Entry{}, nil, ErrPermissionDenied
	}
	return e, t.console, nil
}

// Read reads from fd into b and returns the number of bytes read. Zero
// bytes with a nil error means no data, or EOF. Pipe reads wait for data
// unless the descriptor is non-blocking.
func (t *Table) Read(ctx context.Context, fd int, b []byte) (int, error) {
	e, console, err := t.endpoint(fd, FlagRead)
	if err != nil {
		return 0, err
	}
	if len(b) == 0 {
		return 0, nil
	}

	switch e.Type {
	case TypeConsole:
		n, err := console.Read(b)
		if errors.Is(err, io.EOF) {
			err = nil
		}
		return n, err
	case TypePipeRead:
		if e.Pipe == nil {
			return 0, ErrBadDescriptor
		}
		if e.Flags&FlagNonBlock != 0 {
			return e.Pipe.TryRead(b)
		}
		return e.Pipe.Read(ctx, b)
	case TypeFile:
		return 0, ErrNotSupported
	}
	return 0, ErrBadDescriptor
}

// Write writes b to fd and returns the number of bytes written.
func (t *Table) Write(ctx context.Context, fd int, b []byte) (int, error) {
	e, console, err := t.endpoint(fd, FlagWrite)
	if err != nil {
		return 0, err
	}
	if len(b) == 0 {
		return 0, nil
	}

	switch e.Type {
	case TypeConsole:
		return console.Write(b)
	case TypePipeWrite:
		if e.Pipe == nil {
			return 0, ErrBadDescriptor
		}
		if e.Flags&FlagNonBlock != 0 {
			return e.Pipe.TryWrite(b)
		}
		return e.Pipe.Write(ctx, b)
	case TypeFile:
		return 0, ErrNotSupported
	}
	return 0, ErrBadDescriptor
}

// Seek repositions a file descriptor. No descriptor type supports it yet.
func (t *Table) Seek(fd int, offset int32, whence int) (uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.validLocked(fd) {
		return 0, ErrBadDescriptor
	}
	return 0, ErrNotSupported
}

// Dup duplicates oldfd into the lowest free slot.
func (t *Table) Dup(oldfd int) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.validLocked(oldfd) {
		return -1, ErrBadDescriptor
	}
	newfd := t.lowestFreeLocked(0)
	if newfd < 0 {
		return -1, ErrTooManyOpenFiles
	}
	t.dupLocked(oldfd, newfd)
	return newfd, nil
}

// Dup2 makes newfd a duplicate of oldfd, closing newfd first if it is
// open. Duplicating a descriptor onto itself is a no-op.
func (t *Table) Dup2(oldfd, newfd int) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.validLocked(oldfd) {
		return -1, ErrBadDescriptor
	}
	if newfd < 0 || newfd >= MaxFDs {
		return -1, ErrBadDescriptor
	}
	if oldfd == newfd {
		return newfd, nil
	}

	if t.entries[newfd].Type != TypeNone {
		t.closeLocked(newfd)
	}
	t.dupLocked(oldfd, newfd)
	return newfd, nil
}

func (t *Table) dupLocked(oldfd, newfd int) {
	t.entries[newfd] = t.entries[oldfd]
	t.entries[newfd].RefCount++
	t.entries[newfd].acquire()
}

// NewPipe allocates a pipe from pool and returns it with fresh read and
// write entries bound to it.
func NewPipe(pool *ipc.Pool) (*ipc.Pipe, Entry, Entry, error) {
	p, err := pool.Create()
	if err != nil {
		return nil, Entry{}, Entry{}, err
	}
	r := Entry{Type: TypePipeRead, Flags: FlagRead, RefCount: 1, Pipe: p}
	w := Entry{Type: TypePipeWrite, Flags: FlagWrite, RefCount: 1, Pipe: p}
	return p, r, w, nil
}

// Pipe creates a pipe and installs its ends in the two lowest free slots,
// read end first.
func (t *Table) Pipe() (rfd, wfd int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rfd = t.lowestFreeLocked(0)
	if rfd < 0 {
		return -1, -1, ErrTooManyOpenFiles
	}
	wfd = t.lowestFreeLocked(rfd + 1)
	if wfd < 0 {
		return -1, -1, ErrTooManyOpenFiles
	}
	if t.pool == nil {
		return -1, -1, ErrNotSupported
	}

	_, r, w, err := NewPipe(t.pool)
	if err != nil {
		return -1, -1, err
	}
	t.entries[rfd] = r
	t.entries[wfd] = w
	return rfd, wfd, nil
}

// SetFlags replaces the Append and NonBlock flags of fd. The access
// direction cannot be changed.
func (t *Table) SetFlags(fd int, flags Flags) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.validLocked(fd) {
		return ErrBadDescriptor
	}
	e := &t.entries[fd]
	e.Flags = e.Flags&^statusFlags | flags&statusFlags
	return nil
}

// Info describes one open descriptor.
type Info struct {
	FD       int
	Type     Type
	Flags    Flags
	RefCount uint32
}

// Info lists the open descriptors in slot order.
func (t *Table) Info() []Info {
	t.mu.Lock()
	defer t.mu.Unlock()

	var infos []Info
	for i, e := range t.entries {
		if e.Type == TypeNone {
			continue
		}
		infos = append(infos, Info{FD: i, Type: e.Type, Flags: e.Flags, RefCount: e.RefCount})
	}
	return infos
}

// WriteInfo prints the open descriptors to w.
func (t *Table) WriteInfo(w io.Writer) error {
	var b strings.Builder
	b.WriteString("File Descriptor Table:\n")
	for _, info := range t.Info() {
		fmt.Fprintf(&b, "  fd %d: %s flags=%s ref=%d\n", info.FD, info.Type, info.Flags, info.RefCount)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
