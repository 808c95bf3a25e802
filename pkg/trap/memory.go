package trap

import (
	"encoding/binary"

	"oasis/pkg/errno"
)

// MaxPath is the longest path, terminator included, that open accepts.
const MaxPath = 256

// ErrFault is returned for a user pointer outside of memory.
var ErrFault = errno.ErrFault

// Memory is the address space system call arguments point into.
type Memory interface {
	// Slice returns the n bytes at addr. Writes to the slice are writes to
	// memory.
	Slice(addr, n uint32) ([]byte, error)
}

// FlatMemory is a single flat address space shared by every task.
type FlatMemory []byte

// NewFlatMemory allocates size bytes of zeroed memory.
func NewFlatMemory(size int) FlatMemory {
	return make(FlatMemory, size)
}

// Slice returns the n bytes at addr.
func (m FlatMemory) Slice(addr, n uint32) ([]byte, error) {
	end := uint64(addr) + uint64(n)
	if end > uint64(len(m)) {
		return nil, ErrFault
	}
	return m[addr:end:end], nil
}

// ReadUint32 reads a little-endian word.
func ReadUint32(m Memory, addr uint32) (uint32, error) {
	b, err := m.Slice(addr, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// WriteUint32 writes a little-endian word.
func WriteUint32(m Memory, addr, v uint32) error {
	b, err := m.Slice(addr, 4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b, v)
	return nil
}

// ReadString reads a NUL-terminated string of at most max-1 bytes.
func ReadString(m Memory, addr uint32, max int) (string, error) {
	for n := 0; n < max; n++ {
		b, err := m.Slice(addr+uint32(n), 1)
		if err != nil {
			return "", err
		}
		if b[0] == 0 {
			s, _ := m.Slice(addr, uint32(n))
			return string(s), nil
		}
	}
	return "", errno.ErrInvalid
}

// WriteString writes s followed by a NUL terminator and returns the number
// of bytes written.
func WriteString(m Memory, addr uint32, s string) (uint32, error) {
	b, err := m.Slice(addr, uint32(len(s))+1)
	if err != nil {
		return 0, err
	}
	copy(b, s)
	b[len(s)] = 0
	return uint32(len(b)), nil
}
