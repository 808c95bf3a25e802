package fd

import (
	"bufio"
	"io"
	"sync"
)

// Console is the character device behind Console descriptors. Read blocks
// for input; Write is synchronous.
type Console interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
}

// Discard is a console with no input that drops all output.
var Discard Console = discardConsole{}

type discardConsole struct{}

func (discardConsole) Read(p []byte) (int, error)  { return 0, io.EOF }
func (discardConsole) Write(p []byte) (int, error) { return len(p), nil }

// LineConsole is a cooked console over a byte stream. A read returns once
// it has filled p or seen a newline. Backspace erases the previous byte.
type LineConsole struct {
	rmu sync.Mutex
	wmu sync.Mutex
	in  *bufio.Reader
	out io.Writer
	// Echo copies typed bytes (and erasures) to the output. The
	// terminating newline is not echoed.
	Echo bool
}

// NewLineConsole creates a console that reads keystrokes from in and
// writes to out, echoing input.
func NewLineConsole(in io.Reader, out io.Writer) *LineConsole {
	return &LineConsole{
		in:   bufio.NewReader(in),
		out:  out,
		Echo: true,
	}
}

// Read reads one line, or up to len(p) bytes of it.
func (c *LineConsole) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	c.rmu.Lock()
	defer c.rmu.Unlock()

	n := 0
	for n < len(p) {
		ch, err := c.in.ReadByte()
		if err != nil {
			if n > 0 {
				return n, nil
			}
			return 0, err
		}

		switch ch {
		case '\n':
			p[n] = ch
			return n + 1, nil
		case '\b', 0x7f:
			if n > 0 {
				n--
				c.echo('\b')
			}
		default:
			p[n] = ch
			n++
			c.echo(ch)
		}
	}
	return n, nil
}

// echo is best-effort: a failing output never fails the read that typed
// the byte.
func (c *LineConsole) echo(ch byte) {
	if !c.Echo {
		return
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_, _ = c.out.Write([]byte{ch})
}

// Write writes p to the output unchanged.
func (c *LineConsole) Write(p []byte) (int, error) {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.out.Write(p)
}
