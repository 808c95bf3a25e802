package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/shlex"
	"golang.org/x/sys/unix"

	"oasis/pkg/errno"
	"oasis/pkg/process"
	"oasis/pkg/process/fd"
	"oasis/pkg/trap"
)

// Scratch addresses for system call arguments. They sit below the first
// task stack.
const (
	argAddr  = 0x1000
	argSize  = 0x4000
	pairAddr = 0x0800
)

// errQuit ends the shell loop.
var errQuit = errors.New("quit")

// Shell is the kernel monitor.
type Shell struct {
	Prompt      string
	Tasks       *process.Table
	Sys         *trap.Dispatcher
	Mem         trap.FlatMemory
	Stdout      io.Writer
	Stderr      io.Writer
	Interactive bool
	// Timeout bounds calls that would otherwise wait forever, such as a
	// read from an empty pipe.
	Timeout time.Duration

	in      *bufio.Reader
	History []string
}

// NewShell creates a monitor over a fresh kernel. The console shares the
// shell's input, so a read from fd 0 consumes the next input line.
func NewShell(cfg *process.Config, stdin io.Reader, stdout, stderr io.Writer) *Shell {
	in := bufio.NewReader(stdin)
	c := *cfg
	c.Console = fd.NewLineConsole(in, stdout)
	if c.MaxTasks < 1 {
		c.MaxTasks = process.DefaultMaxTasks
	}

	tasks := process.NewTable(&c)
	mem := trap.NewFlatMemory(int(c.StackBase) + c.MaxTasks*int(c.StackSize))
	return &Shell{
		Prompt:  "ksh> ",
		Tasks:   tasks,
		Sys:     trap.NewDispatcher(tasks, mem),
		Mem:     mem,
		Stdout:  stdout,
		Stderr:  stderr,
		Timeout: 2 * time.Second,
		in:      in,
	}
}

// Run reads and executes commands until end of input or quit.
func (s *Shell) Run() error {
	for {
		if s.Interactive {
			fmt.Fprint(s.Stdout, s.Prompt)
		}

		line, err := s.in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		eof := err != nil

		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			s.History = append(s.History, line)
			if err := s.execute(line); err != nil {
				if errors.Is(err, errQuit) {
					return nil
				}
				fmt.Fprintf(s.Stderr, "error: %s\n", err)
				if !s.Interactive {
					return err
				}
			}
		}
		if eof {
			return nil
		}
	}
}

// execute tokenizes and runs one command line.
func (s *Shell) execute(line string) error {
	args, err := shlex.Split(line)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return nil
	}

	b := GetBuiltin(args[0])
	if b == nil {
		return fmt.Errorf("%s: command not found", args[0])
	}
	return b.Func(s, args)
}

// ExecuteString executes a command string and returns its exit status.
func (s *Shell) ExecuteString(cmd string) int {
	if err := s.execute(cmd); err != nil && !errors.Is(err, errQuit) {
		fmt.Fprintf(s.Stderr, "error: %s\n", err)
		return 1
	}
	return 0
}

// syscall dispatches sel and decodes the result.
func (s *Shell) syscall(sel trap.Selector, a1, a2, a3 uint32) (uint32, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.Timeout)
	defer cancel()

	ret := s.Sys.Dispatch(ctx, sel, a1, a2, a3)
	if ret == trap.Invalid && !sel.IsValid() {
		return ret, fmt.Errorf("%s: invalid system call", sel)
	}
	if _, e, ok := errno.FromReturn(ret); !ok {
		return ret, &callError{sel: sel, errno: e}
	}
	return ret, nil
}

// callError is a failed system call.
type callError struct {
	sel   trap.Selector
	errno unix.Errno
}

func (e *callError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.sel, errno.Name(e.errno), e.errno.Error())
}
