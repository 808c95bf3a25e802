package main

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"oasis/pkg/process"
	"oasis/pkg/process/fd"
	"oasis/pkg/trap"
)

// BuiltinFunc is a function type for monitor commands.
type BuiltinFunc func(s *Shell, args []string) error

// BuiltinCommand represents a monitor command.
type BuiltinCommand struct {
	Name  string
	Func  BuiltinFunc
	Usage string
	Help  string
}

// builtins holds all monitor commands.
var builtins = []BuiltinCommand{
	{"help", builtinHelp, "", "Show this help message"},
	{"quit", builtinQuit, "", "Leave the monitor"},
	{"history", builtinHistory, "", "Display command history"},
	{"ps", builtinPs, "", "List tasks"},
	{"stats", builtinStats, "", "Show scheduler statistics"},
	{"spawn", builtinSpawn, "[entry]", "Create a task"},
	{"switch", builtinSwitch, "id", "Make a task current"},
	{"schedule", builtinSchedule, "[n]", "Run the scheduler n times, as timer ticks do"},
	{"yield", builtinYield, "", "Yield the current task"},
	{"fork", builtinFork, "", "Fork the current task"},
	{"exit", builtinExit, "[code]", "Exit the current task"},
	{"wait", builtinWait, "", "Report the first live child"},
	{"exec", builtinExec, "", "Reset the current task's context"},
	{"getpid", builtinGetpid, "", "Print the current task ID"},
	{"getppid", builtinGetppid, "", "Print the current task's parent ID"},
	{"open", builtinOpen, "path [flags]", "Open a device"},
	{"close", builtinClose, "fd", "Close a descriptor"},
	{"read", builtinRead, "fd [count]", "Read from a descriptor"},
	{"write", builtinWrite, "fd text...", "Write text to a descriptor"},
	{"pipe", builtinPipe, "", "Create a pipe"},
	{"dup", builtinDup, "fd", "Duplicate a descriptor"},
	{"dup2", builtinDup2, "oldfd newfd", "Duplicate a descriptor onto newfd"},
	{"seek", builtinSeek, "fd offset [whence]", "Reposition a descriptor"},
	{"fdinfo", builtinFdinfo, "", "Print the descriptor table"},
	{"nonblock", builtinNonblock, "fd [on|off]", "Set or clear non-blocking mode"},
	{"pipes", builtinPipes, "", "List active pipes"},
	{"syscall", builtinSyscall, "name|number [a1 [a2 [a3]]]", "Issue a raw system call"},
}

// builtinMap maps command names to monitor commands.
var builtinMap = make(map[string]*BuiltinCommand)

func init() {
	for i := range builtins {
		builtinMap[builtins[i].Name] = &builtins[i]
	}
}

// GetBuiltin returns the command with the given name.
func GetBuiltin(name string) *BuiltinCommand {
	return builtinMap[name]
}

// IsBuiltin returns true if name is a monitor command.
func IsBuiltin(name string) bool {
	_, ok := builtinMap[name]
	return ok
}

// Argument helpers

func usageError(args []string) error {
	b := GetBuiltin(args[0])
	return fmt.Errorf("usage: %s %s", b.Name, b.Usage)
}

// wordArg parses a machine word. Hex and negative values are accepted.
func wordArg(arg string) (uint32, error) {
	if strings.HasPrefix(arg, "-") {
		v, err := strconv.ParseInt(arg, 0, 32)
		return uint32(int32(v)), err
	}
	v, err := strconv.ParseUint(arg, 0, 32)
	return uint32(v), err
}

// wordArgs parses args[from:] into words.
func wordArgs(args []string, from, want int) ([]uint32, error) {
	if len(args)-from < want {
		return nil, usageError(args)
	}
	words := make([]uint32, len(args)-from)
	for i, a := range args[from:] {
		v, err := wordArg(a)
		if err != nil {
			return nil, fmt.Errorf("%s: bad argument %q", args[0], a)
		}
		words[i] = v
	}
	return words, nil
}

func (s *Shell) printCurrent() {
	if id := s.Tasks.GetPID(); id != process.NoTask {
		fmt.Fprintf(s.Stdout, "current: %d\n", id)
		return
	}
	fmt.Fprintln(s.Stdout, "current: none")
}

// Monitor commands

func builtinHelp(s *Shell, args []string) error {
	fmt.Fprintln(s.Stdout, "Oasis kernel monitor (ksh) - commands:")
	fmt.Fprintln(s.Stdout)
	names := make([]string, 0, len(builtinMap))
	for name := range builtinMap {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		b := builtinMap[name]
		fmt.Fprintf(s.Stdout, "  %-30s %s\n", strings.TrimSpace(b.Name+" "+b.Usage), b.Help)
	}
	return nil
}

func builtinQuit(s *Shell, args []string) error {
	return errQuit
}

func builtinHistory(s *Shell, args []string) error {
	for i, line := range s.History {
		fmt.Fprintf(s.Stdout, "%5d  %s\n", i+1, line)
	}
	return nil
}

func builtinPs(s *Shell, args []string) error {
	return s.Tasks.WriteInfo(s.Stdout)
}

func builtinStats(s *Shell, args []string) error {
	st := s.Tasks.Stats()
	fmt.Fprintf(s.Stdout, "tasks=%d/%d live=%d switches=%d policy=%s pipes=%d/%d\n",
		st.Tasks, s.Tasks.Cap(), st.Live, st.Switches, st.Policy,
		s.Tasks.Pipes().Active(), s.Tasks.Pipes().Len())
	return nil
}

func builtinSpawn(s *Shell, args []string) error {
	entry := uint32(0x100000)
	if len(args) > 1 {
		v, err := wordArg(args[1])
		if err != nil {
			return usageError(args)
		}
		entry = v
	}
	id, err := s.Tasks.Create(entry)
	if err != nil {
		return fmt.Errorf("spawn: %w", err)
	}
	fmt.Fprintf(s.Stdout, "task %d created\n", id)
	return nil
}

func builtinSwitch(s *Shell, args []string) error {
	w, err := wordArgs(args, 1, 1)
	if err != nil {
		return err
	}
	if err := s.Tasks.Switch(process.TaskID(w[0])); err != nil {
		return fmt.Errorf("switch: %w", err)
	}
	s.printCurrent()
	return nil
}

func builtinSchedule(s *Shell, args []string) error {
	n := 1
	if len(args) > 1 {
		v, err := strconv.Atoi(args[1])
		if err != nil || v < 1 {
			return usageError(args)
		}
		n = v
	}
	for i := 0; i < n; i++ {
		s.Tasks.Tick()
	}
	s.printCurrent()
	return nil
}

func builtinYield(s *Shell, args []string) error {
	if _, err := s.syscall(trap.SysYield, 0, 0, 0); err != nil {
		return err
	}
	s.printCurrent()
	return nil
}

func builtinFork(s *Shell, args []string) error {
	ret, err := s.syscall(trap.SysFork, 0, 0, 0)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.Stdout, "child %d\n", ret)
	return nil
}

func builtinExit(s *Shell, args []string) error {
	code := uint32(0)
	if len(args) > 1 {
		v, err := wordArg(args[1])
		if err != nil {
			return usageError(args)
		}
		code = v
	}
	_, err := s.syscall(trap.SysExit, code, 0, 0)
	return err
}

func builtinWait(s *Shell, args []string) error {
	ret, err := s.syscall(trap.SysWait, pairAddr, 0, 0)
	if err != nil {
		return err
	}
	status, _ := trap.ReadUint32(s.Mem, pairAddr)
	fmt.Fprintf(s.Stdout, "child %d status %d\n", ret, int32(status))
	return nil
}

func builtinExec(s *Shell, args []string) error {
	_, err := s.syscall(trap.SysExec, 0, 0, 0)
	return err
}

func builtinGetpid(s *Shell, args []string) error {
	ret, err := s.syscall(trap.SysGetPID, 0, 0, 0)
	if err != nil {
		return err
	}
	fmt.Fprintln(s.Stdout, ret)
	return nil
}

func builtinGetppid(s *Shell, args []string) error {
	ret, err := s.syscall(trap.SysGetPPID, 0, 0, 0)
	if err != nil {
		return err
	}
	fmt.Fprintln(s.Stdout, ret)
	return nil
}

func builtinOpen(s *Shell, args []string) error {
	if len(args) < 2 {
		return usageError(args)
	}
	flags := uint32(fd.ORdwr)
	if len(args) > 2 {
		v, err := wordArg(args[2])
		if err != nil {
			return usageError(args)
		}
		flags = v
	}
	if _, err := trap.WriteString(s.Mem, argAddr, args[1]); err != nil {
		return fmt.Errorf("open: path too long")
	}
	ret, err := s.syscall(trap.SysOpen, argAddr, flags, 0)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.Stdout, "fd %d\n", ret)
	return nil
}

func builtinClose(s *Shell, args []string) error {
	w, err := wordArgs(args, 1, 1)
	if err != nil {
		return err
	}
	_, err = s.syscall(trap.SysClose, w[0], 0, 0)
	return err
}

func builtinRead(s *Shell, args []string) error {
	w, err := wordArgs(args, 1, 1)
	if err != nil {
		return err
	}
	count := uint32(64)
	if len(w) > 1 {
		count = w[1]
	}
	if count > argSize {
		count = argSize
	}
	ret, err := s.syscall(trap.SysRead, w[0], argAddr, count)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.Stdout, "%d bytes: %q\n", ret, s.Mem[argAddr:argAddr+ret])
	return nil
}

func builtinWrite(s *Shell, args []string) error {
	if len(args) < 3 {
		return usageError(args)
	}
	fdn, err := wordArg(args[1])
	if err != nil {
		return usageError(args)
	}
	text := strings.Join(args[2:], " ")
	if len(text) > argSize {
		return fmt.Errorf("write: text longer than %d bytes", argSize)
	}
	n := copy(s.Mem[argAddr:], text)
	ret, err := s.syscall(trap.SysWriteFD, fdn, argAddr, uint32(n))
	if err != nil {
		return err
	}
	if fdn != fd.Stdout && fdn != fd.Stderr {
		fmt.Fprintf(s.Stdout, "%d bytes\n", ret)
	}
	return nil
}

func builtinPipe(s *Shell, args []string) error {
	if _, err := s.syscall(trap.SysPipe, pairAddr, 0, 0); err != nil {
		return err
	}
	rfd, _ := trap.ReadUint32(s.Mem, pairAddr)
	wfd, _ := trap.ReadUint32(s.Mem, pairAddr+4)
	fmt.Fprintf(s.Stdout, "pipe: read_fd=%d write_fd=%d\n", rfd, wfd)
	return nil
}

func builtinDup(s *Shell, args []string) error {
	w, err := wordArgs(args, 1, 1)
	if err != nil {
		return err
	}
	ret, err := s.syscall(trap.SysDup, w[0], 0, 0)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.Stdout, "fd %d\n", ret)
	return nil
}

func builtinDup2(s *Shell, args []string) error {
	w, err := wordArgs(args, 1, 2)
	if err != nil {
		return err
	}
	ret, err := s.syscall(trap.SysDup2, w[0], w[1], 0)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.Stdout, "fd %d\n", ret)
	return nil
}

func builtinSeek(s *Shell, args []string) error {
	w, err := wordArgs(args, 1, 2)
	if err != nil {
		return err
	}
	whence := uint32(0)
	if len(w) > 2 {
		whence = w[2]
	}
	ret, err := s.syscall(trap.SysSeek, w[0], w[1], whence)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.Stdout, "offset %d\n", ret)
	return nil
}

func builtinFdinfo(s *Shell, args []string) error {
	_, err := s.syscall(trap.SysFDInfo, 0, 0, 0)
	return err
}

func builtinNonblock(s *Shell, args []string) error {
	if len(args) < 2 {
		return usageError(args)
	}
	fdn, err := wordArg(args[1])
	if err != nil {
		return usageError(args)
	}
	flags := fd.FlagNonBlock
	if len(args) > 2 && args[2] == "off" {
		flags = 0
	}
	files, err := s.Tasks.CurrentFiles()
	if err != nil {
		return fmt.Errorf("nonblock: %w", err)
	}
	return files.SetFlags(int(int32(fdn)), flags)
}

func builtinPipes(s *Shell, args []string) error {
	pool := s.Tasks.Pipes()
	for i := 0; i < pool.Len(); i++ {
		st := pool.Get(i).Stats()
		if !st.Active {
			continue
		}
		fmt.Fprintf(s.Stdout, "pipe %d: buffered=%d readers=%d writers=%d\n",
			st.Index, st.Buffered, st.Readers, st.Writers)
	}
	return nil
}

func builtinSyscall(s *Shell, args []string) error {
	if len(args) < 2 {
		return usageError(args)
	}
	sel, ok := trap.ParseSelector(args[1])
	if !ok {
		v, err := wordArg(args[1])
		if err != nil {
			return fmt.Errorf("syscall: unknown system call %q", args[1])
		}
		sel = trap.Selector(v)
	}
	w, err := wordArgs(args, 2, 0)
	if err != nil {
		return err
	}
	var a [3]uint32
	copy(a[:], w)

	ret, err := s.syscall(sel, a[0], a[1], a[2])
	fmt.Fprintf(s.Stdout, "%s = %d (%#x)\n", sel, int32(ret), ret)
	var ce *callError
	if err != nil && !errors.As(err, &ce) {
		return err
	}
	return nil
}
