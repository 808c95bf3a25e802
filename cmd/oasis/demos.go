package main

import (
	"sort"
	"strings"

	"oasis/pkg/process/fd"
)

// demos maps demo names to task programs.
var demos = map[string]program{
	"stdout": stdoutDemo,
	"pipe":   pipeDemo,
	"dup":    dupDemo,
	"fdinfo": fdinfoDemo,
	"fork":   forkDemo,
	"relay":  relayDemo,
	"full":   fullTest,
}

// demoNames returns the demo names in a stable order.
func demoNames() []string {
	names := make([]string, 0, len(demos))
	for name := range demos {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// stdoutDemo writes through descriptors 1 and 2.
func stdoutDemo(p *proc) {
	p.print("\n=== I/O Demo: stdout ===\n")
	p.print("Writing to fd 1 (stdout)...\n")

	n := p.writeFD(fd.Stdout, []byte("Hello from file descriptor 1!\n"))
	p.print("Bytes written: ")
	p.printNum(n)
	p.print("\n")

	p.eprint("[stderr] This goes to stderr (fd 2)\n")
	p.print("=== stdout demo complete ===\n\n")
}

// pipeDemo sends a message through a pipe within one task.
func pipeDemo(p *proc) {
	p.print("\n=== I/O Demo: pipe ===\n")

	rfd, wfd, err := p.pipe()
	if err != nil {
		p.eprint("[ERROR] Failed to create pipe!\n")
		return
	}
	p.print("Pipe created: read_fd=")
	p.printNum(rfd)
	p.print(", write_fd=")
	p.printNum(wfd)
	p.print("\n")

	n := p.writeFD(wfd, []byte("Hello through pipe!"))
	p.print("Wrote ")
	p.printNum(n)
	p.print(" bytes to pipe\n")

	if msg, n := p.read(rfd, 31); n > 0 {
		p.print("Read from pipe: '" + msg + "'\n")
	}

	p.close(rfd)
	p.close(wfd)
	p.print("Pipe closed\n")
	p.print("=== pipe demo complete ===\n\n")
}

// dupDemo writes through duplicates of stdout.
func dupDemo(p *proc) {
	p.print("\n=== I/O Demo: dup/dup2 ===\n")

	if nfd := p.dup(fd.Stdout); nfd >= 0 {
		p.print("Duplicated stdout to fd ")
		p.printNum(nfd)
		p.print("\n")
		p.writeFD(nfd, []byte("Writing through duplicated fd!\n"))
		p.close(nfd)
		p.print("Closed duplicated fd\n")
	} else {
		p.eprint("[ERROR] dup failed\n")
	}

	const target = 5
	if p.dup2(fd.Stdout, target) >= 0 {
		p.print("dup2'd stdout to fd ")
		p.printNum(target)
		p.print("\n")
		p.writeFD(target, []byte("Hello from fd 5!\n"))
		p.close(target)
	} else {
		p.eprint("[ERROR] dup2 failed\n")
	}

	if tty := p.open("/dev/tty", fd.ORdwr); tty >= 0 {
		p.writeFD(tty, []byte("Hello from /dev/tty!\n"))
		p.close(tty)
	}
	p.print("=== dup/dup2 demo complete ===\n\n")
}

// fdinfoDemo prints the task's descriptor table.
func fdinfoDemo(p *proc) {
	p.print("\n=== I/O Demo: fdinfo ===\n")
	p.print("Current process file descriptor table:\n")
	p.fdinfo()
	p.print("=== fdinfo demo complete ===\n\n")
}

// forkDemo forks a child and polls wait until it has exited.
func forkDemo(p *proc) {
	p.write("[PARENT] Starting\n")

	child := p.fork(func(c *proc) {
		c.write("[CHILD] Starting, parent PID=")
		c.printNum(c.getppid())
		c.write("\n")
		c.write("[CHILD] Doing work...\n")
		c.yield()
		c.write("[CHILD] Exiting\n")
		c.exit(0)
	})
	if child < 0 {
		p.eprint("[PARENT] fork failed\n")
		return
	}

	p.write("[PARENT] Forked child PID=")
	p.printNum(child)
	p.write("\n")
	p.write("[PARENT] Waiting for child...\n")
	p.waitAll()
	p.write("[PARENT] Child completed\n")
}

// relayDemo passes lines from a forked child to its parent through a pipe.
// The parent reads until end of file, which arrives once the child exits.
func relayDemo(p *proc) {
	rfd, wfd, err := p.pipe()
	if err != nil {
		p.eprint("[RELAY] Failed to create pipe!\n")
		return
	}

	child := p.fork(func(c *proc) {
		c.close(rfd)
		for i := 1; i <= 3; i++ {
			c.writeFD(wfd, []byte("line "+string(rune('0'+i))+"\n"))
			c.sleep(10)
			c.yield()
		}
		c.exit(0)
	})
	if child < 0 {
		p.eprint("[RELAY] fork failed\n")
		return
	}
	p.close(wfd)

	var got strings.Builder
	for {
		msg, n := p.read(rfd, 64)
		if n <= 0 {
			break
		}
		got.WriteString(msg)
	}
	p.close(rfd)

	p.print("[RELAY] Received from child ")
	p.printNum(child)
	p.print(":\n" + got.String())
	p.waitAll()
	p.print("[RELAY] pid ")
	p.printNum(p.getpid())
	p.print(" done\n")
}

// fullTest runs the descriptor checks in sequence.
func fullTest(p *proc) {
	p.print("\n[1/5] Initial file descriptor state:\n")
	p.fdinfo()

	p.print("\n[2/5] Testing stdout/stderr...\n")
	p.print("[stdout] Standard output works!\n")
	p.eprint("[stderr] Standard error works!\n")

	p.print("\n[3/5] Testing pipes...\n")
	if rfd, wfd, err := p.pipe(); err == nil {
		p.writeFD(wfd, []byte("PIPE_TEST_DATA"))
		msg, _ := p.read(rfd, 31)
		p.print("  Data through pipe: '" + msg + "'\n")
		p.close(rfd)
		p.close(wfd)
		p.print("  Pipe closed successfully\n")
	} else {
		p.eprint("  [FAIL] Could not create pipe\n")
	}

	p.print("\n[4/5] Testing fd duplication...\n")
	if nfd := p.dup(fd.Stdout); nfd >= 0 {
		p.print("  Duplicated stdout to fd ")
		p.printNum(nfd)
		p.print("\n")
		p.close(nfd)
	}

	p.print("\n[5/5] Final file descriptor state:\n")
	p.fdinfo()
	p.exec()
	p.print("I/O Subsystem: PASSED\n")
}
