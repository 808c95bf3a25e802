// oasis boots the process and I/O core on a simulated CPU and runs the
// demo task programs under timer preemption.
//
// Usage:
//
//	oasis [demo...]
//
// With no arguments every demo runs. The environment variables
// OASIS_MAX_TASKS, OASIS_PIPES, OASIS_TICK_HZ and OASIS_SCHED override the
// task table size, the pipe pool size, the timer rate and the scheduling
// policy.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"golang.org/x/sync/errgroup"

	"oasis/pkg/process"
	"oasis/pkg/process/fd"
	"oasis/pkg/process/ipc"
	"oasis/pkg/timer"
)

// entryBase is the fake load address of the first demo program.
const entryBase = 0x100000

func main() {
	cfg := process.DefaultConfig()
	hz := timer.DefaultHz
	pipes := ipc.DefaultPoolSize

	if v := os.Getenv("OASIS_MAX_TASKS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			log.Fatalf("Invalid OASIS_MAX_TASKS %q", v)
		}
		cfg.MaxTasks = n
	}
	if v := os.Getenv("OASIS_PIPES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			log.Fatalf("Invalid OASIS_PIPES %q", v)
		}
		pipes = n
	}
	if v := os.Getenv("OASIS_TICK_HZ"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			log.Fatalf("Invalid OASIS_TICK_HZ %q", v)
		}
		hz = n
	}
	if v := os.Getenv("OASIS_SCHED"); v != "" {
		p, err := process.ParsePolicy(v)
		if err != nil {
			log.Fatalf("Invalid OASIS_SCHED: %v", err)
		}
		cfg.Policy = p
	}

	cfg.Logger = log.New(os.Stderr, "[kernel] ", log.Lmicroseconds)
	cfg.Console = fd.NewLineConsole(os.Stdin, os.Stdout)
	cfg.Pipes = ipc.NewPool(pipes)

	names := os.Args[1:]
	if len(names) == 0 {
		names = demoNames()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m, err := boot(ctx, cfg, hz, names)
	if err != nil {
		log.Fatalf("Boot failed: %v", err)
	}
	m.tasks.WriteInfo(os.Stdout)

	s := m.tasks.Stats()
	log.Printf("%d tasks finished after %d context switches (%s)", s.Tasks, s.Switches, s.Policy)
}

// boot creates one task per named demo and runs them until all have
// exited. The timer runs alongside and stops with the last task.
func boot(ctx context.Context, cfg *process.Config, hz int, names []string) (*machine, error) {
	m := newMachine(cfg)
	for i, name := range names {
		prog, ok := demos[name]
		if !ok {
			return nil, fmt.Errorf("unknown demo %q (have %v)", name, demoNames())
		}
		if _, err := m.spawn(uint32(entryBase+i*0x1000), prog); err != nil {
			return nil, fmt.Errorf("spawn %s: %w", name, err)
		}
	}

	pit, err := timer.New(hz, timer.HandlerFunc(m.cpu.Tick))
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	tctx, stopTimer := context.WithCancel(gctx)
	g.Go(func() error {
		if err := pit.Run(tctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		defer stopTimer()
		return m.run(gctx)
	})

	if err := g.Wait(); err != nil {
		return m, err
	}
	return m, nil
}
