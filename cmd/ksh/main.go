// ksh is the Oasis kernel monitor: an interactive shell that issues system
// calls on behalf of whichever task is current.
//
// Usage:
//
//	ksh [options] [script]
//
// Options:
//
//	-c command   Execute command and exit
//	-tasks n     Number of task slots
//	-pipes n     Number of pipes in the pool
//	-sched name  Scheduling policy (round-robin or skip-inactive)
//	-v           Log kernel messages to stderr
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"oasis/pkg/process"
	"oasis/pkg/process/ipc"
)

func main() {
	command := flag.String("c", "", "Execute command and exit")
	tasks := flag.Int("tasks", process.DefaultMaxTasks, "Number of task slots")
	pipes := flag.Int("pipes", ipc.DefaultPoolSize, "Number of pipes in the pool")
	sched := flag.String("sched", "round-robin", "Scheduling policy")
	verbose := flag.Bool("v", false, "Log kernel messages")
	flag.Parse()

	policy, err := process.ParsePolicy(*sched)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ksh: %s\n", err)
		os.Exit(2)
	}

	cfg := process.DefaultConfig()
	cfg.MaxTasks = *tasks
	cfg.Policy = policy
	cfg.Pipes = ipc.NewPool(*pipes)
	if *verbose {
		cfg.Logger = log.New(os.Stderr, "[kernel] ", 0)
	}

	in := os.Stdin
	interactive := *command == ""
	if args := flag.Args(); len(args) > 0 {
		f, err := os.Open(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "ksh: %s: %s\n", args[0], err)
			os.Exit(1)
		}
		defer f.Close()
		in = f
		interactive = false
	}

	shell := NewShell(cfg, in, os.Stdout, os.Stderr)
	shell.Interactive = interactive

	if *command != "" {
		os.Exit(shell.ExecuteString(*command))
	}
	if err := shell.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "ksh: %s\n", err)
		os.Exit(1)
	}
}
