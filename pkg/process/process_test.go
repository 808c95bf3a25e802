package process

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"oasis/pkg/errno"
	"oasis/pkg/process/fd"
	"oasis/pkg/process/ipc"
)

// runTicks ticks cpu every millisecond until ctx is done or the returned
// stop function is called.
func runTicks(ctx context.Context, cpu *CPU) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cpu.Tick()
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func newTestTable(t *testing.T, maxTasks int, policy Policy) *Table {
	t.Helper()
	cfg := DefaultConfig()
	cfg.MaxTasks = maxTasks
	cfg.Policy = policy
	return NewTable(cfg)
}

// mustCreate creates n tasks and returns their IDs.
func mustCreate(t *testing.T, tbl *Table, n int) []TaskID {
	t.Helper()
	ids := make([]TaskID, n)
	for i := range ids {
		id, err := tbl.Create(uint32(0x1000 + i*0x100))
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		ids[i] = id
	}
	return ids
}

// TestTaskStateTransitions tests valid and invalid state transitions.
func TestTaskStateTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    State
		to      State
		wantErr bool
	}{
		{"Ready to Running", StateReady, StateRunning, false},
		{"Running to Ready", StateRunning, StateReady, false},
		{"Running to Blocked", StateRunning, StateBlocked, false},
		{"Blocked to Ready", StateBlocked, StateReady, false},
		{"Running to Dead", StateRunning, StateDead, false},
		{"Blocked to Dead", StateBlocked, StateDead, false},
		{"Dead to Ready", StateDead, StateReady, true},
		{"Dead to Running", StateDead, StateRunning, true},
		{"Blocked to Running", StateBlocked, StateRunning, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := &Task{ID: 1, State: tt.from}
			err := task.transitionTo(tt.to)
			if (err != nil) != tt.wantErr {
				t.Errorf("transitionTo() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("transitionTo() error = %v, want %v", err, ErrInvalidTransition)
			}
		})
	}
}

// TestMustTransition tests that a guarded transition panics when the
// state table forbids it.
func TestMustTransition(t *testing.T) {
	task := &Task{ID: 1, State: StateReady}
	task.mustTransition(StateRunning)
	if task.State != StateRunning {
		t.Errorf("State = %v, want %v", task.State, StateRunning)
	}

	task.State = StateDead
	defer func() {
		err, _ := recover().(error)
		if !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("recover() = %v, want %v", err, ErrInvalidTransition)
		}
		if task.State != StateDead {
			t.Errorf("State = %v after a refused transition, want %v", task.State, StateDead)
		}
	}()
	task.mustTransition(StateRunning)
	t.Error("mustTransition(Dead -> Running) did not panic")
}

// TestCreateAssignsUniqueIDs tests that IDs are nonzero and never repeat.
func TestCreateAssignsUniqueIDs(t *testing.T) {
	tbl := newTestTable(t, DefaultMaxTasks, PolicyRoundRobin)
	ids := mustCreate(t, tbl, DefaultMaxTasks)

	seen := make(map[TaskID]bool)
	for _, id := range ids {
		if id == NoTask {
			t.Fatal("Create() returned NoTask")
		}
		if seen[id] {
			t.Fatalf("Create() returned duplicate ID %d", id)
		}
		seen[id] = true
	}
}

// TestCreateLayout tests the initial context, stack and descriptors.
func TestCreateLayout(t *testing.T) {
	tbl := newTestTable(t, 4, PolicyRoundRobin)
	ids := mustCreate(t, tbl, 3)

	task, err := tbl.Get(ids[2])
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	wantBase := uint32(DefaultStackBase + 2*DefaultStackSize)
	if task.Stack.Base != wantBase {
		t.Errorf("Stack.Base = %#x, want %#x", task.Stack.Base, wantBase)
	}
	if task.Context.ESP != wantBase+DefaultStackSize-4 {
		t.Errorf("ESP = %#x, want %#x", task.Context.ESP, wantBase+DefaultStackSize-4)
	}
	if task.Context.EBP != task.Context.ESP {
		t.Errorf("EBP = %#x, want ESP", task.Context.EBP)
	}
	if task.Context.EIP != 0x1200 {
		t.Errorf("EIP = %#x, want %#x", task.Context.EIP, 0x1200)
	}
	if task.Context.EFLAGS != 0x202 || task.Context.CS != 0x08 {
		t.Errorf("EFLAGS, CS = %#x, %#x, want 0x202, 0x8", task.Context.EFLAGS, task.Context.CS)
	}
	if task.State != StateReady {
		t.Errorf("State = %v, want %v", task.State, StateReady)
	}
	if task.Files == nil || !task.Files.Valid(fd.Stdout) {
		t.Error("new task has no stdio")
	}
	if task.Slot() != 2 {
		t.Errorf("Slot() = %d, want 2", task.Slot())
	}
}

// TestReadyListWraps tests that the tail links back to the head.
func TestReadyListWraps(t *testing.T) {
	tbl := newTestTable(t, 4, PolicyRoundRobin)
	ids := mustCreate(t, tbl, 3)

	got := tbl.ReadyList()
	if len(got) != len(ids) {
		t.Fatalf("ReadyList() = %v, want %v", got, ids)
	}
	for i := range ids {
		if got[i] != ids[i] {
			t.Errorf("ReadyList()[%d] = %d, want %d", i, got[i], ids[i])
		}
	}
	if tbl.slots[2].next != 0 || tbl.slots[0].prev != 2 {
		t.Errorf("tail.next = %d, head.prev = %d, want 0, 2", tbl.slots[2].next, tbl.slots[0].prev)
	}
}

// TestCreateTableFull tests exhaustion without a partial task.
func TestCreateTableFull(t *testing.T) {
	tbl := newTestTable(t, 2, PolicyRoundRobin)
	mustCreate(t, tbl, 2)

	_, err := tbl.Create(0x1000)
	if !errors.Is(err, ErrTableFull) {
		t.Fatalf("Create() error = %v, want %v", err, ErrTableFull)
	}
	if !errors.Is(err, errno.ErrResourceExhausted) {
		t.Errorf("Create() error = %v, want a resource exhaustion", err)
	}
	if tbl.Len() != 2 {
		t.Errorf("Len() = %d, want 2", tbl.Len())
	}
	if n := len(tbl.ReadyList()); n != 2 {
		t.Errorf("ready list has %d tasks, want 2", n)
	}
}

// TestScheduleSingleTask tests that one task is never selected by Schedule.
func TestScheduleSingleTask(t *testing.T) {
	tbl := newTestTable(t, 4, PolicyRoundRobin)
	mustCreate(t, tbl, 1)

	if id, ok := tbl.Schedule(); ok || id != NoTask {
		t.Errorf("Schedule() = %d, %v, want %d, false", id, ok, NoTask)
	}
	if _, ok := tbl.Current(); ok {
		t.Error("Current() ok = true before any task was selected")
	}
}

// TestScheduleRoundRobin tests the selection order and state changes.
func TestScheduleRoundRobin(t *testing.T) {
	tbl := newTestTable(t, 4, PolicyRoundRobin)
	ids := mustCreate(t, tbl, 3)

	want := []TaskID{ids[0], ids[1], ids[2], ids[0], ids[1]}
	for i, w := range want {
		got, ok := tbl.Schedule()
		if !ok || got != w {
			t.Fatalf("Schedule() #%d = %d, want %d", i, got, w)
		}
	}

	for _, task := range tbl.Snapshot() {
		wantState := StateReady
		if task.ID == ids[1] {
			wantState = StateRunning
		}
		if task.State != wantState {
			t.Errorf("task %d State = %v, want %v", task.ID, task.State, wantState)
		}
	}
	if s := tbl.Stats(); s.Switches != 5 {
		t.Errorf("Stats().Switches = %d, want 5", s.Switches)
	}
}

// TestScheduleDeadTurn tests how each policy treats a dead task's turn.
func TestScheduleDeadTurn(t *testing.T) {
	tests := []struct {
		policy Policy
		want   int // index of the task selected after the head
	}{
		{PolicyRoundRobin, 1},
		{PolicySkipInactive, 2},
	}

	for _, tt := range tests {
		t.Run(tt.policy.String(), func(t *testing.T) {
			tbl := newTestTable(t, 4, tt.policy)
			ids := mustCreate(t, tbl, 3)

			tbl.Switch(ids[1])
			tbl.Exit(0)
			tbl.Switch(ids[0])

			got, _ := tbl.Schedule()
			if got != ids[tt.want] {
				t.Errorf("Schedule() = %d, want %d", got, ids[tt.want])
			}
			if task, _ := tbl.Get(ids[1]); task.State != StateDead {
				t.Errorf("dead task State = %v, want %v", task.State, StateDead)
			}
		})
	}
}

// TestParsePolicy tests policy names.
func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    Policy
		wantErr bool
	}{
		{"", PolicyRoundRobin, false},
		{"round-robin", PolicyRoundRobin, false},
		{"skip", PolicySkipInactive, false},
		{"skip-inactive", PolicySkipInactive, false},
		{"fair", 0, true},
	}

	for _, tt := range tests {
		got, err := ParsePolicy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePolicy(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParsePolicy(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// TestForkNoCurrentTask tests that fork needs a current task.
func TestForkNoCurrentTask(t *testing.T) {
	tbl := newTestTable(t, 4, PolicyRoundRobin)
	mustCreate(t, tbl, 1)

	if _, err := tbl.Fork(); !errors.Is(err, ErrNoCurrentTask) {
		t.Errorf("Fork() error = %v, want %v", err, ErrNoCurrentTask)
	}
	if tbl.Len() != 1 {
		t.Errorf("Len() = %d, want 1", tbl.Len())
	}
}

// TestForkTableFull tests fork exhaustion.
func TestForkTableFull(t *testing.T) {
	tbl := newTestTable(t, 2, PolicyRoundRobin)
	ids := mustCreate(t, tbl, 2)
	tbl.Switch(ids[0])

	if _, err := tbl.Fork(); !errors.Is(err, errno.ErrResourceExhausted) {
		t.Errorf("Fork() error = %v, want a resource exhaustion", err)
	}
	if tbl.Len() != 2 {
		t.Errorf("Len() = %d, want 2", tbl.Len())
	}
}

// TestForkContext tests the child's context and parent link.
func TestForkContext(t *testing.T) {
	tbl := newTestTable(t, 4, PolicyRoundRobin)
	ids := mustCreate(t, tbl, 1)
	tbl.Switch(ids[0])

	child, err := tbl.Fork()
	if err != nil {
		t.Fatalf("Fork() error = %v", err)
	}
	parent, _ := tbl.Get(ids[0])
	c, _ := tbl.Get(child)

	if c.ParentID != parent.ID {
		t.Errorf("ParentID = %d, want %d", c.ParentID, parent.ID)
	}
	if c.Context.EIP != parent.Context.EIP {
		t.Errorf("EIP = %#x, want %#x", c.Context.EIP, parent.Context.EIP)
	}
	if c.Context.ESP != c.Stack.Top()-4 || c.Context.ESP == parent.Context.ESP {
		t.Errorf("ESP = %#x, want the top of the child's own stack", c.Context.ESP)
	}
	if c.Context.EAX != 0 {
		t.Errorf("EAX = %d, want 0", c.Context.EAX)
	}
	if c.State != StateReady {
		t.Errorf("State = %v, want %v", c.State, StateReady)
	}
	if got := tbl.ReadyList(); got[len(got)-1] != child {
		t.Errorf("ReadyList() = %v, want child at the tail", got)
	}
}

// TestForkSharesPipes tests descriptor inheritance through fork.
func TestForkSharesPipes(t *testing.T) {
	ctx := context.Background()
	tbl := newTestTable(t, 4, PolicyRoundRobin)
	ids := mustCreate(t, tbl, 1)
	tbl.Switch(ids[0])

	files, _ := tbl.CurrentFiles()
	rfd, wfd, err := files.Pipe()
	if err != nil {
		t.Fatalf("Pipe() error = %v", err)
	}

	child, err := tbl.Fork()
	if err != nil {
		t.Fatalf("Fork() error = %v", err)
	}
	c, _ := tbl.Get(child)

	e, _ := c.Files.Get(rfd)
	if e.RefCount != 2 {
		t.Errorf("child RefCount = %d, want 2", e.RefCount)
	}
	if s := e.Pipe.Stats(); s.Readers != 2 || s.Writers != 2 {
		t.Errorf("pipe counts = %d/%d, want 2/2", s.Readers, s.Writers)
	}

	if _, err := files.Write(ctx, wfd, []byte("ping")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	files.Close(rfd)
	files.Close(wfd)
	if tbl.Pipes().Active() != 1 {
		t.Fatal("pipe released while the child still holds it")
	}

	buf := make([]byte, 8)
	n, err := c.Files.Read(ctx, rfd, buf)
	if err != nil || string(buf[:n]) != "ping" {
		t.Errorf("child Read() = %q, %v, want %q", buf[:n], err, "ping")
	}
}

// TestExitReleasesPipes tests that exit closes every descriptor.
func TestExitReleasesPipes(t *testing.T) {
	tbl := newTestTable(t, 4, PolicyRoundRobin)
	ids := mustCreate(t, tbl, 2)
	tbl.Switch(ids[0])

	files, _ := tbl.CurrentFiles()
	if _, _, err := files.Pipe(); err != nil {
		t.Fatalf("Pipe() error = %v", err)
	}
	tbl.Exit(3)

	if tbl.Pipes().Active() != 0 {
		t.Errorf("Active() = %d after exit, want 0", tbl.Pipes().Active())
	}
	task, _ := tbl.Get(ids[0])
	if task.State != StateDead || task.ExitCode != 3 {
		t.Errorf("task = %v code %d, want %v code 3", task.State, task.ExitCode, StateDead)
	}
	if task.Files.Valid(fd.Stdin) {
		t.Error("stdin still open after exit")
	}
	if tbl.Len() != 2 {
		t.Errorf("Len() = %d, want 2", tbl.Len())
	}
}

// TestExitNoCurrentTask tests that exit without a current task is ignored.
func TestExitNoCurrentTask(t *testing.T) {
	tbl := newTestTable(t, 4, PolicyRoundRobin)
	ids := mustCreate(t, tbl, 1)

	tbl.Exit(1)
	if task, _ := tbl.Get(ids[0]); task.State != StateReady {
		t.Errorf("State = %v, want %v", task.State, StateReady)
	}
}

// TestWait tests the non-blocking, non-reaping wait.
func TestWait(t *testing.T) {
	tbl := newTestTable(t, 4, PolicyRoundRobin)
	ids := mustCreate(t, tbl, 1)
	parent := ids[0]

	if _, _, err := tbl.Wait(); !errors.Is(err, ErrNoCurrentTask) {
		t.Errorf("Wait() error = %v, want %v", err, ErrNoCurrentTask)
	}

	tbl.Switch(parent)
	if _, _, err := tbl.Wait(); !errors.Is(err, ErrNoChild) {
		t.Errorf("Wait() error = %v, want %v", err, ErrNoChild)
	}

	first, _ := tbl.Fork()
	second, _ := tbl.Fork()

	got, status, err := tbl.Wait()
	if err != nil || got != first || status != 0 {
		t.Errorf("Wait() = %d, %d, %v, want %d, 0, nil", got, status, err, first)
	}

	tbl.Switch(first)
	tbl.Exit(9)
	tbl.Switch(parent)

	if got, _, _ := tbl.Wait(); got != second {
		t.Errorf("Wait() = %d, want %d", got, second)
	}

	tbl.Switch(second)
	tbl.Exit(0)
	tbl.Switch(parent)
	if _, _, err := tbl.Wait(); !errors.Is(err, ErrNoChild) {
		t.Errorf("Wait() error = %v, want %v", err, ErrNoChild)
	}
	if tbl.Len() != 3 {
		t.Errorf("Len() = %d, want 3", tbl.Len())
	}
}

// TestExec tests the context reset.
func TestExec(t *testing.T) {
	tbl := newTestTable(t, 4, PolicyRoundRobin)
	if err := tbl.Exec(nil); !errors.Is(err, ErrNoCurrentTask) {
		t.Errorf("Exec() error = %v, want %v", err, ErrNoCurrentTask)
	}

	ids := mustCreate(t, tbl, 1)
	tbl.Switch(ids[0])
	tbl.slots[0].Context.EAX = 42
	tbl.slots[0].Context.ESP = 0x100

	if err := tbl.Exec([]byte{0x90}); err != nil {
		t.Fatalf("Exec() error = %v", err)
	}
	task, _ := tbl.Current()
	if task.Context.EAX != 0 {
		t.Errorf("EAX = %d, want 0", task.Context.EAX)
	}
	if task.Context.ESP != task.Stack.Top()-4 || task.Context.EBP != task.Context.ESP {
		t.Errorf("ESP, EBP = %#x, %#x, want %#x", task.Context.ESP, task.Context.EBP, task.Stack.Top()-4)
	}
	if task.Context.EIP != 0x1000 {
		t.Errorf("EIP = %#x, want it unchanged", task.Context.EIP)
	}
}

// TestPIDs tests getpid and getppid.
func TestPIDs(t *testing.T) {
	tbl := newTestTable(t, 4, PolicyRoundRobin)
	if tbl.GetPID() != NoTask || tbl.GetPPID() != NoTask {
		t.Error("GetPID() or GetPPID() nonzero without a current task")
	}

	ids := mustCreate(t, tbl, 1)
	tbl.Switch(ids[0])
	child, _ := tbl.Fork()
	tbl.Switch(child)

	if tbl.GetPID() != child {
		t.Errorf("GetPID() = %d, want %d", tbl.GetPID(), child)
	}
	if tbl.GetPPID() != ids[0] {
		t.Errorf("GetPPID() = %d, want %d", tbl.GetPPID(), ids[0])
	}
}

// TestBlockWake tests suspension and wakeup.
func TestBlockWake(t *testing.T) {
	tbl := newTestTable(t, 4, PolicySkipInactive)
	ids := mustCreate(t, tbl, 2)

	if err := tbl.Block(ids[1]); err != nil {
		t.Fatalf("Block() error = %v", err)
	}
	tbl.Switch(ids[0])
	if got, _ := tbl.Schedule(); got != ids[0] {
		t.Errorf("Schedule() = %d, want %d while the other task is blocked", got, ids[0])
	}
	if err := tbl.Switch(ids[1]); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Switch() to a blocked task error = %v, want %v", err, ErrInvalidTransition)
	}

	if err := tbl.Wake(ids[1]); err != nil {
		t.Fatalf("Wake() error = %v", err)
	}
	if err := tbl.Wake(ids[1]); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Wake() twice error = %v, want %v", err, ErrInvalidTransition)
	}
	if got, _ := tbl.Schedule(); got != ids[1] {
		t.Errorf("Schedule() = %d, want %d", got, ids[1])
	}
	if err := tbl.Block(99); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("Block() error = %v, want %v", err, ErrTaskNotFound)
	}
}

// TestWriteInfo tests the task listing.
func TestWriteInfo(t *testing.T) {
	tbl := newTestTable(t, 4, PolicyRoundRobin)
	ids := mustCreate(t, tbl, 2)
	tbl.Switch(ids[1])

	var buf bytes.Buffer
	if err := tbl.WriteInfo(&buf); err != nil {
		t.Fatalf("WriteInfo() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"Total tasks: 2",
		"  Task 0: ID=1 PPID=0 State=READY Stack=0x10000 EIP=0x1000",
		"* Task 1: ID=2 PPID=0 State=RUNNING Stack=0x11000 EIP=0x1100",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("WriteInfo() missing %q in\n%s", want, out)
		}
	}
}

// TestCPUHandsOffOnPipeWait tests that a parked reader lets the writer's
// task run.
func TestCPUHandsOffOnPipeWait(t *testing.T) {
	tbl := newTestTable(t, 4, PolicyRoundRobin)
	cpu := NewCPU(tbl)
	ids := mustCreate(t, tbl, 2)
	tbl.Switch(ids[0])

	files, _ := tbl.CurrentFiles()
	rfd, wfd, err := files.Pipe()
	if err != nil {
		t.Fatalf("Pipe() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	defer runTicks(ctx, cpu)()

	var got []byte
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cctx, release, err := cpu.Acquire(gctx, ids[0])
		if err != nil {
			return err
		}
		defer release()
		buf := make([]byte, 8)
		n, err := files.Read(cctx, rfd, buf)
		got = buf[:n]
		return err
	})
	g.Go(func() error {
		cctx, release, err := cpu.Acquire(gctx, ids[1])
		if err != nil {
			return err
		}
		defer release()
		_, err = files.Write(cctx, wfd, []byte("hi"))
		return err
	})

	if err := g.Wait(); err != nil {
		t.Fatalf("tasks failed: %v", err)
	}
	if string(got) != "hi" {
		t.Errorf("Read() = %q, want %q", got, "hi")
	}
}

// TestCPUResumeBeforeReturn tests that a reader woken from a pipe wait
// is the current task again when its Read returns.
func TestCPUResumeBeforeReturn(t *testing.T) {
	tbl := newTestTable(t, 4, PolicyRoundRobin)
	cpu := NewCPU(tbl)
	ids := mustCreate(t, tbl, 2)
	tbl.Switch(ids[0])

	files, _ := tbl.CurrentFiles()
	rfd, wfd, err := files.Pipe()
	if err != nil {
		t.Fatalf("Pipe() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	defer runTicks(ctx, cpu)()

	var readerPID TaskID
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cctx, release, err := cpu.Acquire(gctx, ids[0])
		if err != nil {
			return err
		}
		defer release()
		if _, err := files.Read(cctx, rfd, make([]byte, 1)); err != nil {
			return err
		}
		readerPID = tbl.GetPID()
		return nil
	})
	g.Go(func() error {
		cctx, release, err := cpu.Acquire(gctx, ids[1])
		if err != nil {
			return err
		}
		defer release()
		_, err = files.Write(cctx, wfd, []byte("x"))
		return err
	})

	if err := g.Wait(); err != nil {
		t.Fatalf("tasks failed: %v", err)
	}
	if readerPID != ids[0] {
		t.Errorf("GetPID() after Read() = %d, want %d", readerPID, ids[0])
	}
}

// TestCPUTick tests that ticks advance the current task.
func TestCPUTick(t *testing.T) {
	tbl := newTestTable(t, 4, PolicyRoundRobin)
	cpu := NewCPU(tbl)
	ids := mustCreate(t, tbl, 2)

	cpu.Tick()
	cpu.Tick()
	if got := tbl.GetPID(); got != ids[1] {
		t.Errorf("GetPID() = %d, want %d", got, ids[1])
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := cpu.Acquire(ctx, ids[0]); !errors.Is(err, context.Canceled) {
		t.Errorf("Acquire() error = %v, want %v", err, context.Canceled)
	}
}

// TestPoolDefault tests that a table without a pool gets one.
func TestPoolDefault(t *testing.T) {
	tbl := NewTable(nil)
	if tbl.Pipes() == nil || tbl.Pipes().Len() != ipc.DefaultPoolSize {
		t.Error("NewTable(nil) has no default pipe pool")
	}
	if tbl.Cap() != DefaultMaxTasks {
		t.Errorf("Cap() = %d, want %d", tbl.Cap(), DefaultMaxTasks)
	}
}
