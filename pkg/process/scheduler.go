package process

import "fmt"

// Policy selects how the scheduler treats tasks that cannot run.
type Policy int

const (
	// PolicyRoundRobin advances to the next task in the ready list
	// unconditionally. Dead and Blocked tasks keep their turn: the CPU
	// stays with them until the next tick.
	PolicyRoundRobin Policy = iota
	// PolicySkipInactive advances to the next Ready or Running task.
	PolicySkipInactive
)

func (p Policy) String() string {
	switch p {
	case PolicyRoundRobin:
		return "round-robin"
	case PolicySkipInactive:
		return "skip-inactive"
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// ParsePolicy parses a policy name as printed by Policy.String.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "round-robin", "rr", "":
		return PolicyRoundRobin, nil
	case "skip-inactive", "skip":
		return PolicySkipInactive, nil
	}
	return 0, fmt.Errorf("unknown scheduling policy %q", s)
}

// Schedule advances the current task round-robin through the ready list.
// It runs on every timer tick and on yield. With fewer than two tasks it
// does nothing. The displaced task, if Running, goes back to Ready; the
// selected task, if Ready, becomes Running. It returns the current task.
func (t *Table) Schedule() (TaskID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.count <= 1 {
		return t.currentIDLocked()
	}

	prev := t.current
	next := t.pickLocked()
	if prev >= 0 && prev != next && t.slots[prev].State == StateRunning {
		t.slots[prev].mustTransition(StateReady)
	}
	t.current = next
	if t.slots[next].State == StateReady {
		t.slots[next].mustTransition(StateRunning)
	}
	if prev != next {
		t.notifySwitchLocked()
	}

	return t.currentIDLocked()
}

// Tick is the timer interrupt handler.
func (t *Table) Tick() {
	t.Schedule()
}

// Yield gives up the CPU voluntarily.
func (t *Table) Yield() {
	t.Schedule()
}

// pickLocked returns the slot the scheduler moves to.
func (t *Table) pickLocked() int {
	start := 0
	if t.current >= 0 {
		start = t.slots[t.current].next
	}
	if t.cfg.Policy != PolicySkipInactive {
		return start
	}

	s := start
	for i := 0; i < t.count; i++ {
		if t.slots[s].IsRunnable() {
			return s
		}
		s = t.slots[s].next
	}
	if t.current >= 0 {
		return t.current
	}
	return start
}

// linkLocked appends the task in slot as the new tail of the circular
// ready list. The caller has not yet counted it.
func (t *Table) linkLocked(slot int) {
	task := &t.slots[slot]
	task.next = 0
	task.prev = slot
	if slot > 0 {
		tail := slot - 1
		t.slots[tail].next = slot
		task.prev = tail
		t.slots[0].prev = slot
	}
}

// ReadyList returns the task IDs in ready-list order, starting at the
// list head.
func (t *Table) ReadyList() []TaskID {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := make([]TaskID, 0, t.count)
	if t.count == 0 {
		return ids
	}
	s := 0
	for i := 0; i < t.count; i++ {
		ids = append(ids, t.slots[s].ID)
		s = t.slots[s].next
	}
	return ids
}

// Block suspends a task until Wake.
func (t *Table) Block(id TaskID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	task, err := t.lookupLocked(id)
	if err != nil {
		return err
	}
	return task.transitionTo(StateBlocked)
}

// Wake makes a blocked task Ready.
func (t *Table) Wake(id TaskID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	task, err := t.lookupLocked(id)
	if err != nil {
		return err
	}
	return task.transitionTo(StateReady)
}

// Switch makes id the current task directly. The boot path uses it to
// start the first task, which Schedule never selects on its own.
func (t *Table) Switch(id TaskID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	task, err := t.lookupLocked(id)
	if err != nil {
		return err
	}
	if !task.IsRunnable() {
		return fmt.Errorf("switch to task %d (%s): %w", id, task.State, ErrInvalidTransition)
	}

	if t.current >= 0 && t.current != task.slot && t.slots[t.current].State == StateRunning {
		t.slots[t.current].mustTransition(StateReady)
	}
	if t.current != task.slot {
		t.notifySwitchLocked()
	}
	t.current = task.slot
	if task.State == StateReady {
		task.mustTransition(StateRunning)
	}
	return nil
}

// Stats contains scheduler statistics.
type Stats struct {
	Tasks    int
	Live     int
	Switches uint64
	Policy   Policy
}

// Stats returns scheduler statistics.
func (t *Table) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	live := 0
	for i := 0; i < t.count; i++ {
		if t.slots[i].State != StateDead {
			live++
		}
	}
	return Stats{
		Tasks:    t.count,
		Live:     live,
		Switches: t.switches,
		Policy:   t.cfg.Policy,
	}
}
