// Package inbox implements the per-agent mailbox (spec.md §4.3): a
// priority-ordered pending sequence, a single in-progress slot, and a
// bounded completed ring. One Inbox exists per agent id and is
// single-writer via its own mutex — the same discipline the teacher uses
// for CollabService and SessionRegistry (a mutex-guarded struct whose
// methods correspond to the message handlers, per spec.md §9).
package inbox

import (
	"sync"

	"github.com/Rooba/AgentCoordinator-sub000/internal/brokerr"
	"github.com/Rooba/AgentCoordinator-sub000/internal/domain"
)

const defaultMaxHistory = 100

// Inbox is one agent's mailbox.
type Inbox struct {
	mu         sync.Mutex
	agentID    string
	pending    []*domain.Task
	inProgress *domain.Task
	completed  []*domain.Task
	maxHistory int
}

// New creates an empty Inbox for agentID. Idempotent construction (calling
// New again for an already-started agent) is the caller's responsibility —
// the registry tracks one Inbox per agent id in a map and only constructs
// one the first time, matching "materialize its inbox (idempotent)" in
// spec.md §4.2.
func New(agentID string) *Inbox {
	return &Inbox{agentID: agentID, maxHistory: defaultMaxHistory}
}

// AddTask priority-inserts t: placed at the last position whose priority is
// ≤ t's priority (stable), so equal-priority tasks serve FIFO (spec.md
// §4.2.1).
func (ib *Inbox) AddTask(t *domain.Task) {
	ib.mu.Lock()
	defer ib.mu.Unlock()
	ib.insertLocked(t)
}

func (ib *Inbox) insertLocked(t *domain.Task) {
	idx := len(ib.pending)
	for i, existing := range ib.pending {
		if existing.Priority > t.Priority {
			idx = i
			break
		}
	}
	ib.pending = append(ib.pending, nil)
	copy(ib.pending[idx+1:], ib.pending[idx:])
	ib.pending[idx] = t
}

// GetNextTask pops the head of pending, marks it in_progress, and returns
// it. Returns (nil, false) if pending is empty.
func (ib *Inbox) GetNextTask() (*domain.Task, bool) {
	ib.mu.Lock()
	defer ib.mu.Unlock()
	if len(ib.pending) == 0 {
		return nil, false
	}
	t := ib.pending[0]
	ib.pending = ib.pending[1:]
	t.Status = domain.TaskInProgress
	t.AgentID = ib.agentID
	ib.inProgress = t
	return t, true
}

// CompleteCurrentTask marks the in-progress task completed, pushes it onto
// the bounded completed ring, and returns it. Errors with
// brokerr.StateViolation if no task is in progress (spec.md §4.3).
func (ib *Inbox) CompleteCurrentTask() (*domain.Task, error) {
	ib.mu.Lock()
	defer ib.mu.Unlock()
	if ib.inProgress == nil {
		return nil, brokerr.New(brokerr.StateViolation, "no_task_in_progress")
	}
	t := ib.inProgress
	t.Status = domain.TaskCompleted
	ib.inProgress = nil
	ib.completed = append([]*domain.Task{t}, ib.completed...)
	if len(ib.completed) > ib.maxHistory {
		ib.completed = ib.completed[:ib.maxHistory]
	}
	return t, nil
}

// FailCurrentTask marks the in-progress task failed and clears the slot,
// without adding it to the completed ring (it belongs to the registry's
// pending/failed bookkeeping instead).
func (ib *Inbox) FailCurrentTask() (*domain.Task, error) {
	ib.mu.Lock()
	defer ib.mu.Unlock()
	if ib.inProgress == nil {
		return nil, brokerr.New(brokerr.StateViolation, "no_task_in_progress")
	}
	t := ib.inProgress
	t.Status = domain.TaskFailed
	ib.inProgress = nil
	return t, nil
}

// RequeueInProgress returns the in-progress task (if any) to the front of
// pending and clears the slot — used when an agent is force-unregistered
// (spec.md §4.2 Unregister) or a downstream worker process dies mid-task.
func (ib *Inbox) RequeueInProgress() *domain.Task {
	ib.mu.Lock()
	defer ib.mu.Unlock()
	if ib.inProgress == nil {
		return nil
	}
	t := ib.inProgress
	t.Status = domain.TaskPending
	t.AgentID = ""
	ib.inProgress = nil
	ib.pending = append([]*domain.Task{t}, ib.pending...)
	return t
}

// Status is a snapshot of an inbox's counts.
type Status struct {
	PendingCount   int
	InProgress     *domain.Task
	CompletedCount int
}

// GetStatus returns a snapshot.
func (ib *Inbox) GetStatus() Status {
	ib.mu.Lock()
	defer ib.mu.Unlock()
	return Status{PendingCount: len(ib.pending), InProgress: ib.inProgress, CompletedCount: len(ib.completed)}
}

// ListTasks returns a snapshot of pending tasks (head to tail order), the
// in-progress task if any, and the bounded history of completed tasks.
func (ib *Inbox) ListTasks() (pending []*domain.Task, inProgress *domain.Task, completed []*domain.Task) {
	ib.mu.Lock()
	defer ib.mu.Unlock()
	pending = append([]*domain.Task(nil), ib.pending...)
	completed = append([]*domain.Task(nil), ib.completed...)
	return pending, ib.inProgress, completed
}

// PendingCount returns the number of tasks awaiting assignment in this
// inbox, used by the assignment algorithm's "fewest pending tasks" tie
// break (spec.md §4.2.2 step 4).
func (ib *Inbox) PendingCount() int {
	ib.mu.Lock()
	defer ib.mu.Unlock()
	return len(ib.pending)
}
