// Package registry implements the TaskRegistry (spec.md §4.2): the
// coordination mailbox that owns agents, the global pending queue, file
// locks, and cross-codebase task links. Grounded on the teacher's
// internal/app/orchestrator.go (assignment strategies) and
// internal/app/service.go (single mailbox: load -> mutate -> save -> notify).
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Rooba/AgentCoordinator-sub000/internal/brokerr"
	"github.com/Rooba/AgentCoordinator-sub000/internal/codebase"
	"github.com/Rooba/AgentCoordinator-sub000/internal/domain"
	"github.com/Rooba/AgentCoordinator-sub000/internal/eventbus"
	"github.com/Rooba/AgentCoordinator-sub000/internal/inbox"
)

// fileLockKey identifies a held lock by (codebase, path) — spec.md §5:
// "File locks are scoped (codebase, path) -> task".
type fileLockKey struct {
	codebaseID string
	path       string
}

// Registry is the TaskRegistry. One instance per broker process;
// single-writer via mu, matching the teacher's CollabService discipline.
type Registry struct {
	mu sync.Mutex

	bus   eventbus.Bus
	codes *codebase.Registry
	now   func() time.Time

	agentsByID   map[string]*domain.Agent
	agentsByName map[string]string // name -> id
	order        int               // monotonic registration counter for tie breaks

	inboxes map[string]*inbox.Inbox // agent id -> inbox

	pending []*domain.Task
	tasks   map[string]*domain.Task // every task the registry knows about, by id

	locks map[fileLockKey]string // -> task id

	// crossDeps maps a main task id to its dependent task ids (§4.2.4).
	crossDeps map[string][]string
}

// New creates an empty Registry. bus may be eventbus.NoopBus{}.
func New(bus eventbus.Bus, codes *codebase.Registry) *Registry {
	if bus == nil {
		bus = eventbus.NoopBus{}
	}
	return &Registry{
		bus:          bus,
		codes:        codes,
		now:          time.Now,
		agentsByID:   make(map[string]*domain.Agent),
		agentsByName: make(map[string]string),
		inboxes:      make(map[string]*inbox.Inbox),
		tasks:        make(map[string]*domain.Task),
		locks:        make(map[fileLockKey]string),
		crossDeps:    make(map[string][]string),
	}
}

func (r *Registry) publish(subject string, payload map[string]any) {
	r.bus.Publish(subject, payload)
}

// RegisterAgent registers a new agent named name. Refuses with a conflict
// error if the name is already live (spec.md §4.2, §8 invariant 1).
func (r *Registry) RegisterAgent(name string, capabilities []string, codebaseID, workspacePath string, crossCodebaseOK bool, metadata map[string]any) (*domain.Agent, error) {
	r.mu.Lock()

	if _, exists := r.agentsByName[name]; exists {
		r.mu.Unlock()
		return nil, brokerr.New(brokerr.Conflict, "Agent name already exists")
	}

	now := r.now()
	if codebaseID == "" {
		if workspacePath != "" {
			codebaseID = codebase.Identify(workspacePath)
		} else {
			codebaseID = "local:default"
		}
	}

	a := &domain.Agent{
		ID:              uuid.NewString(),
		Name:            name,
		Capabilities:    append([]string(nil), capabilities...),
		Status:          domain.AgentIdle,
		CodebaseID:      codebaseID,
		WorkspacePath:   workspacePath,
		LastHeartbeat:   now,
		Metadata:        metadata,
		CrossCodebaseOK: crossCodebaseOK,
	}
	a.SetOrder(r.order)
	r.order++

	r.agentsByID[a.ID] = a
	r.agentsByName[a.Name] = a.ID
	if _, ok := r.inboxes[a.ID]; !ok {
		r.inboxes[a.ID] = inbox.New(a.ID)
	}
	if r.codes != nil {
		r.codes.Register(codebaseID, "", workspacePath)
		r.codes.TrackAgent(codebaseID, a.ID)
	}

	r.mu.Unlock()

	r.publish("agent.registered."+codebaseID, map[string]any{"agent_id": a.ID, "name": a.Name})
	r.sweepPending()
	return a, nil
}

// Heartbeat updates an agent's last_heartbeat. Errors if unknown.
func (r *Registry) Heartbeat(agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agentsByID[agentID]
	if !ok {
		return brokerr.New(brokerr.NotFound, "unknown agent %q", agentID)
	}
	a.LastHeartbeat = r.now()
	if a.Status == domain.AgentOffline {
		a.Status = domain.AgentIdle
	}
	r.bus.Publish("agent.heartbeat."+agentID, map[string]any{"agent_id": agentID})
	return nil
}

// Unregister removes an agent. If busy and force is false, refuses. If
// force is true (or the agent is idle), it is removed; an in-progress task
// is requeued at the head of pending.
func (r *Registry) Unregister(agentID, reason string, force bool) error {
	r.mu.Lock()

	a, ok := r.agentsByID[agentID]
	if !ok {
		r.mu.Unlock()
		return brokerr.New(brokerr.NotFound, "unknown agent %q", agentID)
	}

	if a.Status == domain.AgentBusy && !force {
		r.mu.Unlock()
		return brokerr.New(brokerr.StateViolation, "agent has active task; complete or force")
	}

	ib := r.inboxes[agentID]
	var requeued *domain.Task
	if ib != nil {
		requeued = ib.RequeueInProgress()
	}
	if requeued != nil {
		r.pending = append([]*domain.Task{requeued}, r.pending...)
		r.releaseLocksForTaskLocked(requeued.ID)
	}

	delete(r.agentsByID, agentID)
	delete(r.agentsByName, a.Name)
	delete(r.inboxes, agentID)
	if r.codes != nil {
		r.codes.UntrackAgent(a.CodebaseID, agentID)
	}

	r.mu.Unlock()

	subject := "agent.unregistered"
	if requeued != nil {
		subject += ".with_reassignment"
		r.bus.Publish("task.reassigned", map[string]any{"task_id": requeued.ID})
	}
	r.publish(subject, map[string]any{"agent_id": agentID, "reason": reason})
	if requeued != nil {
		r.sweepPending()
	}
	return nil
}

// AgentByID returns a snapshot lookup of an agent.
func (r *Registry) AgentByID(id string) (*domain.Agent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agentsByID[id]
	return a, ok
}

// Agents returns a snapshot of all registered agents.
func (r *Registry) Agents() []*domain.Agent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Agent, 0, len(r.agentsByID))
	for _, a := range r.agentsByID {
		out = append(out, a)
	}
	return out
}

// CreateTask builds a task from the given fields, tries to assign it
// immediately, and enqueues it to pending on no_available_agents or file
// conflict. CreateTask never loses a task (spec.md §7).
func (r *Registry) CreateTask(title, description, codebaseID string, priority domain.Priority, filePaths []string, requiredCapabilities []string, crossDeps []domain.CrossCodebaseDependency) (*domain.Task, string, error) {
	now := r.now()
	t := &domain.Task{
		ID:                        uuid.NewString(),
		Title:                     title,
		Description:               description,
		Status:                    domain.TaskPending,
		Priority:                  priority,
		CodebaseID:                codebaseID,
		FilePaths:                 append([]string(nil), filePaths...),
		CrossCodebaseDependencies: crossDeps,
		CreatedAt:                 now,
		UpdatedAt:                 now,
	}
	if len(requiredCapabilities) > 0 {
		t.Metadata = map[string]any{"required_capabilities": requiredCapabilities}
	}

	r.mu.Lock()
	r.tasks[t.ID] = t
	r.mu.Unlock()

	status, err := r.AssignTask(t)
	return t, status, err
}

// AddToPending pushes t onto the global pending queue and publishes
// task.queued.<codebase_id>.
func (r *Registry) AddToPending(t *domain.Task) {
	r.mu.Lock()
	r.tasks[t.ID] = t
	r.pending = append(r.pending, t)
	r.mu.Unlock()
	r.publish("task.queued."+t.CodebaseID, map[string]any{"task_id": t.ID})
}

// AssignTask runs the assignment algorithm of spec.md §4.2.2 for t and
// returns a status string ("assigned", "queued") plus an error that is
// non-nil only when the task could not even be queued (never happens in
// practice — CreateTask never loses a task).
func (r *Registry) AssignTask(t *domain.Task) (string, error) {
	r.mu.Lock()

	candidates := r.eligibleCandidatesLocked(t)
	if len(candidates) == 0 {
		r.pending = append(r.pending, t)
		r.mu.Unlock()
		r.publish("task.queued."+t.CodebaseID, map[string]any{"task_id": t.ID, "reason": "no_available_agents"})
		return "queued", nil
	}

	if conflict := r.fileConflictLocked(t); conflict {
		t.Status = domain.TaskBlocked
		t.BlockedReason = "file_conflicts"
		r.pending = append([]*domain.Task{t}, r.pending...)
		r.mu.Unlock()
		r.publish("task.blocked."+t.CodebaseID, map[string]any{"task_id": t.ID})
		return "queued", nil
	}

	chosen := r.selectCandidateLocked(candidates, t)
	ib := r.inboxes[chosen.ID]
	ib.AddTask(t)
	chosen.Status = domain.AgentBusy
	chosen.CurrentTaskID = t.ID

	r.mu.Unlock()

	r.publish("task.assigned."+t.CodebaseID, map[string]any{"task_id": t.ID, "agent_id": chosen.ID})
	return "assigned", nil
}

// eligibleCandidatesLocked implements step 1 of §4.2.2. Caller holds mu.
func (r *Registry) eligibleCandidatesLocked(t *domain.Task) []*domain.Agent {
	now := r.now()
	required := t.RequiredCapabilities()
	var out []*domain.Agent
	for _, a := range r.agentsByID {
		sameCodebase := a.CodebaseID == t.CodebaseID
		crossEligible := a.CrossCodebaseOK && len(t.CrossCodebaseDependencies) > 0
		if !sameCodebase && !crossEligible {
			continue
		}
		if a.Status != domain.AgentIdle {
			continue
		}
		if !domain.IsOnline(a, now) {
			continue
		}
		if !hasAllCapabilities(a.Capabilities, required) {
			continue
		}
		out = append(out, a)
	}
	return out
}

func hasAllCapabilities(have, required []string) bool {
	if len(required) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(have))
	for _, c := range have {
		set[c] = struct{}{}
	}
	for _, req := range required {
		if _, ok := set[req]; !ok {
			return false
		}
	}
	return true
}

// fileConflictLocked reports whether any of t.FilePaths is currently locked
// within t.CodebaseID. Caller holds mu.
func (r *Registry) fileConflictLocked(t *domain.Task) bool {
	for _, p := range t.FilePaths {
		if _, locked := r.locks[fileLockKey{t.CodebaseID, p}]; locked {
			return true
		}
	}
	return false
}

// selectCandidateLocked implements step 4 of §4.2.2: same-codebase
// preferred, then fewest pending tasks in the candidate's inbox, then
// insertion order, all deterministic. Caller holds mu.
func (r *Registry) selectCandidateLocked(candidates []*domain.Agent, t *domain.Task) *domain.Agent {
	pending := func(id string) int {
		if ib := r.inboxes[id]; ib != nil {
			return ib.PendingCount()
		}
		return 0
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		ci, cj := candidates[i], candidates[j]
		si := ci.CodebaseID == t.CodebaseID
		sj := cj.CodebaseID == t.CodebaseID
		if si != sj {
			return si
		}
		pi, pj := pending(ci.ID), pending(cj.ID)
		if pi != pj {
			return pi < pj
		}
		return ci.Order() < cj.Order()
	})
	return candidates[0]
}

// GetNextTask delegates to agentID's inbox; on success transitions the
// agent to busy and publishes task.started, acquiring file locks for the
// task's file paths.
func (r *Registry) GetNextTask(agentID string) (*domain.Task, error) {
	r.mu.Lock()
	a, ok := r.agentsByID[agentID]
	if !ok {
		r.mu.Unlock()
		return nil, brokerr.New(brokerr.NotFound, "unknown agent %q", agentID)
	}
	ib := r.inboxes[agentID]
	t, found := ib.GetNextTask()
	if !found {
		r.mu.Unlock()
		return nil, nil
	}
	a.Status = domain.AgentBusy
	a.CurrentTaskID = t.ID
	for _, p := range t.FilePaths {
		r.locks[fileLockKey{t.CodebaseID, p}] = t.ID
	}
	if r.codes != nil {
		r.codes.TrackTask(t.CodebaseID, t.ID)
	}
	r.mu.Unlock()

	r.publish("task.started", map[string]any{"task_id": t.ID, "agent_id": agentID})
	return t, nil
}

// CompleteTask delegates to agentID's inbox, transitions the agent back to
// idle, releases file locks, publishes task.completed, and runs the
// pending sweep.
func (r *Registry) CompleteTask(agentID string) (*domain.Task, error) {
	r.mu.Lock()
	a, ok := r.agentsByID[agentID]
	if !ok {
		r.mu.Unlock()
		return nil, brokerr.New(brokerr.NotFound, "unknown agent %q", agentID)
	}
	ib := r.inboxes[agentID]
	t, err := ib.CompleteCurrentTask()
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	a.Status = domain.AgentIdle
	a.CurrentTaskID = ""
	r.releaseLocksForTaskLocked(t.ID)
	if r.codes != nil {
		r.codes.UntrackTask(t.CodebaseID, t.ID)
	}
	r.mu.Unlock()

	r.publish("task.completed", map[string]any{"task_id": t.ID, "agent_id": agentID})
	r.sweepPending()
	return t, nil
}

func (r *Registry) releaseLocksForTaskLocked(taskID string) {
	for k, tid := range r.locks {
		if tid == taskID {
			delete(r.locks, k)
		}
	}
}

// UpdateTaskActivity publishes task.activity_updated; no state change.
func (r *Registry) UpdateTaskActivity(taskID, tool string, args map[string]any) {
	r.publish("task.activity_updated", map[string]any{"task_id": taskID, "tool": tool})
}

// sweepPending retries assignment for every pending task in order,
// per §4.2.3. Failing ones keep their relative order.
func (r *Registry) sweepPending() {
	r.mu.Lock()
	snapshot := r.pending
	r.pending = nil
	r.mu.Unlock()

	var stillPending []*domain.Task
	for _, t := range snapshot {
		r.mu.Lock()
		candidates := r.eligibleCandidatesLocked(t)
		if len(candidates) == 0 {
			r.mu.Unlock()
			stillPending = append(stillPending, t)
			continue
		}
		if r.fileConflictLocked(t) {
			r.mu.Unlock()
			stillPending = append(stillPending, t)
			continue
		}
		chosen := r.selectCandidateLocked(candidates, t)
		ib := r.inboxes[chosen.ID]
		ib.AddTask(t)
		chosen.Status = domain.AgentBusy
		chosen.CurrentTaskID = t.ID
		r.mu.Unlock()
		r.publish("task.assigned."+t.CodebaseID, map[string]any{"task_id": t.ID, "agent_id": chosen.ID})
	}

	r.mu.Lock()
	r.pending = append(stillPending, r.pending...)
	r.mu.Unlock()
}

// CreateCrossCodebaseTask implements §4.2.4: one main task in primary plus
// one dependent task per affected codebase, all submitted via AssignTask.
func (r *Registry) CreateCrossCodebaseTask(title, description, primary string, affected []string, strategy string) (*domain.Task, []*domain.Task, error) {
	main, _, err := r.CreateTask(title, description, primary, domain.PriorityNormal, nil, nil, nil)
	if err != nil {
		return nil, nil, err
	}

	var deps []*domain.Task
	var depIDs []string
	for _, cb := range affected {
		dep, _, derr := r.CreateTask(title+" (dependent)", description, cb, domain.PriorityNormal, nil, nil,
			[]domain.CrossCodebaseDependency{{CodebaseID: primary, TaskID: main.ID}})
		if derr != nil {
			continue
		}
		deps = append(deps, dep)
		depIDs = append(depIDs, dep.ID)
	}

	r.mu.Lock()
	r.crossDeps[main.ID] = depIDs
	r.mu.Unlock()

	r.publish("cross-codebase.task.created", map[string]any{"main_task_id": main.ID, "strategy": strategy})
	return main, deps, nil
}

// TaskByID looks up a task the registry knows about by id.
func (r *Registry) TaskByID(id string) (*domain.Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	return t, ok
}

// PendingTasks returns a snapshot of the global pending queue.
func (r *Registry) PendingTasks() []*domain.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*domain.Task(nil), r.pending...)
}

// InboxStatus exposes an agent's inbox status (for get_task_board).
func (r *Registry) InboxStatus(agentID string) (inbox.Status, bool) {
	r.mu.Lock()
	ib, ok := r.inboxes[agentID]
	r.mu.Unlock()
	if !ok {
		return inbox.Status{}, false
	}
	return ib.GetStatus(), true
}

// InboxTasks exposes an agent's inbox contents (for get_agent_task_history).
func (r *Registry) InboxTasks(agentID string) (pending []*domain.Task, inProgress *domain.Task, completed []*domain.Task, ok bool) {
	r.mu.Lock()
	ib, found := r.inboxes[agentID]
	r.mu.Unlock()
	if !found {
		return nil, nil, nil, false
	}
	p, ip, c := ib.ListTasks()
	return p, ip, c, true
}

// RegisterTaskSet adds multiple tasks directly to agentID's inbox, bypassing
// the assignment algorithm (spec.md §6 register_task_set: a driver agent
// pre-planning a batch of work for a specific worker).
func (r *Registry) RegisterTaskSet(agentID string, specs []TaskSpec) ([]*domain.Task, error) {
	r.mu.Lock()
	a, ok := r.agentsByID[agentID]
	if !ok {
		r.mu.Unlock()
		return nil, brokerr.New(brokerr.NotFound, "unknown agent %q", agentID)
	}
	ib := r.inboxes[agentID]
	now := r.now()
	var out []*domain.Task
	for _, s := range specs {
		t := &domain.Task{
			ID:          uuid.NewString(),
			Title:       s.Title,
			Description: s.Description,
			Status:      domain.TaskPending,
			Priority:    s.Priority,
			AgentID:     agentID,
			CodebaseID:  a.CodebaseID,
			FilePaths:   s.FilePaths,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		r.tasks[t.ID] = t
		ib.AddTask(t)
		out = append(out, t)
	}
	r.mu.Unlock()
	return out, nil
}

// TaskSpec is one entry of a register_task_set batch.
type TaskSpec struct {
	Title       string
	Description string
	Priority    domain.Priority
	FilePaths   []string
}
