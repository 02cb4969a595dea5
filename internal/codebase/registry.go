package codebase

import (
	"sync"
	"time"

	"github.com/Rooba/AgentCoordinator-sub000/internal/brokerr"
	"github.com/Rooba/AgentCoordinator-sub000/internal/domain"
)

// Registry tracks known codebases and the dependency edges between them
// (spec.md §4.8). Single-writer via mu.
type Registry struct {
	mu     sync.Mutex
	byID   map[string]*domain.Codebase
	deps   []domain.CodebaseDependency
	now    func() time.Time
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]*domain.Codebase), now: time.Now}
}

// Register adds (or returns the existing) codebase for id. Idempotent: a
// second Register call with the same id is a no-op beyond updating name and
// workspacePath if they were previously empty.
func (r *Registry) Register(id, name, workspacePath string) *domain.Codebase {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.byID[id]; ok {
		if cb.Name == "" {
			cb.Name = name
		}
		if cb.WorkspacePath == "" {
			cb.WorkspacePath = workspacePath
		}
		return cb
	}
	cb := domain.NewCodebase(id, name, workspacePath)
	r.byID[id] = cb
	return cb
}

// Get returns the codebase for id, or (nil, false).
func (r *Registry) Get(id string) (*domain.Codebase, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cb, ok := r.byID[id]
	return cb, ok
}

// List returns a snapshot of all known codebases.
func (r *Registry) List() []*domain.Codebase {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Codebase, 0, len(r.byID))
	for _, cb := range r.byID {
		out = append(out, cb)
	}
	return out
}

// TrackAgent records that agentID is present in codebase id (materializing
// the codebase if unseen, with an empty name/path — discover_codebase_info
// or a later Register call fills those in).
func (r *Registry) TrackAgent(id, agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cb, ok := r.byID[id]
	if !ok {
		cb = domain.NewCodebase(id, "", "")
		r.byID[id] = cb
	}
	cb.Agents[agentID] = struct{}{}
}

// UntrackAgent removes agentID from codebase id's presence set.
func (r *Registry) UntrackAgent(id, agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok := r.byID[id]; ok {
		delete(cb.Agents, agentID)
	}
}

// TrackTask records taskID as active within codebase id.
func (r *Registry) TrackTask(id, taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cb, ok := r.byID[id]
	if !ok {
		cb = domain.NewCodebase(id, "", "")
		r.byID[id] = cb
	}
	cb.ActiveTasks[taskID] = struct{}{}
}

// UntrackTask removes taskID from codebase id's active-task set.
func (r *Registry) UntrackTask(id, taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok := r.byID[id]; ok {
		delete(cb.ActiveTasks, taskID)
	}
}

// AddDependency records a directed edge source -> target of the given type
// (e.g. "api_contract", "shared_library"; spec.md §4.2.4). Both ends must
// already be registered.
func (r *Registry) AddDependency(source, target, depType string, metadata map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[source]; !ok {
		return brokerr.New(brokerr.NotFound, "unknown source codebase %q", source)
	}
	if _, ok := r.byID[target]; !ok {
		return brokerr.New(brokerr.NotFound, "unknown target codebase %q", target)
	}
	r.deps = append(r.deps, domain.CodebaseDependency{
		Source: source, Target: target, Type: depType, Metadata: metadata, CreatedAt: r.now(),
	})
	return nil
}

// DependenciesOf returns every dependency edge whose source is id.
func (r *Registry) DependenciesOf(id string) []domain.CodebaseDependency {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.CodebaseDependency
	for _, d := range r.deps {
		if d.Source == id {
			out = append(out, d)
		}
	}
	return out
}

// SameCodebase reports whether a and b are the same codebase id.
func SameCodebase(a, b string) bool { return a == b }
