// Package domain holds coordination entities shared by the registry,
// inbox, supervisor, and session layers. It has no dependencies on other
// internal packages.
package domain

import "time"

// AgentStatus is the lifecycle status of a registered agent.
type AgentStatus string

const (
	AgentIdle    AgentStatus = "idle"
	AgentBusy    AgentStatus = "busy"
	AgentOffline AgentStatus = "offline"
	AgentError   AgentStatus = "error"
)

// TaskStatus is the lifecycle status of a task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
	TaskBlocked    TaskStatus = "blocked"
)

// Priority orders task assignment; lower values are serviced sooner.
type Priority int

const (
	PriorityUrgent Priority = iota
	PriorityHigh
	PriorityNormal
	PriorityLow
)

// ParsePriority maps a free-form priority string to its rank, defaulting to normal.
func ParsePriority(s string) Priority {
	switch s {
	case "urgent":
		return PriorityUrgent
	case "high":
		return PriorityHigh
	case "low":
		return PriorityLow
	default:
		return PriorityNormal
	}
}

func (p Priority) String() string {
	switch p {
	case PriorityUrgent:
		return "urgent"
	case PriorityHigh:
		return "high"
	case PriorityLow:
		return "low"
	default:
		return "normal"
	}
}

// Agent is a registered AI client.
type Agent struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Capabilities     []string          `json:"capabilities,omitempty"`
	Status           AgentStatus       `json:"status"`
	CurrentTaskID    string            `json:"current_task_id,omitempty"`
	CodebaseID       string            `json:"codebase_id"`
	WorkspacePath    string            `json:"workspace_path,omitempty"`
	LastHeartbeat    time.Time         `json:"last_heartbeat"`
	CurrentActivity  string            `json:"current_activity,omitempty"`
	CurrentFiles     []string          `json:"current_files,omitempty"`
	ActivityHistory  []ActivityEntry   `json:"activity_history,omitempty"`
	Metadata         map[string]any    `json:"metadata,omitempty"`
	CrossCodebaseOK  bool              `json:"cross_codebase_capable"`
	registeredOrder  int               // insertion order, used for deterministic tie-breaks
}

// SetOrder records the insertion order used to break assignment ties deterministically.
func (a *Agent) SetOrder(n int) { a.registeredOrder = n }

// Order returns the agent's registration order.
func (a *Agent) Order() int { return a.registeredOrder }

// ActivityEntry is one entry in an agent's bounded activity ring.
type ActivityEntry struct {
	Tool      string    `json:"tool"`
	Summary   string    `json:"summary"`
	Files     []string  `json:"files,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// CrossCodebaseDependency links a task in one codebase to a task in another.
type CrossCodebaseDependency struct {
	CodebaseID string `json:"codebase_id"`
	TaskID     string `json:"task_id"`
}

// Task is a unit of work tracked by the registry.
type Task struct {
	ID                        string                     `json:"id"`
	Title                     string                     `json:"title"`
	Description               string                     `json:"description"`
	Status                    TaskStatus                 `json:"status"`
	Priority                  Priority                   `json:"priority"`
	AgentID                   string                     `json:"agent_id,omitempty"`
	CodebaseID                string                     `json:"codebase_id"`
	FilePaths                 []string                   `json:"file_paths,omitempty"`
	Dependencies              []string                   `json:"dependencies,omitempty"`
	CrossCodebaseDependencies []CrossCodebaseDependency  `json:"cross_codebase_dependencies,omitempty"`
	CreatedAt                 time.Time                  `json:"created_at"`
	UpdatedAt                 time.Time                  `json:"updated_at"`
	Metadata                  map[string]any             `json:"metadata,omitempty"`
	BlockedReason             string                     `json:"blocked_reason,omitempty"`
}

// RequiredCapabilities extracts metadata["required_capabilities"] as a string slice.
func (t *Task) RequiredCapabilities() []string {
	if t.Metadata == nil {
		return nil
	}
	raw, ok := t.Metadata["required_capabilities"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, x := range v {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Codebase is a logical project identity.
type Codebase struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	WorkspacePath string         `json:"workspace_path"`
	Agents        map[string]struct{}       `json:"-"`
	ActiveTasks   map[string]struct{}       `json:"-"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// NewCodebase returns a Codebase with its sets initialized.
func NewCodebase(id, name, workspacePath string) *Codebase {
	now := time.Now()
	return &Codebase{
		ID:            id,
		Name:          name,
		WorkspacePath: workspacePath,
		Agents:        make(map[string]struct{}),
		ActiveTasks:   make(map[string]struct{}),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// CodebaseDependency is a directed edge between two codebases.
type CodebaseDependency struct {
	Source    string         `json:"source"`
	Target    string         `json:"target"`
	Type      string         `json:"type"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// FileLock reserves a path within a codebase for the duration of a task.
type FileLock struct {
	CodebaseID string
	FilePath   string
	TaskID     string
}

// Session is an issued bearer token tied to an agent identity.
type Session struct {
	Token        string         `json:"token"`
	AgentID      string         `json:"agent_id"`
	CreatedAt    time.Time      `json:"created_at"`
	ExpiresAt    time.Time      `json:"expires_at"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	LastActivity time.Time      `json:"last_activity"`
}

// TransportKind is how an external MCP server is reached.
type TransportKind string

const (
	TransportStdio TransportKind = "stdio"
	TransportHTTP  TransportKind = "http"
)

// ExternalServer describes a supervised downstream MCP server child process.
// Tool metadata for a running child lives on supervisor.IndexedTool
// (mcp.Tool plus ServerName) rather than here, since mcp-go owns the
// tool shape end to end.
type ExternalServer struct {
	Name        string
	Transport   TransportKind
	Command     string
	Args        []string
	Env         map[string]string
	URL         string
	StartedAt   time.Time
	AutoRestart bool
}

// ConnectionType classifies the transport a client connected over.
type ConnectionType string

const (
	ConnLocal  ConnectionType = "local"
	ConnRemote ConnectionType = "remote"
	ConnWeb    ConnectionType = "web"
)

// SecurityLevel is the trust tier assigned to a ClientContext.
type SecurityLevel string

const (
	SecurityTrusted    SecurityLevel = "trusted"
	SecuritySandboxed  SecurityLevel = "sandboxed"
	SecurityRestricted SecurityLevel = "restricted"
)

// ClientContext is what the broker infers about a transport-level caller.
type ClientContext struct {
	ConnectionType ConnectionType
	SecurityLevel  SecurityLevel
	RemoteIP       string
	Origin         string
	UserAgent      string
	ClientInfo     map[string]any
	Capabilities   map[string]any
}

// IsOnline reports agent liveness per the 30s threshold (spec.md §8 property 6).
func IsOnline(a *Agent, now time.Time) bool {
	if a == nil {
		return false
	}
	return now.Sub(a.LastHeartbeat) < 30*time.Second
}
