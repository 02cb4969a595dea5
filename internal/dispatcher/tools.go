package dispatcher

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Rooba/AgentCoordinator-sub000/internal/brokerr"
	"github.com/Rooba/AgentCoordinator-sub000/internal/codebase"
	"github.com/Rooba/AgentCoordinator-sub000/internal/domain"
	"github.com/Rooba/AgentCoordinator-sub000/internal/registry"
)

// registerNativeTools builds every native tool's mcp.Tool schema with the
// same mcp.NewTool/mcp.With* builders the teacher uses per tool
// (internal/tools/collab/tasks.go, messaging.go, agents.go), and wires each
// one to its handleX business-logic function via d.addTool.
func (d *Dispatcher) registerNativeTools() {
	d.addTool(mcp.NewTool("register_agent",
		mcp.WithDescription("Register a new coordination agent and mint a session token."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Agent display name; may not be a reserved name (all, any, system, default).")),
		mcp.WithArray("capabilities", mcp.Description("Capability tags this agent can claim tasks for.")),
		mcp.WithString("codebase_id", mcp.Description("Codebase to join, if known.")),
		mcp.WithString("workspace_path", mcp.Description("Workspace path, used to derive codebase_id when absent.")),
		mcp.WithBoolean("cross_codebase_capable", mcp.Description("Whether this agent can take cross-codebase tasks.")),
	), d.handleRegisterAgent)

	d.addTool(mcp.NewTool("unregister_agent",
		mcp.WithDescription("Unregister an agent; refused while the agent has an in-progress task unless forced."),
		mcp.WithString("agent_id", mcp.Required(), mcp.Description("Agent to unregister.")),
		mcp.WithString("reason", mcp.Description("Optional human-readable reason.")),
		mcp.WithBoolean("force", mcp.Description("Unregister even while busy, requeueing the in-progress task at the head of the pending queue.")),
	), d.handleUnregisterAgent)

	d.addTool(mcp.NewTool("heartbeat",
		mcp.WithDescription("Report agent liveness; re-arms the agent's heartbeat timeout."),
		mcp.WithString("agent_id", mcp.Required(), mcp.Description("Agent reporting in.")),
		mcp.WithString("progress", mcp.Description("Free-text progress note.")),
		mcp.WithNumber("step", mcp.Description("Current step number, if the agent is following a numbered plan.")),
		mcp.WithNumber("total_steps", mcp.Description("Total steps in the current plan, if known.")),
	), d.handleHeartbeat)

	d.addTool(mcp.NewTool("register_codebase",
		mcp.WithDescription("Register a codebase by workspace path."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Human-readable codebase name.")),
		mcp.WithString("workspace_path", mcp.Required(), mcp.Description("Filesystem path to the codebase's workspace root.")),
		mcp.WithString("id", mcp.Description("Explicit canonical id; derived via git remote/local identity when omitted.")),
	), d.handleRegisterCodebase)

	d.addTool(mcp.NewTool("list_codebases",
		mcp.WithDescription("List every known codebase with its agent and active-task counts."),
	), d.handleListCodebases)

	d.addTool(mcp.NewTool("get_codebase_status",
		mcp.WithDescription("Get one codebase's registered agents and active tasks."),
		mcp.WithString("codebase_id", mcp.Required(), mcp.Description("Codebase to inspect.")),
	), d.handleGetCodebaseStatus)

	d.addTool(mcp.NewTool("add_codebase_dependency",
		mcp.WithDescription("Add a directed dependency edge between two codebases."),
		mcp.WithString("source", mcp.Required(), mcp.Description("Dependent codebase id.")),
		mcp.WithString("target", mcp.Required(), mcp.Description("Depended-upon codebase id.")),
		mcp.WithString("type", mcp.Required(), mcp.Description("Dependency kind, e.g. build, runtime, data.")),
	), d.handleAddCodebaseDependency)

	d.addTool(mcp.NewTool("create_task",
		mcp.WithDescription("Create a task and, if an idle agent fits, assign it immediately."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Short task title.")),
		mcp.WithString("description", mcp.Required(), mcp.Description("Task details.")),
		mcp.WithString("codebase_id", mcp.Description("Codebase the task belongs to; defaults to local:default.")),
		mcp.WithString("priority", mcp.Enum("low", "normal", "high", "urgent"), mcp.Description("Task priority; defaults to normal.")),
		mcp.WithArray("file_paths", mcp.Description("Files this task is expected to touch, used for lock-conflict detection.")),
		mcp.WithArray("required_capabilities", mcp.Description("Capability tags an assignee must have.")),
	), d.handleCreateTask)

	d.addTool(mcp.NewTool("create_cross_codebase_task",
		mcp.WithDescription("Create a task spanning a primary codebase and one or more affected codebases."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Short task title.")),
		mcp.WithString("description", mcp.Required(), mcp.Description("Task details.")),
		mcp.WithString("primary_codebase_id", mcp.Required(), mcp.Description("Codebase that owns the main task.")),
		mcp.WithArray("affected_codebases", mcp.Required(), mcp.Description("Codebases that receive dependent tasks.")),
		mcp.WithString("coordination_strategy", mcp.Enum("sequential", "parallel"), mcp.Description("How dependent tasks are scheduled; defaults to sequential.")),
	), d.handleCreateCrossCodebaseTask)

	d.addTool(mcp.NewTool("create_agent_task",
		mcp.WithDescription("Create a task directly in a specific agent's inbox, bypassing assignment."),
		mcp.WithString("agent_id", mcp.Required(), mcp.Description("Agent to assign the task to.")),
		mcp.WithString("title", mcp.Required(), mcp.Description("Short task title.")),
		mcp.WithString("description", mcp.Required(), mcp.Description("Task details.")),
		mcp.WithString("priority", mcp.Enum("low", "normal", "high", "urgent"), mcp.Description("Task priority; defaults to normal.")),
		mcp.WithArray("file_paths", mcp.Description("Files this task is expected to touch.")),
	), d.handleCreateAgentTask)

	d.addTool(mcp.NewTool("register_task_set",
		mcp.WithDescription("Register a batch of tasks into one agent's inbox; the inbox orders them by priority, first-in first-out within a priority."),
		mcp.WithString("agent_id", mcp.Required(), mcp.Description("Agent whose inbox receives the batch.")),
		mcp.WithArray("task_set", mcp.Required(), mcp.Description("Array of {title, description, priority, file_paths} objects.")),
	), d.handleRegisterTaskSet)

	d.addTool(mcp.NewTool("get_next_task",
		mcp.WithDescription("Fetch and start the next queued task for an agent, by priority then insertion order."),
		mcp.WithString("agent_id", mcp.Required(), mcp.Description("Agent requesting its next task.")),
	), d.handleGetNextTask)

	d.addTool(mcp.NewTool("complete_task",
		mcp.WithDescription("Mark an agent's in-progress task completed and release its file locks."),
		mcp.WithString("agent_id", mcp.Required(), mcp.Description("Agent completing its current task.")),
	), d.handleCompleteTask)

	d.addTool(mcp.NewTool("get_task_board",
		mcp.WithDescription("Get a coordination-wide summary of every agent's status and pending/completed counts."),
		mcp.WithString("codebase_id", mcp.Description("Restrict the board to one codebase.")),
	), d.handleGetTaskBoard)

	d.addTool(mcp.NewTool("get_detailed_task_board",
		mcp.WithDescription("Get a per-agent task board, optionally including full task details."),
		mcp.WithString("codebase_id", mcp.Description("Restrict the board to one codebase.")),
		mcp.WithBoolean("include_task_details", mcp.Description("Include pending/in-progress/completed task summaries per agent.")),
	), d.handleGetDetailedTaskBoard)

	d.addTool(mcp.NewTool("get_agent_task_history",
		mcp.WithDescription("Get one agent's planned, in-progress, and completed tasks."),
		mcp.WithString("agent_id", mcp.Required(), mcp.Description("Agent to inspect.")),
		mcp.WithBoolean("include_planned", mcp.Description("Include the agent's pending queue.")),
		mcp.WithBoolean("include_completed", mcp.Description("Include the agent's completed tasks.")),
	), d.handleGetAgentTaskHistory)

	d.addTool(mcp.NewTool("discover_codebase_info",
		mcp.WithDescription("Derive a workspace path's canonical codebase identity via git remote, git local, or folder name."),
		mcp.WithString("workspace_path", mcp.Required(), mcp.Description("Filesystem path to inspect.")),
		mcp.WithString("custom_id", mcp.Description("Override the derived id.")),
	), d.handleDiscoverCodebaseInfo)

	d.addTool(mcp.NewTool("remember_note",
		mcp.WithDescription("Record a free-text note in the shared coordination notebook."),
		mcp.WithString("agent_id", mcp.Required(), mcp.Description("Agent recording the note.")),
		mcp.WithString("text", mcp.Required(), mcp.Description("Note text.")),
		mcp.WithArray("tags", mcp.Description("Tags for later filtering.")),
	), d.handleRememberNote)

	d.addTool(mcp.NewTool("plan_step",
		mcp.WithDescription("Append the next step to the shared sequential plan log."),
		mcp.WithString("agent_id", mcp.Required(), mcp.Description("Agent recording the step.")),
		mcp.WithString("description", mcp.Required(), mcp.Description("Step description.")),
	), d.handlePlanStep)

	d.addTool(mcp.NewTool("lookup_docs",
		mcp.WithDescription("Search built-in docs and recorded notes for a query."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search text.")),
	), d.handleLookupDocs)
}

// reservedAgentNames blocks register_agent calls from claiming a broadcast
// or wildcard identity, grounded on the teacher's reserved-name check on
// "all"/"any"/"system" (extended here with "default", the synthetic
// codebase id's reserved name).
var reservedAgentNames = map[string]struct{}{
	"all":     {},
	"any":     {},
	"system":  {},
	"default": {},
}

func requireString(args map[string]any, key string) (string, error) {
	v, ok := args[key].(string)
	if !ok || v == "" {
		if key == "agent_id" {
			return "", brokerr.New(brokerr.BadRequest, "missing required field %q; call register_agent first", key)
		}
		return "", brokerr.New(brokerr.BadRequest, "missing required field %q", key)
	}
	return v, nil
}

func optString(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func optBool(args map[string]any, key string) bool {
	v, _ := args[key].(bool)
	return v
}

func stringSlice(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, x := range t {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func (d *Dispatcher) handleRegisterAgent(ctx context.Context, args map[string]any) (any, error) {
	name, err := requireString(args, "name")
	if err != nil {
		return nil, err
	}
	if _, reserved := reservedAgentNames[strings.ToLower(name)]; reserved {
		return nil, brokerr.New(brokerr.BadRequest, "agent name %q is reserved", name)
	}
	caps := stringSlice(args["capabilities"])
	codebaseID := optString(args, "codebase_id")
	workspacePath := optString(args, "workspace_path")
	crossOK := optBool(args, "cross_codebase_capable")
	metadata, _ := args["metadata"].(map[string]any)

	a, err := d.registry.RegisterAgent(name, caps, codebaseID, workspacePath, crossOK, metadata)
	if err != nil {
		return nil, err
	}

	result := map[string]any{
		"agent_id":    a.ID,
		"codebase_id": a.CodebaseID,
		"status":      "registered",
	}
	if d.sessions != nil {
		s, serr := d.sessions.CreateSession(a.ID, map[string]any{"name": a.Name})
		if serr == nil {
			result["session_token"] = s.Token
			result["expires_at"] = s.ExpiresAt
		}
	}
	return result, nil
}

func (d *Dispatcher) handleUnregisterAgent(ctx context.Context, args map[string]any) (any, error) {
	agentID, err := requireString(args, "agent_id")
	if err != nil {
		return nil, err
	}
	reason := optString(args, "reason")
	force := optBool(args, "force")
	if err := d.registry.Unregister(agentID, reason, force); err != nil {
		return nil, err
	}
	return map[string]any{"status": "agent_unregistered", "agent_id": agentID}, nil
}

func (d *Dispatcher) handleHeartbeat(ctx context.Context, args map[string]any) (any, error) {
	agentID, err := requireString(args, "agent_id")
	if err != nil {
		return nil, err
	}
	if err := d.registry.Heartbeat(agentID); err != nil {
		return nil, err
	}
	return map[string]any{"status": "heartbeat_received"}, nil
}

func (d *Dispatcher) handleRegisterCodebase(ctx context.Context, args map[string]any) (any, error) {
	name, err := requireString(args, "name")
	if err != nil {
		return nil, err
	}
	workspacePath, err := requireString(args, "workspace_path")
	if err != nil {
		return nil, err
	}
	id := optString(args, "id")
	if id == "" {
		id = codebase.Identify(workspacePath)
	}
	cb := d.codes.Register(id, name, workspacePath)
	return map[string]any{"codebase_id": cb.ID, "name": cb.Name, "workspace_path": cb.WorkspacePath}, nil
}

func (d *Dispatcher) handleListCodebases(ctx context.Context, args map[string]any) (any, error) {
	list := d.codes.List()
	out := make([]map[string]any, 0, len(list))
	for _, cb := range list {
		out = append(out, map[string]any{
			"codebase_id":       cb.ID,
			"name":              cb.Name,
			"agent_count":       len(cb.Agents),
			"active_task_count": len(cb.ActiveTasks),
		})
	}
	return map[string]any{"codebases": out}, nil
}

func (d *Dispatcher) handleGetCodebaseStatus(ctx context.Context, args map[string]any) (any, error) {
	id, err := requireString(args, "codebase_id")
	if err != nil {
		return nil, err
	}
	cb, ok := d.codes.Get(id)
	if !ok {
		return nil, brokerr.New(brokerr.NotFound, "unknown codebase %q", id)
	}
	agents := make([]string, 0, len(cb.Agents))
	for a := range cb.Agents {
		agents = append(agents, a)
	}
	tasks := make([]string, 0, len(cb.ActiveTasks))
	for t := range cb.ActiveTasks {
		tasks = append(tasks, t)
	}
	return map[string]any{"codebase_id": cb.ID, "name": cb.Name, "agents": agents, "active_tasks": tasks}, nil
}

func (d *Dispatcher) handleAddCodebaseDependency(ctx context.Context, args map[string]any) (any, error) {
	source, err := requireString(args, "source")
	if err != nil {
		return nil, err
	}
	target, err := requireString(args, "target")
	if err != nil {
		return nil, err
	}
	depType, err := requireString(args, "type")
	if err != nil {
		return nil, err
	}
	metadata, _ := args["metadata"].(map[string]any)
	if err := d.codes.AddDependency(source, target, depType, metadata); err != nil {
		return nil, err
	}
	return map[string]any{"status": "dependency_added", "source": source, "target": target}, nil
}

func (d *Dispatcher) handleCreateTask(ctx context.Context, args map[string]any) (any, error) {
	title, err := requireString(args, "title")
	if err != nil {
		return nil, err
	}
	description, err := requireString(args, "description")
	if err != nil {
		return nil, err
	}
	codebaseID := optString(args, "codebase_id")
	if codebaseID == "" {
		codebaseID = "local:default"
	}
	priority := domain.ParsePriority(optString(args, "priority"))
	filePaths := stringSlice(args["file_paths"])
	requiredCaps := stringSlice(args["required_capabilities"])

	t, status, err := d.registry.CreateTask(title, description, codebaseID, priority, filePaths, requiredCaps, nil)
	if err != nil {
		return nil, err
	}
	result := map[string]any{"task_id": t.ID, "status": status, "codebase_id": t.CodebaseID}
	if t.AgentID != "" {
		result["assigned_to"] = t.AgentID
	}
	return result, nil
}

func (d *Dispatcher) handleCreateCrossCodebaseTask(ctx context.Context, args map[string]any) (any, error) {
	title, err := requireString(args, "title")
	if err != nil {
		return nil, err
	}
	description, err := requireString(args, "description")
	if err != nil {
		return nil, err
	}
	primary, err := requireString(args, "primary_codebase_id")
	if err != nil {
		return nil, err
	}
	affected := stringSlice(args["affected_codebases"])
	strategy := optString(args, "coordination_strategy")
	if strategy == "" {
		strategy = "sequential"
	}

	main, deps, err := d.registry.CreateCrossCodebaseTask(title, description, primary, affected, strategy)
	if err != nil {
		return nil, err
	}
	depIDs := make([]string, 0, len(deps))
	for _, dep := range deps {
		depIDs = append(depIDs, dep.ID)
	}
	return map[string]any{"main_task_id": main.ID, "dependent_task_ids": depIDs, "strategy": strategy}, nil
}

func (d *Dispatcher) handleCreateAgentTask(ctx context.Context, args map[string]any) (any, error) {
	agentID, err := requireString(args, "agent_id")
	if err != nil {
		return nil, err
	}
	title, err := requireString(args, "title")
	if err != nil {
		return nil, err
	}
	description, err := requireString(args, "description")
	if err != nil {
		return nil, err
	}
	priority := domain.ParsePriority(optString(args, "priority"))
	filePaths := stringSlice(args["file_paths"])

	if _, ok := d.registry.AgentByID(agentID); !ok {
		return nil, brokerr.New(brokerr.NotFound, "unknown agent %q", agentID)
	}
	tasks, err := d.registry.RegisterTaskSet(agentID, []registry.TaskSpec{
		{Title: title, Description: description, Priority: priority, FilePaths: filePaths},
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"task_id": tasks[0].ID, "status": "assigned", "assigned_to": agentID}, nil
}

func (d *Dispatcher) handleRegisterTaskSet(ctx context.Context, args map[string]any) (any, error) {
	agentID, err := requireString(args, "agent_id")
	if err != nil {
		return nil, err
	}
	raw, _ := args["task_set"].([]any)
	specs := make([]registry.TaskSpec, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		specs = append(specs, registry.TaskSpec{
			Title:       optString(m, "title"),
			Description: optString(m, "description"),
			Priority:    domain.ParsePriority(optString(m, "priority")),
			FilePaths:   stringSlice(m["file_paths"]),
		})
	}
	tasks, err := d.registry.RegisterTaskSet(agentID, specs)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	return map[string]any{"status": "task_set_registered", "task_ids": ids}, nil
}

func (d *Dispatcher) handleGetNextTask(ctx context.Context, args map[string]any) (any, error) {
	agentID, err := requireString(args, "agent_id")
	if err != nil {
		return nil, err
	}
	t, err := d.registry.GetNextTask(agentID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return map[string]any{"message": "No tasks available"}, nil
	}
	return map[string]any{
		"task_id":     t.ID,
		"title":       t.Title,
		"description": t.Description,
		"priority":    t.Priority.String(),
		"file_paths":  t.FilePaths,
	}, nil
}

func (d *Dispatcher) handleCompleteTask(ctx context.Context, args map[string]any) (any, error) {
	agentID, err := requireString(args, "agent_id")
	if err != nil {
		return nil, err
	}
	t, err := d.registry.CompleteTask(agentID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"task_id": t.ID, "status": "completed"}, nil
}

func (d *Dispatcher) handleGetTaskBoard(ctx context.Context, args map[string]any) (any, error) {
	codebaseID := optString(args, "codebase_id")
	agents := d.registry.Agents()
	board := make([]map[string]any, 0, len(agents))
	for _, a := range agents {
		if codebaseID != "" && a.CodebaseID != codebaseID {
			continue
		}
		st, _ := d.registry.InboxStatus(a.ID)
		board = append(board, map[string]any{
			"agent_id":  a.ID,
			"name":      a.Name,
			"status":    string(a.Status),
			"pending":   st.PendingCount,
			"completed": st.CompletedCount,
		})
	}
	return map[string]any{"agents": board, "pending_tasks": len(d.registry.PendingTasks())}, nil
}

func (d *Dispatcher) handleGetDetailedTaskBoard(ctx context.Context, args map[string]any) (any, error) {
	codebaseID := optString(args, "codebase_id")
	includeDetails := optBool(args, "include_task_details")
	agents := d.registry.Agents()
	board := make([]map[string]any, 0, len(agents))
	for _, a := range agents {
		if codebaseID != "" && a.CodebaseID != codebaseID {
			continue
		}
		entry := map[string]any{"agent_id": a.ID, "name": a.Name, "status": string(a.Status)}
		if includeDetails {
			pending, inProgress, completed, _ := d.registry.InboxTasks(a.ID)
			entry["pending_tasks"] = summarizeTasks(pending)
			entry["completed_tasks"] = summarizeTasks(completed)
			if inProgress != nil {
				entry["in_progress_task"] = summarizeTask(inProgress)
			}
		}
		board = append(board, entry)
	}
	return map[string]any{"agents": board}, nil
}

func (d *Dispatcher) handleGetAgentTaskHistory(ctx context.Context, args map[string]any) (any, error) {
	agentID, err := requireString(args, "agent_id")
	if err != nil {
		return nil, err
	}
	includePlanned := optBool(args, "include_planned")
	includeCompleted := optBool(args, "include_completed")
	pending, inProgress, completed, ok := d.registry.InboxTasks(agentID)
	if !ok {
		return nil, brokerr.New(brokerr.NotFound, "unknown agent %q", agentID)
	}
	out := map[string]any{}
	if includePlanned {
		out["planned"] = summarizeTasks(pending)
	}
	if inProgress != nil {
		out["in_progress"] = summarizeTask(inProgress)
	}
	if includeCompleted {
		out["completed"] = summarizeTasks(completed)
	}
	return out, nil
}

func (d *Dispatcher) handleDiscoverCodebaseInfo(ctx context.Context, args map[string]any) (any, error) {
	workspacePath, err := requireString(args, "workspace_path")
	if err != nil {
		return nil, err
	}
	customID := optString(args, "custom_id")
	id := customID
	method := "custom"
	if id == "" {
		id = codebase.Identify(workspacePath)
		method = identifyMethod(id)
	}
	return map[string]any{
		"canonical_id":   id,
		"workspace_path": workspacePath,
		"branch":         codebase.CurrentBranch(workspacePath),
		"commit_hash":    codebase.CurrentCommit(workspacePath),
		"method":         method,
	}, nil
}

func (d *Dispatcher) handleRememberNote(ctx context.Context, args map[string]any) (any, error) {
	agentID, err := requireString(args, "agent_id")
	if err != nil {
		return nil, err
	}
	text, err := requireString(args, "text")
	if err != nil {
		return nil, err
	}
	tags := stringSlice(args["tags"])
	n := d.notes.RememberNote(agentID, text, tags, d.now())
	return map[string]any{"status": "note_recorded", "created_at": n.CreatedAt}, nil
}

func (d *Dispatcher) handlePlanStep(ctx context.Context, args map[string]any) (any, error) {
	agentID, err := requireString(args, "agent_id")
	if err != nil {
		return nil, err
	}
	description, err := requireString(args, "description")
	if err != nil {
		return nil, err
	}
	step := d.notes.PlanStep(agentID, description, d.now())
	return map[string]any{"status": "step_recorded", "step_number": step.StepNumber}, nil
}

func (d *Dispatcher) handleLookupDocs(ctx context.Context, args map[string]any) (any, error) {
	query, err := requireString(args, "query")
	if err != nil {
		return nil, err
	}
	return map[string]any{"results": d.notes.LookupDocs(query)}, nil
}

func identifyMethod(id string) string {
	switch {
	case len(id) >= 5 && id[:5] == "repo:":
		return "git_remote"
	case len(id) >= 10 && id[:10] == "git-local:":
		return "git_local"
	default:
		return "folder_name"
	}
}

func summarizeTask(t *domain.Task) map[string]any {
	if t == nil {
		return nil
	}
	return map[string]any{
		"task_id":    t.ID,
		"title":      t.Title,
		"status":     string(t.Status),
		"priority":   t.Priority.String(),
		"file_paths": t.FilePaths,
		"created_at": t.CreatedAt,
	}
}

func summarizeTasks(tasks []*domain.Task) []map[string]any {
	out := make([]map[string]any, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, summarizeTask(t))
	}
	return out
}
