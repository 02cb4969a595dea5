package dispatcher

import (
	"context"
	"testing"

	"github.com/Rooba/AgentCoordinator-sub000/internal/codebase"
	"github.com/Rooba/AgentCoordinator-sub000/internal/domain"
	"github.com/Rooba/AgentCoordinator-sub000/internal/eventbus"
	"github.com/Rooba/AgentCoordinator-sub000/internal/registry"
	"github.com/Rooba/AgentCoordinator-sub000/internal/session"
)

func newTestDispatcher() *Dispatcher {
	codes := codebase.NewRegistry()
	reg := registry.New(eventbus.NoopBus{}, codes)
	sessions := session.NewManager(0)
	return New(reg, codes, sessions, nil)
}

func mustCall(t *testing.T, d *Dispatcher, name string, args map[string]any) *Result {
	t.Helper()
	res, err := d.Call(context.Background(), name, args)
	if err != nil {
		t.Fatalf("Call(%q) unexpected error: %v", name, err)
	}
	return res
}

func TestCallUnknownToolReturnsMethodNotFound(t *testing.T) {
	d := newTestDispatcher()
	_, err := d.Call(context.Background(), "does_not_exist", nil)
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestCallRegisterAgentIssuesSessionToken(t *testing.T) {
	d := newTestDispatcher()
	res := mustCall(t, d, "register_agent", map[string]any{"name": "alice", "capabilities": []any{"go"}})
	payload, ok := res.Payload.(map[string]any)
	if !ok {
		t.Fatalf("payload type = %T, want map[string]any", res.Payload)
	}
	if payload["agent_id"] == "" {
		t.Error("expected a non-empty agent_id")
	}
	if payload["session_token"] == "" {
		t.Error("expected register_agent to mint a session token")
	}
}

func TestCallCreateTaskThenGetNextTaskThenCompleteTask(t *testing.T) {
	d := newTestDispatcher()
	reg := mustCall(t, d, "register_agent", map[string]any{"name": "alice", "capabilities": []any{"go"}})
	agentID := reg.Payload.(map[string]any)["agent_id"].(string)

	created := mustCall(t, d, "create_task", map[string]any{"title": "Fix bug", "description": "details"})
	taskPayload := created.Payload.(map[string]any)
	if taskPayload["assigned_to"] != agentID {
		t.Fatalf("expected task auto-assigned to the only idle agent %q, got %+v", agentID, taskPayload)
	}

	next := mustCall(t, d, "get_next_task", map[string]any{"agent_id": agentID})
	nextPayload := next.Payload.(map[string]any)
	if nextPayload["task_id"] != taskPayload["task_id"] {
		t.Fatalf("get_next_task returned %+v, want task_id %v", nextPayload, taskPayload["task_id"])
	}

	done := mustCall(t, d, "complete_task", map[string]any{"agent_id": agentID})
	donePayload := done.Payload.(map[string]any)
	if donePayload["status"] != "completed" {
		t.Fatalf("expected status=completed, got %+v", donePayload)
	}
}

func TestCallIncludesHeartbeatMetadataForAgentScopedCalls(t *testing.T) {
	d := newTestDispatcher()
	reg := mustCall(t, d, "register_agent", map[string]any{"name": "alice", "capabilities": []any{"go"}})
	agentID := reg.Payload.(map[string]any)["agent_id"].(string)

	res := mustCall(t, d, "heartbeat", map[string]any{"agent_id": agentID})
	if res.HeartbeatMetadata == nil {
		t.Fatal("expected non-nil heartbeat metadata for an agent-scoped call")
	}
	if res.HeartbeatMetadata["agent_id"] != agentID {
		t.Errorf("heartbeat metadata agent_id = %v, want %v", res.HeartbeatMetadata["agent_id"], agentID)
	}
}

func TestCallOnCallFiresOnlyForAgentScopedCalls(t *testing.T) {
	d := newTestDispatcher()
	var fired []string
	d.OnCall(func(agentID string) { fired = append(fired, agentID) })

	reg := mustCall(t, d, "register_agent", map[string]any{"name": "alice", "capabilities": []any{"go"}})
	agentID := reg.Payload.(map[string]any)["agent_id"].(string)
	if len(fired) != 0 {
		t.Fatalf("register_agent has no agent_id argument, onCall should not have fired yet, got %v", fired)
	}

	mustCall(t, d, "heartbeat", map[string]any{"agent_id": agentID})
	if len(fired) != 1 || fired[0] != agentID {
		t.Fatalf("expected onCall to fire once with %q, got %v", agentID, fired)
	}
}

func TestCallRestrictedClientDeniedCreateTask(t *testing.T) {
	d := newTestDispatcher()
	ctx := WithClientContext(context.Background(), domain.ClientContext{ConnectionType: domain.ConnRemote, SecurityLevel: domain.SecurityRestricted})
	_, err := d.Call(ctx, "create_task", map[string]any{"title": "x", "description": "y"})
	if err == nil {
		t.Fatal("expected restricted client to be denied create_task")
	}
}

func TestCallRestrictedClientAllowedGetTaskBoard(t *testing.T) {
	d := newTestDispatcher()
	ctx := WithClientContext(context.Background(), domain.ClientContext{ConnectionType: domain.ConnRemote, SecurityLevel: domain.SecurityRestricted})
	if _, err := d.Call(ctx, "get_task_board", nil); err != nil {
		t.Fatalf("expected restricted client to be allowed get_task_board, got %v", err)
	}
}

func TestCallRegisterAgentRejectsReservedName(t *testing.T) {
	d := newTestDispatcher()
	for _, name := range []string{"all", "ANY", "system", "default"} {
		if _, err := d.Call(context.Background(), "register_agent", map[string]any{"name": name}); err == nil {
			t.Errorf("expected register_agent(%q) to be rejected as a reserved name", name)
		}
	}
}

func TestCallNotebookToolsRememberPlanAndLookup(t *testing.T) {
	d := newTestDispatcher()
	reg := mustCall(t, d, "register_agent", map[string]any{"name": "alice", "capabilities": []any{"go"}})
	agentID := reg.Payload.(map[string]any)["agent_id"].(string)

	mustCall(t, d, "remember_note", map[string]any{"agent_id": agentID, "text": "file locks scope to (codebase, path)"})
	step := mustCall(t, d, "plan_step", map[string]any{"agent_id": agentID, "description": "audit inbox ordering"})
	if step.Payload.(map[string]any)["step_number"] != float64(1) {
		t.Fatalf("expected first plan_step to be numbered 1, got %+v", step.Payload)
	}

	lookup := mustCall(t, d, "lookup_docs", map[string]any{"query": "file locks"})
	results, ok := lookup.Payload.(map[string]any)["results"].([]any)
	if !ok || len(results) == 0 {
		t.Fatalf("expected lookup_docs to surface the recorded note, got %+v", lookup.Payload)
	}
}

func TestListToolsFiltersByClientContext(t *testing.T) {
	d := newTestDispatcher()
	trusted := d.ListTools(context.Background())
	restrictedCtx := WithClientContext(context.Background(), domain.ClientContext{ConnectionType: domain.ConnRemote, SecurityLevel: domain.SecurityRestricted})
	restricted := d.ListTools(restrictedCtx)

	if len(restricted) >= len(trusted) {
		t.Fatalf("expected restricted tool list (%d) to be smaller than trusted (%d)", len(restricted), len(trusted))
	}
	for _, tool := range restricted {
		if tool.Name == "create_task" {
			t.Error("create_task should not be visible to a restricted client")
		}
	}
}
