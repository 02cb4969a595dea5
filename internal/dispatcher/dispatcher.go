// Package dispatcher implements the Unified Dispatcher (spec.md §4.1,
// implicit from §6's surface): a server.MCPServer carrying the native tool
// table plus every tool discovered on the downstream supervisor, routed
// through one heartbeat-arming middleware and one tools/list visibility
// hook so native and external tools are indistinguishable to a caller.
//
// Grounded on the teacher's cmd/mcp-server/main.go (server.NewMCPServer +
// server.WithToolHandlerMiddleware + server.WithHooks wiring) and
// internal/tools/collab/piggyback.go (a ToolHandlerMiddleware wrapping
// every tool result with derived state). The dynamic external-tool bridge
// — mcp.Tool straight off the supervisor's index registered as a
// server.ServerTool whose handler forwards to the child — is grounded on
// the Kagenti MCP broker's toolToServerTool/AddTools/DeleteTools pattern.
package dispatcher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/Rooba/AgentCoordinator-sub000/internal/activity"
	"github.com/Rooba/AgentCoordinator-sub000/internal/brokerr"
	"github.com/Rooba/AgentCoordinator-sub000/internal/codebase"
	"github.com/Rooba/AgentCoordinator-sub000/internal/domain"
	"github.com/Rooba/AgentCoordinator-sub000/internal/notebook"
	"github.com/Rooba/AgentCoordinator-sub000/internal/registry"
	"github.com/Rooba/AgentCoordinator-sub000/internal/session"
	"github.com/Rooba/AgentCoordinator-sub000/internal/supervisor"
)

// Handler is a native tool's implementation: decoded arguments in, a result
// value (marshaled as the tool's text content) or typed error out.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Dispatcher owns the listening server.MCPServer and the native tool table.
type Dispatcher struct {
	registry *registry.Registry
	codes    *codebase.Registry
	sessions *session.Manager
	super    *supervisor.Supervisor
	notes    *notebook.Board
	now      func() time.Time

	mcpServer *server.MCPServer

	native      map[string]Handler
	toolDefs    map[string]mcp.Tool
	externalTools map[string]struct{} // tool names currently registered from the supervisor

	// onCall is invoked after every successful agent-scoped call, used to
	// re-arm the heartbeat scheduler's per-agent timer (spec.md §4.9).
	onCall func(agentID string)
}

// New builds a Dispatcher, its server.MCPServer, and registers the native
// and (if super is non-nil) external tool tables.
func New(reg *registry.Registry, codes *codebase.Registry, sessions *session.Manager, super *supervisor.Supervisor) *Dispatcher {
	d := &Dispatcher{
		registry:      reg,
		codes:         codes,
		sessions:      sessions,
		super:         super,
		notes:         notebook.New(),
		now:           time.Now,
		native:        make(map[string]Handler),
		toolDefs:      make(map[string]mcp.Tool),
		externalTools: make(map[string]struct{}),
	}

	hooks := &server.Hooks{}
	hooks.AddAfterListTools(d.filterListedTools)

	d.mcpServer = server.NewMCPServer(
		"agent-coordinator-broker", "1.0.0",
		server.WithInstructions("Multi-agent coordination broker: register agents, claim tasks, report heartbeats, and reach downstream MCP servers through one surface."),
		server.WithToolHandlerMiddleware(d.heartbeatMiddleware),
		server.WithHooks(hooks),
		server.WithToolCapabilities(true),
	)

	d.registerNativeTools()
	d.SyncExternalTools()
	return d
}

// Server returns the listening server.MCPServer, wired for a transport to
// serve over stdio or HTTP.
func (d *Dispatcher) Server() *server.MCPServer { return d.mcpServer }

// OnCall sets the callback invoked after every successful agent-scoped call.
func (d *Dispatcher) OnCall(fn func(agentID string)) { d.onCall = fn }

// addTool registers a native tool's schema and handler, wiring it into both
// the listening server.MCPServer and d.native for direct (test) calls.
func (d *Dispatcher) addTool(tool mcp.Tool, h Handler) {
	d.native[tool.Name] = h
	d.toolDefs[tool.Name] = tool
	d.mcpServer.AddTool(tool, d.nativeBridge(tool.Name))
}

// nativeBridge adapts a native Handler into a server.ToolHandlerFunc.
func (d *Dispatcher) nativeBridge(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if !d.permitted(ctx, name) {
			return nil, d.forbidden(ctx, name)
		}
		payload, err := d.native[name](ctx, req.GetArguments())
		if err != nil {
			return nil, err
		}
		return toolResultFor(payload)
	}
}

// externalBridge forwards a call to the supervisor's owning child with its
// arguments as given; the child's callTool strips the agent_id the schema
// requires callers to pass before the request reaches the downstream server
// (see internal/supervisor/child.go).
func (d *Dispatcher) externalBridge(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if !d.permitted(ctx, name) {
			return nil, d.forbidden(ctx, name)
		}
		return d.super.CallTool(ctx, name, req.GetArguments())
	}
}

func (d *Dispatcher) permitted(ctx context.Context, name string) bool {
	clientCtx, _ := ClientContextFrom(ctx)
	return session.Filter(clientCtx, name)
}

func (d *Dispatcher) forbidden(ctx context.Context, name string) error {
	clientCtx, _ := ClientContextFrom(ctx)
	return brokerr.New(brokerr.MethodNotFound, "tool %q is not permitted for connection_type=%s", name, clientCtx.ConnectionType)
}

// filterListedTools is the AfterListTools hook: it narrows tools/list to
// what ctx's ClientContext may see (spec.md §4.6 ToolFilter), grounded on
// the Kagenti MCP broker's hooks.AddAfterListTools(mcpBkr.FilteredTools).
func (d *Dispatcher) filterListedTools(ctx context.Context, id any, req *mcp.ListToolsRequest, result *mcp.ListToolsResult) {
	clientCtx, _ := ClientContextFrom(ctx)
	filtered := result.Tools[:0]
	for _, t := range result.Tools {
		if session.Filter(clientCtx, t.Name) {
			filtered = append(filtered, t)
		}
	}
	result.Tools = filtered
}

// SyncExternalTools reconciles the listening server's tool set against the
// supervisor's current index: newly discovered tools are registered as
// forwarding server.ServerTools, tools whose child disappeared are removed.
// Grounded on the Kagenti MCP broker's toolToServerTool/AddTools/DeleteTools
// reconciliation in response to a downstream tools/list_changed notification.
func (d *Dispatcher) SyncExternalTools() {
	if d.super == nil {
		return
	}
	indexed := d.super.Tools()
	seen := make(map[string]struct{}, len(indexed))

	var toAdd []server.ServerTool
	for _, it := range indexed {
		seen[it.Tool.Name] = struct{}{}
		if _, already := d.externalTools[it.Tool.Name]; already {
			continue
		}
		tool := it.Tool
		toAdd = append(toAdd, server.ServerTool{Tool: tool, Handler: d.externalBridge(tool.Name)})
		d.toolDefs[tool.Name] = tool
		d.externalTools[tool.Name] = struct{}{}
	}
	if len(toAdd) > 0 {
		d.mcpServer.AddTools(toAdd...)
	}

	var toRemove []string
	for name := range d.externalTools {
		if _, stillPresent := seen[name]; !stillPresent {
			toRemove = append(toRemove, name)
			delete(d.externalTools, name)
			delete(d.toolDefs, name)
		}
	}
	if len(toRemove) > 0 {
		d.mcpServer.DeleteTools(toRemove...)
	}
}

// heartbeatMiddleware arms the heartbeat scheduler and attaches
// `_heartbeat_metadata` to every agent-scoped call's result (spec.md §7).
// Shaped after the teacher's PiggybackMiddleware: call through, inspect the
// result, mutate its last text block, never touch error results.
func (d *Dispatcher) heartbeatMiddleware(next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := next(ctx, req)
		if err != nil || result == nil || result.IsError {
			return result, err
		}

		agentID, _ := req.GetArguments()["agent_id"].(string)
		if agentID == "" {
			return result, nil
		}

		d.applyActivity(agentID, req.Params.Name, req.GetArguments())
		if d.onCall != nil {
			d.onCall(agentID)
		}
		if meta := d.heartbeatMetadata(agentID); meta != nil {
			mergeMetadataIntoResult(result, meta)
		}
		return result, nil
	}
}

func (d *Dispatcher) applyActivity(agentID, toolName string, args map[string]any) {
	a, ok := d.registry.AgentByID(agentID)
	if !ok {
		return
	}
	activity.Apply(a, toolName, args, d.now())
}

// heartbeatMetadata builds the `_heartbeat_metadata` object merged into
// successful tools/call responses when an agent_id was present (spec.md §7).
func (d *Dispatcher) heartbeatMetadata(agentID string) map[string]any {
	a, ok := d.registry.AgentByID(agentID)
	if !ok {
		return nil
	}
	return map[string]any{
		"agent_id":       a.ID,
		"status":         string(a.Status),
		"is_online":      domain.IsOnline(a, d.now()),
		"last_heartbeat": a.LastHeartbeat,
	}
}

// mergeMetadataIntoResult finds the last JSON text block in result.Content
// and merges meta into it under "_heartbeat_metadata", mirroring the
// teacher's appendBannerToResult but merging structured JSON instead of
// appending a plain-text banner.
func mergeMetadataIntoResult(result *mcp.CallToolResult, meta map[string]any) {
	for i := len(result.Content) - 1; i >= 0; i-- {
		tc, ok := result.Content[i].(mcp.TextContent)
		if !ok {
			continue
		}
		var payload map[string]any
		if err := json.Unmarshal([]byte(tc.Text), &payload); err != nil {
			return
		}
		payload["_heartbeat_metadata"] = meta
		out, err := json.Marshal(payload)
		if err != nil {
			return
		}
		result.Content[i] = mcp.TextContent{Type: "text", Text: string(out)}
		return
	}
}

func toolResultFor(payload any) (*mcp.CallToolResult, error) {
	out, err := json.Marshal(payload)
	if err != nil {
		return nil, brokerr.Wrap(brokerr.Internal, err, "marshal tool result")
	}
	return mcp.NewToolResultText(string(out)), nil
}

// Result is Call's outcome: the payload decoded back out of the tool's text
// content plus the heartbeat metadata split back out of it, if any.
type Result struct {
	Payload           any
	HeartbeatMetadata map[string]any
}

// Call routes name with decoded args directly through the same middleware
// chain a transport would drive, without a JSON-RPC envelope — used by
// internal callers (the HTTP /agents endpoint, tests) that want a decoded
// Result rather than an mcp.CallToolResult.
func (d *Dispatcher) Call(ctx context.Context, name string, args map[string]any) (*Result, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	handler, ok := d.handlerFor(name)
	if !ok {
		return nil, brokerr.New(brokerr.MethodNotFound, "unknown tool %q", name)
	}

	result, err := d.heartbeatMiddleware(handler)(ctx, req)
	if err != nil {
		return nil, err
	}
	return decodeResult(result), nil
}

func (d *Dispatcher) handlerFor(name string) (server.ToolHandlerFunc, bool) {
	if _, ok := d.native[name]; ok {
		return d.nativeBridge(name), true
	}
	if _, ok := d.externalTools[name]; ok {
		return d.externalBridge(name), true
	}
	return nil, false
}

func decodeResult(result *mcp.CallToolResult) *Result {
	for _, c := range result.Content {
		tc, ok := c.(mcp.TextContent)
		if !ok {
			continue
		}
		var payload map[string]any
		if err := json.Unmarshal([]byte(tc.Text), &payload); err != nil {
			continue
		}
		meta, _ := payload["_heartbeat_metadata"].(map[string]any)
		delete(payload, "_heartbeat_metadata")
		return &Result{Payload: payload, HeartbeatMetadata: meta}
	}
	return &Result{}
}

// ListTools returns every tool visible to ctx's ClientContext (spec.md §8
// scenario S6), read from the dispatcher's own bookkeeping rather than
// mcp-go's internal registry so it stays usable outside a live protocol
// round-trip (tests).
func (d *Dispatcher) ListTools(ctx context.Context) []mcp.Tool {
	clientCtx, _ := ClientContextFrom(ctx)
	out := make([]mcp.Tool, 0, len(d.toolDefs))
	for name, t := range d.toolDefs {
		if !session.Filter(clientCtx, name) {
			continue
		}
		out = append(out, t)
	}
	return out
}

type ctxKey int

const clientContextKey ctxKey = 1

// WithClientContext attaches a domain.ClientContext to ctx for the
// dispatcher and filter to read back.
func WithClientContext(ctx context.Context, cc domain.ClientContext) context.Context {
	return context.WithValue(ctx, clientContextKey, cc)
}

// ClientContextFrom reads back the ClientContext attached by
// WithClientContext, defaulting to local/trusted when absent (e.g. direct
// in-process calls, tests).
func ClientContextFrom(ctx context.Context) (domain.ClientContext, bool) {
	cc, ok := ctx.Value(clientContextKey).(domain.ClientContext)
	if !ok {
		return domain.ClientContext{ConnectionType: domain.ConnLocal, SecurityLevel: domain.SecurityTrusted}, false
	}
	return cc, true
}
