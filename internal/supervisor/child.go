package supervisor

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Rooba/AgentCoordinator-sub000/internal/brokerr"
)

const clientName = "agent-coordinator-broker"

// child is a running (or restarting) downstream MCP server, reached over a
// mcp-go/client stdio transport rather than a hand-rolled exec.Cmd pipe.
// Grounded on vanducng-goclaw's internal/mcp/manager_connect.go: spawn via
// mcpclient.NewStdioMCPClient, handshake with Initialize, discover with
// ListTools, and watch client.OnConnectionLost instead of polling cmd.Wait.
type child struct {
	name   string
	cfg    ServerConfig
	logger *log.Logger

	// onLost is invoked from the client's connection-lost callback; the
	// supervisor sets this before start() to trigger its own restart logic
	// without child needing a reference back to the Supervisor.
	onLost func()

	mu    sync.Mutex
	cli   *client.Client
	tools []mcp.Tool
	alive bool
}

func newChild(name string, cfg ServerConfig, logger *log.Logger) *child {
	return &child{name: name, cfg: cfg, logger: logger}
}

// start spawns the child via a stdio MCP client, performs the initialize +
// tools/list handshake, and rewrites schemas. Failures are logged and leave
// the child with an empty tool set — they never abort the broker (spec.md
// §4.4 step 4, §8 invariant 10).
func (c *child) start(ctx context.Context) {
	envSlice := make([]string, 0, len(c.cfg.Env))
	for k, v := range c.cfg.Env {
		envSlice = append(envSlice, k+"="+v)
	}

	cli, err := client.NewStdioMCPClient(c.cfg.Command, envSlice, c.cfg.Args...)
	if err != nil {
		c.logger.Printf("supervisor[%s]: spawn failed: %v", c.name, err)
		return
	}

	initCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: clientName, Version: "1.0.0"}
	if _, err := cli.Initialize(initCtx, initReq); err != nil {
		c.logger.Printf("supervisor[%s]: initialize failed: %v (continuing with no tools)", c.name, err)
		_ = cli.Close()
		return
	}

	c.mu.Lock()
	c.cli = cli
	c.alive = true
	c.mu.Unlock()

	cli.OnConnectionLost(func(err error) {
		if c.onLost != nil {
			c.onLost()
		}
	})

	listCtx, listCancel := context.WithTimeout(ctx, discoveryTimeout)
	defer listCancel()
	result, err := cli.ListTools(listCtx, mcp.ListToolsRequest{})
	if err != nil {
		c.logger.Printf("supervisor[%s]: tools/list failed: %v (continuing with no tools)", c.name, err)
		return
	}
	c.setTools(result.Tools)
}

// setTools applies the agent_id schema rewrite and stores the result
// (spec.md §4.4 step 6).
func (c *child) setTools(raw []mcp.Tool) {
	c.mu.Lock()
	c.tools = rewriteSchemas(raw)
	c.mu.Unlock()
}

// rewriteSchemas injects a required "agent_id" string property into every
// discovered tool's input schema, so the advertised tool still requires the
// same argument every native tool does.
func rewriteSchemas(tools []mcp.Tool) []mcp.Tool {
	out := make([]mcp.Tool, len(tools))
	for i, t := range tools {
		if t.InputSchema.Properties == nil {
			t.InputSchema.Properties = map[string]any{}
		}
		t.InputSchema.Properties["agent_id"] = map[string]any{"type": "string"}

		hasAgentID := false
		for _, r := range t.InputSchema.Required {
			if r == "agent_id" {
				hasAgentID = true
				break
			}
		}
		if !hasAgentID {
			t.InputSchema.Required = append(t.InputSchema.Required, "agent_id")
		}
		out[i] = t
	}
	return out
}

func (c *child) markDead() {
	c.mu.Lock()
	c.alive = false
	cli := c.cli
	c.cli = nil
	c.mu.Unlock()
	if cli != nil {
		_ = cli.Close()
	}
}

func (c *child) isAlive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alive
}

func (c *child) currentTools() []mcp.Tool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]mcp.Tool(nil), c.tools...)
}

// callTool forwards a tools/call to this child over its mcp-go client,
// stripping agent_id first (spec.md §4.4 step 6: the dispatcher's external
// bridge forwards it along anyway, so the child strips it defensively too).
func (c *child) callTool(ctx context.Context, toolName string, args map[string]any, timeout time.Duration) (*mcp.CallToolResult, error) {
	forwarded := make(map[string]any, len(args))
	for k, v := range args {
		if k == "agent_id" {
			continue
		}
		forwarded[k] = v
	}

	c.mu.Lock()
	cli := c.cli
	c.mu.Unlock()
	if cli == nil {
		return nil, brokerr.New(brokerr.UpstreamError, "child %s: not running", c.name)
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req := mcp.CallToolRequest{}
	req.Params.Name = toolName
	req.Params.Arguments = forwarded
	result, err := cli.CallTool(callCtx, req)
	if err != nil {
		c.markDead()
		return nil, brokerr.Wrap(brokerr.UpstreamError, err, "child %s call %s", c.name, toolName)
	}
	return result, nil
}
