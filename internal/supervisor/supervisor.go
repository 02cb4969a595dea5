package supervisor

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Rooba/AgentCoordinator-sub000/internal/brokerr"
	"github.com/Rooba/AgentCoordinator-sub000/internal/eventbus"
)

const (
	discoveryTimeout = 5 * time.Second
	callTimeout      = 30 * time.Second
	restartDelay     = 1 * time.Second
)

// IndexedTool is one entry of the flat external tool index (spec.md §4.5).
type IndexedTool struct {
	Tool       mcp.Tool
	ServerName string
}

// Supervisor owns every configured downstream server's mcp-go client and
// the derived tool_name -> server_name index. Single-writer via mu.
type Supervisor struct {
	logger *log.Logger
	bus    eventbus.Bus

	mu       sync.Mutex
	children map[string]*child
	index    map[string]string // tool name -> server name, first-seen wins
	limiter  *rate.Limiter     // bounds restart attempts across all children
}

// New builds a Supervisor from a loaded FileConfig and starts every
// configured server.
func New(ctx context.Context, cfg *FileConfig, logger *log.Logger, bus eventbus.Bus) *Supervisor {
	if bus == nil {
		bus = eventbus.NoopBus{}
	}
	s := &Supervisor{
		logger:   logger,
		bus:      bus,
		children: make(map[string]*child),
		index:    make(map[string]string),
		limiter:  rate.NewLimiter(rate.Every(restartDelay), 1),
	}
	for name, sc := range cfg.Servers {
		s.addServer(ctx, name, sc)
	}
	return s
}

func (s *Supervisor) addServer(ctx context.Context, name string, sc ServerConfig) {
	if sc.Type == TypeHTTP {
		// HTTP type is recognized but a no-op for tool discovery (spec.md §4.4).
		s.logger.Printf("supervisor: %s is type=http, interface reserved, skipping discovery", name)
		return
	}
	c := newChild(name, sc, s.logger)
	c.onLost = func() { s.handleChildLost(ctx, name) }
	s.mu.Lock()
	s.children[name] = c
	s.mu.Unlock()

	c.start(ctx)
	s.rebuildIndex()
	if !c.isAlive() && sc.AutoRestart {
		go s.monitorAndRestart(ctx, name)
	}
}

// handleChildLost runs when a child's mcp-go client reports its connection
// lost (OnConnectionLost), replacing the old watchForExit's cmd.Wait poll
// loop — grounded on the Kagenti MCP broker's OnConnectionLost handler.
func (s *Supervisor) handleChildLost(ctx context.Context, name string) {
	s.mu.Lock()
	c, ok := s.children[name]
	s.mu.Unlock()
	if !ok {
		return
	}
	c.markDead()
	s.rebuildIndex()
	s.bus.Publish("downstream.child.exited", map[string]any{"server": name})

	if c.cfg.AutoRestart {
		go s.monitorAndRestart(ctx, name)
	}
}

func (s *Supervisor) monitorAndRestart(ctx context.Context, name string) {
	_ = s.limiter.Wait(ctx)
	s.mu.Lock()
	c, ok := s.children[name]
	s.mu.Unlock()
	if !ok {
		return
	}
	c.start(ctx)
	s.rebuildIndex()
	if !c.isAlive() && c.cfg.AutoRestart {
		go s.monitorAndRestart(ctx, name)
	}
}

// rebuildIndex recomputes the flat tool_name -> server_name map across every
// alive child, first-seen wins on collision (spec.md §4.4).
func (s *Supervisor) rebuildIndex() {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := make(map[string]string)
	for name, c := range s.children {
		if !c.isAlive() {
			continue
		}
		for _, t := range c.currentTools() {
			if _, exists := idx[t.Name]; exists {
				s.logger.Printf("supervisor: tool %q already served by %q, ignoring duplicate from %q", t.Name, idx[t.Name], name)
				continue
			}
			idx[t.Name] = name
		}
	}
	s.index = idx
}

// RefreshTools re-runs discovery on every alive child and rebuilds the map.
func (s *Supervisor) RefreshTools(ctx context.Context) {
	s.mu.Lock()
	names := make([]string, 0, len(s.children))
	for n := range s.children {
		names = append(names, n)
	}
	s.mu.Unlock()

	for _, name := range names {
		s.mu.Lock()
		c := s.children[name]
		s.mu.Unlock()
		if c == nil || !c.isAlive() {
			continue
		}
		c.mu.Lock()
		cli := c.cli
		c.mu.Unlock()
		if cli == nil {
			continue
		}
		listCtx, cancel := context.WithTimeout(ctx, discoveryTimeout)
		result, err := cli.ListTools(listCtx, mcp.ListToolsRequest{})
		cancel()
		if err != nil {
			s.logger.Printf("supervisor: refresh %s failed: %v", name, err)
			continue
		}
		c.setTools(result.Tools)
	}
	s.rebuildIndex()
}

// Tools returns the flat external tool index, each tagged with its owning
// server.
func (s *Supervisor) Tools() []IndexedTool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]IndexedTool, 0, len(s.index))
	for toolName, serverName := range s.index {
		c := s.children[serverName]
		if c == nil {
			continue
		}
		for _, t := range c.currentTools() {
			if t.Name == toolName {
				out = append(out, IndexedTool{Tool: t, ServerName: serverName})
				break
			}
		}
	}
	return out
}

// CallTool routes a call to toolName's owning server. Any failure is a
// structured error, never fatal to the supervisor (spec.md §4.4).
func (s *Supervisor) CallTool(ctx context.Context, toolName string, args map[string]any) (*mcp.CallToolResult, error) {
	s.mu.Lock()
	serverName, ok := s.index[toolName]
	s.mu.Unlock()
	if !ok {
		return nil, brokerr.New(brokerr.NotFound, "no downstream server serves tool %q", toolName)
	}
	s.mu.Lock()
	c := s.children[serverName]
	s.mu.Unlock()
	if c == nil || !c.isAlive() {
		return nil, brokerr.New(brokerr.UpstreamError, "server %q is not running", serverName)
	}
	return c.callTool(ctx, toolName, args, callTimeout)
}

// Close stops every running child's mcp-go client, which in turn tears down
// the underlying subprocess.
func (s *Supervisor) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.children {
		c.mu.Lock()
		cli := c.cli
		c.mu.Unlock()
		if cli != nil {
			_ = cli.Close()
		}
	}
}
