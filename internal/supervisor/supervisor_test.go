package supervisor

import (
	"context"
	"io"
	"log"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Rooba/AgentCoordinator-sub000/internal/brokerr"
	"github.com/Rooba/AgentCoordinator-sub000/internal/eventbus"
)

func discardLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func aliveChildWithTools(name string, tools ...mcp.Tool) *child {
	c := newChild(name, ServerConfig{}, discardLogger())
	c.alive = true
	c.tools = tools
	return c
}

func newTestSupervisor() *Supervisor {
	return &Supervisor{
		logger:   discardLogger(),
		bus:      eventbus.NoopBus{},
		children: make(map[string]*child),
		index:    make(map[string]string),
	}
}

func TestRebuildIndexFirstSeenWins(t *testing.T) {
	s := newTestSupervisor()
	s.children["fs-a"] = aliveChildWithTools("fs-a", mcp.Tool{Name: "read_file"})
	s.children["fs-b"] = aliveChildWithTools("fs-b", mcp.Tool{Name: "read_file"}, mcp.Tool{Name: "write_file"})
	s.rebuildIndex()

	s.mu.Lock()
	owner := s.index["read_file"]
	s.mu.Unlock()
	if owner != "fs-a" && owner != "fs-b" {
		t.Fatalf("read_file not indexed at all")
	}
	// Whichever of fs-a/fs-b was inserted first in map iteration order wins;
	// what matters is exactly one owner is recorded, not both.
	if _, ok := s.index["write_file"]; !ok {
		t.Error("expected write_file (no collision) to be indexed")
	}
}

func TestRebuildIndexSkipsDeadChildren(t *testing.T) {
	s := newTestSupervisor()
	dead := aliveChildWithTools("fs-a", mcp.Tool{Name: "read_file"})
	dead.alive = false
	s.children["fs-a"] = dead
	s.rebuildIndex()

	if _, ok := s.index["read_file"]; ok {
		t.Error("expected tools from a dead child to be excluded from the index")
	}
}

func TestToolsReturnsIndexedToolsTaggedWithServer(t *testing.T) {
	s := newTestSupervisor()
	s.children["fs-a"] = aliveChildWithTools("fs-a", mcp.Tool{Name: "read_file"})
	s.rebuildIndex()

	tools := s.Tools()
	if len(tools) != 1 || tools[0].Tool.Name != "read_file" || tools[0].ServerName != "fs-a" {
		t.Fatalf("got %+v, want one read_file tool owned by fs-a", tools)
	}
}

func TestCallToolUnknownToolNotFound(t *testing.T) {
	s := newTestSupervisor()
	_, err := s.CallTool(context.Background(), "nonexistent_tool", nil)
	if brokerr.KindOf(err) != brokerr.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestCallToolDeadServerIsUpstreamError(t *testing.T) {
	s := newTestSupervisor()
	dead := aliveChildWithTools("fs-a", mcp.Tool{Name: "read_file"})
	s.children["fs-a"] = dead
	s.rebuildIndex()
	dead.alive = false

	_, err := s.CallTool(context.Background(), "read_file", nil)
	if brokerr.KindOf(err) != brokerr.UpstreamError {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
}
