package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/Rooba/AgentCoordinator-sub000/internal/codebase"
	"github.com/Rooba/AgentCoordinator-sub000/internal/dispatcher"
	"github.com/Rooba/AgentCoordinator-sub000/internal/eventbus"
	"github.com/Rooba/AgentCoordinator-sub000/internal/registry"
	"github.com/Rooba/AgentCoordinator-sub000/internal/session"
)

func newTestDispatcher() *dispatcher.Dispatcher {
	codes := codebase.NewRegistry()
	reg := registry.New(eventbus.NoopBus{}, codes)
	sessions := session.NewManager(0)
	return dispatcher.New(reg, codes, sessions, nil)
}

const initializeLine = `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"test","version":"1.0"}}}`

func TestServeStdioRespondsToInitialize(t *testing.T) {
	in := strings.NewReader(initializeLine + "\n")
	var out bytes.Buffer
	if err := ServeStdio(context.Background(), newTestDispatcher(), in, &out); err != nil {
		t.Fatalf("ServeStdio: %v", err)
	}

	var resp map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(out.Bytes()), &resp); err != nil {
		t.Fatalf("unmarshal response: %v, body=%q", err, out.String())
	}
	if resp["error"] != nil {
		t.Errorf("expected no error on initialize, got %+v", resp["error"])
	}
	result, ok := resp["result"].(map[string]any)
	if !ok || result["protocolVersion"] == nil {
		t.Errorf("expected a protocolVersion in the initialize result, got %+v", resp["result"])
	}
}

func TestServeStdioToolsListIncludesNativeTools(t *testing.T) {
	in := strings.NewReader(initializeLine + "\n" +
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}` + "\n")
	var out bytes.Buffer
	if err := ServeStdio(context.Background(), newTestDispatcher(), in, &out); err != nil {
		t.Fatalf("ServeStdio: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d response lines, want 2: %q", len(lines), out.String())
	}
	var resp map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &resp); err != nil {
		t.Fatalf("unmarshal tools/list response: %v", err)
	}
	result, ok := resp["result"].(map[string]any)
	if !ok {
		t.Fatalf("expected a result object, got %+v", resp)
	}
	tools, ok := result["tools"].([]any)
	if !ok || len(tools) == 0 {
		t.Fatalf("expected a non-empty tool list, got %+v", result["tools"])
	}
}

func TestServeStdioMalformedJSONYieldsParseError(t *testing.T) {
	in := strings.NewReader(`{not json` + "\n")
	var out bytes.Buffer
	if err := ServeStdio(context.Background(), newTestDispatcher(), in, &out); err != nil {
		t.Fatalf("ServeStdio: %v", err)
	}
	var resp map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(out.Bytes()), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["error"] == nil {
		t.Error("expected a parse error response for malformed JSON")
	}
}
