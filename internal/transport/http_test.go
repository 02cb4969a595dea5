package transport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Rooba/AgentCoordinator-sub000/internal/session"
)

func TestHTTPServerHealth(t *testing.T) {
	s := NewHTTPServer(newTestDispatcher(), nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Header().Get("MCP-Protocol-Version") == "" {
		t.Error("expected MCP-Protocol-Version header on every response")
	}
}

func TestHTTPServerAgentsReturnsTaskBoard(t *testing.T) {
	s := NewHTTPServer(newTestDispatcher(), nil)
	req := httptest.NewRequest(http.MethodGet, "/agents", nil)
	req.RemoteAddr = "127.0.0.1:4000"
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", w.Code, w.Body.String())
	}
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := body["agents"]; !ok {
		t.Errorf("expected an agents field, got %+v", body)
	}
}

func TestHTTPServerMCPEndpointRejectsInvalidSession(t *testing.T) {
	sessions := session.NewManager(time.Minute)
	s := NewHTTPServer(newTestDispatcher(), sessions)
	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("MCP-Session-Id", "bogus-token")
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}
