package transport

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/Rooba/AgentCoordinator-sub000/internal/dispatcher"
	"github.com/Rooba/AgentCoordinator-sub000/internal/session"
)

// NewHTTPServer builds the broker's HTTP surface (spec.md §6): mcp-go's own
// SSE and Streamable HTTP endpoints carry the MCP protocol itself (grounded
// on the teacher's runHTTPServer mounting server.NewSSEServer +
// server.NewStreamableHTTPServer on one mux); /health and /agents are plain
// REST routes for operators and dashboards, same as the teacher's.
func NewHTTPServer(d *dispatcher.Dispatcher, sessions *session.Manager) http.Handler {
	mux := http.NewServeMux()

	sseSrv := server.NewSSEServer(d.Server())
	streamSrv := server.NewStreamableHTTPServer(d.Server())

	mux.Handle("/sse", withClientContext(sessions, sseSrv))
	mux.Handle("/message", withClientContext(sessions, sseSrv))
	mux.Handle("/mcp", withClientContext(sessions, streamSrv))

	mux.HandleFunc("/health", handleHealth)
	mux.HandleFunc("/agents", handleAgents(d, sessions))

	return withProtocolHeader(mux)
}

func withProtocolHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("MCP-Protocol-Version", mcp.LATEST_PROTOCOL_VERSION)
		w.Header().Set("Server", "agent-coordinator-broker")
		next.ServeHTTP(w, r)
	})
}

// withClientContext classifies the request (spec.md §4.5), validates an
// optional MCP-Session-Id header against the broker's own session.Manager,
// and attaches the resulting ClientContext before delegating to next.
func withClientContext(sessions *session.Manager, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := r.Header.Get("MCP-Session-Id"); token != "" && sessions != nil {
			if _, err := sessions.Validate(token); err != nil {
				writeJSON(w, http.StatusUnauthorized, map[string]any{"error": err.Error()})
				return
			}
		}
		cc := session.ClassifyTransport("http", r.RemoteAddr, r.TLS != nil)
		cc.Origin = r.Header.Get("Origin")
		cc.UserAgent = r.Header.Get("User-Agent")
		ctx := dispatcher.WithClientContext(r.Context(), cc)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "time": time.Now().Format(time.RFC3339)})
}

// handleAgents exposes the task board as a plain GET for dashboards that
// don't speak MCP, calling straight into the dispatcher's stable Call API.
func handleAgents(d *dispatcher.Dispatcher, sessions *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cc := session.ClassifyTransport("http", r.RemoteAddr, r.TLS != nil)
		ctx := dispatcher.WithClientContext(r.Context(), cc)
		result, err := d.Call(ctx, "get_task_board", map[string]any{})
		if err != nil {
			writeJSON(w, http.StatusOK, map[string]any{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, result.Payload)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
