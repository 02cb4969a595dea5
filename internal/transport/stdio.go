// Package transport wires the Dispatcher's server.MCPServer onto concrete
// transports (spec.md §4.5/§6): stdio for local/trusted clients, HTTP
// (SSE + Streamable HTTP) for remote ones. Both hand the same
// *server.MCPServer (built once by the dispatcher) to mcp-go's own
// transport servers rather than reimplementing the JSON-RPC envelope.
package transport

import (
	"context"
	"io"

	"github.com/mark3labs/mcp-go/server"

	"github.com/Rooba/AgentCoordinator-sub000/internal/dispatcher"
	"github.com/Rooba/AgentCoordinator-sub000/internal/domain"
)

// ServeStdio runs d's MCP server over r/w using mcp-go's own line-framed
// JSON-RPC stdio transport (server.NewStdioServer), grounded on the
// teacher's runStdioServer in cmd/mcp-server/main.go. Every request arriving
// on this transport is local/trusted per spec.md §4.5.
func ServeStdio(ctx context.Context, d *dispatcher.Dispatcher, r io.Reader, w io.Writer) error {
	cc := domain.ClientContext{ConnectionType: domain.ConnLocal, SecurityLevel: domain.SecurityTrusted}
	reqCtx := dispatcher.WithClientContext(ctx, cc)

	stdioSrv := server.NewStdioServer(d.Server())
	return stdioSrv.Listen(reqCtx, r, w)
}
