package session

import (
	"net"
	"strings"

	"github.com/Rooba/AgentCoordinator-sub000/internal/domain"
)

// ClassifyTransport derives a ClientContext for a connection given its
// transport kind, remote address, and (for HTTP-family transports) scheme,
// per spec.md §4.5:
//   - stdio                      -> local / trusted
//   - loopback TCP                -> local / trusted
//   - HTTPS, non-loopback         -> remote / sandboxed
//   - plain HTTP, non-loopback    -> remote / restricted
//   - WebSocket                   -> web / sandboxed
func ClassifyTransport(transport, remoteAddr string, tls bool) domain.ClientContext {
	switch transport {
	case "stdio":
		return domain.ClientContext{ConnectionType: domain.ConnLocal, SecurityLevel: domain.SecurityTrusted}
	case "websocket", "ws":
		return domain.ClientContext{ConnectionType: domain.ConnWeb, SecurityLevel: domain.SecuritySandboxed, RemoteIP: hostOf(remoteAddr)}
	default: // http
		if isLoopback(remoteAddr) {
			return domain.ClientContext{ConnectionType: domain.ConnLocal, SecurityLevel: domain.SecurityTrusted, RemoteIP: hostOf(remoteAddr)}
		}
		if tls {
			return domain.ClientContext{ConnectionType: domain.ConnRemote, SecurityLevel: domain.SecuritySandboxed, RemoteIP: hostOf(remoteAddr)}
		}
		return domain.ClientContext{ConnectionType: domain.ConnRemote, SecurityLevel: domain.SecurityRestricted, RemoteIP: hostOf(remoteAddr)}
	}
}

func hostOf(addr string) string {
	h, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return h
}

func isLoopback(addr string) bool {
	h := hostOf(addr)
	if h == "" {
		return false
	}
	if h == "localhost" {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}

// restrictedDeny lists native tool names that a restricted (plain-HTTP,
// non-loopback) client may never call, regardless of agent identity. It is a
// deny-list: tools not named here stay available to restricted clients.
var restrictedDeny = map[string]struct{}{
	"register_agent":          {},
	"unregister_agent":        {},
	"create_task":             {},
	"create_cross_codebase_task": {},
	"create_agent_task":       {},
	"register_task_set":       {},
	"complete_task":           {},
	"add_codebase_dependency": {},
}

// Filter decides whether a tool is visible/callable for a ClientContext.
// Trusted and sandboxed contexts see the full tool surface (sandboxed
// clients are still scoped by per-agent_id argument checks downstream, not
// by filtering here). Restricted contexts lose only the tools in
// restrictedDeny; get_/list_/discover_ tools and every other tool, external
// tools included, remain visible.
func Filter(ctx domain.ClientContext, toolName string) bool {
	if ctx.SecurityLevel != domain.SecurityRestricted {
		return true
	}
	if strings.HasPrefix(toolName, "get_") || strings.HasPrefix(toolName, "list_") || strings.HasPrefix(toolName, "discover_") {
		return true
	}
	_, denied := restrictedDeny[toolName]
	return !denied
}
