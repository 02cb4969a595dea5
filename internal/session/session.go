// Package session implements the broker's SessionManager and ToolFilter
// (spec.md §4.6): opaque bearer tokens issued to connecting clients, an
// expiry sweep, and a per-ClientContext tool visibility policy.
//
// Grounded on the teacher's mock_auth.go (crypto/rand token minting) and
// SessionRegistry (mutex-guarded map, periodic sweep).
package session

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Rooba/AgentCoordinator-sub000/internal/brokerr"
	"github.com/Rooba/AgentCoordinator-sub000/internal/domain"
)

const tokenPrefix = "mcp_"

// Manager issues and validates session tokens. Single-writer via mu, the
// same discipline as the teacher's SessionRegistry.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
	ttl      time.Duration
	now      func() time.Time
}

// NewManager creates a Manager whose issued tokens expire after ttl.
func NewManager(ttl time.Duration) *Manager {
	return &Manager{sessions: make(map[string]*domain.Session), ttl: ttl, now: time.Now}
}

// generateToken mints "mcp_" + base64url(32 random bytes) + "_" + unix
// seconds at issuance, matching spec.md §4.6's token format.
func generateToken(issuedAt time.Time) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", brokerr.Wrap(brokerr.Internal, err, "generate session token")
	}
	enc := base64.RawURLEncoding.EncodeToString(buf)
	return fmt.Sprintf("%s%s_%d", tokenPrefix, enc, issuedAt.Unix()), nil
}

// CreateSession mints a new session bound to agentID with ctx metadata.
func (m *Manager) CreateSession(agentID string, metadata map[string]any) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	token, err := generateToken(now)
	if err != nil {
		return nil, err
	}
	s := &domain.Session{
		Token:        token,
		AgentID:      agentID,
		CreatedAt:    now,
		ExpiresAt:    now.Add(m.ttl),
		Metadata:     metadata,
		LastActivity: now,
	}
	m.sessions[token] = s
	return s, nil
}

// Validate returns the session for token if present and unexpired, touching
// LastActivity. Returns brokerr.AuthRequired otherwise.
func (m *Manager) Validate(token string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[token]
	if !ok {
		return nil, brokerr.New(brokerr.AuthRequired, "unknown or expired session token")
	}
	now := m.now()
	if now.After(s.ExpiresAt) {
		delete(m.sessions, token)
		return nil, brokerr.New(brokerr.AuthRequired, "session token expired")
	}
	s.LastActivity = now
	return s, nil
}

// Invalidate removes a session (logout / explicit unregister).
func (m *Manager) Invalidate(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
}

// ListForAgent returns all live sessions bound to agentID.
func (m *Manager) ListForAgent(agentID string) []*domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Session
	for _, s := range m.sessions {
		if s.AgentID == agentID {
			out = append(out, s)
		}
	}
	return out
}

// Sweep drops every expired session and returns how many were removed. The
// caller runs this on a ticker (spec.md §4.6: periodic expiry sweep, ~5 min
// default), mirroring the teacher's periodic heartbeat-offline sweep.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	n := 0
	for tok, s := range m.sessions {
		if now.After(s.ExpiresAt) {
			delete(m.sessions, tok)
			n++
		}
	}
	return n
}

// parseIssuedAt extracts the unix-seconds suffix from a token, for
// diagnostics only — Validate relies on the stored session, not on
// reparsing the token.
func parseIssuedAt(token string) (time.Time, bool) {
	if !strings.HasPrefix(token, tokenPrefix) {
		return time.Time{}, false
	}
	idx := strings.LastIndex(token, "_")
	if idx < 0 {
		return time.Time{}, false
	}
	secs, err := strconv.ParseInt(token[idx+1:], 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(secs, 0), true
}
