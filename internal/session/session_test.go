package session

import (
	"strings"
	"testing"
	"time"

	"github.com/Rooba/AgentCoordinator-sub000/internal/brokerr"
)

func TestCreateSessionTokenFormat(t *testing.T) {
	m := NewManager(time.Hour)
	s, err := m.CreateSession("agent-1", nil)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if !strings.HasPrefix(s.Token, tokenPrefix) {
		t.Errorf("token %q missing prefix %q", s.Token, tokenPrefix)
	}
	// The base64url payload may itself contain '_', so only the segment
	// after the *last* underscore is guaranteed to be the unix timestamp.
	issuedAt, ok := parseIssuedAt(s.Token)
	if !ok {
		t.Fatalf("could not parse issued-at suffix from token %q", s.Token)
	}
	if issuedAt.IsZero() {
		t.Error("parsed issued-at timestamp is zero")
	}
}

func TestValidateUnknownTokenFails(t *testing.T) {
	m := NewManager(time.Hour)
	_, err := m.Validate("mcp_bogus_123")
	if brokerr.KindOf(err) != brokerr.AuthRequired {
		t.Fatalf("expected AuthRequired, got %v", err)
	}
}

func TestValidateExpiredTokenFails(t *testing.T) {
	m := NewManager(time.Minute)
	frozen := time.Now()
	m.now = func() time.Time { return frozen }
	s, err := m.CreateSession("agent-1", nil)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	m.now = func() time.Time { return frozen.Add(2 * time.Minute) }
	if _, err := m.Validate(s.Token); brokerr.KindOf(err) != brokerr.AuthRequired {
		t.Fatalf("expected AuthRequired for expired token, got %v", err)
	}
}

func TestSweepRemovesExpiredSessions(t *testing.T) {
	m := NewManager(time.Minute)
	frozen := time.Now()
	m.now = func() time.Time { return frozen }
	fresh, _ := m.CreateSession("agent-1", nil)
	stale, _ := m.CreateSession("agent-2", nil)

	m.now = func() time.Time { return frozen.Add(30 * time.Second) }
	if _, err := m.Validate(fresh.Token); err != nil {
		t.Fatalf("fresh token should still validate: %v", err)
	}

	m.now = func() time.Time { return frozen.Add(90 * time.Second) }
	n := m.Sweep()
	if n != 2 {
		t.Fatalf("expected both tokens expired by 90s (ttl=60s), got %d removed", n)
	}
	if _, err := m.Validate(stale.Token); err == nil {
		t.Error("expected stale token gone after sweep")
	}
}

func TestInvalidateRemovesSession(t *testing.T) {
	m := NewManager(time.Hour)
	s, _ := m.CreateSession("agent-1", nil)
	m.Invalidate(s.Token)
	if _, err := m.Validate(s.Token); err == nil {
		t.Error("expected invalidated token to fail validation")
	}
}

func TestListForAgentFiltersByOwner(t *testing.T) {
	m := NewManager(time.Hour)
	m.CreateSession("agent-1", nil)
	m.CreateSession("agent-1", nil)
	m.CreateSession("agent-2", nil)

	got := m.ListForAgent("agent-1")
	if len(got) != 2 {
		t.Fatalf("expected 2 sessions for agent-1, got %d", len(got))
	}
}
