package codebase

import (
	"testing"

	"github.com/Rooba/AgentCoordinator-sub000/internal/brokerr"
)

func TestRegisterIsIdempotent(t *testing.T) {
	r := NewRegistry()
	a := r.Register("repo:acme/x", "Widgets", "/ws")
	b := r.Register("repo:acme/x", "ignored", "ignored")
	if a != b {
		t.Fatal("expected the same *Codebase pointer on re-register")
	}
	if b.Name != "Widgets" {
		t.Errorf("name = %q, want first-registered name preserved", b.Name)
	}
}

func TestAddDependencyRequiresBothEndsRegistered(t *testing.T) {
	r := NewRegistry()
	r.Register("repo:acme/x", "X", "/x")
	err := r.AddDependency("repo:acme/x", "repo:acme/y", "api_contract", nil)
	if brokerr.KindOf(err) != brokerr.NotFound {
		t.Fatalf("expected NotFound for unregistered target, got %v", err)
	}

	r.Register("repo:acme/y", "Y", "/y")
	if err := r.AddDependency("repo:acme/x", "repo:acme/y", "api_contract", nil); err != nil {
		t.Fatalf("unexpected error once both ends exist: %v", err)
	}
	deps := r.DependenciesOf("repo:acme/x")
	if len(deps) != 1 || deps[0].Target != "repo:acme/y" {
		t.Fatalf("expected one dependency to repo:acme/y, got %+v", deps)
	}
}

func TestTrackAgentMaterializesUnseenCodebase(t *testing.T) {
	r := NewRegistry()
	r.TrackAgent("repo:acme/z", "agent-1")
	cb, ok := r.Get("repo:acme/z")
	if !ok {
		t.Fatal("expected codebase to be materialized")
	}
	if _, present := cb.Agents["agent-1"]; !present {
		t.Error("expected agent-1 tracked in codebase")
	}
}
