package domain

import (
	"testing"
	"time"
)

func TestParsePriorityKnownValues(t *testing.T) {
	cases := map[string]Priority{
		"urgent": PriorityUrgent,
		"high":   PriorityHigh,
		"low":    PriorityLow,
		"normal": PriorityNormal,
		"":       PriorityNormal,
		"bogus":  PriorityNormal,
	}
	for in, want := range cases {
		if got := ParsePriority(in); got != want {
			t.Errorf("ParsePriority(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestPriorityStringRoundTrips(t *testing.T) {
	for _, p := range []Priority{PriorityUrgent, PriorityHigh, PriorityNormal, PriorityLow} {
		if got := ParsePriority(p.String()); got != p {
			t.Errorf("ParsePriority(%q.String()) = %v, want %v", p, got, p)
		}
	}
}

func TestPriorityOrderingLowerIsSooner(t *testing.T) {
	if !(PriorityUrgent < PriorityHigh && PriorityHigh < PriorityNormal && PriorityNormal < PriorityLow) {
		t.Error("expected Urgent < High < Normal < Low")
	}
}

func TestAgentOrderSetAndGet(t *testing.T) {
	a := &Agent{}
	a.SetOrder(7)
	if a.Order() != 7 {
		t.Errorf("Order() = %d, want 7", a.Order())
	}
}

func TestTaskRequiredCapabilitiesNilMetadata(t *testing.T) {
	tsk := &Task{}
	if got := tsk.RequiredCapabilities(); got != nil {
		t.Errorf("got %v, want nil", got)
	}
}

func TestTaskRequiredCapabilitiesFromJSONAnySlice(t *testing.T) {
	tsk := &Task{Metadata: map[string]any{"required_capabilities": []any{"go", "rust"}}}
	got := tsk.RequiredCapabilities()
	if len(got) != 2 || got[0] != "go" || got[1] != "rust" {
		t.Errorf("got %v, want [go rust]", got)
	}
}

func TestTaskRequiredCapabilitiesFromStringSlice(t *testing.T) {
	tsk := &Task{Metadata: map[string]any{"required_capabilities": []string{"go"}}}
	got := tsk.RequiredCapabilities()
	if len(got) != 1 || got[0] != "go" {
		t.Errorf("got %v, want [go]", got)
	}
}

func TestNewCodebaseInitializesSets(t *testing.T) {
	cb := NewCodebase("repo:x", "x", "/tmp/x")
	if cb.Agents == nil || cb.ActiveTasks == nil {
		t.Fatal("expected both sets to be initialized, not nil")
	}
	if len(cb.Agents) != 0 || len(cb.ActiveTasks) != 0 {
		t.Error("expected both sets to start empty")
	}
}

func TestIsOnlineNilAgent(t *testing.T) {
	if IsOnline(nil, time.Now()) {
		t.Error("expected a nil agent to never be online")
	}
}

func TestIsOnlineWithinThreshold(t *testing.T) {
	now := time.Now()
	a := &Agent{LastHeartbeat: now.Add(-10 * time.Second)}
	if !IsOnline(a, now) {
		t.Error("expected an agent heartbeating 10s ago to be online")
	}
}

func TestIsOnlinePastThreshold(t *testing.T) {
	now := time.Now()
	a := &Agent{LastHeartbeat: now.Add(-31 * time.Second)}
	if IsOnline(a, now) {
		t.Error("expected an agent silent for 31s to be offline")
	}
}
