package heartbeat

import (
	"sync"
	"testing"
	"time"
)

func TestArmFiresAfterInterval(t *testing.T) {
	var mu sync.Mutex
	var calls []string
	done := make(chan struct{}, 1)

	s := New(10*time.Millisecond, func(agentID string) error {
		mu.Lock()
		calls = append(calls, agentID)
		mu.Unlock()
		select {
		case done <- struct{}{}:
		default:
		}
		return nil
	})
	defer s.Stop()

	s.Arm("agent-1")
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the heartbeat timer to fire")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(calls) == 0 || calls[0] != "agent-1" {
		t.Errorf("calls = %v, want at least one call for agent-1", calls)
	}
}

func TestCancelStopsFurtherFiring(t *testing.T) {
	var mu sync.Mutex
	count := 0

	s := New(10*time.Millisecond, func(agentID string) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	})

	s.Arm("agent-1")
	time.Sleep(15 * time.Millisecond)
	s.Cancel("agent-1")

	mu.Lock()
	afterCancel := count
	mu.Unlock()

	time.Sleep(40 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count != afterCancel {
		t.Errorf("count grew from %d to %d after Cancel, expected no further firing", afterCancel, count)
	}
}

func TestArmResetsDeadlineRatherThanStacking(t *testing.T) {
	var mu sync.Mutex
	count := 0
	s := New(30*time.Millisecond, func(agentID string) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	})
	defer s.Stop()

	s.Arm("agent-1")
	time.Sleep(15 * time.Millisecond)
	s.Arm("agent-1") // re-arm before the first deadline; should push it out, not add a second timer
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count != 0 {
		t.Errorf("count = %d, want 0 (re-arming should have deferred the original 30ms deadline)", count)
	}
}

func TestStopCancelsEveryArmedTimer(t *testing.T) {
	var mu sync.Mutex
	count := 0
	s := New(10*time.Millisecond, func(agentID string) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	})

	s.Arm("agent-1")
	s.Arm("agent-2")
	s.Stop()

	time.Sleep(40 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count != 0 {
		t.Errorf("count = %d, want 0 after Stop", count)
	}
}
