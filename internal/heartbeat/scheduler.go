// Package heartbeat implements the Heartbeat scheduler (spec.md §4.9): a
// per-agent timer that calls Heartbeat(agent_id) every 10s by default,
// re-armed after any dispatcher-wrapped call on that agent, and cancelled on
// Unregister. It is optional and redundant with dispatcher-side heartbeats
// (the registry updates last_heartbeat on every native Heartbeat call
// regardless) — it exists to keep an idle agent online.
//
// Grounded on the teacher's worker_manager cooldown/backoff timers, which
// use the same per-instance-id map-of-timers discipline.
package heartbeat

import (
	"sync"
	"time"
)

// HeartbeatFunc performs the actual heartbeat update (registry.Heartbeat).
type HeartbeatFunc func(agentID string) error

// Scheduler owns one timer per agent id.
type Scheduler struct {
	mu       sync.Mutex
	timers   map[string]*time.Timer
	interval time.Duration
	fn       HeartbeatFunc
}

// New creates a Scheduler that fires fn every interval for each armed agent.
func New(interval time.Duration, fn HeartbeatFunc) *Scheduler {
	return &Scheduler{timers: make(map[string]*time.Timer), interval: interval, fn: fn}
}

// Arm (re)starts agentID's timer. Safe to call repeatedly; each call resets
// the deadline, matching "(re)armed after every dispatcher-wrapped call".
func (s *Scheduler) Arm(agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[agentID]; ok {
		t.Stop()
	}
	s.timers[agentID] = time.AfterFunc(s.interval, func() { s.fire(agentID) })
}

func (s *Scheduler) fire(agentID string) {
	// A fired timer is a no-op if the agent was cancelled in the meantime
	// (spec.md §5: "Heartbeat timers are idempotent; firing one during a
	// shutdown is a no-op").
	s.mu.Lock()
	_, stillArmed := s.timers[agentID]
	s.mu.Unlock()
	if !stillArmed {
		return
	}

	_ = s.fn(agentID)

	// Re-arm only if no Cancel/Stop ran while fn was executing.
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.timers[agentID]
	if !ok {
		return
	}
	t.Stop()
	s.timers[agentID] = time.AfterFunc(s.interval, func() { s.fire(agentID) })
}

// Cancel stops and removes agentID's timer (on Unregister).
func (s *Scheduler) Cancel(agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[agentID]; ok {
		t.Stop()
		delete(s.timers, agentID)
	}
}

// Stop cancels every armed timer, for broker shutdown.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}
