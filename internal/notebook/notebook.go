// Package notebook backs the broker's always-allow-listed coordinator
// tools (spec.md §4.6: "knowledge/sequential-thinking/library-docs tool
// categories"): free-text notes, an ordered plan-step log, and a static
// documentation lookup. None of these participate in task assignment or
// file-conflict tracking; they are a shared scratchpad agents can read and
// write regardless of which codebase or inbox they belong to.
//
// Grounded on the teacher's internal/tools/collab/knowledge.go
// (query_knowledge's search-and-rank shape) and planning.go (create_plan's
// single shared mutable log, single-writer via the enclosing service).
package notebook

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Note is one remembered fact, tagged with the agent that recorded it.
type Note struct {
	AgentID   string    `json:"agent_id"`
	Text      string    `json:"text"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// PlanStep is one entry in the shared sequential-thinking log.
type PlanStep struct {
	AgentID     string    `json:"agent_id"`
	Description string    `json:"description"`
	StepNumber  int       `json:"step_number"`
	CreatedAt   time.Time `json:"created_at"`
}

// Board is the single-writer, mutex-guarded store behind remember_note,
// plan_step, and lookup_docs.
type Board struct {
	mu    sync.Mutex
	notes []Note
	steps []PlanStep
	docs  map[string]string // static name -> body, seeded at construction
}

// New returns an empty Board seeded with a handful of built-in doc entries
// lookup_docs can always resolve, independent of any downstream server.
func New() *Board {
	return &Board{
		docs: map[string]string{
			"mcp-protocol":    "MCP is JSON-RPC 2.0 over a transport (stdio, HTTP, WebSocket); every session begins with an initialize handshake exchanging a protocolVersion.",
			"task-assignment": "Tasks are matched to agents by capability, then same-codebase preference, then fewest pending tasks, then insertion order.",
			"file-locks":      "A file_paths entry on a task reserves (codebase_id, path) for the task's lifetime; a file conflict on any listed path queues the new task instead of assigning it.",
		},
	}
}

// RememberNote appends a free-text note to the shared notebook.
func (b *Board) RememberNote(agentID, text string, tags []string, now time.Time) Note {
	n := Note{AgentID: agentID, Text: text, Tags: tags, CreatedAt: now}
	b.mu.Lock()
	b.notes = append(b.notes, n)
	b.mu.Unlock()
	return n
}

// Notes returns every remembered note, optionally filtered to one tag.
func (b *Board) Notes(tag string) []Note {
	b.mu.Lock()
	defer b.mu.Unlock()
	if tag == "" {
		out := make([]Note, len(b.notes))
		copy(out, b.notes)
		return out
	}
	var out []Note
	for _, n := range b.notes {
		for _, t := range n.Tags {
			if t == tag {
				out = append(out, n)
				break
			}
		}
	}
	return out
}

// PlanStep appends the next numbered step to the shared plan log.
func (b *Board) PlanStep(agentID, description string, now time.Time) PlanStep {
	b.mu.Lock()
	defer b.mu.Unlock()
	step := PlanStep{AgentID: agentID, Description: description, StepNumber: len(b.steps) + 1, CreatedAt: now}
	b.steps = append(b.steps, step)
	return step
}

// Steps returns the plan log in recorded order.
func (b *Board) Steps() []PlanStep {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]PlanStep, len(b.steps))
	copy(out, b.steps)
	return out
}

// LookupDocs ranks notes and built-in docs by naive substring relevance to
// query, matching query_knowledge's "ranked snippets" shape without a real
// index.
func (b *Board) LookupDocs(query string) []string {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	type scored struct {
		text  string
		score int
	}
	var hits []scored
	b.mu.Lock()
	for name, body := range b.docs {
		if strings.Contains(strings.ToLower(body), q) || strings.Contains(strings.ToLower(name), q) {
			hits = append(hits, scored{text: name + ": " + body, score: strings.Count(strings.ToLower(body), q) + 1})
		}
	}
	for _, n := range b.notes {
		if strings.Contains(strings.ToLower(n.Text), q) {
			hits = append(hits, scored{text: n.Text, score: strings.Count(strings.ToLower(n.Text), q)})
		}
	}
	b.mu.Unlock()

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.text)
	}
	return out
}
