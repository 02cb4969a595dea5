// Package activity implements the coordinator's ActivityTracker (spec.md
// §4.7): a pure inference function from (tool_name, args) to a human
// string plus a file list, and an update step that writes it onto an
// agent's CurrentActivity/CurrentFiles and pushes it onto a bounded ring.
//
// Grounded on the teacher's heartbeat/report_progress tools, which carry
// the same "what are you doing, which files" shape under
// AgentInstance.Progress / Task.ProgressDescription.
package activity

import (
	"fmt"
	"strings"
	"time"

	"github.com/Rooba/AgentCoordinator-sub000/internal/domain"
)

const maxHistory = 10

// Inferred is the result of inferring an activity from a tool call.
type Inferred struct {
	Summary string
	Files   []string
}

// wellKnown maps native tool names to a template for the human summary and
// the argument keys that carry file paths.
var wellKnown = map[string]struct {
	template string
	fileKeys []string
}{
	"create_task":      {"creating task %q", nil},
	"get_next_task":     {"requesting next task", nil},
	"complete_task":     {"completing current task", nil},
	"lock_file":         {"locking files", []string{"path", "paths"}},
	"unlock_file":       {"unlocking files", []string{"path", "paths"}},
	"heartbeat":         {"reporting progress: %s", nil},
	"report_progress":   {"reporting progress: %s", nil},
	"register_agent":    {"registering with the broker", nil},
	"unregister_agent":  {"unregistering from the broker", nil},
	"register_codebase": {"registering codebase %q", nil},
}

// Infer computes a human-readable summary and touched-file list for a tool
// call. It has no side effects.
func Infer(toolName string, args map[string]any) Inferred {
	files := extractFiles(args, "file_paths", "files", "path", "paths")

	if wk, ok := wellKnown[toolName]; ok {
		summary := wk.template
		switch toolName {
		case "create_task", "register_codebase":
			if title, ok := args["title"].(string); ok {
				summary = fmt.Sprintf(wk.template, title)
			} else if name, ok := args["name"].(string); ok {
				summary = fmt.Sprintf(wk.template, name)
			} else {
				summary = strings.TrimSuffix(strings.TrimSuffix(wk.template, " %q"), "")
			}
		case "heartbeat", "report_progress":
			switch {
			case hasStepFields(args):
				summary = fmt.Sprintf(wk.template, formatStep(args))
			default:
				if p, ok := args["progress"].(string); ok && p != "" {
					summary = fmt.Sprintf(wk.template, p)
				} else {
					summary = "reporting progress"
				}
			}
		default:
			summary = wk.template
		}
		if len(wk.fileKeys) > 0 && len(files) == 0 {
			files = extractFiles(args, wk.fileKeys...)
		}
		return Inferred{Summary: summary, Files: files}
	}

	return Inferred{Summary: humanize(toolName), Files: files}
}

// hasStepFields reports whether args carries the teacher's step/total_steps
// progress shape (spec.md §4.7 supplemented from the teacher's
// AgentInstance.Progress*).
func hasStepFields(args map[string]any) bool {
	_, hasStep := numericField(args, "step")
	_, hasTotal := numericField(args, "total_steps")
	return hasStep || hasTotal
}

// formatStep renders "step N/M: <progress>" when step/total_steps are
// present, falling back to whatever subset is available.
func formatStep(args map[string]any) string {
	step, hasStep := numericField(args, "step")
	total, hasTotal := numericField(args, "total_steps")
	progress, _ := args["progress"].(string)

	var head string
	switch {
	case hasStep && hasTotal:
		head = fmt.Sprintf("step %d/%d", step, total)
	case hasStep:
		head = fmt.Sprintf("step %d", step)
	case hasTotal:
		head = fmt.Sprintf("step ?/%d", total)
	}
	if progress == "" {
		return head
	}
	if head == "" {
		return progress
	}
	return head + ": " + progress
}

// numericField reads a JSON-decoded numeric argument (always float64 from
// encoding/json) as an int.
func numericField(args map[string]any, key string) (int, bool) {
	v, ok := args[key].(float64)
	if !ok {
		return 0, false
	}
	return int(v), true
}

// humanize turns a snake_case tool name into a readable fallback, e.g.
// "get_task_board" -> "calling get task board".
func humanize(toolName string) string {
	words := strings.Split(toolName, "_")
	return "calling " + strings.Join(words, " ")
}

func extractFiles(args map[string]any, keys ...string) []string {
	var out []string
	for _, k := range keys {
		v, ok := args[k]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case string:
			if t != "" {
				out = append(out, t)
			}
		case []any:
			for _, x := range t {
				if s, ok := x.(string); ok && s != "" {
					out = append(out, s)
				}
			}
		case []string:
			out = append(out, t...)
		}
	}
	return out
}

// Apply writes an inferred activity onto the agent and pushes it onto the
// bounded activity_history ring (capped at 10, spec.md §3).
func Apply(a *domain.Agent, toolName string, args map[string]any, now time.Time) {
	inf := Infer(toolName, args)
	a.CurrentActivity = inf.Summary
	a.CurrentFiles = inf.Files

	entry := domain.ActivityEntry{
		Tool:      toolName,
		Summary:   inf.Summary,
		Files:     inf.Files,
		Timestamp: now,
	}
	a.ActivityHistory = append(a.ActivityHistory, entry)
	if len(a.ActivityHistory) > maxHistory {
		a.ActivityHistory = a.ActivityHistory[len(a.ActivityHistory)-maxHistory:]
	}
}
