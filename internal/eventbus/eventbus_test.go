package eventbus

import (
	"io"
	"log"
	"testing"
)

func TestNoopBusDiscardsEverything(t *testing.T) {
	b := NoopBus{}
	b.Publish("task.queued.default", map[string]any{"task_id": "t1"})
	unsub := b.Subscribe("task.", func(Event) { t.Fatal("NoopBus must never invoke subscribers") })
	unsub()
	if err := b.Close(); err != nil {
		t.Errorf("Close() = %v, want nil", err)
	}
}

func TestLocalBusDeliversMatchingPrefix(t *testing.T) {
	b := NewLocalBus("", nil)
	defer b.Close()

	var got []Event
	unsub := b.Subscribe("task.", func(ev Event) { got = append(got, ev) })
	defer unsub()

	b.Publish("agent.registered.default", map[string]any{"agent_id": "a1"})
	b.Publish("task.queued.default", map[string]any{"task_id": "t1"})

	if len(got) != 1 {
		t.Fatalf("expected 1 matching event, got %d", len(got))
	}
	if got[0].Subject != "task.queued.default" {
		t.Errorf("subject = %q, want task.queued.default", got[0].Subject)
	}
}

func TestLocalBusUnsubscribeStopsDelivery(t *testing.T) {
	b := NewLocalBus("", nil)
	defer b.Close()

	count := 0
	unsub := b.Subscribe("task.", func(Event) { count++ })
	b.Publish("task.queued.default", nil)
	unsub()
	b.Publish("task.queued.default", nil)

	if count != 1 {
		t.Fatalf("count = %d, want 1 (unsubscribe should stop further delivery)", count)
	}
}

func TestLocalBusUnsubscribeByIDNotIndex(t *testing.T) {
	b := NewLocalBus("", nil)
	defer b.Close()

	var firedA, firedB bool
	unsubA := b.Subscribe("task.", func(Event) { firedA = true })
	_ = b.Subscribe("task.", func(Event) { firedB = true })

	// Unsubscribing the first subscriber must not silently unsubscribe
	// whichever subscriber now occupies index 0 after removal.
	unsubA()
	b.Publish("task.queued.default", nil)

	if firedA {
		t.Error("unsubscribed subscriber A should not have fired")
	}
	if !firedB {
		t.Error("subscriber B should still fire after A unsubscribes")
	}
}

func TestLocalBusSubscriberPanicDoesNotStopOtherSubscribers(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	b := NewLocalBus("", logger)
	defer b.Close()

	var secondCalled bool
	b.Subscribe("task.", func(Event) { panic("boom") })
	b.Subscribe("task.", func(Event) { secondCalled = true })

	b.Publish("task.queued.default", nil)

	if !secondCalled {
		t.Error("expected the second subscriber to still run despite the first panicking")
	}
}
