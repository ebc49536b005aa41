package events

import (
	"testing"
)

func TestSubscribeAndEmit(t *testing.T) {
	bus := NewBus()

	var got []Event
	bus.Subscribe(EventTaskQueued, func(e Event) {
		got = append(got, e)
	})

	bus.Emit(EventTaskQueued, map[string]any{"scanner": "license-headers"})
	bus.Emit(EventTaskStarted, nil) // different type, not delivered

	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	if got[0].Type != EventTaskQueued {
		t.Errorf("expected type %s, got %s", EventTaskQueued, got[0].Type)
	}
	if got[0].Data["scanner"] != "license-headers" {
		t.Errorf("expected scanner data, got %v", got[0].Data)
	}
	if got[0].Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}
}

func TestFIFOOrderPerType(t *testing.T) {
	bus := NewBus()

	var order []int
	bus.Subscribe(EventTaskQueued, func(Event) { order = append(order, 1) })
	bus.Subscribe(EventTaskQueued, func(Event) { order = append(order, 2) })
	bus.Subscribe(EventTaskQueued, func(Event) { order = append(order, 3) })

	bus.Emit(EventTaskQueued, nil)

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("expected registration order [1 2 3], got %v", order)
	}
}

func TestSubscribeAll(t *testing.T) {
	bus := NewBus()

	count := 0
	bus.SubscribeAll(func(Event) { count++ })

	bus.Emit(EventTaskQueued, nil)
	bus.Emit(EventDaemonHeartbeat, nil)
	bus.Emit(EventWatcherChange, nil)

	if count != 3 {
		t.Errorf("expected global listener to see 3 events, got %d", count)
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := NewBus()

	count := 0
	unsub := bus.Subscribe(EventTaskQueued, func(Event) { count++ })

	bus.Emit(EventTaskQueued, nil)
	unsub()
	bus.Emit(EventTaskQueued, nil)
	unsub() // second call is a no-op

	if count != 1 {
		t.Errorf("expected 1 delivery after unsubscribe, got %d", count)
	}
}

func TestPanickingListenerIsolated(t *testing.T) {
	bus := NewBus()

	var after bool
	bus.Subscribe(EventTaskFailed, func(Event) { panic("listener bug") })
	bus.Subscribe(EventTaskFailed, func(Event) { after = true })

	// Must not panic the emitter
	bus.Emit(EventTaskFailed, nil)

	if !after {
		t.Error("expected listener after the panicking one to still run")
	}
}

func TestListenerMayEmitAndSubscribe(t *testing.T) {
	bus := NewBus()

	var nested bool
	bus.Subscribe(EventTaskCompleted, func(Event) { nested = true })
	bus.Subscribe(EventTaskStarted, func(Event) {
		// Re-entrant emit and subscribe must not deadlock
		bus.Subscribe(EventHealthUpdated, func(Event) {})
		bus.Emit(EventTaskCompleted, nil)
	})

	bus.Emit(EventTaskStarted, nil)

	if !nested {
		t.Error("expected nested emit to be delivered")
	}
}

func TestClear(t *testing.T) {
	bus := NewBus()

	count := 0
	bus.Subscribe(EventTaskQueued, func(Event) { count++ })
	bus.SubscribeAll(func(Event) { count++ })

	if bus.ListenerCount() != 2 {
		t.Errorf("expected 2 listeners, got %d", bus.ListenerCount())
	}

	bus.Clear()
	bus.Emit(EventTaskQueued, nil)

	if count != 0 {
		t.Errorf("expected no deliveries after Clear, got %d", count)
	}
	if bus.ListenerCount() != 0 {
		t.Errorf("expected 0 listeners after Clear, got %d", bus.ListenerCount())
	}
}
