package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

// mockEventEmitter implements EventEmitter for tests.
type mockEventEmitter struct {
	mu      sync.Mutex
	events  []*Event
	emitErr error
	done    chan struct{}
}

func (m *mockEventEmitter) Emit(ctx context.Context, event *Event) error {
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
	if m.done != nil {
		m.done <- struct{}{}
	}
	return m.emitErr
}

func (m *mockEventEmitter) getEvents() []*Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Event(nil), m.events...)
}

func TestEmitAsync_NilEmitterOrEvent(t *testing.T) {
	EmitAsync(nil, context.Background(), &Event{EventType: "x"})

	emitter := &mockEventEmitter{}
	EmitAsync(emitter, context.Background(), nil)
	time.Sleep(10 * time.Millisecond)
	if n := len(emitter.getEvents()); n != 0 {
		t.Errorf("expected 0 events, got %d", n)
	}
}

func TestEmitAsync_SurvivesCallerCancellation(t *testing.T) {
	emitter := &mockEventEmitter{done: make(chan struct{}, 1)}
	ctx, cancel := context.WithCancel(context.Background())
	EmitAsync(emitter, ctx, NewEvent(EventChallengeCreated, "test", nil))
	cancel()

	select {
	case <-emitter.done:
	case <-time.After(time.Second):
		t.Fatal("event was not emitted")
	}
	events := emitter.getEvents()
	if len(events) != 1 || events[0].EventType != EventChallengeCreated {
		t.Errorf("events = %+v", events)
	}
}

func TestMulti_FansOutAndJoinsErrors(t *testing.T) {
	a := &mockEventEmitter{}
	b := &mockEventEmitter{emitErr: errors.New("kafka down")}
	m := Multi(a, nil, b)
	err := m.Emit(context.Background(), NewEvent(EventChallengeApproved, "test", nil))
	if err == nil || err.Error() != "kafka down" {
		t.Errorf("err = %v, want kafka down", err)
	}
	if len(a.getEvents()) != 1 || len(b.getEvents()) != 1 {
		t.Error("every emitter should receive the event")
	}
	if err := Multi().Emit(context.Background(), &Event{}); err != nil {
		t.Errorf("empty Multi err = %v", err)
	}
}

func TestEvent_JSONShape(t *testing.T) {
	ev := NewEvent(EventChallengeDenied, "challenge", map[string]string{"action": "login"})
	ev.UserID, ev.DeviceID, ev.ChallengeID = "u1", "d1", "c1"
	raw, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	for _, k := range []string{"eventType", "source", "userId", "deviceId", "challengeId", "createdAt", "metadata"} {
		if _, ok := m[k]; !ok {
			t.Errorf("missing JSON field %q in %s", k, raw)
		}
	}
	if meta, _ := m["metadata"].(map[string]any); meta["action"] != "login" {
		t.Errorf("metadata = %v", m["metadata"])
	}
}
