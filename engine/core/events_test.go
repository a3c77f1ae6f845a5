package core

import (
	"testing"
	"time"
)

type recorder struct {
	name    string
	handled bool
	calls   *[]string
}

func (r *recorder) onEvent(code SystemEventCode, sender interface{}, listenerInst interface{}, data EventContext) bool {
	*r.calls = append(*r.calls, r.name+":"+data.Data.C[0])
	return r.handled
}

func withEvents(t *testing.T) {
	t.Helper()
	if !EventInitialize() {
		t.Fatal("event system already initialized")
	}
	t.Cleanup(func() { _ = EventShutdown() })
}

func TestEventFireOrderAndHandled(t *testing.T) {
	withEvents(t)

	var calls []string
	first := &recorder{name: "first", calls: &calls}
	second := &recorder{name: "second", handled: true, calls: &calls}
	third := &recorder{name: "third", calls: &calls}
	for _, r := range []*recorder{first, second, third} {
		if !EventRegister(EVENT_CODE_MODEL_CHANGED, r, r.onEvent) {
			t.Fatalf("register %s failed", r.name)
		}
	}

	var ctx EventContext
	ctx.Data.C[0] = "scene.gltf"
	if !EventFire(EVENT_CODE_MODEL_CHANGED, nil, ctx) {
		t.Fatal("expected the event to be handled")
	}
	want := []string{"first:scene.gltf", "second:scene.gltf"}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("calls[%d] = %s, want %s", i, calls[i], want[i])
		}
	}
}

func TestEventRegisterDuplicate(t *testing.T) {
	withEvents(t)

	var calls []string
	r := &recorder{name: "r", calls: &calls}
	if !EventRegister(EVENT_CODE_APPLICATION_QUIT, r, r.onEvent) {
		t.Fatal("first registration failed")
	}
	if EventRegister(EVENT_CODE_APPLICATION_QUIT, r, r.onEvent) {
		t.Error("duplicate registration accepted")
	}
	if EventRegister(MAX_MESSAGE_CODES, r, r.onEvent) {
		t.Error("out of range code accepted")
	}
	if EventRegister(EVENT_CODE_RESIZED, r, nil) {
		t.Error("nil callback accepted")
	}
}

func TestEventUnregister(t *testing.T) {
	withEvents(t)

	var calls []string
	a := &recorder{name: "a", calls: &calls}
	b := &recorder{name: "b", calls: &calls}
	EventRegister(EVENT_CODE_KEY_PRESSED, a, a.onEvent)
	EventRegister(EVENT_CODE_KEY_PRESSED, b, b.onEvent)

	if !EventUnregister(EVENT_CODE_KEY_PRESSED, a) {
		t.Fatal("unregister failed")
	}
	if EventUnregister(EVENT_CODE_KEY_PRESSED, a) {
		t.Error("second unregister succeeded")
	}

	EventFire(EVENT_CODE_KEY_PRESSED, nil, EventContext{})
	if len(calls) != 1 || calls[0] != "b:" {
		t.Errorf("calls = %v, want [b:]", calls)
	}
}

func TestEventsBeforeInitialize(t *testing.T) {
	if EventRegister(EVENT_CODE_APPLICATION_QUIT, nil, func(SystemEventCode, interface{}, interface{}, EventContext) bool { return true }) {
		t.Error("register succeeded without an event system")
	}
	if EventFire(EVENT_CODE_APPLICATION_QUIT, nil, EventContext{}) {
		t.Error("fire succeeded without an event system")
	}
}

func TestClock(t *testing.T) {
	c := NewClock()
	c.Update()
	if c.Elapsed() != 0 {
		t.Fatalf("unstarted clock elapsed %s", c.Elapsed())
	}
	c.Start()
	time.Sleep(5 * time.Millisecond)
	c.Stop()
	elapsed := c.Elapsed()
	if elapsed < 5*time.Millisecond {
		t.Errorf("elapsed = %s, want at least 5ms", elapsed)
	}
	c.Update()
	if c.Elapsed() != elapsed {
		t.Error("stopped clock kept counting")
	}
}
