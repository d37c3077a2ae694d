package core

import "testing"

func TestEventRegisterFire(t *testing.T) {
	t.Cleanup(EventShutdown)

	var got []uint32
	listener := &struct{}{}
	onResize := func(code SystemEventCode, sender, l interface{}, ctx EventContext) bool {
		got = append(got, ctx.U32[0], ctx.U32[1])
		return true
	}
	if !EventRegister(EVENT_CODE_RESIZED, listener, onResize) {
		t.Fatal("first registration rejected")
	}
	if EventRegister(EVENT_CODE_RESIZED, listener, onResize) {
		t.Fatal("duplicate registration accepted")
	}

	if !EventFire(EVENT_CODE_RESIZED, nil, EventContext{U32: [4]uint32{640, 480}}) {
		t.Fatal("event not handled")
	}
	if len(got) != 2 || got[0] != 640 || got[1] != 480 {
		t.Fatalf("payload = %v", got)
	}

	if !EventUnregister(EVENT_CODE_RESIZED, listener) {
		t.Fatal("unregister failed")
	}
	if EventFire(EVENT_CODE_RESIZED, nil, EventContext{}) {
		t.Fatal("event handled after unregister")
	}
}

func TestEventHandledStopsPropagation(t *testing.T) {
	t.Cleanup(EventShutdown)

	calls := 0
	first, second := &struct{ a int }{}, &struct{ b int }{}
	EventRegister(EVENT_CODE_APPLICATION_QUIT, first, func(SystemEventCode, interface{}, interface{}, EventContext) bool {
		calls++
		return true
	})
	EventRegister(EVENT_CODE_APPLICATION_QUIT, second, func(SystemEventCode, interface{}, interface{}, EventContext) bool {
		calls++
		return false
	})
	EventFire(EVENT_CODE_APPLICATION_QUIT, nil, EventContext{})
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}
