package core

import "sync"

// EventContext is the payload handed to listeners.
type EventContext struct {
	U32  [4]uint32
	Data interface{}
}

type SystemEventCode int

const (
	EVENT_CODE_APPLICATION_QUIT SystemEventCode = 0x01

	/* Context usage:
	 * key := ctx.U32[0]
	 */
	EVENT_CODE_KEY_PRESSED SystemEventCode = 0x02

	/* Context usage:
	 * key := ctx.U32[0]
	 */
	EVENT_CODE_KEY_RELEASED SystemEventCode = 0x03

	/* Context usage:
	 * button := ctx.U32[0]
	 */
	EVENT_CODE_BUTTON_PRESSED SystemEventCode = 0x04

	/* Context usage:
	 * button := ctx.U32[0]
	 */
	EVENT_CODE_BUTTON_RELEASED SystemEventCode = 0x05

	/* Context usage:
	 * x, y := ctx.U32[0], ctx.U32[1]
	 */
	EVENT_CODE_MOUSE_MOVED SystemEventCode = 0x06

	/* Context usage:
	 * width, height := ctx.U32[0], ctx.U32[1]
	 */
	EVENT_CODE_RESIZED SystemEventCode = 0x08

	/* Context usage:
	 * cfg := ctx.Data.(*core.Config)
	 */
	EVENT_CODE_CONFIG_RELOADED SystemEventCode = 0x09

	MAX_EVENT_CODE SystemEventCode = 0xFF
)

type FnOnEvent func(code SystemEventCode, sender interface{}, listener interface{}, data EventContext) bool

type registeredEvent struct {
	listener interface{}
	callback FnOnEvent
}

var (
	eventMutex      sync.Mutex
	eventRegistered [MAX_EVENT_CODE + 1][]registeredEvent
)

/**
 * Register to listen for when events are sent with the provided code. A listener
 * registered twice for the same code is rejected.
 * @returns true if the event is successfully registered.
 */
func EventRegister(code SystemEventCode, listener interface{}, onEvent FnOnEvent) bool {
	if code < 0 || code > MAX_EVENT_CODE || onEvent == nil {
		return false
	}
	eventMutex.Lock()
	defer eventMutex.Unlock()

	for _, e := range eventRegistered[code] {
		if e.listener == listener {
			return false
		}
	}
	eventRegistered[code] = append(eventRegistered[code], registeredEvent{listener: listener, callback: onEvent})
	return true
}

// EventUnregister removes the listener for code. Returns false when it was not registered.
func EventUnregister(code SystemEventCode, listener interface{}) bool {
	if code < 0 || code > MAX_EVENT_CODE {
		return false
	}
	eventMutex.Lock()
	defer eventMutex.Unlock()

	events := eventRegistered[code]
	for i, e := range events {
		if e.listener == listener {
			eventRegistered[code] = append(events[:i], events[i+1:]...)
			return true
		}
	}
	return false
}

/**
 * Fires an event to listeners of the given code. If a listener returns
 * true the event is considered handled and is not passed on.
 * @returns true if handled.
 */
func EventFire(code SystemEventCode, sender interface{}, context EventContext) bool {
	if code < 0 || code > MAX_EVENT_CODE {
		return false
	}
	eventMutex.Lock()
	events := append([]registeredEvent(nil), eventRegistered[code]...)
	eventMutex.Unlock()

	for _, e := range events {
		if e.callback(code, sender, e.listener, context) {
			return true
		}
	}
	return false
}

// EventShutdown drops every registration.
func EventShutdown() {
	eventMutex.Lock()
	defer eventMutex.Unlock()
	for i := range eventRegistered {
		eventRegistered[i] = nil
	}
}
