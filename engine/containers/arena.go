package containers

import "fmt"

// Handle references a value stored in an Arena. The zero Handle is null.
// The low 20 bits hold the slot index plus one, the high 12 bits a generation
// that changes every time the slot is reused.
type Handle uint32

// NullHandle never references a value.
const NullHandle Handle = 0

const (
	handleIndexBits = 20
	handleIndexMask = 1<<handleIndexBits - 1
	handleGenMask   = 1<<(32-handleIndexBits) - 1
	// MaxArenaSize is the number of live values an arena can hold.
	MaxArenaSize = handleIndexMask
)

func (h Handle) IsNull() bool { return h == 0 }

func (h Handle) index() int { return int(h&handleIndexMask) - 1 }

func (h Handle) generation() uint32 { return uint32(h) >> handleIndexBits }

func (h Handle) String() string {
	if h == 0 {
		return "null"
	}
	return fmt.Sprintf("%d#%d", h.index(), h.generation())
}

type arenaSlot[T any] struct {
	value      T
	generation uint32
	live       bool
}

// Arena is a flat table owning values that are referenced elsewhere only by Handle.
type Arena[T any] struct {
	slots []arenaSlot[T]
	free  []int
	count int
}

func NewArena[T any](capacity int) *Arena[T] {
	return &Arena[T]{slots: make([]arenaSlot[T], 0, capacity)}
}

// Insert stores v and returns its handle. It panics when the arena is full,
// which only happens when a caller leaks over a million objects.
func (a *Arena[T]) Insert(v T) Handle {
	var idx int
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		if len(a.slots) >= MaxArenaSize {
			panic("containers: arena is full")
		}
		a.slots = append(a.slots, arenaSlot[T]{})
		idx = len(a.slots) - 1
	}
	slot := &a.slots[idx]
	slot.value = v
	slot.live = true
	a.count++
	return Handle(slot.generation<<handleIndexBits | uint32(idx+1))
}

func (a *Arena[T]) slot(h Handle) *arenaSlot[T] {
	idx := h.index()
	if idx < 0 || idx >= len(a.slots) {
		return nil
	}
	s := &a.slots[idx]
	if !s.live || s.generation != h.generation() {
		return nil
	}
	return s
}

// Get returns the value for h. Stale or null handles report false.
func (a *Arena[T]) Get(h Handle) (T, bool) {
	if s := a.slot(h); s != nil {
		return s.value, true
	}
	var zero T
	return zero, false
}

// Contains reports whether h references a live value.
func (a *Arena[T]) Contains(h Handle) bool {
	return a.slot(h) != nil
}

// Remove releases h and returns the value it referenced.
func (a *Arena[T]) Remove(h Handle) (T, bool) {
	var zero T
	s := a.slot(h)
	if s == nil {
		return zero, false
	}
	v := s.value
	s.value = zero
	s.live = false
	s.generation = (s.generation + 1) & handleGenMask
	a.free = append(a.free, h.index())
	a.count--
	return v, true
}

func (a *Arena[T]) Len() int { return a.count }

// Each visits live values in slot order until fn returns false.
func (a *Arena[T]) Each(fn func(Handle, T) bool) {
	for i := range a.slots {
		s := &a.slots[i]
		if !s.live {
			continue
		}
		if !fn(Handle(s.generation<<handleIndexBits|uint32(i+1)), s.value) {
			return
		}
	}
}
