package containers

// Ring cycles through a fixed set of values.
type Ring[T any] struct {
	data  []T
	index int
}

// NewRing creates a ring over values. The ring starts before the first value,
// so the first Next returns values[0].
func NewRing[T any](values []T) *Ring[T] {
	return &Ring[T]{data: values, index: -1}
}

// Next advances the ring and returns the new current value.
func (r *Ring[T]) Next() T {
	r.index = (r.index + 1) % len(r.data)
	return r.data[r.index]
}

// Current returns the value last returned by Next.
func (r *Ring[T]) Current() T {
	if r.index < 0 {
		return r.data[0]
	}
	return r.data[r.index]
}

func (r *Ring[T]) Index() int { return r.index }

func (r *Ring[T]) Len() int { return len(r.data) }

// Values exposes the backing slice for teardown.
func (r *Ring[T]) Values() []T { return r.data }
