package containers

import "testing"

func TestArenaInsertGetRemove(t *testing.T) {
	a := NewArena[string](4)

	h1 := a.Insert("render pass")
	h2 := a.Insert("pipeline")
	if h1.IsNull() || h2.IsNull() {
		t.Fatal("Insert returned a null handle")
	}
	if h1 == h2 {
		t.Fatal("handles collide")
	}
	if v, ok := a.Get(h2); !ok || v != "pipeline" {
		t.Fatalf("Get(h2) = %q, %v", v, ok)
	}
	if a.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", a.Len())
	}

	if v, ok := a.Remove(h1); !ok || v != "render pass" {
		t.Fatalf("Remove(h1) = %q, %v", v, ok)
	}
	if _, ok := a.Get(h1); ok {
		t.Fatal("removed handle still resolves")
	}
	if _, ok := a.Remove(h1); ok {
		t.Fatal("double remove succeeded")
	}
}

func TestArenaStaleHandleAfterReuse(t *testing.T) {
	a := NewArena[int](1)
	old := a.Insert(1)
	a.Remove(old)
	fresh := a.Insert(2)

	if old.index() != fresh.index() {
		t.Fatalf("slot not reused: %v vs %v", old, fresh)
	}
	if old == fresh {
		t.Fatal("reused slot kept the same generation")
	}
	if _, ok := a.Get(old); ok {
		t.Fatal("stale handle resolved to the new value")
	}
	if v, _ := a.Get(fresh); v != 2 {
		t.Fatalf("Get(fresh) = %d, want 2", v)
	}
}

func TestArenaNullAndForeignHandles(t *testing.T) {
	a := NewArena[int](0)
	if _, ok := a.Get(0); ok {
		t.Fatal("null handle resolved")
	}
	if a.Contains(Handle(12345)) {
		t.Fatal("out of range handle resolved")
	}
	if Handle(0).String() != "null" {
		t.Fatalf("String() = %q", Handle(0).String())
	}
}

func TestArenaEach(t *testing.T) {
	a := NewArena[int](3)
	var hs []Handle
	for i := 0; i < 5; i++ {
		hs = append(hs, a.Insert(i))
	}
	a.Remove(hs[1])
	a.Remove(hs[3])

	sum := 0
	a.Each(func(h Handle, v int) bool {
		if got, _ := a.Get(h); got != v {
			t.Errorf("Each handle %v maps to %d, want %d", h, got, v)
		}
		sum += v
		return true
	})
	if sum != 0+2+4 {
		t.Fatalf("sum = %d, want 6", sum)
	}

	visited := 0
	a.Each(func(Handle, int) bool {
		visited++
		return false
	})
	if visited != 1 {
		t.Fatalf("visited = %d, want 1", visited)
	}
}
