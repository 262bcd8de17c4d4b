package suggest

import (
	"testing"
	"time"
)

func TestDebouncerFiresOnceAfterQuiescence(t *testing.T) {
	t.Parallel()

	rt := &fakeRuntime{}
	d := NewDebouncer(rt, 0)
	var fired []int

	for i := 0; i < 5; i++ {
		i := i
		d.Schedule(func() { fired = append(fired, i) })
		rt.Advance(DefaultDebounce - time.Millisecond)
	}
	if len(fired) != 0 {
		t.Fatalf("fired during burst: %v", fired)
	}
	rt.Advance(time.Millisecond)
	if len(fired) != 1 || fired[0] != 4 {
		t.Fatalf("expected only the last call to fire, got %v", fired)
	}
	if d.Fired() != 1 {
		t.Fatalf("Fired() = %d, want 1", d.Fired())
	}
}

func TestDebouncerDropsTimerThatCouldNotBeStopped(t *testing.T) {
	t.Parallel()

	rt := &fakeRuntime{ignoreStop: true}
	d := NewDebouncer(rt, 10*time.Millisecond)
	var fired []string

	d.Schedule(func() { fired = append(fired, "first") })
	d.Schedule(func() { fired = append(fired, "second") })
	rt.Advance(10 * time.Millisecond)

	if len(fired) != 1 || fired[0] != "second" {
		t.Fatalf("expected only the superseding call, got %v", fired)
	}
}

func TestDebouncerCancel(t *testing.T) {
	t.Parallel()

	rt := &fakeRuntime{}
	d := NewDebouncer(rt, 10*time.Millisecond)
	called := false
	d.Schedule(func() { called = true })
	d.Cancel()
	rt.Advance(time.Second)
	if called {
		t.Fatalf("cancelled call fired")
	}
}
