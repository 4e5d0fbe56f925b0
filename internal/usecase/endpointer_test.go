package usecase

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestEndpointerFiresWithSnapshot(t *testing.T) {
	t.Parallel()

	fired := make(chan string, 1)
	e := NewEndpointer(20*time.Millisecond,
		func() string { return "the answer" },
		func(text string) { fired <- text },
	)

	e.Arm()

	select {
	case text := <-fired:
		if text != "the answer" {
			t.Fatalf("unexpected end-of-turn text: %q", text)
		}
	case <-time.After(time.Second):
		t.Fatal("endpointer never fired")
	}
}

func TestEndpointerDisarmCancels(t *testing.T) {
	t.Parallel()

	var fires atomic.Int32
	e := NewEndpointer(20*time.Millisecond,
		func() string { return "draft" },
		func(string) { fires.Add(1) },
	)

	e.Arm()
	e.Disarm()

	time.Sleep(100 * time.Millisecond)
	if n := fires.Load(); n != 0 {
		t.Fatalf("disarmed endpointer fired %d times", n)
	}
}

func TestEndpointerEmptySnapshotDiscarded(t *testing.T) {
	t.Parallel()

	var fires atomic.Int32
	e := NewEndpointer(20*time.Millisecond,
		func() string { return "   " },
		func(string) { fires.Add(1) },
	)

	e.Arm()

	time.Sleep(100 * time.Millisecond)
	if n := fires.Load(); n != 0 {
		t.Fatalf("whitespace-only snapshot produced %d fires", n)
	}
}

func TestEndpointerRedundantArmsFireOnce(t *testing.T) {
	t.Parallel()

	var fires atomic.Int32
	e := NewEndpointer(20*time.Millisecond,
		func() string { return "draft" },
		func(string) { fires.Add(1) },
	)

	for i := 0; i < 10; i++ {
		e.Arm()
	}

	time.Sleep(150 * time.Millisecond)
	if n := fires.Load(); n != 1 {
		t.Fatalf("expected exactly one fire, got %d", n)
	}
}

func TestEndpointerRearmAfterFire(t *testing.T) {
	t.Parallel()

	fired := make(chan string, 2)
	e := NewEndpointer(20*time.Millisecond,
		func() string { return "again" },
		func(text string) { fired <- text },
	)

	e.Arm()
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("first fire never happened")
	}

	e.Arm()
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("second fire never happened")
	}
}
