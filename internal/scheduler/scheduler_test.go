package scheduler

import (
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestFallbackTicksWhileHidden(t *testing.T) {
	var n atomic.Int32
	s := New(func() bool { n.Add(1); return true }, WithHz(200))
	s.Start()
	waitFor(t, func() bool { return n.Load() >= 3 })
	s.Stop()

	after := n.Load()
	time.Sleep(30 * time.Millisecond)
	if got := n.Load(); got != after {
		t.Fatalf("ticked after Stop: %d then %d", after, got)
	}
}

func TestFramePathWhileVisible(t *testing.T) {
	var n atomic.Int32
	s := New(func() bool { n.Add(1); return true }, WithHz(200), WithVisible(true))

	s.Frame()
	if n.Load() != 0 {
		t.Fatal("frame ticked before Start")
	}
	s.Start()
	for i := 0; i < 3; i++ {
		s.Frame()
	}
	time.Sleep(30 * time.Millisecond)
	if got := n.Load(); got != 3 {
		t.Fatalf("expected only frame ticks, got %d", got)
	}
	s.Stop()
}

func TestSetVisibleSwitchesSource(t *testing.T) {
	var n atomic.Int32
	s := New(func() bool { n.Add(1); return true }, WithHz(200), WithVisible(true))
	s.Start()
	s.SetVisible(false)
	waitFor(t, func() bool { return n.Load() >= 2 })

	s.Frame()
	s.SetVisible(true)
	s.Stop()
	if s.Running() {
		t.Fatal("still running after Stop")
	}
}

func TestTickReturningFalseStops(t *testing.T) {
	var n atomic.Int32
	s := New(func() bool { return n.Add(1) < 2 }, WithHz(200))
	s.Start()
	waitFor(t, func() bool { return !s.Running() })
	time.Sleep(20 * time.Millisecond)
	if got := n.Load(); got != 2 {
		t.Fatalf("expected 2 ticks, got %d", got)
	}
	s.Stop()
}

func TestOverlappingTickIsDropped(t *testing.T) {
	var n atomic.Int32
	entered := make(chan struct{})
	release := make(chan struct{})
	s := New(func() bool {
		if n.Add(1) == 1 {
			close(entered)
			<-release
		}
		return true
	}, WithVisible(true))
	s.Start()

	go s.Frame()
	<-entered
	s.Frame()
	if got := n.Load(); got != 1 {
		t.Fatalf("overlapping tick ran: %d", got)
	}
	close(release)
	s.Stop()
}

func TestStopWaitsForInFlightTick(t *testing.T) {
	var finished atomic.Bool
	entered := make(chan struct{})
	s := New(func() bool {
		close(entered)
		time.Sleep(20 * time.Millisecond)
		finished.Store(true)
		return true
	}, WithVisible(true))
	s.Start()

	go s.Frame()
	<-entered
	s.Stop()
	if !finished.Load() {
		t.Fatal("Stop returned while a tick was running")
	}
}
