package main

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPollerFiresAndStops(t *testing.T) {
	var ticks atomic.Int64
	p := newPoller("test")
	if !p.Start(10*time.Millisecond, func(ctx context.Context) {
		ticks.Add(1)
	}) {
		t.Fatal("Start returned false on first call")
	}

	deadline := time.After(2 * time.Second)
	for ticks.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("poller fired %d times, want >= 3", ticks.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}

	p.Stop()
	after := ticks.Load()
	time.Sleep(50 * time.Millisecond)
	if got := ticks.Load(); got != after {
		t.Errorf("poller fired after Stop: %d -> %d", after, got)
	}
}

func TestPollerDoubleStartNoOp(t *testing.T) {
	var ticks atomic.Int64
	p := newPoller("test")
	defer p.Stop()

	if !p.Start(10*time.Millisecond, func(ctx context.Context) { ticks.Add(1) }) {
		t.Fatal("first Start returned false")
	}
	if p.Start(time.Millisecond, func(ctx context.Context) { ticks.Add(100) }) {
		t.Fatal("second Start returned true, want no-op")
	}

	time.Sleep(60 * time.Millisecond)
	if ticks.Load() >= 100 {
		t.Error("second Start's callback ran; duplicate loop leaked")
	}
}

func TestPollerStopIdempotent(t *testing.T) {
	p := newPoller("test")
	p.Start(time.Hour, func(ctx context.Context) {})
	p.Stop()
	p.Stop() // must not panic or hang
	if p.Running() {
		t.Error("Running() = true after Stop")
	}
}

func TestPollerStopWithoutStart(t *testing.T) {
	p := newPoller("test")
	p.Stop() // no-op
}

func TestPollerRapidRestart(t *testing.T) {
	var ticks atomic.Int64
	p := newPoller("test")
	for i := 0; i < 5; i++ {
		if !p.Start(5*time.Millisecond, func(ctx context.Context) { ticks.Add(1) }) {
			t.Fatalf("Start %d returned false", i)
		}
		time.Sleep(12 * time.Millisecond)
		p.Stop()
	}
	if ticks.Load() == 0 {
		t.Error("no ticks across restarts")
	}
	if p.Running() {
		t.Error("still running after final Stop")
	}
}

func TestPollerCallbackContextCancelledOnStop(t *testing.T) {
	cancelled := make(chan struct{})
	var once sync.Once
	p := newPoller("test")
	p.Start(5*time.Millisecond, func(ctx context.Context) {
		<-ctx.Done()
		once.Do(func() { close(cancelled) })
	})
	time.Sleep(20 * time.Millisecond)
	p.Stop()
	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("callback context not cancelled by Stop")
	}
}
