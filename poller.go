package main

import (
	"context"
	"sync"
	"time"
)

// poller drives a refresh callback on a fixed wall-clock period. Ticks are
// paced by the ticker, not by callback completion, so a slow backend call can
// overlap the next tick; callbacks get a context that is cancelled on Stop
// and must tolerate overlapping in-flight invocations.
type poller struct {
	name string

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func newPoller(name string) *poller {
	return &poller{name: name}
}

// Start begins firing fn every interval. Starting an already-running poller
// is a no-op and returns false; this protects against duplicate polling when
// a view is re-entered before its teardown completed.
func (p *poller) Start(interval time.Duration, fn func(ctx context.Context)) bool {
	if interval <= 0 || fn == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		logger.Debug("poller already running", "poller", p.name)
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			if ctx.Err() != nil {
				return
			}
			go fn(ctx)
		}
	}()
	return true
}

// Stop is idempotent. After it returns no further callback firings occur;
// an invocation already in flight sees its context cancelled.
func (p *poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	done := p.done
	p.cancel = nil
	p.done = nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the poller currently has an active ticker.
func (p *poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}
