package pool

import (
	"context"
	"sync"
	"time"
)

// ReclaimerState is the idle reclaimer's lifecycle state.
type ReclaimerState int

const (
	ReclaimerStopped ReclaimerState = iota
	ReclaimerRunning
)

func (s ReclaimerState) String() string {
	if s == ReclaimerRunning {
		return "running"
	}
	return "stopped"
}

// reclaimer tracks the background sweep goroutine. run identifies the
// current goroutine so that one which has been superseded cannot mark a
// newer run stopped.
type reclaimer struct {
	mu     sync.Mutex
	state  ReclaimerState
	run    uint64
	cancel context.CancelFunc
	done   chan struct{}
}

// ReclaimerState reports whether the idle reclaimer is running.
func (r *Registry) ReclaimerState() ReclaimerState {
	r.rec.mu.Lock()
	defer r.rec.mu.Unlock()
	return r.rec.state
}

// StartReclaimer starts the idle reclaimer. It is a no-op while running.
func (r *Registry) StartReclaimer() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.startReclaimerLocked()
}

// startReclaimerLocked requires r.mu.
func (r *Registry) startReclaimerLocked() {
	r.rec.mu.Lock()
	defer r.rec.mu.Unlock()
	if r.rec.state == ReclaimerRunning {
		return
	}

	r.rec.run++
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	r.rec.state = ReclaimerRunning
	r.rec.cancel = cancel
	r.rec.done = done

	go r.reclaim(ctx, r.rec.run, done)

	r.metrics.ReclaimerRunning(true)
	r.log.With().Dur("interval", r.cfg.CleanupInterval).Logger().Debug("idle reclaimer started")
}

// reclaim sleeps for the configured interval, sweeps, and repeats until
// the registry is empty or ctx is cancelled. Cancellation during the sleep
// exits without a final sweep.
func (r *Registry) reclaim(ctx context.Context, run uint64, done chan struct{}) {
	defer close(done)

	for {
		r.mu.Lock()
		interval := r.cfg.CleanupInterval
		r.mu.Unlock()
		if interval <= 0 {
			interval = DefaultCleanupInterval
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			r.markStopped(run)
			return
		case <-timer.C:
		}

		r.mu.Lock()
		if r.sweepLocked() == 0 {
			// Stopping under r.mu means a request that registers a new
			// pool after this point sees Stopped and starts a new run.
			stopped := r.markStopped(run)
			r.mu.Unlock()
			if stopped {
				r.log.Debug("registry empty, idle reclaimer stopped")
			}
			return
		}
		r.mu.Unlock()
	}
}

// markStopped transitions run to Stopped if it is still the current run.
func (r *Registry) markStopped(run uint64) bool {
	r.rec.mu.Lock()
	defer r.rec.mu.Unlock()
	if r.rec.run != run || r.rec.state != ReclaimerRunning {
		return false
	}
	r.rec.state = ReclaimerStopped
	r.rec.cancel()
	r.metrics.ReclaimerRunning(false)
	return true
}

// stopReclaimer cancels the running goroutine and waits for it to exit.
// It must not be called with r.mu held: the goroutine may be waiting on it.
func (r *Registry) stopReclaimer() {
	r.rec.mu.Lock()
	if r.rec.state != ReclaimerRunning {
		r.rec.mu.Unlock()
		return
	}
	cancel, done := r.rec.cancel, r.rec.done
	r.rec.state = ReclaimerStopped
	r.rec.run++
	r.rec.mu.Unlock()

	cancel()
	<-done
	r.metrics.ReclaimerRunning(false)
	r.log.Debug("idle reclaimer stopped")
}
