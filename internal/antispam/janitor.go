package antispam

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// SweepResult summarizes one janitor pass
type SweepResult struct {
	PrunedEvents   int `json:"pruned_events"`
	RemovedSenders int `json:"removed_senders"`
	Remaining      int `json:"remaining"`
}

// Sweep drops events older than the retention horizon and forgets senders left without events.
// Forgetting a sender also clears its warnings, even if the sender is currently blocked.
// Blocks themselves are left alone and run out on their own.
func (e *Engine) Sweep() SweepResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.clock.Now().Add(-e.cfg.Retention)

	var res SweepResult
	for sender, rec := range e.senders {
		res.PrunedEvents += rec.prune(cutoff)
		if len(rec.events) == 0 {
			delete(e.senders, sender)
			delete(e.warnings, sender)
			res.RemovedSenders++
		}
	}
	res.Remaining = len(e.senders)

	return res
}

// Run sweeps every CleanupInterval until ctx is done or the engine is closed
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("Starting anti-spam janitor", zap.Duration("interval", e.cleanupInterval()))
	e.sweepAndLog()

	for {
		ticker := e.clock.NewTicker(e.cleanupInterval())
		done := e.runTicker(ctx, ticker)
		ticker.Stop()
		if done {
			e.logger.Info("Stopped anti-spam janitor")
			return nil
		}
		e.logger.Debug("Re-arming anti-spam janitor", zap.Duration("interval", e.cleanupInterval()))
	}
}

// runTicker sweeps on every tick. It returns true when the janitor should stop
// and false when the interval changed.
func (e *Engine) runTicker(ctx context.Context, ticker clockwork.Ticker) bool {
	for {
		select {
		case <-ticker.Chan():
			e.sweepAndLog()
		case <-e.reconfigure:
			return false
		case <-e.stop:
			return true
		case <-ctx.Done():
			return true
		}
	}
}

func (e *Engine) sweepAndLog() {
	res := e.Sweep()
	if res.PrunedEvents > 0 || res.RemovedSenders > 0 {
		e.logger.Debug("Anti-spam sweep",
			zap.Int("prunedEvents", res.PrunedEvents),
			zap.Int("removedSenders", res.RemovedSenders),
			zap.Int("remaining", res.Remaining))
	}
}

func (e *Engine) cleanupInterval() time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg.CleanupInterval
}
