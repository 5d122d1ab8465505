package antispam

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// blockEntry is a live block. The pointer identity doubles as the generation checked by the timer.
type blockEntry struct {
	expiry time.Time
	timer  clockwork.Timer
}

func (b *blockEntry) stop() {
	if b.timer != nil {
		b.timer.Stop()
	}
}

func (b *blockEntry) live(now time.Time) bool {
	return now.Before(b.expiry)
}

// blockLocked inserts or refreshes a block. Caller must hold the write lock.
func (e *Engine) blockLocked(sender string, duration time.Duration, now time.Time) {
	if prev, ok := e.blocks[sender]; ok {
		prev.stop()
	}

	entry := &blockEntry{expiry: now.Add(duration)}
	entry.timer = e.clock.AfterFunc(duration, func() {
		e.expireBlock(sender, entry)
	})
	e.blocks[sender] = entry
}

// expireBlock removes the block only if it is still the one the timer was armed for
func (e *Engine) expireBlock(sender string, entry *blockEntry) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if current, ok := e.blocks[sender]; ok && current == entry {
		delete(e.blocks, sender)
	}
}

// IsBlocked reports whether the sender is currently blocked
func (e *Engine) IsBlocked(sender string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	entry, ok := e.blocks[sender]
	return ok && entry.live(e.clock.Now())
}

// BlockedUntil returns the expiry of the sender's live block
func (e *Engine) BlockedUntil(sender string) (time.Time, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	entry, ok := e.blocks[sender]
	if !ok || !entry.live(e.clock.Now()) {
		return time.Time{}, false
	}
	return entry.expiry, true
}

// liveBlocksLocked counts blocks that have not expired yet. Caller must hold a lock.
func (e *Engine) liveBlocksLocked(now time.Time) int {
	count := 0
	for _, entry := range e.blocks {
		if entry.live(now) {
			count++
		}
	}
	return count
}
