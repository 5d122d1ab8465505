package antispam

import "time"

// mentionEvent is one message's worth of mentions from one sender
type mentionEvent struct {
	count     uint
	timestamp time.Time
	messageID string
}

// senderRecord tracks the mention history of a single sender
type senderRecord struct {
	events        []mentionEvent // Ordered by timestamp, oldest first
	totalMentions uint64         // Running sum, never decremented by pruning
	firstSeen     time.Time
}

// append adds an event, keeping events in non-decreasing timestamp order
func (r *senderRecord) append(ev mentionEvent) {
	if n := len(r.events); n > 0 && ev.timestamp.Before(r.events[n-1].timestamp) {
		ev.timestamp = r.events[n-1].timestamp
	}
	r.events = append(r.events, ev)
	r.totalMentions += uint64(ev.count)
}

// windowSum returns the mention and event counts inside (now-window, now]
func (r *senderRecord) windowSum(now time.Time, window time.Duration) (mentions uint64, events int) {
	start := now.Add(-window)
	for i := len(r.events) - 1; i >= 0; i-- {
		ev := r.events[i]
		if !ev.timestamp.After(start) {
			break
		}
		if ev.timestamp.After(now) {
			continue
		}
		mentions += uint64(ev.count)
		events++
	}
	return mentions, events
}

// prune drops events at or before cutoff and returns how many were dropped
func (r *senderRecord) prune(cutoff time.Time) int {
	kept := r.events[:0] // Reuse slice capacity
	for _, ev := range r.events {
		if ev.timestamp.After(cutoff) {
			kept = append(kept, ev)
		}
	}
	dropped := len(r.events) - len(kept)
	clear(r.events[len(kept):])
	r.events = kept
	return dropped
}
