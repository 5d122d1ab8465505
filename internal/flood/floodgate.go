// Package flood throttles bot replies so enforcement notices cannot flood a chat themselves.
package flood

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

const (
	// windowDuration is the period the limit applies to (always 1 minute)
	windowDuration = 60 * time.Second
	// maxTrackedKeys bounds the number of chats tracked at once; the least recently used chat is evicted
	maxTrackedKeys = 4096
)

// Floodgate provides per-key token buckets that refill limitPerMinute tokens every minute
type Floodgate struct {
	limitPerMinute int
	clock          clockwork.Clock
	mutex          sync.Mutex // serializes get-or-create of limiters
	limiters       *lru.Cache[string, *rate.Limiter]
}

// New creates a new Floodgate. A limit of zero or less disables throttling.
func New(limitPerMinute int, clock clockwork.Clock) *Floodgate {
	return newFloodgate(limitPerMinute, clock, maxTrackedKeys)
}

func newFloodgate(limitPerMinute int, clock clockwork.Clock, capacity int) *Floodgate {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	// lru.New only fails for a non-positive size
	limiters, err := lru.New[string, *rate.Limiter](max(capacity, 1))
	if err != nil {
		panic(err)
	}

	return &Floodgate{
		limitPerMinute: limitPerMinute,
		clock:          clock,
		limiters:       limiters,
	}
}

// Allow reports whether another reply may be sent for key, consuming a token if so
func (fg *Floodgate) Allow(key string) bool {
	if fg.limitPerMinute <= 0 {
		return true
	}

	return fg.limiter(key).AllowN(fg.clock.Now(), 1)
}

func (fg *Floodgate) limiter(key string) *rate.Limiter {
	fg.mutex.Lock()
	defer fg.mutex.Unlock()

	if lim, ok := fg.limiters.Get(key); ok {
		return lim
	}

	every := windowDuration / time.Duration(fg.limitPerMinute)
	lim := rate.NewLimiter(rate.Every(every), fg.limitPerMinute)
	fg.limiters.Add(key, lim)
	return lim
}

// GetStats returns statistics about the floodgate for monitoring/debugging
func (fg *Floodgate) GetStats() Stats {
	return Stats{
		ActiveKeys:     fg.limiters.Len(),
		LimitPerMinute: fg.limitPerMinute,
		WindowSeconds:  int(windowDuration.Seconds()),
	}
}

// Stats contains floodgate statistics
type Stats struct {
	ActiveKeys     int `json:"active_keys"`
	LimitPerMinute int `json:"limit_per_minute"`
	WindowSeconds  int `json:"window_seconds"`
}
