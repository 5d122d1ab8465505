// Package store provides message deduplication and persistent bot settings.
package store

import (
	"fmt"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	lru "github.com/hashicorp/golang-lru/v2"
)

// MessageDedup remembers recently seen messages so redelivered events are processed once.
// A Bloom filter answers most "never seen" lookups without touching the LRU.
type MessageDedup struct {
	mutex                  sync.Mutex
	bloom                  *bloom.BloomFilter
	lru                    *lru.Cache[string, struct{}]
	capacity               int
	bloomFalsePositiveRate float64
	evictions              int
}

// NewMessageDedup creates a store remembering up to capacity messages
func NewMessageDedup(capacity int, bloomFalsePositiveRate float64) (*MessageDedup, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("dedup capacity must be positive, got %d", capacity)
	}
	if bloomFalsePositiveRate <= 0 || bloomFalsePositiveRate >= 1 {
		return nil, fmt.Errorf("bloom false positive rate must be in (0, 1), got %g", bloomFalsePositiveRate)
	}

	d := &MessageDedup{
		capacity:               capacity,
		bloomFalsePositiveRate: bloomFalsePositiveRate,
	}

	cache, err := lru.NewWithEvict[string, struct{}](capacity, func(string, struct{}) {
		d.evictions++
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create dedup cache: %w", err)
	}
	d.lru = cache
	d.bloom = d.newBloom()

	return d, nil
}

func messageKey(chatID, messageID string) string {
	return chatID + "/" + messageID
}

// Seen reports whether the message was seen before and records it otherwise
func (d *MessageDedup) Seen(chatID, messageID string) bool {
	key := messageKey(chatID, messageID)

	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.bloom.TestString(key) && d.lru.Contains(key) {
		return true
	}

	d.bloom.AddString(key)
	d.lru.Add(key, struct{}{})

	// Evicted keys stay in the filter, rebuild it once a full generation has turned over
	if d.evictions >= d.capacity {
		d.rebuildBloom()
	}

	return false
}

// Size returns the number of remembered messages
func (d *MessageDedup) Size() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.lru.Len()
}

func (d *MessageDedup) newBloom() *bloom.BloomFilter {
	return bloom.NewWithEstimates(uint(d.capacity), d.bloomFalsePositiveRate)
}

func (d *MessageDedup) rebuildBloom() {
	d.bloom = d.newBloom()
	for _, key := range d.lru.Keys() {
		d.bloom.AddString(key)
	}
	d.evictions = 0
}
