// Package antispam detects mention spam and escalates offending senders from warnings to timed blocks.
package antispam

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Engine tracks mention activity per sender and decides on enforcement.
// All state lives in memory and is guarded by a single lock.
type Engine struct {
	clock  clockwork.Clock
	logger *zap.Logger

	mu       sync.RWMutex
	cfg      Config
	senders  map[string]*senderRecord
	warnings map[string]uint
	blocks   map[string]*blockEntry

	reconfigure chan struct{}
	stop        chan struct{}
	closeOnce   sync.Once
}

// New creates an engine. A nil clock falls back to the real clock, a nil logger to a no-op logger.
func New(cfg Config, clock clockwork.Clock, logger *zap.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		clock:       clock,
		logger:      logger,
		cfg:         cfg,
		senders:     make(map[string]*senderRecord),
		warnings:    make(map[string]uint),
		blocks:      make(map[string]*blockEntry),
		reconfigure: make(chan struct{}, 1),
		stop:        make(chan struct{}),
	}, nil
}

// RecordMention records a message carrying mentionCount mentions and returns the verdict.
// A zero mentionCount is a no-op.
func (e *Engine) RecordMention(sender string, mentionCount uint, timestamp time.Time, messageID string) (Verdict, error) {
	if sender == "" {
		return Verdict{}, fmt.Errorf("%w: empty sender", ErrInvalidEvent)
	}
	if timestamp.IsZero() {
		return Verdict{}, fmt.Errorf("%w: zero timestamp for sender %s", ErrInvalidEvent, sender)
	}
	if mentionCount == 0 {
		return Verdict{Action: ActionNone}, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	if timestamp.After(now) {
		timestamp = now
	}

	rec, exists := e.senders[sender]
	if !exists {
		rec = &senderRecord{firstSeen: timestamp}
		e.senders[sender] = rec
	}
	rec.append(mentionEvent{count: mentionCount, timestamp: timestamp, messageID: messageID})

	rules := evaluate(rec, now, e.cfg)
	if len(rules) == 0 {
		return Verdict{Action: ActionNone}, nil
	}

	warnings, block := escalate(e.warnings[sender], e.cfg)
	e.warnings[sender] = warnings

	if block {
		e.blockLocked(sender, e.cfg.BlockDuration, now)
		e.logger.Info("Blocked sender for mention spam",
			zap.String("sender", sender),
			zap.String("messageId", messageID),
			zap.Uint("warnings", warnings),
			zap.Duration("duration", e.cfg.BlockDuration),
			zap.Any("rules", rules))
		return Verdict{
			Action:       ActionBlock,
			WarningCount: warnings,
			Duration:     e.cfg.BlockDuration,
			Rules:        rules,
		}, nil
	}

	e.logger.Info("Warned sender for mention spam",
		zap.String("sender", sender),
		zap.String("messageId", messageID),
		zap.Uint("warnings", warnings),
		zap.Uint("threshold", e.cfg.WarningThreshold),
		zap.Any("rules", rules))
	return Verdict{
		Action:       ActionWarn,
		WarningCount: warnings,
		Rules:        rules,
	}, nil
}

// WarningCount returns the number of warnings issued to the sender
func (e *Engine) WarningCount(sender string) uint {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.warnings[sender]
}

// ResetSender forgets everything known about a sender, including an active block
func (e *Engine) ResetSender(sender string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if entry, ok := e.blocks[sender]; ok {
		entry.stop()
		delete(e.blocks, sender)
	}
	delete(e.senders, sender)
	delete(e.warnings, sender)

	e.logger.Info("Reset sender", zap.String("sender", sender))
}

// Config returns a snapshot of the live configuration
func (e *Engine) Config() Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

// UpdateConfig merges the patch into the live configuration.
// The new values apply from the next evaluation. Existing blocks keep their expiry.
func (e *Engine) UpdateConfig(patch ConfigPatch) error {
	e.mu.Lock()
	next := e.cfg.Apply(patch)
	if err := next.Validate(); err != nil {
		e.mu.Unlock()
		return err
	}
	intervalChanged := next.CleanupInterval != e.cfg.CleanupInterval
	e.cfg = next
	e.mu.Unlock()

	if intervalChanged {
		select {
		case e.reconfigure <- struct{}{}:
		default:
		}
	}

	e.logger.Info("Updated anti-spam configuration",
		zap.Uint("maxMentions", next.MaxMentions),
		zap.Uint("maxMentionsPerMinute", next.MaxMentionsPerMinute),
		zap.Uint("maxMentionsPerHour", next.MaxMentionsPerHour),
		zap.Uint("warningThreshold", next.WarningThreshold),
		zap.Duration("blockDuration", next.BlockDuration),
		zap.Duration("cleanupInterval", next.CleanupInterval))
	return nil
}

// Close stops the janitor and all pending block timers. Safe to call more than once.
// Blocks stay queryable afterwards through their expiry instant.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		close(e.stop)

		e.mu.Lock()
		defer e.mu.Unlock()
		for _, entry := range e.blocks {
			entry.stop()
		}
	})
}
