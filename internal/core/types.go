package core

import (
	"context"
	"time"
)

// MetricsRecorder receives pipeline measurements
type MetricsRecorder interface {
	RecordMessage(status string)
	RecordVerdict(action string)
	RecordCommand(command, status string)
	RecordError(component, errorType string)
	RecordProcessingTime(duration time.Duration)
}

// DedupStore remembers which messages were already handled
type DedupStore interface {
	// Seen reports whether the message was handled before and records it otherwise
	Seen(chatID, messageID string) bool
	// Size returns the number of remembered messages
	Size() int
}

// SettingsStore persists runtime overrides made through chat commands
type SettingsStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	All(ctx context.Context) (map[string]string, error)
}

type nopMetrics struct{}

func (nopMetrics) RecordMessage(string)               {}
func (nopMetrics) RecordVerdict(string)               {}
func (nopMetrics) RecordCommand(string, string)       {}
func (nopMetrics) RecordError(string, string)         {}
func (nopMetrics) RecordProcessingTime(time.Duration) {}
