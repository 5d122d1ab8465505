package antispam

import (
	"errors"
	"fmt"
	"time"
)

const (
	// minuteWindow and hourWindow are the fixed sliding windows used by the threshold rules
	minuteWindow = 60 * time.Second
	hourWindow   = time.Hour
	// dayWindow is only used for statistics
	dayWindow = 24 * time.Hour
)

// Default configuration values.
const (
	DefaultMaxMentions          = 5
	DefaultMaxMentionsPerMinute = 3
	DefaultMaxMentionsPerHour   = 10
	DefaultWarningThreshold     = 2
	DefaultBlockDuration        = 300 * time.Second
	DefaultCleanupInterval      = 60 * time.Second
	DefaultRetention            = time.Hour
	DefaultReportTopN           = 5
)

var (
	// ErrInvalidEvent is returned when a mention event is missing its sender or timestamp.
	ErrInvalidEvent = errors.New("invalid mention event")
	// ErrInvalidConfig is returned when a configuration or patch fails validation.
	ErrInvalidConfig = errors.New("invalid anti-spam configuration")
)

// Config holds the thresholds and timings of the engine.
type Config struct {
	MaxMentions          uint          // Lifetime mention cap per sender
	MaxMentionsPerMinute uint          // Mentions allowed in the last 60 seconds
	MaxMentionsPerHour   uint          // Mentions allowed in the last hour
	WarningThreshold     uint          // Warnings issued before a trip becomes a block
	BlockDuration        time.Duration // How long a block lasts
	CleanupInterval      time.Duration // Janitor period
	Retention            time.Duration // Age after which events are pruned
	ReportTopN           int           // Size of the top spammer ranking
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{
		MaxMentions:          DefaultMaxMentions,
		MaxMentionsPerMinute: DefaultMaxMentionsPerMinute,
		MaxMentionsPerHour:   DefaultMaxMentionsPerHour,
		WarningThreshold:     DefaultWarningThreshold,
		BlockDuration:        DefaultBlockDuration,
		CleanupInterval:      DefaultCleanupInterval,
		Retention:            DefaultRetention,
		ReportTopN:           DefaultReportTopN,
	}
}

// Validate checks that the timings are usable.
// Retention must cover the per-hour window, otherwise the janitor would prune events
// the per-hour rule still needs.
func (c Config) Validate() error {
	switch {
	case c.BlockDuration <= 0:
		return fmt.Errorf("%w: block duration must be positive, got %s", ErrInvalidConfig, c.BlockDuration)
	case c.CleanupInterval <= 0:
		return fmt.Errorf("%w: cleanup interval must be positive, got %s", ErrInvalidConfig, c.CleanupInterval)
	case c.Retention < hourWindow:
		return fmt.Errorf("%w: retention must be at least %s, got %s", ErrInvalidConfig, hourWindow, c.Retention)
	case c.ReportTopN <= 0:
		return fmt.Errorf("%w: report size must be positive, got %d", ErrInvalidConfig, c.ReportTopN)
	}
	return nil
}

// ConfigPatch is a partial configuration. Nil fields are left untouched by Apply.
type ConfigPatch struct {
	MaxMentions          *uint
	MaxMentionsPerMinute *uint
	MaxMentionsPerHour   *uint
	WarningThreshold     *uint
	BlockDuration        *time.Duration
	CleanupInterval      *time.Duration
	Retention            *time.Duration
	ReportTopN           *int
}

// Apply returns a copy of c with the non-nil fields of p merged in.
func (c Config) Apply(p ConfigPatch) Config {
	if p.MaxMentions != nil {
		c.MaxMentions = *p.MaxMentions
	}
	if p.MaxMentionsPerMinute != nil {
		c.MaxMentionsPerMinute = *p.MaxMentionsPerMinute
	}
	if p.MaxMentionsPerHour != nil {
		c.MaxMentionsPerHour = *p.MaxMentionsPerHour
	}
	if p.WarningThreshold != nil {
		c.WarningThreshold = *p.WarningThreshold
	}
	if p.BlockDuration != nil {
		c.BlockDuration = *p.BlockDuration
	}
	if p.CleanupInterval != nil {
		c.CleanupInterval = *p.CleanupInterval
	}
	if p.Retention != nil {
		c.Retention = *p.Retention
	}
	if p.ReportTopN != nil {
		c.ReportTopN = *p.ReportTopN
	}
	return c
}

// Merge combines two patches, fields set in o win.
func (p ConfigPatch) Merge(o ConfigPatch) ConfigPatch {
	if o.MaxMentions != nil {
		p.MaxMentions = o.MaxMentions
	}
	if o.MaxMentionsPerMinute != nil {
		p.MaxMentionsPerMinute = o.MaxMentionsPerMinute
	}
	if o.MaxMentionsPerHour != nil {
		p.MaxMentionsPerHour = o.MaxMentionsPerHour
	}
	if o.WarningThreshold != nil {
		p.WarningThreshold = o.WarningThreshold
	}
	if o.BlockDuration != nil {
		p.BlockDuration = o.BlockDuration
	}
	if o.CleanupInterval != nil {
		p.CleanupInterval = o.CleanupInterval
	}
	if o.Retention != nil {
		p.Retention = o.Retention
	}
	if o.ReportTopN != nil {
		p.ReportTopN = o.ReportTopN
	}
	return p
}
