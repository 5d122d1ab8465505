package antispam

import "time"

// Action is the enforcement decision for a single mention event.
type Action int

const (
	// ActionNone means the sender is within all limits
	ActionNone Action = iota
	// ActionWarn means a limit was exceeded and the sender gets a warning
	ActionWarn
	// ActionBlock means a limit was exceeded after enough warnings
	ActionBlock
)

func (a Action) String() string {
	switch a {
	case ActionWarn:
		return "warn"
	case ActionBlock:
		return "block"
	default:
		return "none"
	}
}

// Rule identifies which threshold tripped.
type Rule string

// Threshold rules, evaluated independently.
const (
	RuleLifetime  Rule = "lifetime"
	RulePerMinute Rule = "per_minute"
	RulePerHour   Rule = "per_hour"
)

// Verdict is the result of recording a mention event.
// WarningCount is set for warn verdicts (and carries the retained count on blocks),
// Duration is set for block verdicts. Rules lists the tripped thresholds for diagnostics.
type Verdict struct {
	Action       Action
	WarningCount uint
	Duration     time.Duration
	Rules        []Rule
}

// DurationSeconds returns the block duration in whole seconds.
func (v Verdict) DurationSeconds() uint {
	return uint(v.Duration / time.Second)
}

// Tripped reports whether the verdict requires action.
func (v Verdict) Tripped() bool {
	return v.Action != ActionNone
}
