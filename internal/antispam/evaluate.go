package antispam

import "time"

// evaluate returns the rules the sender currently exceeds. An empty result means no action.
func evaluate(rec *senderRecord, now time.Time, cfg Config) []Rule {
	var tripped []Rule

	if rec.totalMentions > uint64(cfg.MaxMentions) {
		tripped = append(tripped, RuleLifetime)
	}

	if perMinute, _ := rec.windowSum(now, minuteWindow); perMinute > uint64(cfg.MaxMentionsPerMinute) {
		tripped = append(tripped, RulePerMinute)
	}

	if perHour, _ := rec.windowSum(now, hourWindow); perHour > uint64(cfg.MaxMentionsPerHour) {
		tripped = append(tripped, RulePerHour)
	}

	return tripped
}

// escalate decides between warn and block given the warnings already issued.
// It returns the warning count to store and whether the sender must be blocked.
func escalate(warnings uint, cfg Config) (uint, bool) {
	if warnings >= cfg.WarningThreshold {
		return warnings, true
	}
	return warnings + 1, false
}
