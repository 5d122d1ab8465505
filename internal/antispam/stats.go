package antispam

import (
	"sort"
	"time"
)

// Stats is an aggregate view of the engine state
type Stats struct {
	TotalSenders     int    `json:"total_senders"`
	ActiveSenders1h  int    `json:"active_senders_1h"`
	ActiveSenders24h int    `json:"active_senders_24h"`
	Mentions1h       uint64 `json:"mentions_1h"`
	Mentions24h      uint64 `json:"mentions_24h"`
	BlockedSenders   int    `json:"blocked_senders"`
	WarnedSenders    int    `json:"warned_senders"`
}

// SenderSummary is one row of the spam report
type SenderSummary struct {
	Sender         string    `json:"sender"`
	TotalMentions  uint64    `json:"total_mentions"`
	RecentMentions int       `json:"recent_mentions"`
	WarningCount   uint      `json:"warning_count"`
	Blocked        bool      `json:"blocked"`
	FirstSeen      time.Time `json:"first_seen"`
}

// Report lists the heaviest mentioners alongside the global counters
type Report struct {
	TotalSenders   int             `json:"total_senders"`
	BlockedSenders int             `json:"blocked_senders"`
	WarnedSenders  int             `json:"warned_senders"`
	TopSpammers    []SenderSummary `json:"top_spammers"`
	GeneratedAt    time.Time       `json:"generated_at"`
}

// Statistics returns the current counters
func (e *Engine) Statistics() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	now := e.clock.Now()
	stats := Stats{
		TotalSenders:   len(e.senders),
		BlockedSenders: e.liveBlocksLocked(now),
		WarnedSenders:  e.warnedSendersLocked(),
	}

	for _, rec := range e.senders {
		if mentions, events := rec.windowSum(now, hourWindow); events > 0 {
			stats.ActiveSenders1h++
			stats.Mentions1h += mentions
		}
		if mentions, events := rec.windowSum(now, dayWindow); events > 0 {
			stats.ActiveSenders24h++
			stats.Mentions24h += mentions
		}
	}

	return stats
}

// SpamReport ranks senders by lifetime mentions, ties broken by sender id
func (e *Engine) SpamReport() Report {
	e.mu.RLock()
	defer e.mu.RUnlock()

	now := e.clock.Now()
	summaries := make([]SenderSummary, 0, len(e.senders))
	for sender, rec := range e.senders {
		_, recent := rec.windowSum(now, hourWindow)
		entry, blocked := e.blocks[sender]
		summaries = append(summaries, SenderSummary{
			Sender:         sender,
			TotalMentions:  rec.totalMentions,
			RecentMentions: recent,
			WarningCount:   e.warnings[sender],
			Blocked:        blocked && entry.live(now),
			FirstSeen:      rec.firstSeen,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].TotalMentions != summaries[j].TotalMentions {
			return summaries[i].TotalMentions > summaries[j].TotalMentions
		}
		return summaries[i].Sender < summaries[j].Sender
	})
	if len(summaries) > e.cfg.ReportTopN {
		summaries = summaries[:e.cfg.ReportTopN]
	}

	return Report{
		TotalSenders:   len(e.senders),
		BlockedSenders: e.liveBlocksLocked(now),
		WarnedSenders:  e.warnedSendersLocked(),
		TopSpammers:    summaries,
		GeneratedAt:    now,
	}
}

func (e *Engine) warnedSendersLocked() int {
	count := 0
	for _, n := range e.warnings {
		if n > 0 {
			count++
		}
	}
	return count
}
