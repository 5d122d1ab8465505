package antispam

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

var testEpoch = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

// newTestEngine returns an engine on a fake clock and a function advancing that clock
func newTestEngine(t *testing.T, cfg Config) (*Engine, func(time.Duration)) {
	t.Helper()

	clock := clockwork.NewFakeClockAt(testEpoch)
	e, err := New(cfg, clock, zap.NewNop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(e.Close)

	return e, clock.Advance
}

func record(t *testing.T, e *Engine, sender string, count uint) Verdict {
	t.Helper()

	v, err := e.RecordMention(sender, count, e.clock.Now(), fmt.Sprintf("msg-%d", e.clock.Now().UnixNano()))
	if err != nil {
		t.Fatalf("RecordMention(%q, %d) error = %v", sender, count, err)
	}
	return v
}

func lifetimeOnlyConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxMentionsPerMinute = 1000
	cfg.MaxMentionsPerHour = 1000
	return cfg
}

func TestEngine_RecordMention_LifetimeEscalation(t *testing.T) {
	e, advance := newTestEngine(t, lifetimeOnlyConfig())

	for i := 1; i <= 5; i++ {
		advance(time.Second)
		if v := record(t, e, "alice", 1); v.Action != ActionNone {
			t.Fatalf("mention %d: expected no action, got %s", i, v.Action)
		}
	}

	advance(time.Second)
	v := record(t, e, "alice", 1)
	if v.Action != ActionWarn || v.WarningCount != 1 {
		t.Fatalf("6th mention: expected warn 1, got %s %d", v.Action, v.WarningCount)
	}
	if len(v.Rules) != 1 || v.Rules[0] != RuleLifetime {
		t.Errorf("6th mention: expected lifetime rule, got %v", v.Rules)
	}

	advance(time.Second)
	if v := record(t, e, "alice", 1); v.Action != ActionWarn || v.WarningCount != 2 {
		t.Fatalf("7th mention: expected warn 2, got %s %d", v.Action, v.WarningCount)
	}

	advance(time.Second)
	v = record(t, e, "alice", 1)
	if v.Action != ActionBlock {
		t.Fatalf("8th mention: expected block, got %s", v.Action)
	}
	if v.DurationSeconds() != 300 {
		t.Errorf("Expected block of 300s, got %ds", v.DurationSeconds())
	}

	if !e.IsBlocked("alice") {
		t.Error("alice should be blocked right after the block verdict")
	}

	advance(299 * time.Second)
	if !e.IsBlocked("alice") {
		t.Error("alice should still be blocked before the expiry")
	}

	advance(time.Second)
	if e.IsBlocked("alice") {
		t.Error("alice should not be blocked once the expiry is reached")
	}

	if got := e.WarningCount("alice"); got != 2 {
		t.Errorf("Warnings should be retained after expiry, got %d", got)
	}
}

func TestEngine_RecordMention_PerMinuteTripsBelowLifetime(t *testing.T) {
	e, advance := newTestEngine(t, DefaultConfig())

	for i := 1; i <= 3; i++ {
		if v := record(t, e, "bob", 1); v.Action != ActionNone {
			t.Fatalf("mention %d: expected no action, got %s", i, v.Action)
		}
		advance(10 * time.Second)
	}

	v := record(t, e, "bob", 1)
	if v.Action != ActionWarn || v.WarningCount != 1 {
		t.Fatalf("4th mention: expected warn 1, got %s %d", v.Action, v.WarningCount)
	}
	if len(v.Rules) != 1 || v.Rules[0] != RulePerMinute {
		t.Errorf("Expected only the per-minute rule, got %v", v.Rules)
	}
}

func TestEngine_RecordMention_PerHour(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxMentions = 1000
	e, advance := newTestEngine(t, cfg)

	for i := 1; i <= 10; i++ {
		if v := record(t, e, "carol", 1); v.Action != ActionNone {
			t.Fatalf("mention %d: expected no action, got %s", i, v.Action)
		}
		advance(2 * time.Minute)
	}

	v := record(t, e, "carol", 1)
	if v.Action != ActionWarn {
		t.Fatalf("11th mention: expected warn, got %s", v.Action)
	}
	if len(v.Rules) != 1 || v.Rules[0] != RulePerHour {
		t.Errorf("Expected only the per-hour rule, got %v", v.Rules)
	}
}

func TestEngine_RecordMention_WarningThreshold(t *testing.T) {
	for _, threshold := range []uint{0, 1, 2, 3} {
		t.Run(fmt.Sprintf("threshold=%d", threshold), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.MaxMentions = 0
			cfg.WarningThreshold = threshold
			e, advance := newTestEngine(t, cfg)

			for i := uint(1); i <= threshold; i++ {
				v := record(t, e, "dave", 1)
				if v.Action != ActionWarn || v.WarningCount != i {
					t.Fatalf("trip %d: expected warn %d, got %s %d", i, i, v.Action, v.WarningCount)
				}
				advance(time.Minute)
			}

			if v := record(t, e, "dave", 1); v.Action != ActionBlock {
				t.Fatalf("Expected block after %d warnings, got %s", threshold, v.Action)
			}
		})
	}
}

func TestEngine_RecordMention_ZeroCountIsNoop(t *testing.T) {
	e, _ := newTestEngine(t, DefaultConfig())

	v, err := e.RecordMention("erin", 0, e.clock.Now(), "m1")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if v.Action != ActionNone {
		t.Errorf("Expected no action, got %s", v.Action)
	}
	if stats := e.Statistics(); stats.TotalSenders != 0 {
		t.Errorf("Zero-count event should not create a record, got %d senders", stats.TotalSenders)
	}
}

func TestEngine_RecordMention_InvalidEvent(t *testing.T) {
	e, _ := newTestEngine(t, DefaultConfig())

	tests := []struct {
		name   string
		sender string
		ts     time.Time
	}{
		{"empty sender", "", testEpoch},
		{"zero timestamp", "frank", time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.RecordMention(tt.sender, 1, tt.ts, "m1")
			if !errors.Is(err, ErrInvalidEvent) {
				t.Errorf("Expected ErrInvalidEvent, got %v", err)
			}
		})
	}

	if stats := e.Statistics(); stats.TotalSenders != 0 {
		t.Errorf("Rejected events should not touch state, got %d senders", stats.TotalSenders)
	}
}

func TestEngine_RecordMention_TimestampOrdering(t *testing.T) {
	e, advance := newTestEngine(t, lifetimeOnlyConfig())

	advance(time.Minute)
	now := e.clock.Now()

	if _, err := e.RecordMention("gina", 1, now.Add(-10*time.Second), "m1"); err != nil {
		t.Fatal(err)
	}
	// Out of order, stored at the newest timestamp
	if _, err := e.RecordMention("gina", 1, now.Add(-30*time.Second), "m2"); err != nil {
		t.Fatal(err)
	}
	// From the future, stored at now
	if _, err := e.RecordMention("gina", 1, now.Add(time.Hour), "m3"); err != nil {
		t.Fatal(err)
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	events := e.senders["gina"].events
	want := []time.Time{now.Add(-10 * time.Second), now.Add(-10 * time.Second), now}
	if len(events) != len(want) {
		t.Fatalf("Expected %d events, got %d", len(want), len(events))
	}
	for i, ev := range events {
		if !ev.timestamp.Equal(want[i]) {
			t.Errorf("event %d: expected timestamp %v, got %v", i, want[i], ev.timestamp)
		}
	}
}

func TestEngine_RecordMention_ReblockRefreshesExpiry(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxMentions = 0
	cfg.WarningThreshold = 0
	e, advance := newTestEngine(t, cfg)

	if v := record(t, e, "hank", 1); v.Action != ActionBlock {
		t.Fatalf("Expected block, got %s", v.Action)
	}

	advance(100 * time.Second)
	if v := record(t, e, "hank", 1); v.Action != ActionBlock {
		t.Fatalf("Expected block while blocked, got %s", v.Action)
	}

	until, ok := e.BlockedUntil("hank")
	if !ok {
		t.Fatal("hank should be blocked")
	}
	if want := e.clock.Now().Add(cfg.BlockDuration); !until.Equal(want) {
		t.Errorf("Expected refreshed expiry %v, got %v", want, until)
	}

	advance(250 * time.Second)
	if !e.IsBlocked("hank") {
		t.Error("Refreshed block should outlive the original expiry")
	}

	e.mu.RLock()
	blocks := len(e.blocks)
	e.mu.RUnlock()
	if blocks != 1 {
		t.Errorf("Expected one block entry, got %d", blocks)
	}
}

func TestEngine_RecordMention_BlockAgainAfterExpiry(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxMentions = 0
	cfg.WarningThreshold = 1
	e, advance := newTestEngine(t, cfg)

	record(t, e, "ivan", 1)
	if v := record(t, e, "ivan", 1); v.Action != ActionBlock {
		t.Fatalf("Expected block, got %s", v.Action)
	}

	advance(cfg.BlockDuration)
	if e.IsBlocked("ivan") {
		t.Fatal("Block should have expired")
	}

	if v := record(t, e, "ivan", 1); v.Action != ActionBlock {
		t.Errorf("Retained warnings should lead straight to a block, got %s", v.Action)
	}
}

func TestEngine_ResetSender(t *testing.T) {
	cfg := lifetimeOnlyConfig()
	e, _ := newTestEngine(t, cfg)

	for i := 0; i < 8; i++ {
		record(t, e, "judy", 1)
	}
	if !e.IsBlocked("judy") {
		t.Fatal("judy should be blocked after 8 mentions")
	}

	e.ResetSender("judy")

	if e.IsBlocked("judy") {
		t.Error("judy should not be blocked after reset")
	}
	if got := e.WarningCount("judy"); got != 0 {
		t.Errorf("Expected 0 warnings after reset, got %d", got)
	}
	if v := record(t, e, "judy", 1); v.Action != ActionNone {
		t.Errorf("Expected a clean slate after reset, got %s", v.Action)
	}
}

func TestEngine_TotalMentionsMatchesRecordedCounts(t *testing.T) {
	e, advance := newTestEngine(t, lifetimeOnlyConfig())

	var want uint64
	for _, count := range []uint{1, 3, 2, 7} {
		record(t, e, "kate", count)
		want += uint64(count)
		advance(25 * time.Minute)
	}

	if res := e.Sweep(); res.PrunedEvents != 2 {
		t.Fatalf("Expected the two oldest events to be pruned, got %+v", res)
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	rec := e.senders["kate"]
	if rec == nil {
		t.Fatal("kate should still be tracked")
	}
	if rec.totalMentions != want {
		t.Errorf("Expected total %d, got %d", want, rec.totalMentions)
	}

	var stored uint64
	for _, ev := range rec.events {
		stored += uint64(ev.count)
	}
	if stored > rec.totalMentions {
		t.Errorf("Stored events (%d) exceed lifetime total (%d)", stored, rec.totalMentions)
	}
}

func TestEngine_UpdateConfig(t *testing.T) {
	e, _ := newTestEngine(t, DefaultConfig())

	one := uint(1)
	if err := e.UpdateConfig(ConfigPatch{MaxMentionsPerMinute: &one}); err != nil {
		t.Fatalf("UpdateConfig() error = %v", err)
	}
	if got := e.Config().MaxMentionsPerMinute; got != 1 {
		t.Errorf("Expected per-minute cap 1, got %d", got)
	}

	record(t, e, "liam", 1)
	if v := record(t, e, "liam", 1); v.Action != ActionWarn {
		t.Errorf("Lowered cap should apply to the next evaluation, got %s", v.Action)
	}

	zero := time.Duration(0)
	err := e.UpdateConfig(ConfigPatch{MaxMentionsPerMinute: &one, BlockDuration: &zero})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Expected ErrInvalidConfig, got %v", err)
	}
	if got := e.Config().BlockDuration; got != DefaultBlockDuration {
		t.Errorf("Rejected patch should leave config unchanged, got block duration %s", got)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Retention = time.Minute

	if _, err := New(cfg, clockwork.NewFakeClock(), nil); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
}

func TestEngine_IndependentInstances(t *testing.T) {
	a, _ := newTestEngine(t, lifetimeOnlyConfig())
	b, _ := newTestEngine(t, lifetimeOnlyConfig())

	for i := 0; i < 8; i++ {
		record(t, a, "mike", 1)
	}

	if !a.IsBlocked("mike") {
		t.Error("mike should be blocked in the first engine")
	}
	if b.IsBlocked("mike") {
		t.Error("mike should not be blocked in the second engine")
	}
}

func TestEngine_Close_Idempotent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxMentions = 0
	cfg.WarningThreshold = 0
	e, _ := newTestEngine(t, cfg)

	record(t, e, "nina", 1)

	e.Close()
	e.Close()

	if !e.IsBlocked("nina") {
		t.Error("Blocks should stay queryable after Close")
	}
}

func TestEngine_ConcurrentAccess(t *testing.T) {
	e, _ := newTestEngine(t, DefaultConfig())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			sender := fmt.Sprintf("user%d", id%3)
			for j := 0; j < 50; j++ {
				if _, err := e.RecordMention(sender, 1, e.clock.Now(), fmt.Sprintf("m%d-%d", id, j)); err != nil {
					t.Errorf("RecordMention() error = %v", err)
				}
				e.IsBlocked(sender)
				e.Statistics()
			}
		}(i)
	}
	wg.Wait()

	if stats := e.Statistics(); stats.TotalSenders != 3 {
		t.Errorf("Expected 3 senders, got %d", stats.TotalSenders)
	}
}
