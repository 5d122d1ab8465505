package antispam

import (
	"context"
	"testing"
	"time"
)

func TestEngine_Sweep_RemovesStaleSenders(t *testing.T) {
	e, advance := newTestEngine(t, lifetimeOnlyConfig())

	record(t, e, "old", 1)
	advance(50 * time.Minute)
	record(t, e, "fresh", 1)
	advance(11 * time.Minute)

	res := e.Sweep()

	if res.RemovedSenders != 1 || res.PrunedEvents != 1 || res.Remaining != 1 {
		t.Errorf("Unexpected sweep result %+v", res)
	}

	e.mu.RLock()
	_, oldExists := e.senders["old"]
	_, freshExists := e.senders["fresh"]
	e.mu.RUnlock()

	if oldExists {
		t.Error("Sender without recent events should be removed")
	}
	if !freshExists {
		t.Error("Sender with recent events should be kept")
	}
}

func TestEngine_Sweep_RetentionBoundary(t *testing.T) {
	e, advance := newTestEngine(t, lifetimeOnlyConfig())

	record(t, e, "olga", 1)
	advance(DefaultRetention - time.Second)

	if res := e.Sweep(); res.RemovedSenders != 0 {
		t.Fatalf("Event younger than retention should survive, got %+v", res)
	}

	advance(time.Second)
	if res := e.Sweep(); res.RemovedSenders != 1 {
		t.Errorf("Event exactly at the retention horizon should be pruned, got %+v", res)
	}
}

func TestEngine_Sweep_ClearsWarningsOfQuietBlockedSender(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxMentions = 0
	cfg.WarningThreshold = 1
	cfg.BlockDuration = 2 * time.Hour
	e, advance := newTestEngine(t, cfg)

	record(t, e, "pete", 1)
	if v := record(t, e, "pete", 1); v.Action != ActionBlock {
		t.Fatalf("Expected block, got %s", v.Action)
	}

	advance(61 * time.Minute)
	e.Sweep()

	if got := e.WarningCount("pete"); got != 0 {
		t.Errorf("Sweep should drop warnings of a forgotten sender, got %d", got)
	}
	if !e.IsBlocked("pete") {
		t.Error("Sweep must not lift an active block")
	}
}

func TestEngine_Run_SweepsOnTicks(t *testing.T) {
	e, advance := newTestEngine(t, lifetimeOnlyConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.Run(ctx)
	}()

	record(t, e, "quinn", 1)

	deadline := time.Now().Add(5 * time.Second)
	for e.Statistics().TotalSenders != 0 {
		if time.Now().After(deadline) {
			t.Fatal("Janitor did not sweep the stale sender")
		}
		advance(DefaultRetention + DefaultCleanupInterval)
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestEngine_Run_StopsOnClose(t *testing.T) {
	e, _ := newTestEngine(t, DefaultConfig())

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.Run(context.Background())
	}()

	interval := 2 * time.Minute
	if err := e.UpdateConfig(ConfigPatch{CleanupInterval: &interval}); err != nil {
		t.Fatalf("UpdateConfig() error = %v", err)
	}

	e.Close()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Close")
	}
}
