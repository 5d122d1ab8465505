package core

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"mentionguard/internal/audit"
)

func ownerConfig(c *Config) {
	c.App.Owners = []string{"boss"}
}

func TestCommand_Stats(t *testing.T) {
	h := newHarness(t, nil)
	h.send("alice", 2)

	if got := h.command("bob", "!antispam"); got != statusCommand {
		t.Fatalf("expected %s, got %s", statusCommand, got)
	}

	reply := h.frontend.lastText()
	for _, want := range []string{"Tracked users: 1", "Mentions (1h): 2", "Blocked: 0"} {
		if !strings.Contains(reply, want) {
			t.Errorf("stats reply missing %q:\n%s", want, reply)
		}
	}
	if want := []string{"antispam:ok"}; !reflect.DeepEqual(h.metrics.commands, want) {
		t.Errorf("expected command metrics %v, got %v", want, h.metrics.commands)
	}
}

func TestCommand_CaseInsensitiveName(t *testing.T) {
	h := newHarness(t, nil)

	if got := h.command("bob", "!AntiSpam"); got != statusCommand {
		t.Errorf("expected command names to be case-insensitive, got %s", got)
	}
}

func TestCommand_FullWidthPrefix(t *testing.T) {
	h := newHarness(t, nil)
	h.send("alice", 2)

	if got := h.command("bob", "  ！ＡｎｔｉＳｐａｍ  "); got != statusCommand {
		t.Fatalf("expected full-width command to be handled, got %s", got)
	}
	if reply := h.frontend.lastText(); !strings.Contains(reply, "Tracked users: 1") {
		t.Errorf("expected stats reply, got:\n%s", reply)
	}
}

func TestCommand_AdminOnly(t *testing.T) {
	h := newHarness(t, ownerConfig)

	h.command("bob", "!spamreport")
	if got := h.frontend.lastText(); got != "🔒 Only group admins can use this command." {
		t.Errorf("expected admin-only reply, got %q", got)
	}
	if want := []string{"spamreport:denied"}; !reflect.DeepEqual(h.metrics.commands, want) {
		t.Errorf("expected command metrics %v, got %v", want, h.metrics.commands)
	}

	// chat admins reported by the frontend are accepted as well as owners
	h.frontend.admins["mod"] = true
	for _, sender := range []string{"boss", "mod"} {
		h.command(sender, "!spamreport")
		if got := h.frontend.lastText(); strings.Contains(got, "🔒") {
			t.Errorf("%s should be allowed to run admin commands, got %q", sender, got)
		}
	}
}

func TestCommand_Report(t *testing.T) {
	h := newHarness(t, ownerConfig)

	h.command("boss", "!spamreport")
	if got := h.frontend.lastText(); !strings.Contains(got, "No mention activity recorded.") {
		t.Errorf("expected empty report, got:\n%s", got)
	}

	h.send("alice", 4)
	h.send("bob", 1)
	h.command("boss", "!spamreport")

	reply := h.frontend.lastText()
	for _, want := range []string{
		"Tracked users: 2\nBlocked: 0\nWarned: 1",
		"\n1. alice - 4 total, 1 last hour, 1 warnings",
		"\n2. bob - 1 total, 1 last hour, 0 warnings",
	} {
		if !strings.Contains(reply, want) {
			t.Errorf("report missing %q:\n%s", want, reply)
		}
	}
}

func TestCommand_ReportMarksBlocked(t *testing.T) {
	h := newHarness(t, ownerConfig)
	for i := 0; i < 3; i++ {
		h.send("alice", 4)
	}

	h.command("boss", "!spamreport")
	if got := h.frontend.lastText(); !strings.Contains(got, "2 warnings 🚫") {
		t.Errorf("expected blocked marker in report:\n%s", got)
	}
}

func TestCommand_Warnings(t *testing.T) {
	h := newHarness(t, nil)
	h.send("alice", 4)

	h.command("alice", "!warnings")
	if got := h.frontend.lastText(); got != "⚠️ alice has 1 warning(s)." {
		t.Errorf("unexpected own warnings reply: %q", got)
	}

	h.command("bob", "!warnings @alice", "alice")
	if got := h.frontend.lastText(); got != "⚠️ alice has 1 warning(s)." {
		t.Errorf("unexpected target warnings reply: %q", got)
	}

	h.command("bob", "!warnings carol")
	if got := h.frontend.lastText(); got != "⚠️ carol has 0 warning(s)." {
		t.Errorf("unexpected reply for unknown target: %q", got)
	}
}

func TestCommand_WarningsWhileBlocked(t *testing.T) {
	h := newHarness(t, nil)
	for i := 0; i < 3; i++ {
		h.send("alice", 4)
	}
	h.clock.Advance(100 * time.Second)

	h.command("bob", "!warnings alice")
	want := "⚠️ alice has 2 warning(s) and is blocked for another 200 seconds."
	if got := h.frontend.lastText(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestCommand_Reset(t *testing.T) {
	h := newHarness(t, ownerConfig)
	for i := 0; i < 3; i++ {
		h.send("alice", 4)
	}

	h.command("boss", "!resetspam @alice.")

	if h.engine.IsBlocked("alice") || h.engine.WarningCount("alice") != 0 {
		t.Error("expected alice to be fully reset")
	}
	if got := h.frontend.lastText(); got != "✅ Anti-spam state cleared for: alice" {
		t.Errorf("unexpected reset reply: %q", got)
	}

	last := h.publisher.events[len(h.publisher.events)-1]
	if last.Type != audit.EventReset || last.Sender != "alice" || last.Actor != "boss" {
		t.Errorf("unexpected reset event: %+v", last)
	}
}

func TestCommand_ResetResolvesHandles(t *testing.T) {
	h := newHarness(t, ownerConfig)
	h.frontend.users["bob"] = "42"
	h.send("42", 4)

	h.command("boss", "!resetspam @bob @bob")

	if got := h.engine.WarningCount("42"); got != 0 {
		t.Errorf("expected handle to resolve to 42 and reset it, warnings=%d", got)
	}
	if got := h.frontend.lastText(); got != "✅ Anti-spam state cleared for: 42" {
		t.Errorf("expected duplicates to collapse, got %q", got)
	}
}

func TestCommand_ResetUsage(t *testing.T) {
	h := newHarness(t, ownerConfig)

	h.command("boss", "!resetspam")
	if got := h.frontend.lastText(); got != "Usage: !resetspam @user [@user ...]" {
		t.Errorf("unexpected usage reply: %q", got)
	}
	if want := []string{"resetspam:failed"}; !reflect.DeepEqual(h.metrics.commands, want) {
		t.Errorf("expected command metrics %v, got %v", want, h.metrics.commands)
	}
}

func TestCommand_SpamSet(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		reply string
		check func(t *testing.T, h *testHarness)
	}{
		{
			name:  "updates and persists",
			text:  "!spamset max-mentions 10",
			reply: "✅ max-mentions set to 10",
			check: func(t *testing.T, h *testHarness) {
				if got := h.engine.Config().MaxMentions; got != 10 {
					t.Errorf("expected MaxMentions 10, got %d", got)
				}
				if got := h.settings.values[SettingMaxMentions]; got != "10" {
					t.Errorf("expected persisted value 10, got %q", got)
				}
				last := h.publisher.events[len(h.publisher.events)-1]
				if last.Type != audit.EventConfig || last.Detail != "max-mentions=10" {
					t.Errorf("unexpected config event: %+v", last)
				}
			},
		},
		{
			name:  "key is case-insensitive",
			text:  "!spamset Block-Duration-Secs 60",
			reply: "✅ block-duration-secs set to 60",
			check: func(t *testing.T, h *testHarness) {
				if got := h.engine.Config().BlockDuration; got != time.Minute {
					t.Errorf("expected BlockDuration 1m, got %v", got)
				}
			},
		},
		{
			name:  "unknown key",
			text:  "!spamset bogus 1",
			reply: "❌ Unknown setting: bogus",
		},
		{
			name:  "not a number",
			text:  "!spamset max-mentions lots",
			reply: "❌ Invalid value for max-mentions: lots",
		},
		{
			name:  "rejected by validation",
			text:  "!spamset block-duration-secs 0",
			reply: "❌ Invalid value for block-duration-secs: 0",
			check: func(t *testing.T, h *testHarness) {
				if got := h.engine.Config().BlockDuration; got != 300*time.Second {
					t.Errorf("expected config to stay unchanged, got %v", got)
				}
				if len(h.settings.values) != 0 {
					t.Errorf("rejected values must not be persisted, got %v", h.settings.values)
				}
			},
		},
		{
			name:  "usage",
			text:  "!spamset max-mentions",
			reply: "Usage: !spamset <key> <value>\nKeys: max-mentions, max-mentions-per-minute",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, ownerConfig)
			h.command("boss", tt.text)

			if got := h.frontend.lastText(); !strings.HasPrefix(got, tt.reply) {
				t.Errorf("expected reply starting with %q, got %q", tt.reply, got)
			}
			if tt.check != nil {
				tt.check(t, h)
			}
		})
	}
}

func TestCommand_SpamSetPersistFailure(t *testing.T) {
	h := newHarness(t, ownerConfig)
	h.settings.setErr = errors.New("disk full")

	h.command("boss", "!spamset warning-threshold 4")

	if got := h.engine.Config().WarningThreshold; got != 4 {
		t.Errorf("setting should still apply, got WarningThreshold=%d", got)
	}
	if got := h.frontend.lastText(); !strings.HasPrefix(got, "⚠️ warning-threshold applied, but it could not be saved") {
		t.Errorf("unexpected reply: %q", got)
	}
	if want := []string{"settings:write"}; !reflect.DeepEqual(h.metrics.errors, want) {
		t.Errorf("expected errors %v, got %v", want, h.metrics.errors)
	}
}

func TestCommand_SpamSettings(t *testing.T) {
	h := newHarness(t, ownerConfig)

	h.command("boss", "!spamsettings")

	reply := h.frontend.lastText()
	for _, want := range []string{
		"Protection: on",
		"Lifetime limit: 5",
		"Per minute: 3",
		"Per hour: 10",
		"Warnings before block: 2",
		"Block duration: 300s",
		"Cleanup interval: 60s",
		"Retention: 3600s",
	} {
		if !strings.Contains(reply, want) {
			t.Errorf("settings reply missing %q:\n%s", want, reply)
		}
	}
}

func TestCommand_AntiMention(t *testing.T) {
	h := newHarness(t, ownerConfig)

	h.command("boss", "!antimention off")
	if got := h.frontend.lastText(); got != "⏸️ Mention spam protection disabled." {
		t.Errorf("unexpected reply: %q", got)
	}
	if h.dispatcher.Enabled() {
		t.Error("expected protection to be disabled")
	}
	if got := h.settings.values[SettingAntiMentionEnabled]; got != "off" {
		t.Errorf("expected persisted toggle, got %q", got)
	}
	if got := h.send("alice", 10); got != statusDisabled {
		t.Errorf("expected %s, got %s", statusDisabled, got)
	}

	// commands keep working while disabled
	h.command("boss", "!antimention ON")
	if !h.dispatcher.Enabled() {
		t.Error("expected protection to be enabled again")
	}
	if got := h.frontend.lastText(); got != "✅ Mention spam protection enabled." {
		t.Errorf("unexpected reply: %q", got)
	}

	h.command("boss", "!antimention maybe")
	if got := h.frontend.lastText(); got != "Usage: !antimention on|off" {
		t.Errorf("unexpected usage reply: %q", got)
	}
}

func TestCommand_UnknownCommandIsAMessage(t *testing.T) {
	h := newHarness(t, nil)

	status := h.command("alice", "!help @a @b @c @d", "a", "b", "c", "d")
	if status != statusWarned {
		t.Errorf("unknown commands should go through mention checks, got %s", status)
	}
}

func TestCommand_CustomPrefix(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.App.CommandPrefix = "/" })

	if got := h.command("bob", "/antispam"); got != statusCommand {
		t.Errorf("expected custom prefix to be honored, got %s", got)
	}
	if got := h.command("bob", "!antispam"); got == statusCommand {
		t.Error("default prefix should not match when a custom prefix is set")
	}
}
