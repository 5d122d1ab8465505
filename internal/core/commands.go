package core

import (
	"context"
	"errors"
	"math"
	"strings"

	"go.uber.org/zap"

	"mentionguard/internal/audit"
	"mentionguard/internal/chat"
	"mentionguard/pkg/text"
)

// command is a chat command handler. It returns the reply text and the outcome label.
type command struct {
	adminOnly bool
	run       func(ctx context.Context, frontend chat.Frontend, msg *chat.Message, args []string) (string, string)
}

func (d *Dispatcher) buildCommands() map[string]command {
	return map[string]command{
		cmdStats:       {run: d.runStats},
		cmdReport:      {adminOnly: true, run: d.runReport},
		cmdWarnings:    {run: d.runWarnings},
		cmdReset:       {adminOnly: true, run: d.runReset},
		cmdSet:         {adminOnly: true, run: d.runSet},
		cmdSettings:    {adminOnly: true, run: d.runSettings},
		cmdAntiMention: {adminOnly: true, run: d.runAntiMention},
	}
}

func (d *Dispatcher) handleCommand(ctx context.Context, frontend chat.Frontend, msg *chat.Message, cmd text.Command) {
	handler := d.commands[cmd.Name]

	d.logger.Debug("Handling command",
		zap.String("command", cmd.Name),
		zap.String("sender", msg.SenderID),
		zap.Strings("args", cmd.Args))

	if handler.adminOnly && !d.isAdmin(ctx, frontend, msg) {
		d.metrics.RecordCommand(cmd.Name, commandDenied)
		d.reply(ctx, frontend, msg, d.localizer.T("cmd.admin_only"))
		return
	}

	reply, status := handler.run(ctx, frontend, msg, cmd.Args)
	d.metrics.RecordCommand(cmd.Name, status)
	if reply != "" {
		d.reply(ctx, frontend, msg, reply)
	}
}

// isAdmin reports whether the sender is a configured owner or an admin of the chat
func (d *Dispatcher) isAdmin(ctx context.Context, frontend chat.Frontend, msg *chat.Message) bool {
	for _, owner := range d.config.App.Owners {
		if owner == msg.SenderID {
			return true
		}
	}

	isAdmin, err := frontend.IsUserAdmin(ctx, msg.ChatID, msg.SenderID)
	if err != nil {
		d.logger.Debug("Failed to check admin status",
			zap.String("chatID", msg.ChatID),
			zap.String("sender", msg.SenderID),
			zap.Error(err))
		return false
	}
	return isAdmin
}

// resolveTargets returns the sender ids a command refers to, preferring structured mentions
func (d *Dispatcher) resolveTargets(frontend chat.Frontend, msg *chat.Message, args []string) []string {
	candidates := msg.Mentions
	if len(candidates) == 0 {
		for _, arg := range args {
			if target := text.CleanTarget(arg); target != "" {
				candidates = append(candidates, target)
			}
		}
	}

	resolver, _ := frontend.(chat.UserResolver)

	seen := make(map[string]bool, len(candidates))
	targets := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		if resolver != nil {
			if id, ok := resolver.ResolveUser(candidate); ok {
				candidate = id
			}
		}
		if !seen[candidate] {
			seen[candidate] = true
			targets = append(targets, candidate)
		}
	}
	return targets
}

func (d *Dispatcher) onOff(enabled bool) string {
	if enabled {
		return d.localizer.T("state.on")
	}
	return d.localizer.T("state.off")
}

func (d *Dispatcher) runStats(context.Context, chat.Frontend, *chat.Message, []string) (string, string) {
	stats := d.engine.Statistics()
	return d.localizer.T("cmd.stats",
		stats.TotalSenders,
		stats.ActiveSenders1h,
		stats.ActiveSenders24h,
		stats.Mentions1h,
		stats.Mentions24h,
		stats.BlockedSenders,
		stats.WarnedSenders,
	), commandOK
}

func (d *Dispatcher) runReport(context.Context, chat.Frontend, *chat.Message, []string) (string, string) {
	report := d.engine.SpamReport()

	var b strings.Builder
	b.WriteString(d.localizer.T("cmd.report.header", report.TotalSenders, report.BlockedSenders, report.WarnedSenders))

	if len(report.TopSpammers) == 0 {
		b.WriteString(d.localizer.T("cmd.report.empty"))
		return b.String(), commandOK
	}

	b.WriteString(d.localizer.T("cmd.report.top_header"))
	for i, entry := range report.TopSpammers {
		b.WriteString(d.localizer.T("cmd.report.entry",
			i+1, entry.Sender, entry.TotalMentions, entry.RecentMentions, entry.WarningCount))
		if entry.Blocked {
			b.WriteString(d.localizer.T("cmd.report.blocked_marker"))
		}
	}
	return b.String(), commandOK
}

func (d *Dispatcher) runWarnings(_ context.Context, frontend chat.Frontend, msg *chat.Message,
	args []string) (string, string) {
	target := msg.SenderID
	name := displayName(msg)
	if targets := d.resolveTargets(frontend, msg, args); len(targets) > 0 {
		target = targets[0]
		name = target
	}

	warnings := d.engine.WarningCount(target)
	if until, blocked := d.engine.BlockedUntil(target); blocked {
		secs := int64(math.Ceil(until.Sub(d.clock.Now()).Seconds()))
		return d.localizer.T("cmd.warnings.blocked", name, warnings, secs), commandOK
	}
	return d.localizer.T("cmd.warnings", name, warnings), commandOK
}

func (d *Dispatcher) runReset(ctx context.Context, frontend chat.Frontend, msg *chat.Message,
	args []string) (string, string) {
	targets := d.resolveTargets(frontend, msg, args)
	if len(targets) == 0 {
		return d.localizer.T("cmd.reset.usage", d.config.App.CommandPrefix), commandFailed
	}

	for _, target := range targets {
		d.engine.ResetSender(target)
		d.alerts.ClearAlert(ctx, target)
		d.publish(ctx, audit.Event{
			Type:   audit.EventReset,
			Sender: target,
			ChatID: msg.ChatID,
			Actor:  msg.SenderID,
			At:     d.clock.Now().UTC(),
		})
	}

	d.logger.Info("Anti-spam state reset",
		zap.Strings("targets", targets),
		zap.String("actor", msg.SenderID))

	return d.localizer.T("cmd.reset.done", strings.Join(targets, ", ")), commandOK
}

// changeSetting applies, audits and persists one setting. It reports whether the value was persisted.
func (d *Dispatcher) changeSetting(ctx context.Context, msg *chat.Message, key, value string) (bool, error) {
	if err := d.applySetting(key, value); err != nil {
		d.logger.Info("Rejected setting change",
			zap.String("key", key),
			zap.String("value", value),
			zap.Error(err))
		return false, err
	}

	d.publish(ctx, audit.Event{
		Type:   audit.EventConfig,
		ChatID: msg.ChatID,
		Actor:  msg.SenderID,
		Detail: key + "=" + value,
		At:     d.clock.Now().UTC(),
	})

	if err := d.persistSetting(ctx, key, value); err != nil {
		d.logger.Warn("Setting applied but not persisted", zap.String("key", key), zap.Error(err))
		return false, nil
	}
	return true, nil
}

func (d *Dispatcher) runSet(ctx context.Context, _ chat.Frontend, msg *chat.Message, args []string) (string, string) {
	if len(args) < 2 {
		return d.localizer.T("cmd.set.usage", d.config.App.CommandPrefix, strings.Join(SettingKeys(), ", ")),
			commandFailed
	}

	key := text.FoldCase(args[0])
	value := args[1]

	persisted, err := d.changeSetting(ctx, msg, key, value)
	switch {
	case errors.Is(err, errUnknownSetting):
		return d.localizer.T("cmd.set.unknown_key", key), commandFailed
	case err != nil:
		return d.localizer.T("cmd.set.invalid_value", key, value), commandFailed
	case !persisted:
		return d.localizer.T("cmd.set.persist_failed", key), commandOK
	}

	return d.localizer.T("cmd.set.done", key, value), commandOK
}

func (d *Dispatcher) runSettings(context.Context, chat.Frontend, *chat.Message, []string) (string, string) {
	cfg := d.engine.Config()
	return d.localizer.T("cmd.settings",
		d.onOff(d.enabled.Load()),
		cfg.MaxMentions,
		cfg.MaxMentionsPerMinute,
		cfg.MaxMentionsPerHour,
		cfg.WarningThreshold,
		int64(cfg.BlockDuration.Seconds()),
		int64(cfg.CleanupInterval.Seconds()),
		int64(cfg.Retention.Seconds()),
	), commandOK
}

func (d *Dispatcher) runAntiMention(ctx context.Context, _ chat.Frontend, msg *chat.Message,
	args []string) (string, string) {
	if len(args) != 1 {
		return d.localizer.T("cmd.antimention.usage", d.config.App.CommandPrefix), commandFailed
	}

	persisted, err := d.changeSetting(ctx, msg, SettingAntiMentionEnabled, args[0])
	if err != nil {
		return d.localizer.T("cmd.antimention.usage", d.config.App.CommandPrefix), commandFailed
	}
	if !persisted {
		return d.localizer.T("cmd.set.persist_failed", SettingAntiMentionEnabled), commandOK
	}

	if d.enabled.Load() {
		return d.localizer.T("cmd.antimention.on"), commandOK
	}
	return d.localizer.T("cmd.antimention.off"), commandOK
}
