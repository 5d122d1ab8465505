package core

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"mentionguard/internal/antispam"
	"mentionguard/internal/chat"
)

// Notice formatting and delivery

// headline picks one of the localized headlines for action
func (d *Dispatcher) headline(action antispam.Action) string {
	variants := d.localizer.Variants("notice." + action.String())
	if len(variants) == 0 {
		return ""
	}
	return variants[d.pick(len(variants))]
}

// displayName returns the name shown for msg's sender
func displayName(msg *chat.Message) string {
	if msg.SenderName != "" {
		return msg.SenderName
	}
	return msg.SenderID
}

// formatNotice renders the group notice for a tripped verdict
func (d *Dispatcher) formatNotice(msg *chat.Message, verdict antispam.Verdict, at time.Time) string {
	var b strings.Builder

	b.WriteString(d.headline(verdict.Action))
	b.WriteString("\n\n")
	b.WriteString(d.localizer.T("notice.details",
		displayName(msg), at.Format(noticeTimeLayout), d.localizer.T("action."+verdict.Action.String())))
	b.WriteString("\n")

	switch verdict.Action {
	case antispam.ActionWarn:
		b.WriteString(d.localizer.T("notice.warning_count",
			verdict.WarningCount, d.engine.Config().WarningThreshold))
	case antispam.ActionBlock:
		b.WriteString(d.localizer.T("notice.block_duration", verdict.DurationSeconds()))
	}

	return b.String()
}

// sendNotice replies to the offending message and, for blocks, posts the follow-up
func (d *Dispatcher) sendNotice(ctx context.Context, frontend chat.Frontend, msg *chat.Message,
	verdict antispam.Verdict) {
	d.reply(ctx, frontend, msg, d.formatNotice(msg, verdict, d.clock.Now()))

	if verdict.Action != antispam.ActionBlock {
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeoutSecs*time.Second)
	defer cancel()

	if _, err := frontend.SendText(sendCtx, msg.ChatID, "", d.localizer.T("notice.block_followup")); err != nil {
		d.logger.Warn("Failed to send block follow-up", zap.String("chatID", msg.ChatID), zap.Error(err))
		d.metrics.RecordError(componentFrontend, "send")
	}
}

// alertAdmins sends a direct message about a block to the chat admins, or to the owners
// when the frontend cannot list admins
func (d *Dispatcher) alertAdmins(ctx context.Context, frontend chat.Frontend, msg *chat.Message,
	verdict antispam.Verdict) {
	if d.alerts.IsAlertActive(msg.SenderID) {
		return
	}

	recipients, err := frontend.GetAdminUserIDs(ctx, msg.ChatID)
	if err != nil {
		d.logger.Debug("Failed to list chat admins", zap.String("chatID", msg.ChatID), zap.Error(err))
	}
	if len(recipients) == 0 {
		recipients = d.config.App.Owners
	}
	if len(recipients) == 0 {
		return
	}

	until, ok := d.engine.BlockedUntil(msg.SenderID)
	if !ok {
		return
	}

	alertCtx, cancel := context.WithTimeout(ctx, sendTimeoutSecs*time.Second)
	defer cancel()

	alert := d.formatNotice(msg, verdict, d.clock.Now())
	if err := d.alerts.SendBlockAlert(alertCtx, frontend, msg.SenderID, until, recipients, alert); err != nil {
		d.metrics.RecordError(componentFrontend, "alert")
	}
}
