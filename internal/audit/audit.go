// Package audit publishes enforcement events so they can be reviewed outside the chat.
package audit

import (
	"context"
	"errors"
	"time"

	"mentionguard/internal/antispam"
	"mentionguard/internal/chat"
)

// EventType names what happened to a sender
type EventType string

const (
	EventWarn   EventType = "warn"
	EventBlock  EventType = "block"
	EventReset  EventType = "reset"
	EventConfig EventType = "config"
)

// Event is a single enforcement or admin action
type Event struct {
	Type            EventType `json:"type"`
	Sender          string    `json:"sender,omitempty"`
	SenderName      string    `json:"sender_name,omitempty"`
	ChatID          string    `json:"chat_id,omitempty"`
	MessageID       string    `json:"message_id,omitempty"`
	WarningCount    uint      `json:"warning_count,omitempty"`
	DurationSeconds uint      `json:"duration_seconds,omitempty"`
	Rules           []string  `json:"rules,omitempty"`
	Actor           string    `json:"actor,omitempty"`
	Detail          string    `json:"detail,omitempty"`
	At              time.Time `json:"at"`
}

// Publisher delivers events to a sink
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

// VerdictEvent converts a tripped verdict into an event. It returns false for verdicts without action.
func VerdictEvent(v antispam.Verdict, msg *chat.Message, at time.Time) (Event, bool) {
	var typ EventType
	switch v.Action {
	case antispam.ActionWarn:
		typ = EventWarn
	case antispam.ActionBlock:
		typ = EventBlock
	default:
		return Event{}, false
	}

	rules := make([]string, 0, len(v.Rules))
	for _, r := range v.Rules {
		rules = append(rules, string(r))
	}

	return Event{
		Type:            typ,
		Sender:          msg.SenderID,
		SenderName:      msg.SenderName,
		ChatID:          msg.ChatID,
		MessageID:       msg.ID,
		WarningCount:    v.WarningCount,
		DurationSeconds: v.DurationSeconds(),
		Rules:           rules,
		At:              at.UTC(),
	}, true
}

// MultiPublisher fans an event out to several publishers
type MultiPublisher []Publisher

var _ Publisher = MultiPublisher(nil)

func (m MultiPublisher) Publish(ctx context.Context, evt Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiPublisher) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
