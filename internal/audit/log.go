package audit

import (
	"context"

	"go.uber.org/zap"
)

// LogPublisher writes events to the application log
type LogPublisher struct {
	logger *zap.Logger
}

var _ Publisher = (*LogPublisher)(nil)

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, evt Event) error {
	fields := []zap.Field{
		zap.String("type", string(evt.Type)),
		zap.Time("at", evt.At),
	}
	if evt.Sender != "" {
		fields = append(fields, zap.String("sender", evt.Sender))
	}
	if evt.ChatID != "" {
		fields = append(fields, zap.String("chatId", evt.ChatID))
	}
	if evt.MessageID != "" {
		fields = append(fields, zap.String("messageId", evt.MessageID))
	}
	if evt.WarningCount > 0 {
		fields = append(fields, zap.Uint("warnings", evt.WarningCount))
	}
	if evt.DurationSeconds > 0 {
		fields = append(fields, zap.Uint("durationSeconds", evt.DurationSeconds))
	}
	if len(evt.Rules) > 0 {
		fields = append(fields, zap.Strings("rules", evt.Rules))
	}
	if evt.Actor != "" {
		fields = append(fields, zap.String("actor", evt.Actor))
	}
	if evt.Detail != "" {
		fields = append(fields, zap.String("detail", evt.Detail))
	}

	p.logger.Info("Anti-spam event", fields...)
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}
