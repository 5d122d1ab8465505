package core

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mentionguard/internal/antispam"
	"mentionguard/internal/audit"
	"mentionguard/internal/chat"
	"mentionguard/internal/flood"
	"mentionguard/internal/i18n"
	"mentionguard/pkg/text"
)

// Services bundles the collaborators of a Dispatcher. Only Engine is required.
type Services struct {
	Engine    *antispam.Engine
	Frontends []chat.Frontend
	Dedup     DedupStore
	Settings  SettingsStore
	Publisher audit.Publisher
	Metrics   MetricsRecorder
	Clock     clockwork.Clock
}

// Dispatcher runs every chat message through the mention-spam pipeline and answers admin commands.
type Dispatcher struct {
	config    *Config
	engine    *antispam.Engine
	frontends []chat.Frontend
	dedup     DedupStore
	settings  SettingsStore
	publisher audit.Publisher
	metrics   MetricsRecorder
	clock     clockwork.Clock
	logger    *zap.Logger
	localizer *i18n.Localizer
	parser    *text.Parser
	floodgate *flood.Floodgate
	alerts    *BlockAlertManager
	commands  map[string]command

	enabled atomic.Bool

	// pick returns a number in [0, n); replaced in tests
	pick func(n int) int
}

// NewDispatcher creates a new dispatcher for the given frontends.
func NewDispatcher(config *Config, svcs Services, logger *zap.Logger) *Dispatcher {
	if svcs.Clock == nil {
		svcs.Clock = clockwork.NewRealClock()
	}
	if svcs.Metrics == nil {
		svcs.Metrics = nopMetrics{}
	}
	if svcs.Publisher == nil {
		svcs.Publisher = audit.NewLogPublisher(logger.Named("audit"))
	}

	d := &Dispatcher{
		config:    config,
		engine:    svcs.Engine,
		frontends: svcs.Frontends,
		dedup:     svcs.Dedup,
		settings:  svcs.Settings,
		publisher: svcs.Publisher,
		metrics:   svcs.Metrics,
		clock:     svcs.Clock,
		logger:    logger,
		localizer: i18n.NewLocalizer(config.App.Language),
		parser:    text.NewParser(config.App.CommandPrefix),
		floodgate: flood.New(config.App.NoticeLimitPerMinute, svcs.Clock),
		alerts:    NewBlockAlertManager(svcs.Clock, logger),
		pick:      rand.Intn,
	}
	d.enabled.Store(config.App.AntiMentionEnabled)
	d.commands = d.buildCommands()

	return d
}

// Enabled reports whether mention enforcement is switched on
func (d *Dispatcher) Enabled() bool {
	return d.enabled.Load()
}

// NoticeThrottleStats reports the per-chat notice throttle state
func (d *Dispatcher) NoticeThrottleStats() flood.Stats {
	return d.floodgate.GetStats()
}

// DedupSize returns the number of message ids remembered for deduplication, zero without a store
func (d *Dispatcher) DedupSize() int {
	if d.dedup == nil {
		return 0
	}
	return d.dedup.Size()
}

// Start applies stored settings, starts every frontend and listens until ctx is done.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.logger.Info("Starting message dispatcher", zap.Int("frontends", len(d.frontends)))

	if err := d.LoadSettings(ctx); err != nil {
		d.logger.Warn("Failed to apply stored settings", zap.Error(err))
	}

	for _, frontend := range d.frontends {
		if err := frontend.Start(ctx); err != nil {
			return fmt.Errorf("failed to start chat frontend: %w", err)
		}
	}

	g, gCtx := errgroup.WithContext(ctx)
	for _, frontend := range d.frontends {
		g.Go(func() error {
			return frontend.Listen(gCtx, func(msg *chat.Message) {
				d.HandleMessage(gCtx, frontend, msg)
			})
		})
	}

	return g.Wait()
}

// HandleMessage processes one incoming chat message.
func (d *Dispatcher) HandleMessage(ctx context.Context, frontend chat.Frontend, msg *chat.Message) {
	start := d.clock.Now()

	status := d.processMessage(ctx, frontend, msg)

	d.metrics.RecordMessage(status)
	d.metrics.RecordProcessingTime(d.clock.Since(start))
}

func (d *Dispatcher) processMessage(ctx context.Context, frontend chat.Frontend, msg *chat.Message) string {
	d.logger.Debug("Received message",
		zap.String("messageID", msg.ID),
		zap.String("chatID", msg.ChatID),
		zap.String("sender", msg.SenderID),
		zap.Int("mentions", len(msg.Mentions)))

	if d.dedup != nil && d.dedup.Seen(msg.ChatID, msg.ID) {
		d.logger.Debug("Dropping duplicate message", zap.String("messageID", msg.ID))
		return statusDuplicate
	}

	if cmd, ok := d.parser.ParseCommand(msg.Text); ok {
		if _, known := d.commands[cmd.Name]; known {
			d.handleCommand(ctx, frontend, msg, cmd)
			return statusCommand
		}
	}

	if !d.enabled.Load() {
		return statusDisabled
	}

	if d.engine.IsBlocked(msg.SenderID) {
		d.deleteBlockedMessage(ctx, frontend, msg)
		return statusBlockedSender
	}

	count := msg.MentionCount()
	if count == 0 {
		return statusNoMentions
	}

	timestamp := msg.Timestamp
	if timestamp.IsZero() {
		timestamp = d.clock.Now()
	}

	verdict, err := d.engine.RecordMention(msg.SenderID, count, timestamp, msg.ID)
	if err != nil {
		d.logger.Warn("Failed to record mentions",
			zap.String("messageID", msg.ID),
			zap.String("sender", msg.SenderID),
			zap.Error(err))
		d.metrics.RecordError(componentAntiSpam, "invalid_event")
		return statusInvalid
	}

	if !verdict.Tripped() {
		return statusClean
	}

	d.enforce(ctx, frontend, msg, verdict)

	if verdict.Action == antispam.ActionBlock {
		return statusBlocked
	}
	return statusWarned
}

// enforce reports a tripped verdict. Engine state is already committed, so failures here are only logged.
func (d *Dispatcher) enforce(ctx context.Context, frontend chat.Frontend, msg *chat.Message, verdict antispam.Verdict) {
	d.logger.Info("Mention limit exceeded",
		zap.String("sender", msg.SenderID),
		zap.String("chatID", msg.ChatID),
		zap.String("action", verdict.Action.String()),
		zap.Uint("warnings", verdict.WarningCount))

	d.metrics.RecordVerdict(verdict.Action.String())

	if evt, ok := audit.VerdictEvent(verdict, msg, d.clock.Now()); ok {
		d.publish(ctx, evt)
	}

	if !d.floodgate.Allow(msg.ChatID) {
		d.logger.Debug("Notice throttled", zap.String("chatID", msg.ChatID))
	} else {
		d.sendNotice(ctx, frontend, msg, verdict)
	}

	if verdict.Action == antispam.ActionBlock && d.config.App.NotifyOwnersOnBlock {
		d.alertAdmins(ctx, frontend, msg, verdict)
	}
}

func (d *Dispatcher) deleteBlockedMessage(ctx context.Context, frontend chat.Frontend, msg *chat.Message) {
	if !d.config.App.DeleteBlockedMessages {
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeoutSecs*time.Second)
	defer cancel()

	if err := frontend.DeleteMessage(sendCtx, msg.ChatID, msg.SenderID, msg.ID); err != nil {
		d.logger.Warn("Failed to delete message of blocked sender",
			zap.String("messageID", msg.ID),
			zap.String("sender", msg.SenderID),
			zap.Error(err))
		d.metrics.RecordError(componentFrontend, "delete")
	}
}

func (d *Dispatcher) publish(ctx context.Context, evt audit.Event) {
	if err := d.publisher.Publish(ctx, evt); err != nil {
		d.logger.Warn("Failed to publish audit event",
			zap.String("type", string(evt.Type)),
			zap.Error(err))
		d.metrics.RecordError(componentAudit, "publish")
	}
}

// reply sends body as a reply to msg and logs delivery failures
func (d *Dispatcher) reply(ctx context.Context, frontend chat.Frontend, msg *chat.Message, body string) {
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeoutSecs*time.Second)
	defer cancel()

	if _, err := frontend.SendText(sendCtx, msg.ChatID, msg.ID, body); err != nil {
		d.logger.Warn("Failed to send reply",
			zap.String("chatID", msg.ChatID),
			zap.String("replyTo", msg.ID),
			zap.Error(err))
		d.metrics.RecordError(componentFrontend, "send")
	}
}
