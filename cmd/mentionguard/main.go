// Package main provides the MentionGuard CLI application entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"mentionguard/internal/antispam"
	"mentionguard/internal/audit"
	"mentionguard/internal/chat"
	"mentionguard/internal/chat/telegram"
	"mentionguard/internal/chat/whatsapp"
	"mentionguard/internal/core"
	httpserver "mentionguard/internal/http"
	"mentionguard/internal/i18n"
	"mentionguard/internal/store"
)

const (
	defaultServerHost = "0.0.0.0"
	envPrefix         = "MENTIONGUARD"
)

var (
	cfgFile string
	config  *core.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "mentionguard",
	Short: "MentionGuard - mention spam protection for group chats",
	Long: `MentionGuard watches Telegram and WhatsApp groups for members who mass-mention others.
Offenders are warned, then temporarily blocked, and admins can inspect and tune the rules from the chat.`,
	RunE: runMentionGuard,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	defaults := core.DefaultConfig()
	flags := rootCmd.PersistentFlags()

	flags.StringVar(&cfgFile, "config", "", "config file (default is .env)")
	flags.String("log-level", defaults.Log.Level, "log level (debug, info, warn, error)")
	flags.String("log-format", defaults.Log.Format, "log format (json, text)")

	flags.Bool("telegram-enabled", defaults.Telegram.Enabled, "Enable Telegram integration")
	flags.String("telegram-bot-token", "", "Telegram bot token")
	flags.Int64("telegram-group-id", 0, "Telegram group ID (0 watches every group the bot is in)")
	flags.Bool("whatsapp-enabled", defaults.WhatsApp.Enabled, "Enable WhatsApp integration")
	flags.String("whatsapp-group-jid", "", "WhatsApp group JID (empty watches every group)")
	flags.String("whatsapp-session-path", defaults.WhatsApp.SessionPath, "WhatsApp session database path")

	flags.Bool("server-enabled", defaults.Server.Enabled, "Enable the HTTP server")
	flags.String("server-host", defaultServerHost, "HTTP server host")
	flags.Int("server-port", defaults.Server.Port, "HTTP server port")

	flags.Uint("max-mentions", defaults.AntiSpam.MaxMentions, "Lifetime mentions allowed per sender")
	flags.Uint("max-mentions-per-minute", defaults.AntiSpam.MaxMentionsPerMinute, "Mentions allowed per sender per minute")
	flags.Uint("max-mentions-per-hour", defaults.AntiSpam.MaxMentionsPerHour, "Mentions allowed per sender per hour")
	flags.Uint("warning-threshold", defaults.AntiSpam.WarningThreshold, "Warnings issued before a sender is blocked")
	flags.Int("block-duration-secs", int(defaults.AntiSpam.BlockDuration.Seconds()), "Block duration in seconds")
	flags.Int("cleanup-interval-secs", int(defaults.AntiSpam.CleanupInterval.Seconds()), "Janitor interval in seconds")
	flags.Int("retention-secs", int(defaults.AntiSpam.Retention.Seconds()), "Mention history retention in seconds")
	flags.Int("report-top-n", defaults.AntiSpam.ReportTopN, "Number of senders listed in the spam report")

	supportedLangs := strings.Join(i18n.GetSupportedLanguages(), ", ")
	flags.String("language", defaults.App.Language, fmt.Sprintf("Bot language (%s)", supportedLangs))
	flags.String("command-prefix", defaults.App.CommandPrefix, "Prefix for bot commands")
	flags.StringSlice("owners", nil, "Sender IDs treated as admins in every chat")
	flags.Bool("anti-mention-enabled", defaults.App.AntiMentionEnabled, "Enable mention spam protection at startup")
	flags.Bool("delete-blocked-messages", defaults.App.DeleteBlockedMessages, "Delete messages sent by blocked senders")
	flags.Bool("notify-owners-on-block", defaults.App.NotifyOwnersOnBlock, "Send admins a direct message when a sender is blocked")
	flags.Int("notice-limit-per-minute", defaults.App.NoticeLimitPerMinute, "Maximum warning notices per chat per minute")

	flags.String("settings-path", defaults.Store.SettingsPath, "SQLite database for runtime settings (empty disables persistence)")
	flags.Int("dedup-capacity", defaults.Store.DedupCapacity, "Number of message IDs remembered for deduplication")
	flags.String("redis-url", "", "Redis URL for publishing enforcement events (optional)")
	flags.String("redis-channel", audit.DefaultRedisChannel, "Redis pub/sub channel for enforcement events")

	flags.Bool("generate-env-example", false, "Generate .env.example file from current configuration and exit")

	if err := viper.BindPFlags(flags); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bind flags: %v\n", err)
		os.Exit(1)
	}
}

func initConfig() {
	envFile := ".env"
	if cfgFile != "" {
		envFile = cfgFile
	}

	if err := gotenv.Load(envFile); err != nil {
		// a missing .env is fine
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
		}
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	config = buildConfig()
	logger = buildLogger(config.Log)
}

func buildConfig() *core.Config {
	cfg := core.DefaultConfig()

	configureTelegram(cfg)
	configureWhatsApp(cfg)
	configureServer(cfg)
	configureAntiSpam(cfg)
	configureStore(cfg)
	configureAudit(cfg)
	configureApp(cfg)

	return cfg
}

func configureTelegram(cfg *core.Config) {
	cfg.Telegram.Enabled = viper.GetBool("telegram-enabled")
	cfg.Telegram.BotToken = viper.GetString("telegram-bot-token")
	cfg.Telegram.GroupID = viper.GetInt64("telegram-group-id")
}

func configureWhatsApp(cfg *core.Config) {
	cfg.WhatsApp.Enabled = viper.GetBool("whatsapp-enabled")
	cfg.WhatsApp.GroupJID = viper.GetString("whatsapp-group-jid")
	cfg.WhatsApp.SessionPath = viper.GetString("whatsapp-session-path")
	if cfg.WhatsApp.SessionPath == "" {
		cfg.WhatsApp.SessionPath = core.DefaultWhatsAppSessionPath
	}
}

func configureServer(cfg *core.Config) {
	cfg.Server.Enabled = viper.GetBool("server-enabled")
	cfg.Server.Host = viper.GetString("server-host")
	if cfg.Server.Host == "" {
		cfg.Server.Host = defaultServerHost
	}
	cfg.Server.Port = viper.GetInt("server-port")
	cfg.Log.Level = viper.GetString("log-level")
	cfg.Log.Format = viper.GetString("log-format")
}

func configureAntiSpam(cfg *core.Config) {
	cfg.AntiSpam.MaxMentions = viper.GetUint("max-mentions")
	cfg.AntiSpam.MaxMentionsPerMinute = viper.GetUint("max-mentions-per-minute")
	cfg.AntiSpam.MaxMentionsPerHour = viper.GetUint("max-mentions-per-hour")
	cfg.AntiSpam.WarningThreshold = viper.GetUint("warning-threshold")
	cfg.AntiSpam.BlockDuration = secondsSetting("block-duration-secs", cfg.AntiSpam.BlockDuration)
	cfg.AntiSpam.CleanupInterval = secondsSetting("cleanup-interval-secs", cfg.AntiSpam.CleanupInterval)
	cfg.AntiSpam.Retention = secondsSetting("retention-secs", cfg.AntiSpam.Retention)

	if topN := viper.GetInt("report-top-n"); topN > 0 {
		cfg.AntiSpam.ReportTopN = topN
	}
}

// secondsSetting reads a duration given in seconds, keeping the fallback for non-positive values
func secondsSetting(key string, fallback time.Duration) time.Duration {
	secs := viper.GetInt(key)
	if secs <= 0 {
		fmt.Fprintf(os.Stderr, "Warning: Invalid %s (%d), using default (%d)\n", key, secs, int(fallback.Seconds()))
		return fallback
	}
	return time.Duration(secs) * time.Second
}

func configureStore(cfg *core.Config) {
	cfg.Store.SettingsPath = viper.GetString("settings-path")
	if capacity := viper.GetInt("dedup-capacity"); capacity > 0 {
		cfg.Store.DedupCapacity = capacity
	}
}

func configureAudit(cfg *core.Config) {
	cfg.Audit.RedisURL = viper.GetString("redis-url")
	cfg.Audit.RedisChannel = viper.GetString("redis-channel")
}

func configureApp(cfg *core.Config) {
	cfg.App.Language = viper.GetString("language")
	if cfg.App.Language == "" {
		cfg.App.Language = i18n.DefaultLanguage
	}
	if !i18n.IsSupported(cfg.App.Language) {
		fmt.Fprintf(os.Stderr, "Warning: Unsupported language '%s', falling back to '%s'. Supported languages: %s\n",
			cfg.App.Language, i18n.DefaultLanguage, strings.Join(i18n.GetSupportedLanguages(), ", "))
		cfg.App.Language = i18n.DefaultLanguage
	}

	if prefix := viper.GetString("command-prefix"); prefix != "" {
		cfg.App.CommandPrefix = prefix
	}
	cfg.App.Owners = splitList(viper.GetStringSlice("owners"))
	cfg.App.AntiMentionEnabled = viper.GetBool("anti-mention-enabled")
	cfg.App.DeleteBlockedMessages = viper.GetBool("delete-blocked-messages")
	cfg.App.NotifyOwnersOnBlock = viper.GetBool("notify-owners-on-block")

	cfg.App.NoticeLimitPerMinute = viper.GetInt("notice-limit-per-minute")
	if cfg.App.NoticeLimitPerMinute <= 0 {
		cfg.App.NoticeLimitPerMinute = core.DefaultNoticeLimitPerMinute
	}
}

// splitList flattens comma separated entries
func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func buildLogger(logCfg core.LogConfig) *zap.Logger {
	var zapLevel zapcore.Level
	switch strings.ToLower(logCfg.Level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	if strings.EqualFold(logCfg.Format, "text") {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	builtLogger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to build logger: %v", err))
	}

	return builtLogger
}

func runMentionGuard(cmd *cobra.Command, _ []string) error {
	if viper.GetBool("generate-env-example") {
		return generateEnvExample(cmd)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting MentionGuard",
		zap.Bool("telegram_enabled", config.Telegram.Enabled),
		zap.Bool("whatsapp_enabled", config.WhatsApp.Enabled),
		zap.Uint("max_mentions", config.AntiSpam.MaxMentions),
		zap.Uint("max_mentions_per_minute", config.AntiSpam.MaxMentionsPerMinute),
		zap.Uint("max_mentions_per_hour", config.AntiSpam.MaxMentionsPerHour),
		zap.String("language", config.App.Language))

	if err := validateConfig(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	svcs, err := initializeServices(ctx)
	if err != nil {
		return err
	}
	defer svcs.close()

	return runServices(ctx, svcs)
}

type services struct {
	engine     *antispam.Engine
	settings   *store.SettingsStore
	publisher  audit.Publisher
	httpServer *httpserver.Server
	dispatcher *core.Dispatcher
}

func initializeServices(ctx context.Context) (*services, error) {
	svcs := &services{}

	engine, err := antispam.New(config.AntiSpam, clockwork.NewRealClock(), logger.Named("antispam"))
	if err != nil {
		return nil, fmt.Errorf("failed to create anti-spam engine: %w", err)
	}
	svcs.engine = engine

	dedup, err := store.NewMessageDedup(config.Store.DedupCapacity, config.Store.DedupFalsePositiveRate)
	if err != nil {
		svcs.close()
		return nil, fmt.Errorf("failed to create dedup store: %w", err)
	}

	var settings core.SettingsStore
	if config.Store.SettingsPath != "" {
		svcs.settings, err = store.OpenSettings(ctx, config.Store.SettingsPath)
		if err != nil {
			svcs.close()
			return nil, fmt.Errorf("failed to open settings store: %w", err)
		}
		settings = svcs.settings
	}

	svcs.publisher, err = createPublisher(ctx)
	if err != nil {
		svcs.close()
		return nil, err
	}

	var metrics core.MetricsRecorder
	if config.Server.Enabled {
		svcs.httpServer = httpserver.NewServer(&config.Server, engine, logger.Named("http"))
		metrics = svcs.httpServer
	}

	svcs.dispatcher = core.NewDispatcher(config, core.Services{
		Engine:    engine,
		Frontends: createChatFrontends(),
		Dedup:     dedup,
		Settings:  settings,
		Publisher: svcs.publisher,
		Metrics:   metrics,
	}, logger.Named("dispatcher"))
	if svcs.httpServer != nil {
		svcs.httpServer.RegisterPipeline(svcs.dispatcher)
	}

	return svcs, nil
}

func createPublisher(ctx context.Context) (audit.Publisher, error) {
	publishers := audit.MultiPublisher{audit.NewLogPublisher(logger.Named("audit"))}

	if config.Audit.RedisURL != "" {
		redisPublisher, err := audit.NewRedisPublisher(ctx, config.Audit.RedisURL, config.Audit.RedisChannel)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis publisher: %w", err)
		}
		publishers = append(publishers, redisPublisher)
		logger.Info("Publishing enforcement events to redis", zap.String("channel", config.Audit.RedisChannel))
	}

	return publishers, nil
}

func createChatFrontends() []chat.Frontend {
	var frontends []chat.Frontend

	if config.Telegram.Enabled {
		frontends = append(frontends, telegram.NewFrontend(&telegram.Config{
			BotToken: config.Telegram.BotToken,
			GroupID:  config.Telegram.GroupID,
			Enabled:  config.Telegram.Enabled,
		}, logger.Named("telegram")))
		logger.Info("Telegram frontend enabled", zap.Int64("group_id", config.Telegram.GroupID))
	}

	if config.WhatsApp.Enabled {
		frontends = append(frontends, whatsapp.NewFrontend(&whatsapp.Config{
			GroupJID:    config.WhatsApp.GroupJID,
			SessionPath: config.WhatsApp.SessionPath,
			Enabled:     config.WhatsApp.Enabled,
		}, logger.Named("whatsapp")))
		logger.Info("WhatsApp frontend enabled", zap.String("group_jid", config.WhatsApp.GroupJID))
	}

	return frontends
}

func (s *services) close() {
	if s.engine != nil {
		s.engine.Close()
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			logger.Debug("Failed to close event publisher", zap.Error(err))
		}
	}
	if s.settings != nil {
		if err := s.settings.Close(); err != nil {
			logger.Debug("Failed to close settings store", zap.Error(err))
		}
	}
}

func runServices(ctx context.Context, svcs *services) error {
	g, gCtx := errgroup.WithContext(ctx)

	if svcs.httpServer != nil {
		g.Go(func() error {
			return svcs.httpServer.Start(gCtx)
		})
	}

	g.Go(func() error {
		return svcs.engine.Run(gCtx)
	})

	g.Go(func() error {
		return svcs.dispatcher.Start(gCtx)
	})

	if svcs.httpServer != nil {
		svcs.httpServer.SetReady(true)
		logger.Info("MentionGuard started successfully",
			zap.String("http_addr", fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)))
	} else {
		logger.Info("MentionGuard started successfully")
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("MentionGuard stopped with error", zap.Error(err))
		return err
	}

	logger.Info("MentionGuard stopped gracefully")
	return nil
}

func validateConfig() error {
	if !config.Telegram.Enabled && !config.WhatsApp.Enabled {
		return fmt.Errorf("at least one chat frontend must be enabled (Telegram or WhatsApp)")
	}

	if config.Telegram.Enabled && config.Telegram.BotToken == "" {
		return fmt.Errorf("telegram bot token is required when Telegram is enabled")
	}

	if config.WhatsApp.Enabled && config.WhatsApp.SessionPath == "" {
		return fmt.Errorf("WhatsApp session path is required when WhatsApp is enabled")
	}

	if err := config.AntiSpam.Validate(); err != nil {
		return err
	}

	if config.Store.DedupFalsePositiveRate <= 0 || config.Store.DedupFalsePositiveRate >= 1 {
		return fmt.Errorf("dedup false positive rate must be between 0 and 1")
	}

	return nil
}
