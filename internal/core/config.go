package core

import (
	"time"

	"mentionguard/internal/antispam"
	"mentionguard/internal/i18n"
	"mentionguard/pkg/text"
)

const (
	DefaultServerPort           = 8080
	DefaultNoticeLimitPerMinute = 6
	DefaultDedupCapacity        = 10000
	DefaultDedupFalsePositive   = 0.001
	DefaultSettingsPath         = "./mentionguard_settings.db"
	DefaultWhatsAppSessionPath  = "./whatsapp_session.db"
)

type Config struct {
	AntiSpam antispam.Config
	Telegram TelegramConfig
	WhatsApp WhatsAppConfig
	Server   ServerConfig
	Log      LogConfig
	Store    StoreConfig
	Audit    AuditConfig
	App      AppConfig
}

type TelegramConfig struct {
	Enabled  bool
	BotToken string
	GroupID  int64
}

type WhatsAppConfig struct {
	Enabled     bool
	GroupJID    string
	SessionPath string
}

type ServerConfig struct {
	Enabled      bool
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

type StoreConfig struct {
	SettingsPath           string
	DedupCapacity          int
	DedupFalsePositiveRate float64
}

type AuditConfig struct {
	RedisURL     string
	RedisChannel string
}

type AppConfig struct {
	Language              string
	CommandPrefix         string
	Owners                []string // sender ids treated as admins in every chat
	AntiMentionEnabled    bool
	DeleteBlockedMessages bool
	NotifyOwnersOnBlock   bool
	NoticeLimitPerMinute  int
}

func DefaultConfig() *Config {
	return &Config{
		AntiSpam: antispam.DefaultConfig(),
		Telegram: TelegramConfig{
			Enabled: true,
		},
		WhatsApp: WhatsAppConfig{
			SessionPath: DefaultWhatsAppSessionPath,
		},
		Server: ServerConfig{
			Enabled:      true,
			Host:         "0.0.0.0",
			Port:         DefaultServerPort,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Store: StoreConfig{
			SettingsPath:           DefaultSettingsPath,
			DedupCapacity:          DefaultDedupCapacity,
			DedupFalsePositiveRate: DefaultDedupFalsePositive,
		},
		App: AppConfig{
			Language:              i18n.DefaultLanguage,
			CommandPrefix:         text.DefaultCommandPrefix,
			AntiMentionEnabled:    true,
			DeleteBlockedMessages: true,
			NoticeLimitPerMinute:  DefaultNoticeLimitPerMinute,
		},
	}
}
