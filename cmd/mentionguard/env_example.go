package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"mentionguard/internal/i18n"
)

func generateEnvExample(cmd *cobra.Command) error {
	fmt.Println("Generating .env.example file from current configuration...")

	content := generateEnvExampleContent(cmd)

	if err := os.WriteFile(".env.example", []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write .env.example: %w", err)
	}

	fmt.Println("✅ Successfully generated .env.example file")
	return nil
}

func generateEnvExampleContent(cmd *cobra.Command) string {
	var content strings.Builder

	content.WriteString("# =============================================================================\n")
	content.WriteString("# MentionGuard Configuration\n")
	content.WriteString("# =============================================================================\n")
	content.WriteString("#\n")
	content.WriteString("# Copy this file to .env and update with your values\n")
	content.WriteString("# All environment variables have CLI flag equivalents (use --help to see them)\n")
	content.WriteString("#\n")
	content.WriteString("# Format: " + envPrefix + "_<SETTING>=value\n")
	content.WriteString("# CLI equivalent: --<setting>\n")
	content.WriteString("#\n")
	content.WriteString("# =============================================================================\n")
	content.WriteString("# CHAT PLATFORMS - Enable one or both\n")
	content.WriteString("# =============================================================================\n\n")

	generateTelegramSection(&content, cmd)
	generateWhatsAppSection(&content, cmd)
	generateAntiSpamSection(&content, cmd)
	generateAppSection(&content, cmd)
	generateStorageSection(&content, cmd)
	generateServerSection(&content, cmd)
	generateLoggingSection(&content, cmd)
	generateQuickSetupGuide(&content)

	return content.String()
}

func flagToEnvVar(flagName string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}

func getDefaultValueString(cmd *cobra.Command, flagName string) string {
	if f := cmd.PersistentFlags().Lookup(flagName); f != nil {
		return f.DefValue
	}
	return ""
}

// writeSetting emits one KEY=default line with the flag's usage as comment
func writeSetting(content *strings.Builder, cmd *cobra.Command, flagName string) {
	value := getDefaultValueString(cmd, flagName)
	usage := ""
	if f := cmd.PersistentFlags().Lookup(flagName); f != nil {
		usage = f.Usage
	}
	if value == "[]" {
		value = ""
	}
	fmt.Fprintf(content, "%s=%s  # %s (default: %q)\n", flagToEnvVar(flagName), value, usage, value)
}

func writeSectionHeader(content *strings.Builder, title string, flags ...string) {
	content.WriteString("# -----------------------------------------------------------------------------\n")
	content.WriteString("# " + title + "\n")
	content.WriteString("# -----------------------------------------------------------------------------\n")
	if len(flags) > 0 {
		content.WriteString("# CLI: --" + strings.Join(flags, ", --") + "\n")
	}
}

func generateTelegramSection(content *strings.Builder, cmd *cobra.Command) {
	writeSectionHeader(content, "Telegram Configuration (Recommended - Default enabled)",
		"telegram-enabled", "telegram-bot-token", "telegram-group-id")

	writeSetting(content, cmd, "telegram-enabled")
	fmt.Fprintf(content, "%s=123456:ABC-DEF1234ghIkl-zyx57W2v1u123ew11  # Bot token from @BotFather\n",
		flagToEnvVar("telegram-bot-token"))
	fmt.Fprintf(content, "%s=-100xxxxxxxxxx                # Group ID (get from @userinfobot), 0 watches every group\n",
		flagToEnvVar("telegram-group-id"))
	content.WriteString("\n")
}

func generateWhatsAppSection(content *strings.Builder, cmd *cobra.Command) {
	writeSectionHeader(content, "WhatsApp Configuration (Optional - Disabled by default due to ToS concerns)",
		"whatsapp-enabled", "whatsapp-group-jid", "whatsapp-session-path")

	writeSetting(content, cmd, "whatsapp-enabled")
	fmt.Fprintf(content, "%s=120363123456789@g.us        # WhatsApp group JID (use debug logging to find)\n",
		flagToEnvVar("whatsapp-group-jid"))
	writeSetting(content, cmd, "whatsapp-session-path")
	content.WriteString("\n")
}

func generateAntiSpamSection(content *strings.Builder, cmd *cobra.Command) {
	content.WriteString("# =============================================================================\n")
	content.WriteString("# MENTION LIMITS - Admins can change these at runtime with !spamset\n")
	content.WriteString("# =============================================================================\n")
	content.WriteString("\n")

	limits := []string{
		"max-mentions",
		"max-mentions-per-minute",
		"max-mentions-per-hour",
		"warning-threshold",
		"block-duration-secs",
		"cleanup-interval-secs",
		"retention-secs",
		"report-top-n",
	}
	writeSectionHeader(content, "Limits and Timers (durations in seconds)", limits...)
	for _, flagName := range limits {
		writeSetting(content, cmd, flagName)
	}
	content.WriteString("\n")
}

func generateAppSection(content *strings.Builder, cmd *cobra.Command) {
	content.WriteString("# =============================================================================\n")
	content.WriteString("# APPLICATION SETTINGS\n")
	content.WriteString("# =============================================================================\n")
	content.WriteString("\n")

	writeSectionHeader(content, "Localization", "language")
	fmt.Fprintf(content, "%s=%s  # Bot language: %s\n",
		flagToEnvVar("language"), getDefaultValueString(cmd, "language"),
		strings.Join(i18n.GetSupportedLanguages(), ", "))
	content.WriteString("\n")

	behaviour := []string{
		"command-prefix",
		"owners",
		"anti-mention-enabled",
		"delete-blocked-messages",
		"notify-owners-on-block",
		"notice-limit-per-minute",
	}
	writeSectionHeader(content, "Behaviour", behaviour...)
	for _, flagName := range behaviour {
		writeSetting(content, cmd, flagName)
	}
	content.WriteString("\n")
}

func generateStorageSection(content *strings.Builder, cmd *cobra.Command) {
	writeSectionHeader(content, "Storage and Event Publishing",
		"settings-path", "dedup-capacity", "redis-url", "redis-channel")

	writeSetting(content, cmd, "settings-path")
	writeSetting(content, cmd, "dedup-capacity")
	fmt.Fprintf(content, "# %s=redis://localhost:6379/0  # Publish warnings and blocks to redis (optional)\n",
		flagToEnvVar("redis-url"))
	writeSetting(content, cmd, "redis-channel")
	content.WriteString("\n")
}

func generateServerSection(content *strings.Builder, cmd *cobra.Command) {
	writeSectionHeader(content, "HTTP Server Configuration", "server-enabled", "server-host", "server-port")

	writeSetting(content, cmd, "server-enabled")
	fmt.Fprintf(content, "%s=%s                         # Server bind address (default: %s)\n",
		flagToEnvVar("server-host"), "127.0.0.1", getDefaultValueString(cmd, "server-host"))
	writeSetting(content, cmd, "server-port")
	content.WriteString("\n")
}

func generateLoggingSection(content *strings.Builder, cmd *cobra.Command) {
	writeSectionHeader(content, "Logging Configuration", "log-level", "log-format")

	writeSetting(content, cmd, "log-level")
	writeSetting(content, cmd, "log-format")
	content.WriteString("\n")
}

func generateQuickSetupGuide(content *strings.Builder) {
	content.WriteString("# =============================================================================\n")
	content.WriteString("# QUICK SETUP GUIDE\n")
	content.WriteString("# =============================================================================\n")
	content.WriteString("\n")
	content.WriteString("# 1. TELEGRAM SETUP:\n")
	content.WriteString("#    - Message @BotFather on Telegram and create a bot with /newbot\n")
	content.WriteString("#    - Copy bot token to " + flagToEnvVar("telegram-bot-token") + " above\n")
	content.WriteString("#    - Add bot to your group as admin with the 'Delete messages' right\n")
	content.WriteString("#    - Group admins can now use !antispam, !spamreport and !spamset\n")
	content.WriteString("\n")
	content.WriteString("# 2. WHATSAPP SETUP (Optional):\n")
	content.WriteString("#    - Set " + flagToEnvVar("whatsapp-enabled") + "=true and start the service\n")
	content.WriteString("#    - Scan the QR code printed in the terminal with the WhatsApp app\n")
	content.WriteString("#    - WhatsApp has no admin lookup, list moderators in " + flagToEnvVar("owners") + "\n")
	content.WriteString("\n")
	content.WriteString("# 3. TEST CONFIGURATION:\n")
	content.WriteString("#    go run ./cmd/mentionguard --help                        # See all CLI options\n")
	content.WriteString("#    go run ./cmd/mentionguard --log-level=debug             # Run with debug logging\n")
	content.WriteString("#    curl http://127.0.0.1:8080/api/stats                    # Inspect live counters\n")
	content.WriteString("\n")
}
