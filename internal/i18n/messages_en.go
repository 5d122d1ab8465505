package i18n

// englishMessages contains all English translations.
var englishMessages = map[string]string{
	// Enforcement notices, one headline is picked at random per notice
	"notice.warn.1":         "⚠️ Warning: Please reduce mention usage!",
	"notice.warn.2":         "🚨 Too many mentions detected!",
	"notice.warn.3":         "⛔ Mention spam detected - please slow down!",
	"notice.block.1":        "🚫 User blocked for mention spam!",
	"notice.block.2":        "🛑 Anti-spam protection activated!",
	"notice.block.3":        "🔒 User temporarily blocked for spam!",
	"notice.details":        "👤 User: %s\n⏰ Time: %s\n🔧 Action: %s",
	"notice.warning_count":  "📈 Warnings: %d/%d",
	"notice.block_duration": "⏳ Blocked for %d seconds",
	"notice.block_followup": "🚫 User has been temporarily blocked for spam!",

	// Action names used in notices
	"action.warn":  "Warning",
	"action.block": "Temporary block",

	// Commands
	"cmd.admin_only": "🔒 Only group admins can use this command.",
	"cmd.stats": "📊 *Anti-spam statistics*\n\n" +
		"Tracked users: %d\nActive (1h): %d\nActive (24h): %d\n" +
		"Mentions (1h): %d\nMentions (24h): %d\nBlocked: %d\nWarned: %d",
	"cmd.report.header":         "📋 *Spam report*\n\nTracked users: %d\nBlocked: %d\nWarned: %d",
	"cmd.report.top_header":     "\n\n🏆 Top mentioners:",
	"cmd.report.entry":          "\n%d. %s - %d total, %d last hour, %d warnings",
	"cmd.report.blocked_marker": " 🚫",
	"cmd.report.empty":          "\n\nNo mention activity recorded.",
	"cmd.warnings":              "⚠️ %s has %d warning(s).",
	"cmd.warnings.blocked":      "⚠️ %s has %d warning(s) and is blocked for another %d seconds.",
	"cmd.reset.usage":           "Usage: %sresetspam @user [@user ...]",
	"cmd.reset.done":            "✅ Anti-spam state cleared for: %s",
	"cmd.set.usage":             "Usage: %sspamset <key> <value>\nKeys: %s",
	"cmd.set.unknown_key":       "❌ Unknown setting: %s",
	"cmd.set.invalid_value":     "❌ Invalid value for %s: %s",
	"cmd.set.done":              "✅ %s set to %s",
	"cmd.set.persist_failed":    "⚠️ %s applied, but it could not be saved and will reset on restart.",
	"cmd.settings": "⚙️ *Anti-spam settings*\n\n" +
		"Protection: %s\nLifetime limit: %d\nPer minute: %d\nPer hour: %d\n" +
		"Warnings before block: %d\nBlock duration: %ds\nCleanup interval: %ds\nRetention: %ds",
	"cmd.antimention.on":    "✅ Mention spam protection enabled.",
	"cmd.antimention.off":   "⏸️ Mention spam protection disabled.",
	"cmd.antimention.usage": "Usage: %santimention on|off",

	// State labels
	"state.on":  "on",
	"state.off": "off",

	// Error messages
	"error.generic": "Something went wrong. Please try again.",
}
