package i18n

// swahiliMessages contains the Kiswahili translations
var swahiliMessages = map[string]string{
	"notice.warn.1":         "⚠️ Onyo: Tafadhali punguza kutaja watu!",
	"notice.warn.2":         "🚨 Umetaja watu wengi mno!",
	"notice.warn.3":         "⛔ Kutaja watu kupita kiasi - tafadhali punguza kasi!",
	"notice.block.1":        "🚫 Mtumiaji amezuiwa kwa kutaja watu kupita kiasi!",
	"notice.block.2":        "🛑 Ulinzi dhidi ya barua taka umewashwa!",
	"notice.block.3":        "🔒 Mtumiaji amezuiwa kwa muda kwa barua taka!",
	"notice.details":        "👤 Mtumiaji: %s\n⏰ Muda: %s\n🔧 Hatua: %s",
	"notice.warning_count":  "📈 Maonyo: %d/%d",
	"notice.block_duration": "⏳ Amezuiwa kwa sekunde %d",
	"notice.block_followup": "🚫 Mtumiaji amezuiwa kwa muda kwa barua taka!",

	"action.warn":  "Onyo",
	"action.block": "Kizuizi cha muda",

	"cmd.admin_only": "🔒 Amri hii ni ya wasimamizi wa kikundi tu.",
	"cmd.stats": "📊 *Takwimu za ulinzi*\n\n" +
		"Watumiaji wanaofuatiliwa: %d\nHai (saa 1): %d\nHai (saa 24): %d\n" +
		"Kutajwa (saa 1): %d\nKutajwa (saa 24): %d\nWamezuiwa: %d\nWameonywa: %d",
	"cmd.report.header":         "📋 *Ripoti ya barua taka*\n\nWatumiaji wanaofuatiliwa: %d\nWamezuiwa: %d\nWameonywa: %d",
	"cmd.report.top_header":     "\n\n🏆 Wanaotaja zaidi:",
	"cmd.report.entry":          "\n%d. %s - jumla %d, saa iliyopita %d, maonyo %d",
	"cmd.report.blocked_marker": " 🚫",
	"cmd.report.empty":          "\n\nHakuna shughuli ya kutaja iliyorekodiwa.",
	"cmd.warnings":              "⚠️ %s ana maonyo %d.",
	"cmd.warnings.blocked":      "⚠️ %s ana maonyo %d na amezuiwa kwa sekunde %d zaidi.",
	"cmd.reset.usage":           "Matumizi: %sresetspam @mtumiaji [@mtumiaji ...]",
	"cmd.reset.done":            "✅ Hali ya ulinzi imefutwa kwa: %s",
	"cmd.set.usage":             "Matumizi: %sspamset <ufunguo> <thamani>\nFunguo: %s",
	"cmd.set.unknown_key":       "❌ Mpangilio usiojulikana: %s",
	"cmd.set.invalid_value":     "❌ Thamani batili kwa %s: %s",
	"cmd.set.done":              "✅ %s imewekwa kuwa %s",
	"cmd.set.persist_failed":    "⚠️ %s imetumika, lakini haikuhifadhiwa na itarudi baada ya kuanzisha upya.",
	"cmd.settings": "⚙️ *Mipangilio ya ulinzi*\n\n" +
		"Ulinzi: %s\nKikomo cha jumla: %d\nKwa dakika: %d\nKwa saa: %d\n" +
		"Maonyo kabla ya kuzuia: %d\nMuda wa kuzuia: %ds\nMuda wa usafishaji: %ds\nMuda wa kuhifadhi: %ds",
	"cmd.antimention.on":    "✅ Ulinzi dhidi ya kutaja kupita kiasi umewashwa.",
	"cmd.antimention.off":   "⏸️ Ulinzi dhidi ya kutaja kupita kiasi umezimwa.",
	"cmd.antimention.usage": "Matumizi: %santimention on|off",

	"state.on":  "umewashwa",
	"state.off": "umezimwa",

	"error.generic": "Kuna tatizo. Tafadhali jaribu tena.",
}
