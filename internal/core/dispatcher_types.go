package core

// Message outcome labels for MetricsRecorder.RecordMessage
const (
	statusDuplicate     = "duplicate"
	statusCommand       = "command"
	statusDisabled      = "disabled"
	statusBlockedSender = "blocked_sender"
	statusNoMentions    = "no_mentions"
	statusInvalid       = "invalid"
	statusClean         = "clean"
	statusWarned        = "warned"
	statusBlocked       = "blocked"
)

// Command outcome labels for MetricsRecorder.RecordCommand
const (
	commandOK     = "ok"
	commandDenied = "denied"
	commandFailed = "failed"
)

// Component labels for MetricsRecorder.RecordError
const (
	componentFrontend = "frontend"
	componentAntiSpam = "antispam"
	componentAudit    = "audit"
	componentSettings = "settings"
)

// Command names, without the prefix
const (
	cmdStats       = "antispam"
	cmdReport      = "spamreport"
	cmdWarnings    = "warnings"
	cmdReset       = "resetspam"
	cmdSet         = "spamset"
	cmdSettings    = "spamsettings"
	cmdAntiMention = "antimention"
)

const (
	noticeTimeLayout = "15:04:05"
	// upper bound for a single outgoing notice, alert or deletion
	sendTimeoutSecs = 10
)
