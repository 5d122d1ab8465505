// Package text provides mention and command parsing for chat messages.
package text

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

const (
	// DefaultCommandPrefix is the prefix that marks a message as a bot command
	DefaultCommandPrefix = "!"
)

var (
	mentionRegex    = regexp.MustCompile(`@(\d+)`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
	caseFolder      = cases.Fold()
)

// Command is a parsed bot command such as "!spamset max-mentions 10"
type Command struct {
	Name string
	Args []string
}

// Parser recognizes bot commands behind a configurable prefix
type Parser struct {
	prefix string
}

// NewParser returns a parser for commandPrefix, falling back to DefaultCommandPrefix when empty
func NewParser(commandPrefix string) *Parser {
	if commandPrefix == "" {
		commandPrefix = DefaultCommandPrefix
	}
	return &Parser{prefix: commandPrefix}
}

// ParseCommand splits "<prefix><name> args..." into a command. The text is NFKC-normalized
// first so full-width prefixes like "！" match, and names are case-folded.
func (p *Parser) ParseCommand(text string) (Command, bool) {
	text = NormalizeText(text)
	if !strings.HasPrefix(text, p.prefix) {
		return Command{}, false
	}

	fields := strings.Fields(strings.TrimPrefix(text, p.prefix))
	if len(fields) == 0 {
		return Command{}, false
	}

	return Command{
		Name: caseFolder.String(fields[0]),
		Args: fields[1:],
	}, true
}

// ExtractMentions returns the numeric ids of all "@<digits>" tokens, in order, duplicates included.
// This is the fallback for platforms that do not report mentions as structured metadata.
func ExtractMentions(text string) []string {
	matches := mentionRegex.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	mentions := make([]string, 0, len(matches))
	for _, m := range matches {
		mentions = append(mentions, m[1])
	}
	return mentions
}

// NormalizeText applies NFKC normalization and collapses whitespace
func NormalizeText(text string) string {
	text = norm.NFKC.String(text)
	text = whitespaceRegex.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// CleanTarget turns a command argument like "@2547..." or "@Alice" into a bare identifier
func CleanTarget(arg string) string {
	arg = strings.TrimSpace(arg)
	arg = strings.TrimPrefix(arg, "@")
	return strings.TrimRight(arg, ".,!?;:")
}

// FoldCase returns the case-folded form of s for case-insensitive comparison
func FoldCase(s string) string {
	return caseFolder.String(s)
}
