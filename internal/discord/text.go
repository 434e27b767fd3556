// ABOUTME: Pure text helpers for command parsing and reply delivery
// ABOUTME: Mention softening, 1900-char chunking, prefix command splitting

package discord

import (
	"regexp"
	"strings"
)

// maxMessageLen stays under Discord's 2000-char limit with headroom for
// formatting the platform may add.
const maxMessageLen = 1900

var (
	everyonePattern = regexp.MustCompile(`(?i)@everyone`)
	herePattern     = regexp.MustCompile(`(?i)@here`)
)

// sanitizeOutput defangs mass mentions by inserting a zero-width space
// so the model can never ping a whole server.
func sanitizeOutput(text string) string {
	text = everyonePattern.ReplaceAllString(text, "@​everyone")
	text = herePattern.ReplaceAllString(text, "@​here")
	return text
}

// chunkMessage splits text into sendable pieces. Empty input yields one
// placeholder chunk so the user always gets a reply.
func chunkMessage(text string) []string {
	if text == "" {
		return []string{"(no content)"}
	}

	var chunks []string
	runes := []rune(text)
	for len(runes) > 0 {
		n := maxMessageLen
		if n > len(runes) {
			n = len(runes)
		}
		chunks = append(chunks, string(runes[:n]))
		runes = runes[n:]
	}
	return chunks
}

// parseCommand splits a prefixed message into its command name and
// argument string. Returns ok=false when the message is not a command.
func parseCommand(content, prefix string) (name, args string, ok bool) {
	trimmed := strings.TrimSpace(content)
	if prefix == "" || !strings.HasPrefix(trimmed, prefix) {
		return "", "", false
	}

	rest := strings.TrimSpace(trimmed[len(prefix):])
	if rest == "" {
		return "", "", false
	}

	parts := strings.SplitN(rest, " ", 2)
	name = strings.ToLower(parts[0])
	if len(parts) == 2 {
		args = strings.TrimSpace(parts[1])
	}
	return name, args, true
}

// stripSelfMentions removes the bot's own mention tokens so the
// remainder can serve as the prompt.
func stripSelfMentions(content, botID string) string {
	content = strings.ReplaceAll(content, "<@"+botID+">", "")
	content = strings.ReplaceAll(content, "<@!"+botID+">", "")
	return strings.TrimSpace(content)
}

var userMentionPattern = regexp.MustCompile(`^<@!?(\d+)>$`)

// parseUserMention extracts the user ID from a `<@id>` token.
func parseUserMention(token string) (string, bool) {
	m := userMentionPattern.FindStringSubmatch(strings.TrimSpace(token))
	if m == nil {
		return "", false
	}
	return m[1], true
}
