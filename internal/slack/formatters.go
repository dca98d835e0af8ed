package slack

import (
	"strings"
	"unicode/utf8"
)

// maxMessageLen is Slack's limit for the text of one message.
const maxMessageLen = 40000

var escaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// FormatText escapes Slack control characters and truncates to the message
// limit. Bare URLs are left for Slack to link.
func FormatText(text string) string {
	return TruncateText(escaper.Replace(text), maxMessageLen)
}

// TruncateText truncates text to at most maxLen bytes with an ellipsis,
// never splitting a UTF-8 sequence.
func TruncateText(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	suffix := "..."
	if maxLen <= len(suffix) {
		suffix = ""
	}
	cut := maxLen - len(suffix)
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + suffix
}
