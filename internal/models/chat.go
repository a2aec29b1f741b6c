package models

import (
	"strings"
	"unicode/utf8"
)

// Conversation represents a persisted transcript. It provides basic identification and labeling
// capabilities for listing past conversations.
type Conversation struct {
	ID    string
	Title string
}

const maxTitleRunes = 40

// TitleFromMessage derives a conversation title from the first user message. Whitespace is
// collapsed and the result is cut to a fixed number of runes, with an ellipsis when cut.
func TitleFromMessage(message string) string {
	title := strings.Join(strings.Fields(message), " ")
	if utf8.RuneCountInString(title) <= maxTitleRunes {
		return title
	}
	runes := []rune(title)
	return strings.TrimSpace(string(runes[:maxTitleRunes])) + "…"
}
