package service

import "strings"

const maxTitleRunes = 50

// threadTitle derives a thread title from its first message.
func threadTitle(text string) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= maxTitleRunes {
		return text
	}
	return string(runes[:maxTitleRunes]) + "..."
}
