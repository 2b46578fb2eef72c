// Package transcript turns saved voice-session text into role-tagged messages.
//
// A transcript is a block of newline-separated lines. Lines written as
// "[user]: ..." belong to the speaker and lines written as "[AI]: ..." belong
// to the assistant; every other line is ignored.
package transcript

import (
	"regexp"
	"strings"

	"voicelog/internal/models"
)

const (
	UserPrefix      = "[user]:"
	AssistantPrefix = "[AI]:"
)

var (
	userLine      = regexp.MustCompile(`^\[user\]:\s*(.+)$`)
	assistantLine = regexp.MustCompile(`^\[AI\]:\s*(.+)$`)
)

// Parse extracts messages in line order. The user pattern is tried first.
// The result is never nil so it encodes as an empty JSON array.
func Parse(text string) []models.Message {
	messages := make([]models.Message, 0)
	if text == "" {
		return messages
	}
	for _, line := range strings.Split(text, "\n") {
		if m := userLine.FindStringSubmatch(line); m != nil {
			messages = append(messages, models.Message{Role: models.RoleUser, Content: strings.TrimSpace(m[1])})
			continue
		}
		if m := assistantLine.FindStringSubmatch(line); m != nil {
			messages = append(messages, models.Message{Role: models.RoleAssistant, Content: strings.TrimSpace(m[1])})
		}
	}
	return messages
}

// Count returns the number of message lines without building them.
// A line counts when it starts with a prefix and has anything after it,
// which is exactly when Parse's patterns match.
func Count(text string) int {
	if text == "" {
		return 0
	}
	n := 0
	for _, line := range strings.Split(text, "\n") {
		if hasPrefixWithBody(line, UserPrefix) || hasPrefixWithBody(line, AssistantPrefix) {
			n++
		}
	}
	return n
}

func hasPrefixWithBody(line, prefix string) bool {
	return len(line) > len(prefix) && strings.HasPrefix(line, prefix)
}
