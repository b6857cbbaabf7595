// Package enhance rewrites short follow-up messages so retrieval sees
// the conversation context. Pure functions, no I/O.
package enhance

import "strings"

// shortTokenLimit: messages with fewer tokens than this are treated as
// follow-ups.
const shortTokenLimit = 6

// continuationPhrases mark a message as a follow-up regardless of
// length. Matched as a prefix or whole message, case-insensitive.
var continuationPhrases = []string{
	"what about",
	"tell me more",
	"and what",
	"what else",
	"go on",
	"how so",
	"why is that",
	"but why",
	"and then",
	"really",
	"more please",
	"what do you mean",
}

// IsFollowUp reports whether the message depends on the previous turn:
// it is short or starts with a continuation phrase.
func IsFollowUp(message string) bool {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return false
	}
	if len(strings.Fields(trimmed)) < shortTokenLimit {
		return true
	}

	lower := strings.ToLower(trimmed)
	for _, phrase := range continuationPhrases {
		if strings.HasPrefix(lower, phrase) {
			return true
		}
	}
	return false
}

// Enhance returns the retrieval query for a message. Follow-ups are
// rewritten with the previous user turn embedded verbatim, so both the
// original message and the prior turn survive as substrings. Everything
// else passes through unchanged.
func Enhance(message, previousUserTurn string) (query string, enhanced bool) {
	if previousUserTurn == "" || !IsFollowUp(message) {
		return message, false
	}
	return message + " (continuing from: " + previousUserTurn + ")", true
}
