package memory

import "strings"

const (
	// summaryClauseLimit caps how much of an evicted turn enters the
	// summary.
	summaryClauseLimit = 80

	// summaryMaxLines bounds the rolling summary; oldest lines drop
	// first.
	summaryMaxLines = 40
)

// foldIntoSummary appends a digest line for an evicted turn. The digest
// is deterministic: role tag plus the first clause of the text, so the
// same eviction sequence always yields the same summary.
func foldIntoSummary(summary string, evicted Turn) string {
	line := evicted.Role + ": " + firstClause(evicted.Text)

	var lines []string
	if summary != "" {
		lines = strings.Split(summary, "\n")
	}
	lines = append(lines, line)
	if len(lines) > summaryMaxLines {
		lines = lines[len(lines)-summaryMaxLines:]
	}
	return strings.Join(lines, "\n")
}

// firstClause cuts at the first sentence terminator, then clamps length
// at a rune boundary.
func firstClause(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexAny(text, ".!?"); i >= 0 {
		text = text[:i]
	}
	runes := []rune(text)
	if len(runes) > summaryClauseLimit {
		text = string(runes[:summaryClauseLimit])
	}
	return text
}
