package index

import (
	"context"
	"fmt"
	"strings"
	"unicode"
)

// Lexical is the guaranteed retrieval path: token-overlap scoring over
// the same chunk universe as the vector index. It never calls out and
// never fails once constructed.
type Lexical struct {
	chunks []Chunk
	tokens []map[string]struct{} // parallel to chunks
}

// NewLexical prepares token sets for each chunk.
func NewLexical(chunks []Chunk) *Lexical {
	l := &Lexical{
		chunks: chunks,
		tokens: make([]map[string]struct{}, len(chunks)),
	}
	for i, c := range chunks {
		l.tokens[i] = tokenSet(c.Text)
	}
	return l
}

// Query scores each chunk by the fraction of distinct query tokens it
// contains, in (0, 1], and returns the top-k with a positive score.
// Ties break by lower chunk ID. k must be in [MinK, MaxK]. The error
// return exists only for argument validation; retrieval itself cannot
// fail.
func (l *Lexical) Query(_ context.Context, query string, k int) ([]Result, error) {
	if k < MinK || k > MaxK {
		return nil, fmt.Errorf("%w: k=%d not in [%d, %d]", ErrInvalidArgument, k, MinK, MaxK)
	}

	qTokens := tokenSet(query)
	if len(qTokens) == 0 {
		return nil, nil
	}

	var results []Result
	for i, c := range l.chunks {
		score := 0
		for tok := range qTokens {
			if _, ok := l.tokens[i][tok]; ok {
				score++
			}
		}
		if score > 0 {
			results = append(results, Result{Chunk: c, Score: float64(score) / float64(len(qTokens))})
		}
	}
	sortResults(results)

	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

// tokenSet lowercases and splits on non-alphanumeric runes.
func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		set[tok] = struct{}{}
	}
	return set
}
