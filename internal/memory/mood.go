package memory

import (
	"strings"
	"unicode"
)

// Mood labels. MoodNeutral is the default when nothing matches.
const (
	MoodHappy    = "happy"
	MoodSad      = "sad"
	MoodAnxious  = "anxious"
	MoodPeaceful = "peaceful"
	MoodAngry    = "angry"
	MoodNeutral  = "neutral"
)

// moodTurnSpan is how many recent user turns feed the estimate.
const moodTurnSpan = 5

// moodKeywords maps each mood to its trigger words. Matching is on
// whole lowercased tokens, so "sad" does not fire on "Sadhana".
var moodKeywords = map[string][]string{
	MoodHappy:    {"happy", "joy", "joyful", "glad", "great", "wonderful", "excited", "grateful", "blessed"},
	MoodSad:      {"sad", "unhappy", "depressed", "down", "grief", "grieving", "cry", "crying", "lonely", "lost"},
	MoodAnxious:  {"anxious", "worried", "worry", "nervous", "stress", "stressed", "afraid", "fear", "scared", "overwhelmed"},
	MoodPeaceful: {"peaceful", "peace", "calm", "serene", "content", "still", "centered"},
	MoodAngry:    {"angry", "anger", "mad", "furious", "frustrated", "annoyed", "irritated", "resentful"},
}

// estimateMood scores moods over the last moodTurnSpan user turns,
// weighting recent turns higher. Ties resolve to the mood seen most
// recently, then alphabetically for determinism.
func estimateMood(turns []Turn) string {
	var recent []Turn
	for i := len(turns) - 1; i >= 0 && len(recent) < moodTurnSpan; i-- {
		if turns[i].Role == RoleUser {
			recent = append(recent, turns[i])
		}
	}
	if len(recent) == 0 {
		return MoodNeutral
	}

	scores := make(map[string]int)
	lastSeen := make(map[string]int)
	for ri, turn := range recent {
		weight := moodTurnSpan - ri // recent[0] is the most recent turn
		tokens := moodTokens(turn.Text)
		for mood, keywords := range moodKeywords {
			for _, kw := range keywords {
				if _, ok := tokens[kw]; !ok {
					continue
				}
				scores[mood] += weight
				if lastSeen[mood] < weight {
					lastSeen[mood] = weight
				}
			}
		}
	}
	if len(scores) == 0 {
		return MoodNeutral
	}

	best := MoodNeutral
	for mood, score := range scores {
		if best == MoodNeutral {
			best = mood
			continue
		}
		switch {
		case score > scores[best]:
			best = mood
		case score == scores[best] && lastSeen[mood] > lastSeen[best]:
			best = mood
		case score == scores[best] && lastSeen[mood] == lastSeen[best] && mood < best:
			best = mood
		}
	}
	return best
}

func moodTokens(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	}) {
		set[tok] = struct{}{}
	}
	return set
}
