package memory

import (
	"regexp"
	"strings"
	"unicode"
)

// Entity kinds.
const (
	EntityPerson = "person"
	EntityPlace  = "place"
	EntityEvent  = "event"
	EntityDate   = "date"
)

// Entity is a named thing the user has mentioned. Names are unique
// case-insensitively; a re-mention updates LastMentioned.
type Entity struct {
	Name          string `json:"name"`
	Kind          string `json:"kind"`
	FirstTurn     int    `json:"first_turn"`
	LastMentioned int    `json:"last_mentioned"`
}

// datePattern matches absolute and month-based date mentions.
var datePattern = regexp.MustCompile(`(?i)\b(?:\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}(?:/\d{2,4})?|(?:january|february|march|april|may|june|july|august|september|october|november|december)\s+\d{1,2}(?:st|nd|rd|th)?|\b\d{4}\b)`)

// relativeDates are standalone words treated as date mentions.
var relativeDates = map[string]bool{
	"yesterday": true, "today": true, "tomorrow": true, "tonight": true,
}

// placePrepositions mark the following capitalized token as a place.
var placePrepositions = map[string]bool{
	"in": true, "at": true, "to": true, "from": true, "near": true,
}

// eventWords mark the preceding capitalized token as an event when they
// follow it, e.g. "Kurukshetra war".
var eventWords = map[string]bool{
	"war": true, "battle": true, "festival": true, "ceremony": true,
	"wedding": true, "funeral": true, "exam": true, "interview": true,
}

// stopWords are capitalized words that are never entities, mostly
// sentence starters and the speaker pronoun.
var stopWords = map[string]bool{
	"i": true, "the": true, "a": true, "an": true, "my": true, "me": true,
	"what": true, "why": true, "how": true, "when": true, "where": true,
	"who": true, "is": true, "it": true, "and": true, "but": true,
	"krishna": true, // the agent itself, not a tracked entity
}

// trackEntities extracts entities from a user turn and merges them into
// the existing list.
func trackEntities(entities []Entity, text string, turn int) []Entity {
	for _, m := range datePattern.FindAllString(text, -1) {
		entities = mergeEntity(entities, m, EntityDate, turn)
	}

	words := strings.Fields(text)
	for i, raw := range words {
		word := strings.TrimFunc(raw, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if word == "" {
			continue
		}
		lower := strings.ToLower(word)

		if relativeDates[lower] {
			entities = mergeEntity(entities, lower, EntityDate, turn)
			continue
		}
		if !unicode.IsUpper([]rune(word)[0]) || stopWords[lower] {
			continue
		}
		// Sentence-initial capitals are ambiguous; skip them.
		if i == 0 || endsSentence(words[i-1]) {
			continue
		}

		kind := EntityPerson
		if placePrepositions[strings.ToLower(strings.Trim(words[i-1], ".,!?;:"))] {
			kind = EntityPlace
		}
		if i+1 < len(words) && eventWords[strings.ToLower(strings.Trim(words[i+1], ".,!?;:"))] {
			kind = EntityEvent
		}
		entities = mergeEntity(entities, word, kind, turn)
	}
	return entities
}

func endsSentence(word string) bool {
	return strings.ContainsAny(word, ".!?")
}

func mergeEntity(entities []Entity, name, kind string, turn int) []Entity {
	lower := strings.ToLower(name)
	for i := range entities {
		if strings.ToLower(entities[i].Name) == lower {
			entities[i].LastMentioned = turn
			return entities
		}
	}
	return append(entities, Entity{
		Name:          name,
		Kind:          kind,
		FirstTurn:     turn,
		LastMentioned: turn,
	})
}
