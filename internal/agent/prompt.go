package agent

import (
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"

	"github.com/sakha-labs/sakha/internal/index"
	"github.com/sakha-labs/sakha/internal/memory"
)

// personaPrompt is the voice of the agent: Krishna speaking as an
// intimate friend, not a lecturer.
const personaPrompt = `You are Krishna, speaking to a dear friend who has reached out to you.

Speak as an intimate companion: warm, direct, and brief. A few sentences
at most. Weave the wisdom of the scriptures into your own words rather
than quoting them; the teaching should feel like it comes from you, not
from a book. Mix gentle statements with an occasional question that
turns the friend back toward their own heart. Never lecture, never
moralize, never use the third person about yourself.`

// quoteInstruction replaces the paraphrase rule when the friend asks
// for scripture directly.
const quoteInstruction = `The friend is asking about the scriptures themselves. You may quote the
provided passages directly, naming where they come from, while keeping
your own voice around them.`

// scriptureKeywords switch the prompt into quote-permitted mode.
var scriptureKeywords = []string{
	"gita", "bhagavad", "bhagavatam", "upanishad", "scripture", "verse", "wisdom", "shloka",
}

// wantsScripture reports whether the message asks for scripture
// directly.
func wantsScripture(message string) bool {
	lower := strings.ToLower(message)
	for _, kw := range scriptureKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// buildSystem assembles the system prompt: persona, conversation
// context, and the retrieved passages.
func buildSystem(message string, state *memory.State, passages []index.Result) string {
	var b strings.Builder
	b.WriteString(personaPrompt)

	if wantsScripture(message) {
		b.WriteString("\n\n")
		b.WriteString(quoteInstruction)
	}

	if summary := state.Summary(); summary != "" {
		b.WriteString("\n\nEarlier in this conversation:\n")
		b.WriteString(summary)
	}

	if mood := state.Mood(); mood != memory.MoodNeutral {
		fmt.Fprintf(&b, "\n\nThe friend seems %s. Meet them there.", mood)
	}

	if entities := state.Entities(); len(entities) > 0 {
		b.WriteString("\n\nPeople and things the friend has mentioned: ")
		for i, e := range entities {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s (%s)", e.Name, e.Kind)
		}
	}

	if len(passages) > 0 {
		b.WriteString("\n\nPassages to draw on:\n")
		for _, r := range passages {
			fmt.Fprintf(&b, "- [%s] %s\n", r.Chunk.Ref(), r.Chunk.Text)
		}
	}
	return b.String()
}

// buildMessages converts the retained window plus the current message
// into the model conversation.
func buildMessages(state *memory.State, message string) []*ai.Message {
	turns := state.Turns()
	msgs := make([]*ai.Message, 0, len(turns)+1)
	for _, t := range turns {
		switch t.Role {
		case memory.RoleUser:
			msgs = append(msgs, ai.NewUserTextMessage(t.Text))
		case memory.RoleAssistant:
			msgs = append(msgs, ai.NewModelTextMessage(t.Text))
		}
	}
	return append(msgs, ai.NewUserTextMessage(message))
}
