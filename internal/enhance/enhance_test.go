package enhance

import (
	"strings"
	"testing"
)

func TestIsFollowUp(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    bool
	}{
		{"empty", "", false},
		{"whitespace only", "   ", false},
		{"short question", "why?", true},
		{"five tokens", "what should I do now", true},
		{"six tokens standalone", "how can I find peace daily", false},
		{"continuation phrase long", "tell me more about the nature of the eternal soul", true},
		{"what about phrase", "what about the people who hurt others without remorse", true},
		{"phrase mid-sentence does not count", "I keep wondering what about and other things in this life", false},
		{"case insensitive", "Tell Me More about all of this teaching", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFollowUp(tt.message); got != tt.want {
				t.Errorf("IsFollowUp(%q) = %v, want %v", tt.message, got, tt.want)
			}
		})
	}
}

func TestEnhance_FollowUpEmbedsPreviousTurnVerbatim(t *testing.T) {
	prev := "How do I deal with anger toward my family?"
	msg := "tell me more"

	query, enhanced := Enhance(msg, prev)
	if !enhanced {
		t.Fatal("short follow-up should be enhanced")
	}
	if !strings.Contains(query, msg) {
		t.Errorf("enhanced query %q must contain the message verbatim", query)
	}
	if !strings.Contains(query, prev) {
		t.Errorf("enhanced query %q must contain the previous turn verbatim", query)
	}
}

func TestEnhance_StandaloneUnchanged(t *testing.T) {
	msg := "how can I find lasting peace in the middle of trouble"

	query, enhanced := Enhance(msg, "earlier question")
	if enhanced {
		t.Error("standalone message should not be enhanced")
	}
	if query != msg {
		t.Errorf("query = %q, want unchanged message", query)
	}
}

func TestEnhance_NoPreviousTurn(t *testing.T) {
	query, enhanced := Enhance("why?", "")
	if enhanced {
		t.Error("first turn has nothing to follow up on")
	}
	if query != "why?" {
		t.Errorf("query = %q, want pass-through", query)
	}
}

func TestEnhance_Deterministic(t *testing.T) {
	a, _ := Enhance("why?", "what is dharma")
	b, _ := Enhance("why?", "what is dharma")
	if a != b {
		t.Errorf("Enhance is not deterministic: %q vs %q", a, b)
	}
}
