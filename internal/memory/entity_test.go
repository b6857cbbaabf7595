package memory

import "testing"

func findEntity(entities []Entity, name string) (Entity, bool) {
	for _, e := range entities {
		if e.Name == name {
			return e, true
		}
	}
	return Entity{}, false
}

func TestTrackEntities(t *testing.T) {
	s := NewState(DefaultWindow)
	s.Append(RoleUser, "I met Radha in Vrindavan before the Holi festival on 2026-03-03")

	entities := s.Entities()

	tests := []struct {
		name string
		kind string
	}{
		{"Radha", EntityPerson},
		{"Vrindavan", EntityPlace},
		{"Holi", EntityEvent},
		{"2026-03-03", EntityDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, ok := findEntity(entities, tt.name)
			if !ok {
				t.Fatalf("entity %q not tracked; have %+v", tt.name, entities)
			}
			if e.Kind != tt.kind {
				t.Errorf("entity %q kind = %q, want %q", tt.name, e.Kind, tt.kind)
			}
			if e.FirstTurn != 1 || e.LastMentioned != 1 {
				t.Errorf("entity %q turns = %d/%d, want 1/1", tt.name, e.FirstTurn, e.LastMentioned)
			}
		})
	}
}

func TestTrackEntities_RementionUpdatesLastMentioned(t *testing.T) {
	s := NewState(DefaultWindow)
	s.Append(RoleUser, "my friend Arjuna is troubled")
	s.Append(RoleAssistant, "Tell me about him.")
	s.Append(RoleUser, "today ARJUNA asked me about courage")

	entities := s.Entities()
	if len(entities) != 2 { // Arjuna + "today" date
		t.Fatalf("got %d entities, want 2: %+v", len(entities), entities)
	}

	e, ok := findEntity(entities, "Arjuna")
	if !ok {
		t.Fatalf("Arjuna not tracked: %+v", entities)
	}
	if e.FirstTurn != 1 {
		t.Errorf("FirstTurn = %d, want 1", e.FirstTurn)
	}
	if e.LastMentioned != 3 {
		t.Errorf("LastMentioned = %d, want 3 (re-mention is case-insensitive)", e.LastMentioned)
	}
}

func TestTrackEntities_SkipsSentenceStartsAndStopWords(t *testing.T) {
	s := NewState(DefaultWindow)
	s.Append(RoleUser, "Why does it hurt. The pain stays. What can I do")

	if got := s.Entities(); len(got) != 0 {
		t.Errorf("sentence-initial capitals and stop words should not be entities: %+v", got)
	}
}

func TestTrackEntities_RelativeDates(t *testing.T) {
	s := NewState(DefaultWindow)
	s.Append(RoleUser, "my exam is tomorrow")

	e, ok := findEntity(s.Entities(), "tomorrow")
	if !ok || e.Kind != EntityDate {
		t.Errorf("relative date not tracked: %+v", s.Entities())
	}
}

func TestTrackEntities_AssistantTurnsIgnored(t *testing.T) {
	s := NewState(DefaultWindow)
	s.Append(RoleAssistant, "Remember what Arjuna learned at Kurukshetra.")

	if got := s.Entities(); len(got) != 0 {
		t.Errorf("assistant turns should not feed entity tracking: %+v", got)
	}
}
