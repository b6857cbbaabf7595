package index

import (
	"context"
	"errors"
	"testing"

	"github.com/sakha-labs/sakha/internal/scripture"
)

func TestLexicalQuery(t *testing.T) {
	docs := []*scripture.Document{
		testDoc(t, "bgita",
			"Perform your duty without attachment",
			"The soul is eternal",
			"Attachment breeds desire and anger"),
	}
	chunks := ChunkCorpus(docs, 1, 0)
	lex := NewLexical(chunks)

	results, err := lex.Query(context.Background(), "attachment anger", 3)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2 (the soul verse shares no tokens)", len(results))
	}
	if results[0].Chunk.ID != "bgita:0003-0003" {
		t.Errorf("top result = %q, want the two-token match", results[0].Chunk.ID)
	}
	if results[0].Score != 1.0 || results[1].Score != 0.5 {
		t.Errorf("scores = %f, %f; want 1.0 and 0.5 (matched fraction of the two query tokens)",
			results[0].Score, results[1].Score)
	}
}

func TestLexicalQuery_TieBreaksByChunkID(t *testing.T) {
	docs := []*scripture.Document{
		testDoc(t, "doc", "peace within", "peace without", "peace beyond"),
	}
	lex := NewLexical(ChunkCorpus(docs, 1, 0))

	results, err := lex.Query(context.Background(), "peace", 3)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	for i := 1; i < len(results); i++ {
		if results[i-1].Chunk.ID >= results[i].Chunk.ID {
			t.Errorf("equal scores should order by chunk ID: %q before %q",
				results[i-1].Chunk.ID, results[i].Chunk.ID)
		}
	}
}

func TestLexicalQuery_CaseAndPunctuationInsensitive(t *testing.T) {
	docs := []*scripture.Document{testDoc(t, "doc", "The Soul is eternal, unborn.")}
	lex := NewLexical(ChunkCorpus(docs, 1, 0))

	results, err := lex.Query(context.Background(), "SOUL unborn!", 1)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(results) != 1 || results[0].Score != 1.0 {
		t.Errorf("expected both tokens to match regardless of case, got %+v", results)
	}
}

func TestLexicalQuery_NoOverlap(t *testing.T) {
	docs := []*scripture.Document{testDoc(t, "doc", "one two three")}
	lex := NewLexical(ChunkCorpus(docs, 1, 0))

	results, err := lex.Query(context.Background(), "zebra quantum", 5)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("no shared tokens should yield no results, got %d", len(results))
	}
}

func TestLexicalQuery_InvalidK(t *testing.T) {
	lex := NewLexical(nil)
	if _, err := lex.Query(context.Background(), "anything", 0); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Query(k=0) error = %v, want ErrInvalidArgument", err)
	}
	if _, err := lex.Query(context.Background(), "anything", 99); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Query(k=99) error = %v, want ErrInvalidArgument", err)
	}
}
