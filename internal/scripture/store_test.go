package scripture

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sakha-labs/sakha/internal/log"
)

func writeCorpusFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("writing corpus file: %v", err)
	}
}

const gitaJSON = `{
	"id": "bgita",
	"name": "Bhagavad Gita",
	"pages": [
		{"verses": [
			{"verse": 1, "text": "Dhritarashtra said: O Sanjaya, assembled at Kurukshetra, what did my sons do?"},
			{"verse": 2, "text": "Sanjaya said: Seeing the Pandava army arrayed, Duryodhana approached his teacher."}
		]},
		{"verses": [
			{"verse": 1, "text": "You grieve for those who should not be grieved for."},
			{"verse": 2, "text": "Never was there a time when I did not exist, nor you."}
		]}
	]
}`

const upanishadJSON = `{
	"id": "isha",
	"name": "Isha Upanishad",
	"pages": [
		{"verses": [
			{"verse": 1, "text": "All this is pervaded by the Lord, whatever moves in this moving world."}
		]}
	]
}`

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeCorpusFile(t, dir, "bgita.json", gitaJSON)
	writeCorpusFile(t, dir, "isha.json", upanishadJSON)
	writeCorpusFile(t, dir, "notes.txt", "not part of the corpus")

	store := NewStore(log.NewNop())
	if err := store.Load(dir); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	list := store.List()
	if len(list) != 2 {
		t.Fatalf("List() returned %d documents, want 2", len(list))
	}
	if list[0].ID != "bgita" || list[1].ID != "isha" {
		t.Errorf("List() order = %q, %q; want bgita, isha", list[0].ID, list[1].ID)
	}
	if list[0].Name != "Bhagavad Gita" {
		t.Errorf("display name = %q, want Bhagavad Gita", list[0].Name)
	}
	if list[0].PageCount != 2 || list[0].VerseCount != 4 {
		t.Errorf("bgita pages=%d verses=%d, want 2 and 4", list[0].PageCount, list[0].VerseCount)
	}
}

func TestLoad_SkipsMalformedFiles(t *testing.T) {
	dir := t.TempDir()
	writeCorpusFile(t, dir, "bgita.json", gitaJSON)
	writeCorpusFile(t, dir, "broken.json", `{"id": "broken", "pages": [`)
	writeCorpusFile(t, dir, "empty-pages.json", `{"id": "empty", "name": "Empty", "pages": []}`)

	store := NewStore(log.NewNop())
	if err := store.Load(dir); err != nil {
		t.Fatalf("Load() should tolerate bad files, got %v", err)
	}

	if len(store.List()) != 1 {
		t.Errorf("List() returned %d documents, want only the valid one", len(store.List()))
	}
	if _, err := store.Document("broken"); !errors.Is(err, ErrNotFound) {
		t.Errorf("broken document should not be loaded, got err = %v", err)
	}
}

func TestLoad_FailsWhenNothingLoads(t *testing.T) {
	dir := t.TempDir()
	writeCorpusFile(t, dir, "broken.json", `not json`)

	store := NewStore(log.NewNop())
	if err := store.Load(dir); !errors.Is(err, ErrCorpusLoad) {
		t.Errorf("Load() error = %v, want ErrCorpusLoad", err)
	}
}

func TestLoad_MissingDirectory(t *testing.T) {
	store := NewStore(log.NewNop())
	if err := store.Load(filepath.Join(t.TempDir(), "nope")); !errors.Is(err, ErrCorpusLoad) {
		t.Errorf("Load() error = %v, want ErrCorpusLoad", err)
	}
}

func TestGetPage(t *testing.T) {
	dir := t.TempDir()
	writeCorpusFile(t, dir, "bgita.json", gitaJSON)

	store := NewStore(log.NewNop())
	if err := store.Load(dir); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	page, err := store.GetPage("bgita", 2)
	if err != nil {
		t.Fatalf("GetPage() error = %v", err)
	}
	if len(page.Verses) != 2 {
		t.Errorf("page 2 has %d verses, want 2", len(page.Verses))
	}
	if page.Verses[1].Text != "Never was there a time when I did not exist, nor you." {
		t.Errorf("unexpected verse text: %q", page.Verses[1].Text)
	}

	tests := []struct {
		name  string
		docID string
		page  int
	}{
		{"unknown document", "mahabharata", 1},
		{"page zero", "bgita", 0},
		{"page past end", "bgita", 3},
		{"negative page", "bgita", -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := store.GetPage(tt.docID, tt.page); !errors.Is(err, ErrNotFound) {
				t.Errorf("GetPage(%q, %d) error = %v, want ErrNotFound", tt.docID, tt.page, err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Document {
		return &Document{
			ID:   "doc",
			Name: "Doc",
			Pages: []Page{
				{Verses: []Verse{{Num: 1, Text: "first"}, {Num: 2, Text: "second"}}},
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Document)
		wantErr bool
	}{
		{"valid", func(d *Document) {}, false},
		{"empty id", func(d *Document) { d.ID = " " }, true},
		{"no pages", func(d *Document) { d.Pages = nil }, true},
		{"empty page", func(d *Document) { d.Pages[0].Verses = nil }, true},
		{"duplicate verse number", func(d *Document) { d.Pages[0].Verses[1].Num = 1 }, true},
		{"decreasing verse number", func(d *Document) { d.Pages[0].Verses[1].Num = 0 }, true},
		{"blank verse text", func(d *Document) { d.Pages[0].Verses[0].Text = "  " }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := valid()
			tt.mutate(doc)

			err := doc.Validate()
			if tt.wantErr && !errors.Is(err, ErrInvalidDocument) {
				t.Errorf("Validate() error = %v, want ErrInvalidDocument", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Validate() error = %v, want nil", err)
			}
		})
	}
}
