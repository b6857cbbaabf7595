// Package scripture loads and serves the scripture corpus.
//
// The corpus is a directory of JSON files, one document each. Loading is
// partial-failure tolerant: a malformed file is logged and skipped, the
// rest of the corpus still loads. The store is read-only after Load, so
// reads need no locking.
package scripture

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sakha-labs/sakha/internal/log"
)

// Summary describes one loaded document for listings.
type Summary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PageCount  int    `json:"page_count"`
	VerseCount int    `json:"verse_count"`
}

// Store holds the loaded corpus.
type Store struct {
	docs   map[string]*Document
	order  []string
	logger log.Logger
}

// NewStore creates an empty store. Call Load before serving reads.
func NewStore(logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{
		docs:   make(map[string]*Document),
		logger: logger,
	}
}

// Load reads every *.json file under dir into the store. Files that fail
// to parse or validate are skipped with a warning. Load fails only when
// the directory itself is unreadable or no document loads at all.
func (s *Store) Load(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("%w: reading corpus directory %s: %v", ErrCorpusLoad, dir, err)
	}

	var failed int
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		doc, err := loadFile(path)
		if err != nil {
			failed++
			s.logger.Warn("skipping corpus file",
				"file", entry.Name(),
				"error", err)
			continue
		}
		if _, dup := s.docs[doc.ID]; dup {
			failed++
			s.logger.Warn("skipping corpus file with duplicate document id",
				"file", entry.Name(),
				"id", doc.ID)
			continue
		}

		s.docs[doc.ID] = doc
		s.order = append(s.order, doc.ID)
		s.logger.Info("loaded scripture",
			"id", doc.ID,
			"name", doc.DisplayName(),
			"pages", len(doc.Pages),
			"verses", doc.VerseCount())
	}

	if len(s.docs) == 0 {
		return fmt.Errorf("%w: no documents loaded from %s (%d files failed)", ErrCorpusLoad, dir, failed)
	}
	sort.Strings(s.order)
	return nil
}

func loadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Document returns the document with the given id.
func (s *Store) Document(id string) (*Document, error) {
	doc, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: document %q", ErrNotFound, id)
	}
	return doc, nil
}

// GetPage returns one page of a document. Pages are 1-based.
func (s *Store) GetPage(docID string, page int) (*Page, error) {
	doc, err := s.Document(docID)
	if err != nil {
		return nil, err
	}
	if page < 1 || page > len(doc.Pages) {
		return nil, fmt.Errorf("%w: document %q page %d (have %d pages)",
			ErrNotFound, docID, page, len(doc.Pages))
	}
	return &doc.Pages[page-1], nil
}

// List returns summaries of all loaded documents, ordered by id.
func (s *Store) List() []Summary {
	out := make([]Summary, 0, len(s.order))
	for _, id := range s.order {
		doc := s.docs[id]
		out = append(out, Summary{
			ID:         doc.ID,
			Name:       doc.DisplayName(),
			PageCount:  len(doc.Pages),
			VerseCount: doc.VerseCount(),
		})
	}
	return out
}

// Documents returns all loaded documents, ordered by id. The index
// package iterates this to build chunks.
func (s *Store) Documents() []*Document {
	out := make([]*Document, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.docs[id])
	}
	return out
}
