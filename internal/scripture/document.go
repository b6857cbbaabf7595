package scripture

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidDocument indicates a corpus file that violates the document
	// structure rules.
	ErrInvalidDocument = errors.New("invalid scripture document")

	// ErrNotFound indicates the requested document or page does not exist.
	ErrNotFound = errors.New("scripture not found")

	// ErrCorpusLoad indicates the corpus could not be loaded at all.
	ErrCorpusLoad = errors.New("corpus load failed")
)

// Verse is a single numbered verse within a page.
type Verse struct {
	Num  int    `json:"verse"`
	Text string `json:"text"`
}

// Page is an ordered group of verses. Pages are addressed 1-based.
type Page struct {
	Verses []Verse `json:"verses"`
}

// Document is one scripture source: an identifier, a human-readable
// display name, and a contiguous sequence of pages. Documents are
// immutable after load.
type Document struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Pages []Page `json:"pages"`
}

// Validate checks the structural invariants: non-empty id, at least one
// page, every page non-empty, and verse numbers strictly increasing
// within each page.
func (d *Document) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("%w: empty document id", ErrInvalidDocument)
	}
	if len(d.Pages) == 0 {
		return fmt.Errorf("%w: document %q has no pages", ErrInvalidDocument, d.ID)
	}
	for pi, page := range d.Pages {
		if len(page.Verses) == 0 {
			return fmt.Errorf("%w: document %q page %d has no verses", ErrInvalidDocument, d.ID, pi+1)
		}
		prev := 0
		for _, v := range page.Verses {
			if v.Num <= prev {
				return fmt.Errorf("%w: document %q page %d verse numbers not strictly increasing at %d",
					ErrInvalidDocument, d.ID, pi+1, v.Num)
			}
			if strings.TrimSpace(v.Text) == "" {
				return fmt.Errorf("%w: document %q page %d verse %d is empty",
					ErrInvalidDocument, d.ID, pi+1, v.Num)
			}
			prev = v.Num
		}
	}
	return nil
}

// VerseCount returns the total number of verses across all pages.
func (d *Document) VerseCount() int {
	n := 0
	for _, p := range d.Pages {
		n += len(p.Verses)
	}
	return n
}

// DisplayName returns the human-readable name, falling back to the id.
func (d *Document) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.ID
}
