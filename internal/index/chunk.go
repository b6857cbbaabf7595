package index

import (
	"fmt"
	"strings"

	"github.com/sakha-labs/sakha/internal/scripture"
)

// Chunk is one retrievable unit of scripture: a window of consecutive
// verses. Chunk IDs are deterministic, derived from the document id and
// the 1-based ordinal range of the verses they cover, so rebuilding over
// an unchanged corpus yields the same IDs.
type Chunk struct {
	ID      string `json:"id"`
	DocID   string `json:"doc_id"`
	DocName string `json:"doc_name"`
	// Page and verse of the first verse in the window, for citations.
	Page       int    `json:"page"`
	FirstVerse int    `json:"first_verse"`
	Text       string `json:"text"`
}

// Ref returns a human-readable citation for the chunk.
func (c Chunk) Ref() string {
	return fmt.Sprintf("%s, p.%d v.%d", c.DocName, c.Page, c.FirstVerse)
}

type flatVerse struct {
	page int
	num  int
	text string
}

// ChunkDocument splits a document into overlapping verse windows.
// window is the number of verses per chunk, overlap the number shared
// with the previous chunk. The final chunk may be shorter. Windows run
// across page boundaries; the chunk records the page of its first verse.
func ChunkDocument(doc *scripture.Document, window, overlap int) []Chunk {
	if doc == nil || window < 1 || overlap < 0 || overlap >= window {
		return nil
	}

	var verses []flatVerse
	for pi, page := range doc.Pages {
		for _, v := range page.Verses {
			verses = append(verses, flatVerse{page: pi + 1, num: v.Num, text: v.Text})
		}
	}
	if len(verses) == 0 {
		return nil
	}

	stride := window - overlap
	var chunks []Chunk
	for start := 0; start < len(verses); start += stride {
		end := start + window
		if end > len(verses) {
			end = len(verses)
		}

		parts := make([]string, 0, end-start)
		for _, v := range verses[start:end] {
			parts = append(parts, v.text)
		}

		chunks = append(chunks, Chunk{
			ID:         fmt.Sprintf("%s:%04d-%04d", doc.ID, start+1, end),
			DocID:      doc.ID,
			DocName:    doc.DisplayName(),
			Page:       verses[start].page,
			FirstVerse: verses[start].num,
			Text:       strings.Join(parts, " "),
		})

		if end == len(verses) {
			break
		}
	}
	return chunks
}

// ChunkCorpus chunks every document in order. The resulting slice is the
// single chunk universe shared by the vector index and the lexical
// fallback.
func ChunkCorpus(docs []*scripture.Document, window, overlap int) []Chunk {
	var all []Chunk
	for _, doc := range docs {
		all = append(all, ChunkDocument(doc, window, overlap)...)
	}
	return all
}
