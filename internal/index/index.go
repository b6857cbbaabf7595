// Package index provides scripture retrieval: a vector index built from
// chunk embeddings, a lexical fallback over the same chunks, and a
// provider that degrades from the former to the latter.
package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/firebase/genkit/go/ai"
	"golang.org/x/sync/errgroup"

	"github.com/sakha-labs/sakha/internal/log"
)

var (
	// ErrInvalidArgument indicates a caller error, e.g. k out of range.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrEmbeddingService indicates the embedding backend failed.
	ErrEmbeddingService = errors.New("embedding service failed")

	// ErrRetrieval indicates vector retrieval could not be served. The
	// provider treats this as a signal to fall back to lexical search.
	ErrRetrieval = errors.New("retrieval failed")
)

// Retrieval bounds for k.
const (
	MinK = 1
	MaxK = 10
)

const (
	embedBatchSize   = 16
	embedConcurrency = 4
	queryEmbedWait   = 5 * time.Second
)

// Result is one retrieved chunk with its similarity score. Vector scores
// are cosine similarities in [-1, 1]; lexical scores are token-overlap
// counts.
type Result struct {
	Chunk Chunk
	Score float64
}

// Index is an immutable in-memory vector index over a chunk set. Build
// a new one and swap it in rather than mutating; see Provider.
type Index struct {
	chunks   []Chunk
	vectors  [][]float32 // L2-normalized, parallel to chunks; nil when degraded
	embedder ai.Embedder
	logger   log.Logger
}

// Build embeds all chunks in batches and returns the index. An embedding
// failure does not abort the build: the index comes back degraded (no
// vectors) and Query returns ErrRetrieval, leaving lexical search as the
// serving path.
func Build(ctx context.Context, embedder ai.Embedder, chunks []Chunk, logger log.Logger) *Index {
	if logger == nil {
		logger = log.NewNop()
	}
	idx := &Index{chunks: chunks, embedder: embedder, logger: logger}

	if embedder == nil || len(chunks) == 0 {
		return idx
	}

	vectors, err := embedAll(ctx, embedder, chunks)
	if err != nil {
		logger.Warn("index build degraded, vector search unavailable", "error", err)
		return idx
	}

	idx.vectors = vectors
	logger.Info("vector index built", "chunks", len(chunks), "dims", dims(vectors))
	return idx
}

// BuildFromVectors constructs an index from precomputed vectors, used to
// warm-start from a snapshot or a pgvector mirror. vectors must be
// parallel to chunks; a mismatch yields a degraded index.
func BuildFromVectors(embedder ai.Embedder, chunks []Chunk, vectors [][]float32, logger log.Logger) *Index {
	if logger == nil {
		logger = log.NewNop()
	}
	idx := &Index{chunks: chunks, embedder: embedder, logger: logger}
	if len(vectors) != len(chunks) {
		logger.Warn("vector count mismatch, ignoring precomputed vectors",
			"chunks", len(chunks), "vectors", len(vectors))
		return idx
	}
	for i := range vectors {
		vectors[i] = normalize(vectors[i])
	}
	idx.vectors = vectors
	return idx
}

func embedAll(ctx context.Context, embedder ai.Embedder, chunks []Chunk) ([][]float32, error) {
	vectors := make([][]float32, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)

	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		start, end := start, end

		g.Go(func() error {
			input := make([]*ai.Document, 0, end-start)
			for _, c := range chunks[start:end] {
				input = append(input, ai.DocumentFromText(c.Text, nil))
			}

			resp, err := embedder.Embed(gctx, &ai.EmbedRequest{Input: input})
			if err != nil {
				return fmt.Errorf("%w: batch %d-%d: %v", ErrEmbeddingService, start, end, err)
			}
			if len(resp.Embeddings) != end-start {
				return fmt.Errorf("%w: batch %d-%d returned %d embeddings",
					ErrEmbeddingService, start, end, len(resp.Embeddings))
			}
			for i, e := range resp.Embeddings {
				vectors[start+i] = normalize(e.Embedding)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// Degraded reports whether the index has no vectors and cannot serve
// vector queries.
func (idx *Index) Degraded() bool {
	return idx.vectors == nil
}

// Chunks returns the chunk universe the index was built over. Shared
// with the lexical fallback.
func (idx *Index) Chunks() []Chunk {
	return idx.chunks
}

// Vectors returns the normalized vectors, parallel to Chunks. Nil when
// degraded. Used by the snapshot cache and the pgvector mirror.
func (idx *Index) Vectors() [][]float32 {
	return idx.vectors
}

// Query embeds the query and returns the top-k chunks by cosine
// similarity, ties broken by lower chunk ID. k must be in [MinK, MaxK].
func (idx *Index) Query(ctx context.Context, query string, k int) ([]Result, error) {
	if k < MinK || k > MaxK {
		return nil, fmt.Errorf("%w: k=%d not in [%d, %d]", ErrInvalidArgument, k, MinK, MaxK)
	}
	if idx.Degraded() {
		return nil, fmt.Errorf("%w: index has no vectors", ErrRetrieval)
	}
	if len(idx.chunks) == 0 {
		return nil, nil
	}

	embedCtx, cancel := context.WithTimeout(ctx, queryEmbedWait)
	defer cancel()

	resp, err := idx.embedder.Embed(embedCtx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(query, nil)},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w: embedding query: %v", ErrRetrieval, ErrEmbeddingService, err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("%w: %w: no query embedding returned", ErrRetrieval, ErrEmbeddingService)
	}
	qv := normalize(resp.Embeddings[0].Embedding)

	results := make([]Result, len(idx.chunks))
	for i, c := range idx.chunks {
		results[i] = Result{Chunk: c, Score: dot(qv, idx.vectors[i])}
	}
	sortResults(results)

	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

// sortResults orders by score descending, then chunk ID ascending so
// equal scores resolve deterministically.
func sortResults(results []Result) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

func dot(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func dims(vectors [][]float32) int {
	if len(vectors) == 0 {
		return 0
	}
	return len(vectors[0])
}
