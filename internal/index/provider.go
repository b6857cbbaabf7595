package index

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/sakha-labs/sakha/internal/log"
)

// Retriever is what the agent consumes: retrieve the top-k chunks for a
// query. Implementations must be safe for concurrent use.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]Result, error)
}

// generation pairs a vector index with a lexical fallback over the same
// chunks. Both are swapped together so every query, whichever path
// serves it, sees one chunk universe.
type generation struct {
	vector  *Index
	lexical *Lexical
}

// Provider serves retrieval requests, preferring the vector index and
// degrading to lexical search when vectors are unavailable or the
// embedding service fails. Rebuilds are copy-then-swap: queries in
// flight keep the generation they started with, and no query ever sees
// a partially built index.
type Provider struct {
	current atomic.Pointer[generation]
	logger  log.Logger
}

// NewProvider creates a provider with no index; Swap installs one.
func NewProvider(logger log.Logger) *Provider {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Provider{logger: logger}
}

// Swap atomically installs a new index generation. The lexical fallback
// is rebuilt from the same chunk set.
func (p *Provider) Swap(idx *Index) {
	if idx == nil {
		return
	}
	p.current.Store(&generation{
		vector:  idx,
		lexical: NewLexical(idx.Chunks()),
	})
}

// Retrieve serves a query from the current generation. A vector-path
// failure is logged and degraded to lexical search; only argument
// errors and a missing index surface to the caller.
func (p *Provider) Retrieve(ctx context.Context, query string, k int) ([]Result, error) {
	if k < MinK || k > MaxK {
		return nil, fmt.Errorf("%w: k=%d not in [%d, %d]", ErrInvalidArgument, k, MinK, MaxK)
	}

	gen := p.current.Load()
	if gen == nil {
		return nil, fmt.Errorf("%w: no index built", ErrRetrieval)
	}

	if !gen.vector.Degraded() {
		results, err := gen.vector.Query(ctx, query, k)
		if err == nil {
			return results, nil
		}
		if errors.Is(err, ErrInvalidArgument) {
			return nil, err
		}
		p.logger.Warn("vector retrieval failed, falling back to lexical search", "error", err)
	}

	return gen.lexical.Query(ctx, query, k)
}

// Current returns the vector index of the current generation, or nil
// when none is installed. Used by the snapshot cache and reindexing.
func (p *Provider) Current() *Index {
	gen := p.current.Load()
	if gen == nil {
		return nil
	}
	return gen.vector
}
