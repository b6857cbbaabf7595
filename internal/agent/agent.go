// Package agent composes the conversation pipeline: resolve the
// session, enhance the query, retrieve scripture, generate the reply,
// then append and persist the exchange.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/sakha-labs/sakha/internal/config"
	"github.com/sakha-labs/sakha/internal/enhance"
	"github.com/sakha-labs/sakha/internal/index"
	"github.com/sakha-labs/sakha/internal/log"
	"github.com/sakha-labs/sakha/internal/memory"
	"github.com/sakha-labs/sakha/internal/scripture"
	"github.com/sakha-labs/sakha/internal/session"
)

// persistWarning is returned in Reply.Warning when storage failed but
// the reply itself is good.
const persistWarning = "reply delivered but not saved; history may be incomplete"

// Reply is the outcome of one conversation turn.
type Reply struct {
	Text      string   `json:"text"`
	SessionID string   `json:"session_id"`
	Mood      string   `json:"mood"`
	Sources   []string `json:"sources,omitempty"`
	Warning   string   `json:"warning,omitempty"`
}

// Options wires the agent's dependencies. Genkit, Config, Registry,
// Retriever, and Scriptures are required.
type Options struct {
	Genkit     *genkit.Genkit
	Config     *config.Config
	Registry   *session.Registry
	Retriever  index.Retriever
	Scriptures *scripture.Store
	Logger     log.Logger

	// Optional resilience overrides; defaults apply when nil.
	Retry   *RetryConfig
	Breaker *CircuitBreakerConfig
	Limiter *rate.Limiter
}

// Agent answers messages in the voice of Krishna, grounded in the
// scripture corpus.
type Agent struct {
	g          *genkit.Genkit
	cfg        *config.Config
	registry   *session.Registry
	retriever  index.Retriever
	scriptures *scripture.Store
	logger     log.Logger

	retryCfg RetryConfig
	circuit  *CircuitBreaker
	limiter  *rate.Limiter
}

// New validates the options and builds the agent.
func New(opts Options) (*Agent, error) {
	switch {
	case opts.Genkit == nil:
		return nil, fmt.Errorf("%w: genkit instance is required", ErrInvalidArgument)
	case opts.Config == nil:
		return nil, fmt.Errorf("%w: config is required", ErrInvalidArgument)
	case opts.Registry == nil:
		return nil, fmt.Errorf("%w: session registry is required", ErrInvalidArgument)
	case opts.Retriever == nil:
		return nil, fmt.Errorf("%w: retriever is required", ErrInvalidArgument)
	case opts.Scriptures == nil:
		return nil, fmt.Errorf("%w: scripture store is required", ErrInvalidArgument)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	retryCfg := DefaultRetryConfig()
	if opts.Retry != nil {
		retryCfg = *opts.Retry
	}
	breakerCfg := DefaultCircuitBreakerConfig()
	if opts.Breaker != nil {
		breakerCfg = *opts.Breaker
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Limit(2), 4)
	}

	return &Agent{
		g:          opts.Genkit,
		cfg:        opts.Config,
		registry:   opts.Registry,
		retriever:  opts.Retriever,
		scriptures: opts.Scriptures,
		logger:     logger,
		retryCfg:   retryCfg,
		circuit:    NewCircuitBreaker(breakerCfg),
		limiter:    limiter,
	}, nil
}

// HandleMessage processes one user message end to end. The session lock
// is held for the whole turn, so a session handles at most one message
// at a time. Conversation state is only mutated after generation
// succeeds; a canceled or failed turn leaves no trace.
func (a *Agent) HandleMessage(ctx context.Context, sessionID, text string) (*Reply, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty message", ErrInvalidArgument)
	}

	h, err := a.registry.Resolve(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	h.Lock()
	defer h.Unlock()

	if reply, ok := identityReply(text); ok {
		return a.finishTurn(ctx, h, text, reply, nil), nil
	}

	query := text
	if prev, ok := h.State.LastUserTurn(); ok {
		if enhanced, did := enhance.Enhance(text, prev.Text); did {
			a.logger.Debug("follow-up enhanced", "session", h.ID)
			query = enhanced
		}
	}

	passages := a.retrieve(ctx, query)

	opts := []ai.GenerateOption{
		ai.WithModelName(a.cfg.ModelName),
		ai.WithSystem(buildSystem(text, h.State, passages)),
		ai.WithMessages(buildMessages(h.State, text)...),
		ai.WithConfig(&genai.GenerateContentConfig{
			Temperature:     genai.Ptr(a.cfg.Temperature),
			MaxOutputTokens: int32(a.cfg.MaxTokens),
		}),
	}

	resp, err := a.generateWithRetry(ctx, opts)
	if err != nil {
		a.logger.Error("generation failed", "session", h.ID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	replyText := strings.TrimSpace(resp.Text())
	if replyText == "" {
		return nil, fmt.Errorf("%w: model returned an empty reply", ErrGeneration)
	}

	sources := make([]string, 0, len(passages))
	for _, p := range passages {
		sources = append(sources, p.Chunk.Ref())
	}
	return a.finishTurn(ctx, h, text, replyText, sources), nil
}

// retrieve fetches supporting passages. Retrieval problems never fail
// the turn; the worst case is answering without passages.
func (a *Agent) retrieve(ctx context.Context, query string) []index.Result {
	results, err := a.retriever.Retrieve(ctx, query, a.cfg.TopK)
	if err != nil {
		a.logger.Warn("retrieval unavailable, continuing without passages", "error", err)
		return nil
	}
	return results
}

// finishTurn appends both turns atomically under the session lock and
// persists them. Persistence failure degrades to a warning.
func (a *Agent) finishTurn(ctx context.Context, h *session.Handle, userText, replyText string, sources []string) *Reply {
	userTurn := h.State.Append(memory.RoleUser, userText)
	assistantTurn := h.State.Append(memory.RoleAssistant, replyText)
	h.Touch()
	mood := h.State.Mood()

	reply := &Reply{
		Text:      replyText,
		SessionID: h.ID,
		Mood:      mood,
		Sources:   sources,
	}

	store := a.registry.Store()
	persistErr := store.SaveTurn(ctx, h.ID, userTurn)
	if persistErr == nil {
		persistErr = store.SaveTurn(ctx, h.ID, assistantTurn)
	}
	if persistErr == nil {
		persistErr = store.SaveMood(ctx, h.ID, userTurn.Ordinal, mood)
	}
	if persistErr == nil {
		persistErr = store.SaveState(ctx, h.ID, h.State.Snapshot())
	}
	if persistErr != nil {
		a.logger.Warn("persisting turn failed", "session", h.ID, "error", persistErr)
		reply.Warning = persistWarning
	}
	return reply
}

func (a *Agent) generate(ctx context.Context, opts []ai.GenerateOption) (*ai.ModelResponse, error) {
	return genkit.Generate(ctx, a.g, opts...)
}

// ResetSession discards a session and returns the fresh session's ID.
// With strict set, resetting an unknown session fails with
// session.ErrSessionNotFound.
func (a *Agent) ResetSession(ctx context.Context, sessionID string, strict bool) (string, error) {
	h, err := a.registry.Reset(ctx, sessionID, strict)
	if err != nil {
		return "", err
	}
	return h.ID, nil
}

// ListSessions returns summaries of known sessions.
func (a *Agent) ListSessions(ctx context.Context) ([]session.Summary, error) {
	return a.registry.List(ctx)
}

// ListScriptures returns the loaded corpus documents.
func (a *Agent) ListScriptures() []scripture.Summary {
	return a.scriptures.List()
}

// GetScripturePage returns one page of a document for browsing.
func (a *Agent) GetScripturePage(docID string, page int) (*scripture.Page, error) {
	p, err := a.scriptures.GetPage(docID, page)
	if err != nil {
		if errors.Is(err, scripture.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("loading page %d of %s: %w", page, docID, err)
	}
	return p, nil
}
