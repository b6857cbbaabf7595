package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
)

// RetryConfig configures generation retries.
type RetryConfig struct {
	MaxRetries      int           // retry attempts after the first call
	InitialInterval time.Duration // first backoff delay
	MaxInterval     time.Duration // backoff cap
	AttemptTimeout  time.Duration // per-attempt deadline
}

// DefaultRetryConfig returns the production defaults: one retry with a
// short backoff, 30s per attempt.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      1,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		AttemptTimeout:  30 * time.Second,
	}
}

// retryablePatterns groups error substrings by category, matched
// case-insensitively. String matching because Genkit and the provider
// SDKs expose no typed errors for transient failures.
var retryablePatterns = [][]string{
	{"rate limit", "quota exceeded", "429"},      // rate limiting
	{"500", "502", "503", "504", "unavailable"},  // transient server errors
	{"connection reset", "timeout", "temporary"}, // network errors
}

func retryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, group := range retryablePatterns {
		for _, pattern := range group {
			if strings.Contains(msg, pattern) {
				return true
			}
		}
	}
	return false
}

// generateWithRetry runs one generation call with the breaker, the
// rate limiter, a per-attempt timeout, and exponential backoff between
// attempts. Non-retryable errors fail immediately.
func (a *Agent) generateWithRetry(ctx context.Context, opts []ai.GenerateOption) (*ai.ModelResponse, error) {
	if err := a.circuit.Allow(); err != nil {
		return nil, err
	}

	var lastErr error
	delay := a.retryCfg.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= a.retryCfg.MaxRetries; attempt++ {
		if a.limiter != nil {
			if err := a.limiter.Wait(ctx); err != nil {
				a.circuit.Failure()
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
		}

		resp, err := a.generateOnce(ctx, opts)
		if err == nil {
			a.circuit.Success()
			a.logger.Debug("generation succeeded",
				"attempts", attempt+1,
				"elapsed", time.Since(start))
			return resp, nil
		}
		lastErr = err

		if !retryableError(err) {
			a.circuit.Failure()
			return nil, err
		}
		if attempt == a.retryCfg.MaxRetries {
			break
		}

		a.logger.Debug("retrying generation",
			"attempt", attempt+1,
			"delay", delay,
			"error", err)
		select {
		case <-ctx.Done():
			a.circuit.Failure()
			return nil, fmt.Errorf("canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, a.retryCfg.MaxInterval)
		}
	}

	a.circuit.Failure()
	return nil, fmt.Errorf("after %d retries (elapsed %v): %w",
		a.retryCfg.MaxRetries, time.Since(start), lastErr)
}

func (a *Agent) generateOnce(ctx context.Context, opts []ai.GenerateOption) (*ai.ModelResponse, error) {
	if a.retryCfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.retryCfg.AttemptTimeout)
		defer cancel()
	}
	return a.generate(ctx, opts)
}
