// Package llmadapter provides a uniform vision+text chat call over
// pluggable LLM providers (spec.md §4.4), with structured JSON output,
// tolerant repair, and retry with exponential backoff. Grounded on
// jmylchreest-refyne-api's go.mod, which is the one pack repo naming a
// concrete LLM SDK (github.com/anthropics/anthropic-sdk-go).
package llmadapter

import (
	"context"
	"log/slog"
	"time"

	"github.com/romangod6/catscout/internal/cerrors"
)

// RequestTimeout is the per-call budget spec.md §4.4 mandates: 180s,
// because local models on modest hardware need >=60s for a vision+HTML
// prompt.
const RequestTimeout = 180 * time.Second

// Client is the public operation spec.md §4.4 names: analyze a prompt
// (with optional image) against a response schema and get back a decoded
// JSON object.
type Client interface {
	Analyze(ctx context.Context, prompt string, image []byte, schema map[string]any) (map[string]any, error)
}

// RetryPolicy bounds the adapter's exponential backoff.
type RetryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
}

// DefaultRetryPolicy mirrors spec.md's MAX_RETRIES default of 3.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, InitialDelay: 500 * time.Millisecond}
}

// provider is the narrow transport implemented per backend; Adapter
// layers timeout, JSON repair, and retry on top of it uniformly so no
// provider needs to reimplement those concerns (spec.md §9, "Tenacity-
// style retries... do not sprinkle retry loops inline").
type provider interface {
	call(ctx context.Context, prompt string, image []byte) (string, error)
	name() string
}

// Adapter is the production Client implementation.
type Adapter struct {
	provider provider
	retry    RetryPolicy
	logger   *slog.Logger
}

// New builds an Adapter around the given low-level provider transport.
func New(p provider, retry RetryPolicy, logger *slog.Logger) *Adapter {
	return &Adapter{provider: p, retry: retry, logger: logger}
}

// Analyze implements Client. It enforces the request timeout, attempts
// tolerant JSON repair on non-conforming output, and retries transient
// transport/repair failures with exponential backoff up to MaxRetries.
func (a *Adapter) Analyze(ctx context.Context, prompt string, image []byte, schema map[string]any) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()

	delay := a.retry.InitialDelay
	var lastErr error

	for attempt := 0; attempt <= a.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			a.logger.Debug("llm retry", "provider", a.provider.name(), "attempt", attempt, "delay", delay)
			select {
			case <-ctx.Done():
				return nil, &cerrors.LLMTransportError{Cause: ctx.Err()}
			case <-time.After(delay):
			}
			delay *= 2
		}

		raw, err := a.provider.call(ctx, prompt, image)
		if err != nil {
			lastErr = &cerrors.LLMTransportError{Cause: err}
			if isProviderFatal(err) {
				return nil, &cerrors.LLMProviderError{Cause: err}
			}
			continue
		}

		parsed, repairErr := repairAndParse(raw)
		if repairErr != nil {
			lastErr = &cerrors.LLMContractError{Raw: raw}
			continue
		}

		return parsed, nil
	}

	return nil, lastErr
}

// isProviderFatal distinguishes auth/quota failures (fatal, not retried)
// from transient transport failures. Providers wrap such errors in
// fatalProviderError.
func isProviderFatal(err error) bool {
	_, ok := err.(*fatalProviderError)
	return ok
}

type fatalProviderError struct {
	cause error
}

func (e *fatalProviderError) Error() string { return e.cause.Error() }
func (e *fatalProviderError) Unwrap() error { return e.cause }
