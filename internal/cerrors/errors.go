// Package cerrors defines the taxonomy of error kinds named in spec.md §7.
// Each kind is a sentinel plus a detail struct implementing Unwrap, so
// callers classify with errors.Is/errors.As at the Orchestrator boundary
// rather than sprinkling string matching — the teacher wraps with
// fmt.Errorf("...: %w", err) throughout; this generalizes that idiom into
// named kinds.
package cerrors

import (
	"errors"
	"fmt"
)

var (
	ErrNavigation     = errors.New("navigation error")
	ErrBotDetection   = errors.New("bot detection")
	ErrAnalysis       = errors.New("analysis error")
	ErrExtraction     = errors.New("extraction error")
	ErrValidation     = errors.New("validation error")
	ErrStore          = errors.New("store error")
	ErrBlueprint      = errors.New("blueprint error")
	ErrLLMTransport   = errors.New("llm transport error")
	ErrLLMContract    = errors.New("llm contract error")
	ErrLLMProvider    = errors.New("llm provider error")
)

// NavigationError wraps a goto/wait failure (§7).
type NavigationError struct {
	URL   string
	Cause error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation error on %s: %v", e.URL, e.Cause)
}
func (e *NavigationError) Unwrap() []error { return []error{ErrNavigation, e.Cause} }

// BotDetectionError signals a challenge page was detected (§4.6).
type BotDetectionError struct {
	URL    string
	Reason string
}

func (e *BotDetectionError) Error() string {
	return fmt.Sprintf("bot detection on %s: %s", e.URL, e.Reason)
}
func (e *BotDetectionError) Unwrap() error { return ErrBotDetection }

// AnalysisError wraps an LLM transport/contract/schema-validation failure
// encountered while producing a Strategy (§4.5).
type AnalysisError struct {
	URL   string
	Cause error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis error on %s: %v", e.URL, e.Cause)
}
func (e *AnalysisError) Unwrap() []error { return []error{ErrAnalysis, e.Cause} }

// ExtractionError signals a Strategy could not run against a page —
// missing required selectors at runtime, empty required sets (§4.6, §7).
type ExtractionError struct {
	URL    string
	Reason string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction error on %s: %s", e.URL, e.Reason)
}
func (e *ExtractionError) Unwrap() error { return ErrExtraction }

// StoreError wraps a per-record write failure (counted, non-fatal) or a
// connect failure (fatal).
type StoreError struct {
	Op    string
	Cause error
	Fatal bool
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error during %s: %v", e.Op, e.Cause)
}
func (e *StoreError) Unwrap() []error { return []error{ErrStore, e.Cause} }

// BlueprintError wraps a read/parse/validate failure on replay (§4.9).
type BlueprintError struct {
	Path  string
	Cause error
}

func (e *BlueprintError) Error() string {
	return fmt.Sprintf("blueprint error for %s: %v", e.Path, e.Cause)
}
func (e *BlueprintError) Unwrap() []error { return []error{ErrBlueprint, e.Cause} }

// LLMTransportError is retried (HTTP 5xx, read timeouts).
type LLMTransportError struct {
	Cause error
}

func (e *LLMTransportError) Error() string { return fmt.Sprintf("llm transport error: %v", e.Cause) }
func (e *LLMTransportError) Unwrap() []error { return []error{ErrLLMTransport, e.Cause} }

// LLMContractError reports model output that is still not JSON after the
// repair pass. The Adapter retries such output like a transport failure
// and returns this error only when its last attempt also fails.
type LLMContractError struct {
	Raw string
}

func (e *LLMContractError) Error() string {
	return fmt.Sprintf("llm contract error: model did not produce valid json (len=%d)", len(e.Raw))
}
func (e *LLMContractError) Unwrap() error { return ErrLLMContract }

// LLMProviderError is an auth/quota failure; fatal for the call.
type LLMProviderError struct {
	Cause error
}

func (e *LLMProviderError) Error() string { return fmt.Sprintf("llm provider error: %v", e.Cause) }
func (e *LLMProviderError) Unwrap() []error { return []error{ErrLLMProvider, e.Cause} }
