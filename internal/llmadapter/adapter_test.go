package llmadapter

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	responses []string
	errs      []error
	calls     int
}

func (s *stubProvider) name() string { return "stub" }

func (s *stubProvider) call(ctx context.Context, prompt string, image []byte) (string, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.responses) {
		return s.responses[i], nil
	}
	return "", errors.New("stub exhausted")
}

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nilWriter{}, nil))
}

type nilWriter struct{}

func (nilWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestAnalyzeSucceedsOnFirstTry(t *testing.T) {
	p := &stubProvider{responses: []string{`{"navigation_type": "grid"}`}}
	a := New(p, RetryPolicy{MaxRetries: 2}, silentLogger())

	result, err := a.Analyze(context.Background(), "prompt", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "grid", result["navigation_type"])
	assert.Equal(t, 1, p.calls)
}

func TestAnalyzeRepairsCodeFencedJSON(t *testing.T) {
	p := &stubProvider{responses: []string{"```json\n{\"navigation_type\": \"sidebar\",}\n```"}}
	a := New(p, RetryPolicy{MaxRetries: 2}, silentLogger())

	result, err := a.Analyze(context.Background(), "prompt", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "sidebar", result["navigation_type"])
}

func TestAnalyzeRetriesOnTransportError(t *testing.T) {
	p := &stubProvider{
		errs:      []error{errors.New("connection reset"), nil},
		responses: []string{"", `{"navigation_type": "mega_menu"}`},
	}
	a := New(p, RetryPolicy{MaxRetries: 2}, silentLogger())

	result, err := a.Analyze(context.Background(), "prompt", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "mega_menu", result["navigation_type"])
	assert.Equal(t, 2, p.calls)
}

func TestAnalyzeFailsAfterExhaustingRetries(t *testing.T) {
	p := &stubProvider{responses: []string{"not json", "still not json", "nope"}}
	a := New(p, RetryPolicy{MaxRetries: 2}, silentLogger())

	_, err := a.Analyze(context.Background(), "prompt", nil, nil)
	require.Error(t, err)
}

func TestAnalyzeStopsImmediatelyOnFatalProviderError(t *testing.T) {
	p := &stubProvider{errs: []error{&fatalProviderError{cause: errors.New("invalid api key")}}}
	a := New(p, RetryPolicy{MaxRetries: 3}, silentLogger())

	_, err := a.Analyze(context.Background(), "prompt", nil, nil)
	require.Error(t, err)
	assert.Equal(t, 1, p.calls)
}
