// Package llm provides the completion clients used to generate application
// descriptions: an OpenAI chat client, a Claude CLI client, and a scripted
// mock for tests.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Client completes prompts.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// Provider names accepted by New.
const (
	ProviderOpenAI    = "openai"
	ProviderClaudeCLI = "claude-cli"
	ProviderMock      = "mock"
)

// ErrUnknownProvider is returned by New for an unrecognized provider.
var ErrUnknownProvider = errors.New("unknown llm provider")

// ErrEmptyResponse is returned when a provider answers with no choices.
var ErrEmptyResponse = errors.New("empty completion response")

// Error is a provider failure.
type Error struct {
	Op        string
	Err       error
	Retryable bool
}

// NewError creates an Error.
func NewError(op string, err error, retryable bool) *Error {
	return &Error{Op: op, Err: err, Retryable: retryable}
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("llm %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a provider failure worth retrying.
func IsRetryable(err error) bool {
	var llmErr *Error
	return errors.As(err, &llmErr) && llmErr.Retryable
}

// isRetryableMessage checks if an error message indicates a transient error.
func isRetryableMessage(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "timeout") ||
		strings.Contains(lower, "overloaded") ||
		strings.Contains(lower, "503") ||
		strings.Contains(lower, "529")
}
