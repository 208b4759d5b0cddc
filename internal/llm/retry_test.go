package llm_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/randalmurphal/appforge/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastRetry = llm.RetryConfig{
	MaxAttempts:    3,
	InitialBackoff: time.Millisecond,
	MaxBackoff:     5 * time.Millisecond,
	BackoffFactor:  2,
}

func TestRetrying_RetriesTransientFailures(t *testing.T) {
	calls := 0
	mock := llm.NewMockClient("").WithHandler(func(llm.CompletionRequest) (string, error) {
		calls++
		if calls < 3 {
			return "", llm.NewError("complete", errors.New("rate limit"), true)
		}
		return "ok", nil
	})

	resp, err := llm.WithRetry(mock, fastRetry).Complete(context.Background(), llm.CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 3, calls)
}

func TestRetrying_StopsOnPermanentFailure(t *testing.T) {
	permanent := llm.NewError("complete", errors.New("invalid api key"), false)
	mock := llm.NewMockClient("").WithError(permanent)

	_, err := llm.WithRetry(mock, fastRetry).Complete(context.Background(), llm.CompletionRequest{})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, mock.CallCount())
}

func TestRetrying_GivesUpAfterMaxAttempts(t *testing.T) {
	transient := llm.NewError("complete", errors.New("503"), true)
	mock := llm.NewMockClient("").WithError(transient)

	_, err := llm.WithRetry(mock, fastRetry).Complete(context.Background(), llm.CompletionRequest{})
	assert.ErrorIs(t, err, transient)
	assert.Equal(t, 3, mock.CallCount())
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, llm.IsRetryable(llm.NewError("x", assert.AnError, true)))
	assert.False(t, llm.IsRetryable(llm.NewError("x", assert.AnError, false)))
	assert.False(t, llm.IsRetryable(assert.AnError))
}
