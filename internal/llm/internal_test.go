package llm

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildArgs(t *testing.T) {
	tests := []struct {
		name     string
		client   *ClaudeCLI
		req      CompletionRequest
		contains []string
		excludes []string
	}{
		{
			name:     "basic request",
			client:   NewClaudeCLI(),
			req:      UserPrompt("", "Hello"),
			contains: []string{"--print", "-p", "Hello"},
			excludes: []string{"--system-prompt", "--model"},
		},
		{
			name:     "with system prompt",
			client:   NewClaudeCLI(),
			req:      UserPrompt("Be helpful", "Hi"),
			contains: []string{"--system-prompt", "Be helpful"},
		},
		{
			name:     "with model from client",
			client:   NewClaudeCLI(WithModel("sonnet")),
			req:      UserPrompt("", "Test"),
			contains: []string{"--model", "sonnet"},
		},
		{
			name:   "request model overrides client",
			client: NewClaudeCLI(WithModel("default-model")),
			req: CompletionRequest{
				Model:    "request-model",
				Messages: []Message{{Role: RoleUser, Content: "Test"}},
			},
			contains: []string{"--model", "request-model"},
			excludes: []string{"default-model"},
		},
		{
			name:   "with max tokens",
			client: NewClaudeCLI(),
			req: CompletionRequest{
				MaxTokens: 1000,
				Messages:  []Message{{Role: RoleUser, Content: "Test"}},
			},
			contains: []string{"--max-tokens", "1000"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := tt.client.buildArgs(tt.req)
			for _, want := range tt.contains {
				assert.Contains(t, args, want)
			}
			for _, unwanted := range tt.excludes {
				assert.NotContains(t, args, unwanted)
			}
		})
	}
}

func TestBuildArgs_JSONModeExtendsSystemPrompt(t *testing.T) {
	req := UserPrompt("Extract fields.", "x")
	req.JSON = true

	args := NewClaudeCLI().buildArgs(req)
	assert.Contains(t, args, "Extract fields.\nRespond with a single JSON object only.")
}

func TestIsRetryableMessage(t *testing.T) {
	assert.True(t, isRetryableMessage("Rate limit exceeded"))
	assert.True(t, isRetryableMessage("request timeout"))
	assert.True(t, isRetryableMessage("HTTP 529 overloaded"))
	assert.False(t, isRetryableMessage("invalid api key"))
}

func fakeClaude(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "claude")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755))
	return path
}

func TestClaudeCLI_Complete(t *testing.T) {
	path := fakeClaude(t, `echo '  {"app_name":"Gym"}  '`)
	c := NewClaudeCLI(WithClaudePath(path), WithModel("sonnet"))

	resp, err := c.Complete(context.Background(), UserPrompt("", "a gym app"))
	require.NoError(t, err)
	assert.Equal(t, `{"app_name":"Gym"}`, resp.Content)
	assert.Equal(t, "sonnet", resp.Model)
	assert.Equal(t, "stop", resp.FinishReason)
}

func TestClaudeCLI_CompleteFailure(t *testing.T) {
	path := fakeClaude(t, `echo "rate limit exceeded" >&2; exit 1`)
	_, err := NewClaudeCLI(WithClaudePath(path)).Complete(context.Background(), UserPrompt("", "x"))
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.Contains(t, err.Error(), "rate limit exceeded")

	path = fakeClaude(t, `echo "invalid api key" >&2; exit 1`)
	_, err = NewClaudeCLI(WithClaudePath(path)).Complete(context.Background(), UserPrompt("", "x"))
	require.Error(t, err)
	assert.False(t, IsRetryable(err))
}
