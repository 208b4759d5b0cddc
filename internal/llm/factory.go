package llm

import (
	"fmt"
	"time"
)

// Options selects and configures a provider for New.
type Options struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
	Retry    RetryConfig
}

// New builds the client named by opts.Provider, wrapped with retries when
// opts.Retry allows more than one attempt.
func New(opts Options) (Client, error) {
	var client Client
	switch opts.Provider {
	case ProviderOpenAI, "":
		var o []OpenAIOption
		if opts.Model != "" {
			o = append(o, WithOpenAIModel(opts.Model))
		}
		if opts.BaseURL != "" {
			o = append(o, WithBaseURL(opts.BaseURL))
		}
		if opts.Timeout > 0 {
			o = append(o, WithHTTPTimeout(opts.Timeout))
		}
		client = NewOpenAI(opts.APIKey, o...)
	case ProviderClaudeCLI:
		var o []ClaudeOption
		if opts.Model != "" {
			o = append(o, WithModel(opts.Model))
		}
		if opts.Timeout > 0 {
			o = append(o, WithTimeout(opts.Timeout))
		}
		client = NewClaudeCLI(o...)
	case ProviderMock:
		// An unparseable answer makes every generation fall back to its
		// defaults.
		client = NewMockClient("")
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, opts.Provider)
	}

	if opts.Retry.MaxAttempts > 1 {
		client = WithRetry(client, opts.Retry)
	}
	return client, nil
}
