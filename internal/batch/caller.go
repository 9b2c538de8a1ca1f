package batch

import (
	"context"
	"errors"
	"strings"

	"github.com/abhisek/classeval/internal/llm"
)

// Caller sends one prompt and returns the generated text. Retries and
// timeouts are the Caller's business; the orchestrator never retries.
type Caller interface {
	CallText(ctx context.Context, prompt string) (string, error)
}

// CallerFunc adapts a function to Caller.
type CallerFunc func(ctx context.Context, prompt string) (string, error)

func (f CallerFunc) CallText(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// ProviderCaller adapts an llm.Provider to Caller.
type ProviderCaller struct {
	Provider    llm.Provider
	System      string
	MaxTokens   int
	Temperature float64
}

func (c *ProviderCaller) CallText(ctx context.Context, prompt string) (string, error) {
	resp, err := c.Provider.Generate(ctx, llm.UserPrompt(c.System, prompt, c.MaxTokens, c.Temperature))
	if err != nil {
		return "", err
	}
	// A truncated response loses its trailing end markers.
	if resp.StopReason == "max_tokens" {
		return "", &llm.ErrMaxTokensExceeded{Content: resp.Content}
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", &llm.ErrInvalidResponse{Err: errors.New("empty response")}
	}
	return text, nil
}
