package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/abhisek/classeval/internal/logger"
	"github.com/abhisek/classeval/internal/store"
)

// recordingRepo is an in-memory store.EventRepo.
type recordingRepo struct {
	store.EventRepo
	mu     sync.Mutex
	events []store.LLMRequestEventData
	err    error
}

func (r *recordingRepo) AppendLLMRequest(_ context.Context, data store.LLMRequestEventData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, data)
	return r.err
}

func observedLogger() (*logger.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return &logger.Logger{SugaredLogger: zap.New(core).Sugar()}, logs
}

func TestLogging_RecordsSuccess(t *testing.T) {
	mock := NewMockProvider(MockResponse{
		Content: json.RawMessage("evaluation text"),
		Usage:   Usage{InputTokens: 12, OutputTokens: 34},
	})
	repo := &recordingRepo{}
	log, logs := observedLogger()

	p := WithLogging(mock, "anthropic", repo, log)
	ctx := WithBatch(WithPurpose(context.Background(), "batch-evaluations"), 1, 3)
	if _, err := p.Generate(ctx, UserPrompt("sys", "hello", 100, 0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(repo.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(repo.events))
	}
	e := repo.events[0]
	if e.Provider != "anthropic" || e.Purpose != "batch-evaluations" || !e.Success {
		t.Fatalf("unexpected event: %+v", e)
	}
	if e.Batch != "2/3" || e.Attempt != 1 {
		t.Fatalf("unexpected batch tag: %q attempt %d", e.Batch, e.Attempt)
	}
	if e.InputTokens != 12 || e.OutputTokens != 34 {
		t.Fatalf("unexpected usage: %+v", e)
	}
	if !strings.Contains(e.RequestBody, "[system]\nsys") || !strings.Contains(e.RequestBody, "[user]\nhello") {
		t.Fatalf("unexpected request body: %q", e.RequestBody)
	}
	if e.ResponseBody != "evaluation text" {
		t.Fatalf("unexpected response body: %q", e.ResponseBody)
	}
	if logs.FilterMessage("llm request").Len() != 1 {
		t.Fatal("expected a debug log line")
	}
}

func TestLogging_RecordsFailureAndSurvivesRepoError(t *testing.T) {
	mock := NewMockProvider(MockResponse{Err: &ErrRateLimit{Err: errors.New("slow down")}})
	repo := &recordingRepo{err: errors.New("disk full")}
	log, logs := observedLogger()

	p := WithLogging(mock, "openai", repo, log)
	_, err := p.Generate(context.Background(), Request{})

	var rl *ErrRateLimit
	if !errors.As(err, &rl) {
		t.Fatalf("expected the provider error, got %v", err)
	}
	if repo.events[0].Success || repo.events[0].ErrorMessage == "" {
		t.Fatalf("expected failure event, got %+v", repo.events[0])
	}
	if logs.FilterMessage("failed to log LLM request event").Len() != 1 {
		t.Fatal("expected repo failure to be logged")
	}
}

func TestLogging_NilRepo(t *testing.T) {
	mock := NewMockProvider(MockResponse{Content: json.RawMessage("ok")})
	p := WithLogging(mock, "mock", nil, nil)
	resp, err := p.Generate(context.Background(), Request{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text() != "ok" {
		t.Fatalf("expected ok, got %q", resp.Text())
	}
}

// blockingProvider waits for its context to end.
type blockingProvider struct{}

func (blockingProvider) Generate(ctx context.Context, _ Request) (*Response, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingProvider) ModelID() string { return "blocking" }

func TestTimeout_CancelsSlowCall(t *testing.T) {
	p := WithTimeout(blockingProvider{}, 20*time.Millisecond)

	start := time.Now()
	_, err := p.Generate(context.Background(), Request{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("timeout did not bound the call")
	}
	if p.ModelID() != "blocking" {
		t.Fatalf("expected delegated model id, got %q", p.ModelID())
	}
}

func TestTimeout_ZeroIsPassThrough(t *testing.T) {
	mock := NewMockProvider()
	if WithTimeout(mock, 0) != Provider(mock) {
		t.Fatal("expected the provider unchanged")
	}
}

func TestRetry_ZeroAttemptsStillCalls(t *testing.T) {
	mock := NewMockProvider(MockResponse{Content: json.RawMessage("ok")})
	p := WithRetry(mock, RetryConfig{}, nil)
	if _, err := p.Generate(context.Background(), Request{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mock.CallCount() != 1 {
		t.Fatalf("expected 1 call, got %d", mock.CallCount())
	}
}

func TestNewProvider(t *testing.T) {
	ctx := context.Background()

	p, err := NewProvider(ctx, Config{Provider: "mock"}, nil, nil)
	if err != nil {
		t.Fatalf("mock: unexpected error: %v", err)
	}
	if p.ModelID() != "mock" {
		t.Fatalf("expected mock, got %q", p.ModelID())
	}

	if _, err := NewProvider(ctx, Config{Provider: "anthropic"}, nil, nil); err == nil {
		t.Fatal("expected missing key error")
	}
	if _, err := NewProvider(ctx, Config{Provider: "nope"}, nil, nil); err == nil {
		t.Fatal("expected unknown provider error")
	}

	cfg := DefaultConfig()
	cfg.Provider = "openrouter"
	cfg.OpenRouter.APIKey = "sk-or-test"
	p, err = NewProvider(ctx, cfg, nil, nil)
	if err != nil {
		t.Fatalf("openrouter: unexpected error: %v", err)
	}
	if _, ok := p.(*TimeoutProvider); !ok {
		t.Fatalf("expected timeout decorator outermost, got %T", p)
	}
	if p.ModelID() != cfg.OpenRouter.Model {
		t.Fatalf("model = %q, want %q", p.ModelID(), cfg.OpenRouter.Model)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("CLASSEVAL_LLM_PROVIDER", "openai")
	t.Setenv("CLASSEVAL_OPENAI_API_KEY", "sk-env")
	t.Setenv("CLASSEVAL_OPENAI_BASE_URL", "http://localhost:8080/v1")
	t.Setenv("CLASSEVAL_LLM_TIMEOUT", "45s")

	cfg := ConfigFromEnv()
	if cfg.Provider != "openai" || cfg.OpenAI.APIKey != "sk-env" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.OpenAI.BaseURL != "http://localhost:8080/v1" {
		t.Fatalf("base URL = %q", cfg.OpenAI.BaseURL)
	}
	if cfg.Timeout != 45*time.Second {
		t.Fatalf("timeout = %s", cfg.Timeout)
	}
	if cfg.ModelName() != "gpt-4o-mini" {
		t.Fatalf("model = %q", cfg.ModelName())
	}
}

func TestLookupCost(t *testing.T) {
	cases := map[string]float64{
		"gpt-4o-mini":                0.15,
		"gpt-4o-mini-2024-07-18":     0.15,
		"openai/gpt-4o-mini":         0.15,
		"claude-sonnet-4-5-20250929": 3,
		"anthropic/claude-haiku-4-5": 1,
		"google/gemini-2.5-flash":    0.3,
	}
	for id, input := range cases {
		c := LookupCost(id)
		if c == nil {
			t.Fatalf("%s: expected pricing", id)
		}
		if c.InputPerMTok != input {
			t.Fatalf("%s: input price = %v, want %v", id, c.InputPerMTok, input)
		}
	}
	if LookupCost("nobody/unknown-model") != nil {
		t.Fatal("expected nil for unknown model")
	}
	c := ModelCost{InputPerMTok: 1, OutputPerMTok: 2}
	if got := c.Cost(1_000_000, 500_000); got != 2 {
		t.Fatalf("cost = %v, want 2", got)
	}
}
