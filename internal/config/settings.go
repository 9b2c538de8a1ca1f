package config

import (
	"fmt"
	"time"

	"github.com/abhisek/classeval/internal/batch"
	"github.com/abhisek/classeval/internal/evaluation"
	"github.com/abhisek/classeval/internal/llm"
	"github.com/abhisek/classeval/internal/prompt"
)

// DefaultCacheKeep is the number of reports kept when nothing is configured.
const DefaultCacheKeep = 20

// Settings is the resolved configuration handed to every component.
type Settings struct {
	LLM         llm.Config
	MaxTokens   int
	Temperature float64

	Prompt prompt.Options
	Batch  batch.Config
	Parser evaluation.Options

	LogMode   string
	CacheKeep int
}

// Defaults returns Settings with no file or environment applied.
func Defaults() Settings {
	return Settings{
		LLM:         llm.DefaultConfig(),
		MaxTokens:   8192,
		Temperature: 0.7,
		Prompt:      prompt.DefaultOptions(),
		Batch:       batch.DefaultConfig(),
		Parser:      evaluation.DefaultOptions(),
		LogMode:     "dev",
		CacheKeep:   DefaultCacheKeep,
	}
}

// Resolve layers defaults, vendor API key discovery, CLASSEVAL_* variables
// and finally the file, later layers winning.
func Resolve(fc FileConfig) (Settings, error) {
	s := Defaults()

	if discovered, ok := llm.DiscoverConfig(); ok {
		s.LLM = discovered
	}
	llm.ApplyEnv(&s.LLM)

	if err := applyLLM(&s, fc.LLM); err != nil {
		return Settings{}, err
	}

	p := fc.Prompt
	set(&s.Prompt.UseAnnotations, p.UseAnnotations)
	set(&s.Prompt.MinLength, p.MinLength)
	set(&s.Prompt.MaxLength, p.MaxLength)
	set(&s.Prompt.IncludeExamples, p.IncludeExamples)
	set(&s.Prompt.Language, p.Language)

	set(&s.Batch.Threshold, fc.Batch.Threshold)
	set(&s.Batch.BatchSize, fc.Batch.Size)
	set(&s.Batch.MaxConcurrency, fc.Batch.MaxConcurrency)
	if err := s.Batch.Validate(); err != nil {
		return Settings{}, fmt.Errorf("[batch]: %w", err)
	}

	set(&s.Parser.FallbackRatio, fc.Parser.FallbackRatio)
	set(&s.Parser.MinFallbackRunes, fc.Parser.MinFallbackRunes)
	set(&s.Parser.DisableFallback, fc.Parser.DisableFallback)
	if s.Parser.FallbackRatio < 0 {
		return Settings{}, fmt.Errorf("[parser]: fallback-ratio must not be negative")
	}

	set(&s.LogMode, fc.Log.Mode)

	set(&s.CacheKeep, fc.Cache.Keep)
	if s.CacheKeep < 1 {
		return Settings{}, fmt.Errorf("[cache]: keep must be positive, got %d", s.CacheKeep)
	}

	return s, nil
}

// LoadSettings reads the file at path and resolves it.
func LoadSettings(path string) (Settings, error) {
	fc, err := Load(path)
	if err != nil {
		return Settings{}, err
	}
	return Resolve(fc)
}

func applyLLM(s *Settings, sec LLMSection) error {
	set(&s.LLM.Provider, sec.Provider)

	var model, key, baseURL *string
	switch s.LLM.Provider {
	case "anthropic":
		model, key, baseURL = &s.LLM.Anthropic.Model, &s.LLM.Anthropic.APIKey, &s.LLM.Anthropic.BaseURL
	case "openai":
		model, key, baseURL = &s.LLM.OpenAI.Model, &s.LLM.OpenAI.APIKey, &s.LLM.OpenAI.BaseURL
	case "gemini":
		model, key, baseURL = &s.LLM.Gemini.Model, &s.LLM.Gemini.APIKey, &s.LLM.Gemini.BaseURL
	case "openrouter":
		model, key, baseURL = &s.LLM.OpenRouter.Model, &s.LLM.OpenRouter.APIKey, &s.LLM.OpenRouter.BaseURL
	}
	if model != nil {
		set(model, sec.Model)
		set(key, sec.APIKey)
		set(baseURL, sec.BaseURL)
	}

	if sec.Timeout != nil {
		d, err := time.ParseDuration(*sec.Timeout)
		if err != nil {
			return fmt.Errorf("[llm]: invalid timeout %q: %w", *sec.Timeout, err)
		}
		s.LLM.Timeout = d
	}
	set(&s.MaxTokens, sec.MaxTokens)
	set(&s.Temperature, sec.Temperature)
	set(&s.LLM.Retry.MaxAttempts, sec.MaxAttempts)
	return nil
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
