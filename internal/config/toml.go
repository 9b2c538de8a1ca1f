// Package config loads the TOML configuration file and resolves it, together
// with the environment and built-in defaults, into Settings.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file. Nil fields are unset.
type FileConfig struct {
	LLM    LLMSection    `toml:"llm"`
	Prompt PromptSection `toml:"prompt"`
	Batch  BatchSection  `toml:"batch"`
	Parser ParserSection `toml:"parser"`
	Log    LogSection    `toml:"log"`
	Cache  CacheSection  `toml:"cache"`
}

// LLMSection selects and tunes the text generator. Model, APIKey and
// BaseURL apply to the selected provider.
type LLMSection struct {
	Provider    *string  `toml:"provider"`
	Model       *string  `toml:"model"`
	APIKey      *string  `toml:"api-key"`
	BaseURL     *string  `toml:"base-url"`
	Timeout     *string  `toml:"timeout"`
	MaxTokens   *int     `toml:"max-tokens"`
	Temperature *float64 `toml:"temperature"`
	MaxAttempts *int     `toml:"max-attempts"`
}

// PromptSection maps prompt.Options.
type PromptSection struct {
	UseAnnotations  *bool   `toml:"annotations"`
	MinLength       *int    `toml:"min-length"`
	MaxLength       *int    `toml:"max-length"`
	IncludeExamples *bool   `toml:"examples"`
	Language        *string `toml:"language"`
}

// BatchSection maps batch.Config.
type BatchSection struct {
	Threshold      *int `toml:"threshold"`
	Size           *int `toml:"size"`
	MaxConcurrency *int `toml:"max-concurrency"`
}

// ParserSection maps evaluation.Options.
type ParserSection struct {
	FallbackRatio    *float64 `toml:"fallback-ratio"`
	MinFallbackRunes *int     `toml:"min-fallback-runes"`
	DisableFallback  *bool    `toml:"disable-fallback"`
}

// LogSection selects the logger mode.
type LogSection struct {
	Mode *string `toml:"mode"`
}

// CacheSection bounds the report cache.
type CacheSection struct {
	Keep *int `toml:"keep"`
}

// Load reads a TOML config from the given path. A missing file is not an
// error and yields an empty FileConfig.
func Load(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q in %s", undecoded[0].String(), path)
	}
	return cfg, nil
}
