package embed

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ProviderType represents an embedding provider
type ProviderType string

const (
	// ProviderOllama uses the Ollama API for embeddings (default, cross-platform)
	ProviderOllama ProviderType = "ollama"

	// ProviderStatic uses hash-based embeddings (deterministic fallback for
	// tests and BM25-only deployments)
	ProviderStatic ProviderType = "static"
)

// NewEmbedder creates an embedder based on provider type.
// The RAGCORE_EMBEDDER environment variable can override the provider:
//   - "ollama": Use OllamaEmbedder (default)
//   - "static": Use StaticEmbedder (deterministic, no network)
//
// Query embedding caching is enabled by default (saves 50-200ms per repeated query).
// Set RAGCORE_EMBED_CACHE=false to disable caching.
func NewEmbedder(ctx context.Context, provider ProviderType, model string) (Embedder, error) {
	var embedder Embedder
	var err error

	// Environment variable override wins over configured provider
	envProvider := os.Getenv("RAGCORE_EMBEDDER")
	if envProvider != "" {
		switch strings.ToLower(envProvider) {
		case "ollama":
			embedder, err = newOllama(ctx, model)
		case "static":
			embedder, err = NewStaticEmbedder(), nil
		}
	}

	if embedder == nil && err == nil {
		switch provider {
		case ProviderOllama:
			embedder, err = newOllama(ctx, model)

		case ProviderStatic:
			embedder, err = NewStaticEmbedder(), nil

		default:
			// Auto-detection: Ollama when reachable, static fallback
			embedder, err = newAutoDetect(ctx, model)
		}
	}

	if err != nil {
		return nil, err
	}

	// Wrap with cache unless disabled
	if !isCacheDisabled() {
		embedder = NewCachedEmbedderWithDefaults(embedder)
	}

	return embedder, nil
}

// isCacheDisabled checks if embedding cache is disabled via environment.
func isCacheDisabled() bool {
	v := strings.ToLower(os.Getenv("RAGCORE_EMBED_CACHE"))
	return v == "false" || v == "0" || v == "off" || v == "disabled"
}

// newAutoDetect prefers Ollama and falls back to the static embedder when no
// Ollama server is reachable. An explicitly configured provider never falls
// back; only auto-detection does.
func newAutoDetect(ctx context.Context, model string) (Embedder, error) {
	embedder, err := newOllama(ctx, model)
	if err == nil {
		return embedder, nil
	}

	slog.Info("ollama unavailable, using static embedder",
		slog.String("error", err.Error()))
	return NewStaticEmbedder(), nil
}

// newOllama creates an Ollama embedder. An explicitly selected Ollama
// provider returns an error if the server is unavailable rather than silently
// degrading search quality.
func newOllama(ctx context.Context, model string) (Embedder, error) {
	cfg := DefaultOllamaConfig()
	if model != "" && isOllamaModelName(model) {
		cfg.Model = model
	}

	if host := os.Getenv("RAGCORE_OLLAMA_HOST"); host != "" {
		cfg.Host = host
	}

	if modelOverride := os.Getenv("RAGCORE_OLLAMA_MODEL"); modelOverride != "" {
		cfg.Model = modelOverride
	}

	if timeoutStr := os.Getenv("RAGCORE_OLLAMA_TIMEOUT"); timeoutStr != "" {
		if timeout, err := time.ParseDuration(timeoutStr); err == nil {
			cfg.Timeout = timeout
		}
	}

	// Timeout-progression settings for long indexing runs. Config file values
	// are applied first (via SetTimeoutConfig), env vars override.
	if globalTimeoutConfig.InterBatchDelay > 0 {
		delay := globalTimeoutConfig.InterBatchDelay
		if delay > MaxInterBatchDelay {
			delay = MaxInterBatchDelay
		}
		cfg.InterBatchDelay = delay
	}
	if globalTimeoutConfig.TimeoutProgression >= 1.0 {
		progression := globalTimeoutConfig.TimeoutProgression
		if progression > MaxTimeoutProgression {
			progression = MaxTimeoutProgression
		}
		cfg.TimeoutProgression = progression
	}
	if globalTimeoutConfig.RetryTimeoutMultiplier >= 1.0 {
		mult := globalTimeoutConfig.RetryTimeoutMultiplier
		if mult > MaxRetryTimeoutMultiplier {
			mult = MaxRetryTimeoutMultiplier
		}
		cfg.RetryTimeoutMultiplier = mult
	}

	if delayStr := os.Getenv("RAGCORE_INTER_BATCH_DELAY"); delayStr != "" {
		if delay, err := time.ParseDuration(delayStr); err == nil && delay >= 0 {
			if delay > MaxInterBatchDelay {
				delay = MaxInterBatchDelay
			}
			cfg.InterBatchDelay = delay
		}
	}

	if progressionStr := os.Getenv("RAGCORE_TIMEOUT_PROGRESSION"); progressionStr != "" {
		if progression, err := parseFloat64(progressionStr); err == nil && progression >= 1.0 {
			if progression > MaxTimeoutProgression {
				progression = MaxTimeoutProgression
			}
			cfg.TimeoutProgression = progression
		}
	}

	if retryMultStr := os.Getenv("RAGCORE_RETRY_TIMEOUT_MULTIPLIER"); retryMultStr != "" {
		if mult, err := parseFloat64(retryMultStr); err == nil && mult >= 1.0 {
			if mult > MaxRetryTimeoutMultiplier {
				mult = MaxRetryTimeoutMultiplier
			}
			cfg.RetryTimeoutMultiplier = mult
		}
	}

	embedder, err := NewOllamaEmbedder(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ollama unavailable: %w (start it with 'ollama serve', or set embeddings.provider to 'static')", err)
	}
	return embedder, nil
}

// TimeoutConfig holds timeout-progression settings loaded from the config file.
type TimeoutConfig struct {
	InterBatchDelay        time.Duration // Pause between batches
	TimeoutProgression     float64       // Timeout multiplier for later batches (1.0-3.0)
	RetryTimeoutMultiplier float64       // Timeout multiplier per retry (1.0-2.0)
}

// globalTimeoutConfig holds config file settings set via SetTimeoutConfig.
// Env vars take precedence over these values.
var globalTimeoutConfig TimeoutConfig

// SetTimeoutConfig sets timeout-progression config from the user's config
// file. Call before NewEmbedder(); environment variables still take
// precedence.
func SetTimeoutConfig(cfg TimeoutConfig) {
	globalTimeoutConfig = cfg
	if cfg.InterBatchDelay > 0 || cfg.TimeoutProgression != 0 || cfg.RetryTimeoutMultiplier != 0 {
		slog.Debug("timeout_config_set",
			slog.Duration("inter_batch_delay", cfg.InterBatchDelay),
			slog.Float64("timeout_progression", cfg.TimeoutProgression),
			slog.Float64("retry_timeout_multiplier", cfg.RetryTimeoutMultiplier))
	}
}

// NewDefaultEmbedder creates a static embedder.
//
// Deprecated: This function ignores user configuration and always returns
// StaticEmbedder, which can cause dimension mismatches if the index was built
// with a different embedder. Use NewEmbedder with the configured provider
// instead.
func NewDefaultEmbedder(ctx context.Context) (Embedder, error) {
	return NewEmbedder(ctx, ProviderStatic, "")
}

// ParseProvider converts a string to ProviderType
func ParseProvider(s string) ProviderType {
	switch strings.ToLower(s) {
	case "ollama":
		return ProviderOllama
	case "static":
		return ProviderStatic
	default:
		// Empty or unrecognized string triggers auto-detection
		return ""
	}
}

// String returns the string representation of ProviderType
func (p ProviderType) String() string {
	return string(p)
}

// isOllamaModelName checks if a model name looks like an Ollama model.
// Ollama models carry a ":" tag (e.g., "nomic-embed-text:latest") or a plain
// name; GGUF file names have version suffixes or a .gguf extension.
func isOllamaModelName(model string) bool {
	if strings.Contains(model, ":") {
		return true
	}

	if strings.HasSuffix(strings.ToLower(model), ".gguf") {
		return false
	}

	// Version-number pattern (e.g., "bge-small-en-v1.5") suggests a GGUF file
	if strings.Contains(model, "-v") && (strings.Contains(model, ".") || strings.HasSuffix(model, "-v1") || strings.HasSuffix(model, "-v2")) {
		return false
	}

	return model != ""
}

// ValidProviders returns all valid provider names
func ValidProviders() []string {
	return []string{
		string(ProviderOllama),
		string(ProviderStatic),
	}
}

// IsValidProvider checks if a provider name is valid
func IsValidProvider(s string) bool {
	lower := strings.ToLower(s)
	for _, p := range ValidProviders() {
		if lower == p {
			return true
		}
	}
	return false
}

// EmbedderInfo contains information about an embedder
type EmbedderInfo struct {
	Provider   ProviderType
	Model      string
	Dimensions int
	Available  bool
}

// GetInfo returns information about an embedder
func GetInfo(ctx context.Context, embedder Embedder) EmbedderInfo {
	info := EmbedderInfo{
		Model:      embedder.ModelName(),
		Dimensions: embedder.Dimensions(),
		Available:  embedder.Available(ctx),
	}

	// Unwrap cached embedder to get underlying type
	inner := embedder
	if cached, ok := embedder.(*CachedEmbedder); ok {
		inner = cached.inner
	}

	switch inner.(type) {
	case *OllamaEmbedder:
		info.Provider = ProviderOllama
	default:
		info.Provider = ProviderStatic
	}

	return info
}

// MustNewEmbedder creates an embedder and panics on failure
// Use only in tests or initialization code where failure is fatal
func MustNewEmbedder(ctx context.Context, provider ProviderType, model string) Embedder {
	embedder, err := NewEmbedder(ctx, provider, model)
	if err != nil {
		panic(fmt.Sprintf("failed to create embedder: %v", err))
	}
	return embedder
}

// parseFloat64 parses a string to float64, used for timeout config parsing
func parseFloat64(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
