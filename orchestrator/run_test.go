// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package orchestrator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestBuildProvider(t *testing.T) {
	t.Run("gemini", func(t *testing.T) {
		provider, err := buildProvider(context.Background(), Config{LLMProvider: ProviderGemini, GeminiAPIKey: "test-key"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if provider.Name() != "gemini" {
			t.Errorf("provider name = %q", provider.Name())
		}
	})

	t.Run("openai", func(t *testing.T) {
		provider, err := buildProvider(context.Background(), Config{LLMProvider: ProviderOpenAI, OpenAIAPIKey: "sk-test"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if provider.Name() != "openai" {
			t.Errorf("provider name = %q", provider.Name())
		}
	})

	t.Run("gemini without key fails", func(t *testing.T) {
		if _, err := buildProvider(context.Background(), Config{LLMProvider: ProviderGemini}); err == nil {
			t.Fatal("expected error for missing API key")
		}
	})

	t.Run("unsupported provider", func(t *testing.T) {
		_, err := buildProvider(context.Background(), Config{LLMProvider: "ollama"})
		if err == nil || !strings.Contains(err.Error(), `unsupported LLM provider "ollama"`) {
			t.Errorf("expected unsupported-provider error, got %v", err)
		}
	})
}

func TestBuildEngine(t *testing.T) {
	t.Run("full wiring without redis", func(t *testing.T) {
		cfg := Config{
			LLMProvider:  ProviderGemini,
			GeminiAPIKey: "test-key",
			CacheTTL:     time.Minute,
		}
		engine, err := buildEngine(context.Background(), cfg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if engine == nil {
			t.Fatal("expected an engine")
		}
	})

	t.Run("provider error propagates", func(t *testing.T) {
		if _, err := buildEngine(context.Background(), Config{LLMProvider: "nope"}); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("missing profiles file fails", func(t *testing.T) {
		cfg := Config{
			LLMProvider:    ProviderGemini,
			GeminiAPIKey:   "test-key",
			ProfilesConfig: "/nonexistent/profiles.yaml",
		}
		_, err := buildEngine(context.Background(), cfg)
		if err == nil || !strings.Contains(err.Error(), "failed to load model profiles") {
			t.Errorf("expected profile load error, got %v", err)
		}
	})
}

func TestNewRedisClient(t *testing.T) {
	t.Run("empty addr disables the primary", func(t *testing.T) {
		if client := newRedisClient(Config{RedisAddr: ""}); client != nil {
			t.Error("expected nil client for empty addr")
		}
	})

	t.Run("connects to a reachable server", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := newRedisClient(Config{RedisAddr: mr.Addr()})
		if client == nil {
			t.Fatal("expected a client")
		}
		defer client.Close()
		if err := client.Ping(context.Background()).Err(); err != nil {
			t.Errorf("ping failed: %v", err)
		}
	})

	t.Run("unreachable server still returns a client", func(t *testing.T) {
		// The store keeps probing the primary, so construction must not
		// fail just because Redis is down at boot.
		client := newRedisClient(Config{RedisAddr: "127.0.0.1:1"})
		if client == nil {
			t.Fatal("expected a client despite the failed ping")
		}
		client.Close()
	})
}
