// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package llm

import "context"

// Provider is the interface all LLM providers must implement. Providers are
// transport-only: they carry no prompt templating, retry, or output-decoding
// logic. That lives in the Adapter so every provider is retried and decoded
// identically.
type Provider interface {
	// Name returns the unique name of this provider instance.
	Name() string

	// Type returns the provider type (gemini, openai, bedrock).
	Type() ProviderType

	// Complete sends a completion request and returns the response.
	// Errors are *ProviderError values so callers can inspect Retryable.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// IsHealthy reports the provider's last-known health. A provider marks
	// itself unhealthy after a 5xx and healthy again after any success.
	IsHealthy() bool
}
