// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// RetryPolicy controls how the adapter retries failed completions.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts (first try included).
	MaxAttempts int

	// InitialDelay is the wait before the first retry.
	InitialDelay time.Duration

	// Multiplier scales the delay after each retry.
	Multiplier float64
}

// DefaultRetryPolicy returns the standard policy: three attempts with a
// 4s initial delay doubling each retry.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 4 * time.Second,
		Multiplier:   2.0,
	}
}

// Request describes one adapter completion. Pipeline stages fill a prompt
// template with variables and name a model profile; they never see provider
// wire formats or raw model text.
type Request struct {
	// SystemPrompt sets the model's role for this call.
	SystemPrompt string

	// Template is the user prompt with {{name}} placeholders.
	Template string

	// Variables are substituted into the template. Every placeholder must
	// be covered; an unresolved placeholder fails the call before any
	// provider traffic.
	Variables map[string]string

	// Profile names the model profile to apply (e.g. ProfileReasoning).
	Profile string
}

// Adapter is the single entry point the pipeline uses to talk to a model.
// It renders templates, applies profiles, retries retryable failures, and
// decodes the model's JSON output into the caller's record type.
type Adapter struct {
	provider Provider
	profiles map[string]ModelProfile
	retry    RetryPolicy
}

// AdapterConfig holds the adapter's dependencies.
type AdapterConfig struct {
	// Provider is the configured LLM backend. Required.
	Provider Provider

	// Profiles maps profile names to generation parameters. If nil, the
	// built-in defaults are used.
	Profiles map[string]ModelProfile

	// Retry overrides the retry policy. The zero value selects the default.
	Retry RetryPolicy
}

// NewAdapter creates an Adapter.
func NewAdapter(cfg AdapterConfig) (*Adapter, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("llm provider is required")
	}

	profiles := cfg.Profiles
	if profiles == nil {
		profiles = DefaultProfiles()
	}

	retry := cfg.Retry
	if retry.MaxAttempts <= 0 {
		retry = DefaultRetryPolicy()
	}

	return &Adapter{
		provider: cfg.Provider,
		profiles: profiles,
		retry:    retry,
	}, nil
}

// ProviderName returns the configured provider's name, for logs and metrics.
func (a *Adapter) ProviderName() string {
	return a.provider.Name()
}

// Complete renders the request, calls the provider, and decodes the model's
// JSON output into out. Retryable provider errors and malformed output are
// retried per the policy; once the budget is exhausted (or a non-retryable
// error occurs) the returned error is a *UnavailableError.
func (a *Adapter) Complete(ctx context.Context, req Request, out any) error {
	if out == nil {
		return fmt.Errorf("output target is required")
	}

	profile, ok := a.profiles[req.Profile]
	if !ok {
		return fmt.Errorf("unknown model profile %q", req.Profile)
	}

	prompt, err := renderTemplate(req.Template, req.Variables)
	if err != nil {
		return err
	}

	creq := &CompletionRequest{
		Prompt:       prompt,
		SystemPrompt: req.SystemPrompt,
		MaxTokens:    profile.MaxTokens,
		Temperature:  profile.Temperature,
		Model:        profile.Model,
	}

	delay := a.retry.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= a.retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := a.wait(ctx, delay); err != nil {
				return &UnavailableError{Provider: a.provider.Name(), Attempts: attempt - 1, Cause: err}
			}
			delay = time.Duration(float64(delay) * a.retry.Multiplier)
		}

		resp, err := a.provider.Complete(ctx, creq)
		if err != nil {
			lastErr = err
			if !isRetryable(err) {
				return &UnavailableError{Provider: a.provider.Name(), Attempts: attempt, Cause: err}
			}
			continue
		}

		if err := decodeOutput(resp.Content, out); err != nil {
			// Malformed output burns a retry like any transport failure.
			lastErr = NewProviderError(a.provider.Name(), ErrCodeMalformedOutput, err.Error())
			continue
		}

		return nil
	}

	return &UnavailableError{Provider: a.provider.Name(), Attempts: a.retry.MaxAttempts, Cause: lastErr}
}

// wait sleeps for the given delay or until the context is done.
func (a *Adapter) wait(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// isRetryable reports whether an error should consume a retry attempt.
func isRetryable(err error) bool {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.Retryable
	}
	// Unknown error shapes (network stack, DNS) are treated as transient.
	return true
}

// renderTemplate substitutes {{name}} placeholders. Unresolved placeholders
// are a programming error and fail the call immediately.
func renderTemplate(template string, vars map[string]string) (string, error) {
	rendered := template
	for name, value := range vars {
		rendered = strings.ReplaceAll(rendered, "{{"+name+"}}", value)
	}

	if start := strings.Index(rendered, "{{"); start >= 0 {
		if end := strings.Index(rendered[start:], "}}"); end >= 0 {
			return "", fmt.Errorf("unresolved template placeholder %q", rendered[start:start+end+2])
		}
	}

	return rendered, nil
}

// decodeOutput extracts the JSON document from model text and unmarshals it.
// Models routinely wrap JSON in markdown fences or prose; everything outside
// the outermost braces is discarded.
func decodeOutput(content string, out any) error {
	doc, err := extractJSON(content)
	if err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(doc), out); err != nil {
		return fmt.Errorf("failed to decode model output: %w", err)
	}

	return nil
}

// extractJSON locates the outermost JSON object or array in model text.
func extractJSON(content string) (string, error) {
	s := strings.TrimSpace(content)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	closer := "}"
	if arrStart := strings.Index(s, "["); start < 0 || (arrStart >= 0 && arrStart < start) {
		start = arrStart
		closer = "]"
	}
	if start < 0 {
		return "", fmt.Errorf("no JSON document in model output")
	}

	end := strings.LastIndex(s, closer)
	if end <= start {
		return "", fmt.Errorf("unterminated JSON document in model output")
	}

	return s[start : end+1], nil
}
