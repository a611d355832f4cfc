// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

// Package bedrock provides an LLM provider implementation for AWS Bedrock
// using AWS SDK v2. Requests are signed with AWS Signature V4 via IAM roles,
// so no API key ever leaves the process environment.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"

	"axonflow/scribe/orchestrator/llm"
)

const (
	// DefaultRegion is the default AWS region.
	DefaultRegion = "us-east-1"

	// DefaultModel is the default Bedrock model.
	DefaultModel = "anthropic.claude-3-5-sonnet-20240620-v1:0"

	// DefaultMaxTokens is the default max output tokens for completions.
	DefaultMaxTokens = 4096

	// anthropicVersion is the required version marker for Anthropic models
	// on Bedrock.
	anthropicVersion = "bedrock-2023-05-31"
)

// InvokeAPI is the subset of the Bedrock runtime client the provider uses
// (enables testing).
type InvokeAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Provider implements llm.Provider for AWS Bedrock.
type Provider struct {
	client  InvokeAPI
	region  string
	model   string
	healthy bool
	mu      sync.RWMutex
}

// Config contains configuration for the Bedrock provider.
type Config struct {
	Region string // Optional: AWS region (default: us-east-1)
	Model  string // Optional: Default model (default: Claude 3.5 Sonnet)
}

// NewProvider creates a new Bedrock provider. AWS credentials are resolved
// through the default chain (env, shared config, IAM role).
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config for Bedrock (region: %s): %w", cfg.Region, err)
	}

	return &Provider{
		client:  bedrockruntime.NewFromConfig(awsCfg),
		region:  cfg.Region,
		model:   cfg.Model,
		healthy: true,
	}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "bedrock"
}

// Type returns the provider type.
func (p *Provider) Type() llm.ProviderType {
	return llm.ProviderTypeBedrock
}

// IsHealthy returns whether the provider is healthy.
func (p *Provider) IsHealthy() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.healthy && p.region != ""
}

// setHealthy updates the provider health status.
func (p *Provider) setHealthy(healthy bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.healthy = healthy
}

// Complete generates a completion for the given request.
func (p *Provider) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = p.model
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	requestBody, err := buildRequestBody(req, model, maxTokens)
	if err != nil {
		return nil, err
	}

	requestJSON, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	output, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(model),
		Body:        requestJSON,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		perr := mapInvokeError(err)
		if perr.Code == llm.ErrCodeServerError || perr.Code == llm.ErrCodeUnavailable {
			p.setHealthy(false)
		}
		return nil, perr
	}

	p.setHealthy(true)

	resp, err := parseResponseBody(output.Body, model)
	if err != nil {
		return nil, err
	}

	resp.Model = model
	resp.Latency = time.Since(start)
	return resp, nil
}

// buildRequestBody builds the request body based on model family.
func buildRequestBody(req *llm.CompletionRequest, model string, maxTokens int) (map[string]any, error) {
	switch family := detectModelFamily(model); family {
	case "anthropic":
		body := map[string]any{
			"anthropic_version": anthropicVersion,
			"max_tokens":        maxTokens,
			"temperature":       req.Temperature,
			"messages": []map[string]string{
				{"role": "user", "content": req.Prompt},
			},
		}
		if req.SystemPrompt != "" {
			body["system"] = req.SystemPrompt
		}
		return body, nil
	case "amazon":
		inputText := req.Prompt
		if req.SystemPrompt != "" {
			inputText = req.SystemPrompt + "\n\n" + req.Prompt
		}
		return map[string]any{
			"inputText": inputText,
			"textGenerationConfig": map[string]any{
				"maxTokenCount": maxTokens,
				"temperature":   req.Temperature,
			},
		}, nil
	default:
		return nil, llm.NewProviderError("bedrock", llm.ErrCodeInvalidRequest,
			fmt.Sprintf("unsupported model family for %q", model))
	}
}

// parseResponseBody parses the response body based on model family.
func parseResponseBody(body []byte, model string) (*llm.CompletionResponse, error) {
	switch family := detectModelFamily(model); family {
	case "anthropic":
		return parseAnthropicResponse(body)
	case "amazon":
		return parseTitanResponse(body)
	default:
		return nil, llm.NewProviderError("bedrock", llm.ErrCodeInvalidRequest,
			fmt.Sprintf("unsupported model family for %q", model))
	}
}

// parseAnthropicResponse parses an Anthropic Claude response.
func parseAnthropicResponse(body []byte) (*llm.CompletionResponse, error) {
	var resp struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
		StopReason string `json:"stop_reason"`
		Usage      struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	var content strings.Builder
	for _, block := range resp.Content {
		content.WriteString(block.Text)
	}

	return &llm.CompletionResponse{
		Content:      content.String(),
		FinishReason: mapAnthropicStopReason(resp.StopReason),
		Usage: llm.UsageStats{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}, nil
}

// parseTitanResponse parses an Amazon Titan response.
func parseTitanResponse(body []byte) (*llm.CompletionResponse, error) {
	var resp struct {
		Results []struct {
			OutputText       string `json:"outputText"`
			TokenCount       int    `json:"tokenCount"`
			CompletionReason string `json:"completionReason"`
		} `json:"results"`
		InputTextTokenCount int `json:"inputTextTokenCount"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	content := ""
	outputTokens := 0
	finishReason := "unknown"
	if len(resp.Results) > 0 {
		content = resp.Results[0].OutputText
		outputTokens = resp.Results[0].TokenCount
		finishReason = mapTitanCompletionReason(resp.Results[0].CompletionReason)
	}

	return &llm.CompletionResponse{
		Content:      content,
		FinishReason: finishReason,
		Usage: llm.UsageStats{
			PromptTokens:     resp.InputTextTokenCount,
			CompletionTokens: outputTokens,
			TotalTokens:      resp.InputTextTokenCount + outputTokens,
		},
	}, nil
}

// mapInvokeError maps AWS SDK errors to provider error codes.
func mapInvokeError(err error) *llm.ProviderError {
	code := llm.ErrCodeUnavailable

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "TooManyRequestsException":
			code = llm.ErrCodeRateLimit
		case "ModelTimeoutException":
			code = llm.ErrCodeTimeout
		case "ModelNotReadyException", "ServiceUnavailableException":
			code = llm.ErrCodeUnavailable
		case "InternalServerException":
			code = llm.ErrCodeServerError
		case "ValidationException":
			code = llm.ErrCodeInvalidRequest
		case "AccessDeniedException", "UnauthorizedException":
			code = llm.ErrCodeAuth
		case "ResourceNotFoundException":
			code = llm.ErrCodeModelNotFound
		}
	} else if errors.Is(err, context.DeadlineExceeded) {
		code = llm.ErrCodeTimeout
	}

	perr := llm.NewProviderError("bedrock", code, err.Error())
	perr.Cause = err
	return perr
}

// mapAnthropicStopReason maps Anthropic stop reasons to standard reasons.
func mapAnthropicStopReason(reason string) string {
	switch reason {
	case "end_turn", "stop_sequence":
		return "stop"
	case "max_tokens":
		return "max_tokens"
	default:
		return reason
	}
}

// mapTitanCompletionReason maps Titan completion reasons to standard reasons.
func mapTitanCompletionReason(reason string) string {
	switch reason {
	case "FINISH":
		return "stop"
	case "LENGTH":
		return "max_tokens"
	default:
		return reason
	}
}

// inferenceProfilePrefixes are the known AWS Bedrock inference profile prefixes.
var inferenceProfilePrefixes = []string{"eu", "us", "apac", "global"}

// supportedModelFamilies are the model families this provider can talk to.
var supportedModelFamilies = []string{"anthropic", "amazon"}

// detectModelFamily detects the model family from a model ID.
//
// Model IDs follow the pattern provider.model-name-version, e.g.
// anthropic.claude-3-5-sonnet-20240620-v1:0. Inference profile IDs carry a
// regional prefix, e.g. us.anthropic.claude-sonnet-4-5-20250929-v1:0.
func detectModelFamily(modelID string) string {
	if len(modelID) == 0 {
		return ""
	}

	segments := strings.Split(modelID, ".")
	if len(segments) < 2 {
		return ""
	}

	first := segments[0]
	for _, prefix := range inferenceProfilePrefixes {
		if first == prefix {
			return validateFamily(segments[1])
		}
	}

	return validateFamily(first)
}

// validateFamily returns the family if supported, empty string otherwise.
func validateFamily(family string) string {
	for _, supported := range supportedModelFamilies {
		if family == supported {
			return family
		}
	}
	return ""
}

// SetClient sets a custom Bedrock client for testing.
func (p *Provider) SetClient(client InvokeAPI) {
	p.client = client
}
