// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"axonflow/scribe/orchestrator/llm"
)

// scriptedProvider routes completion calls through a single respond
// function so one fake can serve the planner and all three workers.
// Coordinators call workers concurrently, so the counter is guarded.
type scriptedProvider struct {
	mu      sync.Mutex
	calls   int
	respond func(req *llm.CompletionRequest) (*llm.CompletionResponse, error)
}

func (p *scriptedProvider) Name() string           { return "scripted" }
func (p *scriptedProvider) Type() llm.ProviderType { return llm.ProviderType("scripted") }
func (p *scriptedProvider) IsHealthy() bool        { return true }

func (p *scriptedProvider) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	return p.respond(req)
}

// newTestAdapter builds an adapter around respond with a single-attempt
// retry policy so failure-path tests never sleep.
func newTestAdapter(t *testing.T, respond func(req *llm.CompletionRequest) (*llm.CompletionResponse, error)) *llm.Adapter {
	t.Helper()
	adapter, err := llm.NewAdapter(llm.AdapterConfig{
		Provider: &scriptedProvider{respond: respond},
		Retry:    llm.RetryPolicy{MaxAttempts: 1, InitialDelay: time.Millisecond, Multiplier: 2},
	})
	if err != nil {
		t.Fatalf("failed to build test adapter: %v", err)
	}
	return adapter
}

// Canned model replies for the happy path.
const (
	testPlanJSON = `{"tasks": [
		{"task_id": "PLAN-001", "domain": "L2_Tracking", "description": "Analyze message for actions", "priority": 1},
		{"task_id": "PLAN-002", "domain": "L2_Communication", "description": "Generate stakeholder Q&A", "priority": 2},
		{"task_id": "PLAN-003", "domain": "Cross_Knowledge", "description": "Retrieve project context", "priority": 1}
	], "reasoning": "standard delegation"}`

	testActionJSON = `{"action_items": [
		{"id": "ACT-001", "description": "Add real-time notifications", "owner": "John Doe", "priority": "HIGH", "due_date": "2025-01-15"}
	], "extraction_confidence": 0.9}`

	testRiskJSON = `{"risks": [
		{"id": "RSK-001", "description": "WebSocket infrastructure is unproven", "severity": "HIGH", "mitigation": "Prototype early", "owner": "John Doe"}
	], "extraction_confidence": 0.88}`

	testQnAJSON = `{"qna_records": [
		{"question": "When will notifications ship?", "answer": "Targeting Q1 2025.", "confidence": 0.92}
	], "generation_confidence": 0.9}`
)

// pipelineScript serves canned JSON per pipeline role, selected by the
// system prompt the stage sends.
func pipelineScript(planJSON, actionJSON, riskJSON, qnaJSON string) func(req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return func(req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
		switch {
		case strings.Contains(req.SystemPrompt, "L1 Orchestrator"):
			return &llm.CompletionResponse{Content: planJSON}, nil
		case strings.Contains(req.SystemPrompt, "extract actionable items"):
			return &llm.CompletionResponse{Content: actionJSON}, nil
		case strings.Contains(req.SystemPrompt, "identify potential risks"):
			return &llm.CompletionResponse{Content: riskJSON}, nil
		case strings.Contains(req.SystemPrompt, "generate relevant Q&A"):
			return &llm.CompletionResponse{Content: qnaJSON}, nil
		default:
			return nil, fmt.Errorf("unexpected system prompt: %.40s", req.SystemPrompt)
		}
	}
}

// happyPipelineScript is the all-stages-succeed script.
func happyPipelineScript() func(req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return pipelineScript(testPlanJSON, testActionJSON, testRiskJSON, testQnAJSON)
}

// newTestEngine assembles a full engine over the scripted adapter and a
// fallback-only knowledge store.
func newTestEngine(t *testing.T, respond func(req *llm.CompletionRequest) (*llm.CompletionResponse, error)) *Engine {
	t.Helper()
	adapter := newTestAdapter(t, respond)
	store := NewKnowledgeStore(nil, time.Minute, nil)
	workers := NewWorkers(adapter)

	engine, err := NewEngine(EngineConfig{
		Planner: NewPlanner(adapter, nil),
		Coordinators: []Coordinator{
			NewTrackingCoordinator(workers, store, nil),
			NewCommunicationCoordinator(workers, store, nil),
			NewKnowledgeCoordinator(store, nil),
		},
		Evaluator: NewEvaluator(nil),
	})
	if err != nil {
		t.Fatalf("failed to build test engine: %v", err)
	}
	return engine
}

// testMessage is the default inbound message used across tests.
func testMessage() InputMessage {
	return InputMessage{
		Message:   "The customer demo went great! They loved it and are willing to pay for real-time notifications.",
		Sender:    "Sarah Chen",
		ProjectID: "PRJ-ALPHA",
		MessageID: "MSG-20250101-001",
	}
}
