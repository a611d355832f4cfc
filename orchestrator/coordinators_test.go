// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package orchestrator

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"axonflow/scribe/orchestrator/llm"
)

func hasLog(state *OrchestrationState, line string) bool {
	for _, l := range state.Logs {
		if l == line {
			return true
		}
	}
	return false
}

func trackingTask() Task {
	return Task{TaskID: "PLAN-001", Domain: DomainTracking, Description: "Analyze message for actions", Priority: 1, Status: TaskStatusInProgress}
}

func newTracking(t *testing.T, respond func(req *llm.CompletionRequest) (*llm.CompletionResponse, error)) (*TrackingCoordinator, *OrchestrationState) {
	t.Helper()
	workers := NewWorkers(newTestAdapter(t, respond))
	store := NewKnowledgeStore(nil, time.Minute, nil)
	return NewTrackingCoordinator(workers, store, nil), NewOrchestrationState(testMessage())
}

func TestTrackingCoordinatorSuccess(t *testing.T) {
	coordinator, state := newTracking(t, happyPipelineScript())
	result := coordinator.Execute(context.Background(), state, trackingTask())

	if result.TaskID != "PLAN-001" || result.Domain != DomainTracking {
		t.Errorf("result must carry the activating task: %+v", result)
	}
	if result.Status != ResultStatusSuccess {
		t.Fatalf("expected SUCCESS, got %s (error: %s)", result.Status, result.Error)
	}
	if result.Error != "" || len(result.Logs) != 0 {
		t.Errorf("success must carry no error detail: %+v", result)
	}

	out, ok := result.Output.(TrackingOutput)
	if !ok {
		t.Fatalf("output is %T, want TrackingOutput", result.Output)
	}
	if len(out.ActionItems) != 1 || out.ActionItems[0].ID != "ACT-001" {
		t.Errorf("unexpected action items: %+v", out.ActionItems)
	}
	if len(out.Risks) != 1 || out.Risks[0].ID != "RSK-001" {
		t.Errorf("unexpected risks: %+v", out.Risks)
	}
	// testMessage says the customer is willing to pay, so the decision
	// heuristic fires.
	if len(out.Decisions) != 1 || out.Decisions[0].ID != "DEC-001" {
		t.Errorf("unexpected decisions: %+v", out.Decisions)
	}
	if math.Abs(out.ExtractionConfidence-0.89) > 1e-12 {
		t.Errorf("confidence must average both workers, got %v", out.ExtractionConfidence)
	}
	if !hasLog(state, "[L2_Tracking] Completed: 1 actions, 1 risks") {
		t.Errorf("missing tracking log line: %v", state.Logs)
	}
}

func TestTrackingCoordinatorPartialOnWorkerFailure(t *testing.T) {
	respond := func(req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
		if strings.Contains(req.SystemPrompt, "identify potential risks") {
			return nil, errors.New("risk model down")
		}
		return happyPipelineScript()(req)
	}
	coordinator, state := newTracking(t, respond)
	result := coordinator.Execute(context.Background(), state, trackingTask())

	if result.Status != ResultStatusPartial {
		t.Fatalf("expected PARTIAL, got %s", result.Status)
	}
	out := result.Output.(TrackingOutput)
	if len(out.ActionItems) != 1 {
		t.Errorf("surviving worker output must be kept: %+v", out.ActionItems)
	}
	if out.Risks == nil || len(out.Risks) != 0 {
		t.Errorf("failed worker yields empty, non-nil slice: %#v", out.Risks)
	}
	if out.ExtractionConfidence != 0.9 {
		t.Errorf("confidence must come from the surviving worker alone, got %v", out.ExtractionConfidence)
	}
	if !strings.Contains(result.Error, "risk extraction") {
		t.Errorf("error must name the failed worker: %q", result.Error)
	}
	if len(result.Logs) != 1 || !strings.HasPrefix(result.Logs[0], "risk extraction failed:") {
		t.Errorf("unexpected result logs: %v", result.Logs)
	}
}

func TestTrackingCoordinatorFailedWhenAllWorkersFail(t *testing.T) {
	respond := func(req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return nil, errors.New("extraction backend down")
	}
	coordinator, state := newTracking(t, respond)
	result := coordinator.Execute(context.Background(), state, trackingTask())

	if result.Status != ResultStatusFailed {
		t.Fatalf("expected FAILED, got %s", result.Status)
	}
	out := result.Output.(TrackingOutput)
	if len(out.ActionItems) != 0 || len(out.Risks) != 0 {
		t.Errorf("failed workers must yield empty outputs: %+v", out)
	}
	if out.ExtractionConfidence != 0 {
		t.Errorf("no surviving worker means zero confidence, got %v", out.ExtractionConfidence)
	}
	// Decision extraction is local and survives model outages.
	if len(out.Decisions) != 1 {
		t.Errorf("decision heuristic must still run: %+v", out.Decisions)
	}
	for _, worker := range []string{"action item extraction", "risk extraction"} {
		if !strings.Contains(result.Error, worker) {
			t.Errorf("error must name %q: %q", worker, result.Error)
		}
	}
}

func TestCommunicationCoordinator(t *testing.T) {
	task := Task{TaskID: "PLAN-002", Domain: DomainCommunication, Description: "Generate stakeholder Q&A", Priority: 2, Status: TaskStatusInProgress}

	t.Run("success", func(t *testing.T) {
		workers := NewWorkers(newTestAdapter(t, happyPipelineScript()))
		store := NewKnowledgeStore(nil, time.Minute, nil)
		coordinator := NewCommunicationCoordinator(workers, store, nil)
		state := NewOrchestrationState(testMessage())

		result := coordinator.Execute(context.Background(), state, task)
		if result.Status != ResultStatusSuccess {
			t.Fatalf("expected SUCCESS, got %s (error: %s)", result.Status, result.Error)
		}
		out := result.Output.(CommunicationOutput)
		if len(out.QnARecords) != 1 || out.QnARecords[0].Confidence != 0.92 {
			t.Errorf("unexpected qna records: %+v", out.QnARecords)
		}
		if out.GenerationConfidence != 0.9 {
			t.Errorf("expected generation confidence 0.9, got %v", out.GenerationConfidence)
		}
		if !hasLog(state, "[L2_Communication] Completed: 1 Q&A records") {
			t.Errorf("missing communication log line: %v", state.Logs)
		}
	})

	t.Run("worker failure fails the domain", func(t *testing.T) {
		respond := func(req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return nil, errors.New("qna backend down")
		}
		workers := NewWorkers(newTestAdapter(t, respond))
		store := NewKnowledgeStore(nil, time.Minute, nil)
		coordinator := NewCommunicationCoordinator(workers, store, nil)
		state := NewOrchestrationState(testMessage())

		result := coordinator.Execute(context.Background(), state, task)
		if result.Status != ResultStatusFailed {
			t.Fatalf("expected FAILED, got %s", result.Status)
		}
		if !strings.Contains(result.Error, "qna generation") {
			t.Errorf("error must name the worker: %q", result.Error)
		}
		out := result.Output.(CommunicationOutput)
		if out.QnARecords == nil || len(out.QnARecords) != 0 {
			t.Errorf("failed generation yields empty, non-nil records: %#v", out.QnARecords)
		}
		if !hasLog(state, "[L2_Communication] Completed: 0 Q&A records") {
			t.Errorf("missing communication log line: %v", state.Logs)
		}
	})
}

func TestKnowledgeCoordinator(t *testing.T) {
	task := Task{TaskID: "PLAN-003", Domain: DomainKnowledge, Description: "Retrieve project context", Priority: 1, Status: TaskStatusInProgress}

	t.Run("fetch then cache hit", func(t *testing.T) {
		store := NewKnowledgeStore(nil, time.Minute, nil)
		coordinator := NewKnowledgeCoordinator(store, nil)

		state := NewOrchestrationState(testMessage())
		result := coordinator.Execute(context.Background(), state, task)
		if result.Status != ResultStatusSuccess {
			t.Fatalf("expected SUCCESS, got %s (error: %s)", result.Status, result.Error)
		}
		out := result.Output.(KnowledgeOutput)
		if out.CacheHit {
			t.Error("first retrieval must not be a cache hit")
		}
		if name, _ := out.KnowledgeContext["project_name"].(string); !strings.Contains(name, "Project Alpha") {
			t.Errorf("unexpected knowledge payload: %v", out.KnowledgeContext)
		}
		if state.CrossCuttingContext == nil {
			t.Error("knowledge context must be recorded on the state")
		}
		if !hasLog(state, "[Cross_Knowledge] Retrieved context for PRJ-ALPHA") {
			t.Errorf("missing knowledge log line: %v", state.Logs)
		}

		// Same store, same message: served from cache.
		repeat := coordinator.Execute(context.Background(), NewOrchestrationState(testMessage()), task)
		if !repeat.Output.(KnowledgeOutput).CacheHit {
			t.Error("second retrieval must be a cache hit")
		}
	})

	t.Run("unknown project succeeds with error payload", func(t *testing.T) {
		store := NewKnowledgeStore(nil, time.Minute, nil)
		coordinator := NewKnowledgeCoordinator(store, nil)

		msg := testMessage()
		msg.ProjectID = "PRJ-GAMMA"
		state := NewOrchestrationState(msg)
		result := coordinator.Execute(context.Background(), state, task)

		if result.Status != ResultStatusSuccess {
			t.Fatalf("unknown projects are not failures, got %s", result.Status)
		}
		out := result.Output.(KnowledgeOutput)
		if out.KnowledgeContext["error"] != "Project PRJ-GAMMA not found" {
			t.Errorf("expected error payload, got %v", out.KnowledgeContext)
		}
	})
}
