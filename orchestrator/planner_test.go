// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package orchestrator

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"axonflow/scribe/orchestrator/llm"
)

func planWith(t *testing.T, reply string) ([]Task, *OrchestrationState) {
	t.Helper()
	adapter := newTestAdapter(t, func(req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return &llm.CompletionResponse{Content: reply}, nil
	})
	state := NewOrchestrationState(testMessage())
	return NewPlanner(adapter, nil).Plan(context.Background(), state), state
}

func TestPlannerPlan(t *testing.T) {
	tasks, state := planWith(t, testPlanJSON)

	if len(tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(tasks))
	}
	want := []Task{
		{TaskID: "PLAN-001", Domain: DomainTracking, Description: "Analyze message for actions", Priority: 1, Status: TaskStatusInProgress},
		{TaskID: "PLAN-002", Domain: DomainCommunication, Description: "Generate stakeholder Q&A", Priority: 2, Status: TaskStatusInProgress},
		{TaskID: "PLAN-003", Domain: DomainKnowledge, Description: "Retrieve project context", Priority: 1, Status: TaskStatusInProgress},
	}
	if !reflect.DeepEqual(tasks, want) {
		t.Errorf("plan mismatch:\ngot  %+v\nwant %+v", tasks, want)
	}

	found := false
	for _, line := range state.Logs {
		if line == "[L1] Created plan with 3 tasks" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected plan log line, got %v", state.Logs)
	}
}

func TestPlannerPromptCarriesMessage(t *testing.T) {
	var gotPrompt string
	adapter := newTestAdapter(t, func(req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
		gotPrompt = req.Prompt
		return &llm.CompletionResponse{Content: testPlanJSON}, nil
	})
	msg := testMessage()
	NewPlanner(adapter, nil).Plan(context.Background(), NewOrchestrationState(msg))

	for _, fragment := range []string{msg.Message, msg.Sender, msg.ProjectID} {
		if !strings.Contains(gotPrompt, fragment) {
			t.Errorf("prompt missing %q:\n%s", fragment, gotPrompt)
		}
	}
}

func TestPlannerNormalization(t *testing.T) {
	t.Run("unknown domain folds to tracking", func(t *testing.T) {
		tasks, _ := planWith(t, `{"tasks": [{"task_id": "PLAN-001", "domain": "L9_Unknown", "description": "x"}]}`)
		if tasks[0].Domain != DefaultDomain {
			t.Errorf("expected %s, got %s", DefaultDomain, tasks[0].Domain)
		}
	})

	t.Run("missing priority defaults to 1", func(t *testing.T) {
		tasks, _ := planWith(t, `{"tasks": [{"task_id": "PLAN-001", "domain": "L2_Tracking", "description": "x"}]}`)
		if tasks[0].Priority != 1 {
			t.Errorf("expected priority 1, got %d", tasks[0].Priority)
		}
	})

	t.Run("explicit zero priority is kept", func(t *testing.T) {
		tasks, _ := planWith(t, `{"tasks": [{"task_id": "PLAN-001", "domain": "L2_Tracking", "description": "x", "priority": 0}]}`)
		if tasks[0].Priority != 0 {
			t.Errorf("expected priority 0, got %d", tasks[0].Priority)
		}
	})

	t.Run("duplicate task ids are reassigned", func(t *testing.T) {
		tasks, _ := planWith(t, `{"tasks": [
			{"task_id": "PLAN-001", "domain": "L2_Tracking", "description": "first"},
			{"task_id": "PLAN-001", "domain": "L2_Communication", "description": "second"}
		]}`)
		if tasks[0].TaskID != "PLAN-001" {
			t.Errorf("first occurrence keeps its id, got %q", tasks[0].TaskID)
		}
		if tasks[1].TaskID != "PLAN-1" {
			t.Errorf("duplicate gets next free positional id, got %q", tasks[1].TaskID)
		}
	})

	t.Run("empty task id is assigned", func(t *testing.T) {
		tasks, _ := planWith(t, `{"tasks": [{"domain": "Cross_Knowledge", "description": "x"}]}`)
		if tasks[0].TaskID != "PLAN-1" {
			t.Errorf("expected PLAN-1, got %q", tasks[0].TaskID)
		}
	})
}

func TestPlannerFallsBackToDefaultPlan(t *testing.T) {
	cases := []struct {
		name  string
		reply string
		err   error
	}{
		{name: "provider error", err: errors.New("connection refused")},
		{name: "malformed json", reply: `{"tasks": [`},
		{name: "empty task list", reply: `{"tasks": [], "reasoning": "nothing to do"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			adapter := newTestAdapter(t, func(req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
				if tc.err != nil {
					return nil, tc.err
				}
				return &llm.CompletionResponse{Content: tc.reply}, nil
			})
			state := NewOrchestrationState(testMessage())
			tasks := NewPlanner(adapter, nil).Plan(context.Background(), state)

			if !reflect.DeepEqual(tasks, DefaultPlan()) {
				t.Errorf("expected default plan, got %+v", tasks)
			}
			found := false
			for _, line := range state.Logs {
				if line == "[L1] Created plan with 3 tasks" {
					found = true
				}
			}
			if !found {
				t.Errorf("default plan must still be logged, got %v", state.Logs)
			}
		})
	}
}
