// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package orchestrator

import (
	"context"
	"fmt"
	"time"

	"axonflow/scribe/orchestrator/llm"
	"axonflow/scribe/shared/logger"
)

// plannerSystemPrompt constrains delegation to the Level-2 domain set.
// The Domain enum enforces the same rule structurally when the reply is
// decoded, so a model that ignores the instruction still cannot route
// past the coordinators.
const plannerSystemPrompt = `You are the L1 Orchestrator for the Scribe system.
Your role is to analyze incoming messages and create a high-level delegation plan.

CRITICAL CONSTRAINT: You MUST ONLY delegate to these L2 Domain Coordinators:
1. L2_Tracking - For action items, risks, decisions
2. L2_Communication - For Q&A and communication needs
3. Cross_Knowledge - For knowledge retrieval

You CANNOT directly access or delegate to L3 workers (action_item_extractor, risk_extractor, etc.).
L2 coordinators will manage L3 execution internally.

Output a JSON with:
{
  "tasks": [
    {"task_id": "PLAN-001", "domain": "L2_Tracking", "description": "...", "priority": 1},
    ...
  ],
  "reasoning": "..."
}`

const plannerUserTemplate = `Analyze this message and create an orchestration plan:

Message: {{message}}
Sender: {{sender}}
Project: {{project_id}}

Output JSON following the schema.`

const defaultPlanReasoning = "Default plan due to parse error"

// Planner is the Level-1 stage: one adapter call that turns the inbound
// message into routed tasks.
type Planner struct {
	adapter *llm.Adapter
	log     *logger.Logger
}

// NewPlanner wires the planner to its LLM adapter.
func NewPlanner(adapter *llm.Adapter, log *logger.Logger) *Planner {
	if log == nil {
		log = logger.New("l1-planner")
	}
	return &Planner{adapter: adapter, log: log}
}

// DefaultPlan is the fixed fallback applied when the planner model is
// unreachable or returns unusable output. It activates both coordinators
// and the knowledge cross-cut so the pipeline always has routed tasks.
func DefaultPlan() []Task {
	return []Task{
		{TaskID: "PLAN-001", Domain: DomainTracking, Description: "Analyze message for actions", Priority: 1, Status: TaskStatusInProgress},
		{TaskID: "PLAN-002", Domain: DomainCommunication, Description: "Generate stakeholder Q&A", Priority: 2, Status: TaskStatusInProgress},
		{TaskID: "PLAN-003", Domain: DomainKnowledge, Description: "Retrieve project context", Priority: 1, Status: TaskStatusInProgress},
	}
}

// Plan analyzes the inbound message and returns the routed task list.
// Every returned task carries a valid domain and status IN_PROGRESS; the
// fallback guarantees the list is never empty. The plan is read-only
// once returned.
func (p *Planner) Plan(ctx context.Context, state *OrchestrationState) []Task {
	start := time.Now()
	msg := state.InputMessage
	p.log.Info(state.StateID, "planning message", map[string]interface{}{
		"message_id": msg.MessageID,
		"project_id": msg.ProjectID,
	})

	var wire struct {
		Tasks []struct {
			TaskID      string `json:"task_id"`
			Domain      Domain `json:"domain"`
			Description string `json:"description"`
			Priority    *int   `json:"priority"`
		} `json:"tasks"`
		Reasoning string `json:"reasoning"`
	}

	req := llm.Request{
		SystemPrompt: plannerSystemPrompt,
		Template:     plannerUserTemplate,
		Variables: map[string]string{
			"message":    msg.Message,
			"sender":     msg.Sender,
			"project_id": msg.ProjectID,
		},
		Profile: llm.ProfileReasoning,
	}

	var tasks []Task
	var reasoning string
	err := p.adapter.Complete(ctx, req, &wire)
	recordLLMCall(p.adapter.ProviderName(), llm.ProfileReasoning, err)
	if err != nil {
		p.log.ErrorWithCause(state.StateID, "planner output unusable, applying default plan", err, nil)
		tasks = DefaultPlan()
		reasoning = defaultPlanReasoning
	} else {
		// Task ids key the execution results, so duplicates from the
		// model are replaced with the next free positional id.
		seenIDs := make(map[string]bool, len(wire.Tasks))
		nextID := 1
		for _, raw := range wire.Tasks {
			task := Task{
				TaskID:      raw.TaskID,
				Domain:      raw.Domain,
				Description: raw.Description,
				Priority:    1,
				Status:      TaskStatusInProgress,
			}
			if !task.Domain.Valid() {
				task.Domain = DefaultDomain
			}
			if raw.Priority != nil {
				task.Priority = *raw.Priority
			}
			for task.TaskID == "" || seenIDs[task.TaskID] {
				task.TaskID = fmt.Sprintf("PLAN-%d", nextID)
				nextID++
			}
			seenIDs[task.TaskID] = true
			tasks = append(tasks, task)
		}
		reasoning = wire.Reasoning
		if len(tasks) == 0 {
			tasks = DefaultPlan()
			reasoning = defaultPlanReasoning
		}
	}

	state.Logf("[L1] Created plan with %d tasks", len(tasks))
	p.log.InfoWithDuration(state.StateID, "plan created", time.Since(start).Seconds()*1000, map[string]interface{}{
		"tasks":     len(tasks),
		"reasoning": reasoning,
	})
	return tasks
}
