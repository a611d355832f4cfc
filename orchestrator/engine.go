// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package orchestrator

import (
	"context"
	"fmt"
	"time"

	"axonflow/scribe/shared/logger"
)

// Engine drives one message through the pipeline: plan, route to
// coordinators, evaluate. Engines are stateless across requests and safe
// for concurrent use; all per-request data lives on the state.
type Engine struct {
	planner      *Planner
	coordinators map[Domain]Coordinator
	evaluator    *Evaluator
	log          *logger.Logger
}

// EngineConfig collects the pipeline stages for NewEngine.
type EngineConfig struct {
	Planner      *Planner
	Coordinators []Coordinator
	Evaluator    *Evaluator
	Logger       *logger.Logger
}

// NewEngine validates and assembles the pipeline.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Planner == nil {
		return nil, fmt.Errorf("engine: planner is required")
	}
	if cfg.Evaluator == nil {
		return nil, fmt.Errorf("engine: evaluator is required")
	}
	if len(cfg.Coordinators) == 0 {
		return nil, fmt.Errorf("engine: at least one coordinator is required")
	}
	coordinators := make(map[Domain]Coordinator, len(cfg.Coordinators))
	for _, c := range cfg.Coordinators {
		if _, dup := coordinators[c.Domain()]; dup {
			return nil, fmt.Errorf("engine: duplicate coordinator for domain %s", c.Domain())
		}
		coordinators[c.Domain()] = c
	}
	log := cfg.Logger
	if log == nil {
		log = logger.New("orchestration-engine")
	}
	return &Engine{
		planner:      cfg.Planner,
		coordinators: coordinators,
		evaluator:    cfg.Evaluator,
		log:          log,
	}, nil
}

// Process runs the full pipeline for msg and returns the final state.
// Stage failures degrade into the state (default plan, FAILED or PARTIAL
// results) rather than aborting: a state always comes back, ready for
// rendering.
func (e *Engine) Process(ctx context.Context, msg InputMessage) *OrchestrationState {
	state := NewOrchestrationState(msg)
	if state.InputMessage.Timestamp == "" {
		state.InputMessage.Timestamp = state.CreatedAt.Format(time.RFC3339)
	}
	e.log.Info(state.StateID, "starting orchestration", map[string]interface{}{
		"project_id": msg.ProjectID,
		"sender":     msg.Sender,
	})
	start := time.Now()

	state.Plan = e.planner.Plan(ctx, state)

	// Each domain named in the plan runs once, in first-appearance
	// order; the activating task's id keys the result. Result keys are
	// therefore always a subset of the plan's task ids.
	activated := make(map[Domain]bool, len(e.coordinators))
	for _, task := range state.Plan {
		if activated[task.Domain] {
			continue
		}
		activated[task.Domain] = true
		coordinator, ok := e.coordinators[task.Domain]
		if !ok {
			continue
		}
		result := coordinator.Execute(ctx, state, task)
		state.ExecutionResults.Set(task.TaskID, result)
	}

	state.Evaluation = e.evaluator.Evaluate(state)

	e.log.InfoWithDuration(state.StateID, "orchestration completed", time.Since(start).Seconds()*1000, map[string]interface{}{
		"overall_status": string(state.Evaluation.OverallStatus),
		"tasks_executed": state.ExecutionResults.Len(),
	})
	return state
}
