// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

/*
Package orchestrator implements the Scribe Orchestration Engine - a
hierarchical LLM pipeline that turns free-form project messages into
structured tracking artifacts.

# Overview

Scribe receives project status messages (standup notes, customer
feedback, incident updates) and orchestrates their analysis through
three levels:

  - L1 Planner: one reasoning-profile LLM call that routes the message
    to domain coordinators
  - L2 Coordinators: Tracking (action items, risks, decisions) and
    Communication (stakeholder Q&A), each fanning out to L3 workers
  - Cross-cutting Knowledge: project context served through a Redis
    read-through cache with an in-process fallback

A deterministic evaluator scores the run and a formatter renders the
final state as a plaintext SCRIBE ORCHESTRATION MAP or a nested JSON
document.

# Architecture

Every request moves through the same pipeline:

	Message → L1 Planner → Coordinators (per planned domain) → Evaluator → Formatter

The engine activates each domain named in the plan exactly once, in
first-appearance order, and keys the result by the activating task id.
Stage failures degrade rather than abort: an unreachable planner model
falls back to the default plan, a failed extraction worker downgrades
its coordinator's result to PARTIAL, and the evaluator reports the
damage in its verdict.

Example:

	engine, err := NewEngine(EngineConfig{
		Planner: NewPlanner(adapter, nil),
		Coordinators: []Coordinator{
			NewTrackingCoordinator(workers, knowledge, nil),
			NewCommunicationCoordinator(workers, knowledge, nil),
			NewKnowledgeCoordinator(knowledge, nil),
		},
		Evaluator: NewEvaluator(nil),
	})
	if err != nil {
		log.Fatal(err)
	}
	state := engine.Process(ctx, msg)
	fmt.Println(RenderMap(state))

# Knowledge Cache

Project knowledge is served by KnowledgeStore, a read-through cache in
front of the bundled knowledge base. Redis is the primary tier; when it
is unreachable the store degrades to an in-process map and keeps
serving. Cache keys digest the message so entries stay bounded:

	knowledge:<project_id>:<sha256(message)[:16]>

# HTTP API

Handler exposes the engine over HTTP:

	GET  /                    Service info
	GET  /health              Health check
	POST /process             JSON summary response
	POST /process/scribe-map  Plaintext SCRIBE MAP response
	POST /process/json        Full nested JSON response
	GET  /metrics             Prometheus metrics

Request bodies are validated before the engine runs; violations return
422 with per-field details. Run wires the full service from environment
configuration and serves it with CORS enabled.

# Related Packages

  - axonflow/scribe/orchestrator/llm: provider-agnostic completion
    adapter with retry and model profiles
  - axonflow/scribe/shared/logger: structured JSON logging
*/
package orchestrator
