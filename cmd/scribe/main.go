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

// Package main is the entry point for the Scribe Orchestration Engine.
//
// Scribe is a hierarchical LLM orchestration service that:
// - Plans task delegation from an inbound project message (L1)
// - Routes tasks to domain coordinators (L2/L3): tracking, communication, knowledge
// - Extracts action items, risks, decisions and stakeholder Q&A in parallel
// - Evaluates execution results into a deterministic confidence summary
//
// Usage:
//
//	./scribe
//
// Environment Variables:
//
//	PORT - HTTP server port (default: 8080)
//	LLM_PROVIDER - gemini, openai or bedrock (default: gemini)
//	GEMINI_API_KEY - Google API key (required for gemini)
//	OPENAI_API_KEY - OpenAI API key (required for openai)
//	BEDROCK_REGION - AWS Bedrock region (optional)
//	REDIS_ADDR - knowledge cache address (default: localhost:6379)
//
// For more information, see https://docs.getaxonflow.com
package main

import (
	"axonflow/scribe/orchestrator"
)

func main() {
	orchestrator.Run()
}
