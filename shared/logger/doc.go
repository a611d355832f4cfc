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
Package logger provides structured JSON logging for the Scribe
orchestration pipeline.

# Overview

The logger package provides structured logging that outputs JSON to stdout,
making logs easily consumable by CloudWatch, ELK stack, or other log
aggregation systems.

Each log entry includes:
  - Timestamp (RFC3339Nano format)
  - Log level (DEBUG, INFO, WARN, ERROR)
  - Component name (engine, l1-planner, knowledge-store, etc.)
  - Instance ID and container name (for distributed tracing)
  - State ID (ties the entry to one orchestration run)
  - Custom fields

# Usage

Create a logger for your component:

	log := logger.New("engine")

Log messages with the orchestration state context:

	log.Info(state.StateID, "starting orchestration", map[string]interface{}{
	    "project_id": msg.ProjectID,
	    "sender":     msg.Sender,
	})

Log errors with their cause:

	log.ErrorWithCause(state.StateID, "planner output unusable", err, nil)

Log with duration tracking:

	start := time.Now()
	// ... do work ...
	log.InfoWithDuration(state.StateID, "plan created",
	    time.Since(start).Seconds()*1000, nil)

# Output Format

Log entries are output as single-line JSON:

	{"timestamp":"2025-01-15T10:30:00.123456789Z","level":"INFO",
	 "component":"engine","instance_id":"i-abc123","container":"scribe-xyz",
	 "state_id":"3f6c...","message":"starting orchestration",
	 "fields":{"project_id":"PRJ-ALPHA"}}

# Environment Variables

The logger reads these environment variables:

  - INSTANCE_ID: Deployment instance identifier
  - HOSTNAME: Container hostname (auto-detected)

# Thread Safety

Logger instances are safe for concurrent use from multiple goroutines.
*/
package logger
