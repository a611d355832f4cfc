// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package orchestrator

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Rendered map layout constants.
const (
	mapTitle        = "SCRIBE ORCHESTRATION MAP"
	ruleWidth       = 90
	previewLimit    = 100
	renderedLogTail = 10
)

var (
	heavyRule = strings.Repeat("=", ruleWidth)
	lightRule = strings.Repeat("-", ruleWidth)
)

// RenderMap renders the fixed plaintext orchestration map for state. The
// output is byte-stable for a given state: ordering, padding, and
// defaults never depend on wall-clock time or map iteration order.
func RenderMap(state *OrchestrationState) string {
	var lines []string

	lines = append(lines, heavyRule, mapTitle, heavyRule)

	msg := state.InputMessage
	messageID := msg.MessageID
	if messageID == "" {
		messageID = "AUTO-GENERATED"
	}
	timestamp := msg.Timestamp
	if timestamp == "" {
		timestamp = state.CreatedAt.UTC().Format(time.RFC3339)
	}

	lines = append(lines,
		"",
		"MESSAGE METADATA",
		lightRule,
		fmt.Sprintf("  Message ID: %s", messageID),
		fmt.Sprintf("  Sender: %s", msg.Sender),
		fmt.Sprintf("  Project: %s", msg.ProjectID),
		fmt.Sprintf("  Timestamp: %s", timestamp),
		fmt.Sprintf("  State ID: %s", state.StateID),
		fmt.Sprintf("  Message: %s", previewMessage(msg.Message)),
	)

	lines = append(lines, "", "=== L1 PLAN ===", lightRule)
	if len(state.Plan) > 0 {
		for i, task := range state.Plan {
			lines = append(lines,
				fmt.Sprintf("  [TASK-%03d] Domain: %s", i+1, task.Domain),
				fmt.Sprintf("    Task ID: %s", task.TaskID),
				fmt.Sprintf("    Description: %s", task.Description),
				fmt.Sprintf("    Priority: P%d", task.Priority),
				fmt.Sprintf("    Status: %s", task.Status),
				"",
			)
		}
	} else {
		lines = append(lines, "  No tasks planned")
	}

	lines = append(lines, "", "=== L2/L3 EXECUTION ===", lightRule)
	if state.ExecutionResults.Len() > 0 {
		ids := state.ExecutionResults.TaskIDs()
		sort.Strings(ids)
		for _, id := range ids {
			result, _ := state.ExecutionResults.Get(id)
			lines = append(lines,
				fmt.Sprintf("  [%s] %s", id, result.Domain),
				fmt.Sprintf("    Status: %s", result.Status),
				fmt.Sprintf("    Duration: %.2fms", result.DurationMS),
			)
			lines = appendOutputLines(lines, result.Output)
			lines = append(lines, "")
		}
	} else {
		lines = append(lines, "  No execution results")
	}

	var successful, failed, partial int
	for _, res := range state.ExecutionResults.All() {
		switch res.Status {
		case ResultStatusSuccess:
			successful++
		case ResultStatusFailed:
			failed++
		case ResultStatusPartial:
			partial++
		}
	}
	lines = append(lines,
		"",
		"=== EXECUTION SUMMARY ===",
		lightRule,
		fmt.Sprintf("  Total Tasks Executed: %d", state.ExecutionResults.Len()),
		fmt.Sprintf("  Successful: %d", successful),
		fmt.Sprintf("  Failed: %d", failed),
		fmt.Sprintf("  Partial: %d", partial),
		fmt.Sprintf("  Overall Status: %s", overallStatus(state)),
	)

	if len(state.Logs) > 0 {
		lines = append(lines, "", "=== EXECUTION LOGS ===", lightRule)
		logs := state.Logs
		if len(logs) > renderedLogTail {
			logs = logs[len(logs)-renderedLogTail:]
		}
		for _, entry := range logs {
			lines = append(lines, fmt.Sprintf("  %s", entry))
		}
	}

	lines = append(lines, "", heavyRule)
	return strings.Join(lines, "\n")
}

// appendOutputLines renders the per-domain output blocks under one
// execution entry.
func appendOutputLines(lines []string, output any) []string {
	switch out := output.(type) {
	case TrackingOutput:
		if len(out.ActionItems) > 0 {
			lines = append(lines, fmt.Sprintf("    ACTION ITEMS (%d):", len(out.ActionItems)))
			for _, item := range out.ActionItems {
				owner := item.Owner
				if owner == "" {
					owner = "Unassigned"
				}
				lines = append(lines,
					fmt.Sprintf("      • %s: %s", item.ID, item.Description),
					fmt.Sprintf("        Owner: %s, Priority: %s, Status: %s", owner, item.Priority, item.Status),
				)
				if item.DueDate != "" {
					lines = append(lines, fmt.Sprintf("        Due: %s", item.DueDate))
				}
			}
		}
		if len(out.Risks) > 0 {
			lines = append(lines, fmt.Sprintf("    RISKS (%d):", len(out.Risks)))
			for _, risk := range out.Risks {
				owner := risk.Owner
				if owner == "" {
					owner = "TBD"
				}
				lines = append(lines,
					fmt.Sprintf("      • %s: %s", risk.ID, risk.Description),
					fmt.Sprintf("        Severity: %s, Owner: %s", risk.Severity, owner),
				)
				if risk.Mitigation != "" {
					lines = append(lines, fmt.Sprintf("        Mitigation: %s", risk.Mitigation))
				}
			}
		}
		if len(out.Decisions) > 0 {
			lines = append(lines, fmt.Sprintf("    DECISIONS (%d):", len(out.Decisions)))
			for _, decision := range out.Decisions {
				lines = append(lines,
					fmt.Sprintf("      • %s: %s", decision.ID, decision.Description),
					fmt.Sprintf("        Rationale: %s", decision.Rationale),
				)
				if decision.Impact != "" {
					lines = append(lines, fmt.Sprintf("        Impact: %s", decision.Impact))
				}
			}
		}
	case CommunicationOutput:
		if len(out.QnARecords) > 0 {
			lines = append(lines, fmt.Sprintf("    Q&A RECORDS (%d):", len(out.QnARecords)))
			for _, rec := range out.QnARecords {
				lines = append(lines,
					fmt.Sprintf("      Q: %s", rec.Question),
					fmt.Sprintf("      A: %s", rec.Answer),
					fmt.Sprintf("      Confidence: %.2f", rec.Confidence),
				)
			}
		}
	case KnowledgeOutput:
		knowledge := out.KnowledgeContext
		if len(knowledge) == 0 {
			return lines
		}
		if _, hasErr := knowledge["error"]; hasErr {
			return lines
		}
		lines = append(lines,
			"    KNOWLEDGE CONTEXT:",
			fmt.Sprintf("      Project: %s", stringField(knowledge, "project_name", "Unknown")),
			fmt.Sprintf("      Budget: $%s", amountField(knowledge, "budget")),
			fmt.Sprintf("      Timeline: %s", stringField(knowledge, "timeline", "N/A")),
			fmt.Sprintf("      Team Size: %d", listLen(knowledge["team_members"])),
			fmt.Sprintf("      Tech Stack: %s", joinList(knowledge["tech_stack"])),
		)
		if constraints := stringField(knowledge, "constraints", ""); constraints != "" {
			lines = append(lines, fmt.Sprintf("      Constraints: %s", constraints))
		}
	}
	return lines
}

// RenderJSON builds the nested JSON document for state. The
// execution_results object preserves the engine's insertion order.
func RenderJSON(state *OrchestrationState) map[string]any {
	var messageID, timestamp any
	if state.InputMessage.MessageID != "" {
		messageID = state.InputMessage.MessageID
	}
	if state.InputMessage.Timestamp != "" {
		timestamp = state.InputMessage.Timestamp
	}

	return map[string]any{
		"state_id": state.StateID,
		"message_metadata": map[string]any{
			"message_id": messageID,
			"sender":     state.InputMessage.Sender,
			"project_id": state.InputMessage.ProjectID,
			"timestamp":  timestamp,
		},
		"plan":              state.Plan,
		"execution_results": state.ExecutionResults,
		"evaluation":        state.Evaluation,
		"logs":              state.Logs,
	}
}

// overallStatus prefers the evaluator's verdict and recomputes it from
// the result counts when the evaluator has not run.
func overallStatus(state *OrchestrationState) OverallStatus {
	if state.Evaluation != nil {
		return state.Evaluation.OverallStatus
	}
	var failed, partial int
	total := state.ExecutionResults.Len()
	for _, res := range state.ExecutionResults.All() {
		switch res.Status {
		case ResultStatusFailed:
			failed++
		case ResultStatusPartial:
			partial++
		}
	}
	switch {
	case total == 0 || failed == total:
		return OverallStatusFailed
	case failed > 0 || partial > 0:
		return OverallStatusCompletedWithErrors
	default:
		return OverallStatusCompleted
	}
}

// previewMessage truncates the message body for the metadata block,
// counting characters rather than bytes.
func previewMessage(message string) string {
	runes := []rune(message)
	if len(runes) <= previewLimit {
		return message
	}
	return string(runes[:previewLimit]) + "..."
}

func stringField(payload map[string]any, key, fallback string) string {
	if v, ok := payload[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// amountField formats numeric payload values without a float exponent;
// JSON round-trips turn the fixture's integers into float64.
func amountField(payload map[string]any, key string) string {
	switch n := payload[key].(type) {
	case nil:
		return "N/A"
	case int:
		return strconv.Itoa(n)
	case float64:
		if n == math.Trunc(n) {
			return strconv.FormatFloat(n, 'f', 0, 64)
		}
		return strconv.FormatFloat(n, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", n)
	}
}

func listLen(v any) int {
	switch list := v.(type) {
	case []any:
		return len(list)
	case []string:
		return len(list)
	default:
		return 0
	}
}

func joinList(v any) string {
	switch list := v.(type) {
	case []any:
		parts := make([]string, 0, len(list))
		for _, item := range list {
			parts = append(parts, fmt.Sprintf("%v", item))
		}
		return strings.Join(parts, ", ")
	case []string:
		return strings.Join(list, ", ")
	default:
		return ""
	}
}
