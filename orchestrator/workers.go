// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"axonflow/scribe/orchestrator/llm"
)

// Default confidence scores applied when the model omits its own.
const (
	defaultExtractionConfidence = 0.85
	defaultGenerationConfidence = 0.85
	defaultRecordConfidence     = 0.9
)

const actionItemStatusOpen = "OPEN"

// worker prompt templates. The project context is inlined as pretty
// JSON so the model can ground owners and dates in real team data.
const workerPromptTemplate = `Project Context:
{{context}}

Message to analyze:
{{content}}`

const actionItemSystemPrompt = `You are an expert project manager AI assistant.
Analyze the given message and extract actionable items.
Return a JSON with 'action_items' array and 'extraction_confidence' score.

Each action item MUST have: id (ACT-XXX format), description, owner, priority (HIGH/MEDIUM/LOW), due_date.

Be strict: only extract items that are clear action requests, not observations.`

const riskSystemPrompt = `You are an expert risk analyst AI assistant.
Analyze the given message and identify potential risks.
Return a JSON with 'risks' array and 'extraction_confidence' score.

Each risk MUST have: id (RSK-XXX format), description, severity (CRITICAL/HIGH/MEDIUM/LOW), mitigation, owner.

Be thorough but realistic.`

const qnaSystemPrompt = `You are an expert communication analyst AI assistant.
Analyze the given message and generate relevant Q&A records.
Return a JSON with 'qna_records' array and 'generation_confidence' score.

Each record MUST have: question, answer, confidence (0-1).

Generate questions that stakeholders might ask based on the message.`

// ActionItemExtraction is the normalized output of the action-item worker.
type ActionItemExtraction struct {
	ActionItems          []ActionItem `json:"action_items"`
	ExtractionConfidence float64      `json:"extraction_confidence"`
}

// RiskExtraction is the normalized output of the risk worker.
type RiskExtraction struct {
	Risks                []Risk  `json:"risks"`
	ExtractionConfidence float64 `json:"extraction_confidence"`
}

// QnAGeneration is the normalized output of the Q&A worker.
type QnAGeneration struct {
	QnARecords           []QnAPair `json:"qna_records"`
	GenerationConfidence float64   `json:"generation_confidence"`
}

// Workers owns the Level-3 extraction calls. Workers are stateless and
// share nothing; a coordinator may run them concurrently.
type Workers struct {
	adapter *llm.Adapter
}

// NewWorkers wires the worker set to one LLM adapter.
func NewWorkers(adapter *llm.Adapter) *Workers {
	return &Workers{adapter: adapter}
}

// ExtractActionItems asks the model for actionable items in content and
// normalizes the reply: missing ids become ACT-1000+i, missing priority
// becomes MEDIUM, and status is always OPEN regardless of what the model
// claims.
func (w *Workers) ExtractActionItems(ctx context.Context, content string, knowledge map[string]any) (*ActionItemExtraction, error) {
	var wire struct {
		ActionItems []struct {
			ID          string `json:"id"`
			Description string `json:"description"`
			Owner       string `json:"owner"`
			Priority    string `json:"priority"`
			DueDate     string `json:"due_date"`
		} `json:"action_items"`
		ExtractionConfidence *float64 `json:"extraction_confidence"`
	}

	req := llm.Request{
		SystemPrompt: actionItemSystemPrompt,
		Template:     workerPromptTemplate,
		Variables: map[string]string{
			"context": contextJSON(knowledge),
			"content": content,
		},
		Profile: llm.ProfileCostOptimized,
	}
	err := w.adapter.Complete(ctx, req, &wire)
	recordLLMCall(w.adapter.ProviderName(), llm.ProfileCostOptimized, err)
	if err != nil {
		return nil, fmt.Errorf("action item extraction: %w", err)
	}

	items := make([]ActionItem, 0, len(wire.ActionItems))
	for i, raw := range wire.ActionItems {
		item := ActionItem{
			ID:          raw.ID,
			Description: raw.Description,
			Owner:       raw.Owner,
			Priority:    raw.Priority,
			DueDate:     raw.DueDate,
			Status:      actionItemStatusOpen,
		}
		if item.ID == "" {
			item.ID = fmt.Sprintf("ACT-%d", 1000+i)
		}
		if item.Priority == "" {
			item.Priority = SeverityMedium
		}
		items = append(items, item)
	}

	return &ActionItemExtraction{
		ActionItems:          items,
		ExtractionConfidence: confidenceOrDefault(wire.ExtractionConfidence, defaultExtractionConfidence),
	}, nil
}

// ExtractRisks asks the model for project risks in content. Missing ids
// become RSK-1000+i and missing severity becomes MEDIUM.
func (w *Workers) ExtractRisks(ctx context.Context, content string, knowledge map[string]any) (*RiskExtraction, error) {
	var wire struct {
		Risks []struct {
			ID          string `json:"id"`
			Description string `json:"description"`
			Severity    string `json:"severity"`
			Mitigation  string `json:"mitigation"`
			Owner       string `json:"owner"`
		} `json:"risks"`
		ExtractionConfidence *float64 `json:"extraction_confidence"`
	}

	req := llm.Request{
		SystemPrompt: riskSystemPrompt,
		Template:     workerPromptTemplate,
		Variables: map[string]string{
			"context": contextJSON(knowledge),
			"content": content,
		},
		Profile: llm.ProfileCostOptimized,
	}
	err := w.adapter.Complete(ctx, req, &wire)
	recordLLMCall(w.adapter.ProviderName(), llm.ProfileCostOptimized, err)
	if err != nil {
		return nil, fmt.Errorf("risk extraction: %w", err)
	}

	risks := make([]Risk, 0, len(wire.Risks))
	for i, raw := range wire.Risks {
		risk := Risk{
			ID:          raw.ID,
			Description: raw.Description,
			Severity:    raw.Severity,
			Mitigation:  raw.Mitigation,
			Owner:       raw.Owner,
		}
		if risk.ID == "" {
			risk.ID = fmt.Sprintf("RSK-%d", 1000+i)
		}
		if risk.Severity == "" {
			risk.Severity = SeverityMedium
		}
		risks = append(risks, risk)
	}

	return &RiskExtraction{
		Risks:                risks,
		ExtractionConfidence: confidenceOrDefault(wire.ExtractionConfidence, defaultExtractionConfidence),
	}, nil
}

// GenerateQnA asks the model for stakeholder questions and answers about
// content. Records without a confidence score default to 0.9.
func (w *Workers) GenerateQnA(ctx context.Context, content string, knowledge map[string]any) (*QnAGeneration, error) {
	var wire struct {
		QnARecords []struct {
			Question   string   `json:"question"`
			Answer     string   `json:"answer"`
			Confidence *float64 `json:"confidence"`
		} `json:"qna_records"`
		GenerationConfidence *float64 `json:"generation_confidence"`
	}

	req := llm.Request{
		SystemPrompt: qnaSystemPrompt,
		Template:     workerPromptTemplate,
		Variables: map[string]string{
			"context": contextJSON(knowledge),
			"content": content,
		},
		Profile: llm.ProfileCostOptimized,
	}
	err := w.adapter.Complete(ctx, req, &wire)
	recordLLMCall(w.adapter.ProviderName(), llm.ProfileCostOptimized, err)
	if err != nil {
		return nil, fmt.Errorf("qna generation: %w", err)
	}

	records := make([]QnAPair, 0, len(wire.QnARecords))
	for _, raw := range wire.QnARecords {
		records = append(records, QnAPair{
			Question:   raw.Question,
			Answer:     raw.Answer,
			Confidence: confidenceOrDefault(raw.Confidence, defaultRecordConfidence),
		})
	}

	return &QnAGeneration{
		QnARecords:           records,
		GenerationConfidence: confidenceOrDefault(wire.GenerationConfidence, defaultGenerationConfidence),
	}, nil
}

// ExtractDecisions applies the deterministic decision heuristic. It is
// not an LLM call; budget-approval phrasing is the one tracked pattern.
func ExtractDecisions(content string) []Decision {
	if !strings.Contains(strings.ToLower(content), "willing to pay") {
		return nil
	}
	return []Decision{{
		ID:          "DEC-001",
		Description: "Budget increase approved by customer",
		Rationale:   "Customer feedback indicates willingness to fund feature enhancement",
		Impact:      "Enables accelerated feature roadmap",
	}}
}

func confidenceOrDefault(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}

// contextJSON renders the knowledge payload the way the prompts embed
// it. Marshal failures degrade to an empty object rather than aborting
// the worker call.
func contextJSON(knowledge map[string]any) string {
	if len(knowledge) == 0 {
		return "{}"
	}
	raw, err := json.MarshalIndent(knowledge, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(raw)
}
