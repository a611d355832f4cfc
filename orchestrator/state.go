// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package orchestrator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Domain identifies the Level-2 coordinator or cross-cutting concern a
// planned task routes to. The set is closed: decoding an unknown value
// resolves to DefaultDomain instead of failing, so routing stays total
// over whatever the planner model emits.
type Domain string

const (
	DomainTracking      Domain = "L2_Tracking"
	DomainCommunication Domain = "L2_Communication"
	DomainKnowledge     Domain = "Cross_Knowledge"
)

// DefaultDomain is the variant unknown domain strings decode to.
const DefaultDomain = DomainTracking

// ParseDomain maps a raw string onto the closed Domain set. Unknown
// values, including the empty string, resolve to DefaultDomain.
func ParseDomain(s string) Domain {
	switch Domain(s) {
	case DomainTracking, DomainCommunication, DomainKnowledge:
		return Domain(s)
	default:
		return DefaultDomain
	}
}

// Valid reports whether d is one of the declared domain variants.
func (d Domain) Valid() bool {
	switch d {
	case DomainTracking, DomainCommunication, DomainKnowledge:
		return true
	}
	return false
}

func (d Domain) String() string { return string(d) }

// UnmarshalJSON folds unknown domain strings onto DefaultDomain rather
// than failing the surrounding document.
func (d *Domain) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("domain: %w", err)
	}
	*d = ParseDomain(s)
	return nil
}

// TaskStatus is the lifecycle state of a planned task. Plans are
// read-only once created, so routed tasks stay IN_PROGRESS for the
// lifetime of the request.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "PENDING"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusCompleted  TaskStatus = "COMPLETED"
	TaskStatusFailed     TaskStatus = "FAILED"
)

// ResultStatus is the outcome of one coordinator activation.
type ResultStatus string

const (
	ResultStatusSuccess ResultStatus = "SUCCESS"
	ResultStatusFailed  ResultStatus = "FAILED"
	ResultStatusPartial ResultStatus = "PARTIAL"
)

// OverallStatus is the evaluator's verdict over a whole run.
type OverallStatus string

const (
	OverallStatusCompleted           OverallStatus = "COMPLETED"
	OverallStatusCompletedWithErrors OverallStatus = "COMPLETED_WITH_ERRORS"
	OverallStatusFailed              OverallStatus = "FAILED"
)

// Severity and priority labels carried on extracted records. The LLM
// may emit other strings; these are the ones the pipeline assigns or
// inspects.
const (
	SeverityLow      = "LOW"
	SeverityMedium   = "MEDIUM"
	SeverityHigh     = "HIGH"
	SeverityCritical = "CRITICAL"
)

// InputMessage is the inbound project-update message the engine analyzes.
// MessageID and Timestamp are optional; the engine assigns fallbacks when
// they are absent.
type InputMessage struct {
	Message   string `json:"message"`
	Sender    string `json:"sender"`
	ProjectID string `json:"project_id"`
	MessageID string `json:"message_id,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Task is one routed unit of work in the Level-1 plan.
type Task struct {
	TaskID      string     `json:"task_id"`
	Domain      Domain     `json:"domain"`
	Description string     `json:"description"`
	Priority    int        `json:"priority"`
	Status      TaskStatus `json:"status"`
}

// ActionItem is a concrete follow-up extracted from the message.
type ActionItem struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Owner       string `json:"owner"`
	Priority    string `json:"priority"`
	DueDate     string `json:"due_date,omitempty"`
	Status      string `json:"status"`
}

// Risk is a project risk extracted from the message.
type Risk struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Owner       string `json:"owner,omitempty"`
	Mitigation  string `json:"mitigation,omitempty"`
}

// Decision records a decision detected in the message.
type Decision struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Rationale   string `json:"rationale"`
	Impact      string `json:"impact,omitempty"`
}

// QnAPair is one generated stakeholder question and its answer.
type QnAPair struct {
	Question   string  `json:"question"`
	Answer     string  `json:"answer"`
	Confidence float64 `json:"confidence"`
}

// TrackingOutput is the merged payload of the tracking coordinator's
// extraction workers.
type TrackingOutput struct {
	ActionItems          []ActionItem `json:"action_items"`
	Risks                []Risk       `json:"risks"`
	Decisions            []Decision   `json:"decisions"`
	ExtractionConfidence float64      `json:"extraction_confidence"`
}

// CommunicationOutput carries generated stakeholder Q&A records.
type CommunicationOutput struct {
	QnARecords           []QnAPair `json:"qna_records"`
	GenerationConfidence float64   `json:"generation_confidence"`
}

// KnowledgeOutput wraps one knowledge-context lookup.
type KnowledgeOutput struct {
	KnowledgeContext map[string]any `json:"knowledge_context"`
	CacheHit         bool           `json:"cache_hit"`
}

// ExecutionResult records one coordinator activation. It is keyed in the
// state by the plan task that routed to the coordinator, so every result
// traces back to a planned task.
type ExecutionResult struct {
	TaskID     string       `json:"task_id"`
	Domain     Domain       `json:"domain"`
	Status     ResultStatus `json:"status"`
	DurationMS float64      `json:"duration_ms"`
	Output     any          `json:"output"`
	Error      string       `json:"error,omitempty"`
	Logs       []string     `json:"logs"`
}

// ExecutionResults maps plan task ids to coordinator results while
// preserving insertion order for rendering and JSON output.
type ExecutionResults struct {
	order   []string
	results map[string]*ExecutionResult
}

// NewExecutionResults returns an empty, ready-to-use result map.
func NewExecutionResults() *ExecutionResults {
	return &ExecutionResults{results: make(map[string]*ExecutionResult)}
}

// Set stores res under taskID. Overwriting an existing key keeps its
// original position.
func (r *ExecutionResults) Set(taskID string, res *ExecutionResult) {
	if r.results == nil {
		r.results = make(map[string]*ExecutionResult)
	}
	if _, ok := r.results[taskID]; !ok {
		r.order = append(r.order, taskID)
	}
	r.results[taskID] = res
}

// Get returns the result stored under taskID, if any.
func (r *ExecutionResults) Get(taskID string) (*ExecutionResult, bool) {
	if r == nil || r.results == nil {
		return nil, false
	}
	res, ok := r.results[taskID]
	return res, ok
}

// Len returns the number of stored results.
func (r *ExecutionResults) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}

// TaskIDs returns the stored task ids in insertion order.
func (r *ExecutionResults) TaskIDs() []string {
	if r == nil {
		return nil
	}
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}

// All returns the stored results in insertion order.
func (r *ExecutionResults) All() []*ExecutionResult {
	if r == nil {
		return nil
	}
	out := make([]*ExecutionResult, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.results[id])
	}
	return out
}

// MarshalJSON emits a JSON object whose keys follow insertion order.
func (r *ExecutionResults) MarshalJSON() ([]byte, error) {
	if r == nil || len(r.order) == 0 {
		return []byte("{}"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range r.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(r.results[id])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, preserving the document's key
// order as the insertion order.
func (r *ExecutionResults) UnmarshalJSON(data []byte) error {
	r.order = nil
	r.results = make(map[string]*ExecutionResult)
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("execution results: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("execution results: expected object, got %v", tok)
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("execution results: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("execution results: non-string key %v", keyTok)
		}
		var res ExecutionResult
		if err := dec.Decode(&res); err != nil {
			return fmt.Errorf("execution results %q: %w", key, err)
		}
		r.Set(key, &res)
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("execution results: %w", err)
	}
	return nil
}

// Evaluation is the deterministic post-pass summary of one run.
type Evaluation struct {
	TotalTasks         int                `json:"total_tasks"`
	SuccessfulTasks    int                `json:"successful_tasks"`
	FailedTasks        int                `json:"failed_tasks"`
	PartialTasks       int                `json:"partial_tasks"`
	AverageConfidence  float64            `json:"average_confidence"`
	CategoryConfidence map[string]float64 `json:"category_confidence"`
	OverallStatus      OverallStatus      `json:"overall_status"`
	Recommendations    []string           `json:"recommendations"`
}

// OrchestrationState is the full working state of one request as it
// moves through planner, coordinators, and evaluator.
type OrchestrationState struct {
	StateID             string            `json:"state_id"`
	InputMessage        InputMessage      `json:"input_message"`
	Plan                []Task            `json:"plan"`
	ExecutionResults    *ExecutionResults `json:"execution_results"`
	CrossCuttingContext map[string]any    `json:"cross_cutting_context,omitempty"`
	Evaluation          *Evaluation       `json:"evaluation,omitempty"`
	Logs                []string          `json:"logs"`
	CreatedAt           time.Time         `json:"created_at"`
}

// NewOrchestrationState seeds a state with a fresh identity for msg.
func NewOrchestrationState(msg InputMessage) *OrchestrationState {
	return &OrchestrationState{
		StateID:          uuid.New().String(),
		InputMessage:     msg,
		Plan:             []Task{},
		ExecutionResults: NewExecutionResults(),
		Logs:             []string{},
		CreatedAt:        time.Now().UTC(),
	}
}

// Logf appends one formatted audit line to the state's log trail.
func (s *OrchestrationState) Logf(format string, args ...any) {
	s.Logs = append(s.Logs, fmt.Sprintf(format, args...))
}
