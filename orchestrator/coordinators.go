// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"axonflow/scribe/shared/logger"
)

// Coordinator executes one domain activation against the shared state.
// Coordinators never call each other; the engine is the only router.
type Coordinator interface {
	Domain() Domain
	Execute(ctx context.Context, state *OrchestrationState, task Task) *ExecutionResult
}

// TrackingCoordinator runs the tracking domain: action items, risks,
// and decisions produced by one concurrent worker fan-out.
type TrackingCoordinator struct {
	workers   *Workers
	knowledge *KnowledgeStore
	log       *logger.Logger
}

// NewTrackingCoordinator wires the tracking domain to its workers and
// the knowledge cache.
func NewTrackingCoordinator(workers *Workers, knowledge *KnowledgeStore, log *logger.Logger) *TrackingCoordinator {
	if log == nil {
		log = logger.New("l2-tracking")
	}
	return &TrackingCoordinator{workers: workers, knowledge: knowledge, log: log}
}

func (c *TrackingCoordinator) Domain() Domain { return DomainTracking }

// Execute fetches the knowledge context, fans out the three extraction
// workers, and merges their outputs into one result. A single worker
// failure degrades the result to PARTIAL; the result is FAILED only when
// no extraction worker succeeded.
func (c *TrackingCoordinator) Execute(ctx context.Context, state *OrchestrationState, task Task) *ExecutionResult {
	c.log.Info(state.StateID, "executing tracking domain", nil)
	start := time.Now()
	msg := state.InputMessage

	knowledge, _, err := c.knowledge.GetOrFetch(ctx, msg.ProjectID, msg.Message)
	if err != nil {
		knowledge = nil
	}

	var (
		wg        sync.WaitGroup
		actionRes *ActionItemExtraction
		riskRes   *RiskExtraction
		decisions []Decision
		actionErr error
		riskErr   error
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		actionRes, actionErr = c.workers.ExtractActionItems(ctx, msg.Message, knowledge)
	}()
	go func() {
		defer wg.Done()
		riskRes, riskErr = c.workers.ExtractRisks(ctx, msg.Message, knowledge)
	}()
	go func() {
		defer wg.Done()
		decisions = ExtractDecisions(msg.Message)
	}()
	wg.Wait()

	output := TrackingOutput{
		ActionItems: []ActionItem{},
		Risks:       []Risk{},
		Decisions:   []Decision{},
	}
	if decisions != nil {
		output.Decisions = decisions
	}

	var (
		confidences []float64
		resultLogs  []string
		workerErrs  []string
	)
	if actionErr != nil {
		resultLogs = append(resultLogs, fmt.Sprintf("action item extraction failed: %v", actionErr))
		workerErrs = append(workerErrs, actionErr.Error())
	} else {
		output.ActionItems = actionRes.ActionItems
		confidences = append(confidences, actionRes.ExtractionConfidence)
	}
	if riskErr != nil {
		resultLogs = append(resultLogs, fmt.Sprintf("risk extraction failed: %v", riskErr))
		workerErrs = append(workerErrs, riskErr.Error())
	} else {
		output.Risks = riskRes.Risks
		confidences = append(confidences, riskRes.ExtractionConfidence)
	}
	output.ExtractionConfidence = meanConfidence(confidences)

	var status ResultStatus
	switch {
	case actionErr == nil && riskErr == nil:
		status = ResultStatusSuccess
	case actionErr != nil && riskErr != nil:
		status = ResultStatusFailed
	default:
		status = ResultStatusPartial
	}

	result := &ExecutionResult{
		TaskID:     task.TaskID,
		Domain:     task.Domain,
		Status:     status,
		DurationMS: time.Since(start).Seconds() * 1000,
		Output:     output,
		Error:      strings.Join(workerErrs, "; "),
		Logs:       resultLogs,
	}

	state.Logf("[L2_Tracking] Completed: %d actions, %d risks", len(output.ActionItems), len(output.Risks))
	c.log.InfoWithDuration(state.StateID, "tracking domain completed", result.DurationMS, map[string]interface{}{
		"status":       string(status),
		"action_items": len(output.ActionItems),
		"risks":        len(output.Risks),
		"decisions":    len(output.Decisions),
	})
	return result
}

// CommunicationCoordinator runs the communication domain: stakeholder
// Q&A generation over the message.
type CommunicationCoordinator struct {
	workers   *Workers
	knowledge *KnowledgeStore
	log       *logger.Logger
}

// NewCommunicationCoordinator wires the communication domain to its
// worker and the knowledge cache.
func NewCommunicationCoordinator(workers *Workers, knowledge *KnowledgeStore, log *logger.Logger) *CommunicationCoordinator {
	if log == nil {
		log = logger.New("l2-communication")
	}
	return &CommunicationCoordinator{workers: workers, knowledge: knowledge, log: log}
}

func (c *CommunicationCoordinator) Domain() Domain { return DomainCommunication }

// Execute fetches the knowledge context and runs the Q&A worker. The
// domain has a single worker, so its failure fails the whole result.
func (c *CommunicationCoordinator) Execute(ctx context.Context, state *OrchestrationState, task Task) *ExecutionResult {
	c.log.Info(state.StateID, "executing communication domain", nil)
	start := time.Now()
	msg := state.InputMessage

	knowledge, _, err := c.knowledge.GetOrFetch(ctx, msg.ProjectID, msg.Message)
	if err != nil {
		knowledge = nil
	}

	output := CommunicationOutput{QnARecords: []QnAPair{}}
	result := &ExecutionResult{
		TaskID: task.TaskID,
		Domain: task.Domain,
		Status: ResultStatusSuccess,
		Logs:   []string{},
	}

	qnaRes, qnaErr := c.workers.GenerateQnA(ctx, msg.Message, knowledge)
	if qnaErr != nil {
		result.Status = ResultStatusFailed
		result.Error = qnaErr.Error()
		result.Logs = append(result.Logs, fmt.Sprintf("qna generation failed: %v", qnaErr))
	} else {
		output.QnARecords = qnaRes.QnARecords
		output.GenerationConfidence = qnaRes.GenerationConfidence
	}
	result.Output = output
	result.DurationMS = time.Since(start).Seconds() * 1000

	state.Logf("[L2_Communication] Completed: %d Q&A records", len(output.QnARecords))
	c.log.InfoWithDuration(state.StateID, "communication domain completed", result.DurationMS, map[string]interface{}{
		"status":      string(result.Status),
		"qna_records": len(output.QnARecords),
	})
	return result
}

// KnowledgeCoordinator runs the cross-cutting knowledge retrieval and
// records the fetched context on the state for downstream readers.
type KnowledgeCoordinator struct {
	knowledge *KnowledgeStore
	log       *logger.Logger
}

// NewKnowledgeCoordinator wires the knowledge cross-cut to the cache.
func NewKnowledgeCoordinator(knowledge *KnowledgeStore, log *logger.Logger) *KnowledgeCoordinator {
	if log == nil {
		log = logger.New("cross-knowledge")
	}
	return &KnowledgeCoordinator{knowledge: knowledge, log: log}
}

func (c *KnowledgeCoordinator) Domain() Domain { return DomainKnowledge }

// Execute resolves the project's knowledge context through the cache.
// Unknown projects still succeed; the payload carries the error detail.
func (c *KnowledgeCoordinator) Execute(ctx context.Context, state *OrchestrationState, task Task) *ExecutionResult {
	c.log.Info(state.StateID, "retrieving knowledge context", nil)
	start := time.Now()
	msg := state.InputMessage

	result := &ExecutionResult{
		TaskID: task.TaskID,
		Domain: task.Domain,
		Status: ResultStatusSuccess,
		Logs:   []string{},
	}

	knowledge, cacheHit, err := c.knowledge.GetOrFetch(ctx, msg.ProjectID, msg.Message)
	if err != nil {
		result.Status = ResultStatusFailed
		result.Error = err.Error()
		result.Logs = append(result.Logs, fmt.Sprintf("knowledge retrieval failed: %v", err))
		knowledge = map[string]any{}
	}

	result.Output = KnowledgeOutput{KnowledgeContext: knowledge, CacheHit: cacheHit}
	result.DurationMS = time.Since(start).Seconds() * 1000
	state.CrossCuttingContext = knowledge

	state.Logf("[Cross_Knowledge] Retrieved context for %s", msg.ProjectID)
	c.log.InfoWithDuration(state.StateID, "knowledge context retrieved", result.DurationMS, map[string]interface{}{
		"project_id": msg.ProjectID,
		"cache_hit":  cacheHit,
	})
	return result
}

// meanConfidence averages the collected worker confidences; no samples
// means zero confidence.
func meanConfidence(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
