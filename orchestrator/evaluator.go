// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package orchestrator

import (
	"axonflow/scribe/shared/logger"
)

// Confidence threshold below which the evaluator recommends re-running
// with a more precise model.
const lowConfidenceThreshold = 0.75

// Category keys in Evaluation.CategoryConfidence.
const (
	categoryActionItems = "action_items"
	categoryRisks       = "risks"
	categoryDecisions   = "decisions"
	categoryQnA         = "qna"
)

// Evaluator is the deterministic post-pass over the execution results.
// It makes no external calls; every score comes from a fixed heuristic
// over the extracted records.
type Evaluator struct {
	log *logger.Logger
}

// NewEvaluator returns an evaluator logging through log.
func NewEvaluator(log *logger.Logger) *Evaluator {
	if log == nil {
		log = logger.New("evaluator")
	}
	return &Evaluator{log: log}
}

// Evaluate scores the run recorded on state and appends the verdict to
// the state's log trail. Categories whose producing coordinator never
// ran (or failed outright) score zero and stay out of the average.
func (e *Evaluator) Evaluate(state *OrchestrationState) *Evaluation {
	e.log.Info(state.StateID, "assessing execution results", nil)

	eval := &Evaluation{
		CategoryConfidence: map[string]float64{
			categoryActionItems: 0,
			categoryRisks:       0,
			categoryDecisions:   0,
			categoryQnA:         0,
		},
		Recommendations: []string{},
	}

	var (
		actionItems []ActionItem
		risks       []Risk
		decisions   []Decision
		qnaRecords  []QnAPair

		trackingProduced bool
		qnaProduced      bool
		workerScores     []float64
	)

	for _, res := range state.ExecutionResults.All() {
		eval.TotalTasks++
		switch res.Status {
		case ResultStatusSuccess:
			eval.SuccessfulTasks++
		case ResultStatusFailed:
			eval.FailedTasks++
			continue
		case ResultStatusPartial:
			eval.PartialTasks++
		}

		switch out := res.Output.(type) {
		case TrackingOutput:
			trackingProduced = true
			actionItems = append(actionItems, out.ActionItems...)
			risks = append(risks, out.Risks...)
			decisions = append(decisions, out.Decisions...)
			workerScores = append(workerScores, out.ExtractionConfidence)
		case CommunicationOutput:
			qnaProduced = true
			qnaRecords = append(qnaRecords, out.QnARecords...)
			workerScores = append(workerScores, out.GenerationConfidence)
		}
	}

	var samples []float64
	if trackingProduced {
		eval.CategoryConfidence[categoryActionItems] = scoreActionItems(actionItems)
		eval.CategoryConfidence[categoryRisks] = scoreRisks(risks)
		eval.CategoryConfidence[categoryDecisions] = scoreDecisions(decisions)
		samples = append(samples,
			eval.CategoryConfidence[categoryActionItems],
			eval.CategoryConfidence[categoryRisks],
			eval.CategoryConfidence[categoryDecisions],
		)
	}
	if qnaProduced {
		eval.CategoryConfidence[categoryQnA] = scoreQnA(qnaRecords)
		samples = append(samples, eval.CategoryConfidence[categoryQnA])
	}
	samples = append(samples, workerScores...)
	eval.AverageConfidence = meanConfidence(samples)

	switch {
	case eval.TotalTasks == 0 || eval.FailedTasks == eval.TotalTasks:
		eval.OverallStatus = OverallStatusFailed
	case eval.FailedTasks > 0 || eval.PartialTasks > 0:
		eval.OverallStatus = OverallStatusCompletedWithErrors
	default:
		eval.OverallStatus = OverallStatusCompleted
	}

	if eval.FailedTasks > 0 || eval.PartialTasks > 0 {
		eval.Recommendations = append(eval.Recommendations, "Review failed tasks for issues")
	}
	if eval.AverageConfidence < lowConfidenceThreshold {
		eval.Recommendations = append(eval.Recommendations, "Consider re-running with higher model precision")
	}

	state.Logf("[Evaluator] %s: %d/%d tasks successful", eval.OverallStatus, eval.SuccessfulTasks, eval.TotalTasks)
	e.log.Info(state.StateID, "evaluation complete", map[string]interface{}{
		"overall_status":     string(eval.OverallStatus),
		"successful_tasks":   eval.SuccessfulTasks,
		"failed_tasks":       eval.FailedTasks,
		"partial_tasks":      eval.PartialTasks,
		"average_confidence": eval.AverageConfidence,
	})
	return eval
}

// scoreActionItems rewards volume, full ownership, and scheduled work.
func scoreActionItems(items []ActionItem) float64 {
	score := 0.5
	score += capAt(0.1*float64(len(items)), 0.3)
	if len(items) > 0 {
		allOwned := true
		anyDue := false
		for _, item := range items {
			if item.Owner == "" {
				allOwned = false
			}
			if item.DueDate != "" {
				anyDue = true
			}
		}
		if allOwned {
			score += 0.1
		}
		if anyDue {
			score += 0.05
		}
	}
	return capAt(score, 0.95)
}

// scoreRisks rewards volume, mitigation coverage, and flagged severity.
func scoreRisks(risks []Risk) float64 {
	score := 0.5
	score += capAt(0.1*float64(len(risks)), 0.3)
	if len(risks) > 0 {
		allMitigated := true
		anySevere := false
		for _, risk := range risks {
			if risk.Mitigation == "" {
				allMitigated = false
			}
			if risk.Severity == SeverityCritical || risk.Severity == SeverityHigh {
				anySevere = true
			}
		}
		if allMitigated {
			score += 0.15
		}
		if anySevere {
			score += 0.05
		}
	}
	return capAt(score, 0.95)
}

// scoreDecisions rewards detected decisions and stated impact.
func scoreDecisions(decisions []Decision) float64 {
	score := 0.5
	score += capAt(0.15*float64(len(decisions)), 0.3)
	if len(decisions) > 0 {
		for _, d := range decisions {
			if d.Impact != "" {
				score += 0.1
				break
			}
		}
	}
	return capAt(score, 0.95)
}

// scoreQnA is the mean of per-record confidences; no records means the
// neutral baseline.
func scoreQnA(records []QnAPair) float64 {
	if len(records) == 0 {
		return 0.5
	}
	var sum float64
	for _, rec := range records {
		sum += rec.Confidence
	}
	return sum / float64(len(records))
}

func capAt(v, limit float64) float64 {
	if v > limit {
		return limit
	}
	return v
}
