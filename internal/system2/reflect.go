package system2

import (
	"fmt"
	"strings"
)

// Reflect analyzes an execution: completion rate, recurring failure
// patterns, per-step findings with suggested corrections, and the retry
// decision that drives the solve loop.
func (e *Engine) Reflect(exec *Execution) *Reflection {
	r := &Reflection{}
	if exec.Total > 0 {
		r.CompletionRate = float64(exec.Completed) / float64(exec.Total)
	}

	var failedResults, blockedResults, succeeded int
	timeouts := false
	for _, res := range exec.Results {
		switch res.Status {
		case StepSuccess, StepCompleted:
			succeeded++
		case StepBlocked:
			blockedResults++
		case StepFailed:
			failedResults++
		}
		if res.Record != nil && strings.Contains(strings.ToLower(res.Record.Stderr), "timeout") {
			timeouts = true
		}
	}

	attempted := succeeded + blockedResults + failedResults
	if attempted > 0 && succeeded == 0 && failedResults+blockedResults == attempted {
		r.Patterns = append(r.Patterns, PatternAllStepsFailed)
	}
	if blockedResults > 0 {
		r.Patterns = append(r.Patterns, PatternSafetyBlocked)
	}
	if timeouts {
		r.Patterns = append(r.Patterns, PatternTimeoutFailures)
	}
	if succeeded > 0 && failedResults+blockedResults > 0 {
		r.Patterns = append(r.Patterns, PatternPartialSuccess)
	}

	for _, res := range exec.Results {
		if res.Status != StepFailed && res.Status != StepBlocked {
			continue
		}
		r.Findings = append(r.Findings, Finding{
			StepID:     res.Step.ID,
			Reason:     failureReason(res),
			Correction: suggestCorrection(res),
		})
	}

	r.Retry = retryDecision(exec, failedResults, blockedResults)
	r.Confidence = reflectionConfidence(exec, r)
	return r
}

// failureReason extracts the most specific available explanation.
func failureReason(res StepResult) string {
	if len(res.Validation.Issues) > 0 {
		return strings.Join(res.Validation.Issues, "; ")
	}
	rec := res.Record
	if rec == nil {
		return "No execution data"
	}
	if rec.Stderr != "" {
		line := rec.Stderr
		if idx := strings.IndexByte(line, '\n'); idx >= 0 {
			line = line[:idx]
		}
		return line
	}
	if rec.Executed && rec.ExitCode != nil {
		return fmt.Sprintf("Exit code %d", *rec.ExitCode)
	}
	return "No execution data"
}

func suggestCorrection(res StepResult) string {
	var stderr string
	if res.Record != nil {
		stderr = strings.ToLower(res.Record.Stderr)
	}
	switch {
	case strings.Contains(stderr, "permission"):
		return "Check file paths and permissions before retrying"
	case strings.Contains(stderr, "syntax"):
		return "Review the command syntax"
	case strings.Contains(stderr, "timeout"):
		return "Increase the timeout or split the step"
	default:
		return "Retry with adjusted approach"
	}
}

func retryDecision(exec *Execution, failed, blocked int) RetryDecision {
	switch {
	case exec.Success:
		return RetryDecision{ShouldRetry: false, Reason: "execution succeeded"}
	case failed == 0 && blocked > 0:
		// Safety blocks cannot be retried into success.
		return RetryDecision{ShouldRetry: false, Reason: "all failures are safety blocks"}
	case failed == 0 && blocked == 0:
		return RetryDecision{ShouldRetry: false, Reason: "no progress is possible"}
	}

	return RetryDecision{
		ShouldRetry:  true,
		Reason:       fmt.Sprintf("%d step(s) failed and can be re-attempted", failed),
		AdjustedPlan: adjustPlan(exec),
	}
}

// adjustPlan clones the executed plan: succeeded steps are marked
// skip-on-retry and completed, failed steps return to pending.
func adjustPlan(exec *Execution) *Plan {
	src := exec.Plan
	if src == nil {
		return nil
	}

	adjusted := &Plan{
		TaskID:     src.TaskID,
		Risks:      src.Risks,
		Team:       src.Team,
		Complexity: src.Complexity,
		Flagged:    src.Flagged,
		CreatedAt:  src.CreatedAt,
	}
	for _, s := range src.Steps {
		clone := *s
		switch s.Status {
		case StepSuccess, StepCompleted:
			clone.SkipOnRetry = true
			clone.Status = StepCompleted
		default:
			clone.SkipOnRetry = false
			clone.Status = StepPending
		}
		adjusted.Steps = append(adjusted.Steps, &clone)
	}
	return adjusted
}

// reflectionConfidence scores how much the analysis can be trusted: full
// clean completion is certain, partial completion decays with the failure
// share.
func reflectionConfidence(exec *Execution, r *Reflection) float64 {
	if exec.Success {
		return 1.0
	}
	if exec.Total == 0 {
		return 0.1
	}
	conf := 0.4 + 0.5*r.CompletionRate
	if exec.Canceled {
		conf -= 0.2
	}
	if conf < 0.1 {
		conf = 0.1
	}
	return conf
}
