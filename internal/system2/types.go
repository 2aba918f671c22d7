// Package system2 implements the deliberative path: a plan -> execute ->
// reflect state machine with bounded retry. Every action passes the sandbox
// safety gate; actual execution is delegated to a Runner so the loop stays
// deterministic and testable.
package system2

import (
	"errors"
	"time"

	"cogito/internal/complexity"
	"cogito/internal/sandbox"
)

// ErrInvalidInput reports a malformed task (missing id or description).
// Surfaced to the caller; never retried.
var ErrInvalidInput = errors.New("system2: invalid task input")

// Task is one deliberative work item.
type Task struct {
	ID          string              `json:"id"`
	Description string              `json:"description"`
	Domain      string              `json:"domain,omitempty"`
	Context     *complexity.Context `json:"context,omitempty"`
}

// Step statuses.
const (
	StepPending   = "pending"
	StepSuccess   = "success"
	StepFailed    = "failed"
	StepBlocked   = "blocked"
	StepSkipped   = "skipped"
	StepCompleted = "completed" // carried over from a prior attempt
)

// Step complexity estimates.
const (
	ComplexityLow    = "low"
	ComplexityMedium = "medium"
	ComplexityHigh   = "high"
)

// Step is one plan entry.
type Step struct {
	ID          string   `json:"id"`
	Order       int      `json:"order"`
	Action      string   `json:"action"`
	DependsOn   []string `json:"depends_on,omitempty"`
	Complexity  string   `json:"complexity"`
	Status      string   `json:"status"`
	SkipOnRetry bool     `json:"skip_on_retry,omitempty"`
}

// Risk severities follow the sandbox scale minus none/critical.
type Risk struct {
	Description string `json:"description"`
	Severity    string `json:"severity"` // low|medium|high
}

// Team recommendation levels.
const (
	TeamSquad   = "squad"
	TeamPlatoon = "platoon"
)

// TeamRecommendation suggests a teammate composition for heavy plans.
type TeamRecommendation struct {
	Level     string   `json:"level"`
	Teammates []string `json:"teammates"`
}

// Plan is a frozen set of steps for one attempt. Retries build a new Plan.
type Plan struct {
	TaskID     string              `json:"task_id"`
	Steps      []*Step             `json:"steps"`
	Risks      []Risk              `json:"risks,omitempty"`
	Team       *TeamRecommendation `json:"team,omitempty"`
	Complexity float64             `json:"complexity"`
	Flagged    bool                `json:"flagged,omitempty"` // dependency cycle fell back to insertion order
	CreatedAt  time.Time           `json:"created_at"`
}

// PlanOptions tune plan construction.
type PlanOptions struct {
	AnalyzeDependencies bool
	AssessRisks         bool
}

// DefaultPlanOptions enables dependency analysis and risk assessment.
func DefaultPlanOptions() PlanOptions {
	return PlanOptions{AnalyzeDependencies: true, AssessRisks: true}
}

// StepResult pairs a step with its sandbox record and validation verdict.
type StepResult struct {
	Step       *Step              `json:"step"`
	Record     *sandbox.Record    `json:"record,omitempty"`
	Validation sandbox.Validation `json:"validation"`
	Status     string             `json:"status"`
	Duration   time.Duration      `json:"duration"`
}

// Execution is the outcome of running one plan.
type Execution struct {
	TaskID        string        `json:"task_id"`
	Plan          *Plan         `json:"-"`
	Results       []StepResult  `json:"results"`
	Success       bool          `json:"success"`
	Completed     int           `json:"completed"`
	Total         int           `json:"total"`
	CycleDetected bool          `json:"cycle_detected,omitempty"`
	Canceled      bool          `json:"canceled,omitempty"`
	SandboxStats  sandbox.Stats `json:"sandbox_stats"`
}

// Reflection pattern labels.
const (
	PatternAllStepsFailed  = "all_steps_failed"
	PatternSafetyBlocked   = "safety_blocked"
	PatternTimeoutFailures = "timeout_failures"
	PatternPartialSuccess  = "partial_success"
)

// Finding is one failed step's diagnosis.
type Finding struct {
	StepID     string `json:"step_id"`
	Reason     string `json:"reason"`
	Correction string `json:"correction"`
}

// RetryDecision says whether and how to re-attempt.
type RetryDecision struct {
	ShouldRetry  bool   `json:"should_retry"`
	Reason       string `json:"reason"`
	AdjustedPlan *Plan  `json:"adjusted_plan,omitempty"`
}

// Reflection is the analysis of one execution. It is a pure function of the
// Execution: reflecting twice yields equal reflections.
type Reflection struct {
	CompletionRate float64       `json:"completion_rate"`
	Patterns       []string      `json:"patterns"`
	Findings       []Finding     `json:"findings"`
	Retry          RetryDecision `json:"retry"`
	Confidence     float64       `json:"confidence"`
}

// Attempt is one plan/execute/reflect round in a solve history.
type Attempt struct {
	Attempt    int         `json:"attempt"`
	Plan       *Plan       `json:"plan"`
	Execution  *Execution  `json:"execution"`
	Reflection *Reflection `json:"reflection"`
}

// Solution is the final outcome of solve().
type Solution struct {
	Success            bool                `json:"success"`
	Attempts           int                 `json:"attempts"`
	History            []Attempt           `json:"history"`
	Duration           time.Duration       `json:"duration"`
	FinalResult        *Reflection         `json:"final_result"`
	TeamRecommendation *TeamRecommendation `json:"team_recommendation,omitempty"`
}
