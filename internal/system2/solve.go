package system2

import (
	"context"
	"time"

	"cogito/internal/complexity"
	"cogito/internal/logging"
	"cogito/internal/sandbox"
)

// Solve phases reported to the OnPhase callback.
const (
	PhasePlan    = "plan"
	PhaseExecute = "execute"
	PhaseReflect = "reflect"
)

// SolveOptions tune one solve loop.
type SolveOptions struct {
	// MaxRetries overrides the engine's bound when > 0.
	MaxRetries int
	// Sandbox reuses one sandbox across attempts; nil creates one per
	// attempt.
	Sandbox *sandbox.Sandbox
	// Plan and execution options.
	PlanOptions *PlanOptions
	ExecOptions *ExecOptions
	// OnPhase is invoked at each phase transition with the attempt number.
	OnPhase func(phase string, attempt int)
}

// Solve runs the plan/execute/reflect loop until success, a no-retry
// reflection, the retry bound, or cancellation. The partial history is
// always returned.
func (e *Engine) Solve(ctx context.Context, task Task, opts *SolveOptions) (*Solution, error) {
	o := SolveOptions{}
	if opts != nil {
		o = *opts
	}
	maxRetries := e.maxRetries
	if o.MaxRetries > 0 {
		maxRetries = o.MaxRetries
	}

	phase := func(name string, attempt int) {
		if o.OnPhase != nil {
			o.OnPhase(name, attempt)
		}
	}

	start := time.Now()
	sol := &Solution{}
	var nextPlan *Plan

	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			sol.Duration = time.Since(start)
			return sol, err
		}

		phase(PhasePlan, attempt)
		var plan *Plan
		if nextPlan != nil {
			plan = nextPlan
		} else {
			var err error
			plan, err = e.Plan(task, o.PlanOptions)
			if err != nil {
				return nil, err
			}
		}
		if sol.TeamRecommendation == nil {
			sol.TeamRecommendation = plan.Team
		}

		phase(PhaseExecute, attempt)
		exec, execErr := e.Execute(ctx, plan, o.Sandbox, o.ExecOptions)

		phase(PhaseReflect, attempt)
		reflection := e.Reflect(exec)

		sol.Attempts = attempt
		sol.History = append(sol.History, Attempt{Attempt: attempt, Plan: plan, Execution: exec, Reflection: reflection})
		sol.FinalResult = reflection
		sol.Success = exec.Success

		if execErr != nil {
			// Canceled mid-execution: surface the partial solution.
			sol.Duration = time.Since(start)
			return sol, execErr
		}
		if exec.Success || !reflection.Retry.ShouldRetry {
			break
		}
		nextPlan = reflection.Retry.AdjustedPlan
	}

	sol.Duration = time.Since(start)
	logging.System2("Solved task %s: success=%v attempts=%d", task.ID, sol.Success, sol.Attempts)
	return sol, nil
}

// Complexity recommendations from AssessComplexity.
const (
	RecommendSystem1 = "system1"
	RecommendSystem2 = "system2"
	RecommendTeam    = "team"
)

// Assessment is the standalone scoring result for external callers.
type Assessment struct {
	Score          float64            `json:"score"`
	Factors        complexity.Factors `json:"factors"`
	Domains        []string           `json:"domains"`
	Recommendation string             `json:"recommendation"`
}

// AssessComplexity exposes the five-factor scoring outside the router.
// Scores above 0.7 recommend a team only when team-worthy signals (domain
// spread or high risk) are present.
func AssessComplexity(task Task) Assessment {
	res := complexity.Score(task.Description, task.Context)

	rec := RecommendSystem2
	switch {
	case res.Score < 0.3:
		rec = RecommendSystem1
	case res.Score > 0.7 && (len(res.Domains) >= 3 || res.Factors.Risk >= 0.6):
		rec = RecommendTeam
	}

	return Assessment{
		Score:          res.Score,
		Factors:        res.Factors,
		Domains:        res.Domains,
		Recommendation: rec,
	}
}
