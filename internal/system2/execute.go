package system2

import (
	"context"
	"time"

	"cogito/internal/logging"
	"cogito/internal/sandbox"
)

// ExecOptions tune one execution pass.
type ExecOptions struct {
	// StopOnFailure skips remaining steps after the first failure.
	// Enabled by default.
	StopOnFailure bool
	// OnStepStart and OnStepComplete are invoked around each step.
	OnStepStart    func(step *Step)
	OnStepComplete func(result StepResult)
}

// DefaultExecOptions stops on first failure.
func DefaultExecOptions() ExecOptions {
	return ExecOptions{StopOnFailure: true}
}

// Execute runs a plan's steps in topological order through the sandbox gate
// and the runner. A nil sb gets a fresh sandbox per call when the gate is
// enabled. Cancellation is honored between steps; the partial execution is
// returned alongside ctx.Err().
func (e *Engine) Execute(ctx context.Context, plan *Plan, sb *sandbox.Sandbox, opts *ExecOptions) (*Execution, error) {
	o := DefaultExecOptions()
	if opts != nil {
		o = *opts
	}

	if sb == nil && e.sandboxEnabled {
		sb = sandbox.New(e.sandboxOpts)
	}

	ordered, cycle := resolveOrder(plan.Steps)
	if cycle {
		plan.Flagged = true
		logging.Get(logging.CategorySystem2).Warn("Dependency cycle in plan %s; using insertion order", plan.TaskID)
	}

	exec := &Execution{
		TaskID:        plan.TaskID,
		Plan:          plan,
		Total:         len(ordered),
		CycleDetected: cycle,
	}

	failed := false
	for _, step := range ordered {
		if err := ctx.Err(); err != nil {
			exec.Canceled = true
			finishExecution(exec, sb)
			return exec, err
		}

		if step.SkipOnRetry {
			step.Status = StepCompleted
			exec.Results = append(exec.Results, StepResult{Step: step, Status: StepCompleted, Validation: sandbox.Validation{Safe: true, Success: true, Severity: sandbox.SeverityNone}})
			exec.Completed++
			continue
		}

		if failed && o.StopOnFailure {
			step.Status = StepSkipped
			exec.Results = append(exec.Results, StepResult{Step: step, Status: StepSkipped})
			continue
		}

		if o.OnStepStart != nil {
			o.OnStepStart(step)
		}
		result := e.runStep(ctx, step, sb)
		if o.OnStepComplete != nil {
			o.OnStepComplete(result)
		}

		exec.Results = append(exec.Results, result)
		switch result.Status {
		case StepSuccess:
			exec.Completed++
		default:
			failed = true
		}
	}

	finishExecution(exec, sb)
	return exec, nil
}

func (e *Engine) runStep(ctx context.Context, step *Step, sb *sandbox.Sandbox) StepResult {
	start := time.Now()
	result := StepResult{Step: step}

	var rec *sandbox.Record
	if sb != nil {
		rec = sb.Execute(step.Action)
	} else {
		rec = &sandbox.Record{Command: step.Action, StartedAt: start}
	}
	result.Record = rec

	if !rec.Blocked {
		actual, err := e.runner.Run(ctx, step.Action)
		if err != nil {
			one := 1
			actual = sandbox.Actual{Stderr: err.Error(), ExitCode: &one, Duration: time.Since(start)}
		}
		sandbox.RecordResult(rec, actual)
	}

	var validation sandbox.Validation
	if sb != nil {
		validation = sb.Validate(rec)
	} else {
		validation = sandbox.ValidateRecord(rec, e.sandboxOpts.TimeoutMs)
	}
	result.Validation = validation
	result.Duration = time.Since(start)

	switch {
	case validation.Success:
		step.Status = StepSuccess
	case rec.Blocked:
		step.Status = StepBlocked
	default:
		step.Status = StepFailed
	}
	result.Status = step.Status

	logging.System2Debug("Step %s -> %s", step.ID, step.Status)
	return result
}

func finishExecution(exec *Execution, sb *sandbox.Sandbox) {
	if sb != nil {
		exec.SandboxStats = sb.Stats()
	}
	exec.Success = !exec.Canceled && exec.Total > 0 && exec.Completed == exec.Total
}

// resolveOrder runs Kahn's topological sort over the dependency graph.
// When a cycle leaves nodes unresolved, it falls back to insertion order
// and reports the cycle.
func resolveOrder(steps []*Step) ([]*Step, bool) {
	byID := make(map[string]*Step, len(steps))
	for _, s := range steps {
		byID[s.ID] = s
	}

	indegree := make(map[string]int, len(steps))
	dependents := make(map[string][]string, len(steps))
	for _, s := range steps {
		for _, dep := range s.DependsOn {
			if _, ok := byID[dep]; !ok {
				continue // dangling reference, ignore
			}
			indegree[s.ID]++
			dependents[dep] = append(dependents[dep], s.ID)
		}
	}

	// Seed the queue in insertion order so ties resolve deterministically.
	var queue []string
	for _, s := range steps {
		if indegree[s.ID] == 0 {
			queue = append(queue, s.ID)
		}
	}

	var ordered []*Step
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		ordered = append(ordered, byID[id])
		for _, next := range dependents[id] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(ordered) != len(steps) {
		return steps, true
	}
	return ordered, false
}
