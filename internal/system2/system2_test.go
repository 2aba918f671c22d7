package system2

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cogito/internal/sandbox"
)

// scriptedRunner fails actions containing any key, with the mapped stderr.
type scriptedRunner struct {
	failures map[string]string
}

func (r scriptedRunner) Run(ctx context.Context, action string) (sandbox.Actual, error) {
	for key, stderr := range r.failures {
		if strings.Contains(action, key) {
			one := 1
			return sandbox.Actual{Stderr: stderr, ExitCode: &one, Duration: 5 * time.Millisecond}, nil
		}
	}
	zero := 0
	return sandbox.Actual{Stdout: "ok", ExitCode: &zero, Duration: time.Millisecond}, nil
}

func TestPlan_InvalidInput(t *testing.T) {
	e := NewEngine()

	_, err := e.Plan(Task{Description: "no id"}, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = e.Plan(Task{ID: "t1"}, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = e.Plan(Task{ID: "t1", Description: "   "}, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestPlan_SimpleFixScenario(t *testing.T) {
	e := NewEngine()

	plan, err := e.Plan(Task{ID: "t1", Description: "fix a typo"}, nil)
	require.NoError(t, err)

	assert.Len(t, plan.Steps, 1)
	assert.Empty(t, plan.Risks)
	assert.Nil(t, plan.Team)
	assert.Equal(t, "s1", plan.Steps[0].ID)
	assert.Equal(t, StepPending, plan.Steps[0].Status)
}

func TestPlan_MultiDomainComplexScenario(t *testing.T) {
	e := NewEngine()

	plan, err := e.Plan(Task{
		ID:          "t2",
		Description: "security audit: migrate the production database, deploy to kubernetes, and fix the authentication vulnerability",
	}, nil)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, len(plan.Steps), 3)
	require.NotNil(t, plan.Team)
	assert.Equal(t, TeamPlatoon, plan.Team.Level)
	assert.Contains(t, plan.Team.Teammates, "architect")

	var high int
	for _, r := range plan.Risks {
		if r.Severity == "high" {
			high++
		}
	}
	assert.GreaterOrEqual(t, high, 1)
}

func TestPlan_NumberedListExtraction(t *testing.T) {
	e := NewEngine()

	plan, err := e.Plan(Task{ID: "t3", Description: "1. create the table\n2. backfill data\n3. switch reads over"}, nil)
	require.NoError(t, err)

	require.Len(t, plan.Steps, 3)
	assert.Equal(t, "create the table", plan.Steps[0].Action)
	// Default sequential dependencies.
	assert.Empty(t, plan.Steps[0].DependsOn)
	assert.Equal(t, []string{"s1"}, plan.Steps[1].DependsOn)
	assert.Equal(t, []string{"s2"}, plan.Steps[2].DependsOn)
}

func TestPlan_ExplicitStepReferences(t *testing.T) {
	e := NewEngine()

	plan, err := e.Plan(Task{ID: "t4", Description: "1. export the data\n2. load fixtures\n3. verify using output of step 1"}, nil)
	require.NoError(t, err)

	require.Len(t, plan.Steps, 3)
	assert.Equal(t, []string{"s1"}, plan.Steps[2].DependsOn)
}

func TestPlan_DependencyAnalysisDisabled(t *testing.T) {
	e := NewEngine()

	opts := PlanOptions{AnalyzeDependencies: false, AssessRisks: true}
	plan, err := e.Plan(Task{ID: "t5", Description: "build the binary and then run the tests"}, &opts)
	require.NoError(t, err)

	for _, s := range plan.Steps {
		assert.Empty(t, s.DependsOn)
	}
}

func TestPlan_StepComplexityEstimates(t *testing.T) {
	e := NewEngine()

	plan, err := e.Plan(Task{ID: "t6", Description: "migrate the schema and then fix the logging and then rename a constant"}, nil)
	require.NoError(t, err)

	require.Len(t, plan.Steps, 3)
	assert.Equal(t, ComplexityHigh, plan.Steps[0].Complexity)
	assert.Equal(t, ComplexityMedium, plan.Steps[1].Complexity)
	assert.Equal(t, ComplexityLow, plan.Steps[2].Complexity)
}

func TestExecute_AllStepsSucceed(t *testing.T) {
	e := NewEngine()
	plan, err := e.Plan(Task{ID: "t1", Description: "build the binary and then run the tests"}, nil)
	require.NoError(t, err)

	exec, err := e.Execute(context.Background(), plan, nil, nil)
	require.NoError(t, err)

	assert.True(t, exec.Success)
	assert.Equal(t, 2, exec.Completed)
	assert.Equal(t, 2, exec.Total)
	assert.False(t, exec.CycleDetected)
}

func TestExecute_StopOnFailureSkipsRest(t *testing.T) {
	e := NewEngine(WithRunner(scriptedRunner{failures: map[string]string{"build": "error: undefined symbol"}}))
	plan, err := e.Plan(Task{ID: "t1", Description: "build the binary and then run the tests"}, nil)
	require.NoError(t, err)

	exec, err := e.Execute(context.Background(), plan, nil, nil)
	require.NoError(t, err)

	assert.False(t, exec.Success)
	require.Len(t, exec.Results, 2)
	assert.Equal(t, StepFailed, exec.Results[0].Status)
	assert.Equal(t, StepSkipped, exec.Results[1].Status)
}

func TestExecute_ContinueOnFailure(t *testing.T) {
	e := NewEngine(WithRunner(scriptedRunner{failures: map[string]string{"build": "error: nope"}}))
	plan, err := e.Plan(Task{ID: "t1", Description: "build the binary and then run the tests"}, nil)
	require.NoError(t, err)

	opts := ExecOptions{StopOnFailure: false}
	exec, err := e.Execute(context.Background(), plan, nil, &opts)
	require.NoError(t, err)

	assert.Equal(t, StepFailed, exec.Results[0].Status)
	assert.Equal(t, StepSuccess, exec.Results[1].Status)
}

func TestExecute_BlockedCommand(t *testing.T) {
	e := NewEngine()
	plan, err := e.Plan(Task{ID: "t1", Description: "rm -rf /tmp/scratch"}, nil)
	require.NoError(t, err)

	exec, err := e.Execute(context.Background(), plan, nil, nil)
	require.NoError(t, err)

	require.Len(t, exec.Results, 1)
	assert.Equal(t, StepBlocked, exec.Results[0].Status)
	assert.False(t, exec.Results[0].Record.Executed)
	assert.Equal(t, sandbox.SeverityCritical, exec.Results[0].Validation.Severity)
	assert.Equal(t, 1, exec.SandboxStats.Blocked)
}

func TestExecute_Callbacks(t *testing.T) {
	e := NewEngine()
	plan, err := e.Plan(Task{ID: "t1", Description: "build the binary and then run the tests"}, nil)
	require.NoError(t, err)

	var started, completed []string
	opts := ExecOptions{
		StopOnFailure:  true,
		OnStepStart:    func(s *Step) { started = append(started, s.ID) },
		OnStepComplete: func(r StepResult) { completed = append(completed, r.Step.ID) },
	}
	_, err = e.Execute(context.Background(), plan, nil, &opts)
	require.NoError(t, err)

	assert.Equal(t, []string{"s1", "s2"}, started)
	assert.Equal(t, []string{"s1", "s2"}, completed)
}

func TestExecute_CycleFallsBackToInsertionOrder(t *testing.T) {
	e := NewEngine()
	plan := &Plan{
		TaskID: "t1",
		Steps: []*Step{
			{ID: "s1", Order: 1, Action: "echo a", DependsOn: []string{"s2"}, Status: StepPending},
			{ID: "s2", Order: 2, Action: "echo b", DependsOn: []string{"s1"}, Status: StepPending},
		},
	}

	exec, err := e.Execute(context.Background(), plan, nil, nil)
	require.NoError(t, err)

	assert.True(t, exec.CycleDetected)
	assert.True(t, plan.Flagged)
	require.Len(t, exec.Results, 2)
	assert.Equal(t, "s1", exec.Results[0].Step.ID)
	assert.Equal(t, "s2", exec.Results[1].Step.ID)
	assert.True(t, exec.Success)
}

func TestExecute_TopologicalOrderHonorsDependencies(t *testing.T) {
	e := NewEngine()
	plan := &Plan{
		TaskID: "t1",
		Steps: []*Step{
			{ID: "s1", Order: 1, Action: "finalize", DependsOn: []string{"s3"}, Status: StepPending},
			{ID: "s2", Order: 2, Action: "prepare", Status: StepPending},
			{ID: "s3", Order: 3, Action: "assemble", DependsOn: []string{"s2"}, Status: StepPending},
		},
	}

	var order []string
	opts := ExecOptions{StopOnFailure: true, OnStepStart: func(s *Step) { order = append(order, s.ID) }}
	_, err := e.Execute(context.Background(), plan, nil, &opts)
	require.NoError(t, err)

	assert.Equal(t, []string{"s2", "s3", "s1"}, order)
}

func TestExecute_Cancellation(t *testing.T) {
	e := NewEngine()
	plan, err := e.Plan(Task{ID: "t1", Description: "build the binary and then run the tests"}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec, err := e.Execute(ctx, plan, nil, nil)
	require.Error(t, err)
	assert.True(t, exec.Canceled)
	assert.False(t, exec.Success)
}

func TestReflect_SuccessfulExecution(t *testing.T) {
	e := NewEngine()
	plan, _ := e.Plan(Task{ID: "t1", Description: "run the tests"}, nil)
	exec, _ := e.Execute(context.Background(), plan, nil, nil)

	r := e.Reflect(exec)

	assert.Equal(t, 1.0, r.CompletionRate)
	assert.Empty(t, r.Patterns)
	assert.Empty(t, r.Findings)
	assert.False(t, r.Retry.ShouldRetry)
	assert.Equal(t, 1.0, r.Confidence)
}

func TestReflect_PartialFailureBuildsAdjustedPlan(t *testing.T) {
	e := NewEngine(WithRunner(scriptedRunner{failures: map[string]string{"tests": "error: 3 tests failed"}}))
	plan, err := e.Plan(Task{ID: "t1", Description: "build the binary and then run the tests"}, nil)
	require.NoError(t, err)

	exec, err := e.Execute(context.Background(), plan, nil, nil)
	require.NoError(t, err)
	r := e.Reflect(exec)

	assert.Contains(t, r.Patterns, PatternPartialSuccess)
	require.True(t, r.Retry.ShouldRetry)
	adjusted := r.Retry.AdjustedPlan
	require.NotNil(t, adjusted)
	require.Len(t, adjusted.Steps, 2)
	assert.True(t, adjusted.Steps[0].SkipOnRetry)
	assert.Equal(t, StepCompleted, adjusted.Steps[0].Status)
	assert.False(t, adjusted.Steps[1].SkipOnRetry)
	assert.Equal(t, StepPending, adjusted.Steps[1].Status)
}

func TestReflect_AllBlockedIsNotRetried(t *testing.T) {
	e := NewEngine()
	plan, err := e.Plan(Task{ID: "t1", Description: "rm -rf /tmp/a"}, nil)
	require.NoError(t, err)

	exec, err := e.Execute(context.Background(), plan, nil, nil)
	require.NoError(t, err)
	r := e.Reflect(exec)

	assert.Contains(t, r.Patterns, PatternSafetyBlocked)
	assert.Contains(t, r.Patterns, PatternAllStepsFailed)
	assert.False(t, r.Retry.ShouldRetry)
}

func TestReflect_TimeoutPatternAndCorrection(t *testing.T) {
	e := NewEngine(WithRunner(scriptedRunner{failures: map[string]string{"slow": "operation timeout after 30s"}}))
	plan, err := e.Plan(Task{ID: "t1", Description: "run the slow import"}, nil)
	require.NoError(t, err)

	exec, _ := e.Execute(context.Background(), plan, nil, nil)
	r := e.Reflect(exec)

	assert.Contains(t, r.Patterns, PatternTimeoutFailures)
	require.NotEmpty(t, r.Findings)
	assert.Contains(t, r.Findings[0].Correction, "timeout")
}

func TestReflect_PermissionCorrection(t *testing.T) {
	e := NewEngine(WithRunner(scriptedRunner{failures: map[string]string{"write": "bash: permission denied"}}))
	plan, err := e.Plan(Task{ID: "t1", Description: "write the report file"}, nil)
	require.NoError(t, err)

	exec, _ := e.Execute(context.Background(), plan, nil, nil)
	r := e.Reflect(exec)

	require.NotEmpty(t, r.Findings)
	assert.Contains(t, r.Findings[0].Correction, "permissions")
}

func TestReflect_Idempotent(t *testing.T) {
	e := NewEngine(WithRunner(scriptedRunner{failures: map[string]string{"tests": "error: assertion"}}))
	plan, err := e.Plan(Task{ID: "t1", Description: "build the binary and then run the tests"}, nil)
	require.NoError(t, err)

	exec, err := e.Execute(context.Background(), plan, nil, nil)
	require.NoError(t, err)

	first := e.Reflect(exec)
	second := e.Reflect(exec)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("reflection not idempotent (-first +second):\n%s", diff)
	}
}

func TestSolve_SucceedsFirstAttempt(t *testing.T) {
	e := NewEngine()

	sol, err := e.Solve(context.Background(), Task{ID: "t1", Description: "fix a typo"}, nil)
	require.NoError(t, err)

	assert.True(t, sol.Success)
	assert.Equal(t, 1, sol.Attempts)
	assert.Len(t, sol.History, 1)
	assert.GreaterOrEqual(t, sol.Duration, time.Duration(0))
	assert.Nil(t, sol.TeamRecommendation)
}

func TestSolve_RetriesWithAdjustedPlan(t *testing.T) {
	runner := &flakyRunner{failUntil: 2, key: "tests"}
	e := NewEngine(WithRunner(runner))

	sol, err := e.Solve(context.Background(), Task{ID: "t1", Description: "build the binary and then run the tests"}, nil)
	require.NoError(t, err)

	assert.True(t, sol.Success)
	assert.Equal(t, 2, sol.Attempts)
	// Second attempt skipped the already-completed step.
	second := sol.History[1]
	assert.Equal(t, StepCompleted, second.Execution.Results[0].Status)
}

func TestSolve_ExhaustsRetries(t *testing.T) {
	e := NewEngine(WithRunner(scriptedRunner{failures: map[string]string{"tests": "error: forever broken"}}), WithMaxRetries(3))

	sol, err := e.Solve(context.Background(), Task{ID: "t1", Description: "run the tests"}, nil)
	require.NoError(t, err)

	assert.False(t, sol.Success)
	assert.Equal(t, 3, sol.Attempts)
	assert.Len(t, sol.History, 3)
}

func TestSolve_StopsOnUnretryableFailure(t *testing.T) {
	e := NewEngine()

	sol, err := e.Solve(context.Background(), Task{ID: "t1", Description: "rm -rf /tmp/x"}, nil)
	require.NoError(t, err)

	assert.False(t, sol.Success)
	assert.Equal(t, 1, sol.Attempts)
}

func TestSolve_PhaseCallbacks(t *testing.T) {
	e := NewEngine()

	var phases []string
	opts := SolveOptions{OnPhase: func(p string, attempt int) { phases = append(phases, p) }}
	_, err := e.Solve(context.Background(), Task{ID: "t1", Description: "fix a typo"}, &opts)
	require.NoError(t, err)

	assert.Equal(t, []string{PhasePlan, PhaseExecute, PhaseReflect}, phases)
}

func TestSolve_InvalidInput(t *testing.T) {
	e := NewEngine()
	_, err := e.Solve(context.Background(), Task{}, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAssessComplexity(t *testing.T) {
	t.Run("simple goes to system1", func(t *testing.T) {
		a := AssessComplexity(Task{Description: "fix a typo"})
		assert.Equal(t, RecommendSystem1, a.Recommendation)
	})

	t.Run("moderate goes to system2", func(t *testing.T) {
		a := AssessComplexity(Task{Description: "refactor the api handler, update the database schema, and then add tests"})
		assert.Equal(t, RecommendSystem2, a.Recommendation)
	})

	t.Run("heavy multi-domain goes to team", func(t *testing.T) {
		a := AssessComplexity(Task{Description: "security audit: migrate the production database, deploy to kubernetes, update the frontend components, investigate the flaky tests, and fix the authentication vulnerability"})
		assert.Greater(t, a.Score, 0.7)
		assert.Equal(t, RecommendTeam, a.Recommendation)
	})
}

// flakyRunner fails actions containing key until attempt failUntil.
type flakyRunner struct {
	calls     map[string]int
	failUntil int
	key       string
}

func (r *flakyRunner) Run(ctx context.Context, action string) (sandbox.Actual, error) {
	if r.calls == nil {
		r.calls = map[string]int{}
	}
	zero, one := 0, 1
	if strings.Contains(action, r.key) {
		r.calls[r.key]++
		if r.calls[r.key] < r.failUntil {
			return sandbox.Actual{Stderr: "error: flaky", ExitCode: &one}, nil
		}
	}
	return sandbox.Actual{ExitCode: &zero}, nil
}
