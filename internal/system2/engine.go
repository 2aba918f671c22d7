package system2

import (
	"context"

	"cogito/internal/sandbox"
)

// Runner performs the actual execution of a gate-approved action. The
// default runner is a dry run: integrators back it with a child process,
// container or host tool invocation.
type Runner interface {
	Run(ctx context.Context, action string) (sandbox.Actual, error)
}

// DryRunner approves every action without side effects. Keeps the loop
// deterministic when no execution backend is wired.
type DryRunner struct{}

// Run reports a clean zero-exit result.
func (DryRunner) Run(ctx context.Context, action string) (sandbox.Actual, error) {
	zero := 0
	return sandbox.Actual{ExitCode: &zero}, ctx.Err()
}

// Engine drives the plan/execute/reflect loop.
type Engine struct {
	maxRetries     int
	sandboxEnabled bool
	sandboxOpts    sandbox.Options
	runner         Runner
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxRetries bounds the solve loop.
func WithMaxRetries(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxRetries = n
		}
	}
}

// WithSandboxOptions overrides the per-attempt sandbox options.
func WithSandboxOptions(opts sandbox.Options) Option {
	return func(e *Engine) { e.sandboxOpts = opts }
}

// WithSandboxDisabled turns off the safety gate (actions run unguarded
// through the runner). Intended for trusted offline analysis only.
func WithSandboxDisabled() Option {
	return func(e *Engine) { e.sandboxEnabled = false }
}

// WithRunner installs an execution backend.
func WithRunner(r Runner) Option {
	return func(e *Engine) {
		if r != nil {
			e.runner = r
		}
	}
}

// NewEngine creates an engine with default retry and sandbox settings.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		maxRetries:     3,
		sandboxEnabled: true,
		sandboxOpts:    sandbox.DefaultOptions(),
		runner:         DryRunner{},
	}
	for _, o := range opts {
		o(e)
	}
	return e
}
