package executor

import (
	"go.uber.org/zap"

	"github.com/danielterwiel/stepvis/guard"
	"github.com/danielterwiel/stepvis/step"
)

// ExecutorOption configures the executor at creation time.
type ExecutorOption func(*executorConfig)

type executorConfig struct {
	guard guard.Config
	log   *zap.Logger
}

// WithGuardDefaults sets the guard configuration applied to every execution
// that does not override it. The config is validated by New.
func WithGuardDefaults(cfg guard.Config) ExecutorOption {
	return func(c *executorConfig) {
		c.guard = cfg
	}
}

// WithLogger attaches a structured logger. Without it the executor is
// silent.
func WithLogger(log *zap.Logger) ExecutorOption {
	return func(c *executorConfig) {
		if log != nil {
			c.log = log
		}
	}
}

// RunOption configures a single Execute or RunTests call.
type RunOption func(*runConfig)

type runConfig struct {
	guard      *guard.Config
	stepObs    func(step.Step)
	consoleObs func(step.ConsoleEntry)
}

// WithGuardConfig overrides the executor's guard defaults for this call
// only. The config is validated before use; an invalid one fails the
// execution instead of being silently clamped.
func WithGuardConfig(cfg guard.Config) RunOption {
	return func(c *runConfig) {
		c.guard = &cfg
	}
}

// WithStepObserver registers a callback invoked for every validated
// capture-step frame as it arrives, before the terminal message. Live views
// subscribe here.
func WithStepObserver(fn func(step.Step)) RunOption {
	return func(c *runConfig) {
		c.stepObs = fn
	}
}

// WithConsoleObserver registers a callback invoked for every validated
// console-log frame as it arrives.
func WithConsoleObserver(fn func(step.ConsoleEntry)) RunOption {
	return func(c *runConfig) {
		c.consoleObs = fn
	}
}

func buildRunConfig(opts []RunOption) runConfig {
	var rc runConfig
	for _, opt := range opts {
		opt(&rc)
	}
	return rc
}
