package scenario

import (
	"github.com/Carmen-Shannon/oxy-anim/config"
	"github.com/Carmen-Shannon/oxy-anim/engine"
)

// RunnerBuilderOption is a functional option for configuring a Runner.
type RunnerBuilderOption func(*runner)

// WithConfig sets the configuration every run's engine is built from. An invalid cfg is ignored.
//
// Parameters:
//   - cfg: the configuration
//
// Returns:
//   - RunnerBuilderOption: option function to apply
func WithConfig(cfg config.Config) RunnerBuilderOption {
	return func(r *runner) {
		if cfg.Validate() == nil {
			r.cfg = cfg
		}
	}
}

// WithEngineOptions appends engine options applied after the configuration, e.g. engine.WithForceHost.
//
// Parameters:
//   - options: the engine options
//
// Returns:
//   - RunnerBuilderOption: option function to apply
func WithEngineOptions(options ...engine.EngineBuilderOption) RunnerBuilderOption {
	return func(r *runner) {
		r.engineOptions = append(r.engineOptions, options...)
	}
}

// WithModules restricts the Tengo standard library modules scripts may import.
//
// Parameters:
//   - names: the module names, e.g. "fmt", "math"
//
// Returns:
//   - RunnerBuilderOption: option function to apply
func WithModules(names ...string) RunnerBuilderOption {
	return func(r *runner) {
		r.modules = names
	}
}

// WithTickDelta sets the default dt of anim.tick and anim.settle. By default it is 1/tickRate.
//
// Parameters:
//   - dt: the step in seconds
//
// Returns:
//   - RunnerBuilderOption: option function to apply
func WithTickDelta(dt float32) RunnerBuilderOption {
	return func(r *runner) {
		r.tickDt = dt
	}
}

// WithMaxSteps bounds anim.settle when the script passes no limit. Values below 1 are ignored.
//
// Parameters:
//   - n: the maximum number of ticks
//
// Returns:
//   - RunnerBuilderOption: option function to apply
func WithMaxSteps(n int) RunnerBuilderOption {
	return func(r *runner) {
		if n > 0 {
			r.maxSteps = n
		}
	}
}
