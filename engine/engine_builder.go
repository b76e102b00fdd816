package engine

import (
	"github.com/Carmen-Shannon/oxy-anim/config"
	"github.com/Carmen-Shannon/oxy-anim/engine/profiler"
	"github.com/Carmen-Shannon/oxy-anim/engine/worker"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithConfig applies every setting of cfg. It is applied with config.Default before any other option,
// so later options override individual settings. An invalid cfg is ignored.
//
// Parameters:
//   - cfg: the configuration
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithConfig(cfg config.Config) EngineBuilderOption {
	return func(e *engine) {
		if err := cfg.Validate(); err != nil {
			return
		}
		e.tickRate = cfg.TickRate
		e.initialCapacity = cfg.InitialCapacity
		e.compositionCap = cfg.CompositionCap
		e.springDefaults = SpringParams{Stiffness: cfg.Spring.Stiffness, Damping: cfg.Spring.Damping, Threshold: cfg.Spring.Threshold}
		e.tweenDefaults = TweenParams{Duration: cfg.Tween.Duration, Curve: cfg.TweenCurve()}
		e.profilingEnabled = cfg.Profiling
		e.profiler = profiler.NewProfiler(profiler.WithUpdateInterval(cfg.ProfileInterval))
		e.workerOptions = []worker.WorkerBuilderOption{
			worker.WithForceHost(cfg.ForceHost),
			worker.WithForceFallbackAdapter(cfg.ForceFallbackAdapter),
			worker.WithHostWorkers(cfg.HostWorkers),
			worker.WithChunkSize(cfg.ChunkSize),
		}
	}
}

// WithProfiling enables or disables performance profiling output.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
	}
}

// WithTickRate sets the rate of the built-in ticker source in ticks per second.
// Values <= 0 will be treated as the default (60Hz). Ignored when WithTickSource is used.
//
// Parameters:
//   - fps: target ticks per second (default 60)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTickRate(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			fps = 60.0
		}
		e.tickRate = fps
	}
}

// WithTickSource sets the source Run consumes ticks from, e.g. a ManualTickSource for headless use.
//
// Parameters:
//   - ts: the tick source
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTickSource(ts TickSource) EngineBuilderOption {
	return func(e *engine) {
		e.tickSource = ts
	}
}

// WithWorker sets a pre-configured worker rather than letting the engine create one.
// The engine adds its jobs to it.
//
// Parameters:
//   - w: the worker
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWorker(w worker.Worker) EngineBuilderOption {
	return func(e *engine) {
		e.worker = w
	}
}

// WithWorkerOptions appends options for the worker the engine creates.
//
// Parameters:
//   - options: the worker options
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWorkerOptions(options ...worker.WorkerBuilderOption) EngineBuilderOption {
	return func(e *engine) {
		e.workerOptions = append(e.workerOptions, options...)
	}
}

// WithForceHost runs every animation on the host, skipping the accelerator probe.
//
// Parameters:
//   - force: whether to skip the accelerator
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithForceHost(force bool) EngineBuilderOption {
	return WithWorkerOptions(worker.WithForceHost(force))
}

// WithInitialCapacity sets the number of slots each slab allocates up front. Values below 1 are ignored.
//
// Parameters:
//   - n: the initial capacity
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithInitialCapacity(n int) EngineBuilderOption {
	return func(e *engine) {
		if n > 0 {
			e.initialCapacity = n
		}
	}
}

// WithCompositionCap sets how many live tweens a property may compose before a new tween cancels
// the chain. Values below 1 are ignored.
//
// Parameters:
//   - n: the composition cap
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithCompositionCap(n int) EngineBuilderOption {
	return func(e *engine) {
		if n > 0 {
			e.compositionCap = n
		}
	}
}

// WithSpringDefaults sets the parameters zero SpringParams fields are filled from. Zero fields
// of defaults keep the current default.
//
// Parameters:
//   - defaults: the spring defaults
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithSpringDefaults(defaults SpringParams) EngineBuilderOption {
	return func(e *engine) {
		if defaults.Stiffness > 0 {
			e.springDefaults.Stiffness = defaults.Stiffness
		}
		if defaults.Damping > 0 {
			e.springDefaults.Damping = defaults.Damping
		}
		if defaults.Threshold > 0 {
			e.springDefaults.Threshold = defaults.Threshold
		}
	}
}

// WithTweenDefaults sets the tween parameters returned by DefaultTweenParams.
//
// Parameters:
//   - defaults: the tween defaults
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTweenDefaults(defaults TweenParams) EngineBuilderOption {
	return func(e *engine) {
		e.tweenDefaults = defaults
	}
}
