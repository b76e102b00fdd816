package scenario

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/Carmen-Shannon/oxy-anim/config"
	"github.com/Carmen-Shannon/oxy-anim/engine"
	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
)

// Report summarizes one scenario run.
type Report struct {
	// Name is the script name, the file name for RunFile.
	Name string
	// Steps is the number of ticks the script advanced the engine by.
	Steps int
	// Elapsed is the simulated time in seconds.
	Elapsed float32
	// Values holds the final value of every property the script touched, keyed "object.property".
	Values map[string]common.Vec4
	// Failures holds the messages of failed expectations, in order.
	Failures []string
}

// Passed reports whether every expectation held.
func (r *Report) Passed() bool {
	return len(r.Failures) == 0
}

// Runner executes Tengo scenario scripts against a fresh headless Engine per run.
//
// Scripts reach the engine through the global map anim:
//
//	anim.spring(object, property, target, [{stiffness, damping, threshold}]) -> id
//	anim.tween(object, property, target, [duration], [curve]) -> id
//	anim.set(object, property, value), anim.value(object, property), anim.velocity(object, property)
//	anim.remove(object, [property...]), anim.cancel(id), anim.animations(object, [property...])
//	anim.status(id) -> "running" | "finished" | "cancelled"
//	anim.tick([dt], [steps]), anim.settle([dt], [max_steps]) -> steps, anim.elapsed()
//	anim.curve(name, t), anim.bezier(p1x, p1y, p2x, p2y, x), anim.preset(name, x)
//	anim.expect(condition, message)
//
// Targets and values are arrays of up to four numbers, or a single number for the first component.
// Values read back from the engine are arrays of floats, so compare them against float literals.
type Runner interface {
	// Run compiles and runs a script.
	//
	// Parameters:
	//   - ctx: bounds the run
	//   - name: the script name used in the report and errors
	//   - src: the script source
	//
	// Returns:
	//   - *Report: the run summary, nil if the script failed to compile or run
	//   - error: the compile or runtime error
	Run(ctx context.Context, name string, src []byte) (*Report, error)

	// RunFile reads and runs a script file.
	//
	// Parameters:
	//   - ctx: bounds the run
	//   - path: the script path
	//
	// Returns:
	//   - *Report: the run summary
	//   - error: the read, compile or runtime error
	RunFile(ctx context.Context, path string) (*Report, error)

	// SetConfig replaces the configuration used by subsequent runs.
	//
	// Parameters:
	//   - cfg: the new configuration
	//
	// Returns:
	//   - error: the validation error if cfg is invalid
	SetConfig(cfg config.Config) error
}

// runner implements the Runner interface.
type runner struct {
	mu            *sync.Mutex
	cfg           config.Config
	engineOptions []engine.EngineBuilderOption
	modules       []string
	tickDt        float32
	maxSteps      int
}

var _ Runner = &runner{}

// NewRunner creates a new Runner with the provided options applied.
//
// Parameters:
//   - options: functional options for runner configuration
//
// Returns:
//   - Runner: the newly created runner
func NewRunner(options ...RunnerBuilderOption) Runner {
	r := &runner{
		mu:       &sync.Mutex{},
		cfg:      config.Default(),
		modules:  stdlib.AllModuleNames(),
		maxSteps: defaultMaxSteps,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

func (r *runner) SetConfig(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg = cfg
	return nil
}

func (r *runner) RunFile(ctx context.Context, path string) (*Report, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario %s: %w", path, err)
	}
	return r.Run(ctx, filepath.Base(path), src)
}

func (r *runner) Run(ctx context.Context, name string, src []byte) (*Report, error) {
	r.mu.Lock()
	cfg := r.cfg
	options := append([]engine.EngineBuilderOption{
		engine.WithConfig(cfg),
		engine.WithTickSource(engine.NewManualTickSource()),
	}, r.engineOptions...)
	modules := r.modules
	tickDt := r.tickDt
	maxSteps := r.maxSteps
	r.mu.Unlock()

	if tickDt <= 0 {
		tickDt = float32(1 / cfg.TickRate)
	}

	s := newSession(ctx, engine.NewEngine(options...), cfg, tickDt, maxSteps)
	defer s.engine.Release()

	script := tengo.NewScript(src)
	script.SetImports(stdlib.GetModuleMap(modules...))
	if err := script.Add("anim", s.module()); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", name, err)
	}

	compiled, err := script.Compile()
	if err != nil {
		return nil, fmt.Errorf("failed to compile scenario %s: %w", name, err)
	}
	if err := compiled.RunContext(ctx); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", name, err)
	}

	return s.report(name), nil
}

// report snapshots the session state once the script has returned.
func (s *session) report(name string) *Report {
	rep := &Report{
		Name:     name,
		Steps:    s.steps,
		Elapsed:  s.elapsed,
		Values:   make(map[string]common.Vec4, len(s.values)),
		Failures: append([]string(nil), s.failures...),
	}
	for k, v := range s.values {
		rep.Values[s.objectNames[k.Object]+"."+k.Name] = *v
	}
	return rep
}
