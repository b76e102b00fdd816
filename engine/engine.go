package engine

import (
	"cmp"
	"context"
	"log"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/Carmen-Shannon/oxy-anim/config"
	"github.com/Carmen-Shannon/oxy-anim/engine/curve"
	"github.com/Carmen-Shannon/oxy-anim/engine/kernel"
	"github.com/Carmen-Shannon/oxy-anim/engine/profiler"
	"github.com/Carmen-Shannon/oxy-anim/engine/property"
	"github.com/Carmen-Shannon/oxy-anim/engine/shader"
	"github.com/Carmen-Shannon/oxy-anim/engine/slab"
	"github.com/Carmen-Shannon/oxy-anim/engine/worker"
)

// State is the phase of the engine's frame loop.
type State int

const (
	// StateIdle means no animations are live and the tick source is stopped.
	StateIdle State = iota
	// StateActive means animations are live and no dispatch is in flight.
	StateActive
	// StateDispatching means a dispatch is in flight; requests are deferred until it completes.
	StateDispatching
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateDispatching:
		return "dispatching"
	default:
		return "unknown"
	}
}

// SpringParams configures a spring animation. Zero fields take the engine's defaults.
type SpringParams struct {
	Stiffness float32
	Damping   float32
	Threshold float32
}

// TweenParams configures a tween animation. Duration is in seconds; zero takes the engine's default
// duration. The zero Curve is curve.Linear.
type TweenParams struct {
	Duration float32
	Curve    curve.Curve
}

// animationMeta is the host-only data kept next to every slot.
type animationMeta struct {
	key        common.PropertyKey
	getter     common.Getter
	setter     common.Setter
	completion common.Completion
}

// engine implements the Engine interface.
// Owns the spring and tween slabs, the worker dispatching over them and the property bookkeeping.
type engine struct {
	mu *sync.Mutex

	worker        worker.Worker
	workerOptions []worker.WorkerBuilderOption

	properties property.Manager
	springs    slab.Slab[common.AnimationID, kernel.GPUSpringState, animationMeta]
	tweens     slab.Slab[common.AnimationID, kernel.GPUTweenState, animationMeta]
	params     slab.Slab[int, kernel.GPUParams, struct{}]

	tickSource TickSource
	tickRate   float64

	profiler         *profiler.Profiler
	profilingEnabled bool

	initialCapacity int
	compositionCap  int
	springDefaults  SpringParams
	tweenDefaults   TweenParams

	state      State
	processing bool
	// dt accumulates tick time until the next dispatch.
	dt float32
	// dispatchDt is the time step of the in-flight dispatch.
	dispatchDt float32
	// lastDt is the time step of the last successful dispatch, used for velocity queries.
	lastDt float32

	// queued holds requests that arrived while a dispatch was in flight, in arrival order.
	queued []func()
	// callbacks holds completion callbacks to fire once the engine lock is released.
	callbacks []func()

	released bool
}

// Engine animates Vec4 properties of arbitrary objects with springs and tweens. All animations are
// integrated in one batched dispatch per tick, on the accelerator when one is available.
//
// Property values are only accessed through the getters and setters passed at registration. They
// are called with the engine lock held and must not call back into the Engine. Completion
// callbacks are called without the lock and may.
//
// The engine is driven either by Run, which consumes its TickSource and the worker's completions,
// or manually through Tick together with Poll or Wait.
type Engine interface {
	// RegisterSpring animates a property toward target with a damped spring. Any animation already
	// driving the property is cancelled; a spring being replaced hands its velocity to the new one.
	//
	// Parameters:
	//   - obj: the object
	//   - name: the property name
	//   - getter: reads the property
	//   - setter: writes the property
	//   - target: the absolute target value
	//   - params: spring parameters, zero fields take the engine defaults
	//   - completion: called with true when the spring settles, false if it is cancelled; may be nil
	//
	// Returns:
	//   - common.AnimationID: the new animation's ID, minted even when the registration is deferred
	RegisterSpring(obj common.ObjectID, name string, getter common.Getter, setter common.Setter, target common.Vec4, params SpringParams, completion common.Completion) common.AnimationID

	// RegisterTween animates a property toward target over a fixed duration. Tweens on the same
	// property compose additively so the property ends at the last registered target. A spring driving
	// the property is cancelled, and a chain that already has the composition cap of live tweens is
	// cancelled before the new tween is added.
	//
	// Parameters:
	//   - obj: the object
	//   - name: the property name
	//   - getter: reads the property
	//   - setter: writes the property
	//   - target: the absolute target value
	//   - params: duration and curve
	//   - completion: called with true when the tween finishes, false if it is cancelled; may be nil
	//
	// Returns:
	//   - common.AnimationID: the new animation's ID, minted even when the registration is deferred
	RegisterTween(obj common.ObjectID, name string, getter common.Getter, setter common.Setter, target common.Vec4, params TweenParams, completion common.Completion) common.AnimationID

	// Remove cancels the animations of the named properties of obj, or all of obj's animations
	// when no names are given. Absent properties are ignored.
	//
	// Parameters:
	//   - obj: the object
	//   - names: the property names, empty for all
	Remove(obj common.ObjectID, names ...string)

	// Cancel cancels a single animation. Unknown IDs are ignored.
	//
	// Parameters:
	//   - id: the animation to cancel
	Cancel(id common.AnimationID)

	// Animations lists the live animations of the named properties of obj, or of all its properties.
	//
	// Parameters:
	//   - obj: the object
	//   - names: the property names, empty for all
	//
	// Returns:
	//   - []common.AnimationID: the live IDs
	Animations(obj common.ObjectID, names ...string) []common.AnimationID

	// CurrentVelocity returns the rate of change of a property in units per second: the spring
	// velocity, or the summed last-step change of every tween in the chain divided by the last time step.
	//
	// Parameters:
	//   - obj: the object
	//   - name: the property name
	//
	// Returns:
	//   - common.Vec4: the velocity, zero if the property is not animated
	CurrentVelocity(obj common.ObjectID, name string) common.Vec4

	// Tick advances the frame loop by dt seconds. While a dispatch is in flight the time is only accumulated.
	//
	// Parameters:
	//   - dt: the elapsed time in seconds
	Tick(dt float32)

	// Poll applies a pending asynchronous completion, if any, without blocking.
	//
	// Returns:
	//   - bool: true if a completion was applied
	Poll() bool

	// Wait blocks until no dispatch is in flight, applying its completion.
	//
	// Parameters:
	//   - ctx: bounds the wait
	//
	// Returns:
	//   - error: the context's error if it ends first
	Wait(ctx context.Context) error

	// Run drives the engine from its TickSource and applies completions until ctx ends.
	//
	// Parameters:
	//   - ctx: stops the loop
	//
	// Returns:
	//   - error: the context's error
	Run(ctx context.Context) error

	// State returns the frame loop phase.
	//
	// Returns:
	//   - State: the current state
	State() State

	// BackendType returns the backend animations are integrated on.
	//
	// Returns:
	//   - worker.BackendType: the backend type
	BackendType() worker.BackendType

	// Stats returns the cumulative tick and dispatch counters.
	//
	// Returns:
	//   - profiler.Stats: the counters
	Stats() profiler.Stats

	// TickSource returns the source Run consumes.
	//
	// Returns:
	//   - TickSource: the tick source
	TickSource() TickSource

	// DefaultSpringParams returns the spring parameters zero fields are filled from.
	//
	// Returns:
	//   - SpringParams: the defaults
	DefaultSpringParams() SpringParams

	// DefaultTweenParams returns the configured default tween duration and curve.
	//
	// Returns:
	//   - TweenParams: the defaults
	DefaultTweenParams() TweenParams

	// ApplyConfig updates the settings that can change at runtime: tick rate, composition cap,
	// spring and tween defaults, and profiling. Backend settings only apply at construction.
	//
	// Parameters:
	//   - cfg: the new configuration
	//
	// Returns:
	//   - error: the validation error if cfg is invalid, in which case nothing changes
	ApplyConfig(cfg config.Config) error

	// EnableProfiler enables periodic performance output to the log.
	EnableProfiler()

	// DisableProfiler disables periodic performance output.
	DisableProfiler()

	// Release cancels every animation, stops the tick source and releases the worker.
	// The engine must not be used afterwards.
	Release()
}

var _ Engine = &engine{}

// NewEngine creates a new Engine with the provided options applied. Without options it uses
// config.Default, a 60Hz ticker source and the WebGPU backend when available.
//
// Parameters:
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		mu:         &sync.Mutex{},
		properties: property.NewManager(),
		state:      StateIdle,
	}
	WithConfig(config.Default())(e)

	for _, opt := range options {
		opt(e)
	}

	if e.tickSource == nil {
		e.tickSource = NewTickerSource(e.tickRate)
	}
	if e.profiler == nil {
		e.profiler = profiler.NewProfiler()
	}
	e.profiler.SetLogging(e.profilingEnabled)

	e.springs = slab.NewSlab[common.AnimationID, kernel.GPUSpringState, animationMeta](slab.WithCapacity(e.initialCapacity), slab.WithLabel("Spring States"))
	e.tweens = slab.NewSlab[common.AnimationID, kernel.GPUTweenState, animationMeta](slab.WithCapacity(e.initialCapacity), slab.WithLabel("Tween States"))
	e.params = slab.NewSlab[int, kernel.GPUParams, struct{}](slab.WithCapacity(1), slab.WithLabel("Params"))
	e.params.Add(0, kernel.GPUParams{}, struct{}{})

	if e.worker == nil {
		e.worker = worker.NewWorker(e.workerOptions...)
	}
	e.addJobs()

	return e
}

// addJobs registers the tween and spring jobs with the worker. A kernel that fails to parse is
// registered without a shader, which moves the worker to the host backend.
func (e *engine) addJobs() {
	tweenShader, err := shader.NewShader("tween", kernel.TweenKernelSource)
	if err != nil {
		log.Printf("[Engine] tween kernel: %v", err)
	}
	springShader, err := shader.NewShader("spring", kernel.SpringKernelSource)
	if err != nil {
		log.Printf("[Engine] spring kernel: %v", err)
	}

	jobs := []worker.Job{
		{
			Label:    "tweens",
			Shader:   tweenShader,
			Bindings: []worker.Binding{{Name: "tweens", Source: e.tweens}, {Name: "params", Source: e.params}},
			Fallback: func(start, end int) {
				kernel.StepTweens(e.tweens.Content()[start:end], e.params.Content()[0].DeltaTime)
			},
		},
		{
			Label:    "springs",
			Shader:   springShader,
			Bindings: []worker.Binding{{Name: "springs", Source: e.springs}, {Name: "params", Source: e.params}},
			Fallback: func(start, end int) {
				kernel.StepSprings(e.springs.Content()[start:end], e.params.Content()[0].DeltaTime)
			},
		},
	}
	for _, job := range jobs {
		if err := e.worker.AddJob(job); err != nil {
			log.Printf("[Engine] failed to add %s job: %v", job.Label, err)
		}
	}
}

// unlockAndNotify releases the engine lock and fires the completion callbacks collected while it was held.
func (e *engine) unlockAndNotify() {
	callbacks := e.callbacks
	e.callbacks = nil
	e.mu.Unlock()
	for _, cb := range callbacks {
		cb()
	}
}

// do runs fn now, or after the in-flight dispatch completes.
func (e *engine) do(fn func()) {
	if e.processing {
		e.queued = append(e.queued, fn)
		return
	}
	fn()
}

func (e *engine) notify(completion common.Completion, finished bool) {
	if completion == nil {
		return
	}
	e.callbacks = append(e.callbacks, func() { completion(finished) })
}

func (e *engine) RegisterSpring(obj common.ObjectID, name string, getter common.Getter, setter common.Setter, target common.Vec4, params SpringParams, completion common.Completion) common.AnimationID {
	id := common.NextAnimationID()
	key := common.PropertyKey{Object: obj, Name: name}

	e.mu.Lock()
	defer e.unlockAndNotify()

	if e.released {
		e.notify(completion, false)
		return id
	}
	e.do(func() {
		e.insertSpring(id, key, getter, setter, target, params, completion)
	})
	return id
}

func (e *engine) insertSpring(id common.AnimationID, key common.PropertyKey, getter common.Getter, setter common.Setter, target common.Vec4, params SpringParams, completion common.Completion) {
	p := SpringParams{
		Stiffness: cmp.Or(params.Stiffness, e.springDefaults.Stiffness),
		Damping:   cmp.Or(params.Damping, e.springDefaults.Damping),
		Threshold: cmp.Or(params.Threshold, e.springDefaults.Threshold),
	}
	state := kernel.NewSpringState(getter(), target, common.Vec4{}, p.Stiffness, p.Damping, p.Threshold)

	if springID, ok := e.properties.SpringID(key); ok {
		if previous, ok := e.springs.Value(springID); ok {
			state.Velocity = previous.Velocity
		}
	}

	// Springs do not compose with anything.
	e.removeKey(key)

	if err := e.properties.Add(key, id, property.KindSpring, target); err != nil {
		log.Printf("[Engine] spring %d on %v: %v", id, key, err)
		e.notify(completion, false)
		return
	}
	e.springs.Add(id, state, animationMeta{key: key, getter: getter, setter: setter, completion: completion})
	e.activate()
}

func (e *engine) RegisterTween(obj common.ObjectID, name string, getter common.Getter, setter common.Setter, target common.Vec4, params TweenParams, completion common.Completion) common.AnimationID {
	id := common.NextAnimationID()
	key := common.PropertyKey{Object: obj, Name: name}

	e.mu.Lock()
	defer e.unlockAndNotify()

	if e.released {
		e.notify(completion, false)
		return id
	}
	e.do(func() {
		e.insertTween(id, key, getter, setter, target, params, completion)
	})
	return id
}

func (e *engine) insertTween(id common.AnimationID, key common.PropertyKey, getter common.Getter, setter common.Setter, target common.Vec4, params TweenParams, completion common.Completion) {
	switch e.properties.Kind(key) {
	case property.KindSpring:
		e.removeKey(key)
	case property.KindTween:
		live := e.properties.Prune(key, func(id common.AnimationID) bool {
			_, ok := e.tweens.IndexOf(id)
			return ok
		})
		if live >= e.compositionCap {
			e.removeKey(key)
		}
	}

	// The new tween covers the distance from the chain's target, or from the live value when
	// nothing else is animating the property.
	initial, ok := e.properties.Target(key)
	if !ok {
		initial = getter()
	}
	state := kernel.NewTweenState(target.Sub(initial), cmp.Or(params.Duration, e.tweenDefaults.Duration), params.Curve)

	if err := e.properties.Add(key, id, property.KindTween, target); err != nil {
		log.Printf("[Engine] tween %d on %v: %v", id, key, err)
		e.notify(completion, false)
		return
	}
	e.tweens.Add(id, state, animationMeta{key: key, getter: getter, setter: setter, completion: completion})
	e.activate()
}

func (e *engine) Remove(obj common.ObjectID, names ...string) {
	names = slices.Clone(names)

	e.mu.Lock()
	defer e.unlockAndNotify()

	e.do(func() {
		for _, id := range e.properties.Remove(obj, names...) {
			e.cancelSlot(id)
		}
	})
}

func (e *engine) Cancel(id common.AnimationID) {
	e.mu.Lock()
	defer e.unlockAndNotify()

	e.do(func() {
		meta, ok := e.springs.MetaData(id)
		if !ok {
			meta, ok = e.tweens.MetaData(id)
		}
		if !ok {
			return
		}
		// The chain no longer covers the part of a cancelled tween that was never applied.
		var unapplied common.Vec4
		if s, ok := e.tweens.Value(id); ok {
			unapplied = s.Target.Sub(s.Current)
		}
		e.properties.AnimationDone(meta.key, id)
		if target, ok := e.properties.Target(meta.key); ok {
			e.properties.SetTarget(meta.key, target.Sub(unapplied))
		}
		e.cancelSlot(id)
	})
}

// removeKey cancels every animation driving key.
func (e *engine) removeKey(key common.PropertyKey) {
	for _, id := range e.properties.Remove(key.Object, key.Name) {
		e.cancelSlot(id)
	}
}

// cancelSlot frees the slot of id and queues its completion with false. The slot is marked stopped
// first so a freed slot inside the dispatch extent is not integrated.
func (e *engine) cancelSlot(id common.AnimationID) {
	if meta, ok := e.springs.MetaData(id); ok {
		if s, ok := e.springs.Value(id); ok {
			s.Running = 0
		}
		e.springs.Remove(id)
		e.notify(meta.completion, false)
	}
	if meta, ok := e.tweens.MetaData(id); ok {
		if s, ok := e.tweens.Value(id); ok {
			s.Running = 0
		}
		e.tweens.Remove(id)
		e.notify(meta.completion, false)
	}
}

func (e *engine) Animations(obj common.ObjectID, names ...string) []common.AnimationID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.properties.List(obj, names...)
}

func (e *engine) CurrentVelocity(obj common.ObjectID, name string) common.Vec4 {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := common.PropertyKey{Object: obj, Name: name}
	switch e.properties.Kind(key) {
	case property.KindSpring:
		id, _ := e.properties.SpringID(key)
		if s, ok := e.springs.Value(id); ok {
			return s.Velocity
		}
	case property.KindTween:
		if e.lastDt <= 0 {
			return common.Vec4{}
		}
		var v common.Vec4
		for _, id := range e.properties.IDs(key) {
			if s, ok := e.tweens.Value(id); ok {
				v = v.Add(s.Current.Sub(s.Previous))
			}
		}
		return v.Scale(1 / e.lastDt)
	}
	return common.Vec4{}
}

// activate leaves the idle state and starts the tick source.
func (e *engine) activate() {
	if e.state != StateIdle {
		return
	}
	e.state = StateActive
	e.tickSource.Start()
}

// idle stops the tick source once nothing is left to animate.
func (e *engine) idle() {
	e.state = StateIdle
	e.dt = 0
	e.tickSource.Stop()
}

func (e *engine) Tick(dt float32) {
	e.mu.Lock()
	defer e.unlockAndNotify()
	e.tick(dt)
}

func (e *engine) tick(dt float32) {
	if e.released {
		return
	}
	e.profiler.Tick()

	e.dt += dt
	if e.processing {
		return
	}
	if e.springs.Count() == 0 && e.tweens.Count() == 0 {
		e.idle()
		return
	}

	e.dispatchDt = e.dt
	e.dt = 0
	e.params.Add(0, kernel.GPUParams{
		DeltaTime:   e.dispatchDt,
		SpringCount: uint32(e.springs.Extent()),
		TweenCount:  uint32(e.tweens.Extent()),
	}, struct{}{})

	e.processing = true
	e.state = StateDispatching
	if c, done := e.worker.Process(); done {
		e.finishDispatch(c)
	}
}

// complete applies an asynchronous completion received from the worker.
func (e *engine) complete(c worker.Completion) {
	e.mu.Lock()
	defer e.unlockAndNotify()

	if !e.processing {
		return
	}
	e.worker.Finish(c)
	e.finishDispatch(c)
}

// finishDispatch writes the dispatch results back to the properties, retires finished animations
// and replays the requests deferred during the dispatch.
func (e *engine) finishDispatch(c worker.Completion) {
	e.profiler.RecordDispatch(c.Elements, c.Duration, c.Err)
	e.processing = false
	e.state = StateActive

	if c.Err != nil {
		// Slots are unchanged; integrate the lost time on the next dispatch.
		e.dt += e.dispatchDt
	} else {
		e.lastDt = e.dispatchDt
		e.writeBackSprings()
		e.writeBackTweens()
	}

	queued := e.queued
	e.queued = nil
	for _, fn := range queued {
		fn()
	}
}

// slotOrder returns the bound keys of a slab sorted by slot index.
func slotOrder[V any](s slab.Slab[common.AnimationID, V, animationMeta]) []common.AnimationID {
	type entry struct {
		id    common.AnimationID
		index int
	}
	entries := make([]entry, 0, s.Count())
	s.Each(func(id common.AnimationID, index int) {
		entries = append(entries, entry{id, index})
	})
	slices.SortFunc(entries, func(a, b entry) int { return a.index - b.index })

	ids := make([]common.AnimationID, len(entries))
	for i, en := range entries {
		ids[i] = en.id
	}
	return ids
}

func (e *engine) writeBackSprings() {
	for _, id := range slotOrder(e.springs) {
		s, _ := e.springs.Value(id)
		meta, _ := e.springs.MetaData(id)
		meta.setter(s.Current)
		if s.IsRunning() {
			continue
		}
		e.springs.Remove(id)
		e.properties.AnimationDone(meta.key, id)
		e.notify(meta.completion, true)
	}
}

func (e *engine) writeBackTweens() {
	for _, id := range slotOrder(e.tweens) {
		s, _ := e.tweens.Value(id)
		meta, _ := e.tweens.MetaData(id)
		value := meta.getter().Add(s.Current.Sub(s.Previous))
		if s.IsRunning() {
			meta.setter(value)
			continue
		}
		// Retire before the final write so a velocity query from the setter sees the chain without it.
		e.tweens.Remove(id)
		e.properties.AnimationDone(meta.key, id)
		meta.setter(value)
		e.notify(meta.completion, true)
	}
}

func (e *engine) Poll() bool {
	select {
	case c := <-e.worker.Completions():
		e.complete(c)
		return true
	default:
		return false
	}
}

func (e *engine) Wait(ctx context.Context) error {
	for {
		e.mu.Lock()
		processing := e.processing
		e.mu.Unlock()
		if !processing {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case c := <-e.worker.Completions():
			e.complete(c)
		}
	}
}

func (e *engine) Run(ctx context.Context) error {
	ticks := e.tickSource.Ticks()
	completions := e.worker.Completions()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case dt := <-ticks:
			e.Tick(dt)
		case c := <-completions:
			e.complete(c)
		}
	}
}

func (e *engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *engine) BackendType() worker.BackendType {
	return e.worker.BackendType()
}

func (e *engine) Stats() profiler.Stats {
	return e.profiler.Stats()
}

func (e *engine) TickSource() TickSource {
	return e.tickSource
}

func (e *engine) DefaultSpringParams() SpringParams {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.springDefaults
}

func (e *engine) DefaultTweenParams() TweenParams {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tweenDefaults
}

func (e *engine) ApplyConfig(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.tickRate = cfg.TickRate
	e.tickSource.SetRate(cfg.TickRate)
	e.compositionCap = cfg.CompositionCap
	e.springDefaults = SpringParams{Stiffness: cfg.Spring.Stiffness, Damping: cfg.Spring.Damping, Threshold: cfg.Spring.Threshold}
	e.tweenDefaults = TweenParams{Duration: cfg.Tween.Duration, Curve: cfg.TweenCurve()}
	e.profilingEnabled = cfg.Profiling
	e.profiler.SetLogging(cfg.Profiling)
	log.Printf("[Engine] configuration applied: %.0f Hz, composition cap %d", cfg.TickRate, cfg.CompositionCap)
	return nil
}

func (e *engine) EnableProfiler() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profilingEnabled = true
	e.profiler.SetLogging(true)
}

func (e *engine) DisableProfiler() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profilingEnabled = false
	e.profiler.SetLogging(false)
}

func (e *engine) Release() {
	e.mu.Lock()
	defer e.unlockAndNotify()

	if e.released {
		return
	}
	e.released = true

	// Waits for an in-flight dispatch; its completion is discarded.
	e.worker.Release()
	e.processing = false

	// Apply deferred requests so every registration gets its completion below.
	queued := e.queued
	e.queued = nil
	for _, fn := range queued {
		fn()
	}

	for _, id := range slotOrder(e.springs) {
		e.cancelSlot(id)
	}
	for _, id := range slotOrder(e.tweens) {
		e.cancelSlot(id)
	}
	e.properties.Clear()
	e.idle()
}
