package engine

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/Carmen-Shannon/oxy-anim/config"
	"github.com/Carmen-Shannon/oxy-anim/engine/curve"
	"github.com/Carmen-Shannon/oxy-anim/engine/worker"
)

// prop is an animatable test property.
type prop struct {
	mu sync.Mutex
	v  common.Vec4
}

func (p *prop) get() common.Vec4 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.v
}

func (p *prop) set(v common.Vec4) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.v = v
}

// results records completion callbacks in the order they fire.
type results struct {
	mu  sync.Mutex
	got []string
}

func (r *results) callback(name string) common.Completion {
	return func(finished bool) {
		r.mu.Lock()
		defer r.mu.Unlock()
		if finished {
			r.got = append(r.got, name+":done")
		} else {
			r.got = append(r.got, name+":cancelled")
		}
	}
}

func (r *results) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.got)
}

// manualBackend is an asynchronous worker backend completed by the test.
type manualBackend struct {
	mu   sync.Mutex
	jobs []*worker.Job
	done chan<- worker.Completion
	seq  uint64
}

func (b *manualBackend) Type() worker.BackendType      { return worker.BackendTypeWGPU }
func (b *manualBackend) Prepare(job *worker.Job) error { return nil }
func (b *manualBackend) Finish(c worker.Completion)    {}
func (b *manualBackend) Release()                      {}

func (b *manualBackend) Dispatch(seq uint64, jobs []*worker.Job, done chan<- worker.Completion) (worker.Completion, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.jobs, b.done, b.seq = jobs, done, seq
	return worker.Completion{}, false
}

// complete runs the in-flight dispatch on the host, or fails it without touching any slot.
func (b *manualBackend) complete(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	elements := 0
	if err == nil {
		for _, j := range b.jobs {
			if n := j.Extent(); n > 0 {
				j.Fallback(0, n)
				elements += n
			}
		}
	}
	b.done <- worker.Completion{Dispatch: b.seq, Err: err, Elements: elements}
}

func newHostEngine(t *testing.T, options ...EngineBuilderOption) Engine {
	t.Helper()
	options = append([]EngineBuilderOption{WithForceHost(true), WithTickSource(NewManualTickSource())}, options...)
	e := NewEngine(options...)
	t.Cleanup(e.Release)
	if e.BackendType() != worker.BackendTypeHost {
		t.Fatalf("BackendType = %v, want host", e.BackendType())
	}
	return e
}

func newAsyncEngine(t *testing.T) (Engine, *manualBackend) {
	t.Helper()
	b := &manualBackend{}
	e := NewEngine(WithTickSource(NewManualTickSource()), WithWorker(worker.NewWorker(worker.WithBackend(b))))
	t.Cleanup(e.Release)
	return e, b
}

func waitCompletion(t *testing.T, e Engine) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := e.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

var linear = TweenParams{Duration: 1, Curve: curve.Linear}

func TestSpringSettlesOnTarget(t *testing.T) {
	e := newHostEngine(t)
	obj := common.NewObjectID()
	p := &prop{}
	r := &results{}

	e.RegisterSpring(obj, "x", p.get, p.set, common.Vec4{10}, SpringParams{Stiffness: 150, Damping: 10, Threshold: 0.01}, r.callback("spring"))
	if e.State() != StateActive || !e.TickSource().Running() {
		t.Fatalf("state after registration = %v, tick source running = %v", e.State(), e.TickSource().Running())
	}

	for range 300 {
		e.Tick(1.0 / 60)
	}
	if got := p.get(); got != (common.Vec4{10}) {
		t.Errorf("value = %v, want exactly (10,0,0,0)", got)
	}
	if got := r.list(); !slices.Equal(got, []string{"spring:done"}) {
		t.Errorf("completions = %v", got)
	}
	if ids := e.Animations(obj); len(ids) != 0 {
		t.Errorf("settled spring still listed: %v", ids)
	}

	e.Tick(1.0 / 60)
	if e.State() != StateIdle || e.TickSource().Running() {
		t.Errorf("state = %v, tick source running = %v; want idle and stopped", e.State(), e.TickSource().Running())
	}
}

func TestTweenReachesTarget(t *testing.T) {
	e := newHostEngine(t)
	obj := common.NewObjectID()
	p := &prop{}
	r := &results{}

	e.RegisterTween(obj, "x", p.get, p.set, common.Vec4{1}, linear, r.callback("tween"))
	e.Tick(0.5)
	if got := p.get(); !got.ApproxEqual(common.Vec4{0.5}, 1e-6) {
		t.Errorf("value at t=0.5 = %v, want 0.5", got)
	}
	if len(r.list()) != 0 {
		t.Error("completion fired early")
	}

	e.Tick(0.6)
	if got := p.get(); !got.ApproxEqual(common.Vec4{1}, 1e-6) {
		t.Errorf("final value = %v, want 1", got)
	}
	if got := r.list(); !slices.Equal(got, []string{"tween:done"}) {
		t.Errorf("completions = %v", got)
	}
}

func TestZeroTweenDurationTakesDefault(t *testing.T) {
	e := newHostEngine(t, WithTweenDefaults(TweenParams{Duration: 2, Curve: curve.Ease}))
	obj := common.NewObjectID()
	p := &prop{}
	r := &results{}

	e.RegisterTween(obj, "x", p.get, p.set, common.Vec4{1}, TweenParams{}, r.callback("tween"))
	e.Tick(1)
	if got := p.get(); !got.ApproxEqual(common.Vec4{0.5}, 1e-6) {
		t.Errorf("value at t=1 = %v, want 0.5 on a linear two second tween", got)
	}
	if len(r.list()) != 0 {
		t.Error("zero duration tween finished on its first step")
	}

	e.Tick(1.1)
	if got := r.list(); !slices.Equal(got, []string{"tween:done"}) {
		t.Errorf("completions = %v", got)
	}
}

func TestTweensComposeAdditively(t *testing.T) {
	e := newHostEngine(t)
	obj := common.NewObjectID()
	p := &prop{}
	r := &results{}

	e.RegisterTween(obj, "x", p.get, p.set, common.Vec4{10, 5}, linear, r.callback("first"))
	e.Tick(0.3)
	e.RegisterTween(obj, "x", p.get, p.set, common.Vec4{20, -5}, TweenParams{Duration: 0.5, Curve: curve.Ease}, r.callback("second"))
	if ids := e.Animations(obj, "x"); len(ids) != 2 {
		t.Fatalf("chain = %v, want two tweens", ids)
	}

	for range 20 {
		e.Tick(0.1)
	}
	if got := p.get(); !got.ApproxEqual(common.Vec4{20, -5}, 1e-4) {
		t.Errorf("final value = %v, want the last target (20,-5)", got)
	}
	got := r.list()
	slices.Sort(got)
	if !slices.Equal(got, []string{"first:done", "second:done"}) {
		t.Errorf("completions = %v", got)
	}
}

func TestCompositionCapCancelsChain(t *testing.T) {
	e := newHostEngine(t)
	obj := common.NewObjectID()
	p := &prop{}
	r := &results{}

	for i := range 5 {
		e.RegisterTween(obj, "x", p.get, p.set, common.Vec4{float32(i + 1)}, linear, r.callback("old"))
	}
	if len(e.Animations(obj, "x")) != 5 || len(r.list()) != 0 {
		t.Fatalf("five tweens should compose: ids=%v completions=%v", e.Animations(obj, "x"), r.list())
	}

	sixth := e.RegisterTween(obj, "x", p.get, p.set, common.Vec4{100}, linear, r.callback("sixth"))
	if got := r.list(); len(got) != 5 || slices.ContainsFunc(got, func(s string) bool { return s != "old:cancelled" }) {
		t.Errorf("completions = %v, want five cancellations", got)
	}
	if ids := e.Animations(obj, "x"); !slices.Equal(ids, []common.AnimationID{sixth}) {
		t.Errorf("chain = %v, want only %d", ids, sixth)
	}

	e.Tick(2)
	if got := p.get(); !got.ApproxEqual(common.Vec4{100}, 1e-5) {
		t.Errorf("value = %v, want 100", got)
	}
}

func TestCompletedTweensDoNotCountTowardCap(t *testing.T) {
	e := newHostEngine(t, WithCompositionCap(2))
	obj := common.NewObjectID()
	p := &prop{}
	r := &results{}

	e.RegisterTween(obj, "x", p.get, p.set, common.Vec4{1}, TweenParams{Duration: 0.1}, r.callback("short"))
	e.RegisterTween(obj, "x", p.get, p.set, common.Vec4{2}, TweenParams{Duration: 5}, r.callback("long"))
	e.Tick(0.2)
	e.RegisterTween(obj, "x", p.get, p.set, common.Vec4{3}, TweenParams{Duration: 5}, r.callback("third"))

	if got := r.list(); !slices.Equal(got, []string{"short:done"}) {
		t.Errorf("completions = %v, want only the short tween finished", got)
	}
	if ids := e.Animations(obj, "x"); len(ids) != 2 {
		t.Errorf("chain = %v, want long and third", ids)
	}
}

func TestSpringAndTweenAreExclusive(t *testing.T) {
	e := newHostEngine(t)
	obj := common.NewObjectID()
	p := &prop{}
	r := &results{}

	e.RegisterTween(obj, "x", p.get, p.set, common.Vec4{1}, linear, r.callback("tween"))
	spring := e.RegisterSpring(obj, "x", p.get, p.set, common.Vec4{2}, SpringParams{}, r.callback("spring"))
	if got := r.list(); !slices.Equal(got, []string{"tween:cancelled"}) {
		t.Errorf("completions after spring = %v", got)
	}
	if ids := e.Animations(obj, "x"); !slices.Equal(ids, []common.AnimationID{spring}) {
		t.Errorf("drivers = %v", ids)
	}

	e.RegisterTween(obj, "x", p.get, p.set, common.Vec4{3}, linear, r.callback("tween2"))
	if got := r.list(); !slices.Equal(got, []string{"tween:cancelled", "spring:cancelled"}) {
		t.Errorf("completions after second tween = %v", got)
	}
}

func TestSpringReplacementInheritsVelocity(t *testing.T) {
	e := newHostEngine(t)
	obj := common.NewObjectID()
	p := &prop{}
	r := &results{}

	e.RegisterSpring(obj, "x", p.get, p.set, common.Vec4{10}, SpringParams{Stiffness: 150, Damping: 10}, r.callback("first"))
	for range 5 {
		e.Tick(1.0 / 60)
	}
	v := e.CurrentVelocity(obj, "x")
	if v[0] <= 0 {
		t.Fatalf("velocity = %v, want positive toward the target", v)
	}

	e.RegisterSpring(obj, "x", p.get, p.set, common.Vec4{-10}, SpringParams{}, r.callback("second"))
	if got := e.CurrentVelocity(obj, "x"); got != v {
		t.Errorf("replacement velocity = %v, want inherited %v", got, v)
	}
	if got := r.list(); !slices.Equal(got, []string{"first:cancelled"}) {
		t.Errorf("completions = %v", got)
	}
}

func TestTweenVelocity(t *testing.T) {
	e := newHostEngine(t)
	obj := common.NewObjectID()
	p := &prop{}

	if v := e.CurrentVelocity(obj, "x"); v != (common.Vec4{}) {
		t.Errorf("velocity of unanimated property = %v", v)
	}
	e.RegisterTween(obj, "x", p.get, p.set, common.Vec4{2}, TweenParams{Duration: 2, Curve: curve.Linear}, nil)
	if v := e.CurrentVelocity(obj, "x"); v != (common.Vec4{}) {
		t.Errorf("velocity before the first dispatch = %v, want zero", v)
	}
	e.Tick(0.25)
	if v := e.CurrentVelocity(obj, "x"); !v.ApproxEqual(common.Vec4{1}, 1e-5) {
		t.Errorf("velocity = %v, want 1 unit/s", v)
	}
}

func TestRemoveAndCancel(t *testing.T) {
	e := newHostEngine(t)
	obj := common.NewObjectID()
	p, q := &prop{}, &prop{}
	r := &results{}

	e.Remove(obj, "missing")
	e.Remove(obj, "missing")
	e.Cancel(12345)
	if len(r.list()) != 0 {
		t.Fatal("removing absent animations fired callbacks")
	}

	a := e.RegisterTween(obj, "a", p.get, p.set, common.Vec4{1}, linear, r.callback("a"))
	e.RegisterSpring(obj, "b", q.get, q.set, common.Vec4{1}, SpringParams{}, r.callback("b"))
	e.RegisterTween(obj, "a", p.get, p.set, common.Vec4{2}, linear, r.callback("a2"))

	e.Cancel(a)
	e.Cancel(a)
	if got := r.list(); !slices.Equal(got, []string{"a:cancelled"}) {
		t.Errorf("completions after Cancel = %v", got)
	}
	if ids := e.Animations(obj, "a"); len(ids) != 1 {
		t.Errorf("chain after Cancel = %v", ids)
	}

	e.Remove(obj)
	got := r.list()
	if len(got) != 3 || !slices.Contains(got, "b:cancelled") || !slices.Contains(got, "a2:cancelled") {
		t.Errorf("completions after Remove(obj) = %v", got)
	}
	if len(e.Animations(obj)) != 0 {
		t.Error("animations left after removing the object")
	}
	e.Remove(obj)
	if len(r.list()) != 3 {
		t.Error("second Remove fired callbacks")
	}
}

func TestCancelledTweenLeavesChainTarget(t *testing.T) {
	tests := []struct {
		name string
		// lead is how long both tweens run before the second one is cancelled.
		lead float32
		// next registers a third tween toward 30 after the cancel.
		next bool
		want float32
	}{
		{"cancelled before it starts", 0, false, 10},
		{"cancelled halfway", 0.5, false, 15},
		{"next tween after cancel before start", 0, true, 30},
		{"next tween after cancel halfway", 0.5, true, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newHostEngine(t)
			obj := common.NewObjectID()
			p := &prop{}

			e.RegisterTween(obj, "x", p.get, p.set, common.Vec4{10}, linear, nil)
			last := e.RegisterTween(obj, "x", p.get, p.set, common.Vec4{20}, linear, nil)
			if tt.lead > 0 {
				e.Tick(tt.lead)
			}
			e.Cancel(last)
			if tt.next {
				e.RegisterTween(obj, "x", p.get, p.set, common.Vec4{30}, linear, nil)
			}

			for range 30 {
				e.Tick(0.1)
			}
			if got := p.get(); !got.ApproxEqual(common.Vec4{tt.want}, 1e-4) {
				t.Errorf("final value = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRequestsDuringDispatchReplayInOrder(t *testing.T) {
	e, b := newAsyncEngine(t)
	obj := common.NewObjectID()
	p, q := &prop{}, &prop{}
	r := &results{}

	e.RegisterTween(obj, "x", p.get, p.set, common.Vec4{1}, linear, r.callback("x"))
	e.Tick(0.1)
	if e.State() != StateDispatching {
		t.Fatalf("state = %v, want dispatching", e.State())
	}

	e.RegisterTween(obj, "y", q.get, q.set, common.Vec4{5}, linear, r.callback("y1"))
	e.Remove(obj, "y")
	y2 := e.RegisterTween(obj, "y", q.get, q.set, common.Vec4{7}, linear, r.callback("y2"))
	if ids := e.Animations(obj, "y"); len(ids) != 0 {
		t.Errorf("deferred registrations visible before completion: %v", ids)
	}
	if len(r.list()) != 0 {
		t.Error("deferred removal ran during the dispatch")
	}

	// Ticks while dispatching only accumulate.
	e.Tick(0.1)
	e.Tick(0.1)

	b.complete(nil)
	waitCompletion(t, e)
	if got := p.get(); !got.ApproxEqual(common.Vec4{0.1}, 1e-6) {
		t.Errorf("value after first dispatch = %v, want 0.1", got)
	}
	if got := r.list(); !slices.Equal(got, []string{"y1:cancelled"}) {
		t.Errorf("completions = %v, want the replayed removal of y1", got)
	}
	if ids := e.Animations(obj, "y"); !slices.Equal(ids, []common.AnimationID{y2}) {
		t.Errorf("y drivers = %v, want %d", ids, y2)
	}

	e.Tick(0)
	b.complete(nil)
	waitCompletion(t, e)
	if got := p.get(); !got.ApproxEqual(common.Vec4{0.3}, 1e-6) {
		t.Errorf("value after coalesced dispatch = %v, want 0.3", got)
	}
}

func TestFailedDispatchRetriesWithAccumulatedTime(t *testing.T) {
	e, b := newAsyncEngine(t)
	obj := common.NewObjectID()
	p := &prop{}
	r := &results{}

	e.RegisterTween(obj, "x", p.get, p.set, common.Vec4{1}, linear, r.callback("x"))
	e.Tick(0.1)
	b.complete(errors.New("device lost"))
	waitCompletion(t, e)
	if got := p.get(); got != (common.Vec4{}) {
		t.Errorf("failed dispatch wrote %v", got)
	}
	if e.State() != StateActive {
		t.Errorf("state = %v, want active", e.State())
	}

	e.Tick(0.1)
	b.complete(nil)
	waitCompletion(t, e)
	if got := p.get(); !got.ApproxEqual(common.Vec4{0.2}, 1e-6) {
		t.Errorf("value = %v, want 0.2 after retrying with the lost time", got)
	}
	if s := e.Stats(); s.Dispatches != 2 || s.Failures != 1 {
		t.Errorf("Stats = %+v", s)
	}
}

func TestPollWithoutDispatch(t *testing.T) {
	e, b := newAsyncEngine(t)
	if e.Poll() {
		t.Error("Poll applied a completion with nothing in flight")
	}
	p := &prop{}
	e.RegisterTween(common.NewObjectID(), "x", p.get, p.set, common.Vec4{1}, linear, nil)
	e.Tick(0.5)
	b.complete(nil)
	if !e.Poll() {
		t.Error("Poll did not apply the pending completion")
	}
	if got := p.get(); !got.ApproxEqual(common.Vec4{0.5}, 1e-6) {
		t.Errorf("value = %v", got)
	}
}

func TestCompletionMayReenter(t *testing.T) {
	e := newHostEngine(t)
	obj := common.NewObjectID()
	p := &prop{}
	r := &results{}

	e.RegisterTween(obj, "x", p.get, p.set, common.Vec4{1}, TweenParams{Duration: 0.1}, func(finished bool) {
		e.RegisterTween(obj, "x", p.get, p.set, common.Vec4{0}, TweenParams{Duration: 0.1}, r.callback("back"))
	})
	e.Tick(0.2)
	e.Tick(0.2)
	if got := p.get(); !got.ApproxEqual(common.Vec4{0}, 1e-6) {
		t.Errorf("value = %v, want 0 after the chained tween", got)
	}
	if got := r.list(); !slices.Equal(got, []string{"back:done"}) {
		t.Errorf("completions = %v", got)
	}
}

func TestRunDrivesTicks(t *testing.T) {
	source := NewManualTickSource()
	e := NewEngine(WithForceHost(true), WithTickSource(source))
	defer e.Release()

	p := &prop{}
	done := make(chan bool, 1)
	e.RegisterTween(common.NewObjectID(), "x", p.get, p.set, common.Vec4{3}, TweenParams{Duration: 0.05}, func(finished bool) {
		done <- finished
	})

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- e.Run(ctx) }()

	deadline := time.After(2 * time.Second)
loop:
	for {
		select {
		case finished := <-done:
			if !finished {
				t.Error("tween cancelled")
			}
			break loop
		case <-deadline:
			t.Fatal("tween did not finish under Run")
		default:
			source.Tick(0.02)
			time.Sleep(time.Millisecond)
		}
	}

	cancel()
	if err := <-runErr; !errors.Is(err, context.Canceled) {
		t.Errorf("Run returned %v", err)
	}
	if got := p.get(); !got.ApproxEqual(common.Vec4{3}, 1e-5) {
		t.Errorf("value = %v, want 3", got)
	}
}

func TestApplyConfig(t *testing.T) {
	e := newHostEngine(t)
	bad := config.Default()
	bad.CompositionCap = 0
	if err := e.ApplyConfig(bad); err == nil {
		t.Error("invalid config accepted")
	}

	cfg := config.Default()
	cfg.Tween.Duration = 2
	cfg.Tween.Curve = "bounce"
	cfg.Spring.Stiffness = 321
	if err := e.ApplyConfig(cfg); err != nil {
		t.Fatalf("ApplyConfig: %v", err)
	}
	if got := e.DefaultTweenParams(); got.Duration != 2 || got.Curve != curve.Bounce {
		t.Errorf("DefaultTweenParams = %+v", got)
	}
	if got := e.DefaultSpringParams(); got.Stiffness != 321 {
		t.Errorf("DefaultSpringParams = %+v", got)
	}
}

func TestReleaseCancelsEverything(t *testing.T) {
	e := NewEngine(WithForceHost(true), WithTickSource(NewManualTickSource()))
	p := &prop{}
	r := &results{}
	obj := common.NewObjectID()
	e.RegisterSpring(obj, "a", p.get, p.set, common.Vec4{1}, SpringParams{}, r.callback("a"))
	e.RegisterTween(obj, "b", p.get, p.set, common.Vec4{1}, linear, r.callback("b"))

	e.Release()
	got := r.list()
	slices.Sort(got)
	if !slices.Equal(got, []string{"a:cancelled", "b:cancelled"}) {
		t.Errorf("completions = %v", got)
	}
	if e.State() != StateIdle {
		t.Errorf("state = %v", e.State())
	}

	e.RegisterTween(obj, "c", p.get, p.set, common.Vec4{1}, linear, r.callback("c"))
	if got := r.list(); got[len(got)-1] != "c:cancelled" {
		t.Errorf("registration after Release = %v", got)
	}
	e.Release()
}

func TestManualTickSourceCoalesces(t *testing.T) {
	s := NewManualTickSource()
	if s.Tick(1) {
		t.Error("stopped source accepted a tick")
	}
	s.Start()
	s.Tick(0.25)
	s.Tick(0.5)
	if dt := <-s.Ticks(); dt != 0.75 {
		t.Errorf("coalesced tick = %v, want 0.75", dt)
	}
	s.Tick(1)
	s.Stop()
	select {
	case dt := <-s.Ticks():
		t.Errorf("stopped source delivered %v", dt)
	default:
	}
}

func TestTickerSourceTicks(t *testing.T) {
	s := NewTickerSource(200)
	s.Start()
	defer s.Stop()
	select {
	case dt := <-s.Ticks():
		if dt <= 0 {
			t.Errorf("dt = %v", dt)
		}
	case <-time.After(time.Second):
		t.Fatal("no tick")
	}
	s.SetRate(100)
	s.Stop()
	if s.Running() {
		t.Error("source running after Stop")
	}
}

func TestTickerSourceStopDropsPendingTick(t *testing.T) {
	s := NewTickerSource(200)
	s.Start()
	deadline := time.Now().Add(time.Second)
	for len(s.Ticks()) == 0 {
		if time.Now().After(deadline) {
			s.Stop()
			t.Fatal("no tick buffered")
		}
		time.Sleep(time.Millisecond)
	}

	s.Stop()
	select {
	case dt := <-s.Ticks():
		t.Errorf("stopped source delivered %v", dt)
	case <-time.After(20 * time.Millisecond):
	}
}
