package scenario

import (
	"context"
	"fmt"

	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/Carmen-Shannon/oxy-anim/config"
	"github.com/Carmen-Shannon/oxy-anim/engine"
	"github.com/Carmen-Shannon/oxy-anim/engine/curve"
	"github.com/d5/tengo/v2"
)

const (
	defaultMaxSteps    = 100000
	defaultNearEpsilon = 1e-4

	statusRunning   = "running"
	statusFinished  = "finished"
	statusCancelled = "cancelled"
	statusUnknown   = "unknown"
)

// session is the state of one script run. Its functions are only called from the script VM, one at a time.
type session struct {
	ctx      context.Context
	engine   engine.Engine
	cfg      config.Config
	tickDt   float32
	maxSteps int

	objects     map[string]common.ObjectID
	objectNames map[common.ObjectID]string
	values      map[common.PropertyKey]*common.Vec4
	statuses    map[common.AnimationID]*string

	steps    int
	elapsed  float32
	failures []string
}

func newSession(ctx context.Context, e engine.Engine, cfg config.Config, tickDt float32, maxSteps int) *session {
	return &session{
		ctx:         ctx,
		engine:      e,
		cfg:         cfg,
		tickDt:      tickDt,
		maxSteps:    maxSteps,
		objects:     map[string]common.ObjectID{},
		objectNames: map[common.ObjectID]string{},
		values:      map[common.PropertyKey]*common.Vec4{},
		statuses:    map[common.AnimationID]*string{},
	}
}

// module builds the anim map exposed to scripts.
func (s *session) module() *tengo.ImmutableMap {
	funcs := map[string]tengo.CallableFunc{
		"spring":     s.spring,
		"tween":      s.tween,
		"set":        s.set,
		"value":      s.value,
		"velocity":   s.velocity,
		"remove":     s.remove,
		"cancel":     s.cancel,
		"animations": s.animations,
		"status":     s.status,
		"tick":       s.tick,
		"settle":     s.settle,
		"elapsed":    s.elapsedTime,
		"curve":      s.curve,
		"bezier":     s.bezier,
		"preset":     s.preset,
		"near":       s.near,
		"expect":     s.expect,
	}
	values := make(map[string]tengo.Object, len(funcs))
	for name, fn := range funcs {
		values[name] = &tengo.UserFunction{Name: name, Value: fn}
	}
	return &tengo.ImmutableMap{Value: values}
}

// object returns the ID bound to a script object name, minting one on first use.
func (s *session) object(name string) common.ObjectID {
	if id, ok := s.objects[name]; ok {
		return id
	}
	id := common.NewObjectID()
	s.objects[name] = id
	s.objectNames[id] = name
	return id
}

// property returns the storage of a script property, creating a zero value on first use.
func (s *session) property(obj, name string) (common.PropertyKey, *common.Vec4) {
	key := common.PropertyKey{Object: s.object(obj), Name: name}
	v, ok := s.values[key]
	if !ok {
		v = &common.Vec4{}
		s.values[key] = v
	}
	return key, v
}

// track returns a completion that records the final status of an animation.
func (s *session) track() (*string, common.Completion) {
	status := statusRunning
	return &status, func(finished bool) {
		if finished {
			status = statusFinished
		} else {
			status = statusCancelled
		}
	}
}

func (s *session) spring(args ...tengo.Object) (tengo.Object, error) {
	if len(args) < 3 || len(args) > 4 {
		return nil, tengo.ErrWrongNumArguments
	}
	obj, name, err := propertyArgs(args)
	if err != nil {
		return nil, err
	}
	target, err := toVec4("target", args[2])
	if err != nil {
		return nil, err
	}
	var params engine.SpringParams
	if len(args) == 4 {
		if params, err = toSpringParams(args[3]); err != nil {
			return nil, err
		}
	}

	key, v := s.property(obj, name)
	status, completion := s.track()
	id := s.engine.RegisterSpring(key.Object, key.Name, getter(v), setter(v), target, params, completion)
	s.statuses[id] = status
	return &tengo.Int{Value: int64(id)}, nil
}

func (s *session) tween(args ...tengo.Object) (tengo.Object, error) {
	if len(args) < 3 || len(args) > 5 {
		return nil, tengo.ErrWrongNumArguments
	}
	obj, name, err := propertyArgs(args)
	if err != nil {
		return nil, err
	}
	target, err := toVec4("target", args[2])
	if err != nil {
		return nil, err
	}
	params := s.engine.DefaultTweenParams()
	if len(args) >= 4 {
		d, err := toFloat("duration", args[3])
		if err != nil {
			return nil, err
		}
		if d < 0 {
			return nil, fmt.Errorf("tween duration must not be negative, got %v", d)
		}
		params.Duration = d
	}
	if len(args) == 5 {
		n, err := toString("curve", args[4])
		if err != nil {
			return nil, err
		}
		if params.Curve, err = curve.Parse(n); err != nil {
			return nil, err
		}
	}

	key, v := s.property(obj, name)
	status, completion := s.track()
	id := s.engine.RegisterTween(key.Object, key.Name, getter(v), setter(v), target, params, completion)
	s.statuses[id] = status
	return &tengo.Int{Value: int64(id)}, nil
}

func (s *session) set(args ...tengo.Object) (tengo.Object, error) {
	if len(args) != 3 {
		return nil, tengo.ErrWrongNumArguments
	}
	obj, name, err := propertyArgs(args)
	if err != nil {
		return nil, err
	}
	value, err := toVec4("value", args[2])
	if err != nil {
		return nil, err
	}
	_, v := s.property(obj, name)
	*v = value
	return tengo.UndefinedValue, nil
}

func (s *session) value(args ...tengo.Object) (tengo.Object, error) {
	if len(args) != 2 {
		return nil, tengo.ErrWrongNumArguments
	}
	obj, name, err := propertyArgs(args)
	if err != nil {
		return nil, err
	}
	_, v := s.property(obj, name)
	return fromVec4(*v), nil
}

func (s *session) velocity(args ...tengo.Object) (tengo.Object, error) {
	if len(args) != 2 {
		return nil, tengo.ErrWrongNumArguments
	}
	obj, name, err := propertyArgs(args)
	if err != nil {
		return nil, err
	}
	return fromVec4(s.engine.CurrentVelocity(s.object(obj), name)), nil
}

func (s *session) remove(args ...tengo.Object) (tengo.Object, error) {
	obj, names, err := objectArgs(args)
	if err != nil {
		return nil, err
	}
	s.engine.Remove(s.object(obj), names...)
	return tengo.UndefinedValue, nil
}

func (s *session) cancel(args ...tengo.Object) (tengo.Object, error) {
	if len(args) != 1 {
		return nil, tengo.ErrWrongNumArguments
	}
	id, ok := tengo.ToInt64(args[0])
	if !ok {
		return nil, tengo.ErrInvalidArgumentType{Name: "id", Expected: "int", Found: args[0].TypeName()}
	}
	s.engine.Cancel(common.AnimationID(id))
	return tengo.UndefinedValue, nil
}

func (s *session) animations(args ...tengo.Object) (tengo.Object, error) {
	obj, names, err := objectArgs(args)
	if err != nil {
		return nil, err
	}
	ids := s.engine.Animations(s.object(obj), names...)
	out := make([]tengo.Object, len(ids))
	for i, id := range ids {
		out[i] = &tengo.Int{Value: int64(id)}
	}
	return &tengo.Array{Value: out}, nil
}

func (s *session) status(args ...tengo.Object) (tengo.Object, error) {
	if len(args) != 1 {
		return nil, tengo.ErrWrongNumArguments
	}
	id, ok := tengo.ToInt64(args[0])
	if !ok {
		return nil, tengo.ErrInvalidArgumentType{Name: "id", Expected: "int", Found: args[0].TypeName()}
	}
	if status, ok := s.statuses[common.AnimationID(id)]; ok {
		return &tengo.String{Value: *status}, nil
	}
	return &tengo.String{Value: statusUnknown}, nil
}

// advance ticks the engine once and waits for the dispatch to be applied.
func (s *session) advance(dt float32) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}
	s.engine.Tick(dt)
	if err := s.engine.Wait(s.ctx); err != nil {
		return err
	}
	s.steps++
	s.elapsed += dt
	return nil
}

// stepArgs reads the optional dt and count arguments shared by tick and settle.
func (s *session) stepArgs(args []tengo.Object, defaultCount int) (float32, int, error) {
	if len(args) > 2 {
		return 0, 0, tengo.ErrWrongNumArguments
	}
	dt, count := s.tickDt, defaultCount
	if len(args) >= 1 {
		d, err := toFloat("dt", args[0])
		if err != nil {
			return 0, 0, err
		}
		if d < 0 {
			return 0, 0, fmt.Errorf("dt must not be negative, got %v", d)
		}
		dt = d
	}
	if len(args) == 2 {
		n, ok := tengo.ToInt(args[1])
		if !ok || n < 0 {
			return 0, 0, tengo.ErrInvalidArgumentType{Name: "steps", Expected: "non-negative int", Found: args[1].TypeName()}
		}
		count = n
	}
	return dt, count, nil
}

func (s *session) tick(args ...tengo.Object) (tengo.Object, error) {
	dt, count, err := s.stepArgs(args, 1)
	if err != nil {
		return nil, err
	}
	for range count {
		if err := s.advance(dt); err != nil {
			return nil, err
		}
	}
	return tengo.UndefinedValue, nil
}

// settle ticks until the engine goes idle and returns the number of ticks it took.
func (s *session) settle(args ...tengo.Object) (tengo.Object, error) {
	dt, limit, err := s.stepArgs(args, s.maxSteps)
	if err != nil {
		return nil, err
	}
	n := 0
	for s.engine.State() != engine.StateIdle {
		if n >= limit {
			return nil, fmt.Errorf("animations still running after %d ticks", limit)
		}
		if err := s.advance(dt); err != nil {
			return nil, err
		}
		n++
	}
	return &tengo.Int{Value: int64(n)}, nil
}

func (s *session) elapsedTime(args ...tengo.Object) (tengo.Object, error) {
	if len(args) != 0 {
		return nil, tengo.ErrWrongNumArguments
	}
	return &tengo.Float{Value: float64(s.elapsed)}, nil
}

func (s *session) curve(args ...tengo.Object) (tengo.Object, error) {
	if len(args) != 2 {
		return nil, tengo.ErrWrongNumArguments
	}
	name, err := toString("name", args[0])
	if err != nil {
		return nil, err
	}
	t, err := toFloat("t", args[1])
	if err != nil {
		return nil, err
	}
	c, err := curve.Parse(name)
	if err != nil {
		return nil, err
	}
	return &tengo.Float{Value: float64(c.Solve(t))}, nil
}

func (s *session) bezier(args ...tengo.Object) (tengo.Object, error) {
	if len(args) != 5 {
		return nil, tengo.ErrWrongNumArguments
	}
	var f [5]float32
	for i, n := range []string{"p1x", "p1y", "p2x", "p2y", "x"} {
		v, err := toFloat(n, args[i])
		if err != nil {
			return nil, err
		}
		f[i] = v
	}
	b := curve.NewUnitBezier(f[0], f[1], f[2], f[3])
	return &tengo.Float{Value: float64(b.Solve(f[4], s.cfg.BezierEpsilon))}, nil
}

func (s *session) preset(args ...tengo.Object) (tengo.Object, error) {
	if len(args) != 2 {
		return nil, tengo.ErrWrongNumArguments
	}
	name, err := toString("name", args[0])
	if err != nil {
		return nil, err
	}
	x, err := toFloat("x", args[1])
	if err != nil {
		return nil, err
	}
	b, err := curve.Preset(name)
	if err != nil {
		return nil, err
	}
	return &tengo.Float{Value: float64(b.Solve(x, s.cfg.BezierEpsilon))}, nil
}

// near compares two values component-wise within an optional epsilon.
func (s *session) near(args ...tengo.Object) (tengo.Object, error) {
	if len(args) < 2 || len(args) > 3 {
		return nil, tengo.ErrWrongNumArguments
	}
	a, err := toVec4("a", args[0])
	if err != nil {
		return nil, err
	}
	b, err := toVec4("b", args[1])
	if err != nil {
		return nil, err
	}
	eps := float32(defaultNearEpsilon)
	if len(args) == 3 {
		if eps, err = toFloat("epsilon", args[2]); err != nil {
			return nil, err
		}
	}
	return tengo.FromInterface(a.ApproxEqual(b, eps))
}

func (s *session) expect(args ...tengo.Object) (tengo.Object, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, tengo.ErrWrongNumArguments
	}
	if !args[0].IsFalsy() {
		return tengo.TrueValue, nil
	}
	msg := fmt.Sprintf("expectation %d failed", len(s.failures)+1)
	if len(args) == 2 {
		msg = objectAsString(args[1])
	}
	s.failures = append(s.failures, msg)
	return tengo.FalseValue, nil
}

func getter(v *common.Vec4) common.Getter {
	return func() common.Vec4 { return *v }
}

func setter(v *common.Vec4) common.Setter {
	return func(n common.Vec4) { *v = n }
}
