package kernel

import (
	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/Carmen-Shannon/oxy-anim/engine/curve"
)

// NewTweenState builds a running tween slot covering delta over duration seconds.
//
// Parameters:
//   - delta: the change the tween applies on top of the value it starts from
//   - duration: the length of the tween in seconds
//   - c: the easing curve
//
// Returns:
//   - GPUTweenState: the initialized slot
func NewTweenState(delta common.Vec4, duration float32, c curve.Curve) GPUTweenState {
	return GPUTweenState{
		Target:    delta,
		Duration:  duration,
		CurveType: uint32(c.Type),
		CurveEase: uint32(c.Ease),
		Running:   1,
	}
}

// Curve returns the easing curve stored in the slot.
func (g *GPUTweenState) Curve() curve.Curve {
	return curve.Curve{Type: curve.TweenType(g.CurveType), Ease: curve.EaseType(g.CurveEase)}
}

// StepTween advances one tween slot by dt. It is the host twin of tween_animate.
// Previous always receives the Current of the prior step. Once Elapsed passes Duration the slot
// stops running and Current lands exactly on Target.
//
// Parameters:
//   - s: the slot to advance in place
//   - dt: the step length in seconds
func StepTween(s *GPUTweenState, dt float32) {
	if !s.IsRunning() {
		return
	}

	s.Elapsed += dt
	s.Previous = s.Current
	if s.Elapsed > s.Duration {
		s.Running = 0
		s.Current = s.Target
		return
	}
	s.Current = s.Target.Scale(s.Curve().Solve(s.Elapsed / s.Duration))
}

// StepTweens advances every slot in states by dt.
func StepTweens(states []GPUTweenState, dt float32) {
	for i := range states {
		StepTween(&states[i], dt)
	}
}
