package kernel

import "github.com/Carmen-Shannon/oxy-anim/common"

// StepSpring advances one spring slot by dt with a semi-implicit Euler step.
// It is the host twin of spring_animate and must stay numerically identical to it.
// A slot whose offset from target and velocity are both within Threshold on every component
// is settled: Running drops to 0, Velocity is zeroed and Current snaps to Target.
// Slots that are not running are left untouched.
//
// Parameters:
//   - s: the slot to advance in place
//   - dt: the step length in seconds
func StepSpring(s *GPUSpringState, dt float32) {
	if !s.IsRunning() {
		return
	}

	diff := s.Current.Sub(s.Target)
	if diff.AllWithin(s.Threshold) && s.Velocity.AllWithin(s.Threshold) {
		s.Running = 0
		s.Velocity = common.Vec4{}
		s.Current = s.Target
		return
	}

	accel := diff.Scale(-s.Stiffness).Sub(s.Velocity.Scale(s.Damping))
	s.Velocity = s.Velocity.Add(accel.Scale(dt))
	s.Current = s.Current.Add(s.Velocity.Scale(dt))
}

// StepSprings advances every slot in states by dt.
func StepSprings(states []GPUSpringState, dt float32) {
	for i := range states {
		StepSpring(&states[i], dt)
	}
}
