package window

import (
	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/Carmen-Shannon/oxy-anim/engine"
)

// SpringTo animates a window property toward target with a spring.
//
// Parameters:
//   - e: the engine
//   - w: the window
//   - name: PropertyPosition, PropertySize or PropertyOpacity
//   - target: the target value
//   - params: spring parameters, zero fields take the engine defaults
//   - completion: called when the spring settles or is cancelled; may be nil
//
// Returns:
//   - common.AnimationID: the animation ID
//   - error: an error if the window has no such property
func SpringTo(e engine.Engine, w Window, name string, target common.Vec4, params engine.SpringParams, completion common.Completion) (common.AnimationID, error) {
	get, set, err := w.Property(name)
	if err != nil {
		return 0, err
	}
	return e.RegisterSpring(w.ID(), name, get, set, target, params, completion), nil
}

// TweenTo animates a window property toward target over a fixed duration. Tweens on the same property compose.
//
// Parameters:
//   - e: the engine
//   - w: the window
//   - name: PropertyPosition, PropertySize or PropertyOpacity
//   - target: the target value
//   - params: duration and curve
//   - completion: called when the tween finishes or is cancelled; may be nil
//
// Returns:
//   - common.AnimationID: the animation ID
//   - error: an error if the window has no such property
func TweenTo(e engine.Engine, w Window, name string, target common.Vec4, params engine.TweenParams, completion common.Completion) (common.AnimationID, error) {
	get, set, err := w.Property(name)
	if err != nil {
		return 0, err
	}
	return e.RegisterTween(w.ID(), name, get, set, target, params, completion), nil
}
