package curve

import (
	"fmt"
	"math"
	"strings"
)

// TweenType selects the easing family of a Curve. The numeric values are shared with the tween compute shader.
type TweenType uint32

const (
	TweenLinear TweenType = iota
	TweenQuadratic
	TweenCubic
	TweenQuartic
	TweenQuintic
	TweenSine
	TweenCircular
	TweenExponential
	TweenElastic
	TweenBack
	TweenBounce
)

// EaseType selects the easing direction of a Curve. The numeric values are shared with the tween compute shader.
type EaseType uint32

const (
	EaseIn EaseType = iota
	EaseOut
	EaseInOut
)

var tweenNames = [...]string{"linear", "quadratic", "cubic", "quartic", "quintic", "sine", "circular", "exponential", "elastic", "back", "bounce"}

var easeNames = [...]string{"easeIn", "easeOut", "easeInOut"}

func (t TweenType) String() string {
	if int(t) < len(tweenNames) {
		return tweenNames[t]
	}
	return fmt.Sprintf("TweenType(%d)", uint32(t))
}

func (e EaseType) String() string {
	if int(e) < len(easeNames) {
		return easeNames[e]
	}
	return fmt.Sprintf("EaseType(%d)", uint32(e))
}

// Curve pairs an easing family with an easing direction.
type Curve struct {
	Type TweenType
	Ease EaseType
}

// Named curves.
var (
	Linear  = Curve{Type: TweenLinear, Ease: EaseIn}
	Ease    = Curve{Type: TweenSine, Ease: EaseInOut}
	Elastic = Curve{Type: TweenElastic, Ease: EaseOut}
	Bounce  = Curve{Type: TweenBounce, Ease: EaseOut}
)

var namedCurves = map[string]Curve{
	"linear":  Linear,
	"ease":    Ease,
	"elastic": Elastic,
	"bounce":  Bounce,
}

func (c Curve) String() string {
	return c.Type.String() + "/" + c.Ease.String()
}

// Valid reports whether both the family and the direction are known values.
func (c Curve) Valid() bool {
	return int(c.Type) < len(tweenNames) && int(c.Ease) < len(easeNames)
}

// Parse resolves a curve name. Accepted forms are the named curves ("linear", "ease", "elastic", "bounce")
// and "<family>/<direction>" such as "cubic/easeOut". Matching is case-insensitive.
//
// Parameters:
//   - name: the curve name to resolve
//
// Returns:
//   - Curve: the resolved curve
//   - error: an error if the name matches no family or direction
func Parse(name string) (Curve, error) {
	n := strings.TrimSpace(name)
	if c, ok := namedCurves[strings.ToLower(n)]; ok {
		return c, nil
	}
	family, direction, found := strings.Cut(n, "/")
	if !found {
		return Curve{}, fmt.Errorf("unknown curve %q", name)
	}
	c := Curve{}
	ok := false
	for i, tn := range tweenNames {
		if strings.EqualFold(tn, family) {
			c.Type, ok = TweenType(i), true
			break
		}
	}
	if !ok {
		return Curve{}, fmt.Errorf("unknown curve family %q", family)
	}
	ok = false
	for i, en := range easeNames {
		if strings.EqualFold(en, direction) {
			c.Ease, ok = EaseType(i), true
			break
		}
	}
	if !ok {
		return Curve{}, fmt.Errorf("unknown curve direction %q", direction)
	}
	return c, nil
}

// Solve maps linear progress t in [0, 1] to eased progress.
//
// Parameters:
//   - t: linear progress, elapsed/duration
//
// Returns:
//   - float32: the eased progress
func (c Curve) Solve(t float32) float32 {
	switch c.Ease {
	case EaseOut:
		return c.solveEaseOut(t)
	case EaseInOut:
		if t < 0.5 {
			return 0.5 * c.solveEaseIn(t*2)
		}
		return 0.5*c.solveEaseOut(t*2-1) + 0.5
	default:
		return c.solveEaseIn(t)
	}
}

func (c Curve) solveEaseOut(t float32) float32 {
	return 1 - c.solveEaseIn(1-t)
}

func (c Curve) solveEaseIn(t float32) float32 {
	switch c.Type {
	case TweenQuadratic:
		return t * t
	case TweenCubic:
		return t * t * t
	case TweenQuartic:
		return t * t * t * t
	case TweenQuintic:
		return t * t * t * t * t
	case TweenSine:
		return sin32((t-1)*math.Pi/2) + 1
	case TweenCircular:
		return 1 - sqrt32(1-t*t)
	case TweenExponential:
		if t == 0 {
			return 0
		}
		return pow2(10 * (t - 1))
	case TweenElastic:
		return sin32(13*math.Pi/2*t) * pow2(10*(t-1))
	case TweenBack:
		return t*t*t - t*sin32(t*math.Pi)
	case TweenBounce:
		return bounceEaseIn(t)
	default:
		return t
	}
}

// bounceEaseIn is the time-mirrored four-segment bounce.
func bounceEaseIn(t float32) float32 {
	t = 1 - t
	switch {
	case t < 1/2.75:
		return 1 - 7.5625*t*t
	case t < 2/2.75:
		t -= 1.5 / 2.75
		return 1 - (7.5625*t*t + 0.75)
	case t < 2.5/2.75:
		t -= 2.25 / 2.75
		return 1 - (7.5625*t*t + 0.9375)
	default:
		t -= 2.625 / 2.75
		return 1 - (7.5625*t*t + 0.984375)
	}
}

func sin32(x float32) float32 {
	return float32(math.Sin(float64(x)))
}

func sqrt32(x float32) float32 {
	return float32(math.Sqrt(float64(x)))
}

func pow2(x float32) float32 {
	return float32(math.Pow(2, float64(x)))
}
