package curve

import (
	"fmt"
	"sort"
	"strings"
)

const (
	newtonIterations  = 8
	bisectionLimit    = 64
	derivativeEpsilon = 1e-6
)

// UnitBezier is a cubic Bezier timing curve with implicit end points (0,0) and (1,1).
// It stores the polynomial coefficients of x(u) and y(u).
type UnitBezier struct {
	ax, bx, cx float32
	ay, by, cy float32
}

// NewUnitBezier builds a timing curve from its two inner control points.
//
// Parameters:
//   - p1x, p1y: the first control point
//   - p2x, p2y: the second control point
//
// Returns:
//   - UnitBezier: the timing curve
func NewUnitBezier(p1x, p1y, p2x, p2y float32) UnitBezier {
	b := UnitBezier{}
	b.cx = 3 * p1x
	b.bx = 3*(p2x-p1x) - b.cx
	b.ax = 1 - b.cx - b.bx

	b.cy = 3 * p1y
	b.by = 3*(p2y-p1y) - b.cy
	b.ay = 1 - b.cy - b.by
	return b
}

func (b UnitBezier) sampleX(u float32) float32 {
	return ((b.ax*u+b.bx)*u + b.cx) * u
}

func (b UnitBezier) sampleY(u float32) float32 {
	return ((b.ay*u+b.by)*u + b.cy) * u
}

func (b UnitBezier) sampleDerivativeX(u float32) float32 {
	return (3*b.ax*u+2*b.bx)*u + b.cx
}

// SolveX finds the curve parameter u for which x(u) == x.
// Newton-Raphson is tried first; bisection over [0, 1] takes over when Newton does not converge
// or the derivative vanishes.
//
// Parameters:
//   - x: the target x value, normally in [0, 1]
//   - eps: the accepted absolute error on x(u)
//
// Returns:
//   - float32: the curve parameter u
func (b UnitBezier) SolveX(x, eps float32) float32 {
	u := x
	for range newtonIterations {
		x2 := b.sampleX(u) - x
		if abs32(x2) < eps {
			return u
		}
		d := b.sampleDerivativeX(u)
		if abs32(d) < derivativeEpsilon {
			break
		}
		u -= x2 / d
	}

	lo, hi := float32(0), float32(1)
	u = x
	if u < lo {
		return lo
	}
	if u > hi {
		return hi
	}
	for range bisectionLimit {
		if lo >= hi {
			break
		}
		x2 := b.sampleX(u)
		if abs32(x2-x) < eps {
			return u
		}
		if x > x2 {
			lo = u
		} else {
			hi = u
		}
		u = (hi-lo)*0.5 + lo
	}
	return u
}

// Solve returns the eased output y for progress x.
//
// Parameters:
//   - x: linear progress
//   - eps: the accepted absolute error when solving for the curve parameter
//
// Returns:
//   - float32: the eased progress
func (b UnitBezier) Solve(x, eps float32) float32 {
	return b.sampleY(b.SolveX(x, eps))
}

// Presets are the built-in named timing curves.
var Presets = map[string]UnitBezier{
	"easeInSine":     NewUnitBezier(0.47, 0, 0.745, 0.715),
	"easeOutSine":    NewUnitBezier(0.39, 0.575, 0.565, 1),
	"easeInOutSine":  NewUnitBezier(0.455, 0.03, 0.515, 0.955),
	"easeInQuad":     NewUnitBezier(0.55, 0.085, 0.68, 0.53),
	"easeOutQuad":    NewUnitBezier(0.25, 0.46, 0.45, 0.94),
	"easeInOutQuad":  NewUnitBezier(0.455, 0.03, 0.515, 0.955),
	"easeInCubic":    NewUnitBezier(0.55, 0.055, 0.675, 0.19),
	"easeOutCubic":   NewUnitBezier(0.215, 0.61, 0.355, 1),
	"easeInOutCubic": NewUnitBezier(0.645, 0.045, 0.355, 1),
	"easeInQuart":    NewUnitBezier(0.895, 0.03, 0.685, 0.22),
	"easeOutQuart":   NewUnitBezier(0.165, 0.84, 0.44, 1),
	"easeInOutQuart": NewUnitBezier(0.77, 0, 0.175, 1),
	"easeInQuint":    NewUnitBezier(0.755, 0.05, 0.855, 0.06),
	"easeOutQuint":   NewUnitBezier(0.23, 1, 0.32, 1),
	"easeInOutQuint": NewUnitBezier(0.86, 0, 0.07, 1),
	"easeInExpo":     NewUnitBezier(0.95, 0.05, 0.795, 0.035),
	"easeOutExpo":    NewUnitBezier(0.19, 1, 0.22, 1),
	"easeInOutExpo":  NewUnitBezier(1, 0, 0, 1),
	"easeInCirc":     NewUnitBezier(0.6, 0.04, 0.98, 0.335),
	"easeOutCirc":    NewUnitBezier(0.075, 0.82, 0.165, 1),
	"easeInOutCirc":  NewUnitBezier(0.785, 0.135, 0.15, 0.86),
	"easeInBack":     NewUnitBezier(0.6, -0.28, 0.735, 0.045),
	"easeOutBack":    NewUnitBezier(0.175, 0.885, 0.32, 1.275),
	"easeInOutBack":  NewUnitBezier(0.68, -0.55, 0.265, 1.55),
}

// Preset looks up a named timing curve, ignoring case.
//
// Parameters:
//   - name: the preset name, e.g. "easeOutBack"
//
// Returns:
//   - UnitBezier: the preset
//   - error: an error if no preset has that name
func Preset(name string) (UnitBezier, error) {
	if b, ok := Presets[name]; ok {
		return b, nil
	}
	for k, b := range Presets {
		if strings.EqualFold(k, name) {
			return b, nil
		}
	}
	return UnitBezier{}, fmt.Errorf("unknown bezier preset %q", name)
}

// PresetNames returns the preset names in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(Presets))
	for k := range Presets {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func abs32(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}
