package window

import (
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-anim/common"
)

// Animatable window properties. Position and size use the x and y components, opacity uses x.
const (
	PropertyPosition = "position"
	PropertySize     = "size"
	PropertyOpacity  = "opacity"
)

const (
	dirtyPosition uint8 = 1 << iota
	dirtySize
	dirtyOpacity
)

// frameUpdate is the set of changes to push to the platform window. Nil fields are unchanged.
type frameUpdate struct {
	position *[2]int
	size     *[2]int
	opacity  *float32
}

// frame caches the animatable window state. Setters may be called from any goroutine; the
// platform window is only touched when the message loop flushes the cache.
type frame struct {
	mu *sync.Mutex

	position common.Vec4
	size     common.Vec4
	opacity  float32

	minSize [2]int
	maxSize [2]int

	// applied holds the last integer values pushed to the platform, used to tell our own moves
	// apart from the user's.
	appliedPosition [2]int
	appliedSize     [2]int

	dirty uint8
}

func newFrame(x, y, width, height int, minSize, maxSize [2]int, opacity float32) *frame {
	f := &frame{
		mu:      &sync.Mutex{},
		minSize: minSize,
		maxSize: maxSize,
	}
	f.position = common.Vec4{float32(x), float32(y)}
	f.appliedPosition = [2]int{x, y}
	f.size = f.clampSize(common.Vec4{float32(width), float32(height)})
	f.appliedSize = [2]int{round(f.size[0]), round(f.size[1])}
	f.opacity = clamp01(opacity)
	return f
}

func (f *frame) getPosition() common.Vec4 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.position
}

func (f *frame) setPosition(v common.Vec4) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.position = common.Vec4{v[0], v[1]}
	f.dirty |= dirtyPosition
}

func (f *frame) getSize() common.Vec4 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.size
}

func (f *frame) setSize(v common.Vec4) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.size = f.clampSize(v)
	f.dirty |= dirtySize
}

func (f *frame) getOpacity() common.Vec4 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return common.Vec4{f.opacity}
}

func (f *frame) setOpacity(v common.Vec4) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opacity = clamp01(v[0])
	f.dirty |= dirtyOpacity
}

// observePosition records a position reported by the platform. Echoes of our own moves are ignored
// so the fractional animated position is kept.
func (f *frame) observePosition(x, y int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if [2]int{x, y} == f.appliedPosition {
		return
	}
	f.appliedPosition = [2]int{x, y}
	f.position = common.Vec4{float32(x), float32(y)}
}

// observeSize records a size reported by the platform, e.g. after the user resized the window.
func (f *frame) observeSize(width, height int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if [2]int{width, height} == f.appliedSize {
		return
	}
	f.appliedSize = [2]int{width, height}
	f.size = common.Vec4{float32(width), float32(height)}
}

// flush returns the changes made since the last flush, rounded to whole pixels.
func (f *frame) flush() frameUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()

	var u frameUpdate
	if f.dirty&dirtyPosition != 0 {
		p := [2]int{round(f.position[0]), round(f.position[1])}
		if p != f.appliedPosition {
			f.appliedPosition = p
			u.position = &p
		}
	}
	if f.dirty&dirtySize != 0 {
		s := [2]int{round(f.size[0]), round(f.size[1])}
		if s != f.appliedSize {
			f.appliedSize = s
			u.size = &s
		}
	}
	if f.dirty&dirtyOpacity != 0 {
		o := f.opacity
		u.opacity = &o
	}
	f.dirty = 0
	return u
}

// property returns the accessors of a named property.
func (f *frame) property(name string) (common.Getter, common.Setter, bool) {
	switch name {
	case PropertyPosition:
		return f.getPosition, f.setPosition, true
	case PropertySize:
		return f.getSize, f.setSize, true
	case PropertyOpacity:
		return f.getOpacity, f.setOpacity, true
	}
	return nil, nil, false
}

func (f *frame) clampSize(v common.Vec4) common.Vec4 {
	w := min(max(v[0], float32(f.minSize[0])), float32(f.maxSize[0]))
	h := min(max(v[1], float32(f.minSize[1])), float32(f.maxSize[1]))
	return common.Vec4{w, h}
}

func clamp01(v float32) float32 {
	return min(max(v, 0), 1)
}

func round(v float32) int {
	return int(math.Round(float64(v)))
}
