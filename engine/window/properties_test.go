package window

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/Carmen-Shannon/oxy-anim/engine"
	"github.com/Carmen-Shannon/oxy-anim/engine/curve"
)

func newTestFrame() *frame {
	return newFrame(100, 50, 640, 480, [2]int{200, 150}, [2]int{1600, 1200}, 1)
}

// newHeadlessWindow returns a window with no platform window attached.
func newHeadlessWindow() *engineWindow {
	return &engineWindow{id: common.NewObjectID(), frame: newTestFrame()}
}

func TestFrameClamps(t *testing.T) {
	tests := []struct {
		name string
		prop string
		in   common.Vec4
		want common.Vec4
	}{
		{"size below minimum", PropertySize, common.Vec4{10, 10}, common.Vec4{200, 150}},
		{"size above maximum", PropertySize, common.Vec4{5000, 700}, common.Vec4{1600, 700}},
		{"size drops z and w", PropertySize, common.Vec4{300, 300, 9, 9}, common.Vec4{300, 300}},
		{"opacity above one", PropertyOpacity, common.Vec4{1.5}, common.Vec4{1}},
		{"opacity below zero", PropertyOpacity, common.Vec4{-0.2}, common.Vec4{0}},
		{"position is unclamped", PropertyPosition, common.Vec4{-40.5, 12.25, 3}, common.Vec4{-40.5, 12.25}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTestFrame()
			get, set, ok := f.property(tt.prop)
			if !ok {
				t.Fatalf("no property %q", tt.prop)
			}
			set(tt.in)
			if got := get(); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFrameFlushRoundsAndClears(t *testing.T) {
	f := newTestFrame()
	if u := f.flush(); u.position != nil || u.size != nil || u.opacity != nil {
		t.Fatalf("fresh frame flushed changes: %+v", u)
	}

	f.setPosition(common.Vec4{100.4, 50.2})
	if u := f.flush(); u.position != nil {
		t.Errorf("sub-pixel move flushed %v", *u.position)
	}

	f.setPosition(common.Vec4{120.6, 49.5})
	f.setOpacity(common.Vec4{0.5})
	u := f.flush()
	if u.position == nil || *u.position != [2]int{121, 50} {
		t.Errorf("position update = %v", u.position)
	}
	if u.opacity == nil || *u.opacity != 0.5 {
		t.Errorf("opacity update = %v", u.opacity)
	}
	if u.size != nil {
		t.Error("size flushed without a change")
	}
	if u := f.flush(); u.position != nil || u.opacity != nil {
		t.Error("second flush repeated changes")
	}
	// The cached value keeps its fraction.
	if got := f.getPosition(); got != (common.Vec4{120.6, 49.5}) {
		t.Errorf("cached position = %v", got)
	}
}

func TestFrameObserveIgnoresEchoes(t *testing.T) {
	f := newTestFrame()
	f.setPosition(common.Vec4{200.3, 80.7})
	f.flush()

	f.observePosition(200, 81)
	if got := f.getPosition(); got != (common.Vec4{200.3, 80.7}) {
		t.Errorf("echo overwrote the animated position: %v", got)
	}

	f.observePosition(400, 300)
	if got := f.getPosition(); got != (common.Vec4{400, 300}) {
		t.Errorf("user move not recorded: %v", got)
	}

	f.observeSize(800, 600)
	if got := f.getSize(); got != (common.Vec4{800, 600}) {
		t.Errorf("user resize not recorded: %v", got)
	}
}

func TestPropertyLookup(t *testing.T) {
	w := newHeadlessWindow()
	for _, name := range []string{PropertyPosition, PropertySize, PropertyOpacity} {
		if _, _, err := w.Property(name); err != nil {
			t.Errorf("Property(%q): %v", name, err)
		}
	}
	if _, _, err := w.Property("rotation"); err == nil {
		t.Error("unknown property accepted")
	}
	if w.Width() != 640 || w.Height() != 480 {
		t.Errorf("size = %dx%d", w.Width(), w.Height())
	}
}

func TestAnimateWindowProperties(t *testing.T) {
	e := engine.NewEngine(engine.WithForceHost(true), engine.WithTickSource(engine.NewManualTickSource()))
	defer e.Release()
	w := newHeadlessWindow()

	finished := 0
	done := func(ok bool) {
		if ok {
			finished++
		}
	}
	if _, err := TweenTo(e, w, PropertyPosition, common.Vec4{300, 50}, engine.TweenParams{Duration: 0.5, Curve: curve.Ease}, done); err != nil {
		t.Fatal(err)
	}
	if _, err := SpringTo(e, w, PropertyOpacity, common.Vec4{0.25}, engine.SpringParams{Stiffness: 150, Damping: 10}, done); err != nil {
		t.Fatal(err)
	}
	if _, err := SpringTo(e, w, "rotation", common.Vec4{1}, engine.SpringParams{}, done); err == nil {
		t.Error("SpringTo accepted an unknown property")
	}

	for range 300 {
		e.Tick(1.0 / 60)
	}
	if finished != 2 {
		t.Errorf("finished = %d, want 2", finished)
	}
	u := w.frame.flush()
	if u.position == nil || *u.position != [2]int{300, 50} {
		t.Errorf("position update = %v", u.position)
	}
	if u.opacity == nil || *u.opacity != 0.25 {
		t.Errorf("opacity update = %v", u.opacity)
	}
}
