package window

import (
	"fmt"
	"runtime"

	"github.com/Carmen-Shannon/oxy-anim/common"
)

// Window is a desktop window whose position, size and opacity can be animated.
// Property writes are cached and pushed to the platform window by ProcessMessages, so they may
// come from any goroutine, including the engine's.
type Window interface {
	// ID returns the object ID the window's properties are animated under.
	//
	// Returns:
	//   - common.ObjectID: the window's object ID
	ID() common.ObjectID

	// Property returns the accessors of an animatable property: PropertyPosition, PropertySize or PropertyOpacity.
	//
	// Parameters:
	//   - name: the property name
	//
	// Returns:
	//   - common.Getter: reads the cached value
	//   - common.Setter: writes the cached value, applied on the next message loop iteration
	//   - error: an error if the window has no such property
	Property(name string) (common.Getter, common.Setter, error)

	// SetUpdateCallback sets the function called once per message loop iteration.
	SetUpdateCallback(callback func())

	// SetResizeCallback sets the function called with the new size whenever the platform resizes the window.
	SetResizeCallback(callback func(width, height int))

	// SetKeyDownCallback sets the function called with the key code of every key press and repeat.
	SetKeyDownCallback(callback func(keyCode uint32))

	// SetKeyUpCallback sets the function called with the key code of every key release.
	SetKeyUpCallback(callback func(keyCode uint32))

	// SetMouseDownCallback sets the function called with the cursor's screen position on a left click.
	SetMouseDownCallback(callback func(x, y int))

	// IsRunning reports whether the window is open and has not been asked to close.
	IsRunning() bool

	// Close destroys the platform window.
	//
	// Returns:
	//   - error: an error if the window is not open
	Close() error

	// ProcessMessages runs the message loop on the calling goroutine, which must be the one that
	// created the window, until the window closes. Each iteration pushes cached property writes,
	// polls events and then calls the update callback.
	ProcessMessages()

	// Width returns the cached width rounded to whole screen coordinates.
	Width() int

	// Height returns the cached height rounded to whole screen coordinates.
	Height() int
}

// inputHandlers are the callbacks the platform events are routed to. Nil handlers are skipped.
type inputHandlers struct {
	update    func()
	resize    func(width, height int)
	keyDown   func(keyCode uint32)
	keyUp     func(keyCode uint32)
	mouseDown func(x, y int)
}

type engineWindow struct {
	id       common.ObjectID
	frame    *frame
	handlers inputHandlers
	// platform is nil for a window that was never opened or has been closed.
	platform *glfwWindow
}

var _ Window = &engineWindow{}

// NewWindow opens a window. It must be called from the goroutine that will run ProcessMessages.
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - Window: the window
//   - error: an error if the platform window could not be created
func NewWindow(options ...WindowBuilderOption) (Window, error) {
	cfg := defaultWindowConfig()
	for _, opt := range options {
		opt(&cfg)
	}

	w := &engineWindow{id: common.NewObjectID()}
	p, err := openGLFWWindow(cfg, w)
	if err != nil {
		return nil, fmt.Errorf("failed to create platform window: %w", err)
	}
	w.platform = p
	return w, nil
}

func (w *engineWindow) ID() common.ObjectID {
	return w.id
}

func (w *engineWindow) Property(name string) (common.Getter, common.Setter, error) {
	get, set, ok := w.frame.property(name)
	if !ok {
		return nil, nil, fmt.Errorf("window has no property %q", name)
	}
	return get, set, nil
}

func (w *engineWindow) SetUpdateCallback(callback func()) {
	w.handlers.update = callback
}

func (w *engineWindow) SetResizeCallback(callback func(width, height int)) {
	w.handlers.resize = callback
}

func (w *engineWindow) SetKeyDownCallback(callback func(keyCode uint32)) {
	w.handlers.keyDown = callback
}

func (w *engineWindow) SetKeyUpCallback(callback func(keyCode uint32)) {
	w.handlers.keyUp = callback
}

func (w *engineWindow) SetMouseDownCallback(callback func(x, y int)) {
	w.handlers.mouseDown = callback
}

func (w *engineWindow) IsRunning() bool {
	return w.platform != nil && w.platform.open()
}

func (w *engineWindow) Close() error {
	if w.platform == nil {
		return fmt.Errorf("window is not open")
	}
	w.platform.destroy()
	w.platform = nil
	return nil
}

func (w *engineWindow) ProcessMessages() {
	for w.IsRunning() {
		w.platform.apply(w.frame.flush())
		w.platform.poll()
		if !w.IsRunning() {
			return
		}
		if w.handlers.update != nil {
			w.handlers.update()
		}
		runtime.Gosched()
	}
}

func (w *engineWindow) Width() int {
	return round(w.frame.getSize()[0])
}

func (w *engineWindow) Height() int {
	return round(w.frame.getSize()[1])
}
