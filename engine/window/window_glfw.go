package window

import (
	"fmt"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"
)

// glfwWindow is the GLFW side of an engineWindow.
type glfwWindow struct {
	handle  *glfw.Window
	closing bool
}

// openGLFWWindow creates a window without a client API, seeds w's frame cache from the geometry
// GLFW actually gave it and routes GLFW callbacks to w.
//
// Reference: https://www.glfw.org/docs/latest/window_guide.html
func openGLFWWindow(cfg windowConfig, w *engineWindow) (*glfwWindow, error) {
	runtime.LockOSThread()

	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize GLFW: %w", err)
	}
	// Nothing is drawn into the window.
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)

	handle, err := glfw.CreateWindow(cfg.size[0], cfg.size[1], cfg.title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("failed to create GLFW window: %w", err)
	}
	handle.SetSizeLimits(cfg.minSize[0], cfg.minSize[1], cfg.maxSize[0], cfg.maxSize[1])
	if cfg.position[0] >= 0 && cfg.position[1] >= 0 {
		handle.SetPos(cfg.position[0], cfg.position[1])
	}

	x, y := handle.GetPos()
	width, height := handle.GetSize()
	w.frame = newFrame(x, y, width, height, cfg.minSize, cfg.maxSize, cfg.opacity)
	handle.SetOpacity(w.frame.getOpacity()[0])

	gw := &glfwWindow{handle: handle}
	gw.route(w)
	return gw, nil
}

// route installs the GLFW callbacks. Position and size changes feed the frame cache so user moves
// and resizes become the new base values for animations.
func (gw *glfwWindow) route(w *engineWindow) {
	h := &w.handlers

	gw.handle.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		if key == glfw.KeyEscape && action == glfw.Press {
			gw.closing = true
			return
		}
		switch {
		case action != glfw.Release && h.keyDown != nil:
			h.keyDown(uint32(key))
		case action == glfw.Release && h.keyUp != nil:
			h.keyUp(uint32(key))
		}
	})

	// The cursor position is relative to the content area.
	gw.handle.SetMouseButtonCallback(func(win *glfw.Window, button glfw.MouseButton, action glfw.Action, _ glfw.ModifierKey) {
		if button != glfw.MouseButtonLeft || action != glfw.Press || h.mouseDown == nil {
			return
		}
		cx, cy := win.GetCursorPos()
		wx, wy := win.GetPos()
		h.mouseDown(wx+int(cx), wy+int(cy))
	})

	gw.handle.SetPosCallback(func(_ *glfw.Window, x, y int) {
		w.frame.observePosition(x, y)
	})

	gw.handle.SetSizeCallback(func(_ *glfw.Window, width, height int) {
		w.frame.observeSize(width, height)
		if h.resize != nil {
			h.resize(width, height)
		}
	})
}

func (gw *glfwWindow) apply(u frameUpdate) {
	if u.position != nil {
		gw.handle.SetPos(u.position[0], u.position[1])
	}
	if u.size != nil {
		gw.handle.SetSize(u.size[0], u.size[1])
	}
	if u.opacity != nil {
		gw.handle.SetOpacity(*u.opacity)
	}
}

func (gw *glfwWindow) poll() {
	glfw.PollEvents()
}

func (gw *glfwWindow) open() bool {
	return !gw.closing && !gw.handle.ShouldClose()
}

func (gw *glfwWindow) destroy() {
	gw.handle.Destroy()
	glfw.Terminate()
}
