package window

// WindowBuilderOption configures a window before it is opened.
type WindowBuilderOption func(c *windowConfig)

// windowConfig is the initial geometry and appearance of a window.
type windowConfig struct {
	title   string
	size    [2]int
	minSize [2]int
	maxSize [2]int
	// position is the initial top-left corner; negative keeps the platform's placement.
	position [2]int
	opacity  float32
}

func defaultWindowConfig() windowConfig {
	return windowConfig{
		title:    "oxy-anim",
		size:     [2]int{640, 480},
		minSize:  [2]int{200, 150},
		maxSize:  [2]int{1600, 1200},
		position: [2]int{-1, -1},
		opacity:  1,
	}
}

// WithTitle sets the title bar text.
func WithTitle(title string) WindowBuilderOption {
	return func(c *windowConfig) {
		c.title = title
	}
}

// WithSize sets the initial size in screen coordinates.
func WithSize(width, height int) WindowBuilderOption {
	return func(c *windowConfig) {
		c.size = [2]int{width, height}
	}
}

// WithSizeLimits bounds the size the window can be resized or animated to.
//
// Parameters:
//   - minWidth, minHeight: the smallest size
//   - maxWidth, maxHeight: the largest size
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithSizeLimits(minWidth, minHeight, maxWidth, maxHeight int) WindowBuilderOption {
	return func(c *windowConfig) {
		c.minSize = [2]int{minWidth, minHeight}
		c.maxSize = [2]int{maxWidth, maxHeight}
	}
}

// WithPosition places the window's top-left corner.
func WithPosition(x, y int) WindowBuilderOption {
	return func(c *windowConfig) {
		c.position = [2]int{x, y}
	}
}

// WithOpacity sets the initial opacity, clamped to [0, 1].
func WithOpacity(opacity float32) WindowBuilderOption {
	return func(c *windowConfig) {
		c.opacity = opacity
	}
}
