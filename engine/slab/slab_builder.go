package slab

// SlabBuilderOption is a functional option for configuring a Slab.
type SlabBuilderOption func(*slabConfig)

type slabConfig struct {
	capacity int
	label    string
}

// WithCapacity sets the number of slots allocated up front. Values below 1 are ignored.
//
// Parameters:
//   - n: the initial capacity
//
// Returns:
//   - SlabBuilderOption: a function that applies the capacity option to a slab
func WithCapacity(n int) SlabBuilderOption {
	return func(c *slabConfig) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// WithLabel sets the label used for the slab's device buffers and log lines.
//
// Parameters:
//   - label: the label
//
// Returns:
//   - SlabBuilderOption: a function that applies the label option to a slab
func WithLabel(label string) SlabBuilderOption {
	return func(c *slabConfig) {
		c.label = label
	}
}
