package slab

import (
	"unsafe"

	"github.com/Carmen-Shannon/oxy-anim/common"
)

const defaultCapacity = 2

// slab is the implementation of the Slab interface.
type slab[K comparable, V any, M any] struct {
	label string

	// content is the slot storage. Its byte view is what gets uploaded to and read back from the device.
	content []V

	// managed maps each bound key to its slot index, keyOf is the reverse mapping (valid where bound is set).
	managed map[K]int
	keyOf   []K
	bound   []bool

	metaData map[K]M
	free     freeList

	// extent is one past the highest bound index.
	extent int

	// generation increments whenever content is reallocated.
	generation uint64
}

// Slab is a key-addressable store of fixed-size values with stable slot indices, a free list and
// doubling growth. Each value may carry host-only metadata. The value storage is a plain slice of V,
// exposed as bytes so it can be mirrored to an accelerator buffer with an identical layout.
//
// A Slab is not safe for concurrent use; the owner serializes access.
type Slab[K comparable, V any, M any] interface {
	// Add binds key to a slot holding value and meta. If key is already bound, its value and
	// metadata are overwritten in place and the index is unchanged. Otherwise the lowest free index
	// is used, growing the storage by doubling when none is free.
	//
	// Parameters:
	//   - key: the key to bind
	//   - value: the slot value
	//   - meta: host-only metadata for the key
	//
	// Returns:
	//   - int: the slot index of key
	Add(key K, value V, meta M) int

	// Remove unbinds key, drops its metadata and returns its index to the free list.
	// The slot value is left as is. Removing an absent key does nothing.
	//
	// Parameters:
	//   - key: the key to unbind
	//
	// Returns:
	//   - bool: true if the key was bound
	Remove(key K) bool

	// Resize grows the storage to at least n slots, preserving every slot value and index.
	// It never shrinks. Each reallocation increments Generation.
	//
	// Parameters:
	//   - n: the minimum capacity
	Resize(n int)

	// IndexOf returns the slot index bound to key.
	//
	// Parameters:
	//   - key: the key to look up
	//
	// Returns:
	//   - int: the slot index
	//   - bool: false if the key is not bound
	IndexOf(key K) (int, bool)

	// Value returns a pointer to the slot bound to key. The pointer is valid until the next Resize.
	//
	// Parameters:
	//   - key: the key to look up
	//
	// Returns:
	//   - *V: the slot value
	//   - bool: false if the key is not bound
	Value(key K) (*V, bool)

	// At returns a pointer to the slot at index if that slot is bound.
	//
	// Parameters:
	//   - index: the slot index
	//
	// Returns:
	//   - *V: the slot value
	//   - bool: false if index is out of range or unbound
	At(index int) (*V, bool)

	// MetaData returns the metadata stored with key.
	//
	// Parameters:
	//   - key: the key to look up
	//
	// Returns:
	//   - M: the metadata
	//   - bool: false if the key is not bound
	MetaData(key K) (M, bool)

	// Count returns the number of bound keys.
	Count() int

	// Capacity returns the number of allocated slots.
	Capacity() int

	// Extent returns one past the highest bound index, the number of slots a batch operation has to visit.
	Extent() int

	// Each calls fn for every bound key and its index, in unspecified order.
	// fn must not add or remove keys.
	//
	// Parameters:
	//   - fn: the visitor
	Each(fn func(key K, index int))

	// Keys returns the bound keys in unspecified order.
	Keys() []K

	// Content returns the slot storage. The slice is invalidated by Resize.
	Content() []V

	// Bytes returns a byte view aliasing the whole slot storage. Writes through it modify the slots.
	Bytes() []byte

	// ElementSize returns the size of one slot in bytes.
	ElementSize() int

	// Generation returns a counter incremented on every reallocation of the storage.
	Generation() uint64

	// Label returns the slab's label.
	Label() string

	// Clear unbinds every key and frees every slot, keeping the allocated storage.
	Clear()
}

var _ Slab[int, float32, struct{}] = &slab[int, float32, struct{}]{}

// NewSlab creates a new Slab with the provided options applied.
//
// Parameters:
//   - options: variadic list of SlabBuilderOption functions to configure the slab
//
// Returns:
//   - Slab[K, V, M]: the newly created slab
func NewSlab[K comparable, V any, M any](options ...SlabBuilderOption) Slab[K, V, M] {
	cfg := slabConfig{capacity: defaultCapacity, label: "slab"}
	for _, opt := range options {
		opt(&cfg)
	}

	s := &slab[K, V, M]{
		label:    cfg.label,
		managed:  make(map[K]int),
		metaData: make(map[K]M),
	}
	s.Resize(cfg.capacity)
	return s
}

func (s *slab[K, V, M]) Add(key K, value V, meta M) int {
	if i, ok := s.managed[key]; ok {
		s.content[i] = value
		s.metaData[key] = meta
		return i
	}

	i, ok := s.free.take()
	if !ok {
		s.Resize(max(len(s.content), 1) * 2)
		i, _ = s.free.take()
	}

	s.managed[key] = i
	s.metaData[key] = meta
	s.keyOf[i] = key
	s.bound[i] = true
	s.content[i] = value
	s.extent = max(s.extent, i+1)
	return i
}

func (s *slab[K, V, M]) Remove(key K) bool {
	i, ok := s.managed[key]
	if !ok {
		return false
	}

	delete(s.managed, key)
	delete(s.metaData, key)
	var zero K
	s.keyOf[i] = zero
	s.bound[i] = false
	s.free.put(i)

	if i+1 == s.extent {
		for s.extent > 0 && !s.bound[s.extent-1] {
			s.extent--
		}
	}
	return true
}

func (s *slab[K, V, M]) Resize(n int) {
	oldSize := len(s.content)
	if n <= oldSize {
		return
	}

	content := make([]V, n)
	copy(content, s.content)
	s.content = content

	keyOf := make([]K, n)
	copy(keyOf, s.keyOf)
	s.keyOf = keyOf

	bound := make([]bool, n)
	copy(bound, s.bound)
	s.bound = bound

	for i := oldSize; i < n; i++ {
		s.free.put(i)
	}
	s.generation++
}

func (s *slab[K, V, M]) IndexOf(key K) (int, bool) {
	i, ok := s.managed[key]
	return i, ok
}

func (s *slab[K, V, M]) Value(key K) (*V, bool) {
	i, ok := s.managed[key]
	if !ok {
		return nil, false
	}
	return &s.content[i], true
}

func (s *slab[K, V, M]) At(index int) (*V, bool) {
	if index < 0 || index >= len(s.content) || !s.bound[index] {
		return nil, false
	}
	return &s.content[index], true
}

func (s *slab[K, V, M]) MetaData(key K) (M, bool) {
	m, ok := s.metaData[key]
	return m, ok
}

func (s *slab[K, V, M]) Count() int {
	return len(s.managed)
}

func (s *slab[K, V, M]) Capacity() int {
	return len(s.content)
}

func (s *slab[K, V, M]) Extent() int {
	return s.extent
}

func (s *slab[K, V, M]) Each(fn func(key K, index int)) {
	for k, i := range s.managed {
		fn(k, i)
	}
}

func (s *slab[K, V, M]) Keys() []K {
	keys := make([]K, 0, len(s.managed))
	for k := range s.managed {
		keys = append(keys, k)
	}
	return keys
}

func (s *slab[K, V, M]) Content() []V {
	return s.content
}

func (s *slab[K, V, M]) Bytes() []byte {
	return common.SliceToBytes(s.content)
}

func (s *slab[K, V, M]) ElementSize() int {
	var zero V
	return int(unsafe.Sizeof(zero))
}

func (s *slab[K, V, M]) Generation() uint64 {
	return s.generation
}

func (s *slab[K, V, M]) Label() string {
	return s.label
}

func (s *slab[K, V, M]) Clear() {
	clear(s.managed)
	clear(s.metaData)
	clear(s.keyOf)
	clear(s.bound)
	s.free = s.free[:0]
	for i := range s.content {
		s.free.put(i)
	}
	s.extent = 0
}
