// Package bind_group_provider tracks the device resources of one compute job: a buffer per kernel
// binding, a MapRead staging buffer for every binding the kernel writes back, the bind group tying
// them together and the uploads waiting for the next submission.
package bind_group_provider

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// Slot is the device state of one kernel binding.
type Slot struct {
	// Buffer is bound to the kernel.
	Buffer *wgpu.Buffer
	// Readback receives a copy of Buffer after the dispatch. Nil for bindings that are not read back.
	Readback *wgpu.Buffer
	// Generation is the generation of the host source the buffers were allocated for.
	Generation uint64
	// Size is the byte size of both buffers.
	Size uint64
}

func (s Slot) release(keep Slot) {
	if s.Buffer != nil && s.Buffer != keep.Buffer {
		s.Buffer.Release()
	}
	if s.Readback != nil && s.Readback != keep.Readback {
		s.Readback.Release()
	}
}

// upload is host data staged for a binding's buffer.
type upload struct {
	binding int
	data    []byte
}

type bindGroupProvider struct {
	label     string
	bindGroup *wgpu.BindGroup
	slots     map[int]Slot
	staged    []upload
}

// BindGroupProvider owns the device resources of a single compute job.
//
// Usage pattern:
//  1. The worker backend creates one provider per prepared job
//  2. Before each dispatch it asks Stale for every binding and calls Replace with freshly created
//     buffers when the host source was reallocated or resized, then rebuilds the bind group
//  3. The host bytes of every binding are staged with Stage and written by Flush ahead of the submit
//  4. After the dispatch, read-back bindings are copied into Slot.Readback and mapped
type BindGroupProvider interface {
	// Label returns the debug label for this provider.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// BindGroup returns the bind group for the compute pass, or nil before one was created.
	//
	// Returns:
	//   - *wgpu.BindGroup: the bind group or nil
	BindGroup() *wgpu.BindGroup

	// SetBindGroup stores a new bind group, releasing the previous one.
	//
	// Parameters:
	//   - bg: the created bind group
	SetBindGroup(bg *wgpu.BindGroup)

	// Slot returns the device state of a binding.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - Slot: the binding's buffers
	//   - bool: false if no buffers exist for the binding yet
	Slot(binding int) (Slot, bool)

	// Stale reports whether a binding needs new buffers: it has none, or they were created for a
	// different source generation or size.
	//
	// Parameters:
	//   - binding: the binding index
	//   - generation: the current source generation
	//   - size: the byte size the buffers must have
	//
	// Returns:
	//   - bool: true if the binding's buffers must be recreated
	Stale(binding int, generation, size uint64) bool

	// Replace installs new buffers for a binding, releasing whichever of the old ones are not reused.
	//
	// Parameters:
	//   - binding: the binding index
	//   - slot: the new device state
	Replace(binding int, slot Slot)

	// Stage queues host bytes to be written to the start of a binding's buffer by the next Flush.
	//
	// Parameters:
	//   - binding: the binding index
	//   - data: the bytes to upload; the slice is not copied
	Stage(binding int, data []byte)

	// Flush hands every staged upload whose binding has a buffer to write, in staging order, and
	// clears the stage.
	//
	// Parameters:
	//   - write: the queue write, usually wrapping wgpu.Queue.WriteBuffer
	//
	// Returns:
	//   - int: the number of uploads written
	Flush(write func(buf *wgpu.Buffer, offset uint64, data []byte)) int

	// Release releases the bind group and every buffer, and drops staged uploads.
	Release()
}

var _ BindGroupProvider = &bindGroupProvider{}

// NewBindGroupProvider creates an empty provider.
//
// Parameters:
//   - label: the debug label, usually the job label
//
// Returns:
//   - BindGroupProvider: the provider
func NewBindGroupProvider(label string) BindGroupProvider {
	return &bindGroupProvider{
		label: label,
		slots: make(map[int]Slot),
	}
}

func (p *bindGroupProvider) Label() string {
	return p.label
}

func (p *bindGroupProvider) BindGroup() *wgpu.BindGroup {
	return p.bindGroup
}

func (p *bindGroupProvider) SetBindGroup(bg *wgpu.BindGroup) {
	if p.bindGroup != nil && p.bindGroup != bg {
		p.bindGroup.Release()
	}
	p.bindGroup = bg
}

func (p *bindGroupProvider) Slot(binding int) (Slot, bool) {
	s, ok := p.slots[binding]
	return s, ok
}

func (p *bindGroupProvider) Stale(binding int, generation, size uint64) bool {
	s, ok := p.slots[binding]
	return !ok || s.Generation != generation || s.Size != size
}

func (p *bindGroupProvider) Replace(binding int, slot Slot) {
	if old, ok := p.slots[binding]; ok {
		old.release(slot)
	}
	p.slots[binding] = slot
}

func (p *bindGroupProvider) Stage(binding int, data []byte) {
	if len(data) == 0 {
		return
	}
	p.staged = append(p.staged, upload{binding: binding, data: data})
}

func (p *bindGroupProvider) Flush(write func(buf *wgpu.Buffer, offset uint64, data []byte)) int {
	n := 0
	for _, u := range p.staged {
		s, ok := p.slots[u.binding]
		if !ok || s.Buffer == nil {
			continue
		}
		write(s.Buffer, 0, u.data)
		n++
	}
	p.staged = p.staged[:0]
	return n
}

func (p *bindGroupProvider) Release() {
	p.SetBindGroup(nil)
	for binding, s := range p.slots {
		s.release(Slot{})
		delete(p.slots, binding)
	}
	p.staged = nil
}
