package worker

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-anim/engine/shader"
)

// BufferSource is a block of host memory mirrored into a device buffer. Every slab implements it.
type BufferSource interface {
	// Label returns the label used for the device buffers created from this source.
	Label() string

	// Bytes returns the host memory. Uploads read from it and readbacks write into it.
	Bytes() []byte

	// Extent returns the number of elements a dispatch has to visit.
	Extent() int

	// Capacity returns the number of elements allocated.
	Capacity() int

	// ElementSize returns the size of one element in bytes.
	ElementSize() int

	// Generation returns a counter that changes whenever Bytes is reallocated.
	Generation() uint64
}

// Binding attaches a BufferSource to a kernel variable declared with an //@anim:group annotation.
type Binding struct {
	Name   string
	Source BufferSource
}

// Job is one kernel the worker runs on every Process call.
//
// Bindings[0] is the primary read_write storage binding, its extent sizes the dispatch.
// Fallback runs the same computation on the host for elements [start, end) of the primary binding.
type Job struct {
	Label    string
	Shader   shader.Shader
	Bindings []Binding
	Fallback func(start, end int)
}

// Primary returns the job's primary buffer source, or nil if the job has no bindings.
func (j *Job) Primary() BufferSource {
	if len(j.Bindings) == 0 {
		return nil
	}
	return j.Bindings[0].Source
}

// Extent returns the primary binding's extent, or 0 if the job has no bindings.
func (j *Job) Extent() int {
	if p := j.Primary(); p != nil {
		return p.Extent()
	}
	return 0
}

// WorkgroupCount returns the number of workgroups needed to cover the primary extent.
func (j *Job) WorkgroupCount() uint32 {
	width := uint32(1)
	if j.Shader != nil {
		width = max(j.Shader.WorkgroupSize()[0], 1)
	}
	n := uint32(j.Extent())
	return (n + width - 1) / width
}

// Validate checks the job is complete and, when it carries a shader, that every binding names a
// variable the shader declares in group 0.
func (j *Job) Validate() error {
	if j.Label == "" {
		return errors.New("job has no label")
	}
	if j.Fallback == nil {
		return fmt.Errorf("job %s has no fallback", j.Label)
	}
	if len(j.Bindings) == 0 {
		return fmt.Errorf("job %s has no bindings", j.Label)
	}
	for _, b := range j.Bindings {
		if b.Source == nil {
			return fmt.Errorf("job %s: binding %s has no source", j.Label, b.Name)
		}
		if j.Shader == nil {
			continue
		}
		if _, ok := j.Shader.BindGroupFromVarName(0, b.Name); !ok {
			return fmt.Errorf("job %s: shader %s declares no variable %s", j.Label, j.Shader.Key(), b.Name)
		}
	}
	return nil
}
