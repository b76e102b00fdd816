// Package shader prepares the WGSL compute kernels the worker dispatches. A kernel is written with
// //@anim: directives that pull in the slab struct definitions and declare its buffers; NewShader
// expands them and scans the result for the entry point, workgroup size, struct layouts and
// bind group layout the compute pipeline needs.
package shader

import (
	"fmt"
	"slices"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// shader is the implementation of the Shader interface.
type shader struct {
	key    string
	source string
	layout *kernelLayout
	sizes  map[string]uint64
	groups map[int]wgpu.BindGroupLayoutDescriptor
	module *wgpu.ShaderModuleDescriptor
}

// Shader is an expanded and scanned WGSL compute kernel. It exposes what a compute pipeline
// needs to run the kernel and what the worker needs to bind slab buffers to it by name.
type Shader interface {
	// Key retrieves the unique identifier for this kernel, used as the pipeline label.
	//
	// Returns:
	//   - string: the kernel's unique key
	Key() string

	// Source retrieves the expanded WGSL source code.
	//
	// Returns:
	//   - string: the WGSL source with every directive replaced
	Source() string

	// EntryPoint returns the name of the @compute function.
	//
	// Returns:
	//   - string: the entry point name
	EntryPoint() string

	// WorkgroupSize returns the workgroup size of the entry point. Omitted dimensions are 1.
	//
	// Returns:
	//   - [3]uint32: the workgroup size as [x, y, z]
	WorkgroupSize() [3]uint32

	// BindGroupLayoutDescriptor builds the compute-visible layout of one bind group, entries
	// ordered by binding index.
	//
	// Parameters:
	//   - group: the bind group index
	//
	// Returns:
	//   - wgpu.BindGroupLayoutDescriptor: the descriptor, empty if the kernel declares nothing in the group
	BindGroupLayoutDescriptor(group int) wgpu.BindGroupLayoutDescriptor

	// BindGroupVarName retrieves the variable name bound at a group and binding index.
	//
	// Parameters:
	//   - group: the bind group index
	//   - binding: the binding index within the group
	//
	// Returns:
	//   - string: the variable name, or an empty string if nothing is bound there
	BindGroupVarName(group, binding int) string

	// BindGroupFromVarName retrieves the binding index of a variable within a group.
	//
	// Parameters:
	//   - group: the bind group index
	//   - varName: the variable name
	//
	// Returns:
	//   - int: the binding index, or -1 if not found
	//   - bool: true if the variable is declared in the group
	BindGroupFromVarName(group int, varName string) (int, bool)

	// Bindings returns every resource variable the kernel declares, ordered by group then binding.
	//
	// Returns:
	//   - []Binding: the declared bindings
	Bindings() []Binding

	// StructSize returns the host-shareable size in bytes of a struct declared in the kernel.
	//
	// Parameters:
	//   - name: the WGSL struct name, e.g. "TweenState"
	//
	// Returns:
	//   - uint64: the struct size in bytes
	//   - bool: false if the kernel declares no such struct
	StructSize(name string) (uint64, bool)

	// Module returns the shader module descriptor for the expanded source.
	//
	// Returns:
	//   - *wgpu.ShaderModuleDescriptor: the shader module descriptor
	Module() *wgpu.ShaderModuleDescriptor
}

var _ Shader = &shader{}

// NewShader expands and scans an annotated compute kernel.
//
// Parameters:
//   - key: a unique identifier for the kernel
//   - source: the WGSL source with //@anim: directives
//
// Returns:
//   - Shader: the scanned kernel
//   - error: an error if a directive is malformed, the source cannot be scanned, a bound type has no
//     layout, or there is no @compute entry point
func NewShader(key string, source string) (Shader, error) {
	expanded, err := expandDirectives(source)
	if err != nil {
		return nil, fmt.Errorf("kernel %s: %w", key, err)
	}
	layout, err := scanKernel(expanded)
	if err != nil {
		return nil, fmt.Errorf("kernel %s: %w", key, err)
	}
	if layout.entryPoint == "" {
		return nil, fmt.Errorf("kernel %s has no @compute entry point", key)
	}

	s := &shader{
		key:    key,
		source: expanded,
		layout: layout,
		sizes:  make(map[string]uint64, len(layout.structs)),
		groups: make(map[int]wgpu.BindGroupLayoutDescriptor),
		module: &wgpu.ShaderModuleDescriptor{
			Label:          key,
			WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: expanded},
		},
	}

	types := newLayouts(layout.structs)
	for name := range layout.structs {
		l, err := types.structLayout(name)
		if err != nil {
			return nil, fmt.Errorf("kernel %s: %w", key, err)
		}
		s.sizes[name] = l.size
	}

	slices.SortFunc(layout.bindings, func(a, b Binding) int {
		if a.Group != b.Group {
			return a.Group - b.Group
		}
		return a.Index - b.Index
	})
	for _, b := range layout.bindings {
		entry, err := layoutEntry(b, types)
		if err != nil {
			return nil, fmt.Errorf("kernel %s: %w", key, err)
		}
		desc := s.groups[b.Group]
		desc.Label = fmt.Sprintf("%s group %d", key, b.Group)
		desc.Entries = append(desc.Entries, entry)
		s.groups[b.Group] = desc
	}
	return s, nil
}

// layoutEntry describes one buffer binding to a compute stage. Runtime-sized arrays need room for at
// least one element.
func layoutEntry(b Binding, types *layouts) (wgpu.BindGroupLayoutEntry, error) {
	entry := wgpu.BindGroupLayoutEntry{
		Binding:    uint32(b.Index),
		Visibility: wgpu.ShaderStageCompute,
	}
	switch {
	case b.Space == "uniform":
		entry.Buffer.Type = wgpu.BufferBindingTypeUniform
	case b.Space == "storage" || b.Space == "storage, read":
		entry.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
	case b.Space == "storage, read_write":
		entry.Buffer.Type = wgpu.BufferBindingTypeStorage
	default:
		return entry, fmt.Errorf("binding %s: unsupported address space %q", b.Name, b.Space)
	}

	l, err := types.of(b.typ)
	if err != nil {
		return entry, fmt.Errorf("binding %s: %w", b.Name, err)
	}
	entry.Buffer.MinBindingSize = l.size
	return entry, nil
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) EntryPoint() string {
	return s.layout.entryPoint
}

func (s *shader) WorkgroupSize() [3]uint32 {
	return s.layout.workgroup
}

func (s *shader) BindGroupLayoutDescriptor(group int) wgpu.BindGroupLayoutDescriptor {
	return s.groups[group]
}

func (s *shader) BindGroupVarName(group, binding int) string {
	for _, b := range s.layout.bindings {
		if b.Group == group && b.Index == binding {
			return b.Name
		}
	}
	return ""
}

func (s *shader) BindGroupFromVarName(group int, varName string) (int, bool) {
	for _, b := range s.layout.bindings {
		if b.Group == group && b.Name == varName {
			return b.Index, true
		}
	}
	return -1, false
}

func (s *shader) Bindings() []Binding {
	return slices.Clone(s.layout.bindings)
}

func (s *shader) StructSize(name string) (uint64, bool) {
	size, ok := s.sizes[name]
	return size, ok
}

func (s *shader) Module() *wgpu.ShaderModuleDescriptor {
	return s.module
}

// String summarizes the kernel for logs.
func (s *shader) String() string {
	names := make([]string, 0, len(s.layout.bindings))
	for _, b := range s.layout.bindings {
		names = append(names, fmt.Sprintf("%d.%d %s", b.Group, b.Index, b.Name))
	}
	return fmt.Sprintf("%s(%s @ %v) [%s]", s.key, s.layout.entryPoint, s.layout.workgroup, strings.Join(names, ", "))
}
