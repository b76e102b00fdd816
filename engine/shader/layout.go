package shader

import (
	"fmt"
	"strings"
)

// typeLayout is the size and alignment of a WGSL type in host-shareable memory.
//
// Reference: https://www.w3.org/TR/WGSL/#alignment-and-size
type typeLayout struct {
	size  uint64
	align uint64
}

// stride is the distance between consecutive array elements of this type.
func (l typeLayout) stride() uint64 {
	return alignUp(l.size, l.align)
}

func alignUp(v, align uint64) uint64 {
	if align == 0 {
		return v
	}
	return (v + align - 1) / align * align
}

func scalarLayout(name string) (typeLayout, bool) {
	switch name {
	case "f32", "i32", "u32", "bool":
		return typeLayout{4, 4}, true
	case "f16":
		return typeLayout{2, 2}, true
	}
	return typeLayout{}, false
}

// vectorLayout lays out an n-component vector of the given scalar. Three-component vectors
// align like four-component ones.
func vectorLayout(n uint64, scalar typeLayout) typeLayout {
	align := scalar.size * n
	if n == 3 {
		align = scalar.size * 4
	}
	return typeLayout{scalar.size * n, align}
}

// shorthandScalars maps the suffix of predeclared aliases like vec4f or mat4x4f to their scalar.
var shorthandScalars = map[byte]string{'f': "f32", 'i': "i32", 'u': "u32", 'h': "f16"}

// layouts resolves and memoizes type layouts for the structs of one kernel.
type layouts struct {
	structs  map[string][]structField
	resolved map[string]typeLayout
	visiting map[string]bool
}

func newLayouts(structs map[string][]structField) *layouts {
	return &layouts{
		structs:  structs,
		resolved: make(map[string]typeLayout, len(structs)),
		visiting: make(map[string]bool),
	}
}

func (l *layouts) of(t typeRef) (typeLayout, error) {
	if s, ok := scalarLayout(t.name); ok {
		return s, nil
	}

	switch {
	case t.name == "atomic":
		if len(t.params) != 1 {
			return typeLayout{}, fmt.Errorf("atomic needs one type parameter")
		}
		return l.of(t.params[0])
	case t.name == "array":
		if len(t.params) != 1 {
			return typeLayout{}, fmt.Errorf("array needs an element type")
		}
		elem, err := l.of(t.params[0])
		if err != nil {
			return typeLayout{}, err
		}
		if t.count == 0 {
			// runtime-sized: one element
			return typeLayout{elem.stride(), elem.align}, nil
		}
		return typeLayout{t.count * elem.stride(), elem.align}, nil
	case len(t.name) >= 4 && strings.HasPrefix(t.name, "vec"):
		n := uint64(t.name[3] - '0')
		if n < 2 || n > 4 {
			break
		}
		scalar, err := l.componentScalar(t, 4)
		if err != nil {
			return typeLayout{}, err
		}
		return vectorLayout(n, scalar), nil
	case len(t.name) >= 6 && strings.HasPrefix(t.name, "mat") && t.name[4] == 'x':
		cols, rows := uint64(t.name[3]-'0'), uint64(t.name[5]-'0')
		if cols < 2 || cols > 4 || rows < 2 || rows > 4 {
			break
		}
		scalar, err := l.componentScalar(t, 6)
		if err != nil {
			return typeLayout{}, err
		}
		column := vectorLayout(rows, scalar)
		return typeLayout{cols * column.stride(), column.align}, nil
	}

	return l.structLayout(t.name)
}

// componentScalar finds the scalar of a vector or matrix written either as vec4<f32> or as vec4f,
// where prefixLen is the length of the name before any shorthand suffix.
func (l *layouts) componentScalar(t typeRef, prefixLen int) (typeLayout, error) {
	var scalarName string
	switch {
	case len(t.params) == 1 && len(t.name) == prefixLen:
		scalarName = t.params[0].name
	case len(t.params) == 0 && len(t.name) == prefixLen+1:
		scalarName = shorthandScalars[t.name[prefixLen]]
	}
	s, ok := scalarLayout(scalarName)
	if !ok {
		return typeLayout{}, fmt.Errorf("unsupported type %s", t)
	}
	return s, nil
}

// structLayout places each field at the next offset aligned for it and rounds the total up to the
// largest field alignment.
func (l *layouts) structLayout(name string) (typeLayout, error) {
	if r, ok := l.resolved[name]; ok {
		return r, nil
	}
	fields, ok := l.structs[name]
	if !ok {
		return typeLayout{}, fmt.Errorf("unknown type %s", name)
	}
	if l.visiting[name] {
		return typeLayout{}, fmt.Errorf("struct %s contains itself", name)
	}
	l.visiting[name] = true
	defer delete(l.visiting, name)

	var offset uint64
	align := uint64(1)
	for _, f := range fields {
		if f.builtin {
			continue
		}
		fl, err := l.of(f.typ)
		if err != nil {
			return typeLayout{}, fmt.Errorf("struct %s field %s: %w", name, f.name, err)
		}
		offset = alignUp(offset, fl.align) + fl.size
		align = max(align, fl.align)
	}

	r := typeLayout{alignUp(offset, align), align}
	l.resolved[name] = r
	return r, nil
}
