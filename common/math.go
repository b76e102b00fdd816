package common

import (
	"math"
	"unsafe"
)

// Vec4 is the 4-component float32 vector every animatable property is encoded as.
// It has the same memory layout as a WGSL vec4<f32>.
type Vec4 [4]float32

// Add returns the component-wise sum v + o.
func (v Vec4) Add(o Vec4) Vec4 {
	return Vec4{v[0] + o[0], v[1] + o[1], v[2] + o[2], v[3] + o[3]}
}

// Sub returns the component-wise difference v - o.
func (v Vec4) Sub(o Vec4) Vec4 {
	return Vec4{v[0] - o[0], v[1] - o[1], v[2] - o[2], v[3] - o[3]}
}

// Scale returns v multiplied by the scalar s.
func (v Vec4) Scale(s float32) Vec4 {
	return Vec4{v[0] * s, v[1] * s, v[2] * s, v[3] * s}
}

// Abs returns the component-wise absolute value of v.
func (v Vec4) Abs() Vec4 {
	return Vec4{abs32(v[0]), abs32(v[1]), abs32(v[2]), abs32(v[3])}
}

// MaxAbs returns the largest absolute component of v.
//
// Returns:
//   - float32: max(|x|, |y|, |z|, |w|)
func (v Vec4) MaxAbs() float32 {
	a := v.Abs()
	return max(a[0], a[1], a[2], a[3])
}

// AllWithin reports whether every component of v has an absolute value less than or equal to limit.
//
// Parameters:
//   - limit: the inclusive per-component bound
//
// Returns:
//   - bool: true if |v[i]| <= limit for all four components
func (v Vec4) AllWithin(limit float32) bool {
	for _, c := range v {
		if abs32(c) > limit {
			return false
		}
	}
	return true
}

// ApproxEqual reports whether v and o differ by at most eps in every component.
//
// Parameters:
//   - o: the vector to compare against
//   - eps: the allowed absolute difference per component
//
// Returns:
//   - bool: true if the vectors are equal within eps
func (v Vec4) ApproxEqual(o Vec4, eps float32) bool {
	return v.Sub(o).AllWithin(eps)
}

// IsFinite reports whether no component of v is NaN or infinite.
func (v Vec4) IsFinite() bool {
	for _, c := range v {
		f := float64(c)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

func abs32(f float32) float32 {
	return math.Float32frombits(math.Float32bits(f) &^ (1 << 31))
}

// SliceToBytes converts any slice to a byte slice for GPU buffer uploads.
// Uses unsafe pointer operations to create a view of the same memory.
// WARNING: The returned slice shares memory with the input. Writing to it writes the source elements.
//
// Parameters:
//   - data: source slice of any type
//
// Returns:
//   - []byte: byte slice view of the input data, or nil if input is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	size := unsafe.Sizeof(zero)
	totalBytes := int(size) * len(data)
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), totalBytes)
}

// StructToBytes reinterprets a pointer to a struct as a raw byte slice using unsafe.
// The returned slice has length equal to the struct's size in memory.
//
// Parameters:
//   - v: pointer to the struct to reinterpret
//
// Returns:
//   - []byte: byte slice view of the struct's memory
func StructToBytes[T any](v *T) []byte {
	size := unsafe.Sizeof(*v)
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), int(size))
}
