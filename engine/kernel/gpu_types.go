package kernel

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-anim/common"
)

// SpringKernelSource is the annotated WGSL compute kernel integrating every running spring slot.
// It must be run through the shader pre-processor before compilation.
//
//go:embed assets/spring.wgsl
var SpringKernelSource string

// TweenKernelSource is the annotated WGSL compute kernel advancing every running tween slot.
// It must be run through the shader pre-processor before compilation.
//
//go:embed assets/tween.wgsl
var TweenKernelSource string

const (
	// SpringEntryPoint is the compute entry point of SpringKernelSource.
	SpringEntryPoint = "spring_animate"

	// TweenEntryPoint is the compute entry point of TweenKernelSource.
	TweenEntryPoint = "tween_animate"

	// WorkgroupSize is the @workgroup_size shared by both kernels.
	WorkgroupSize = 64
)

// GPUSpringStateSource is the canonical WGSL definition of the SpringState struct.
// Matches GPUSpringState layout exactly (64 bytes, std430 aligned).
//
//go:embed assets/spring_state.wgsl
var GPUSpringStateSource string

// GPUSpringState is the GPU-aligned state of one spring slot.
// Matches the WGSL SpringState struct layout exactly (see GPUSpringStateSource).
// Size: 64 bytes (3 × vec4 + 3 × f32 + u32, std430 aligned).
type GPUSpringState struct {
	Current   common.Vec4 // offset 0
	Target    common.Vec4 // offset 16: absolute target
	Velocity  common.Vec4 // offset 32
	Threshold float32     // offset 48: settle bound on |diff| and |velocity|
	Stiffness float32     // offset 52
	Damping   float32     // offset 56
	Running   uint32      // offset 60: 1 while integrating, 0 once settled
}

// NewSpringState builds a running spring slot.
//
// Parameters:
//   - current: the starting value
//   - target: the absolute target value
//   - velocity: the starting velocity
//   - stiffness: the spring constant
//   - damping: the damping coefficient
//   - threshold: the settle bound
//
// Returns:
//   - GPUSpringState: the initialized slot
func NewSpringState(current, target, velocity common.Vec4, stiffness, damping, threshold float32) GPUSpringState {
	return GPUSpringState{
		Current:   current,
		Target:    target,
		Velocity:  velocity,
		Threshold: threshold,
		Stiffness: stiffness,
		Damping:   damping,
		Running:   1,
	}
}

// IsRunning reports whether the slot is still integrating.
func (g *GPUSpringState) IsRunning() bool {
	return g.Running != 0
}

// Size returns the size of the GPUSpringState struct in bytes.
//
// Returns:
//   - int: The size of the struct in bytes.
func (g *GPUSpringState) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUSpringState struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 64-byte buffer ready for GPU upload.
func (g *GPUSpringState) Marshal() []byte {
	buf := make([]byte, 64)
	putVec4(buf[0:16], g.Current)
	putVec4(buf[16:32], g.Target)
	putVec4(buf[32:48], g.Velocity)
	binary.LittleEndian.PutUint32(buf[48:52], math.Float32bits(g.Threshold))
	binary.LittleEndian.PutUint32(buf[52:56], math.Float32bits(g.Stiffness))
	binary.LittleEndian.PutUint32(buf[56:60], math.Float32bits(g.Damping))
	binary.LittleEndian.PutUint32(buf[60:64], g.Running)
	return buf
}

// GPUTweenStateSource is the canonical WGSL definition of the TweenState struct.
// Matches GPUTweenState layout exactly (80 bytes, std430 aligned).
//
//go:embed assets/tween_state.wgsl
var GPUTweenStateSource string

// GPUTweenState is the GPU-aligned state of one tween slot.
// Current, Target and Previous are deltas from the property value at registration, not absolute values.
// Matches the WGSL TweenState struct layout exactly (see GPUTweenStateSource).
// Size: 80 bytes (3 × vec4 + 2 × f32 + 3 × u32 + 3 × u32 pad, std430 aligned).
type GPUTweenState struct {
	Current   common.Vec4 // offset 0
	Target    common.Vec4 // offset 16: delta the tween covers
	Previous  common.Vec4 // offset 32: Current of the prior step
	Elapsed   float32     // offset 48
	Duration  float32     // offset 52
	CurveType uint32      // offset 56: curve.TweenType
	CurveEase uint32      // offset 60: curve.EaseType
	Running   uint32      // offset 64
	_pad0     uint32      // offset 68
	_pad1     uint32      // offset 72
	_pad2     uint32      // offset 76
}

// IsRunning reports whether the slot is still advancing.
func (g *GPUTweenState) IsRunning() bool {
	return g.Running != 0
}

// Size returns the size of the GPUTweenState struct in bytes.
//
// Returns:
//   - int: The size of the struct in bytes.
func (g *GPUTweenState) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUTweenState struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 80-byte buffer ready for GPU upload.
func (g *GPUTweenState) Marshal() []byte {
	buf := make([]byte, 80)
	putVec4(buf[0:16], g.Current)
	putVec4(buf[16:32], g.Target)
	putVec4(buf[32:48], g.Previous)
	binary.LittleEndian.PutUint32(buf[48:52], math.Float32bits(g.Elapsed))
	binary.LittleEndian.PutUint32(buf[52:56], math.Float32bits(g.Duration))
	binary.LittleEndian.PutUint32(buf[56:60], g.CurveType)
	binary.LittleEndian.PutUint32(buf[60:64], g.CurveEase)
	binary.LittleEndian.PutUint32(buf[64:68], g.Running)
	// 68..80 padding stays zero
	return buf
}

// GPUParamsSource is the canonical WGSL definition of the Params struct.
// Matches GPUParams layout exactly (16 bytes, std430 aligned).
//
//go:embed assets/params.wgsl
var GPUParamsSource string

// GPUParams is the per-dispatch uniform shared by both kernels.
// Size: 16 bytes.
type GPUParams struct {
	DeltaTime   float32 // offset 0: seconds accumulated since the previous dispatch
	SpringCount uint32  // offset 4: spring dispatch extent
	TweenCount  uint32  // offset 8: tween dispatch extent
	_pad0       uint32  // offset 12
}

// Size returns the size of the GPUParams struct in bytes.
//
// Returns:
//   - int: The size of the struct in bytes.
func (g *GPUParams) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUParams struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 16-byte buffer ready for GPU upload.
func (g *GPUParams) Marshal() []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(g.DeltaTime))
	binary.LittleEndian.PutUint32(buf[4:8], g.SpringCount)
	binary.LittleEndian.PutUint32(buf[8:12], g.TweenCount)
	binary.LittleEndian.PutUint32(buf[12:16], 0) // _pad0
	return buf
}

func putVec4(dst []byte, v common.Vec4) {
	for i := range 4 {
		binary.LittleEndian.PutUint32(dst[i*4:(i+1)*4], math.Float32bits(v[i]))
	}
}
