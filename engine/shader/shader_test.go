package shader

import (
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-anim/engine/kernel"
	"github.com/cogentcore/webgpu/wgpu"
)

func TestExpandDirectives(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		contains []string
		wantErr  bool
	}{
		{"plain source passes through", "let x = 1;", []string{"let x = 1;"}, false},
		{"include", "//@anim:include params", []string{"struct Params"}, false},
		{"storage array", "//@anim:group 0 0 storage_read_write springs array<spring_state>", []string{"@group(0) @binding(0) var<storage, read_write> springs: array<SpringState>;"}, false},
		{"uniform", "  //@anim:group 1 2 storage_uniform params params", []string{"@group(1) @binding(2) var<uniform> params: Params;"}, false},
		{"read only", "//@anim:group 0 3 storage_read prev array<tween_state>", []string{"var<storage, read> prev: array<TweenState>;"}, false},
		{"empty", "//@anim:", nil, true},
		{"unknown struct", "//@anim:include camera", nil, true},
		{"include arity", "//@anim:include params tween_state", nil, true},
		{"bad group index", "//@anim:group x 0 storage_uniform params params", nil, true},
		{"negative binding", "//@anim:group 0 -1 storage_uniform params params", nil, true},
		{"bad address space", "//@anim:group 0 0 private params params", nil, true},
		{"bad element", "//@anim:group 0 0 storage_read xs array<camera>", nil, true},
		{"unknown directive", "//@anim:provider 0 0 material", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := expandDirectives(tt.source)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			for _, want := range tt.contains {
				if !strings.Contains(out, want) {
					t.Errorf("output %q does not contain %q", out, want)
				}
			}
		})
	}
}

func TestExpandDirectivesIncludesOnce(t *testing.T) {
	out, err := expandDirectives("//@anim:include params\n//@anim:include params\nfn f() {}")
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(out, "struct Params"); n != 1 {
		t.Errorf("Params emitted %d times", n)
	}
	if !strings.HasSuffix(out, "fn f() {}") {
		t.Errorf("trailing source lost: %q", out)
	}
}

const layoutKernel = `
/* layout fixture */
struct Inner {
    a: vec3<f32>,
    b: f32,
}

struct Outer {
    x: f32,
    inner: Inner,   // aligned to 16
    arr: array<f32, 4u>,
    m: mat2x2f,
}

struct Input {
    @builtin(global_invocation_id) gid: vec3<u32>,
    n: u32,
}

@group(1) @binding(3) var<storage, read_write> outs: array<Outer>;
@group(1) @binding(0) var<storage> ins: array<vec4f, 8>;
@group(0) @binding(0) var<uniform> count: u32;
var<private> scratch: f32;

fn helper(v: vec4<f32>) -> f32 {
    var s = v.x;
    if (s >= 1.0) {
        s = 0.5f;
    }
    return s;
}

@compute @workgroup_size(8, 4u)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    outs[gid.x].x = helper(ins[gid.x]);
}

@compute @workgroup_size(1)
fn second() {}
`

func TestScanKernelLayout(t *testing.T) {
	s, err := NewShader("fixture", layoutKernel)
	if err != nil {
		t.Fatalf("NewShader: %v", err)
	}
	if s.EntryPoint() != "main" {
		t.Errorf("EntryPoint = %q, want the first @compute function", s.EntryPoint())
	}
	if s.WorkgroupSize() != [3]uint32{8, 4, 1} {
		t.Errorf("WorkgroupSize = %v", s.WorkgroupSize())
	}

	sizes := []struct {
		name string
		want uint64
	}{
		{"Inner", 16},
		{"Outer", 64},
		{"Input", 4},
	}
	for _, sz := range sizes {
		if got, ok := s.StructSize(sz.name); !ok || got != sz.want {
			t.Errorf("StructSize(%s) = %d, %v; want %d", sz.name, got, ok, sz.want)
		}
	}
	if _, ok := s.StructSize("Missing"); ok {
		t.Error("undeclared struct has a size")
	}

	bindings := s.Bindings()
	if len(bindings) != 3 {
		t.Fatalf("Bindings = %+v", bindings)
	}
	if b := bindings[0]; b.Group != 0 || b.Name != "count" || b.Space != "uniform" || b.Type != "u32" {
		t.Errorf("bindings[0] = %+v", b)
	}
	if b := bindings[2]; b.Group != 1 || b.Index != 3 || b.Type != "array<Outer>" {
		t.Errorf("bindings[2] = %+v", b)
	}

	desc := s.BindGroupLayoutDescriptor(1)
	if len(desc.Entries) != 2 {
		t.Fatalf("group 1 has %d entries", len(desc.Entries))
	}
	if e := desc.Entries[0]; e.Binding != 0 || e.Buffer.Type != wgpu.BufferBindingTypeReadOnlyStorage || e.Buffer.MinBindingSize != 128 {
		t.Errorf("ins entry = %+v", e)
	}
	if e := desc.Entries[1]; e.Binding != 3 || e.Buffer.Type != wgpu.BufferBindingTypeStorage || e.Buffer.MinBindingSize != 64 {
		t.Errorf("outs entry = %+v", e)
	}
	if e := desc.Entries[0]; e.Visibility != wgpu.ShaderStageCompute {
		t.Errorf("visibility = %v", e.Visibility)
	}
	if s.BindGroupVarName(1, 3) != "outs" || s.BindGroupVarName(1, 1) != "" {
		t.Error("BindGroupVarName mismatch")
	}
}

func TestScanKernelErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"no entry point", "fn f() {}"},
		{"group without binding", "@group(0) var<uniform> x: u32;\n@compute @workgroup_size(1) fn main() {}"},
		{"unknown bound type", "@group(0) @binding(0) var<uniform> x: Missing;\n@compute @workgroup_size(1) fn main() {}"},
		{"unclosed struct", "struct S { a: f32,"},
		{"recursive struct", "struct S { s: S }\n@compute @workgroup_size(1) fn main() {}"},
		{"zero workgroup", "@compute @workgroup_size(0) fn main() {}"},
		{"unsupported vector", "struct S { v: vec4<bool2> }\n@compute @workgroup_size(1) fn main() {}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewShader(tt.name, tt.source); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestKernelShaders(t *testing.T) {
	tests := []struct {
		key, source, entry, state, stateVar string
		stateSize                           uint64
	}{
		{"spring", kernel.SpringKernelSource, kernel.SpringEntryPoint, "SpringState", "springs", uint64((&kernel.GPUSpringState{}).Size())},
		{"tween", kernel.TweenKernelSource, kernel.TweenEntryPoint, "TweenState", "tweens", uint64((&kernel.GPUTweenState{}).Size())},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			s, err := NewShader(tt.key, tt.source)
			if err != nil {
				t.Fatalf("NewShader: %v", err)
			}
			if s.EntryPoint() != tt.entry {
				t.Errorf("EntryPoint = %q, want %q", s.EntryPoint(), tt.entry)
			}
			if s.WorkgroupSize() != [3]uint32{kernel.WorkgroupSize, 1, 1} {
				t.Errorf("WorkgroupSize = %v", s.WorkgroupSize())
			}
			if size, ok := s.StructSize(tt.state); !ok || size != tt.stateSize {
				t.Errorf("StructSize(%s) = %d, %v; want %d", tt.state, size, ok, tt.stateSize)
			}
			if size, ok := s.StructSize("Params"); !ok || size != uint64((&kernel.GPUParams{}).Size()) {
				t.Errorf("StructSize(Params) = %d, %v", size, ok)
			}

			desc := s.BindGroupLayoutDescriptor(0)
			if len(desc.Entries) != 2 {
				t.Fatalf("group 0 has %d entries, want 2", len(desc.Entries))
			}
			if desc.Entries[0].Buffer.Type != wgpu.BufferBindingTypeStorage || desc.Entries[0].Buffer.MinBindingSize != tt.stateSize {
				t.Errorf("binding 0 = %+v", desc.Entries[0].Buffer)
			}
			if desc.Entries[1].Buffer.Type != wgpu.BufferBindingTypeUniform || desc.Entries[1].Buffer.MinBindingSize != 16 {
				t.Errorf("binding 1 = %+v", desc.Entries[1].Buffer)
			}
			if b, ok := s.BindGroupFromVarName(0, tt.stateVar); !ok || b != 0 {
				t.Errorf("BindGroupFromVarName(%s) = %d, %v", tt.stateVar, b, ok)
			}
			if s.BindGroupVarName(0, 1) != "params" {
				t.Errorf("BindGroupVarName(0,1) = %q", s.BindGroupVarName(0, 1))
			}
			if _, ok := s.BindGroupFromVarName(3, "params"); ok {
				t.Error("undeclared group reported a binding")
			}
		})
	}
}

func TestNewShaderRejectsBadDirective(t *testing.T) {
	if _, err := NewShader("bad", "//@anim:include nothing\n@compute @workgroup_size(1) fn main() {}"); err == nil {
		t.Error("expected error for unknown include")
	}
}

func TestKernelSourceIsExpanded(t *testing.T) {
	s, err := NewShader("spring", kernel.SpringKernelSource)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(s.Source(), directivePrefix) {
		t.Error("directives left in expanded source")
	}
	if s.Module().WGSLDescriptor.Code != s.Source() || s.Module().Label != "spring" {
		t.Error("module descriptor does not carry the expanded source")
	}
}
