package bind_group_provider

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
)

func TestStale(t *testing.T) {
	p := NewBindGroupProvider("springs")
	if p.Label() != "springs" {
		t.Errorf("Label = %q", p.Label())
	}
	if _, ok := p.Slot(0); ok {
		t.Error("Slot reported a binding with no buffers")
	}

	tests := []struct {
		name       string
		generation uint64
		size       uint64
		want       bool
	}{
		{"same generation and size", 3, 160, false},
		{"new generation", 4, 160, true},
		{"resized", 3, 320, true},
	}
	p.Replace(1, Slot{Generation: 3, Size: 160})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Stale(1, tt.generation, tt.size); got != tt.want {
				t.Errorf("Stale = %v, want %v", got, tt.want)
			}
		})
	}
	if !p.Stale(0, 0, 0) {
		t.Error("a binding without buffers is not stale")
	}

	p.Release()
	if _, ok := p.Slot(1); ok {
		t.Error("Release left slots behind")
	}
}

func TestStageAndFlush(t *testing.T) {
	p := NewBindGroupProvider("tweens")
	p.Stage(0, []byte{1, 2})
	p.Stage(1, nil)
	p.Stage(2, []byte{3})

	// Binding 0 has no buffer yet, so only binding 2 is written.
	p.Replace(2, Slot{Buffer: &wgpu.Buffer{}, Size: 1})
	var written [][]byte
	n := p.Flush(func(buf *wgpu.Buffer, offset uint64, data []byte) {
		if offset != 0 {
			t.Errorf("offset = %d", offset)
		}
		written = append(written, data)
	})
	if n != 1 || len(written) != 1 || written[0][0] != 3 {
		t.Errorf("Flush wrote %d uploads: %v", n, written)
	}
	if n := p.Flush(func(*wgpu.Buffer, uint64, []byte) { t.Error("stage was not cleared") }); n != 0 {
		t.Errorf("second Flush wrote %d", n)
	}
}
