package common

import (
	"math"
	"testing"
)

func TestVec4Arithmetic(t *testing.T) {
	a := Vec4{1, 2, 3, 4}
	b := Vec4{0.5, -2, 1, 0}

	if got := a.Add(b); got != (Vec4{1.5, 0, 4, 4}) {
		t.Errorf("Add = %v", got)
	}
	if got := a.Sub(b); got != (Vec4{0.5, 4, 2, 4}) {
		t.Errorf("Sub = %v", got)
	}
	if got := a.Scale(2); got != (Vec4{2, 4, 6, 8}) {
		t.Errorf("Scale = %v", got)
	}
	if got := (Vec4{-1, 2, -3, 0}).Abs(); got != (Vec4{1, 2, 3, 0}) {
		t.Errorf("Abs = %v", got)
	}
	if got := (Vec4{-7, 2, 3, 0}).MaxAbs(); got != 7 {
		t.Errorf("MaxAbs = %v, want 7", got)
	}
}

func TestVec4AllWithin(t *testing.T) {
	tests := []struct {
		name  string
		v     Vec4
		limit float32
		want  bool
	}{
		{"zero", Vec4{}, 0, true},
		{"boundary inclusive", Vec4{0.01, -0.01, 0, 0}, 0.01, true},
		{"one component out", Vec4{0, 0, 0, -0.02}, 0.01, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.AllWithin(tt.limit); got != tt.want {
				t.Errorf("AllWithin(%v) = %v, want %v", tt.limit, got, tt.want)
			}
		})
	}
}

func TestVec4IsFinite(t *testing.T) {
	if !(Vec4{1, 2, 3, 4}).IsFinite() {
		t.Error("finite vector reported as non-finite")
	}
	if (Vec4{float32(math.NaN()), 0, 0, 0}).IsFinite() {
		t.Error("NaN vector reported as finite")
	}
	if (Vec4{0, float32(math.Inf(1)), 0, 0}).IsFinite() {
		t.Error("Inf vector reported as finite")
	}
}

func TestSliceToBytesAliases(t *testing.T) {
	data := []Vec4{{1, 0, 0, 0}, {0, 0, 0, 0}}
	raw := SliceToBytes(data)
	if len(raw) != 32 {
		t.Fatalf("len = %d, want 32", len(raw))
	}
	copy(raw[16:32], raw[0:16])
	if data[1] != data[0] {
		t.Errorf("write through byte view not visible: %v", data[1])
	}
	if SliceToBytes([]Vec4{}) != nil {
		t.Error("empty slice should produce nil view")
	}
}

func TestIDsAreMonotonic(t *testing.T) {
	a := NextAnimationID()
	b := NextAnimationID()
	if b <= a {
		t.Errorf("NextAnimationID not increasing: %d then %d", a, b)
	}
	o1, o2 := NewObjectID(), NewObjectID()
	if o1 == 0 || o1 == o2 {
		t.Errorf("NewObjectID not unique: %d, %d", o1, o2)
	}
}
