package slab

import (
	"math/rand"
	"testing"
)

type testValue struct {
	A, B float32
}

func TestAddAssignsLowestFreeIndex(t *testing.T) {
	s := NewSlab[string, testValue, int](WithCapacity(4), WithLabel("test"))
	if s.Label() != "test" || s.Capacity() != 4 {
		t.Fatalf("label=%q capacity=%d", s.Label(), s.Capacity())
	}
	for i, k := range []string{"a", "b", "c"} {
		if got := s.Add(k, testValue{A: float32(i)}, i); got != i {
			t.Errorf("Add(%q) = %d, want %d", k, got, i)
		}
	}
	s.Remove("a")
	if got := s.Add("d", testValue{}, 0); got != 0 {
		t.Errorf("freed index 0 not reused first, got %d", got)
	}
}

func TestAddExistingKeyOverwritesInPlace(t *testing.T) {
	s := NewSlab[string, testValue, string]()
	i := s.Add("k", testValue{A: 1}, "first")
	j := s.Add("k", testValue{A: 2}, "second")
	if i != j {
		t.Fatalf("index changed on overwrite: %d -> %d", i, j)
	}
	v, ok := s.Value("k")
	if !ok || v.A != 2 {
		t.Errorf("Value = %+v, %v", v, ok)
	}
	if m, _ := s.MetaData("k"); m != "second" {
		t.Errorf("MetaData = %q, want second", m)
	}
	if s.Count() != 1 {
		t.Errorf("Count = %d, want 1", s.Count())
	}
}

func TestGrowthDoublesAndPreservesContents(t *testing.T) {
	s := NewSlab[int, testValue, struct{}](WithCapacity(2))
	gen := s.Generation()
	for k := range 5 {
		s.Add(k, testValue{A: float32(k), B: -float32(k)}, struct{}{})
	}
	if s.Capacity() != 8 {
		t.Errorf("Capacity = %d, want 8 after two doublings", s.Capacity())
	}
	if s.Generation() != gen+2 {
		t.Errorf("Generation = %d, want %d", s.Generation(), gen+2)
	}
	for k := range 5 {
		i, ok := s.IndexOf(k)
		if !ok || i != k {
			t.Errorf("IndexOf(%d) = %d, %v", k, i, ok)
		}
		if v, _ := s.At(i); v.A != float32(k) || v.B != -float32(k) {
			t.Errorf("slot %d = %+v", i, v)
		}
	}
	s.Resize(4)
	if s.Capacity() != 8 {
		t.Error("Resize shrank the slab")
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	s := NewSlab[string, testValue, int]()
	if s.Remove("missing") {
		t.Error("Remove of absent key reported true")
	}
	s.Add("x", testValue{A: 7}, 1)
	i, _ := s.IndexOf("x")
	if !s.Remove("x") {
		t.Error("Remove of bound key reported false")
	}
	if s.Remove("x") {
		t.Error("second Remove reported true")
	}
	if _, ok := s.MetaData("x"); ok {
		t.Error("metadata survived removal")
	}
	if _, ok := s.At(i); ok {
		t.Error("At reported a freed slot as bound")
	}
	if s.Content()[i].A != 7 {
		t.Error("freed slot value was cleared")
	}
}

func TestExtentTracksHighestBoundIndex(t *testing.T) {
	s := NewSlab[int, testValue, struct{}](WithCapacity(8))
	for k := range 4 {
		s.Add(k, testValue{}, struct{}{})
	}
	if s.Extent() != 4 {
		t.Fatalf("Extent = %d, want 4", s.Extent())
	}
	s.Remove(1)
	if s.Extent() != 4 {
		t.Errorf("Extent after removing interior slot = %d, want 4", s.Extent())
	}
	s.Remove(3)
	if s.Extent() != 3 {
		t.Errorf("Extent after removing top slot = %d, want 3", s.Extent())
	}
	s.Remove(2)
	if s.Extent() != 1 {
		t.Errorf("Extent = %d, want 1 once slots 1..3 are free", s.Extent())
	}
	s.Remove(0)
	if s.Extent() != 0 {
		t.Errorf("Extent of empty slab = %d", s.Extent())
	}
}

func TestIndexStabilityUnderRandomOperations(t *testing.T) {
	s := NewSlab[int, testValue, struct{}]()
	rng := rand.New(rand.NewSource(42))
	live := map[int]int{}
	for step := range 2000 {
		key := rng.Intn(64)
		switch rng.Intn(3) {
		case 0, 1:
			i := s.Add(key, testValue{A: float32(step)}, struct{}{})
			if prev, ok := live[key]; ok && prev != i {
				t.Fatalf("step %d: key %d moved from %d to %d", step, key, prev, i)
			}
			live[key] = i
		case 2:
			s.Remove(key)
			delete(live, key)
		}
		if rng.Intn(50) == 0 && s.Capacity() < 512 {
			s.Resize(s.Capacity() * 2)
		}
		for k, i := range live {
			if got, ok := s.IndexOf(k); !ok || got != i {
				t.Fatalf("step %d: IndexOf(%d) = %d, %v, want %d", step, k, got, ok, i)
			}
		}
		if s.Count() != len(live) {
			t.Fatalf("step %d: Count = %d, want %d", step, s.Count(), len(live))
		}
	}
}

func TestAtOutOfRange(t *testing.T) {
	s := NewSlab[int, testValue, struct{}]()
	for _, i := range []int{-1, s.Capacity(), 1 << 20} {
		if _, ok := s.At(i); ok {
			t.Errorf("At(%d) reported present", i)
		}
	}
}

func TestBytesAliasesContent(t *testing.T) {
	s := NewSlab[int, testValue, struct{}](WithCapacity(2))
	s.Add(0, testValue{A: 1, B: 2}, struct{}{})
	if s.ElementSize() != 8 {
		t.Fatalf("ElementSize = %d, want 8", s.ElementSize())
	}
	raw := s.Bytes()
	if len(raw) != s.Capacity()*s.ElementSize() {
		t.Fatalf("len(Bytes) = %d", len(raw))
	}
	copy(raw[8:16], raw[0:8])
	if s.Content()[1] != (testValue{A: 1, B: 2}) {
		t.Error("write through Bytes not visible in Content")
	}
}

func TestEachKeysAndClear(t *testing.T) {
	s := NewSlab[string, testValue, int](WithCapacity(4))
	s.Add("a", testValue{}, 0)
	s.Add("b", testValue{}, 0)
	seen := map[string]int{}
	s.Each(func(k string, i int) { seen[k] = i })
	if len(seen) != 2 || seen["a"] != 0 || seen["b"] != 1 {
		t.Errorf("Each visited %v", seen)
	}
	if len(s.Keys()) != 2 {
		t.Errorf("Keys = %v", s.Keys())
	}
	s.Clear()
	if s.Count() != 0 || s.Extent() != 0 || s.Capacity() != 4 {
		t.Errorf("after Clear: count=%d extent=%d capacity=%d", s.Count(), s.Extent(), s.Capacity())
	}
	if got := s.Add("c", testValue{}, 0); got != 0 {
		t.Errorf("first Add after Clear = %d, want 0", got)
	}
}
