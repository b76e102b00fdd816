package slab

import "container/heap"

// freeList is a min-heap of unbound slot indices. Popping the lowest index first keeps bound
// slots packed at the front of the slab so the dispatch extent stays small.
type freeList []int

var _ heap.Interface = &freeList{}

func (f freeList) Len() int           { return len(f) }
func (f freeList) Less(i, j int) bool { return f[i] < f[j] }
func (f freeList) Swap(i, j int)      { f[i], f[j] = f[j], f[i] }

func (f *freeList) Push(x any) {
	*f = append(*f, x.(int))
}

func (f *freeList) Pop() any {
	old := *f
	n := len(old)
	x := old[n-1]
	*f = old[:n-1]
	return x
}

func (f *freeList) put(i int) {
	heap.Push(f, i)
}

func (f *freeList) take() (int, bool) {
	if f.Len() == 0 {
		return 0, false
	}
	return heap.Pop(f).(int), true
}
