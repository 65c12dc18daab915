// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pool

// Index identifies a slot in a Pool.
type Index = uint32

// InvalidIndex is returned by Obtain when the pool is exhausted and is used
// by the renderer and the graph as the "no resource" handle value.
const InvalidIndex Index = 0xFFFFFFFF

// Pool is a fixed-capacity free-list allocator for values of type T.
type Pool[T any] struct {
	items []T
	free  []Index // stack of free slot indices, top at the end
	used  []bool
	count uint32
}

// New creates a pool with room for capacity values.
func New[T any](capacity uint32) *Pool[T] {
	p := &Pool[T]{
		items: make([]T, capacity),
		free:  make([]Index, capacity),
		used:  make([]bool, capacity),
	}
	p.Reset()
	return p
}

// Obtain reserves a free slot and returns its index.
// It returns InvalidIndex when every slot is in use.
func (p *Pool[T]) Obtain() Index {
	if len(p.free) == 0 {
		return InvalidIndex
	}
	i := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	p.used[i] = true
	p.count++
	return i
}

// Release returns a slot to the free list. The slot contents are left as is.
// Releasing InvalidIndex or an out-of-range index is a no-op; releasing the
// same index twice corrupts the free list.
func (p *Pool[T]) Release(i Index) {
	if int(i) >= len(p.items) {
		return
	}
	p.used[i] = false
	p.free = append(p.free, i)
	p.count--
}

// Access returns a pointer to the slot at index i, or nil if i is out of
// range. Access does not check that the slot is in use.
func (p *Pool[T]) Access(i Index) *T {
	if int(i) >= len(p.items) {
		return nil
	}
	return &p.items[i]
}

// InUse reports whether slot i is currently obtained.
func (p *Pool[T]) InUse(i Index) bool {
	return int(i) < len(p.used) && p.used[i]
}

// Each calls fn for every slot currently in use, in index order.
// Iteration stops early when fn returns false.
func (p *Pool[T]) Each(fn func(Index, *T) bool) {
	for i := range p.items {
		if !p.used[i] {
			continue
		}
		// #nosec G115 -- capacity is a uint32
		if !fn(Index(i), &p.items[i]) {
			return
		}
	}
}

// Capacity returns the total number of slots.
func (p *Pool[T]) Capacity() uint32 {
	// #nosec G115 -- capacity is a uint32
	return uint32(len(p.items))
}

// Used returns the number of slots currently obtained.
func (p *Pool[T]) Used() uint32 { return p.count }

// Free returns the number of slots available to Obtain.
func (p *Pool[T]) Free() uint32 { return p.Capacity() - p.count }

// Reset marks every slot free and zeroes all values.
// Slot 0 is handed out first after a reset.
func (p *Pool[T]) Reset() {
	var zero T
	n := len(p.items)
	p.free = p.free[:0]
	for i := n - 1; i >= 0; i-- {
		p.items[i] = zero
		p.used[i] = false
		// #nosec G115 -- capacity is a uint32
		p.free = append(p.free, Index(i))
	}
	p.count = 0
}
