// Package pool provides typed object pooling for datafeed.
// It wraps sync.Pool with statistics tracking and automatic reset,
// and exposes global pools for the scratch slices used during batch
// assembly, reducing garbage collection pressure on the hot fetch path.
//
// Example usage:
//
//	cells := pool.GetCellSlice(batchSize)
//	defer pool.PutCellSlice(cells)
package pool

import (
	"sync"
	"sync/atomic"
)

// Pool represents a generic object pool with type safety.
// It wraps sync.Pool with statistics tracking and automatic reset
// functionality. The pool is safe for concurrent use.
type Pool[T any] struct {
	pool  sync.Pool
	new   func() T
	reset func(T)
	stats struct {
		allocated int64
		inUse     int64
	}
}

// New creates a new typed pool with custom allocation and reset functions.
// The new function is called when the pool is empty; the reset function is
// called before returning an object to the pool.
func New[T any](new func() T, reset func(T)) *Pool[T] {
	p := &Pool[T]{
		new:   new,
		reset: reset,
	}
	p.pool.New = func() interface{} {
		atomic.AddInt64(&p.stats.allocated, 1)
		return new()
	}
	return p
}

// Get retrieves an object from the pool, creating one if the pool is empty.
func (p *Pool[T]) Get() T {
	atomic.AddInt64(&p.stats.inUse, 1)
	return p.pool.Get().(T)
}

// Put returns an object to the pool for reuse, resetting it first.
func (p *Pool[T]) Put(obj T) {
	if p.reset != nil {
		p.reset(obj)
	}
	atomic.AddInt64(&p.stats.inUse, -1)
	p.pool.Put(obj)
}

// Stats returns the total objects allocated and the number currently in use.
func (p *Pool[T]) Stats() (allocated, inUse int64) {
	return atomic.LoadInt64(&p.stats.allocated),
		atomic.LoadInt64(&p.stats.inUse)
}

// Global pools for batch assembly scratch space.
var (
	// CellSlicePool provides pooling for per-column cell slices.
	// Slices are pre-allocated with capacity 256 and cleared on return.
	CellSlicePool = New(
		func() []interface{} {
			return make([]interface{}, 0, 256)
		},
		func(s []interface{}) {
			// Clear references to allow GC
			for i := range s {
				s[i] = nil
			}
		},
	)
)

// GetCellSlice retrieves a cell slice from the global pool.
// If the requested capacity exceeds the pooled slice capacity, a new slice
// is allocated. The returned slice always has zero length.
func GetCellSlice(capacity int) []interface{} {
	s := CellSlicePool.Get()
	if cap(s) < capacity {
		s = make([]interface{}, 0, capacity)
	}
	return s[:0]
}

// PutCellSlice returns a cell slice to the global pool for reuse.
// This function is safe to call with nil slices.
func PutCellSlice(s []interface{}) {
	if s != nil {
		CellSlicePool.Put(s)
	}
}
