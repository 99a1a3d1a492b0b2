package fifo

import (
	"math"
	"runtime"
	"sync/atomic"
)

// DefaultCapacity is the initial slab size used when a caller has no
// better estimate of steady-state queue depth.
const DefaultCapacity = 1024

// Fifo is a bounded-but-growable multi-producer/multi-consumer queue. Its
// fast path — Push and Pop — never takes a conventional mutex; it takes
// only a shared lease on an internal SharedMutex, which lets any number
// of producers and consumers run concurrently. Structural mutation (slab
// growth, counter reset, Clear) takes the exclusive lease instead, which
// is serialized against all fast-path traffic.
//
// Items are delivered at most once each and, absent further publish
// delay from a racing producer, in roughly FIFO order; strict global
// FIFO order across concurrent producers and consumers is not
// guaranteed. Pop never blocks: it returns false the moment no slot in
// the published region is Ready.
type Fifo[T any] struct {
	_     [64]byte
	mu    SharedMutex
	_     [64]byte
	size  atomic.Uint64 // slab capacity; monotonic, mutated only under exclusive lock
	slab  []slot[T]
	_     [64]byte
	write atomic.Uint64 // next index to claim for producing
	_     [64]byte
	read  atomic.Uint64 // index of the next unretired slot
	_     [64]byte
}

// NewFifo constructs an empty Fifo with at least the given slab
// capacity. initialCapacity must be >= 1.
func NewFifo[T any](initialCapacity int) (*Fifo[T], error) {
	if initialCapacity < 1 {
		return nil, &ConfigError{Capacity: initialCapacity}
	}
	f := &Fifo[T]{
		slab: make([]slot[T], initialCapacity),
	}
	f.size.Store(uint64(initialCapacity))
	return f, nil
}

// Push enqueues one item. It fails with ErrOverflow if claiming the next
// write index would exceed the counter's maximum representable value.
func (f *Fifo[T]) Push(v T) error {
	for {
		w := f.write.Load()
		if w == math.MaxUint64 {
			return ErrOverflow
		}
		if !f.write.CompareAndSwap(w, w+1) {
			continue
		}
		i := w
		if i >= f.size.Load() {
			f.growFor(i)
		}
		f.mu.AcquireShared()
		f.slab[i].value = v
		f.slab[i].state.publish()
		f.mu.ReleaseShared()
		return nil
	}
}

// Pop attempts to dequeue one item. It returns false, leaving its return
// value zero, if no Ready slot exists in the currently visible published
// region. Pop never blocks.
func (f *Fifo[T]) Pop() (T, bool) {
	var zero T

	f.mu.AcquireShared()

	write := f.write.Load()
	m := f.size.Load()
	if write < m {
		m = write
	}

	for i := f.read.Load(); i < m; i++ {
		s := &f.slab[i]
		if s.state.load() != stateReady {
			continue
		}
		if !s.state.claim() {
			continue
		}

		v := s.value

		if i == f.read.Load() {
			f.advanceRead(i)
		}

		f.mu.ReleaseShared()
		return v, true
	}

	f.mu.ReleaseShared()
	return zero, false
}

// PopAll drains the queue by repeated Pop until it returns false,
// appending each popped value to sink and returning the extended slice.
func (f *Fifo[T]) PopAll(sink []T) []T {
	for {
		v, ok := f.Pop()
		if !ok {
			return sink
		}
		sink = append(sink, v)
	}
}

// Clear discards pending items and resets the queue to empty under the
// exclusive lock. Callers that need to preserve pending items should
// call PopAll first.
func (f *Fifo[T]) Clear() {
	f.mu.AcquireExclusive()
	f.read.Store(0)
	f.write.Store(0)
	var zero T
	for i := range f.slab {
		f.slab[i].state.store(stateUninitialized)
		f.slab[i].value = zero
	}
	f.mu.ReleaseExclusive()
}

// IsEmpty reports whether read == write at the moment of observation.
// Like Len, this is a hint: it may be stale by the time the caller acts
// on it.
func (f *Fifo[T]) IsEmpty() bool {
	return f.read.Load() == f.write.Load()
}

// Len returns a best-effort count of items currently published or
// claimed-for-production, i.e. write - read. Like IsEmpty, it may be
// stale by the time the caller acts on it.
func (f *Fifo[T]) Len() int {
	w := f.write.Load()
	r := f.read.Load()
	if w < r {
		return 0
	}
	return int(w - r)
}

// advanceRead walks forward from i, the slot this caller just
// transitioned to Done, retiring a contiguous run of Done slots back to
// Uninitialized. The caller must hold the shared lease; advanceRead may
// briefly release and reacquire it if the walk drains the queue.
func (f *Fifo[T]) advanceRead(i uint64) {
	size := f.size.Load()
	for i < size && f.slab[i].state.retire() {
		f.read.Add(1)
		i++
	}
	if f.read.Load() == f.write.Load() {
		f.mu.ReleaseShared()
		f.resetCounters()
		f.mu.AcquireShared()
	}
}

// resetCounters zeroes read and write under the exclusive lock, but only
// if the queue is still drained by the time it acquires that lock — a
// producer may have claimed a new index in the meantime.
func (f *Fifo[T]) resetCounters() {
	f.mu.AcquireExclusive()
	if f.read.Load() == f.write.Load() {
		f.read.Store(0)
		f.write.Store(0)
	}
	f.mu.ReleaseExclusive()
}

// growFor blocks until the slab is large enough to hold index i. Exactly
// one producer — the one whose claimed index equals the slab's current
// size — performs the resize; every other producer with a larger claim
// just spins until size catches up.
func (f *Fifo[T]) growFor(i uint64) {
	var spins uint32
	for {
		size := f.size.Load()
		if size > i {
			return
		}
		if size != i {
			spins++
			if spins%schedEvery == 0 {
				runtime.Gosched()
			}
			continue
		}
		f.grow(i)
		return
	}
}

// grow doubles the slab (looping if one doubling still does not cover i)
// under the exclusive lock.
func (f *Fifo[T]) grow(i uint64) {
	f.mu.AcquireExclusive()
	defer f.mu.ReleaseExclusive()

	size := f.size.Load()
	if size > i {
		// Someone else already grew past i while we waited for the lock.
		return
	}

	newSize := size * 2
	if newSize == 0 {
		newSize = 1
	}
	for newSize <= i {
		newSize *= 2
	}

	newSlab := make([]slot[T], newSize)
	for idx := range f.slab {
		newSlab[idx].state.store(f.slab[idx].state.load())
		newSlab[idx].value = f.slab[idx].value
	}
	f.slab = newSlab
	f.size.Store(newSize)
}
