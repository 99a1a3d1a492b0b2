package fifo

import (
	"runtime"
	"sync/atomic"
)

// sharedExclusiveBit is the high bit of the word a SharedMutex packs its
// state into. When set, an exclusive lease is either held or wanted; the
// remaining bits count outstanding shared leases.
const sharedExclusiveBit uint64 = 1 << 63

const sharedHolderMask uint64 = sharedExclusiveBit - 1

// schedEvery bounds how often a spin loop calls runtime.Gosched, mirroring
// the backoff used throughout this package's queue implementation.
const schedEvery = 64

// SharedMutex is a shared/exclusive lock encoded in a single atomic word:
// the high bit marks an exclusive lease as wanted-or-held, the low bits
// count concurrent shared leases. Exclusive acquirers are preferred — once
// the high bit is set, no new shared lease is granted until it clears.
//
// The zero value is an unlocked SharedMutex.
type SharedMutex struct {
	word atomic.Uint64
}

// AcquireShared takes a shared lease, blocking (spin+yield) while an
// exclusive lease is held or pending.
func (m *SharedMutex) AcquireShared() {
	var spins uint32
	for {
		w := m.word.Load()
		if w&sharedExclusiveBit != 0 {
			spins++
			if spins%schedEvery == 0 {
				runtime.Gosched()
			}
			continue
		}
		if m.word.CompareAndSwap(w, w+1) {
			return
		}
	}
}

// ReleaseShared releases a shared lease previously taken by AcquireShared.
func (m *SharedMutex) ReleaseShared() {
	for {
		w := m.word.Load()
		if m.word.CompareAndSwap(w, w-1) {
			return
		}
	}
}

// AcquireExclusive takes the exclusive lease, blocking (spin+yield) until
// no shared lease is outstanding. Only one caller may hold the exclusive
// lease at a time.
func (m *SharedMutex) AcquireExclusive() {
	var spins uint32
	for {
		w := m.word.Load()
		if w&sharedExclusiveBit != 0 {
			// Someone else already wants or holds exclusive; wait our turn.
			spins++
			if spins%schedEvery == 0 {
				runtime.Gosched()
			}
			continue
		}
		if m.word.CompareAndSwap(w, w|sharedExclusiveBit) {
			break
		}
	}
	for m.word.Load()&sharedHolderMask != 0 {
		spins++
		if spins%schedEvery == 0 {
			runtime.Gosched()
		}
	}
}

// ReleaseExclusive releases the exclusive lease previously taken by
// AcquireExclusive.
func (m *SharedMutex) ReleaseExclusive() {
	for {
		w := m.word.Load()
		if m.word.CompareAndSwap(w, w&^sharedExclusiveBit) {
			return
		}
	}
}
