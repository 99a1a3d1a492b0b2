package fifo

import "sync/atomic"

// slotState tags a slot's lifecycle stage. A slot starts Uninitialized,
// is published Ready by the producer that claimed its index, claimed
// Done by exactly one consumer, then retired back to Uninitialized once
// read advances past it.
type slotState uint32

const (
	stateUninitialized slotState = iota
	stateReady
	stateDone
)

// slot is one cell of a Fifo's slab: a value and its atomically
// transitioned state tag. Only the Ready→Done transition is contended;
// Uninitialized→Ready is a plain store by the unique producer that won
// the index, and Done→Uninitialized is touched only by the consumer
// currently retiring that index.
type slot[T any] struct {
	state slotState32
	value T
}

// slotState32 wraps atomic.Uint32 so slot's zero value needs no
// initialization: a freshly allocated slot is Uninitialized.
type slotState32 struct {
	atomic.Uint32
}

func (s *slotState32) load() slotState {
	return slotState(s.Load())
}

func (s *slotState32) store(v slotState) {
	s.Store(uint32(v))
}

// publish stores Ready with release ordering relative to the value write
// that precedes it — callers must write slot.value before calling this.
func (s *slotState32) publish() {
	s.store(stateReady)
}

// claim attempts the contended Ready→Done transition. Returns true if
// this caller won the slot.
func (s *slotState32) claim() bool {
	return s.CompareAndSwap(uint32(stateReady), uint32(stateDone))
}

// retire attempts the Done→Uninitialized transition performed by the
// consumer advancing read past this index.
func (s *slotState32) retire() bool {
	return s.CompareAndSwap(uint32(stateDone), uint32(stateUninitialized))
}

// forceSkip forces a slot straight to Done without it ever having been
// observed Ready, so a consumer scanning the published region skips it
// instead of waiting on a publish that will never happen. It is for a
// producer that cannot complete its publish; Fifo.Push does not call it,
// since assigning a Go value into a slot cannot fail.
func (s *slotState32) forceSkip() {
	s.store(stateDone)
}

// restore reverts a slot from Done back to Ready because a consumer
// failed to extract the value it had just claimed; the item must remain
// available for a later pop rather than being lost. Fifo.Pop does not
// call it, since copying a Go value out of a slot cannot fail.
func (s *slotState32) restore() {
	s.store(stateReady)
}
