package fifo

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/valyala/fastrand"
)

// TestConcurrentProducersConsumersRandomizedJitter randomizes each
// producer's work size and start delay, and has consumers sleep at
// random when they find the queue empty, to surface interleavings a
// fixed, evenly-sized workload tends to hide.
func TestConcurrentProducersConsumersRandomizedJitter(t *testing.T) {
	const (
		producers = 12
		consumers = 12
		minItems  = 2_000
		maxItems  = 8_000
	)

	q, err := NewFifo[int](64)
	if err != nil {
		t.Fatal(err)
	}

	perProducer := make([]int, producers)
	var total int64
	for p := range perProducer {
		n := minItems + int(fastrand.Uint32n(uint32(maxItems-minItems)))
		perProducer[p] = n
		total += int64(n)
	}

	var produced, consumed atomic.Int64

	var producersWG sync.WaitGroup
	producersWG.Add(producers)
	for p := 0; p < producers; p++ {
		go func(n int) {
			defer producersWG.Done()
			// Jitter the start of each producer so publish order across
			// goroutines is not simply launch order.
			time.Sleep(time.Duration(fastrand.Uint32n(200)) * time.Microsecond)
			for i := 0; i < n; i++ {
				if err := q.Push(i); err != nil {
					t.Errorf("push failed: %v", err)
					return
				}
				produced.Add(1)
			}
		}(perProducer[p])
	}

	var consumersWG sync.WaitGroup
	consumersWG.Add(consumers)
	for c := 0; c < consumers; c++ {
		go func() {
			defer consumersWG.Done()
			for consumed.Load() < total {
				if _, ok := q.Pop(); ok {
					consumed.Add(1)
				} else if fastrand.Uint32n(4) == 0 {
					time.Sleep(time.Microsecond)
				}
			}
		}()
	}

	producersWG.Wait()
	consumersWG.Wait()

	if consumed.Load() != total {
		t.Fatalf("expected %d consumed, got %d", total, consumed.Load())
	}
	if !q.IsEmpty() {
		t.Fatal("queue should be drained and empty")
	}
}

// TestPopAllDrainsEverythingPushed exercises PopAll's sink-reuse contract
// under randomized batch sizes.
func TestPopAllDrainsEverythingPushed(t *testing.T) {
	q, err := NewFifo[int](8)
	if err != nil {
		t.Fatal(err)
	}

	n := 500 + int(fastrand.Uint32n(500))
	for i := 0; i < n; i++ {
		if err := q.Push(i); err != nil {
			t.Fatal(err)
		}
	}

	sink := make([]int, 0, n/2)
	sink = q.PopAll(sink)

	if len(sink) != n {
		t.Fatalf("expected PopAll to drain %d items, got %d", n, len(sink))
	}
	if !q.IsEmpty() {
		t.Fatal("queue should be empty after PopAll")
	}
}
