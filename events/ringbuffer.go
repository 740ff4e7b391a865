package events

import (
	"sync/atomic"
	_ "unsafe" // for go:linkname
)

//go:linkname semacquireSafe sync.runtime_Semacquire
func semacquireSafe(s *uint32)

//go:linkname semreleaseSafe sync.runtime_Semrelease
func semreleaseSafe(s *uint32, handoff bool, skipframes int)

// RingBuffer is a fixed-capacity, power-of-two-sized, pure-semaphore
// single-producer/single-consumer queue generalised over any payload type.
// It backs one registered backend's delivery queue in the event bus: each
// backend drains at its own pace without blocking the others or the
// request thread that published the event.
type RingBuffer[T any] struct {
	buffer     []T
	mask       int64
	writeSeq   atomic.Int64
	readSeq    atomic.Int64
	emptySlots uint32
	fullSlots  uint32
}

// NewRingBuffer creates a ring buffer of the given size, which must be a
// power of two.
func NewRingBuffer[T any](size int) *RingBuffer[T] {
	if size&(size-1) != 0 {
		panic("RingBuffer size must be power of 2")
	}

	rb := &RingBuffer[T]{
		buffer: make([]T, size),
		mask:   int64(size - 1),
	}
	for i := 0; i < size; i++ {
		semreleaseSafe(&rb.emptySlots, false, 0)
	}
	return rb
}

// Publish hands one item to the buffer, blocking if it is full.
func (rb *RingBuffer[T]) Publish(item T) {
	semacquireSafe(&rb.emptySlots)

	seq := rb.writeSeq.Add(1) - 1
	index := seq & rb.mask
	rb.buffer[index] = item

	semreleaseSafe(&rb.fullSlots, false, 0)
}

// Consumer reads from a RingBuffer in batches to amortise the semaphore
// syscalls across many items.
type Consumer[T any] struct {
	rb         *RingBuffer[T]
	localCache [128]T
	cacheStart int
	cacheEnd   int
}

func (rb *RingBuffer[T]) NewConsumer() *Consumer[T] {
	return &Consumer[T]{rb: rb}
}

// Consume blocks until at least one item is available and returns the
// next one in publish order.
func (cb *Consumer[T]) Consume() T {
	if cb.cacheStart < cb.cacheEnd {
		item := cb.localCache[cb.cacheStart]
		cb.cacheStart++
		return item
	}
	cb.fillCache()
	item := cb.localCache[cb.cacheStart]
	cb.cacheStart++
	return item
}

func (cb *Consumer[T]) fillCache() {
	rb := cb.rb

	semacquireSafe(&rb.fullSlots)
	seq := rb.readSeq.Add(1) - 1
	index := seq & rb.mask
	cb.localCache[0] = rb.buffer[index]
	semreleaseSafe(&rb.emptySlots, false, 0)

	acquired := 1
	maxBatch := len(cb.localCache)
	currentWrite := rb.writeSeq.Load()
	currentRead := rb.readSeq.Load()
	available := int(currentWrite - currentRead)
	if available > maxBatch-1 {
		available = maxBatch - 1
	}

	for i := 0; i < available; i++ {
		semacquireSafe(&rb.fullSlots)
		seq := rb.readSeq.Add(1) - 1
		index := seq & rb.mask
		cb.localCache[acquired] = rb.buffer[index]
		semreleaseSafe(&rb.emptySlots, false, 0)
		acquired++
	}

	cb.cacheStart = 0
	cb.cacheEnd = acquired
}
