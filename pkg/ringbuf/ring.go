// Package ringbuf implements a fixed-capacity single-producer
// single-consumer byte ring.
//
// The producer owns the write offset and the consumer owns the read
// offset. Offsets are published with atomic stores after the slot has
// been written (producer) or read (consumer), so each side observes the
// other's data before it observes the moved offset. This holds whether
// the producer is an interrupt-like goroutine or the same goroutine as
// the consumer.
//
// A full ring drops the newest byte: Push never blocks and never
// overwrites a slot which has not been read yet. Drops are counted.
package ringbuf

import "sync/atomic"

// Ring is a lock-free SPSC byte queue.
type Ring struct {
	buf   []byte
	read  atomic.Uint32
	write atomic.Uint32
	drops atomic.Uint64
}

// New creates a Ring holding up to capacity bytes.
func New(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	// one slot always stays empty to tell full from empty.
	return &Ring{buf: make([]byte, capacity+1)}
}

// Cap returns the number of bytes the ring can hold.
func (r *Ring) Cap() int {
	return len(r.buf) - 1
}

// Len returns the number of unread bytes.
func (r *Ring) Len() int {
	w, rd := int(r.write.Load()), int(r.read.Load())
	if w >= rd {
		return w - rd
	}
	return w + len(r.buf) - rd
}

// Empty reports whether there is nothing to read.
func (r *Ring) Empty() bool {
	return r.read.Load() == r.write.Load()
}

// Free returns the remaining capacity.
func (r *Ring) Free() int {
	return r.Cap() - r.Len()
}

// Push appends b. It is called by the producer only.
// It returns false and counts a drop if the ring is full.
func (r *Ring) Push(b byte) bool {
	w := r.write.Load()
	next := r.next(w)
	if next == r.read.Load() {
		r.drops.Add(1)
		return false
	}
	r.buf[w] = b
	r.write.Store(next)
	return true
}

// Pop removes the oldest byte. It is called by the consumer only.
func (r *Ring) Pop() (byte, bool) {
	rd := r.read.Load()
	if rd == r.write.Load() {
		return 0, false
	}
	b := r.buf[rd]
	r.read.Store(r.next(rd))
	return b, true
}

// Peek returns the oldest byte without removing it.
// It is called by the consumer only.
func (r *Ring) Peek() (byte, bool) {
	rd := r.read.Load()
	if rd == r.write.Load() {
		return 0, false
	}
	return r.buf[rd], true
}

// Flush discards all unread bytes. It is called by the consumer only.
func (r *Ring) Flush() {
	r.read.Store(r.write.Load())
}

// Drops returns the number of bytes dropped because the ring was full.
func (r *Ring) Drops() uint64 {
	return r.drops.Load()
}

func (r *Ring) next(off uint32) uint32 {
	if off++; int(off) >= len(r.buf) {
		off = 0
	}
	return off
}
