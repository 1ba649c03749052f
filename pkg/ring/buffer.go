// Package ring provides the fixed-size circular byte buffer used between the
// UART pumps and the console task.
package ring

import "sync/atomic"

// Capacity limits of a Buffer.
const (
	MinSize = 2
	MaxSize = 1 << 30
)

// Buffer is a fixed-capacity byte ring.
// It is safe for one producer (Put) and one consumer (Get) running
// concurrently. Overflow drops the incoming byte.
type Buffer struct {
	data []byte
	mask uint32

	head    atomic.Uint32 // next write position, owned by producer
	tail    atomic.Uint32 // next read position, owned by consumer
	dropped atomic.Uint64
}

// New creates a Buffer holding at least size bytes.
// The capacity is rounded up to a power of two and capped at MaxSize.
func New(size int) *Buffer {
	n := capacityFor(size)
	return &Buffer{data: make([]byte, n), mask: n - 1}
}

func capacityFor(size int) uint32 {
	if size > MaxSize {
		size = MaxSize
	}
	n := uint32(MinSize)
	for int(n) < size {
		n <<= 1
	}
	return n
}

// Cap returns the capacity in bytes.
func (b *Buffer) Cap() int {
	return len(b.data)
}

// Len returns the number of buffered bytes. It may be called from any
// goroutine; the result is a snapshot in [0, Cap()].
func (b *Buffer) Len() int {
	// tail first: head only moves forward, so a later head is never behind it.
	t := b.tail.Load()
	n := b.head.Load() - t
	if n > uint32(len(b.data)) {
		return len(b.data)
	}
	return int(n)
}

// Empty indicates nothing is buffered.
func (b *Buffer) Empty() bool {
	return b.Len() == 0
}

// Full indicates the next Put will be dropped.
func (b *Buffer) Full() bool {
	return b.Len() >= len(b.data)
}

// Put stores a byte. If the buffer is full the byte is dropped and false is
// returned.
func (b *Buffer) Put(v byte) bool {
	h := b.head.Load()
	if h-b.tail.Load() >= uint32(len(b.data)) {
		b.dropped.Add(1)
		return false
	}
	b.data[h&b.mask] = v
	b.head.Store(h + 1)
	return true
}

// Get returns the oldest byte, or (0, false) if the buffer is empty.
func (b *Buffer) Get() (byte, bool) {
	t := b.tail.Load()
	if b.head.Load() == t {
		return 0, false
	}
	v := b.data[t&b.mask]
	b.tail.Store(t + 1)
	return v, true
}

// Read drains up to len(p) bytes into p. It never blocks.
func (b *Buffer) Read(p []byte) int {
	n := 0
	for n < len(p) {
		v, ok := b.Get()
		if !ok {
			break
		}
		p[n] = v
		n++
	}
	return n
}

// Dropped returns how many bytes were dropped on overflow.
func (b *Buffer) Dropped() uint64 {
	return b.dropped.Load()
}

// Reset discards buffered bytes. Only the consumer may call it.
func (b *Buffer) Reset() {
	b.tail.Store(b.head.Load())
}
