package protocol

import (
	"runtime"
	"sync/atomic"
)

// QueueCap is the receive queue capacity. Must stay a power of two so the
// free-running cursors can be masked instead of wrapped.
const QueueCap = 128

// ByteQueue is a bounded single-producer/single-consumer byte queue. It
// bridges the asynchronous receive path (interrupt handler, reader
// goroutine) and the synchronous main loop. The producer owns the write
// cursor, the consumer owns the read cursor, and both cursors are accessed
// with atomic loads/stores, so no lock is needed as long as the SPSC
// discipline holds.
//
// A push onto a full queue means the consumer has fallen behind and the
// protocol framing can no longer be trusted. The byte is never dropped
// silently: TryPush fails and latches a sticky overflow flag that the main
// loop checks every iteration.
type ByteQueue struct {
	buf        [QueueCap]byte
	head       atomic.Uint32 // consumer cursor, free-running
	tail       atomic.Uint32 // producer cursor, free-running
	overflowed atomic.Bool
}

// NewByteQueue returns an empty queue. The queue is created once at startup
// and lives for the whole process.
func NewByteQueue() *ByteQueue {
	return &ByteQueue{}
}

// TryPush appends one byte from the producer context. On a full queue it
// latches the overflow flag and returns ErrQueueOverflow without writing.
func (q *ByteQueue) TryPush(b byte) error {
	tail := q.tail.Load()
	if tail-q.head.Load() >= QueueCap {
		q.overflowed.Store(true)
		return ErrQueueOverflow
	}
	q.buf[tail&(QueueCap-1)] = b
	q.tail.Store(tail + 1)
	return nil
}

// HasData reports whether at least one unpopped byte is available.
func (q *ByteQueue) HasData() bool {
	return q.tail.Load() != q.head.Load()
}

// Overflowed reports whether a push ever hit a full queue.
func (q *ByteQueue) Overflowed() bool {
	return q.overflowed.Load()
}

// PopBlocking removes and returns the oldest byte, spinning until one is
// available. Only the consumer context may call it.
func (q *ByteQueue) PopBlocking() byte {
	for {
		head := q.head.Load()
		if q.tail.Load() != head {
			b := q.buf[head&(QueueCap-1)]
			q.head.Store(head + 1)
			return b
		}
		runtime.Gosched()
	}
}

// PopDeadline is the read-timeout variant of PopBlocking. It spins until a
// byte is available or ticks() passes deadline. The reference firmware has
// no payload read timeout at all; callers preserve that behavior by never
// arming a deadline, in which case a stalled peer stalls the caller
// indefinitely.
func (q *ByteQueue) PopDeadline(ticks func() uint64, deadline uint64) (byte, error) {
	for {
		head := q.head.Load()
		if q.tail.Load() != head {
			b := q.buf[head&(QueueCap-1)]
			q.head.Store(head + 1)
			return b, nil
		}
		if ticks() > deadline {
			return 0, ErrReadDeadline
		}
		runtime.Gosched()
	}
}

// Len returns the number of unpopped bytes. Exact only from the consumer
// context; elsewhere it is a snapshot.
func (q *ByteQueue) Len() int {
	return int(q.tail.Load() - q.head.Load())
}
