// Package queue provides the buffer that decouples the feed read loop from
// the database writer.
package queue

import (
	"sync"

	"github.com/evrenbal/tickstream/internal/model"
)

// TickQueue is a thread-safe ring buffer of ticks. It doubles its capacity
// when it reaches 70% full, up to a hard cap; beyond the cap ticks are
// dropped rather than blocking the read loop.
type TickQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    []model.Tick
	head   int // read position
	tail   int // write position
	count  int
	cap    int
	maxCap int
	closed bool

	// Stats
	totalIn  int64
	totalOut int64
	dropped  int64
	resizes  int
}

// Stats contains queue statistics.
type Stats struct {
	Count    int
	Capacity int
	TotalIn  int64
	TotalOut int64
	Dropped  int64
	Resizes  int
}

// New creates a queue with the given initial capacity and hard cap.
func New(initialCap, maxCap int) *TickQueue {
	if initialCap < 1 {
		initialCap = 1
	}
	if maxCap < initialCap {
		maxCap = initialCap
	}
	q := &TickQueue{
		buf:    make([]model.Tick, initialCap),
		cap:    initialCap,
		maxCap: maxCap,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Put adds a tick without blocking. It returns false if the tick was
// dropped because the queue is closed or at its hard cap.
func (q *TickQueue) Put(t model.Tick) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	// Grow at 70% occupancy, up to the cap.
	threshold := (q.cap * 70) / 100
	if threshold < 1 {
		threshold = 1
	}
	if q.count+1 >= threshold && q.cap < q.maxCap {
		q.grow()
	}

	if q.count == q.cap {
		q.dropped++
		return false
	}

	q.buf[q.tail] = t
	q.tail = (q.tail + 1) % q.cap
	q.count++
	q.totalIn++

	q.cond.Signal()
	return true
}

// Get removes and returns a tick, blocking until one is available or the
// queue is closed. The second return is false once the queue is closed and
// drained.
func (q *TickQueue) Get() (model.Tick, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == 0 && !q.closed {
		q.cond.Wait()
	}

	if q.count == 0 {
		return model.Tick{}, false
	}
	return q.take(), true
}

// TryGet removes and returns a tick without blocking.
func (q *TickQueue) TryGet() (model.Tick, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		return model.Tick{}, false
	}
	return q.take(), true
}

// take pops the head. Must be called with the lock held and count > 0.
func (q *TickQueue) take() model.Tick {
	t := q.buf[q.head]
	q.buf[q.head] = model.Tick{}
	q.head = (q.head + 1) % q.cap
	q.count--
	q.totalOut++
	return t
}

// Close closes the queue. After closing, Put returns false; Get drains the
// remaining ticks and then reports closed.
func (q *TickQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.cond.Broadcast()
}

// Len returns the current number of queued ticks.
func (q *TickQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Snapshot returns current queue statistics.
func (q *TickQueue) Snapshot() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Count:    q.count,
		Capacity: q.cap,
		TotalIn:  q.totalIn,
		TotalOut: q.totalOut,
		Dropped:  q.dropped,
		Resizes:  q.resizes,
	}
}

// grow doubles capacity, clamped to maxCap. Must be called with the lock held.
func (q *TickQueue) grow() {
	newCap := q.cap * 2
	if newCap > q.maxCap {
		newCap = q.maxCap
	}
	if newCap == q.cap {
		return
	}
	newBuf := make([]model.Tick, newCap)

	if q.count > 0 {
		if q.head < q.tail {
			copy(newBuf, q.buf[q.head:q.tail])
		} else {
			n := copy(newBuf, q.buf[q.head:])
			copy(newBuf[n:], q.buf[:q.tail])
		}
	}

	q.buf = newBuf
	q.head = 0
	q.tail = q.count
	q.cap = newCap
	q.resizes++
}
