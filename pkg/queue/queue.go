// Package queue is a fixed-capacity byte FIFO (ring buffer).
//
// The queue is safe for one producer and one consumer running on different goroutines
// without locks: the producer calls Put, PutArray and Pop, the consumer calls Get,
// GetNextArray and ReadValue. FillLevel, IsEmpty and IsFull may be called from either side.
package queue

import "sync/atomic"

const (
	// DefaultCapacity is the number of usable slots of a queue created with capacity < 1.
	DefaultCapacity = 1000
	// Sentinel is returned by reads from an empty queue or with an index out of range.
	Sentinel byte = 0
)

// Queue is a counted ring buffer of bytes.
//
// head and tail are monotonic counters; the number of queued elements is tail-head.
// The flag based ring this replaces set isFull when tail == front-1, one element before
// the ring was actually full. It is unknown whether that was intended; the counted ring
// stores exactly Capacity() elements.
type Queue struct {
	buffer []byte
	// head counts the elements ever removed from the front.
	head atomic.Int64
	// tail counts the elements ever appended (minus those retracted by Pop).
	tail atomic.Int64
}

// New creates a queue with the given capacity.
func New(capacity int) *Queue {
	if capacity < 1 {
		capacity = DefaultCapacity
	}

	return &Queue{buffer: make([]byte, capacity)}
}

// Capacity returns the number of usable slots.
func (q *Queue) Capacity() int {
	return len(q.buffer)
}

// FillLevel returns the number of queued elements.
func (q *Queue) FillLevel() int {
	n := q.tail.Load() - q.head.Load()
	if n < 0 {
		// a Pop racing with a Get may briefly move tail behind head
		return 0
	}
	return int(n)
}

// IsEmpty reports whether the queue holds no element.
func (q *Queue) IsEmpty() bool {
	return q.FillLevel() == 0
}

// IsFull reports whether the queue holds Capacity() elements.
func (q *Queue) IsFull() bool {
	return q.FillLevel() == len(q.buffer)
}

// Put appends v at the tail.
// It returns false and leaves the queue untouched if the queue is full.
func (q *Queue) Put(v byte) bool {
	t := q.tail.Load()
	if t-q.head.Load() >= int64(len(q.buffer)) {
		return false
	}

	q.buffer[q.index(t)] = v
	q.tail.Store(t + 1)
	return true
}

// Get removes and returns the element at the front.
// It returns Sentinel if the queue is empty.
func (q *Queue) Get() byte {
	for {
		h := q.head.Load()
		if h >= q.tail.Load() {
			return Sentinel
		}

		v := q.buffer[q.index(h)]
		if q.head.CompareAndSwap(h, h+1) {
			return v
		}
	}
}

// Pop removes and returns the most recently appended element, which lets a producer
// retract an item the consumer has not taken yet.
// It returns Sentinel if the queue is empty.
func (q *Queue) Pop() byte {
	t := q.tail.Load() - 1
	q.tail.Store(t)

	h := q.head.Load()
	if h > t {
		// empty
		q.tail.Store(t + 1)
		return Sentinel
	}

	v := q.buffer[q.index(t)]
	if h < t {
		return v
	}

	// last element: the consumer may be taking it right now
	won := q.head.CompareAndSwap(h, h+1)
	q.tail.Store(t + 1)
	if !won {
		return Sentinel
	}
	return v
}

// PutArray appends the elements of data until the queue is full.
// It returns the number of elements appended.
func (q *Queue) PutArray(data []byte) int {
	n := 0
	for _, v := range data {
		if !q.Put(v) {
			break
		}
		n++
	}
	return n
}

// GetNextArray moves up to len(data) elements from the front into data until the queue is empty.
// It returns the number of elements moved.
func (q *Queue) GetNextArray(data []byte) int {
	n := 0
	for n < len(data) && !q.IsEmpty() {
		data[n] = q.Get()
		n++
	}
	return n
}

// ReadValue returns the element at position index counted from the front without removing it.
// It returns Sentinel if index is out of range.
func (q *Queue) ReadValue(index int) byte {
	if index < 0 || index >= q.FillLevel() {
		return Sentinel
	}
	return q.buffer[q.index(q.head.Load()+int64(index))]
}

// Reset drops all elements. It must not run concurrently with any other method.
func (q *Queue) Reset() {
	q.head.Store(0)
	q.tail.Store(0)
}

func (q *Queue) index(n int64) int {
	return int(n % int64(len(q.buffer)))
}
