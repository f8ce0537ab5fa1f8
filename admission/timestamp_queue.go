/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package admission

import "time"

// timestampQueue is a FIFO ring buffer of admission timestamps, oldest first.
// Its capacity is fixed at construction and never exceeded by the gate.
type timestampQueue struct {
	buf  []time.Time
	head int
	size int
}

func newTimestampQueue(capacity int) timestampQueue {
	return timestampQueue{buf: make([]time.Time, capacity)}
}

func (q *timestampQueue) Len() int {
	return q.size
}

func (q *timestampQueue) Full() bool {
	return q.size == len(q.buf)
}

// Oldest returns the head of the queue. The queue must not be empty.
func (q *timestampQueue) Oldest() time.Time {
	return q.buf[q.head]
}

// Push appends ts to the tail. The queue must not be full.
func (q *timestampQueue) Push(ts time.Time) {
	q.buf[(q.head+q.size)%len(q.buf)] = ts
	q.size++
}

// PopOldest removes the head of the queue.
func (q *timestampQueue) PopOldest() {
	q.buf[q.head] = time.Time{}
	q.head = (q.head + 1) % len(q.buf)
	q.size--
}

// EvictExpired drops all timestamps for which window has fully elapsed at now
// and returns the number of dropped entries.
func (q *timestampQueue) EvictExpired(now time.Time, window time.Duration) int {
	evicted := 0
	for q.size > 0 && now.Sub(q.Oldest()) >= window {
		q.PopOldest()
		evicted++
	}
	return evicted
}
