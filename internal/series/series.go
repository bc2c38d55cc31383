// Package series keeps the most recent measurements in a fixed-size ring.
package series

import (
	"sync"
	"time"
)

// DefaultCapacity matches the window plotted by the live view.
const DefaultCapacity = 100

// Point is one timestamped value.
type Point[T any] struct {
	Time  time.Time `json:"t"`
	Value T         `json:"v"`
}

// Series is a bounded FIFO of points. Appending to a full series evicts the
// oldest point. It is safe for concurrent use.
type Series[T any] struct {
	mu    sync.RWMutex
	buf   []Point[T]
	start int
	n     int
}

// New returns an empty series holding at most capacity points. A
// non-positive capacity selects DefaultCapacity.
func New[T any](capacity int) *Series[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Series[T]{buf: make([]Point[T], capacity)}
}

// Append adds a point at the newest end.
func (s *Series[T]) Append(t time.Time, v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := (s.start + s.n) % len(s.buf)
	s.buf[i] = Point[T]{Time: t, Value: v}
	if s.n < len(s.buf) {
		s.n++
		return
	}
	s.start = (s.start + 1) % len(s.buf)
}

// Len is the number of points held.
func (s *Series[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.n
}

// Cap is the fixed capacity.
func (s *Series[T]) Cap() int {
	return len(s.buf)
}

// Points returns a copy of the held points, oldest first.
func (s *Series[T]) Points() []Point[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Point[T], s.n)
	for i := range out {
		out[i] = s.buf[(s.start+i)%len(s.buf)]
	}
	return out
}

// Last returns the newest point.
func (s *Series[T]) Last() (Point[T], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.n == 0 {
		return Point[T]{}, false
	}
	return s.buf[(s.start+s.n-1)%len(s.buf)], true
}
