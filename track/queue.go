package track

import (
	"fmt"

	"github.com/danielterwiel/stepvis/step"
)

// Queue is a tracked FIFO container. The snapshot in each step lists
// elements front-first.
type Queue[T any] struct {
	core
	data []T
}

// NewQueue builds a tracked queue seeded front-first with a deep copy of
// initial. An empty name defaults to "queue".
func NewQueue[T any](name string, initial []T, opts ...Option) *Queue[T] {
	o := buildOptions(opts)
	q := &Queue[T]{core: newCore(name, "queue", o)}
	if len(initial) > 0 {
		q.data = step.Clone(initial).([]T)
	}
	return q
}

func (q *Queue[T]) Len() int { return len(q.data) }

// Front returns the next element to be dequeued without removing it.
func (q *Queue[T]) Front() (T, error) {
	var zero T
	if len(q.data) == 0 {
		return zero, fmt.Errorf("front %s: empty: %w", q.name, ErrInvalidRange)
	}
	return q.data[0], nil
}

// Back returns the most recently enqueued element.
func (q *Queue[T]) Back() (T, error) {
	var zero T
	if len(q.data) == 0 {
		return zero, fmt.Errorf("back %s: empty: %w", q.name, ErrInvalidRange)
	}
	return q.data[len(q.data)-1], nil
}

// Values returns a copy of the contents, front-first.
func (q *Queue[T]) Values() []T {
	out := make([]T, len(q.data))
	copy(out, q.data)
	return out
}

// Enqueue adds v at the back.
func (q *Queue[T]) Enqueue(v T) {
	q.data = append(q.data, v)
	q.emit("enqueue", []any{v}, q.data, map[string]any{
		"value":  v,
		"length": len(q.data),
	})
}

// Dequeue removes and returns the front element.
func (q *Queue[T]) Dequeue() (T, error) {
	var zero T
	if len(q.data) == 0 {
		return zero, fmt.Errorf("dequeue %s: empty: %w", q.name, ErrInvalidRange)
	}
	v := q.data[0]
	q.data = append(q.data[:0], q.data[1:]...)
	q.emit("dequeue", nil, q.data, map[string]any{
		"value":  v,
		"length": len(q.data),
	})
	return v, nil
}

// Clear empties the queue in one atomic step.
func (q *Queue[T]) Clear() {
	removed := len(q.data)
	q.data = q.data[:0]
	q.emit("clear", nil, q.data, map[string]any{
		"removed": removed,
	})
}
