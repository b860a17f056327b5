package track

import (
	"fmt"

	"github.com/danielterwiel/stepvis/step"
)

// Stack is a tracked LIFO container. The snapshot in each step lists
// elements bottom-first, matching the guest runtime.
type Stack[T any] struct {
	core
	data []T
}

// NewStack builds a tracked stack seeded bottom-first with a deep copy of
// initial. An empty name defaults to "stack".
func NewStack[T any](name string, initial []T, opts ...Option) *Stack[T] {
	o := buildOptions(opts)
	s := &Stack[T]{core: newCore(name, "stack", o)}
	if len(initial) > 0 {
		s.data = step.Clone(initial).([]T)
	}
	return s
}

func (s *Stack[T]) Len() int { return len(s.data) }

// Peek returns the top element without removing it. Reads never emit.
func (s *Stack[T]) Peek() (T, error) {
	var zero T
	if len(s.data) == 0 {
		return zero, fmt.Errorf("peek %s: empty: %w", s.name, ErrInvalidRange)
	}
	return s.data[len(s.data)-1], nil
}

// Values returns a copy of the contents, bottom-first.
func (s *Stack[T]) Values() []T {
	out := make([]T, len(s.data))
	copy(out, s.data)
	return out
}

// Push places v on top.
func (s *Stack[T]) Push(v T) {
	s.data = append(s.data, v)
	s.emit("push", []any{v}, s.data, map[string]any{
		"value": v,
		"depth": len(s.data),
	})
}

// Pop removes and returns the top element.
func (s *Stack[T]) Pop() (T, error) {
	var zero T
	if len(s.data) == 0 {
		return zero, fmt.Errorf("pop %s: empty: %w", s.name, ErrInvalidRange)
	}
	v := s.data[len(s.data)-1]
	s.data = s.data[:len(s.data)-1]
	s.emit("pop", nil, s.data, map[string]any{
		"value": v,
		"depth": len(s.data),
	})
	return v, nil
}

// Clear empties the stack in one atomic step.
func (s *Stack[T]) Clear() {
	removed := len(s.data)
	s.data = s.data[:0]
	s.emit("clear", nil, s.data, map[string]any{
		"removed": removed,
	})
}
