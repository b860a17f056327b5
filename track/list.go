package track

import (
	"fmt"

	"github.com/danielterwiel/stepvis/step"
)

// List is a tracked positional collection. Where Array speaks the JavaScript
// array vocabulary, List speaks insert/remove-at-position.
type List[T any] struct {
	core
	data []T
}

// NewList builds a tracked list seeded with a deep copy of initial. An
// empty name defaults to "list".
func NewList[T any](name string, initial []T, opts ...Option) *List[T] {
	o := buildOptions(opts)
	l := &List[T]{core: newCore(name, "list", o)}
	if len(initial) > 0 {
		l.data = step.Clone(initial).([]T)
	}
	return l
}

func (l *List[T]) Len() int { return len(l.data) }

// At returns the element at index i without emitting.
func (l *List[T]) At(i int) (T, error) {
	var zero T
	if i < 0 || i >= len(l.data) {
		return zero, fmt.Errorf("at %s[%d] of %d: %w", l.name, i, len(l.data), ErrInvalidIndex)
	}
	return l.data[i], nil
}

// Values returns a copy of the current contents.
func (l *List[T]) Values() []T {
	out := make([]T, len(l.data))
	copy(out, l.data)
	return out
}

// Append adds v at the tail.
func (l *List[T]) Append(v T) {
	l.data = append(l.data, v)
	l.emit("append", []any{v}, l.data, map[string]any{
		"index": len(l.data) - 1,
		"value": v,
	})
}

// Prepend adds v at the head.
func (l *List[T]) Prepend(v T) {
	l.data = append([]T{v}, l.data...)
	l.emit("prepend", []any{v}, l.data, map[string]any{
		"index": 0,
		"value": v,
	})
}

// Insert places v at index i, shifting later elements right. i may equal
// Len, which appends.
func (l *List[T]) Insert(i int, v T) error {
	if i < 0 || i > len(l.data) {
		return fmt.Errorf("insert %s[%d] of %d: %w", l.name, i, len(l.data), ErrInvalidIndex)
	}
	rest := make([]T, len(l.data)-i)
	copy(rest, l.data[i:])
	l.data = append(append(l.data[:i], v), rest...)
	l.emit("insert", []any{i, v}, l.data, map[string]any{
		"index": i,
		"value": v,
	})
	return nil
}

// RemoveAt deletes and returns the element at index i.
func (l *List[T]) RemoveAt(i int) (T, error) {
	var zero T
	if i < 0 || i >= len(l.data) {
		return zero, fmt.Errorf("removeAt %s[%d] of %d: %w", l.name, i, len(l.data), ErrInvalidIndex)
	}
	v := l.data[i]
	l.data = append(l.data[:i], l.data[i+1:]...)
	l.emit("removeAt", []any{i}, l.data, map[string]any{
		"index": i,
		"value": v,
	})
	return v, nil
}

// Set replaces the element at index i.
func (l *List[T]) Set(i int, v T) error {
	if i < 0 || i >= len(l.data) {
		return fmt.Errorf("set %s[%d] of %d: %w", l.name, i, len(l.data), ErrInvalidIndex)
	}
	old := l.data[i]
	l.data[i] = v
	l.emit("set", []any{i, v}, l.data, map[string]any{
		"index":    i,
		"oldValue": old,
		"newValue": v,
	})
	return nil
}

// Clear empties the list in one atomic step.
func (l *List[T]) Clear() {
	removed := len(l.data)
	l.data = l.data[:0]
	l.emit("clear", nil, l.data, map[string]any{
		"removed": removed,
	})
}
