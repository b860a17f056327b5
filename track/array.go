package track

import (
	"fmt"
	"sort"

	"github.com/danielterwiel/stepvis/step"
)

// Array is an order-preserving, index-addressable tracked container. It is
// the host-side twin of the guest runtime's TrackedArray: operation names
// and metadata keys match exactly, so guest-emitted logs and host-side
// replay agree.
type Array[T any] struct {
	core
	data []T
}

// NewArray builds a tracked array seeded with a deep copy of initial. An
// empty name defaults to "array".
func NewArray[T any](name string, initial []T, opts ...Option) *Array[T] {
	o := buildOptions(opts)
	a := &Array[T]{core: newCore(name, "array", o)}
	if len(initial) > 0 {
		a.data = step.Clone(initial).([]T)
	}
	return a
}

// Len returns the element count. Reads never emit.
func (a *Array[T]) Len() int { return len(a.data) }

// At returns the element at index i.
func (a *Array[T]) At(i int) (T, error) {
	var zero T
	if i < 0 || i >= len(a.data) {
		return zero, fmt.Errorf("at %s[%d] of %d: %w", a.name, i, len(a.data), ErrInvalidIndex)
	}
	return a.data[i], nil
}

// Values returns a copy of the current contents.
func (a *Array[T]) Values() []T {
	out := make([]T, len(a.data))
	copy(out, a.data)
	return out
}

// Equal compares two arrays element-wise with eq. Comparison is a pure read.
func (a *Array[T]) Equal(other *Array[T], eq func(x, y T) bool) bool {
	if other == nil || len(a.data) != len(other.data) {
		return false
	}
	for i := range a.data {
		if !eq(a.data[i], other.data[i]) {
			return false
		}
	}
	return true
}

// Set replaces the element at index i.
func (a *Array[T]) Set(i int, v T) error {
	if i < 0 || i >= len(a.data) {
		return fmt.Errorf("set %s[%d] of %d: %w", a.name, i, len(a.data), ErrInvalidIndex)
	}
	old := a.data[i]
	a.data[i] = v
	a.emit("set", []any{i, v}, a.data, map[string]any{
		"index":    i,
		"oldValue": old,
		"newValue": v,
	})
	return nil
}

// Push appends v to the tail.
func (a *Array[T]) Push(v T) {
	a.data = append(a.data, v)
	a.emit("push", []any{v}, a.data, map[string]any{
		"index": len(a.data) - 1,
		"value": v,
	})
}

// Pop removes and returns the tail element.
func (a *Array[T]) Pop() (T, error) {
	var zero T
	if len(a.data) == 0 {
		return zero, fmt.Errorf("pop %s: empty: %w", a.name, ErrInvalidRange)
	}
	i := len(a.data) - 1
	v := a.data[i]
	a.data = a.data[:i]
	a.emit("pop", nil, a.data, map[string]any{
		"index": i,
		"value": v,
	})
	return v, nil
}

// Shift removes and returns the head element.
func (a *Array[T]) Shift() (T, error) {
	var zero T
	if len(a.data) == 0 {
		return zero, fmt.Errorf("shift %s: empty: %w", a.name, ErrInvalidRange)
	}
	v := a.data[0]
	a.data = append(a.data[:0], a.data[1:]...)
	a.emit("shift", nil, a.data, map[string]any{
		"index": 0,
		"value": v,
	})
	return v, nil
}

// Unshift prepends v at the head.
func (a *Array[T]) Unshift(v T) {
	a.data = append([]T{v}, a.data...)
	a.emit("unshift", []any{v}, a.data, map[string]any{
		"index": 0,
		"value": v,
	})
}

// Swap exchanges the elements at i and j. The recorded values are the pair
// as read before the exchange.
func (a *Array[T]) Swap(i, j int) error {
	if i < 0 || i >= len(a.data) {
		return fmt.Errorf("swap %s[%d] of %d: %w", a.name, i, len(a.data), ErrInvalidIndex)
	}
	if j < 0 || j >= len(a.data) {
		return fmt.Errorf("swap %s[%d] of %d: %w", a.name, j, len(a.data), ErrInvalidIndex)
	}
	vi, vj := a.data[i], a.data[j]
	a.data[i], a.data[j] = vj, vi
	a.emit("swap", []any{i, j}, a.data, map[string]any{
		"indices": []any{i, j},
		"values":  []any{vi, vj},
	})
	return nil
}

// Sort orders the contents by less. The stable sort keeps equal elements in
// their prior order, so identical inputs yield identical snapshots.
func (a *Array[T]) Sort(less func(x, y T) bool) {
	sort.SliceStable(a.data, func(i, j int) bool {
		return less(a.data[i], a.data[j])
	})
	a.emit("sort", nil, a.data, map[string]any{
		"sorted": true,
	})
}

// Reverse flips the element order in place.
func (a *Array[T]) Reverse() {
	for i, j := 0, len(a.data)-1; i < j; i, j = i+1, j-1 {
		a.data[i], a.data[j] = a.data[j], a.data[i]
	}
	a.emit("reverse", nil, a.data, nil)
}

// Splice removes deleteCount elements starting at start, inserts items in
// their place, and returns the removed elements. Unlike its JavaScript
// namesake it rejects out-of-range spans instead of clamping.
func (a *Array[T]) Splice(start, deleteCount int, items ...T) ([]T, error) {
	if start < 0 || start > len(a.data) {
		return nil, fmt.Errorf("splice %s at %d of %d: %w", a.name, start, len(a.data), ErrInvalidIndex)
	}
	if deleteCount < 0 || start+deleteCount > len(a.data) {
		return nil, fmt.Errorf("splice %s [%d,%d) of %d: %w", a.name, start, start+deleteCount, len(a.data), ErrInvalidRange)
	}

	deleted := make([]T, deleteCount)
	copy(deleted, a.data[start:start+deleteCount])

	rest := make([]T, len(a.data)-start-deleteCount)
	copy(rest, a.data[start+deleteCount:])
	a.data = append(a.data[:start], append(append([]T{}, items...), rest...)...)

	args := []any{start, deleteCount}
	for _, it := range items {
		args = append(args, it)
	}
	a.emit("splice", args, a.data, map[string]any{
		"start":       start,
		"deleteCount": deleteCount,
		"deleted":     deleted,
		"inserted":    len(items),
	})
	return deleted, nil
}

// Reset replaces the whole dataset in one atomic step.
func (a *Array[T]) Reset(data []T) {
	if len(data) == 0 {
		a.data = nil
	} else {
		a.data = step.Clone(data).([]T)
	}
	a.emit("reset", nil, a.data, map[string]any{
		"length": len(a.data),
	})
}
