package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielterwiel/stepvis/step"
)

func TestListAppendPrependInsert(t *testing.T) {
	log := step.NewLog()
	l := NewList[string]("list", nil, WithRecorder(log))

	l.Append("b")
	l.Prepend("a")
	require.NoError(t, l.Insert(2, "c"))

	assert.Equal(t, []string{"a", "b", "c"}, l.Values())

	steps := log.Steps()
	require.Len(t, steps, 3)
	assert.Equal(t, "append", steps[0].Type)
	assert.Equal(t, 0, steps[0].Metadata["index"])
	assert.Equal(t, "prepend", steps[1].Type)
	assert.Equal(t, "insert", steps[2].Type)
	assert.Equal(t, 2, steps[2].Metadata["index"])
}

func TestListInsertBounds(t *testing.T) {
	log := step.NewLog()
	l := NewList("list", []string{"a"}, WithRecorder(log))

	// Insert at len is an append position.
	require.NoError(t, l.Insert(1, "b"))
	assert.Equal(t, []string{"a", "b"}, l.Values())

	err := l.Insert(5, "x")
	assert.ErrorIs(t, err, ErrInvalidIndex)
	err = l.Insert(-1, "x")
	assert.ErrorIs(t, err, ErrInvalidIndex)
	assert.Equal(t, []string{"a", "b"}, l.Values())
	assert.Equal(t, 1, log.Len())
}

func TestListRemoveAtAndSet(t *testing.T) {
	log := step.NewLog()
	l := NewList("list", []string{"a", "b", "c"}, WithRecorder(log))

	v, err := l.RemoveAt(1)
	require.NoError(t, err)
	assert.Equal(t, "b", v)
	assert.Equal(t, []string{"a", "c"}, l.Values())

	require.NoError(t, l.Set(1, "z"))
	assert.Equal(t, []string{"a", "z"}, l.Values())

	steps := log.Steps()
	require.Len(t, steps, 2)
	assert.Equal(t, "removeAt", steps[0].Type)
	assert.Equal(t, "b", steps[0].Metadata["value"])
	assert.Equal(t, "set", steps[1].Type)
	assert.Equal(t, "c", steps[1].Metadata["oldValue"])

	_, err = l.RemoveAt(9)
	assert.ErrorIs(t, err, ErrInvalidIndex)
	err = l.Set(9, "x")
	assert.ErrorIs(t, err, ErrInvalidIndex)
	assert.Equal(t, 2, log.Len())
}

func TestListClear(t *testing.T) {
	log := step.NewLog()
	l := NewList("list", []string{"a", "b"}, WithRecorder(log))

	l.Clear()

	assert.Zero(t, l.Len())
	s := log.Steps()[0]
	assert.Equal(t, "clear", s.Type)
	assert.Equal(t, 2, s.Metadata["removed"])
	// An emptied snapshot is an empty sequence, not an absent one.
	assert.Equal(t, []string{}, s.Result)
}

func TestStackLIFO(t *testing.T) {
	log := step.NewLog()
	s := NewStack[int]("stack", nil, WithRecorder(log))

	s.Push(1)
	s.Push(2)

	top, err := s.Peek()
	require.NoError(t, err)
	assert.Equal(t, 2, top)

	v, err := s.Pop()
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.Equal(t, []int{1}, s.Values())

	steps := log.Steps()
	require.Len(t, steps, 3)
	assert.Equal(t, "push", steps[0].Type)
	assert.Equal(t, 1, steps[0].Metadata["depth"])
	assert.Equal(t, 2, steps[1].Metadata["depth"])
	assert.Equal(t, "pop", steps[2].Type)
	assert.Equal(t, 2, steps[2].Metadata["value"])
	// Depth reflects the stack after the pop.
	assert.Equal(t, 1, steps[2].Metadata["depth"])
}

func TestStackEmptyPopAndPeek(t *testing.T) {
	log := step.NewLog()
	s := NewStack[int]("stack", nil, WithRecorder(log))

	_, err := s.Pop()
	assert.ErrorIs(t, err, ErrInvalidRange)
	_, err = s.Peek()
	assert.ErrorIs(t, err, ErrInvalidRange)
	assert.Zero(t, log.Len())
}

func TestStackClear(t *testing.T) {
	log := step.NewLog()
	s := NewStack("stack", []int{1, 2, 3}, WithRecorder(log))

	s.Clear()

	assert.Zero(t, s.Len())
	assert.Equal(t, 3, log.Steps()[0].Metadata["removed"])
}

func TestQueueFIFO(t *testing.T) {
	log := step.NewLog()
	q := NewQueue[int]("queue", nil, WithRecorder(log))

	q.Enqueue(1)
	q.Enqueue(2)

	front, err := q.Front()
	require.NoError(t, err)
	assert.Equal(t, 1, front)
	back, err := q.Back()
	require.NoError(t, err)
	assert.Equal(t, 2, back)

	v, err := q.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.Equal(t, []int{2}, q.Values())

	steps := log.Steps()
	require.Len(t, steps, 3)
	assert.Equal(t, "enqueue", steps[0].Type)
	assert.Equal(t, 1, steps[0].Metadata["length"])
	assert.Equal(t, "dequeue", steps[2].Type)
	assert.Equal(t, 1, steps[2].Metadata["value"])
	// Length reflects the queue after the dequeue.
	assert.Equal(t, 1, steps[2].Metadata["length"])
}

func TestQueueEmptyReads(t *testing.T) {
	log := step.NewLog()
	q := NewQueue[int]("queue", nil, WithRecorder(log))

	_, err := q.Dequeue()
	assert.ErrorIs(t, err, ErrInvalidRange)
	_, err = q.Front()
	assert.ErrorIs(t, err, ErrInvalidRange)
	_, err = q.Back()
	assert.ErrorIs(t, err, ErrInvalidRange)
	assert.Zero(t, log.Len())
}

func TestQueueClear(t *testing.T) {
	log := step.NewLog()
	q := NewQueue("queue", []int{1, 2}, WithRecorder(log))

	q.Clear()

	assert.Zero(t, q.Len())
	assert.Equal(t, 2, log.Steps()[0].Metadata["removed"])
}

func TestContainersShareOneRecorder(t *testing.T) {
	log := step.NewLog()
	a := NewArray[int]("nums", nil, WithRecorder(log))
	s := NewStack[int]("calls", nil, WithRecorder(log))

	a.Push(1)
	s.Push(2)
	a.Push(3)

	steps := log.Steps()
	require.Len(t, steps, 3)
	assert.Equal(t, "nums", steps[0].Target)
	assert.Equal(t, "calls", steps[1].Target)
	assert.Equal(t, "nums", steps[2].Target)
}

func TestDefaultNames(t *testing.T) {
	log := step.NewLog()
	NewArray[int]("", nil, WithRecorder(log)).Push(1)
	NewList[int]("", nil, WithRecorder(log)).Append(1)
	NewStack[int]("", nil, WithRecorder(log)).Push(1)
	NewQueue[int]("", nil, WithRecorder(log)).Enqueue(1)

	steps := log.Steps()
	require.Len(t, steps, 4)
	assert.Equal(t, "array", steps[0].Target)
	assert.Equal(t, "list", steps[1].Target)
	assert.Equal(t, "stack", steps[2].Target)
	assert.Equal(t, "queue", steps[3].Target)
}
