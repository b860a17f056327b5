package step

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDetachesPayloads(t *testing.T) {
	args := []any{1, "x"}
	result := []any{3, 1, 2}
	meta := map[string]any{"index": 0}

	s := New("set", "arr", args, result, meta)

	// Mutating the originals must not leak into the step.
	args[0] = 99
	result[0] = 99
	meta["index"] = 99

	assert.Equal(t, 1, s.Args[0])
	assert.Equal(t, 3, s.Result.([]any)[0])
	assert.Equal(t, 0, s.Metadata["index"])
}

func TestCanonicalExcludesTimestamp(t *testing.T) {
	a := NewAt("push", "arr", []any{5}, []any{5}, map[string]any{"index": 0, "value": 5}, 1000)
	b := NewAt("push", "arr", []any{5}, []any{5}, map[string]any{"value": 5, "index": 0}, 2000)

	assert.Equal(t, a.Canonical(), b.Canonical())
	assert.True(t, Equal(a, b))
}

func TestCanonicalDistinguishesMutations(t *testing.T) {
	tests := []struct {
		name string
		a, b Step
	}{
		{
			name: "different type",
			a:    New("push", "arr", nil, []any{1}, nil),
			b:    New("pop", "arr", nil, []any{1}, nil),
		},
		{
			name: "different target",
			a:    New("push", "arr", nil, []any{1}, nil),
			b:    New("push", "other", nil, []any{1}, nil),
		},
		{
			name: "different snapshot",
			a:    New("push", "arr", nil, []any{1}, nil),
			b:    New("push", "arr", nil, []any{2}, nil),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, Equal(tt.a, tt.b))
		})
	}
}

func TestStepJSONRoundTrip(t *testing.T) {
	s := NewAt("swap", "arr", []any{0.0, 2.0}, []any{2.0, 1.0, 3.0},
		map[string]any{"indices": []any{0.0, 2.0}}, 1234)

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var back Step
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, Equal(s, back))
	assert.Equal(t, int64(1234), back.Timestamp)
}

func TestCanonicalLog(t *testing.T) {
	steps := []Step{
		NewAt("push", "arr", []any{1}, []any{1}, nil, 10),
		NewAt("pop", "arr", nil, []any{}, nil, 20),
	}
	again := []Step{
		NewAt("push", "arr", []any{1}, []any{1}, nil, 30),
		NewAt("pop", "arr", nil, []any{}, nil, 40),
	}
	assert.Equal(t, CanonicalLog(steps), CanonicalLog(again))
}

func TestLogRecordsInOrder(t *testing.T) {
	log := NewLog()
	log.Record(New("push", "arr", nil, []any{1}, nil))
	log.Record(New("pop", "arr", nil, []any{}, nil))

	steps := log.Steps()
	require.Len(t, steps, 2)
	assert.Equal(t, "push", steps[0].Type)
	assert.Equal(t, "pop", steps[1].Type)

	log.Reset()
	assert.Zero(t, log.Len())
}

func TestLogConcurrentRecord(t *testing.T) {
	log := NewLog()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Record(New("push", "arr", nil, nil, nil))
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, log.Len())
}

func TestTee(t *testing.T) {
	a, b := NewLog(), NewLog()
	rec := Tee(a, nil, b)
	rec.Record(New("push", "arr", nil, nil, nil))

	assert.Equal(t, 1, a.Len())
	assert.Equal(t, 1, b.Len())
}

func TestCloneDeep(t *testing.T) {
	tests := []struct {
		name string
		in   any
	}{
		{"nil", nil},
		{"int", 42},
		{"string", "hello"},
		{"slice", []any{1, "two", []any{3}}},
		{"map", map[string]any{"a": []any{1, 2}}},
		{"typed slice", []int{1, 2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Clone(tt.in)
			assert.Equal(t, tt.in, out)
		})
	}

	// Nested mutation does not propagate.
	src := map[string]any{"inner": []any{1, 2}}
	dst := Clone(src).(map[string]any)
	src["inner"].([]any)[0] = 99
	assert.Equal(t, 1, dst["inner"].([]any)[0])
}
