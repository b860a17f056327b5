package track

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/danielterwiel/stepvis/step"
)

// FilterTarget returns the sub-log of steps emitted by one container, in
// emission order.
func FilterTarget(steps []step.Step, target string) []step.Step {
	var out []step.Step
	for _, s := range steps {
		if s.Target == target {
			out = append(out, s)
		}
	}
	return out
}

// Verify replays a container step log against its initial data: each
// operation is recomputed host-side from the step's arguments and metadata,
// and the result is compared with the recorded snapshot. A nil return means
// the log is faithful: applying the same operations to the same initial
// data reproduces every recorded state. Steps must all belong to one
// container; the operations of all four container kinds are understood.
func Verify(initial []any, steps []step.Step) error {
	cur := []any{}
	if len(initial) > 0 {
		cur = step.Clone(initial).([]any)
	}

	target := ""
	for i, s := range steps {
		if target == "" {
			target = s.Target
		} else if s.Target != target {
			return fmt.Errorf("step %d: target %q in a log for %q", i, s.Target, target)
		}

		next, err := applyStep(cur, s)
		if err != nil {
			return fmt.Errorf("step %d (%s): %w", i, s.Type, err)
		}
		if !jsonEqual(next, s.Result) {
			return fmt.Errorf("step %d (%s): recomputed state %s does not match recorded snapshot %s",
				i, s.Type, canonJSON(next), canonJSON(s.Result))
		}
		cur = next
	}
	return nil
}

// ReplayCheck verifies the internal consistency of a single-target step log
// when the initial data is unknown: the first step's snapshot seeds the
// replay and every later step is recomputed from its predecessor. Logs of
// fewer than two steps are trivially consistent.
func ReplayCheck(steps []step.Step) error {
	if len(steps) < 2 {
		return nil
	}
	seed, err := snapshotSlice(steps[0].Result)
	if err != nil {
		return fmt.Errorf("step 0 (%s): %w", steps[0].Type, err)
	}
	if steps[1].Target != steps[0].Target {
		return fmt.Errorf("step 1: target %q in a log for %q", steps[1].Target, steps[0].Target)
	}
	return Verify(seed, steps[1:])
}

func applyStep(cur []any, s step.Step) ([]any, error) {
	next := append([]any{}, cur...)

	switch s.Type {
	case "set":
		i, ok := metaIndex(s, "index")
		if !ok || i < 0 || i >= len(next) {
			return nil, fmt.Errorf("bad index in metadata")
		}
		next[i] = s.Metadata["newValue"]

	case "push", "append", "enqueue":
		next = append(next, s.Metadata["value"])

	case "pop":
		if len(next) == 0 {
			return nil, fmt.Errorf("pop on empty state")
		}
		next = next[:len(next)-1]

	case "shift", "dequeue":
		if len(next) == 0 {
			return nil, fmt.Errorf("%s on empty state", s.Type)
		}
		next = next[1:]

	case "unshift", "prepend":
		next = append([]any{s.Metadata["value"]}, next...)

	case "insert":
		i, ok := metaIndex(s, "index")
		if !ok || i < 0 || i > len(next) {
			return nil, fmt.Errorf("bad index in metadata")
		}
		rest := append([]any{}, next[i:]...)
		next = append(append(next[:i], s.Metadata["value"]), rest...)

	case "removeAt":
		i, ok := metaIndex(s, "index")
		if !ok || i < 0 || i >= len(next) {
			return nil, fmt.Errorf("bad index in metadata")
		}
		next = append(next[:i], next[i+1:]...)

	case "clear":
		next = []any{}

	case "swap":
		pair, ok := s.Metadata["indices"].([]any)
		if !ok || len(pair) != 2 {
			return nil, fmt.Errorf("bad indices in metadata")
		}
		i, iok := asInt(pair[0])
		j, jok := asInt(pair[1])
		if !iok || !jok || i < 0 || i >= len(next) || j < 0 || j >= len(next) {
			return nil, fmt.Errorf("swap indices out of range")
		}
		next[i], next[j] = next[j], next[i]

	case "reverse":
		for i, j := 0, len(next)-1; i < j; i, j = i+1, j-1 {
			next[i], next[j] = next[j], next[i]
		}

	case "sort":
		// The comparator is not recorded; accept the snapshot but require it
		// to be a permutation of the prior state.
		snap, err := snapshotSlice(s.Result)
		if err != nil {
			return nil, err
		}
		if !samePermutation(next, snap) {
			return nil, fmt.Errorf("sort snapshot is not a permutation of the prior state")
		}
		next = snap

	case "splice":
		start, sok := metaIndex(s, "start")
		count, cok := metaIndex(s, "deleteCount")
		if !sok || !cok || start < 0 || count < 0 || start+count > len(next) {
			return nil, fmt.Errorf("splice span out of range")
		}
		if len(s.Args) < 2 {
			return nil, fmt.Errorf("splice args missing")
		}
		items := append([]any{}, s.Args[2:]...)
		rest := append([]any{}, next[start+count:]...)
		next = append(append(next[:start], items...), rest...)

	case "reset":
		snap, err := snapshotSlice(s.Result)
		if err != nil {
			return nil, err
		}
		next = snap

	default:
		return nil, fmt.Errorf("unknown operation")
	}

	return next, nil
}

func metaIndex(s step.Step, key string) (int, bool) {
	if s.Metadata == nil {
		return 0, false
	}
	return asInt(s.Metadata[key])
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	default:
		return 0, false
	}
}

func snapshotSlice(v any) ([]any, error) {
	if v == nil {
		return []any{}, nil
	}
	if s, ok := v.([]any); ok {
		return step.Clone(s).([]any), nil
	}
	// Host-emitted snapshots carry their element type; round-trip through
	// JSON to get the []any the replay state machine works in.
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("snapshot not a sequence")
	}
	var out []any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("snapshot not a sequence")
	}
	return out, nil
}

func jsonEqual(a, b any) bool {
	return string(canonJSON(a)) == string(canonJSON(b))
}

func canonJSON(v any) []byte {
	if v == nil {
		v = []any{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return []byte("\"unencodable\"")
	}
	return b
}

func samePermutation(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	ka := make([]string, len(a))
	kb := make([]string, len(b))
	for i := range a {
		ka[i] = string(canonJSON(a[i]))
		kb[i] = string(canonJSON(b[i]))
	}
	sort.Strings(ka)
	sort.Strings(kb)
	for i := range ka {
		if ka[i] != kb[i] {
			return false
		}
	}
	return true
}
