// Package step defines the immutable record type emitted by tracked
// containers and carried across the supervisor/guest protocol.
package step

import (
	"bytes"
	"encoding/json"
	"time"
)

// Step records one semantically meaningful container mutation. Steps are
// immutable once created: New deep-copies Args, Result, and Metadata so no
// field aliases live container storage. Emission order, not Timestamp, is
// authoritative; timestamps may tie under coarse clocks.
type Step struct {
	Type      string         `json:"type"`
	Target    string         `json:"target"`
	Args      []any          `json:"args,omitempty"`
	Result    any            `json:"result"`
	Timestamp int64          `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// New builds a Step with deep-copied payloads. The result argument is the
// post-mutation snapshot of the whole container.
func New(typ, target string, args []any, result any, metadata map[string]any) Step {
	return NewAt(typ, target, args, result, metadata, time.Now().UnixMilli())
}

// NewAt is New with an explicit millisecond timestamp. Containers use it
// with an injected clock so tests can produce fully reproducible logs.
func NewAt(typ, target string, args []any, result any, metadata map[string]any, ts int64) Step {
	var cargs []any
	if args != nil {
		cargs = Clone(args).([]any)
	}
	var cmeta map[string]any
	if metadata != nil {
		cmeta = Clone(metadata).(map[string]any)
	}
	return Step{
		Type:      typ,
		Target:    target,
		Args:      cargs,
		Result:    Clone(result),
		Timestamp: ts,
		Metadata:  cmeta,
	}
}

// canonicalStep is Step minus the timestamp, which is the only
// non-deterministic field.
type canonicalStep struct {
	Type     string         `json:"type"`
	Target   string         `json:"target"`
	Args     []any          `json:"args,omitempty"`
	Result   any            `json:"result"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Canonical returns a deterministic encoding of the step: JSON with the
// timestamp excluded. encoding/json sorts map keys, so two steps describing
// the same mutation encode to identical bytes. Golden-log tests and the
// container determinism invariant compare canonical bytes.
func (s Step) Canonical() []byte {
	b, err := json.Marshal(canonicalStep{
		Type:     s.Type,
		Target:   s.Target,
		Args:     s.Args,
		Result:   s.Result,
		Metadata: s.Metadata,
	})
	if err != nil {
		// Only payloads json cannot encode (channels, funcs) reach this;
		// those never come out of a container snapshot.
		return []byte(`{"type":` + quote(s.Type) + `,"error":"unencodable"}`)
	}
	return b
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// Equal reports whether two steps describe the same mutation, ignoring
// timestamps.
func Equal(a, b Step) bool {
	return bytes.Equal(a.Canonical(), b.Canonical())
}

// CanonicalLog encodes an ordered step sequence, one canonical step per
// line. Byte-identical outputs mean byte-identical logs.
func CanonicalLog(steps []Step) []byte {
	var buf bytes.Buffer
	for _, s := range steps {
		buf.Write(s.Canonical())
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// ConsoleEntry is one captured console call from the guest. Entries are
// accumulated independent of outcome and always returned, even on failure.
type ConsoleEntry struct {
	Level     string `json:"level"`
	Args      []any  `json:"args"`
	Timestamp int64  `json:"timestamp"`
}
