// Package track provides operation-tracking containers: ordered collections
// whose mutating operations each emit exactly one step describing the
// mutation, while reads stay silent. Identical initial data plus an
// identical call sequence produces a byte-identical canonical step log on
// every run, which is what makes recorded executions replayable.
//
// Mutation goes through named methods only; there is no implicit
// interception of indexing, so every write path visibly calls the
// step-emission hook. An operation either fully applies and emits one step,
// or fails with ErrInvalidIndex/ErrInvalidRange leaving the container
// untouched and emitting nothing.
package track

import (
	"errors"
	"reflect"
	"time"

	"github.com/danielterwiel/stepvis/step"
)

var (
	// ErrInvalidIndex reports an index argument outside [0, length).
	ErrInvalidIndex = errors.New("index out of range")
	// ErrInvalidRange reports an invalid span, including removal from an
	// empty container.
	ErrInvalidRange = errors.New("invalid range")
)

// Option configures a container at construction time.
type Option func(*options)

type options struct {
	recorder step.Recorder
	clock    func() int64
}

// WithRecorder attaches the observer that receives one step per successful
// mutation. Without a recorder the container still mutates normally; it just
// emits nothing.
func WithRecorder(r step.Recorder) Option {
	return func(o *options) {
		o.recorder = r
	}
}

// WithClock overrides the millisecond timestamp source. Tests use a fixed
// clock to make step logs reproducible down to the timestamp.
func WithClock(clock func() int64) Option {
	return func(o *options) {
		o.clock = clock
	}
}

func buildOptions(opts []Option) options {
	o := options{
		clock: func() int64 { return time.Now().UnixMilli() },
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// core carries the identity and emission wiring shared by all containers.
type core struct {
	name     string
	recorder step.Recorder
	clock    func() int64
}

func newCore(name, fallback string, o options) core {
	if name == "" {
		name = fallback
	}
	return core{name: name, recorder: o.recorder, clock: o.clock}
}

// Name returns the container identity used as Step.Target.
func (c *core) Name() string { return c.name }

// emit builds and records one step. step.NewAt deep-copies args, snapshot,
// and metadata, so the recorder never sees live container storage.
func (c *core) emit(typ string, args []any, snapshot any, meta map[string]any) {
	if c.recorder == nil {
		return
	}
	c.recorder.Record(step.NewAt(typ, c.name, args, nonNilSlice(snapshot), meta, c.clock()))
}

// nonNilSlice keeps empty snapshots encoding as [] rather than null, so
// host-emitted and guest-emitted logs stay comparable.
func nonNilSlice(v any) any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice && rv.IsNil() {
		return reflect.MakeSlice(rv.Type(), 0, 0).Interface()
	}
	return v
}
