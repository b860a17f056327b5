package step

import "sync"

// Recorder observes steps as containers emit them. Record is called
// synchronously, at most once per successful mutating operation, and must
// not retain references into container state (Step payloads are already
// detached copies).
type Recorder interface {
	Record(Step)
}

// RecorderFunc adapts a function to the Recorder interface.
type RecorderFunc func(Step)

func (f RecorderFunc) Record(s Step) { f(s) }

// Log is an append-only step collector safe for concurrent use. The zero
// value is ready to record.
type Log struct {
	mu    sync.Mutex
	steps []Step
}

func NewLog() *Log { return &Log{} }

func (l *Log) Record(s Step) {
	l.mu.Lock()
	l.steps = append(l.steps, s)
	l.mu.Unlock()
}

// Steps returns a copy of the recorded sequence in emission order.
func (l *Log) Steps() []Step {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Step, len(l.steps))
	copy(out, l.steps)
	return out
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.steps)
}

// Reset discards all recorded steps.
func (l *Log) Reset() {
	l.mu.Lock()
	l.steps = l.steps[:0]
	l.mu.Unlock()
}

// Tee fans a step out to multiple recorders in order.
func Tee(recorders ...Recorder) Recorder {
	return RecorderFunc(func(s Step) {
		for _, r := range recorders {
			if r != nil {
				r.Record(s)
			}
		}
	})
}
