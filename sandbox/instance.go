package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/danielterwiel/stepvis/protocol"
)

// framesBuffer bounds undelivered frames. The supervisor drains the channel
// for the whole life of the instance, so the buffer only absorbs bursts.
const framesBuffer = 256

// Instance is one running interpreter. Frames carry protocol payloads pulled
// out of the guest's stderr; everything else the guest writes stays readable
// through Stdout and Stderr after it exits.
type Instance struct {
	stdout lockedBuffer
	split  *splitter

	stdinR *io.PipeReader
	stdinW *io.PipeWriter

	cancel   context.CancelFunc
	done     chan error
	killOnce sync.Once
}

// Send marshals v and writes it to guest stdin as a single line.
func (in *Instance) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode command: %w", err)
	}
	if _, err := in.stdinW.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write command: %w", err)
	}
	return nil
}

// Frames returns the stream of protocol payloads. The channel closes once
// the guest has exited and every captured frame has been handed over.
func (in *Instance) Frames() <-chan string {
	return in.split.frames
}

// Done yields the guest's exit error exactly once. A clean qjs run reports a
// zero exit; forced teardown surfaces as a context or sys.ExitError.
func (in *Instance) Done() <-chan error {
	return in.done
}

// Stdout returns everything the guest wrote to stdout so far.
func (in *Instance) Stdout() string {
	return in.stdout.String()
}

// Stderr returns the guest's stderr with protocol frames removed.
func (in *Instance) Stderr() string {
	return in.split.text()
}

// Kill tears the instance down. It is idempotent and safe to call while the
// guest is mid-write; any blocked frame delivery is released first so the
// runtime can observe the cancelled context.
func (in *Instance) Kill() {
	in.killOnce.Do(func() {
		in.split.interrupt()
		in.cancel()
		in.stdinW.Close()
	})
}

// splitter separates protocol frames from ordinary stderr output as the
// guest writes. Partial frames are held back until the closing marker
// arrives, so frames survive arbitrary write boundaries.
type splitter struct {
	mu          sync.Mutex
	pending     string
	passthrough bytes.Buffer

	frames   chan string
	quit     chan struct{}
	quitOnce sync.Once
	doneOnce sync.Once
}

func newSplitter() *splitter {
	return &splitter{
		frames: make(chan string, framesBuffer),
		quit:   make(chan struct{}),
	}
}

func (s *splitter) Write(data []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	content := s.pending + string(data)
	for {
		passthrough, payload, rest, found := protocol.NextFrame(content)
		s.passthrough.WriteString(passthrough)
		content = rest
		if !found {
			break
		}
		select {
		case s.frames <- payload:
		case <-s.quit:
			s.pending = ""
			return len(data), nil
		}
	}
	s.pending = content
	return len(data), nil
}

// interrupt releases any Write blocked on frame delivery. Used during
// teardown so a full channel cannot wedge the guest.
func (s *splitter) interrupt() {
	s.quitOnce.Do(func() { close(s.quit) })
}

// finish closes the frame channel. Callers must guarantee no further Write
// can occur, which holds once the module has exited.
func (s *splitter) finish() {
	s.interrupt()
	s.doneOnce.Do(func() { close(s.frames) })
}

func (s *splitter) text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.passthrough.String()
}

// lockedBuffer is a bytes.Buffer safe for concurrent producer and reader.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
