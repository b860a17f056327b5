package executor

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"sync"

	"github.com/danielterwiel/stepvis/sandbox"
)

// errKilled stands in for the exit error the runtime reports after forced
// teardown.
var errKilled = errors.New("module closed with context canceled")

var tokenRe = regexp.MustCompile(`"token":"([^"]+)"`)

// fakeHost hands out scripted instances so orchestrator logic is testable
// without a wasm runtime. Each launch runs behavior as the guest: it
// receives the correlation token recovered from the assembled script and
// drives the instance like real guest code would.
type fakeHost struct {
	behavior  func(token string, inst *fakeInstance)
	launchErr error

	mu       sync.Mutex
	launched []*fakeInstance
}

func newFakeHost(behavior func(token string, inst *fakeInstance)) *fakeHost {
	return &fakeHost{behavior: behavior}
}

func (h *fakeHost) Launch(_ context.Context, script string) (Instance, error) {
	if h.launchErr != nil {
		return nil, h.launchErr
	}
	token := ""
	if m := tokenRe.FindStringSubmatch(script); m != nil {
		token = m[1]
	}
	inst := newFakeInstance(token, script)
	h.mu.Lock()
	h.launched = append(h.launched, inst)
	h.mu.Unlock()
	go h.behavior(token, inst)
	return inst, nil
}

func (h *fakeHost) instances() []*fakeInstance {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*fakeInstance, len(h.launched))
	copy(out, h.launched)
	return out
}

type fakeInstance struct {
	token  string
	script string

	frames chan string
	done   chan error
	invoke chan sandbox.InvokeCommand

	mu        sync.Mutex
	finished  bool
	killCount int
	sendErr   error
	stdout    string
	stderrTxt string
}

func newFakeInstance(token, script string) *fakeInstance {
	return &fakeInstance{
		token:  token,
		script: script,
		frames: make(chan string, 64),
		done:   make(chan error, 1),
		invoke: make(chan sandbox.InvokeCommand, 1),
	}
}

func (f *fakeInstance) Send(v any) error {
	f.mu.Lock()
	serr := f.sendErr
	f.mu.Unlock()
	if serr != nil {
		return serr
	}
	if cmd, ok := v.(sandbox.InvokeCommand); ok {
		select {
		case f.invoke <- cmd:
		default:
		}
	}
	return nil
}

func (f *fakeInstance) Frames() <-chan string { return f.frames }
func (f *fakeInstance) Done() <-chan error    { return f.done }

func (f *fakeInstance) Stdout() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stdout
}

func (f *fakeInstance) Stderr() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stderrTxt
}

func (f *fakeInstance) Kill() {
	f.mu.Lock()
	f.killCount++
	f.mu.Unlock()
	f.finish(errKilled)
}

func (f *fakeInstance) kills() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.killCount
}

// post marshals a protocol message onto the frame stream. Returns false once
// the instance has finished, mirroring a dead guest.
func (f *fakeInstance) post(msg any) bool {
	b, err := json.Marshal(msg)
	if err != nil {
		panic("fake guest produced unencodable message: " + err.Error())
	}
	return f.postRaw(string(b))
}

func (f *fakeInstance) postRaw(payload string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.finished {
		return false
	}
	f.frames <- payload
	return true
}

// finish simulates guest exit: the frame stream closes and the exit error is
// delivered exactly once.
func (f *fakeInstance) finish(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.finished {
		return
	}
	f.finished = true
	close(f.frames)
	f.done <- err
}

func (f *fakeInstance) setStderr(s string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stderrTxt = s
}
