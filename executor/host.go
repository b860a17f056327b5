package executor

import (
	"context"

	"github.com/danielterwiel/stepvis/sandbox"
)

// Host launches sandboxed interpreter instances. The production
// implementation wraps [sandbox.Engine]; tests substitute a scripted fake.
type Host interface {
	Launch(ctx context.Context, script string) (Instance, error)
}

// Instance is one running guest as the orchestrator sees it: a command
// channel in, a frame stream out, and a kill switch.
type Instance interface {
	// Send writes one command line to guest stdin.
	Send(v any) error
	// Frames streams protocol payloads until the guest exits, then closes.
	Frames() <-chan string
	// Done yields the guest exit error once the instance has terminated.
	Done() <-chan error
	// Stdout returns everything written to guest stdout.
	Stdout() string
	// Stderr returns guest stderr with protocol frames removed.
	Stderr() string
	// Kill force-terminates the guest. Idempotent.
	Kill()
}

type engineHost struct {
	engine *sandbox.Engine
}

// NewEngineHost adapts a sandbox engine to the Host interface.
func NewEngineHost(engine *sandbox.Engine) Host {
	return engineHost{engine: engine}
}

func (h engineHost) Launch(ctx context.Context, script string) (Instance, error) {
	inst, err := h.engine.Launch(ctx, script)
	if err != nil {
		return nil, err
	}
	return inst, nil
}
