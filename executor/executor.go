package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danielterwiel/stepvis/guard"
	"github.com/danielterwiel/stepvis/instrument"
	"github.com/danielterwiel/stepvis/protocol"
	"github.com/danielterwiel/stepvis/sandbox"
	"github.com/danielterwiel/stepvis/step"
)

// Request describes one execution of untrusted source.
type Request struct {
	// Source is the raw user program. It is instrumented before launch.
	Source string `json:"source"`
	// EntryPoint names the function to call after the source evaluates.
	// Empty means the source's own completion value is the result.
	EntryPoint string `json:"entryPoint"`
	// Args are JSON values passed to the entry point.
	Args []any `json:"args"`
	// Assertions, when present, run after the entry point returns and turn
	// the terminal message into a test verdict.
	Assertions string `json:"assertions,omitempty"`
	// TestID correlates a test verdict with its case.
	TestID string `json:"testId,omitempty"`
}

// Result is the shaped outcome of one execution. Steps and ConsoleLogs are
// never nil: a failed run still returns everything captured before the
// failure.
type Result struct {
	Success     bool                `json:"success"`
	Result      any                 `json:"result"`
	Steps       []step.Step         `json:"steps"`
	ConsoleLogs []step.ConsoleEntry `json:"consoleLogs"`
	Error       string              `json:"error,omitempty"`
	Stack       string              `json:"stack,omitempty"`
	Fault       *guard.Fault        `json:"fault,omitempty"`
	// Output is the guest's raw stdout, kept for diagnostics.
	Output string `json:"output,omitempty"`
	// Duration is the guest-reported execution time when the run produced a
	// terminal message carrying one, wall time otherwise.
	Duration time.Duration `json:"-"`
}

// MarshalJSON renders Duration as integral executionTime milliseconds, the
// unit every protocol consumer already speaks.
func (r Result) MarshalJSON() ([]byte, error) {
	type alias Result
	return json.Marshal(struct {
		alias
		ExecutionTime int64 `json:"executionTime"`
	}{alias(r), r.Duration.Milliseconds()})
}

// TestCase is one scripted invocation of the entry point.
type TestCase struct {
	ID         string `json:"id"`
	Args       []any  `json:"args"`
	Assertions string `json:"assertions,omitempty"`
}

// TestOutcome is the verdict for one case.
type TestOutcome struct {
	TestID      string              `json:"testId"`
	Passed      bool                `json:"passed"`
	Error       string              `json:"error,omitempty"`
	Fault       *guard.Fault        `json:"fault,omitempty"`
	Steps       []step.Step         `json:"steps"`
	ConsoleLogs []step.ConsoleEntry `json:"consoleLogs"`
	Duration    time.Duration       `json:"-"`
}

// MarshalJSON mirrors Result's executionTime rendering.
func (o TestOutcome) MarshalJSON() ([]byte, error) {
	type alias TestOutcome
	return json.Marshal(struct {
		alias
		ExecutionTime int64 `json:"executionTime"`
	}{alias(o), o.Duration.Milliseconds()})
}

// Executor composes instrumentation, sandboxing, and supervision into one
// request/response cycle.
type Executor struct {
	host  Host
	guard guard.Config
	log   *zap.Logger
}

// New builds an executor around host. Guard defaults are validated here so
// every later execution starts from a known-good config.
func New(host Host, opts ...ExecutorOption) (*Executor, error) {
	cfg := executorConfig{
		guard: guard.DefaultConfig(),
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	validated, err := guard.Validate(cfg.guard)
	if err != nil {
		return nil, fmt.Errorf("guard defaults: %w", err)
	}
	return &Executor{host: host, guard: validated, log: cfg.log}, nil
}

// Execute runs one request to its terminal message or teardown.
func (e *Executor) Execute(ctx context.Context, req Request, opts ...RunOption) Result {
	res, _ := e.run(ctx, req, opts...)
	return res
}

// RunTests executes one sandbox instance per case, sequentially. Cases are
// independent: a fault or crash in one cannot leak state into the next.
// Empty case IDs are assigned fresh ones so every verdict is addressable.
func (e *Executor) RunTests(ctx context.Context, source, entry string, cases []TestCase, opts ...RunOption) []TestOutcome {
	outcomes := make([]TestOutcome, 0, len(cases))
	for _, c := range cases {
		id := c.ID
		if id == "" {
			id = uuid.NewString()
		}
		res, terminal := e.run(ctx, Request{
			Source:     source,
			EntryPoint: entry,
			Args:       c.Args,
			Assertions: c.Assertions,
			TestID:     id,
		}, opts...)

		out := TestOutcome{
			TestID:      id,
			Error:       res.Error,
			Fault:       res.Fault,
			Steps:       res.Steps,
			ConsoleLogs: res.ConsoleLogs,
			Duration:    res.Duration,
		}
		switch terminal.(type) {
		case *protocol.TestResult:
			out.Passed = res.Success
		case *protocol.ExecutionComplete:
			// No assertions supplied: completing at all is the pass.
			out.Passed = true
		}
		outcomes = append(outcomes, out)
	}
	return outcomes
}

// run is the shared execution core. It returns the shaped result plus the
// raw terminal message so RunTests can distinguish verdict kinds.
func (e *Executor) run(ctx context.Context, req Request, opts ...RunOption) (Result, protocol.Message) {
	started := time.Now()
	rc := buildRunConfig(opts)

	cfg := e.guard
	if rc.guard != nil {
		validated, err := guard.Validate(*rc.guard)
		if err != nil {
			return finalize(Result{Error: err.Error(), Duration: time.Since(started)}), nil
		}
		cfg = validated
	}

	if strings.TrimSpace(req.Source) == "" {
		return finalize(Result{Error: "empty source", Duration: time.Since(started)}), nil
	}

	injected := instrument.Inject(req.Source, !cfg.DisableLoopInjection, !cfg.DisableRecursionTracking)
	token := step.NewCorrelationID()

	script, err := sandbox.Script(injected.Source, token, cfg)
	if err != nil {
		return finalize(Result{Error: err.Error(), Duration: time.Since(started)}), nil
	}

	e.log.Debug("launching guest",
		zap.String("token", token),
		zap.Int("loopSites", injected.LoopSites),
		zap.Int("functionSites", injected.FunctionSites),
		zap.Duration("watchdog", cfg.ExternalTimeout),
	)

	inst, err := e.host.Launch(ctx, script)
	if err != nil {
		return finalize(Result{Error: "launch sandbox: " + err.Error(), Duration: time.Since(started)}), nil
	}
	defer inst.Kill()

	cmd := sandbox.NewInvokeCommand(req.EntryPoint, req.Args)
	cmd.Assertions = req.Assertions
	cmd.TestID = req.TestID
	if err := inst.Send(cmd); err != nil {
		// The guest may have died before reading stdin; keep collecting so
		// any error it posted first still shapes the result.
		e.log.Debug("send invoke failed", zap.Error(err))
	}

	var wdMu sync.Mutex
	var wdFault *guard.Fault
	watchdog := guard.NewWatchdog(cfg.ExternalTimeout, func(f guard.Fault) {
		wdMu.Lock()
		wdFault = &f
		wdMu.Unlock()
		e.log.Warn("watchdog expired, killing guest",
			zap.String("token", token),
			zap.Duration("timeout", cfg.ExternalTimeout),
		)
		inst.Kill()
	})
	defer watchdog.Cancel()

	var (
		steps    []step.Step
		console  []step.ConsoleEntry
		terminal protocol.Message
		rejected int
	)
	for payload := range inst.Frames() {
		msg, ok := protocol.Classify([]byte(payload), token)
		if !ok {
			rejected++
			e.log.Debug("frame rejected", zap.String("payload", truncate(payload, 200)))
			continue
		}
		switch m := msg.(type) {
		case *protocol.CaptureStep:
			steps = append(steps, m.Step)
			if rc.stepObs != nil {
				rc.stepObs(m.Step)
			}
		case *protocol.ConsoleLog:
			entry := step.ConsoleEntry{Level: m.Level, Args: m.Args, Timestamp: time.Now().UnixMilli()}
			console = append(console, entry)
			if rc.consoleObs != nil {
				rc.consoleObs(entry)
			}
		default:
			// First terminal message wins; anything after it is noise.
			terminal = msg
		}
		if terminal != nil {
			break
		}
	}

	watchdog.Cancel()
	inst.Kill()
	exitErr := <-inst.Done()

	if rejected > 0 {
		e.log.Info("rejected frames during execution",
			zap.String("token", token),
			zap.Int("count", rejected),
		)
	}

	elapsed := time.Since(started)
	base := Result{
		Steps:       steps,
		ConsoleLogs: console,
		Output:      inst.Stdout(),
		Duration:    elapsed,
	}

	switch m := terminal.(type) {
	case *protocol.ExecutionComplete:
		base.Success = true
		base.Result = m.Result
		// A populated terminal log is authoritative; an empty one falls
		// back to the streamed captures.
		if len(m.Steps) > 0 {
			base.Steps = m.Steps
		}
		base.Duration = time.Duration(m.ExecutionTime) * time.Millisecond
		return finalize(base), terminal
	case *protocol.ExecutionError:
		base.Error = m.Error
		base.Stack = m.Stack
		base.Fault = m.Fault
		return finalize(base), terminal
	case *protocol.TestResult:
		base.Success = m.Passed
		if len(m.Steps) > 0 {
			base.Steps = m.Steps
		}
		base.Error = m.Error
		base.Duration = time.Duration(m.ExecutionTime) * time.Millisecond
		return finalize(base), terminal
	}

	wdMu.Lock()
	fault := wdFault
	wdMu.Unlock()
	if fault != nil {
		base.Error = fault.Error()
		base.Fault = fault
		return finalize(base), nil
	}

	if exitErr != nil {
		msg := "sandbox exited abnormally: " + exitErr.Error()
		if txt := strings.TrimSpace(inst.Stderr()); txt != "" {
			msg = fmt.Sprintf("%s: %s", msg, truncate(txt, 500))
		}
		base.Error = msg
		return finalize(base), nil
	}

	base.Error = "guest exited without reporting a result"
	return finalize(base), nil
}

// finalize normalizes result slices so callers can range without nil checks.
func finalize(r Result) Result {
	if r.Steps == nil {
		r.Steps = []step.Step{}
	}
	if r.ConsoleLogs == nil {
		r.ConsoleLogs = []step.ConsoleEntry{}
	}
	return r
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
