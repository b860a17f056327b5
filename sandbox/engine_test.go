package sandbox

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielterwiel/stepvis/guard"
	"github.com/danielterwiel/stepvis/instrument"
	"github.com/danielterwiel/stepvis/protocol"
	"github.com/danielterwiel/stepvis/step"
)

// Shared engine so the interpreter compiles once for the whole package.
// Launches are cheap; compilation is the cold start worth amortizing.
var sharedEngine *Engine

func TestMain(m *testing.M) {
	var err error
	sharedEngine, err = NewEngine()
	if err != nil {
		panic("create engine: " + err.Error())
	}

	// Warm up so the first real test does not pay for compilation.
	if inst, lerr := sharedEngine.Launch(context.Background(), "void 0;"); lerr == nil {
		for range inst.Frames() {
		}
		<-inst.Done()
	}

	code := m.Run()
	sharedEngine.Close()
	os.Exit(code)
}

const testToken = "0test0000-00000001-cafef00d"

// runGuest executes one full request cycle against the shared engine and
// returns every protocol payload in arrival order.
func runGuest(t *testing.T, source string, cfg guard.Config, cmd InvokeCommand) (payloads []string, inst *Instance, exitErr error) {
	t.Helper()

	script, err := Script(source, testToken, cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	t.Cleanup(cancel)

	inst, err = sharedEngine.Launch(ctx, script)
	require.NoError(t, err)
	require.NoError(t, inst.Send(cmd))

	for p := range inst.Frames() {
		payloads = append(payloads, p)
	}
	exitErr = <-inst.Done()
	return payloads, inst, exitErr
}

func classify(t *testing.T, payload string) protocol.Message {
	t.Helper()
	msg, ok := protocol.Classify([]byte(payload), testToken)
	require.True(t, ok, "payload failed validation: %s", payload)
	return msg
}

func TestGuestCompletesWithResult(t *testing.T) {
	payloads, _, exitErr := runGuest(t,
		"function answer(a, b) { return a + b; }",
		guard.DefaultConfig(),
		NewInvokeCommand("answer", []any{40, 2}),
	)
	require.NoError(t, exitErr)
	require.Len(t, payloads, 1)

	complete, ok := classify(t, payloads[0]).(*protocol.ExecutionComplete)
	require.True(t, ok)
	assert.Equal(t, testToken, complete.Sender)
	assert.EqualValues(t, 42, complete.Result)
	assert.Empty(t, complete.Steps)
	assert.GreaterOrEqual(t, complete.ExecutionTime, int64(0))
}

func TestGuestStreamsConsoleAndSteps(t *testing.T) {
	source := `
function run() {
  var arr = new TrackedArray("arr", [3, 1, 2]);
  console.log("start", arr.length());
  arr.swap(0, 2);
  arr.pop();
  return arr.values();
}`
	payloads, _, exitErr := runGuest(t, source, guard.DefaultConfig(), NewInvokeCommand("run", nil))
	require.NoError(t, exitErr)
	require.Len(t, payloads, 4)

	log, ok := classify(t, payloads[0]).(*protocol.ConsoleLog)
	require.True(t, ok)
	assert.Equal(t, "log", log.Level)
	assert.Equal(t, []any{"start", float64(3)}, log.Args)

	swap, ok := classify(t, payloads[1]).(*protocol.CaptureStep)
	require.True(t, ok)
	wantSwap := step.New("swap", "arr", []any{0, 2}, []any{2, 1, 3}, map[string]any{
		"indices": []any{0, 2},
		"values":  []any{3, 2},
	})
	assert.True(t, step.Equal(wantSwap, swap.Step), "swap step mismatch: %s", swap.Step.Canonical())

	pop, ok := classify(t, payloads[2]).(*protocol.CaptureStep)
	require.True(t, ok)
	wantPop := step.New("pop", "arr", nil, []any{2, 1}, map[string]any{
		"index": 2,
		"value": 3,
	})
	assert.True(t, step.Equal(wantPop, pop.Step), "pop step mismatch: %s", pop.Step.Canonical())

	complete, ok := classify(t, payloads[3]).(*protocol.ExecutionComplete)
	require.True(t, ok)
	assert.Equal(t, []any{float64(2), float64(1)}, complete.Result)
	require.Len(t, complete.Steps, 2)
	assert.True(t, step.Equal(swap.Step, complete.Steps[0]), "terminal log must repeat streamed steps")
	assert.True(t, step.Equal(pop.Step, complete.Steps[1]))
}

func TestGuestReportsThrownError(t *testing.T) {
	payloads, _, exitErr := runGuest(t,
		`function boom() { throw new Error("kaput"); }`,
		guard.DefaultConfig(),
		NewInvokeCommand("boom", nil),
	)
	require.NoError(t, exitErr)
	require.Len(t, payloads, 1)

	errMsg, ok := classify(t, payloads[0]).(*protocol.ExecutionError)
	require.True(t, ok)
	assert.Equal(t, "kaput", errMsg.Error)
	assert.Nil(t, errMsg.Fault)
}

func TestGuestTopLevelErrorBeforeEntry(t *testing.T) {
	payloads, _, exitErr := runGuest(t,
		`throw new Error("top level");`,
		guard.DefaultConfig(),
		NewInvokeCommand("main", nil),
	)
	require.NoError(t, exitErr)
	require.Len(t, payloads, 1)

	errMsg, ok := classify(t, payloads[0]).(*protocol.ExecutionError)
	require.True(t, ok)
	assert.Equal(t, "top level", errMsg.Error)
}

func TestGuestEntryPointNotFound(t *testing.T) {
	payloads, _, exitErr := runGuest(t,
		"var x = 1;",
		guard.DefaultConfig(),
		NewInvokeCommand("missing", nil),
	)
	require.NoError(t, exitErr)
	require.Len(t, payloads, 1)

	errMsg, ok := classify(t, payloads[0]).(*protocol.ExecutionError)
	require.True(t, ok)
	assert.Equal(t, "entry point not found: missing", errMsg.Error)
}

func TestGuestLoopGuardFault(t *testing.T) {
	injected := instrument.Inject(
		"var n = 0;\nfunction spin() { while (true) { n++; } }",
		true, true,
	)
	payloads, _, exitErr := runGuest(t, injected.Source,
		guard.Config{MaxLoopIterations: 500, MaxRecursionDepth: 100},
		NewInvokeCommand("spin", nil),
	)
	require.NoError(t, exitErr)
	require.NotEmpty(t, payloads)

	errMsg, ok := classify(t, payloads[len(payloads)-1]).(*protocol.ExecutionError)
	require.True(t, ok)
	assert.Equal(t, "infinite loop detected: exceeded 500 iterations", errMsg.Error)
	require.NotNil(t, errMsg.Fault)
	assert.Equal(t, guard.FaultLoop, errMsg.Fault.Kind)
	assert.Equal(t, 500, errMsg.Fault.Iterations)
}

func TestGuestRecursionGuardFault(t *testing.T) {
	injected := instrument.Inject(
		"function rec(n) { return rec(n + 1); }",
		true, true,
	)
	payloads, _, exitErr := runGuest(t, injected.Source,
		guard.Config{MaxLoopIterations: 100000, MaxRecursionDepth: 50},
		NewInvokeCommand("rec", []any{0}),
	)
	require.NoError(t, exitErr)
	require.NotEmpty(t, payloads)

	errMsg, ok := classify(t, payloads[len(payloads)-1]).(*protocol.ExecutionError)
	require.True(t, ok)
	assert.Equal(t, "maximum recursion depth exceeded: 50 calls", errMsg.Error)
	require.NotNil(t, errMsg.Fault)
	assert.Equal(t, guard.FaultRecursion, errMsg.Fault.Kind)
	assert.Equal(t, 50, errMsg.Fault.Depth)
}

func TestGuestAssertionVerdicts(t *testing.T) {
	source := "function add(a, b) { return a + b; }"

	t.Run("passing", func(t *testing.T) {
		cmd := NewInvokeCommand("add", []any{1, 2})
		cmd.Assertions = "__sv.assertEqual(result, 3);"
		cmd.TestID = "case-pass"

		payloads, _, exitErr := runGuest(t, source, guard.DefaultConfig(), cmd)
		require.NoError(t, exitErr)
		require.Len(t, payloads, 1)

		res, ok := classify(t, payloads[0]).(*protocol.TestResult)
		require.True(t, ok)
		assert.Equal(t, "case-pass", res.TestID)
		assert.True(t, res.Passed)
		assert.Empty(t, res.Error)
	})

	t.Run("failing", func(t *testing.T) {
		cmd := NewInvokeCommand("add", []any{1, 2})
		cmd.Assertions = "__sv.assertEqual(result, 4);"
		cmd.TestID = "case-fail"

		payloads, _, exitErr := runGuest(t, source, guard.DefaultConfig(), cmd)
		require.NoError(t, exitErr)
		require.Len(t, payloads, 1)

		res, ok := classify(t, payloads[0]).(*protocol.TestResult)
		require.True(t, ok)
		assert.Equal(t, "case-fail", res.TestID)
		assert.False(t, res.Passed)
		assert.Contains(t, res.Error, "expected 4, got 3")
	})
}

func TestGuestStdoutAndStderrPassthrough(t *testing.T) {
	source := `
function say() {
  print("raw stdout");
  std.err.puts("plain stderr\n");
  std.err.flush();
  return 0;
}`
	payloads, inst, exitErr := runGuest(t, source, guard.DefaultConfig(), NewInvokeCommand("say", nil))
	require.NoError(t, exitErr)
	require.Len(t, payloads, 1)

	assert.Contains(t, inst.Stdout(), "raw stdout")
	assert.Contains(t, inst.Stderr(), "plain stderr")
	assert.NotContains(t, inst.Stderr(), "\x00", "frames must not leak into passthrough")
}

func TestKillTearsDownRunawayGuest(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	// Raw busy loop with no guards: only forced teardown can end it.
	inst, err := sharedEngine.Launch(ctx, "while (true) {}")
	require.NoError(t, err)

	time.Sleep(200 * time.Millisecond)
	start := time.Now()
	inst.Kill()

	for range inst.Frames() {
	}
	exitErr := <-inst.Done()
	assert.Error(t, exitErr, "forced teardown must surface as an exit error")
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestLaunchRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	inst, err := sharedEngine.Launch(ctx, "while (true) {}")
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	cancel()

	for range inst.Frames() {
	}
	exitErr := <-inst.Done()
	assert.Error(t, exitErr)
}
