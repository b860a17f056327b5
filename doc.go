// Package stepvis runs untrusted JavaScript in a WebAssembly sandbox and
// captures every tracked data-structure mutation as an ordered step log.
//
// # Overview
//
// stepvis executes code inside a QuickJS interpreter compiled to WASM, with
// no filesystem or network access. Two independent layers bound runaway
// programs: counters injected into the source raise catchable faults on
// excessive loop iterations or recursion depth, and an external watchdog
// tears the sandbox down when the injected layer never gets to fire. Guest
// code mutates tracked containers (arrays, lists, stacks, queues) whose
// operations stream deterministic steps to the host over a validated
// message protocol.
//
// # Basic Usage
//
//	engine, _ := sandbox.NewEngine()
//	defer engine.Close()
//
//	runner, _ := executor.New(executor.NewEngineHost(engine))
//
//	res := runner.Execute(ctx, executor.Request{
//	    Source: `
//	        var arr = new TrackedArray("arr", [3, 1, 2]);
//	        arr.swap(0, 1);
//	        arr.pop();
//	    `,
//	})
//	for _, s := range res.Steps {
//	    fmt.Println(s.Type, s.Target, s.Result)
//	}
//
// # Calling an Entry Point
//
//	res := runner.Execute(ctx, executor.Request{
//	    Source:     source,
//	    EntryPoint: "swapEnds",
//	    Args:       []any{[]any{3.0, 1.0, 2.0}},
//	})
//
// # Running Tests
//
// Assertions execute after the entry point returns, with the return value
// bound to the global result:
//
//	outcomes := runner.RunTests(ctx, source, "double", []executor.TestCase{
//	    {ID: "two", Args: []any{2.0}, Assertions: "__sv.assertEqual(result, 4)"},
//	})
//
// See the [executor], [sandbox], [guard], [instrument], [track], and [step]
// packages for detailed API documentation.
package stepvis
