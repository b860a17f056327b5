// Package executor orchestrates one full execution cycle: instrument the
// untrusted source, launch a sandboxed interpreter, supervise it with an
// external watchdog, accumulate the validated protocol traffic, and shape
// the terminal message into a result.
//
// # Overview
//
// The executor owns policy, not mechanism. Sandboxing lives behind the
// [Host] interface, guard limits come from [guard.Config], and message
// validation is delegated to the protocol package. Every execution is
// isolated: one instance, one correlation token, one terminal message.
//
// # Basic Usage
//
//	engine, err := sandbox.NewEngine()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Close()
//
//	runner, err := executor.New(executor.NewEngineHost(engine))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res := runner.Execute(ctx, executor.Request{
//	    Source:     "function solve(n) { return n * 2; }",
//	    EntryPoint: "solve",
//	    Args:       []any{21},
//	})
//	fmt.Println(res.Result) // 42
//
// # Tests
//
// RunTests executes one case per sandbox instance, sequentially, so a fault
// in one case cannot leak state into the next:
//
//	outcomes := runner.RunTests(ctx, source, "solve", []executor.TestCase{
//	    {ID: "doubles", Args: []any{2}, Assertions: "__sv.assertEqual(result, 4);"},
//	    {ID: "zero", Args: []any{0}, Assertions: "__sv.assertEqual(result, 0);"},
//	})
//
// # Runaway Code
//
// Injected guards stop loops and recursion from inside; the watchdog kills
// anything that slips past them from outside. Both surface as a
// [guard.Fault] on the result.
package executor
