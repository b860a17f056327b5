package sandbox

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/danielterwiel/stepvis/guard"
)

// stdlib.js is the guest-side runtime: the guard counters behind the
// injected calls, the tracked containers, the console shim, and the harness
// that reads the invoke command and posts the terminal message.
//
//go:embed stdlib.js
var stdlibJS string

// guestConfig is the shape handed to __sv.configure before user code runs.
type guestConfig struct {
	Token             string `json:"token"`
	MaxLoopIterations int    `json:"maxLoopIterations"`
	MaxRecursionDepth int    `json:"maxRecursionDepth"`
}

// Script assembles the complete program evaluated by qjs: the runtime, the
// per-execution configuration, then the harness applied to the already
// instrumented user source. The source is passed as a JSON string literal so
// the harness can evaluate it separately and report its errors instead of
// aborting the whole script.
func Script(source, token string, cfg guard.Config) (string, error) {
	conf, err := json.Marshal(guestConfig{
		Token:             token,
		MaxLoopIterations: cfg.MaxLoopIterations,
		MaxRecursionDepth: cfg.MaxRecursionDepth,
	})
	if err != nil {
		return "", fmt.Errorf("encode guest config: %w", err)
	}
	src, err := json.Marshal(source)
	if err != nil {
		return "", fmt.Errorf("encode source: %w", err)
	}
	return stdlibJS + "\n__sv.configure(" + string(conf) + ");\n__sv.main(" + string(src) + ");\n", nil
}

// InvokeCommand is the single stdin line that starts user code. Entry names
// the function to call; empty means the source's own completion value is the
// result. Assertions, when present, switch the terminal message to a test
// verdict.
type InvokeCommand struct {
	Type       string `json:"type"`
	Entry      string `json:"entry"`
	Args       []any  `json:"args"`
	Assertions string `json:"assertions,omitempty"`
	TestID     string `json:"testId,omitempty"`
}

// NewInvokeCommand builds the command with the fixed type tag and non-nil
// args.
func NewInvokeCommand(entry string, args []any) InvokeCommand {
	if args == nil {
		args = []any{}
	}
	return InvokeCommand{Type: "invoke", Entry: entry, Args: args}
}
