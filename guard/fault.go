package guard

import (
	"fmt"
	"time"
)

// FaultKind discriminates the three abort causes. The values are wire-level:
// the guest runtime tags injected-guard faults with the same strings.
type FaultKind string

const (
	FaultLoop      FaultKind = "loop"
	FaultRecursion FaultKind = "recursion"
	FaultExternal  FaultKind = "external"
)

// Fault describes why an execution was aborted. Exactly one of Iterations,
// Depth, or ElapsedMs is meaningful, selected by Kind.
type Fault struct {
	Kind       FaultKind `json:"kind"`
	Iterations int       `json:"iterations,omitempty"`
	Depth      int       `json:"depth,omitempty"`
	ElapsedMs  int64     `json:"elapsedMs,omitempty"`
}

// LoopFault reports an injected loop counter exceeding its ceiling.
func LoopFault(iterations int) Fault {
	return Fault{Kind: FaultLoop, Iterations: iterations}
}

// RecursionFault reports tracked call depth exceeding its ceiling.
func RecursionFault(depth int) Fault {
	return Fault{Kind: FaultRecursion, Depth: depth}
}

// ExternalFault reports a watchdog expiry after the given wall-clock time.
func ExternalFault(elapsed time.Duration) Fault {
	return Fault{Kind: FaultExternal, ElapsedMs: elapsed.Milliseconds()}
}

// Error renders the actionable abort message shown to the code's author.
func (f Fault) Error() string {
	switch f.Kind {
	case FaultLoop:
		return fmt.Sprintf("infinite loop detected: exceeded %d iterations", f.Iterations)
	case FaultRecursion:
		return fmt.Sprintf("maximum recursion depth exceeded: %d calls", f.Depth)
	case FaultExternal:
		return fmt.Sprintf("execution timed out after %dms", f.ElapsedMs)
	default:
		return fmt.Sprintf("execution aborted: %s", string(f.Kind))
	}
}
