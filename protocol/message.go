// Package protocol defines the only messages the supervisor accepts from the
// isolated guest, the validator that narrows arbitrary inbound payloads to
// that closed set, and the frame scanner that recovers payloads from the
// guest's byte stream. Anything the validator does not recognize is dropped
// by the caller, never interpreted.
package protocol

import (
	"github.com/danielterwiel/stepvis/guard"
	"github.com/danielterwiel/stepvis/step"
)

// Kind is the closed, case-sensitive message discriminant.
type Kind string

const (
	KindExecutionComplete Kind = "execution-complete"
	KindExecutionError    Kind = "execution-error"
	KindTestResult        Kind = "test-result"
	KindCaptureStep       Kind = "capture-step"
	KindConsoleLog        Kind = "console-log"
)

// Terminal reports whether a message of this kind resolves the in-flight
// execution. Capture-step and console-log are progress traffic.
func (k Kind) Terminal() bool {
	switch k {
	case KindExecutionComplete, KindExecutionError, KindTestResult:
		return true
	}
	return false
}

// Message is the closed union of inbound guest messages. Only the types in
// this package implement it.
type Message interface {
	// MessageKind returns the discriminant.
	MessageKind() Kind
	// MessageSender returns the correlation token the guest stamped on the
	// message.
	MessageSender() string

	isMessage()
}

// IsTerminal reports whether m resolves the in-flight execution.
func IsTerminal(m Message) bool {
	return m != nil && m.MessageKind().Terminal()
}

// ExecutionComplete reports a successful run: the entry point's return
// value, the full ordered step log, and the guest-measured wall time in
// milliseconds.
type ExecutionComplete struct {
	Sender        string      `json:"sender"`
	Kind          Kind        `json:"kind"`
	Result        any         `json:"result"`
	Steps         []step.Step `json:"steps"`
	ExecutionTime int64       `json:"executionTime"`
}

// ExecutionError reports a failed run. Fault is set when an injected guard
// aborted the code, so the supervisor never has to infer the cause from the
// error text.
type ExecutionError struct {
	Sender string       `json:"sender"`
	Kind   Kind         `json:"kind"`
	Error  string       `json:"error"`
	Stack  string       `json:"stack,omitempty"`
	Fault  *guard.Fault `json:"fault,omitempty"`
}

// TestResult reports one assertion-bearing run.
type TestResult struct {
	Sender        string      `json:"sender"`
	Kind          Kind        `json:"kind"`
	TestID        string      `json:"testId"`
	Passed        bool        `json:"passed"`
	ExecutionTime int64       `json:"executionTime"`
	Steps         []step.Step `json:"steps"`
	Error         string      `json:"error,omitempty"`
}

// CaptureStep streams one container mutation while the code is still
// running, so a consumer can render progress before the terminal message.
type CaptureStep struct {
	Sender string    `json:"sender"`
	Kind   Kind      `json:"kind"`
	Step   step.Step `json:"step"`
}

// ConsoleLog carries one guest console call.
type ConsoleLog struct {
	Sender string `json:"sender"`
	Kind   Kind   `json:"kind"`
	Level  string `json:"level"`
	Args   []any  `json:"args"`
}

func NewExecutionComplete(sender string, result any, steps []step.Step, ms int64) *ExecutionComplete {
	if steps == nil {
		steps = []step.Step{}
	}
	return &ExecutionComplete{Sender: sender, Kind: KindExecutionComplete, Result: result, Steps: steps, ExecutionTime: ms}
}

func NewExecutionError(sender, errMsg, stack string, fault *guard.Fault) *ExecutionError {
	return &ExecutionError{Sender: sender, Kind: KindExecutionError, Error: errMsg, Stack: stack, Fault: fault}
}

func NewTestResult(sender, testID string, passed bool, ms int64, steps []step.Step, errMsg string) *TestResult {
	if steps == nil {
		steps = []step.Step{}
	}
	return &TestResult{Sender: sender, Kind: KindTestResult, TestID: testID, Passed: passed, ExecutionTime: ms, Steps: steps, Error: errMsg}
}

func NewCaptureStep(sender string, s step.Step) *CaptureStep {
	return &CaptureStep{Sender: sender, Kind: KindCaptureStep, Step: s}
}

func NewConsoleLog(sender, level string, args []any) *ConsoleLog {
	if args == nil {
		args = []any{}
	}
	return &ConsoleLog{Sender: sender, Kind: KindConsoleLog, Level: level, Args: args}
}

func (m *ExecutionComplete) MessageKind() Kind     { return KindExecutionComplete }
func (m *ExecutionComplete) MessageSender() string { return m.Sender }
func (m *ExecutionComplete) isMessage()            {}

func (m *ExecutionError) MessageKind() Kind     { return KindExecutionError }
func (m *ExecutionError) MessageSender() string { return m.Sender }
func (m *ExecutionError) isMessage()            {}

func (m *TestResult) MessageKind() Kind     { return KindTestResult }
func (m *TestResult) MessageSender() string { return m.Sender }
func (m *TestResult) isMessage()            {}

func (m *CaptureStep) MessageKind() Kind     { return KindCaptureStep }
func (m *CaptureStep) MessageSender() string { return m.Sender }
func (m *CaptureStep) isMessage()            {}

func (m *ConsoleLog) MessageKind() Kind     { return KindConsoleLog }
func (m *ConsoleLog) MessageSender() string { return m.Sender }
func (m *ConsoleLog) isMessage()            {}
