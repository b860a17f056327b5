package protocol

import (
	"encoding/json"

	"github.com/danielterwiel/stepvis/guard"
	"github.com/danielterwiel/stepvis/step"
)

// Classify narrows an arbitrary inbound payload to a protocol message. It is
// total: any input, however hostile, yields (nil, false) rather than an error
// or a panic. A payload matches only when it is a structured object carrying
// a recognized discriminant, a sender token, and every field its kind
// requires with the correct shape. When expectSender is non-empty the
// declared sender must equal it; mismatched traffic is someone else's.
func Classify(raw []byte, expectSender string) (Message, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, false
	}

	kind, ok := stringField(fields, "kind")
	if !ok {
		return nil, false
	}
	sender, ok := stringField(fields, "sender")
	if !ok {
		return nil, false
	}
	if expectSender != "" && sender != expectSender {
		return nil, false
	}

	switch Kind(kind) {
	case KindExecutionComplete:
		return classifyComplete(raw, fields)
	case KindExecutionError:
		return classifyError(raw, fields)
	case KindTestResult:
		return classifyTestResult(raw, fields)
	case KindCaptureStep:
		return classifyCaptureStep(raw, fields)
	case KindConsoleLog:
		return classifyConsoleLog(raw, fields)
	}
	return nil, false
}

func classifyComplete(raw []byte, fields map[string]json.RawMessage) (Message, bool) {
	if _, present := fields["result"]; !present {
		return nil, false
	}
	if !validSteps(fields["steps"]) || !isInt(fields["executionTime"]) {
		return nil, false
	}
	var m ExecutionComplete
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false
	}
	return &m, true
}

func classifyError(raw []byte, fields map[string]json.RawMessage) (Message, bool) {
	if _, ok := stringField(fields, "error"); !ok {
		return nil, false
	}
	if f, present := fields["stack"]; present && !isString(f) {
		return nil, false
	}
	if f, present := fields["fault"]; present && !validFault(f) {
		return nil, false
	}
	var m ExecutionError
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false
	}
	return &m, true
}

func classifyTestResult(raw []byte, fields map[string]json.RawMessage) (Message, bool) {
	if _, ok := stringField(fields, "testId"); !ok {
		return nil, false
	}
	if !isBool(fields["passed"]) || !isInt(fields["executionTime"]) || !validSteps(fields["steps"]) {
		return nil, false
	}
	if f, present := fields["error"]; present && !isString(f) {
		return nil, false
	}
	var m TestResult
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false
	}
	return &m, true
}

func classifyCaptureStep(raw []byte, fields map[string]json.RawMessage) (Message, bool) {
	if !validStep(fields["step"]) {
		return nil, false
	}
	var m CaptureStep
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false
	}
	return &m, true
}

func classifyConsoleLog(raw []byte, fields map[string]json.RawMessage) (Message, bool) {
	level, ok := stringField(fields, "level")
	if !ok || level == "" {
		return nil, false
	}
	f, present := fields["args"]
	if !present {
		return nil, false
	}
	var args []any
	if err := json.Unmarshal(f, &args); err != nil || args == nil {
		return nil, false
	}
	var m ConsoleLog
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false
	}
	return &m, true
}

func stringField(fields map[string]json.RawMessage, key string) (string, bool) {
	f, present := fields[key]
	if !present {
		return "", false
	}
	var s string
	if err := json.Unmarshal(f, &s); err != nil {
		return "", false
	}
	return s, true
}

func isString(raw json.RawMessage) bool {
	var s string
	return json.Unmarshal(raw, &s) == nil
}

func isBool(raw json.RawMessage) bool {
	if raw == nil {
		return false
	}
	var b bool
	return json.Unmarshal(raw, &b) == nil
}

// isInt accepts whole JSON numbers. Guest timings are integral milliseconds.
func isInt(raw json.RawMessage) bool {
	if raw == nil {
		return false
	}
	var n int64
	return json.Unmarshal(raw, &n) == nil
}

// validStep requires an object with non-empty type and target strings.
// The remaining step fields stay free-form.
func validStep(raw json.RawMessage) bool {
	if raw == nil {
		return false
	}
	var s step.Step
	if err := json.Unmarshal(raw, &s); err != nil {
		return false
	}
	return s.Type != "" && s.Target != ""
}

// validSteps requires a step array. Empty is legal; null is not, because a
// guest that omits the log entirely is malformed, not logless.
func validSteps(raw json.RawMessage) bool {
	if raw == nil {
		return false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil || items == nil {
		return false
	}
	for _, item := range items {
		if !validStep(item) {
			return false
		}
	}
	return true
}

// validFault accepts the guest-raised subset: loop and recursion. External
// faults are synthesized supervisor-side and never cross the wire.
func validFault(raw json.RawMessage) bool {
	var f guard.Fault
	if err := json.Unmarshal(raw, &f); err != nil {
		return false
	}
	return f.Kind == guard.FaultLoop || f.Kind == guard.FaultRecursion
}
