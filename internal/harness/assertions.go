package harness

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %v\n", event.Seq, event.Msg, event.Payload)
		}
	}

	return buf.String()
}

// assertTraceContains checks if the trace contains a message matching
// the specified name and payload (subset match).
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	expected, err := toGeneric(assertion.Payload)
	if err != nil {
		return fmt.Errorf("trace_contains payload: %w", err)
	}
	for _, event := range trace {
		if event.Msg != assertion.Msg {
			continue
		}
		if len(assertion.Payload) == 0 || subsetMatch(expected, map[string]any(event.Payload)) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("message %s with payload %v", assertion.Msg, assertion.Payload),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks if messages appear in the specified order.
// Messages don't need to be consecutive. Each expected message is matched
// against the first occurrence after the previous match.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	pos := 0
	for _, want := range assertion.Msgs {
		found := false
		for pos < len(trace) {
			event := trace[pos]
			pos++
			if event.Msg == want {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("messages in order: %v", assertion.Msgs),
				Actual:   fmt.Sprintf("%s not found after position %d", want, pos),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks if the message appears exactly the specified number of times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Msg == assertion.Msg {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Msg),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}

	return nil
}

// assertFinalState checks the final state against the expected values.
// Keys are checked in sorted order so the reported mismatch is stable.
func assertFinalState(state map[string]any, assertion Assertion) error {
	expected, err := toGeneric(assertion.Expect)
	if err != nil {
		return fmt.Errorf("final_state expect: %w", err)
	}
	expectedMap, _ := expected.(map[string]any)

	keys := make([]string, 0, len(expectedMap))
	for k := range expectedMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if path, ok := firstMismatch(key, expectedMap[key], state[key]); !ok {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s = %v", path, lookupPath(expectedMap, path)),
				Actual:   fmt.Sprintf("%s = %v", path, lookupPath(state, path)),
			}
		}
	}
	return nil
}

// firstMismatch returns the dotted path of the first expected value that
// actual does not match.
func firstMismatch(path string, expected, actual any) (string, bool) {
	exp, ok := expected.(map[string]any)
	if !ok {
		return path, subsetMatch(expected, actual)
	}
	act, _ := actual.(map[string]any)
	keys := make([]string, 0, len(exp))
	for k := range exp {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if p, ok := firstMismatch(path+"."+k, exp[k], act[k]); !ok {
			return p, false
		}
	}
	return path, true
}

func lookupPath(root map[string]any, path string) any {
	var cur any = root
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = obj[part]
	}
	return cur
}

// subsetMatch compares expected against actual. Objects match if every
// expected member matches; absent members match zero values, since the
// state encoding omits empty fields. Lists and scalars must be equal.
func subsetMatch(expected, actual any) bool {
	switch exp := expected.(type) {
	case map[string]any:
		if actual == nil {
			return isZero(exp)
		}
		act, ok := actual.(map[string]any)
		if !ok {
			return false
		}
		for key, e := range exp {
			if !subsetMatch(e, act[key]) {
				return false
			}
		}
		return true
	case []any:
		if actual == nil {
			return len(exp) == 0
		}
		act, ok := actual.([]any)
		if !ok || len(act) != len(exp) {
			return false
		}
		for i := range exp {
			if !subsetMatch(exp[i], act[i]) {
				return false
			}
		}
		return true
	default:
		if actual == nil {
			return isZero(expected)
		}
		return reflect.DeepEqual(expected, actual)
	}
}

func isZero(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case bool:
		return !val
	case int64:
		return val == 0
	case string:
		return val == ""
	case []any:
		return len(val) == 0
	case map[string]any:
		for _, elem := range val {
			if !isZero(elem) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, assertion := range assertions {
		var err error
		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			err = assertFinalState(result.State, assertion)
		default:
			err = fmt.Errorf("unknown assertion type %q", assertion.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}
