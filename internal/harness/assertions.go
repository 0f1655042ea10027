package harness

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/roach88/storekit/internal/hashid"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string       // assertion type
	Expected string       // human-readable expected outcome
	Actual   string       // human-readable actual outcome
	Trace    []TraceEvent // full trace for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s %s %v %s\n", ev.Seq, ev.Kind, ev.Op, ev.Key, ev.Value, ev.Outcome)
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for _, a := range assertions {
		var err error
		switch a.Type {
		case AssertEventCount:
			err = assertEventCount(result, a)
		case AssertFinalState:
			err = assertFinalState(result, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func assertEventCount(result *Result, a Assertion) error {
	if n := result.Count(a.Kind); n != a.Count {
		return &AssertionError{
			Type:     AssertEventCount,
			Expected: fmt.Sprintf("%d %s events", a.Count, a.Kind),
			Actual:   fmt.Sprintf("%d %s events", n, a.Kind),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertFinalState checks a.Expect as a subset of the target's final state.
func assertFinalState(result *Result, a Assertion) error {
	actual := map[string]any{}
	switch a.Target {
	case TargetDurable:
		actual = result.Final.Durable.State
	case TargetHistory:
		for key, rec := range result.Final.History {
			actual[key] = rec.Data
		}
	}

	for key, want := range a.Expect {
		got, ok := actual[key]
		if !ok {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s.%s = %v", a.Target, key, want),
				Actual:   "key not found",
			}
		}
		if !sameJSON(want, got) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s.%s = %v", a.Target, key, want),
				Actual:   fmt.Sprintf("%v", got),
			}
		}
	}
	return nil
}

// sameJSON compares values by their canonical JSON, so 5 and 5.0 match and
// map key order does not matter.
func sameJSON(a, b any) bool {
	ca, errA := hashid.MarshalCanonical(a)
	cb, errB := hashid.MarshalCanonical(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ca, cb)
}
