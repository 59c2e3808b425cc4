package harness

import (
	"fmt"
	"reflect"
)

// EvaluateAssertions checks every scenario assertion against the
// result. Returns one message per failed assertion; an empty slice
// means the scenario passed.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		if msg := evaluateAssertion(result, &a); msg != "" {
			failures = append(failures, fmt.Sprintf("assertions[%d] (%s): %s", i, a.Type, msg))
		}
	}
	return failures
}

func evaluateAssertion(result *Result, a *Assertion) string {
	switch a.Type {
	case AssertHalted:
		if !result.Halted {
			return "run did not halt"
		}
		if a.Reason != "" && result.HaltReason != a.Reason {
			return fmt.Sprintf("halt reason %q, want %q", result.HaltReason, a.Reason)
		}

	case AssertNotHalted:
		if result.Halted {
			return fmt.Sprintf("run halted: %q", result.HaltReason)
		}

	case AssertReportContains:
		for _, rec := range result.Report {
			if rec.Unit.String() == a.Unit && rec.Entry.Message == a.Message {
				return ""
			}
		}
		return fmt.Sprintf("no report entry from %s with message %q", a.Unit, a.Message)

	case AssertReportCount:
		if len(result.Report) != a.Count {
			return fmt.Sprintf("report holds %d entries, want %d", len(result.Report), a.Count)
		}

	case AssertCandidateFiltered:
		ev := findCandidate(result, a.Package)
		if ev == nil {
			return fmt.Sprintf("candidate %q not in trace", a.Package)
		}
		if !ev.Filtered {
			return fmt.Sprintf("candidate %q was not filtered", a.Package)
		}

	case AssertCandidateRejected:
		ev := findCandidate(result, a.Package)
		if ev == nil {
			return fmt.Sprintf("candidate %q not in trace", a.Package)
		}
		if !ev.Rejected {
			return fmt.Sprintf("candidate %q was not rejected", a.Package)
		}
		if a.Reason != "" && ev.RejectReason != a.Reason {
			return fmt.Sprintf("reject reason %q, want %q", ev.RejectReason, a.Reason)
		}

	case AssertCandidateScore:
		ev := findCandidate(result, a.Package)
		if ev == nil {
			return fmt.Sprintf("candidate %q not in trace", a.Package)
		}
		if ev.Score != a.Score {
			return fmt.Sprintf("candidate %q scored %v, want %v", a.Package, ev.Score, a.Score)
		}

	case AssertCandidateYields:
		ev := findCandidate(result, a.Package)
		if ev == nil {
			return fmt.Sprintf("candidate %q not in trace", a.Package)
		}
		for _, y := range ev.Yields {
			if y == *a.Yielded {
				return ""
			}
		}
		return fmt.Sprintf("candidate %q yielded %v, want %v", a.Package, ev.Yields, *a.Yielded)

	case AssertActiveUnits:
		if !reflect.DeepEqual(result.ActiveUnits, a.Units) {
			return fmt.Sprintf("active units %v, want %v", result.ActiveUnits, a.Units)
		}
	}
	return ""
}

// findCandidate returns the trace event for the first candidate with
// the given package name.
func findCandidate(result *Result, name string) *TraceEvent {
	for i := range result.Trace {
		ev := &result.Trace[i]
		if ev.Stage == "candidate" && ev.Candidate != nil && ev.Candidate.Name == name {
			return ev
		}
	}
	return nil
}
