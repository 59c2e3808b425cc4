package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formulary-sh/formulary/internal/ir"
)

const guardDocument = `
apiVersion: formulary.dev/v1
kind: prescription
spec:
  name: guard
  release: 1
  units:
    steps:
      - name: block-old-django
        should_include:
          times: 1
          pipelines: [advisory]
        run:
          match:
            package:
              name: django
              version: "<2.0"
          reject: django 1.x is unsupported
    wraps:
      - name: note-postgres
        should_include:
          times: 1
          pipelines: [advisory]
        run:
          match:
            state:
              resolved:
                - name: psycopg2
          justification:
            - severity: INFO
              message: resolved stack uses postgres
`

const haltDocument = `
apiVersion: formulary.dev/v1
kind: prescription
spec:
  name: gate
  release: 1
  units:
    steps:
      - name: stop-on-left-pad
        should_include:
          times: 1
          pipelines: [advisory]
        run:
          match:
            package:
              name: left-pad
          halt: left-pad is banned here
`

const sieveDocument = `
apiVersion: formulary.dev/v1
kind: prescription
spec:
  name: filter
  release: 1
  units:
    sieves:
      - name: drop-yanked-requests
        should_include:
          times: 1
          pipelines: [advisory]
        run:
          match:
            package:
              name: requests
              version: "==2.28.0"
          report:
            - severity: WARNING
              message: requests 2.28.0 was yanked
    steps:
      - name: score-requests
        should_include:
          times: 1
          pipelines: [advisory]
        run:
          match:
            package:
              name: requests
          score: 0.3
          repeat_on_multi_match: true
`

// writePrescription writes a document into dir and returns its path.
func writePrescription(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRun_StepRejectsCandidate(t *testing.T) {
	dir := t.TempDir()
	docPath := writePrescription(t, dir, "guard.yaml", guardDocument)

	scenario := &Scenario{
		Name:      "reject-old-django",
		Documents: []string{docPath},
		Flavor:    ir.FlavorAdvisory,
		RunToken:  "test-run",
		Candidates: []CandidateStep{
			{Package: ir.Candidate{Name: "django", Version: "1.11.0", Index: "https://pypi.org/simple"}},
			{Package: ir.Candidate{Name: "flask", Version: "2.0.0", Index: "https://pypi.org/simple"}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	// boots + two candidate events; a reject never stops the stream.
	require.Len(t, result.Trace, 3)

	django := result.Trace[1]
	assert.Equal(t, "candidate", django.Stage)
	assert.Equal(t, "reject_candidate", django.Signal)
	assert.True(t, django.Rejected)
	assert.Equal(t, "django 1.x is unsupported", django.RejectReason)

	flask := result.Trace[2]
	assert.Equal(t, "continue", flask.Signal)
	assert.False(t, flask.Rejected)

	assert.False(t, result.Halted)

	failures := EvaluateAssertions(result, []Assertion{
		{Type: AssertNotHalted},
		{Type: AssertCandidateRejected, Package: "django", Reason: "django 1.x is unsupported"},
	})
	assert.Empty(t, failures)
}

func TestRun_SieveFiltersCandidateFromSteps(t *testing.T) {
	dir := t.TempDir()
	docPath := writePrescription(t, dir, "filter.yaml", sieveDocument)

	scenario := &Scenario{
		Name:      "filter-yanked-requests",
		Documents: []string{docPath},
		Flavor:    ir.FlavorAdvisory,
		RunToken:  "test-run",
		Candidates: []CandidateStep{
			{Package: ir.Candidate{Name: "requests", Version: "2.28.0", Index: "https://pypi.org/simple"}},
			{Package: ir.Candidate{Name: "requests", Version: "2.28.1", Index: "https://pypi.org/simple"}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	require.Len(t, result.Trace, 3)

	yanked := result.Trace[1]
	assert.True(t, yanked.Filtered)
	assert.Zero(t, yanked.Score, "steps never see a filtered candidate")
	assert.False(t, yanked.Rejected)

	kept := result.Trace[2]
	assert.False(t, kept.Filtered)
	assert.InDelta(t, 0.3, kept.Score, 1e-9)

	failures := EvaluateAssertions(result, []Assertion{
		{Type: AssertCandidateFiltered, Package: "requests"},
		{Type: AssertReportContains, Unit: "filter.drop-yanked-requests/sieve", Message: "requests 2.28.0 was yanked"},
	})
	assert.Empty(t, failures)
}

func TestRun_WrapJustifiesAcceptedState(t *testing.T) {
	dir := t.TempDir()
	docPath := writePrescription(t, dir, "guard.yaml", guardDocument)

	scenario := &Scenario{
		Name:      "justify-postgres",
		Documents: []string{docPath},
		Flavor:    ir.FlavorAdvisory,
		RunToken:  "test-run",
		AcceptedStates: []StateStep{
			{Resolved: []ir.ResolvedEntry{
				{Name: "psycopg2", Version: "2.9.9", Index: "https://pypi.org/simple"},
			}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	require.Len(t, result.Trace, 2)
	wraps := result.Trace[1]
	assert.Equal(t, "wraps", wraps.Stage)
	assert.Equal(t, "continue", wraps.Signal)
	require.Len(t, wraps.Justified, 1)
	assert.Equal(t, "resolved stack uses postgres", wraps.Justified[0].Entry.Message)
	assert.Equal(t, "guard.note-postgres/wrap", wraps.Justified[0].Unit.String())
}

func TestRun_HaltStopsNewCandidates(t *testing.T) {
	dir := t.TempDir()
	docPath := writePrescription(t, dir, "gate.yaml", haltDocument)

	scenario := &Scenario{
		Name:      "halt-on-left-pad",
		Documents: []string{docPath},
		Flavor:    ir.FlavorAdvisory,
		RunToken:  "test-run",
		Candidates: []CandidateStep{
			{Package: ir.Candidate{Name: "left-pad", Version: "1.3.0", Index: "https://registry.npmjs.org"}},
			{Package: ir.Candidate{Name: "right-pad", Version: "1.0.0", Index: "https://registry.npmjs.org"}},
		},
		FinalStates: []StateStep{
			{Resolved: []ir.ResolvedEntry{{Name: "left-pad", Version: "1.3.0"}}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	// The second candidate and the final state never run: a halt means
	// in-flight work finishes but new work does not start.
	require.Len(t, result.Trace, 2)
	assert.Equal(t, "halt_run", result.Trace[1].Signal)
	assert.True(t, result.Halted)
	assert.Equal(t, "left-pad is banned here", result.HaltReason)
}

func TestRun_LoadErrorPropagates(t *testing.T) {
	dir := t.TempDir()
	docPath := writePrescription(t, dir, "broken.yaml", "apiVersion: wrong/v9\nkind: prescription\n")

	scenario := &Scenario{
		Name:      "broken-doc",
		Documents: []string{docPath},
		Flavor:    ir.FlavorAdvisory,
		RunToken:  "test-run",
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load document")
}

func TestEvaluateAssertions_ReportsFailures(t *testing.T) {
	result := &Result{
		RunToken:    "test-run",
		Flavor:      ir.FlavorAdvisory,
		ActiveUnits: []string{"core.a/step"},
		Trace: []TraceEvent{
			{Stage: "boots", Signal: "continue"},
			{
				Stage:     "candidate",
				Candidate: &ir.Candidate{Name: "flask", Version: "1.1.0"},
				Signal:    "continue",
				Score:     0.1,
			},
		},
		Halted: false,
	}

	failures := EvaluateAssertions(result, []Assertion{
		{Type: AssertHalted, Reason: "never happened"},
		{Type: AssertCandidateScore, Package: "flask", Score: 0.9},
		{Type: AssertCandidateScore, Package: "absent", Score: 0.1},
		{Type: AssertActiveUnits, Units: []string{"core.b/step"}},
		{Type: AssertReportCount, Count: 3},
	})

	require.Len(t, failures, 5)
	assert.Contains(t, failures[0], "run did not halt")
	assert.Contains(t, failures[1], `candidate "flask" scored 0.1, want 0.9`)
	assert.Contains(t, failures[2], `candidate "absent" not in trace`)
	assert.Contains(t, failures[3], "active units")
	assert.Contains(t, failures[4], "report holds 0 entries, want 3")
}
