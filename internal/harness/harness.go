// Package harness drives scripted pipeline runs for conformance
// testing: it loads prescription documents, computes the active unit
// set, feeds a scripted candidate stream through the six call sites
// with the documented halt checkpoints, and records a deterministic
// trace suitable for golden-file comparison.
package harness

import (
	"fmt"

	"github.com/formulary-sh/formulary/internal/compiler"
	"github.com/formulary-sh/formulary/internal/engine"
	"github.com/formulary-sh/formulary/internal/inclusion"
	"github.com/formulary-sh/formulary/internal/ir"
	"github.com/formulary-sh/formulary/internal/registry"
)

// TraceEvent is one driver-observed pipeline event. Boot, stride, and
// wrap events carry no candidate; candidate events carry the full
// per-candidate outcome.
type TraceEvent struct {
	Stage        string                `json:"stage"`
	Candidate    *ir.Candidate         `json:"candidate,omitempty"`
	Signal       string                `json:"signal"`
	Score        float64               `json:"score,omitempty"`
	Rejected     bool                  `json:"rejected,omitempty"`
	RejectReason string                `json:"reject_reason,omitempty"`
	Filtered     bool                  `json:"filtered,omitempty"`
	Yields       []ir.Candidate        `json:"yields,omitempty"`
	Justified    []engine.ReportRecord `json:"justified,omitempty"`
}

// Result is the outcome of driving one scenario.
type Result struct {
	RunToken    string                `json:"run_token"`
	Flavor      ir.Flavor             `json:"flavor"`
	ActiveUnits []string              `json:"active_units"`
	Trace       []TraceEvent          `json:"trace"`
	Report      []engine.ReportRecord `json:"report"`
	Halted      bool                  `json:"halted"`
	HaltReason  string                `json:"halt_reason,omitempty"`

	// Run exposes the underlying run context so callers can journal
	// the outcome. Excluded from trace snapshots.
	Run *engine.RunContext `json:"-"`
}

// Run drives one scenario through the pipeline. Candidate evaluation
// is sequential here: the checkpoint contract (halt observed before
// each candidate and before each stage switch) makes the trace
// deterministic, which is what golden comparison needs.
func Run(scenario *Scenario) (*Result, error) {
	var docs []*ir.Document
	for _, path := range scenario.Documents {
		doc, err := compiler.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load document: %w", err)
		}
		docs = append(docs, doc)
	}

	reg := registry.New()
	for _, doc := range docs {
		if err := reg.RegisterDocument(doc); err != nil {
			return nil, fmt.Errorf("register document: %w", err)
		}
	}

	active := inclusion.Resolve(docs, reg, inclusion.Inputs{
		Flavor:         scenario.Flavor,
		Environment:    scenario.Environment,
		LibraryUsage:   scenario.LibraryUsage,
		Classification: scenario.Classification,
	})

	run := engine.NewRunContext(scenario.RunToken, scenario.Flavor)
	pipeline, err := engine.NewPipeline(active, run)
	if err != nil {
		return nil, fmt.Errorf("compile pipeline: %w", err)
	}

	result := &Result{
		RunToken:    run.Token(),
		Flavor:      run.Flavor(),
		ActiveUnits: make([]string, 0, len(active)),
		Trace:       []TraceEvent{},
		Run:         run,
	}
	for _, u := range active {
		result.ActiveUnits = append(result.ActiveUnits, u.ID().String())
	}

	sig := pipeline.RunBoots(scenario.Direct)
	result.Trace = append(result.Trace, TraceEvent{Stage: "boots", Signal: sig.Kind.String()})

	for _, step := range scenario.Candidates {
		// Halt checkpoint: in-flight work finishes, new work does not
		// start.
		if run.Halted() {
			break
		}
		result.Trace = append(result.Trace, driveCandidate(pipeline, run, step))
	}

	for _, step := range scenario.FinalStates {
		if run.Halted() {
			break
		}
		cand := &engine.CandidateContext{}
		sig := pipeline.RunStrides(ir.ResolvedState(step.Resolved), cand)
		result.Trace = append(result.Trace, TraceEvent{
			Stage:        "strides",
			Signal:       sig.Kind.String(),
			Rejected:     cand.Rejected,
			RejectReason: cand.RejectReason,
		})
	}

	for _, step := range scenario.AcceptedStates {
		if run.Halted() {
			break
		}
		cand := &engine.CandidateContext{}
		sig := pipeline.RunWraps(ir.ResolvedState(step.Resolved), cand)
		result.Trace = append(result.Trace, TraceEvent{
			Stage:        "wraps",
			Signal:       sig.Kind.String(),
			Rejected:     cand.Rejected,
			RejectReason: cand.RejectReason,
			Justified:    cand.Justifications,
		})
	}

	result.Report = run.Report()
	result.Halted = run.Halted()
	result.HaltReason = run.HaltReason()
	return result, nil
}

// driveCandidate runs one candidate through pseudonyms, sieves, and
// steps, observing the halt flag between stages.
func driveCandidate(pipeline *engine.Pipeline, run *engine.RunContext, step CandidateStep) TraceEvent {
	cand := &engine.CandidateContext{}
	candidate := step.Package
	event := TraceEvent{Stage: "candidate", Candidate: &candidate}

	sig := pipeline.RunPseudonyms(candidate, cand)
	if !run.Halted() {
		sig = pipeline.RunSieves(candidate, cand)
	}
	// A filtered candidate is out of the running: no resolution
	// decision is made for it, so steps never see it.
	if !run.Halted() && !cand.Filtered {
		sig = pipeline.RunSteps(candidate, ir.ResolvedState(step.State), cand)
	}

	event.Signal = sig.Kind.String()
	if len(cand.Yields) > 0 {
		event.Yields = cand.Yields
		// A yield is only the headline signal when nothing later
		// rejected or halted the candidate.
		if sig.Kind == engine.SignalContinue {
			event.Signal = engine.SignalYieldPackage.String()
		}
	}
	event.Score = cand.Score
	event.Filtered = cand.Filtered
	event.Rejected = cand.Rejected
	event.RejectReason = cand.RejectReason
	event.Justified = cand.Justifications
	return event
}
