package engine

import (
	"fmt"

	"github.com/formulary-sh/formulary/internal/ir"
	"github.com/formulary-sh/formulary/internal/match"
)

// Pipeline maps the six external pipeline call sites onto the generic
// matcher and executor, applying per-kind cardinality rules. It is
// read-only after construction and may be shared by concurrent
// candidate workers; all mutable state lives in the contexts passed to
// each call.
type Pipeline struct {
	run   *RunContext
	units map[ir.Kind][]*activeUnit
}

type activeUnit struct {
	unit    *ir.Unit
	matcher *match.UnitMatcher
}

// NewPipeline compiles the active unit set (in the order produced by
// inclusion resolution) into a pipeline bound to one run. Compilation
// errors cannot occur for documents that passed load-time validation.
func NewPipeline(active []*ir.Unit, run *RunContext) (*Pipeline, error) {
	p := &Pipeline{run: run, units: make(map[ir.Kind][]*activeUnit)}
	for _, u := range active {
		m, err := match.CompileUnit(u)
		if err != nil {
			return nil, fmt.Errorf("compile unit %s: %w", u.ID(), err)
		}
		p.units[u.Kind] = append(p.units[u.Kind], &activeUnit{unit: u, matcher: m})
	}
	return p, nil
}

// Run returns the run context the pipeline is bound to.
func (p *Pipeline) Run() *RunContext { return p.run }

// ActiveCount returns the number of active units of the given kind.
func (p *Pipeline) ActiveCount(kind ir.Kind) int { return len(p.units[kind]) }

// RunBoots fires boot units once before resolution starts. Boots match
// on package name only; direct lists the names of the direct input
// packages and may be empty, in which case only name-unconstrained
// boots fire.
func (p *Pipeline) RunBoots(direct []string) Signal {
	for _, au := range p.units[ir.KindBoot] {
		if !bootFires(au.matcher, direct) {
			continue
		}
		if !p.run.TryFire(au.unit.ID(), au.unit.Inclusion.Times) {
			continue
		}
		if sig := Apply(au.unit, p.run, nil, nil); sig.Kind == SignalHaltRun {
			return sig
		}
	}
	return Signal{Kind: SignalContinue}
}

func bootFires(m *match.UnitMatcher, direct []string) bool {
	if m.Fires(nil, nil) {
		return true
	}
	for _, name := range direct {
		if m.Fires(&ir.Candidate{Name: name}, nil) {
			return true
		}
	}
	return false
}

// RunPseudonyms fires pseudonym units against one candidate. Yields
// accumulate on the candidate context; the last yield is also returned
// so single-unit callers can act on it directly.
func (p *Pipeline) RunPseudonyms(candidate ir.Candidate, cand *CandidateContext) Signal {
	last := Signal{Kind: SignalContinue}
	for _, au := range p.units[ir.KindPseudonym] {
		if !au.matcher.Fires(&candidate, nil) {
			continue
		}
		p.run.RecordFiring(au.unit.ID())
		if sig := Apply(au.unit, p.run, cand, &candidate); sig.Kind == SignalYieldPackage {
			last = sig
		}
	}
	return last
}

// RunSieves fires sieve units against one candidate. A firing sieve
// filters the candidate out: its effects carry the log and report, and
// the candidate context is marked so callers drop the candidate from
// further stages.
func (p *Pipeline) RunSieves(candidate ir.Candidate, cand *CandidateContext) Signal {
	for _, au := range p.units[ir.KindSieve] {
		if !au.matcher.Fires(&candidate, nil) {
			continue
		}
		p.run.RecordFiring(au.unit.ID())
		Apply(au.unit, p.run, cand, &candidate)
		cand.Filtered = true
	}
	return Signal{Kind: SignalContinue}
}

// RunSteps fires step units against one resolution decision: the
// candidate being added plus the state resolved so far. A step without
// repeat-on-multi-match fires at most once per run; with it, once per
// distinct matched candidate. Reject and halt short-circuit the
// remaining steps for this candidate.
func (p *Pipeline) RunSteps(candidate ir.Candidate, state ir.ResolvedState, cand *CandidateContext) Signal {
	for _, au := range p.units[ir.KindStep] {
		if !au.matcher.Fires(&candidate, state) {
			continue
		}
		if !p.stepMayFire(au.unit, candidate) {
			continue
		}
		sig := Apply(au.unit, p.run, cand, &candidate)
		if sig.Kind == SignalRejectCandidate || sig.Kind == SignalHaltRun {
			return sig
		}
	}
	return Signal{Kind: SignalContinue}
}

// stepMayFire applies step cardinality. Without repeat-on-multi-match
// a step fires at most once per run even when multiple candidate
// positions match; with it, each distinct matched candidate fires
// exactly once.
func (p *Pipeline) stepMayFire(u *ir.Unit, candidate ir.Candidate) bool {
	id := u.ID()
	if !u.Run.RepeatOnMulti {
		return p.run.TryFire(id, 1)
	}
	if !p.run.TryFireMatch(id, candidate) {
		return false
	}
	p.run.RecordFiring(id)
	return true
}

// RunStrides fires stride units against a completed candidate stack.
func (p *Pipeline) RunStrides(state ir.ResolvedState, cand *CandidateContext) Signal {
	return p.runStateUnits(ir.KindStride, state, cand)
}

// RunWraps fires wrap units against an accepted candidate stack.
func (p *Pipeline) RunWraps(state ir.ResolvedState, cand *CandidateContext) Signal {
	return p.runStateUnits(ir.KindWrap, state, cand)
}

func (p *Pipeline) runStateUnits(kind ir.Kind, state ir.ResolvedState, cand *CandidateContext) Signal {
	for _, au := range p.units[kind] {
		if !au.matcher.Fires(nil, state) {
			continue
		}
		p.run.RecordFiring(au.unit.ID())
		sig := Apply(au.unit, p.run, cand, nil)
		if sig.Kind == SignalRejectCandidate || sig.Kind == SignalHaltRun {
			return sig
		}
	}
	return Signal{Kind: SignalContinue}
}
