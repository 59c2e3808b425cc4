package engine

import (
	"log/slog"

	"github.com/formulary-sh/formulary/internal/ir"
)

// SignalKind is the control signal a firing returns to the pipeline
// driver.
type SignalKind int

const (
	// SignalContinue keeps exploring normally.
	SignalContinue SignalKind = iota
	// SignalRejectCandidate abandons the current candidate path and
	// keeps exploring others. Never touches the run flag.
	SignalRejectCandidate
	// SignalHaltRun stops the whole run; accumulated results are
	// reported. Cooperative, not preemptive.
	SignalHaltRun
	// SignalYieldPackage proposes a substitute candidate. Pseudonym
	// units only.
	SignalYieldPackage
)

// String names the signal for logs and traces.
func (k SignalKind) String() string {
	switch k {
	case SignalContinue:
		return "continue"
	case SignalRejectCandidate:
		return "reject_candidate"
	case SignalHaltRun:
		return "halt_run"
	case SignalYieldPackage:
		return "yield_package"
	}
	return "unknown"
}

// Signal is the executor's verdict for one firing. Message carries the
// user-facing reject or halt reason; Yield carries the substitute
// candidate for SignalYieldPackage.
type Signal struct {
	Kind    SignalKind
	Message string
	Yield   *ir.Candidate
}

// Apply executes a matched unit's declared effects against the run and
// candidate contexts and returns the resulting control signal.
//
// Effect ordering and exclusivity:
//   - log fires on every invocation, even when report entries dedup to
//     a no-op.
//   - report entries go through the run-level dedup set.
//   - halt and reject are mutually exclusive by load-time validation;
//     whichever is configured wins over justification, which is
//     suppressed entirely for that firing.
//   - score is committed only when the firing neither rejects nor
//     halts: an aborted candidate never observes the delta.
//   - yield builds the substitute candidate, taking the matched
//     version when the unit asked for it.
//
// Apply never fails: all match-time operations are total over
// well-formed (load-validated) units.
func Apply(u *ir.Unit, run *RunContext, cand *CandidateContext, matched *ir.Candidate) Signal {
	id := u.ID()
	spec := u.Run

	if spec.Log != nil {
		logEffect(id, spec.Log)
	}

	for _, entry := range spec.Report {
		if run.AddReport(id, entry) {
			slog.Debug("report entry added", "unit", id.String(), "message", entry.Message)
		}
	}

	switch {
	case spec.Halt != "":
		run.Halt(spec.Halt)
		slog.Info("unit halted the run", "unit", id.String(), "reason", spec.Halt)
		return Signal{Kind: SignalHaltRun, Message: spec.Halt}

	case spec.Reject != "":
		if cand != nil {
			cand.reject(spec.Reject)
		}
		slog.Debug("unit rejected the candidate", "unit", id.String(), "reason", spec.Reject)
		return Signal{Kind: SignalRejectCandidate, Message: spec.Reject}
	}

	if cand != nil {
		for _, entry := range spec.Justification {
			cand.Justifications = append(cand.Justifications, ReportRecord{Unit: id, Entry: entry})
		}
		if spec.Score != 0 {
			cand.addScore(spec.Score)
		}
	}

	if spec.Yield != nil {
		yielded := yieldCandidate(spec.Yield, matched)
		if cand != nil {
			cand.Yields = append(cand.Yields, yielded)
		}
		slog.Debug("unit yielded a substitute",
			"unit", id.String(),
			"package", yielded.Name,
			"version", yielded.Version,
		)
		return Signal{Kind: SignalYieldPackage, Yield: &yielded}
	}

	return Signal{Kind: SignalContinue}
}

// yieldCandidate materializes a pseudonym's substitute. Fields omitted
// from the yield spec are inherited from the matched candidate.
func yieldCandidate(y *ir.YieldSpec, matched *ir.Candidate) ir.Candidate {
	out := ir.Candidate{
		Name:    y.Package.Name,
		Version: y.Package.LockedVersion,
		Index:   y.Package.Index,
	}
	if matched != nil {
		if out.Name == "" {
			out.Name = matched.Name
		}
		if y.UseMatchedVersion || out.Version == "" {
			out.Version = matched.Version
		}
		if out.Index == "" {
			out.Index = matched.Index
		}
	}
	return out
}

func logEffect(id ir.UnitID, entry *ir.LogEntry) {
	switch entry.Level {
	case "error":
		slog.Error(entry.Message, "unit", id.String())
	case "warning":
		slog.Warn(entry.Message, "unit", id.String())
	case "debug":
		slog.Debug(entry.Message, "unit", id.String())
	default:
		slog.Info(entry.Message, "unit", id.String())
	}
}
