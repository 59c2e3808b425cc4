package engine

import (
	"sync"
	"sync/atomic"

	"github.com/formulary-sh/formulary/internal/ir"
)

// ReportRecord is one deduplicated report entry together with the unit
// that produced it.
type ReportRecord struct {
	Unit  ir.UnitID      `json:"unit"`
	Entry ir.ReportEntry `json:"entry"`
}

// RunContext holds run-scoped engine state. Created once per resolution
// run and destroyed when the run ends. Safe for concurrent use by
// candidate workers.
type RunContext struct {
	token  string
	flavor ir.Flavor

	halted     atomic.Bool
	haltReason string // guarded by mu, written once

	mu     sync.Mutex
	seen   map[string]bool   // report dedup keys
	report []ReportRecord    // accumulated report, insertion order
	fired  map[ir.UnitID]int // per-unit repetition counters
	// matchSet tracks distinct matches for repeat-on-multi steps.
	matchSet map[ir.UnitID]map[ir.Candidate]bool
}

// NewRunContext creates the state for one resolution run.
func NewRunContext(token string, flavor ir.Flavor) *RunContext {
	return &RunContext{
		token:    token,
		flavor:   flavor,
		seen:     make(map[string]bool),
		fired:    make(map[ir.UnitID]int),
		matchSet: make(map[ir.UnitID]map[ir.Candidate]bool),
	}
}

// Token returns the run's correlation token.
func (r *RunContext) Token() string { return r.token }

// Flavor returns the pipeline flavor of this run.
func (r *RunContext) Flavor() ir.Flavor { return r.flavor }

// Halt raises the run-level halt flag. The first caller wins and its
// reason is kept; later calls are no-ops. The flag is cooperative: the
// driver polls Halted at scheduling checkpoints, and in-flight
// candidate evaluations complete normally.
func (r *RunContext) Halt(reason string) {
	if r.halted.CompareAndSwap(false, true) {
		r.mu.Lock()
		r.haltReason = reason
		r.mu.Unlock()
	}
}

// Halted reports whether the run has been halted.
func (r *RunContext) Halted() bool { return r.halted.Load() }

// HaltReason returns the first halt reason, or "" if the run was not
// halted.
func (r *RunContext) HaltReason() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.haltReason
}

// AddReport appends a report entry unless an entry with the same (unit
// identity, message) key was already recorded this run. Returns true
// for the first writer; later writers observe a no-op.
func (r *RunContext) AddReport(id ir.UnitID, entry ir.ReportEntry) bool {
	key := ir.DedupKey(id, entry.Message)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seen[key] {
		return false
	}
	r.seen[key] = true
	r.report = append(r.report, ReportRecord{Unit: id, Entry: entry})
	return true
}

// Report returns a copy of the accumulated report entries in insertion
// order.
func (r *RunContext) Report() []ReportRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ReportRecord, len(r.report))
	copy(out, r.report)
	return out
}

// TryFire consumes one repetition of the unit if its counter is still
// below limit. Check-and-set: the first limit callers succeed, all
// later callers observe false.
func (r *RunContext) TryFire(id ir.UnitID, limit int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fired[id] >= limit {
		return false
	}
	r.fired[id]++
	return true
}

// RecordFiring counts a firing without enforcing a cap. Used by kinds
// that fire on every match and rely on the report dedup set for
// once-per-run effects.
func (r *RunContext) RecordFiring(id ir.UnitID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fired[id]++
}

// TryFireMatch consumes one firing of a repeat-on-multi-match step for
// a distinct matched candidate. The same (unit, candidate) pair fires
// at most once per run.
func (r *RunContext) TryFireMatch(id ir.UnitID, candidate ir.Candidate) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.matchSet[id]
	if set == nil {
		set = make(map[ir.Candidate]bool)
		r.matchSet[id] = set
	}
	if set[candidate] {
		return false
	}
	set[candidate] = true
	return true
}

// Firings returns how many times the unit has fired this run.
func (r *RunContext) Firings(id ir.UnitID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fired[id]
}

// FiringCounts returns a snapshot of per-unit firing counts.
func (r *RunContext) FiringCounts() map[ir.UnitID]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[ir.UnitID]int, len(r.fired))
	for id, n := range r.fired {
		out[id] = n
	}
	return out
}

// CandidateContext holds candidate-scoped engine state. Exclusively
// owned by the worker exploring the candidate path; discarded when the
// candidate is abandoned or accepted.
type CandidateContext struct {
	// Score is the accumulated score, clamped to [-1, +1].
	Score float64

	// Justifications are report-like entries attached to the accepted
	// resolution step.
	Justifications []ReportRecord

	// Rejected marks the candidate path abandoned; RejectReason carries
	// the user-facing message of the first rejecting unit.
	Rejected     bool
	RejectReason string

	// Yields are substitute candidates proposed by pseudonym units.
	Yields []ir.Candidate

	// Filtered marks the candidate removed from consideration by a
	// sieve. Sieve effects are log and report only, so the match
	// itself is the removal decision.
	Filtered bool
}

// scoreMin and scoreMax bound both a single firing's delta and the
// accumulated candidate score.
const (
	scoreMin = -1.0
	scoreMax = 1.0
)

// addScore commits a score delta, clamping the accumulator.
func (c *CandidateContext) addScore(delta float64) {
	c.Score += delta
	if c.Score > scoreMax {
		c.Score = scoreMax
	}
	if c.Score < scoreMin {
		c.Score = scoreMin
	}
}

// reject marks the candidate abandoned, keeping the first reason.
func (c *CandidateContext) reject(reason string) {
	if !c.Rejected {
		c.Rejected = true
		c.RejectReason = reason
	}
}
