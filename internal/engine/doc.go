// Package engine applies matched units' declared effects to a
// resolution run.
//
// The engine owns two kinds of mutable state and nothing else:
//
// RunContext is scoped to a whole resolution run. Its report dedup set,
// per-unit repetition counters, and halt flag are shared across
// concurrent candidate evaluations and use first-writer-wins
// check-and-set semantics.
//
// CandidateContext is scoped to one explored candidate path and is
// exclusively owned by the worker exploring it; no synchronization.
//
// Unit definitions and the active-unit set are read-only after
// inclusion resolution and shared freely. No operation here blocks or
// performs I/O: matching and effect application are pure, synchronous
// computations, so concurrency is entirely the driver's concern. The
// halt signal is cooperative: the engine raises the run-level flag and
// the driver polls it at scheduling checkpoints; in-flight candidate
// evaluations run to completion.
package engine
