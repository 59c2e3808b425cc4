// Package inclusion decides, once per run and per pipeline flavor,
// which declared units are active.
//
// Activation has two layers. The local predicate gates a unit on its
// own criteria: repetition cap, flavor, classification tags, library
// usage, and environment constraints. Global activation is then the
// least fixed point over unit dependencies: a unit is active iff its
// local predicate holds and every referenced dependency is itself
// active. Starting from the empty set and only ever adding units means
// an unresolved reference, or a dependency cycle with no independently
// satisfiable member, leaves every dependent permanently inactive.
// That inactivation is silent, since unused units are not an error.
package inclusion

import (
	"log/slog"

	"github.com/formulary-sh/formulary/internal/ir"
	"github.com/formulary-sh/formulary/internal/match"
	"github.com/formulary-sh/formulary/internal/registry"
)

// Inputs carries the host-supplied facts activation is computed
// against. They are fixed for the lifetime of a run.
type Inputs struct {
	Flavor         ir.Flavor
	Environment    ir.EnvironmentDescriptor
	LibraryUsage   ir.LibraryUsage
	Classification string
}

// Resolve computes the active unit set for the given documents. The
// registry must already contain every document unit plus any
// host-builtin units; builtins participate in dependency evaluation but
// only document-declared units appear in the output.
//
// Output preserves document order and declaration order within each
// document, giving later pipeline stages a deterministic tie-break.
func Resolve(docs []*ir.Document, reg *registry.Registry, in Inputs) []*ir.Unit {
	// Declared units in deterministic order, then builtins reachable
	// through the registry during dependency evaluation.
	var declared []*ir.Unit
	for _, doc := range docs {
		declared = append(declared, doc.All()...)
	}

	active := make(map[ir.UnitID]bool)
	local := make(map[ir.UnitID]bool)

	// Least fixed point: start empty, add units whose local predicate
	// holds and whose dependencies are already active, repeat until
	// stable. Units on unsatisfiable cycles are never added.
	changed := true
	for changed {
		changed = false
		for _, u := range declared {
			if active[u.ID()] {
				continue
			}
			if localPredicate(u, in, local) && dependenciesActive(u, reg, in, active, local) {
				active[u.ID()] = true
				changed = true
			}
		}
	}

	var out []*ir.Unit
	for _, u := range declared {
		if active[u.ID()] {
			out = append(out, u)
		} else {
			slog.Debug("unit not included", "unit", u.ID().String())
		}
	}

	slog.Info("inclusion resolved",
		"flavor", in.Flavor,
		"declared", len(declared),
		"active", len(out),
	)
	return out
}

// dependenciesActive checks every dependency reference of a unit. A
// reference that does not resolve evaluates to inactive. Builtin
// dependencies are activated by their own local predicate; document
// dependencies must already be in the active set.
func dependenciesActive(u *ir.Unit, reg *registry.Registry, in Inputs, active map[ir.UnitID]bool, local map[ir.UnitID]bool) bool {
	for _, ref := range u.Inclusion.DependsOn {
		dep := reg.Resolve(ref)
		if dep == nil {
			return false
		}
		if dep.Namespace == registry.BuiltinNamespace {
			// Registration rejects builtins with dependencies, so the
			// local predicate alone decides activation here.
			if !localPredicate(dep, in, local) {
				return false
			}
			continue
		}
		if !active[dep.ID()] {
			return false
		}
	}
	return true
}

// localPredicate evaluates a unit's own inclusion criteria, memoized
// per resolve call: the inputs never change within a run.
func localPredicate(u *ir.Unit, in Inputs, memo map[ir.UnitID]bool) bool {
	if v, ok := memo[u.ID()]; ok {
		return v
	}
	v := evalLocal(u, in)
	memo[u.ID()] = v
	return v
}

func evalLocal(u *ir.Unit, in Inputs) bool {
	spec := u.Inclusion

	if spec.Times <= 0 {
		return false
	}
	if !containsFlavor(spec.Pipelines, in.Flavor) {
		return false
	}
	if len(spec.Classifications) > 0 && !containsString(spec.Classifications, in.Classification) {
		return false
	}
	if !in.LibraryUsage.Satisfies(spec.LibraryUsage) {
		return false
	}
	return match.Environment(in.Environment, spec.Environments)
}

func containsFlavor(flavors []ir.Flavor, f ir.Flavor) bool {
	for _, candidate := range flavors {
		if candidate == f {
			return true
		}
	}
	return false
}

func containsString(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
