package match

import (
	"fmt"

	"github.com/formulary-sh/formulary/internal/ir"
)

// UnitMatcher is a unit's compiled firing criteria. It decides, at each
// pipeline call site, whether the unit fires against the supplied
// inputs. A unit without match criteria fires unconditionally.
type UnitMatcher struct {
	kind  ir.Kind
	pkg   *PackageCriteria
	state *StateCriteria
}

// CompileUnit compiles the match criteria of a unit. Compilation fails
// only on malformed version specifiers, which load-time validation has
// already rejected for documents that reach the engine.
func CompileUnit(u *ir.Unit) (*UnitMatcher, error) {
	m := &UnitMatcher{kind: u.Kind}

	if u.Run.Match == nil {
		return m, nil
	}

	var err error
	if m.pkg, err = CompilePackageCriteria(u.Run.Match.Package); err != nil {
		return nil, fmt.Errorf("unit %s: %w", u.ID(), err)
	}
	if m.state, err = CompileStateCriteria(u.Run.Match.State); err != nil {
		return nil, fmt.Errorf("unit %s: %w", u.ID(), err)
	}
	return m, nil
}

// Fires reports whether the unit fires for the given call-site inputs.
// Each pipeline stage supplies only the inputs it has: boots a package
// name, pseudonyms and sieves a candidate, steps a candidate plus
// state, strides and wraps state only. Inputs a kind does not receive
// are ignored even if criteria were declared for them; load-time
// validation prevents such declarations.
func (m *UnitMatcher) Fires(candidate *ir.Candidate, state ir.ResolvedState) bool {
	switch m.kind {
	case ir.KindBoot:
		// Boot units see package names only, never versions or indexes.
		// Without a package input, only name-unconstrained boots fire.
		if candidate == nil {
			return m.pkg.MatchesName("")
		}
		return m.pkg.MatchesName(candidate.Name)

	case ir.KindPseudonym, ir.KindSieve:
		if candidate == nil {
			return false
		}
		return m.pkg.Matches(*candidate)

	case ir.KindStep:
		if candidate == nil {
			return false
		}
		return m.pkg.Matches(*candidate) && m.state.Matches(state)

	case ir.KindStride, ir.KindWrap:
		return m.state.Matches(state)
	}

	return false
}

// Kind returns the unit kind the matcher was compiled for.
func (m *UnitMatcher) Kind() ir.Kind {
	return m.kind
}
