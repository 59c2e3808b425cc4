package match

import (
	"fmt"

	"github.com/formulary-sh/formulary/internal/ir"
)

// StateCriteria tests a resolved-dependency snapshot against a required
// subset of entries. Each required entry independently needs at least
// one satisfying member of the state; multiple required entries may be
// satisfied by the same member. A nil criteria matches any state.
type StateCriteria struct {
	required []*PackageCriteria
}

// CompileStateCriteria compiles a state descriptor.
func CompileStateCriteria(d *ir.StateDescriptor) (*StateCriteria, error) {
	if d == nil {
		return nil, nil
	}

	c := &StateCriteria{required: make([]*PackageCriteria, 0, len(d.Resolved))}
	for i := range d.Resolved {
		pc, err := CompilePackageCriteria(&d.Resolved[i])
		if err != nil {
			return nil, fmt.Errorf("resolved entry %d: %w", i, err)
		}
		c.required = append(c.required, pc)
	}
	return c, nil
}

// Matches reports whether every required entry has a satisfying member
// in the state. Empty requirements match any state, including empty.
func (c *StateCriteria) Matches(state ir.ResolvedState) bool {
	if c == nil {
		return true
	}

	for _, required := range c.required {
		satisfied := false
		for _, entry := range state {
			if required.Matches(ir.Candidate(entry)) {
				satisfied = true
				break
			}
		}
		if !satisfied {
			return false
		}
	}
	return true
}
