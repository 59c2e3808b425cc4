package match

import (
	"fmt"

	"github.com/formulary-sh/formulary/internal/ir"
	"github.com/formulary-sh/formulary/internal/version"
)

// PackageCriteria tests a candidate package against an optional,
// partially specified package descriptor. A nil criteria (compiled from
// a nil descriptor) matches any candidate.
type PackageCriteria struct {
	name    string
	index   string
	version *version.Specifier
}

// CompilePackageCriteria compiles a package descriptor. The version
// range is parsed here; malformed specifiers fail compilation so that
// matching never fails later.
func CompilePackageCriteria(d *ir.PackageDescriptor) (*PackageCriteria, error) {
	if d == nil {
		return nil, nil
	}

	spec, err := version.Parse(d.Version)
	if err != nil {
		return nil, fmt.Errorf("package %q: %w", d.Name, err)
	}

	return &PackageCriteria{name: d.Name, index: d.Index, version: spec}, nil
}

// Matches reports whether the candidate satisfies every present field
// of the descriptor. Omitted fields are wildcards.
func (c *PackageCriteria) Matches(candidate ir.Candidate) bool {
	if c == nil {
		return true
	}
	if c.name != "" && c.name != candidate.Name {
		return false
	}
	if c.index != "" && c.index != candidate.Index {
		return false
	}
	return c.version.Matches(candidate.Version)
}

// MatchesName reports whether the candidate name alone satisfies the
// descriptor. Boot units match on name only.
func (c *PackageCriteria) MatchesName(name string) bool {
	if c == nil {
		return true
	}
	return c.name == "" || c.name == name
}
