package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formulary-sh/formulary/internal/ir"
)

func codesOf(errs []ValidationError) []string {
	codes := make([]string, 0, len(errs))
	for _, e := range errs {
		codes = append(codes, e.Code)
	}
	return codes
}

func TestValidateUnit(t *testing.T) {
	tests := []struct {
		name string
		unit ir.Unit
		code string
	}{
		{
			name: "empty name",
			unit: ir.Unit{Namespace: "core", Kind: ir.KindSieve},
			code: ErrUnitNameEmpty,
		},
		{
			name: "unknown kind",
			unit: ir.Unit{Namespace: "core", Name: "u", Kind: ir.Kind("gizmo")},
			code: ErrUnknownUnitKind,
		},
		{
			name: "unknown flavor",
			unit: ir.Unit{
				Namespace: "core", Name: "u", Kind: ir.KindSieve,
				Inclusion: ir.InclusionSpec{Times: 1, Pipelines: []ir.Flavor{"turbo"}},
			},
			code: ErrUnknownFlavor,
		},
		{
			name: "unknown dependency kind",
			unit: ir.Unit{
				Namespace: "core", Name: "u", Kind: ir.KindSieve,
				Inclusion: ir.InclusionSpec{
					Times:     1,
					Pipelines: []ir.Flavor{ir.FlavorAdvisory},
					DependsOn: []ir.UnitRef{{Kind: "gizmo", Name: "x"}},
				},
			},
			code: ErrUnknownDependencyKind,
		},
		{
			name: "bad log level",
			unit: ir.Unit{
				Namespace: "core", Name: "u", Kind: ir.KindSieve,
				Run: ir.RunSpec{Log: &ir.LogEntry{Level: "loud", Message: "m"}},
			},
			code: ErrInvalidLogLevel,
		},
		{
			name: "bad report severity",
			unit: ir.Unit{
				Namespace: "core", Name: "u", Kind: ir.KindWrap,
				Run: ir.RunSpec{Report: []ir.ReportEntry{{Severity: "FATAL", Message: "m"}}},
			},
			code: ErrUnknownSeverity,
		},
		{
			name: "score above one",
			unit: ir.Unit{
				Namespace: "core", Name: "u", Kind: ir.KindStep,
				Run: ir.RunSpec{Score: 1.5},
			},
			code: ErrScoreOutOfRange,
		},
		{
			name: "score below minus one",
			unit: ir.Unit{
				Namespace: "core", Name: "u", Kind: ir.KindStep,
				Run: ir.RunSpec{Score: -2},
			},
			code: ErrScoreOutOfRange,
		},
		{
			name: "score on a wrap",
			unit: ir.Unit{
				Namespace: "core", Name: "u", Kind: ir.KindWrap,
				Run: ir.RunSpec{Score: 0.5},
			},
			code: ErrEffectNotPermitted,
		},
		{
			name: "justification on a sieve",
			unit: ir.Unit{
				Namespace: "core", Name: "u", Kind: ir.KindSieve,
				Run: ir.RunSpec{Justification: []ir.ReportEntry{{Severity: ir.SeverityInfo, Message: "m"}}},
			},
			code: ErrEffectNotPermitted,
		},
		{
			name: "halt on a pseudonym",
			unit: ir.Unit{
				Namespace: "core", Name: "u", Kind: ir.KindPseudonym,
				Run: ir.RunSpec{Halt: "stop"},
			},
			code: ErrEffectNotPermitted,
		},
		{
			name: "reject on a boot",
			unit: ir.Unit{
				Namespace: "core", Name: "u", Kind: ir.KindBoot,
				Run: ir.RunSpec{Reject: "no"},
			},
			code: ErrEffectNotPermitted,
		},
		{
			name: "state match on a pseudonym",
			unit: ir.Unit{
				Namespace: "core", Name: "u", Kind: ir.KindPseudonym,
				Run: ir.RunSpec{Match: &ir.MatchSpec{State: &ir.StateDescriptor{}}},
			},
			code: ErrMatchNotPermitted,
		},
		{
			name: "malformed state specifier",
			unit: ir.Unit{
				Namespace: "core", Name: "u", Kind: ir.KindStep,
				Run: ir.RunSpec{Match: &ir.MatchSpec{State: &ir.StateDescriptor{
					Resolved: []ir.PackageDescriptor{{Name: "werkzeug", Version: "=1.0"}},
				}}},
			},
			code: ErrBadVersionSpecifier,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			errs := ValidateUnit(&tc.unit, "spec.units.test[0]")
			require.NotEmpty(t, errs)
			assert.Contains(t, codesOf(errs), tc.code)
		})
	}
}

func TestValidateUnitAcceptsWellFormedUnits(t *testing.T) {
	units := []ir.Unit{
		{
			Namespace: "core", Name: "b", Kind: ir.KindBoot,
			Inclusion: ir.InclusionSpec{Times: 1, Pipelines: []ir.Flavor{ir.FlavorAdvisory}},
			Run: ir.RunSpec{
				Match: &ir.MatchSpec{Package: &ir.PackageDescriptor{Name: "six"}},
				Halt:  "stop",
			},
		},
		{
			Namespace: "core", Name: "p", Kind: ir.KindPseudonym,
			Inclusion: ir.InclusionSpec{Times: 1, Pipelines: []ir.Flavor{ir.FlavorExploratory}},
			Run: ir.RunSpec{
				Match: &ir.MatchSpec{Package: &ir.PackageDescriptor{Name: "flask", Version: ">1.0,<=1.1.0"}},
				Yield: &ir.YieldSpec{Package: ir.YieldPackage{Name: "flask", LockedVersion: "1.2.0"}},
			},
		},
		{
			Namespace: "core", Name: "s", Kind: ir.KindStep,
			Inclusion: ir.InclusionSpec{Times: 1, Pipelines: []ir.Flavor{ir.FlavorAdvisory}},
			Run: ir.RunSpec{
				Match: &ir.MatchSpec{
					Package: &ir.PackageDescriptor{Name: "flask", Version: "~=1.1"},
					State:   &ir.StateDescriptor{Resolved: []ir.PackageDescriptor{{Name: "werkzeug"}}},
				},
				Score:         0.42,
				Justification: []ir.ReportEntry{{Severity: ir.SeverityInfo, Message: "m"}},
				RepeatOnMulti: true,
			},
		},
		{
			Namespace: "core", Name: "w", Kind: ir.KindWrap,
			Inclusion: ir.InclusionSpec{Times: 1, Pipelines: []ir.Flavor{ir.FlavorAdvisory}},
			Run: ir.RunSpec{
				Match:         &ir.MatchSpec{State: &ir.StateDescriptor{}},
				Justification: []ir.ReportEntry{{Severity: ir.SeverityInfo, Message: "m"}},
			},
		},
	}

	for _, u := range units {
		u := u
		t.Run(string(u.Kind), func(t *testing.T) {
			assert.Empty(t, ValidateUnit(&u, "spec.units.test[0]"))
		})
	}
}

func TestValidateDocumentShape(t *testing.T) {
	doc := &ir.Document{
		APIVersion: "formulary.dev/v0",
		Kind:       "recipe",
	}
	errs := ValidateDocument(doc)
	codes := codesOf(errs)
	assert.Contains(t, codes, ErrWrongAPIVersion)
	assert.Contains(t, codes, ErrWrongDocumentKind)
	assert.Contains(t, codes, ErrDocumentNameEmpty)
}
