package ir

import "fmt"

// Kind identifies the pipeline stage a unit attaches to.
type Kind string

const (
	// KindBoot units run once before resolution starts. They match on
	// package name only and may log, report, or halt the run.
	KindBoot Kind = "boot"
	// KindPseudonym units propose substitute package candidates.
	KindPseudonym Kind = "pseudonym"
	// KindSieve units filter out non-conforming package candidates.
	KindSieve Kind = "sieve"
	// KindStep units evaluate one resolution decision (package plus
	// partial state) and may score, justify, reject, or halt.
	KindStep Kind = "step"
	// KindStride units evaluate a completed candidate stack.
	KindStride Kind = "stride"
	// KindWrap units annotate an accepted candidate stack.
	KindWrap Kind = "wrap"
)

// Kinds lists all unit kinds in pipeline order.
var Kinds = []Kind{KindBoot, KindPseudonym, KindSieve, KindStep, KindStride, KindWrap}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindBoot, KindPseudonym, KindSieve, KindStep, KindStride, KindWrap:
		return true
	}
	return false
}

// Flavor selects which pipeline variant a run belongs to.
type Flavor string

const (
	// FlavorAdvisory is the recommendation pipeline.
	FlavorAdvisory Flavor = "advisory"
	// FlavorExploratory is the decision-sampling pipeline.
	FlavorExploratory Flavor = "exploratory"
)

// Valid reports whether f is a known flavor.
func (f Flavor) Valid() bool {
	return f == FlavorAdvisory || f == FlavorExploratory
}

// UnitID is the engine-wide identity of a unit.
type UnitID struct {
	Namespace string `json:"namespace" yaml:"namespace"`
	Name      string `json:"name" yaml:"name"`
	Kind      Kind   `json:"kind" yaml:"kind"`
}

// String renders the identity as "namespace.name/kind".
func (id UnitID) String() string {
	return fmt.Sprintf("%s.%s/%s", id.Namespace, id.Name, id.Kind)
}

// UnitRef references another unit from a dependency list. Name may be
// qualified ("namespace.name") or bare; bare names resolve against
// host-builtin units of the same kind.
type UnitRef struct {
	Kind Kind   `json:"kind" yaml:"kind"`
	Name string `json:"name" yaml:"name"`
}

// Unit is a named, typed rule with activation criteria and declared
// effects. Immutable after load.
type Unit struct {
	Namespace string        `json:"namespace" yaml:"namespace"`
	Name      string        `json:"name" yaml:"name"`
	Kind      Kind          `json:"kind" yaml:"kind"`
	Inclusion InclusionSpec `json:"should_include" yaml:"should_include"`
	Run       RunSpec       `json:"run" yaml:"run"`
}

// ID returns the unit's identity triple.
func (u *Unit) ID() UnitID {
	return UnitID{Namespace: u.Namespace, Name: u.Name, Kind: u.Kind}
}

// InclusionSpec decides whether a unit participates in a run.
//
// A unit is locally includable when Times > 0, the run flavor is listed
// in Pipelines, the run classification passes Classifications (empty
// list matches any), all LibraryUsage requirements are observed, and at
// least one entry of Environments matches the run environment (empty
// list matches any environment). Global activation additionally
// requires every DependsOn reference to be active itself.
type InclusionSpec struct {
	// Times caps how often the unit may fire per run. Zero means the
	// unit is never included.
	Times int `json:"times" yaml:"times"`

	// Pipelines lists the flavors the unit participates in. A unit
	// with no flavors is inactive unless a document explicitly lists
	// one.
	Pipelines []Flavor `json:"pipelines" yaml:"pipelines"`

	// Classifications restricts the unit to runs carrying one of the
	// listed classification tags. Empty matches any.
	Classifications []string `json:"classifications,omitempty" yaml:"classifications,omitempty"`

	// LibraryUsage maps library name to symbols that must all be
	// observed in the host-supplied usage report.
	LibraryUsage map[string][]string `json:"library_usage,omitempty" yaml:"library_usage,omitempty"`

	// Environments is a disjunction of environment constraints.
	Environments []EnvironmentConstraint `json:"environments,omitempty" yaml:"environments,omitempty"`

	// DependsOn lists units that must themselves be active.
	DependsOn []UnitRef `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
}

// RunSpec declares when a unit fires and what it does. The permitted
// effect set varies per kind and is enforced at load time; see
// compiler.ValidateUnit.
type RunSpec struct {
	Match *MatchSpec `json:"match,omitempty" yaml:"match,omitempty"`

	Log           *LogEntry     `json:"log,omitempty" yaml:"log,omitempty"`
	Report        []ReportEntry `json:"report,omitempty" yaml:"report,omitempty"`
	Score         float64       `json:"score,omitempty" yaml:"score,omitempty"`
	Justification []ReportEntry `json:"justification,omitempty" yaml:"justification,omitempty"`
	Reject        string        `json:"reject,omitempty" yaml:"reject,omitempty"`
	Halt          string        `json:"halt,omitempty" yaml:"halt,omitempty"`
	Yield         *YieldSpec    `json:"yield,omitempty" yaml:"yield,omitempty"`
	RepeatOnMulti bool          `json:"repeat_on_multi_match,omitempty" yaml:"repeat_on_multi_match,omitempty"`
}

// MatchSpec restricts the data a unit fires against. Both fields are
// optional; an absent field is a wildcard for that input.
type MatchSpec struct {
	Package *PackageDescriptor `json:"package,omitempty" yaml:"package,omitempty"`
	State   *StateDescriptor   `json:"state,omitempty" yaml:"state,omitempty"`
}

// StateDescriptor requires a subset of resolved dependencies to be
// present. Matching is existential per entry, not positional.
type StateDescriptor struct {
	Resolved []PackageDescriptor `json:"resolved,omitempty" yaml:"resolved,omitempty"`
}

// YieldSpec declares the substitute candidate a pseudonym proposes.
type YieldSpec struct {
	// Package describes the substitute. LockedVersion pins the yielded
	// version unless UseMatchedVersion is set.
	Package YieldPackage `json:"package" yaml:"package"`

	// UseMatchedVersion yields the matched candidate's own version
	// instead of Package.LockedVersion.
	UseMatchedVersion bool `json:"use_matched_version,omitempty" yaml:"use_matched_version,omitempty"`
}

// YieldPackage names the substitute candidate a pseudonym yields.
type YieldPackage struct {
	Name          string `json:"name" yaml:"name"`
	LockedVersion string `json:"locked_version,omitempty" yaml:"locked_version,omitempty"`
	Index         string `json:"index,omitempty" yaml:"index,omitempty"`
}

// LogEntry is a structured log effect.
type LogEntry struct {
	Level   string `json:"level" yaml:"level"`
	Message string `json:"message" yaml:"message"`
}

// Severity classifies report entries.
type Severity string

const (
	SeverityInfo    Severity = "INFO"
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	return s == SeverityInfo || s == SeverityWarning || s == SeverityError
}

// ReportEntry is a severity+message+link record surfaced in the final
// output. Report entries are deduplicated per run on (unit identity,
// message); justification entries reuse the same shape but attach to an
// accepted resolution step instead.
type ReportEntry struct {
	Severity Severity `json:"severity" yaml:"severity"`
	Message  string   `json:"message" yaml:"message"`
	Link     string   `json:"link,omitempty" yaml:"link,omitempty"`
}
