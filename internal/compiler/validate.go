package compiler

import (
	"fmt"

	"github.com/formulary-sh/formulary/internal/ir"
	"github.com/formulary-sh/formulary/internal/version"
)

// Validation error codes (F100-F199)
const (
	// Document-shape errors (F100-F109)
	ErrMalformedDocument = "F100" // not valid YAML / not a document
	ErrWrongAPIVersion   = "F101" // apiVersion this build does not accept
	ErrWrongDocumentKind = "F102" // kind != "prescription"
	ErrDocumentNameEmpty = "F103" // spec.name missing
	ErrSchemaViolation   = "F104" // CUE schema unification failure

	// Unit errors (F110-F129)
	ErrUnitNameEmpty         = "F110" // unit name missing
	ErrUnknownUnitKind       = "F111" // kind outside the six known kinds
	ErrUnknownFlavor         = "F112" // pipelines entry not advisory/exploratory
	ErrUnknownSeverity       = "F113" // report/justification severity invalid
	ErrInvalidLogLevel       = "F114" // log level outside debug/info/warning/error
	ErrBadVersionSpecifier   = "F115" // version range failed to parse
	ErrDuplicateUnit         = "F116" // duplicate (namespace, name, kind)
	ErrConflictingEffects    = "F117" // both reject and halt configured
	ErrScoreOutOfRange       = "F118" // score delta outside [-1, +1]
	ErrEffectNotPermitted    = "F119" // effect not in the kind's permitted set
	ErrMatchNotPermitted     = "F120" // match input the kind never receives
	ErrUnitTypeMismatch      = "F121" // declared type disagrees with list
	ErrUnknownDependencyKind = "F122" // depends_on entry with bad kind
)

// ValidationError is one schema or semantic violation found at load
// time.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// permittedEffects is the per-kind effect and match-input contract. Log
// and report entries are permitted for every kind and are not listed.
type permittedEffects struct {
	score         bool
	justification bool
	reject        bool
	halt          bool
	yield         bool
	repeat        bool

	pkg   bool // may match on a package descriptor
	state bool // may match on resolved state
}

var kindEffects = map[ir.Kind]permittedEffects{
	ir.KindBoot:      {halt: true, pkg: true},
	ir.KindPseudonym: {yield: true, pkg: true},
	ir.KindSieve:     {pkg: true},
	ir.KindStep:      {score: true, justification: true, reject: true, halt: true, repeat: true, pkg: true, state: true},
	ir.KindStride:    {reject: true, halt: true, state: true},
	ir.KindWrap:      {justification: true, reject: true, halt: true, state: true},
}

// ValidateDocument validates a decoded document and every unit in it.
// Returns all errors found (does not fail-fast).
func ValidateDocument(doc *ir.Document) []ValidationError {
	var errs []ValidationError

	if doc.APIVersion != ir.APIVersion {
		errs = append(errs, ValidationError{
			Field:   "apiVersion",
			Message: fmt.Sprintf("unsupported apiVersion %q, this build accepts %q", doc.APIVersion, ir.APIVersion),
			Code:    ErrWrongAPIVersion,
		})
	}
	if doc.Kind != ir.DocumentKind {
		errs = append(errs, ValidationError{
			Field:   "kind",
			Message: fmt.Sprintf("unsupported document kind %q, expected %q", doc.Kind, ir.DocumentKind),
			Code:    ErrWrongDocumentKind,
		})
	}
	if doc.Spec.Name == "" {
		errs = append(errs, ValidationError{
			Field:   "spec.name",
			Message: "document name is required; it becomes the namespace of every declared unit",
			Code:    ErrDocumentNameEmpty,
		})
	}

	seen := make(map[ir.UnitID]bool)
	for kindIdx, units := range [][]*ir.Unit{
		doc.Spec.Units.Boots,
		doc.Spec.Units.Pseudonyms,
		doc.Spec.Units.Sieves,
		doc.Spec.Units.Steps,
		doc.Spec.Units.Strides,
		doc.Spec.Units.Wraps,
	} {
		kind := ir.Kinds[kindIdx]
		for i, u := range units {
			path := fmt.Sprintf("spec.units.%ss[%d]", kind, i)

			id := u.ID()
			if seen[id] {
				errs = append(errs, ValidationError{
					Field:   path,
					Message: fmt.Sprintf("duplicate unit identity %s", id),
					Code:    ErrDuplicateUnit,
				})
			}
			seen[id] = true

			errs = append(errs, ValidateUnit(u, path)...)
		}
	}

	return errs
}

// ValidateUnit checks one unit against the load-time rules: valid
// enumerations, parseable version ranges, the per-kind permitted-effect
// set, and the reject/halt mutual exclusion. path prefixes field names
// in the returned errors.
func ValidateUnit(u *ir.Unit, path string) []ValidationError {
	var errs []ValidationError
	fail := func(field, message, code string) {
		errs = append(errs, ValidationError{
			Field:   path + "." + field,
			Message: message,
			Code:    code,
		})
	}

	if u.Name == "" {
		fail("name", "unit name is required", ErrUnitNameEmpty)
	}
	if !u.Kind.Valid() {
		fail("kind", fmt.Sprintf("unknown unit kind %q", u.Kind), ErrUnknownUnitKind)
		return errs
	}
	allowed := kindEffects[u.Kind]

	for i, f := range u.Inclusion.Pipelines {
		if !f.Valid() {
			fail(fmt.Sprintf("should_include.pipelines[%d]", i),
				fmt.Sprintf("unknown pipeline flavor %q", f), ErrUnknownFlavor)
		}
	}
	for i, ref := range u.Inclusion.DependsOn {
		if !ref.Kind.Valid() {
			fail(fmt.Sprintf("should_include.depends_on[%d].kind", i),
				fmt.Sprintf("unknown unit kind %q", ref.Kind), ErrUnknownDependencyKind)
		}
	}

	errs = append(errs, validateMatch(u, path, allowed)...)
	errs = append(errs, validateEffects(u, path, allowed)...)

	return errs
}

func validateMatch(u *ir.Unit, path string, allowed permittedEffects) []ValidationError {
	m := u.Run.Match
	if m == nil {
		return nil
	}

	var errs []ValidationError
	fail := func(field, message, code string) {
		errs = append(errs, ValidationError{
			Field:   path + ".run.match." + field,
			Message: message,
			Code:    code,
		})
	}

	if m.Package != nil {
		if !allowed.pkg {
			fail("package", fmt.Sprintf("%s units never receive a package candidate", u.Kind), ErrMatchNotPermitted)
		}
		if u.Kind == ir.KindBoot {
			// Boots see names only; a version or index can never match.
			if m.Package.Version != "" {
				fail("package.version", "boot units match on package name only", ErrMatchNotPermitted)
			}
			if m.Package.Index != "" {
				fail("package.index", "boot units match on package name only", ErrMatchNotPermitted)
			}
		}
		if _, err := version.Parse(m.Package.Version); err != nil {
			fail("package.version", err.Error(), ErrBadVersionSpecifier)
		}
	}

	if m.State != nil {
		if !allowed.state {
			fail("state", fmt.Sprintf("%s units never receive resolved state", u.Kind), ErrMatchNotPermitted)
		}
		for i, d := range m.State.Resolved {
			if _, err := version.Parse(d.Version); err != nil {
				fail(fmt.Sprintf("state.resolved[%d].version", i), err.Error(), ErrBadVersionSpecifier)
			}
		}
	}

	return errs
}

func validateEffects(u *ir.Unit, path string, allowed permittedEffects) []ValidationError {
	var errs []ValidationError
	fail := func(field, message, code string) {
		errs = append(errs, ValidationError{
			Field:   path + ".run." + field,
			Message: message,
			Code:    code,
		})
	}
	notPermitted := func(field, effect string) {
		fail(field, fmt.Sprintf("%s units may not declare %s", u.Kind, effect), ErrEffectNotPermitted)
	}

	run := u.Run

	if run.Log != nil {
		switch run.Log.Level {
		case "debug", "info", "warning", "error":
		default:
			fail("log.level", fmt.Sprintf("unknown log level %q", run.Log.Level), ErrInvalidLogLevel)
		}
	}
	for i, entry := range run.Report {
		if !entry.Severity.Valid() {
			fail(fmt.Sprintf("report[%d].severity", i),
				fmt.Sprintf("unknown severity %q", entry.Severity), ErrUnknownSeverity)
		}
	}
	for i, entry := range run.Justification {
		if !entry.Severity.Valid() {
			fail(fmt.Sprintf("justification[%d].severity", i),
				fmt.Sprintf("unknown severity %q", entry.Severity), ErrUnknownSeverity)
		}
	}

	if run.Reject != "" && run.Halt != "" {
		fail("reject", "a unit may configure reject or halt, not both", ErrConflictingEffects)
	}

	if run.Score != 0 {
		if !allowed.score {
			notPermitted("score", "a score delta")
		}
		if run.Score < -1.0 || run.Score > 1.0 {
			fail("score", fmt.Sprintf("score delta %v outside [-1, +1]", run.Score), ErrScoreOutOfRange)
		}
	}
	if len(run.Justification) > 0 && !allowed.justification {
		notPermitted("justification", "justification entries")
	}
	if run.Reject != "" && !allowed.reject {
		notPermitted("reject", "a reject reason")
	}
	if run.Halt != "" && !allowed.halt {
		notPermitted("halt", "a halt reason")
	}
	if run.Yield != nil && !allowed.yield {
		notPermitted("yield", "a substitute package")
	}
	if run.Yield != nil && run.Yield.Package.LockedVersion != "" {
		// The exact-pin prefix is stripped at decode; what remains must
		// parse back as a single version literal.
		if _, err := version.Parse("==" + run.Yield.Package.LockedVersion); err != nil {
			fail("yield.package.locked_version", err.Error(), ErrBadVersionSpecifier)
		}
	}
	if run.RepeatOnMulti && !allowed.repeat {
		notPermitted("repeat_on_multi_match", "repeat-on-multi-match")
	}

	return errs
}
