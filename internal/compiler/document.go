// Package compiler loads prescription documents: YAML parsing, schema
// validation against an embedded CUE schema, and the load-time checks
// that keep malformed units out of the engine entirely.
package compiler

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"
	"gopkg.in/yaml.v3"

	"github.com/formulary-sh/formulary/internal/ir"
)

//go:embed schema.cue
var schemaSource string

// LoadError aggregates every validation error found in one document.
// Loading is all-or-nothing per document: a single error rejects the
// whole document before any run starts.
type LoadError struct {
	Name   string
	Errors []ValidationError
}

func (e *LoadError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, v := range e.Errors {
		msgs[i] = v.Error()
	}
	return fmt.Sprintf("%s: %s", e.Name, strings.Join(msgs, "; "))
}

// IsLoadError unwraps err as a *LoadError if possible.
func IsLoadError(err error) (*LoadError, bool) {
	var le *LoadError
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}

// Load reads and decodes one document file.
func Load(path string) (*ir.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(path, data)
}

// LoadDir decodes every .yaml/.yml file under dir, in lexical path
// order so namespaced unit order is stable across runs. All documents
// must load cleanly; errors from every bad document are joined.
func LoadDir(dir string) ([]*ir.Document, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch filepath.Ext(path) {
		case ".yaml", ".yml":
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var (
		docs []*ir.Document
		errs []error
	)
	for _, path := range paths {
		doc, err := Load(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		docs = append(docs, doc)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return docs, nil
}

// Decode parses and validates one prescription document. name labels
// errors, typically the source file path.
func Decode(name string, data []byte) (*ir.Document, error) {
	if errs := validateSchema(name, data); len(errs) > 0 {
		return nil, &LoadError{Name: name, Errors: errs}
	}

	var raw rawDocument
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &LoadError{Name: name, Errors: []ValidationError{{
			Field:   "document",
			Message: err.Error(),
			Code:    ErrMalformedDocument,
		}}}
	}

	doc, errs := raw.build()
	errs = append(errs, ValidateDocument(doc)...)
	if len(errs) > 0 {
		return nil, &LoadError{Name: name, Errors: errs}
	}
	return doc, nil
}

// validateSchema unifies the YAML document with the embedded CUE schema
// and demands a concrete result. Closed definitions make unknown fields
// an error rather than silently dropped input.
func validateSchema(name string, data []byte) []ValidationError {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		panic(fmt.Sprintf("compiler: embedded schema does not compile: %v", err))
	}
	docSchema := schema.LookupPath(cue.ParsePath("#Document"))

	file, err := cueyaml.Extract(name, data)
	if err != nil {
		return []ValidationError{{
			Field:   "document",
			Message: err.Error(),
			Code:    ErrMalformedDocument,
		}}
	}

	doc := ctx.BuildFile(file)
	if err := doc.Err(); err != nil {
		return cueValidationErrors(err)
	}

	unified := docSchema.Unify(doc)
	if err := unified.Validate(cue.Concrete(true), cue.Final()); err != nil {
		return cueValidationErrors(err)
	}
	return nil
}

// cueValidationErrors flattens a CUE error list into schema-violation
// records with source positions where CUE provides them.
func cueValidationErrors(err error) []ValidationError {
	var out []ValidationError
	for _, e := range cueerrors.Errors(err) {
		v := ValidationError{
			Field:   strings.Join(e.Path(), "."),
			Message: e.Error(),
			Code:    ErrSchemaViolation,
		}
		if pos := e.Position(); pos.IsValid() {
			v.Line = pos.Line()
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		out = append(out, ValidationError{
			Field:   "document",
			Message: err.Error(),
			Code:    ErrSchemaViolation,
		})
	}
	return out
}

// rawDocument mirrors the on-disk document shape. Unit records carry an
// optional "type" field that, when present, must agree with the list
// the unit is declared under.
type rawDocument struct {
	APIVersion string  `yaml:"apiVersion"`
	Kind       string  `yaml:"kind"`
	Spec       rawSpec `yaml:"spec"`
}

type rawSpec struct {
	Name    string   `yaml:"name"`
	Release int      `yaml:"release"`
	Units   rawUnits `yaml:"units"`
}

type rawUnits struct {
	Boots      []rawUnit `yaml:"boots"`
	Pseudonyms []rawUnit `yaml:"pseudonyms"`
	Sieves     []rawUnit `yaml:"sieves"`
	Steps      []rawUnit `yaml:"steps"`
	Strides    []rawUnit `yaml:"strides"`
	Wraps      []rawUnit `yaml:"wraps"`
}

type rawUnit struct {
	Name      string       `yaml:"name"`
	Type      string       `yaml:"type"`
	Inclusion rawInclusion `yaml:"should_include"`
	Run       ir.RunSpec   `yaml:"run"`
}

// rawInclusion mirrors ir.InclusionSpec with a nullable repetition cap:
// an omitted times defaults to 1, while an explicit 0 still means
// "never include".
type rawInclusion struct {
	Times           *int                       `yaml:"times"`
	Pipelines       []ir.Flavor                `yaml:"pipelines"`
	Classifications []string                   `yaml:"classifications"`
	LibraryUsage    map[string][]string        `yaml:"library_usage"`
	Environments    []ir.EnvironmentConstraint `yaml:"environments"`
	DependsOn       []ir.UnitRef               `yaml:"depends_on"`
}

func (r rawInclusion) build() ir.InclusionSpec {
	times := 1
	if r.Times != nil {
		times = *r.Times
	}
	return ir.InclusionSpec{
		Times:           times,
		Pipelines:       r.Pipelines,
		Classifications: r.Classifications,
		LibraryUsage:    r.LibraryUsage,
		Environments:    r.Environments,
		DependsOn:       r.DependsOn,
	}
}

// build stamps document identity onto every declared unit: the document
// name becomes the namespace, the declaring list fixes the kind. Yield
// locked versions are normalized by stripping an exact-pin prefix so
// the engine yields plain version strings.
func (r *rawDocument) build() (*ir.Document, []ValidationError) {
	doc := &ir.Document{
		APIVersion: r.APIVersion,
		Kind:       r.Kind,
		Spec: ir.DocumentSpec{
			Name:    r.Spec.Name,
			Release: r.Spec.Release,
		},
	}

	var errs []ValidationError
	stamp := func(kind ir.Kind, raws []rawUnit) []*ir.Unit {
		if len(raws) == 0 {
			return nil
		}
		units := make([]*ir.Unit, 0, len(raws))
		for i, raw := range raws {
			if raw.Type != "" && raw.Type != string(kind) {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("spec.units.%ss[%d].type", kind, i),
					Message: fmt.Sprintf("unit %q declares type %q under the %ss list", raw.Name, raw.Type, kind),
					Code:    ErrUnitTypeMismatch,
				})
			}
			u := ir.Unit{
				Namespace: r.Spec.Name,
				Name:      raw.Name,
				Kind:      kind,
				Inclusion: raw.Inclusion.build(),
				Run:       raw.Run,
			}
			if u.Run.Yield != nil {
				y := *u.Run.Yield
				y.Package.LockedVersion = strings.TrimPrefix(y.Package.LockedVersion, "==")
				u.Run.Yield = &y
			}
			units = append(units, &u)
		}
		return units
	}

	doc.Spec.Units.Boots = stamp(ir.KindBoot, r.Spec.Units.Boots)
	doc.Spec.Units.Pseudonyms = stamp(ir.KindPseudonym, r.Spec.Units.Pseudonyms)
	doc.Spec.Units.Sieves = stamp(ir.KindSieve, r.Spec.Units.Sieves)
	doc.Spec.Units.Steps = stamp(ir.KindStep, r.Spec.Units.Steps)
	doc.Spec.Units.Strides = stamp(ir.KindStride, r.Spec.Units.Strides)
	doc.Spec.Units.Wraps = stamp(ir.KindWrap, r.Spec.Units.Wraps)

	return doc, errs
}
