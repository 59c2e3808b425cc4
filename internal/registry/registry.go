// Package registry namespaces units by (document name, unit name,
// kind) and resolves cross-document references, including references to
// host-builtin units supplied outside any document.
package registry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/formulary-sh/formulary/internal/ir"
)

// BuiltinNamespace is the reserved namespace for host-builtin units.
// Bare (unqualified) references resolve here.
const BuiltinNamespace = "builtin"

// DuplicateUnitError is returned when a second unit with the same
// (namespace, name, kind) identity is registered.
type DuplicateUnitError struct {
	ID ir.UnitID
}

func (e *DuplicateUnitError) Error() string {
	return fmt.Sprintf("duplicate unit %s", e.ID)
}

// IsDuplicateUnit reports whether err is a DuplicateUnitError. Uses
// errors.As to handle wrapped errors.
func IsDuplicateUnit(err error) bool {
	var de *DuplicateUnitError
	return errors.As(err, &de)
}

// Registry is a two-level unit index keyed first by namespace, then by
// (name, kind). Read-only after loading; safe for concurrent reads.
type Registry struct {
	units map[string]map[nameKind]*ir.Unit
}

type nameKind struct {
	name string
	kind ir.Kind
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{units: make(map[string]map[nameKind]*ir.Unit)}
}

// Register adds a unit under its own namespace. Registering a second
// unit with the same identity fails with DuplicateUnitError.
func (r *Registry) Register(u *ir.Unit) error {
	ns := r.units[u.Namespace]
	if ns == nil {
		ns = make(map[nameKind]*ir.Unit)
		r.units[u.Namespace] = ns
	}

	key := nameKind{name: u.Name, kind: u.Kind}
	if _, exists := ns[key]; exists {
		return &DuplicateUnitError{ID: u.ID()}
	}
	ns[key] = u
	return nil
}

// RegisterBuiltin adds a host-builtin unit. The unit's namespace is
// forced to the builtin namespace. Builtins are activated by their
// local inclusion criteria alone, so declaring depends_on on one is
// rejected rather than silently ignored.
func (r *Registry) RegisterBuiltin(u *ir.Unit) error {
	if len(u.Inclusion.DependsOn) > 0 {
		return fmt.Errorf("builtin unit %s.%s/%s: builtins may not declare depends_on",
			BuiltinNamespace, u.Name, u.Kind)
	}
	if u.Namespace != BuiltinNamespace {
		clone := *u
		clone.Namespace = BuiltinNamespace
		u = &clone
	}
	return r.Register(u)
}

// RegisterDocument registers every unit of a document in declaration
// order, stopping at the first duplicate.
func (r *Registry) RegisterDocument(doc *ir.Document) error {
	for _, u := range doc.All() {
		if err := r.Register(u); err != nil {
			return fmt.Errorf("document %q: %w", doc.Spec.Name, err)
		}
	}
	return nil
}

// Resolve looks up a unit reference of the given kind. A qualified
// "namespace.name" reference resolves only within that namespace; a
// bare name resolves against host-builtin units. Returns nil when the
// reference does not resolve; dependency evaluation treats unresolved
// references as inactive units, so not-found is a value, not an error.
func (r *Registry) Resolve(ref ir.UnitRef) *ir.Unit {
	namespace := BuiltinNamespace
	name := ref.Name
	if i := strings.LastIndex(ref.Name, "."); i >= 0 {
		namespace = ref.Name[:i]
		name = ref.Name[i+1:]
	}

	ns := r.units[namespace]
	if ns == nil {
		return nil
	}
	return ns[nameKind{name: name, kind: ref.Kind}]
}

// Len returns the number of registered units across all namespaces.
func (r *Registry) Len() int {
	n := 0
	for _, ns := range r.units {
		n += len(ns)
	}
	return n
}
