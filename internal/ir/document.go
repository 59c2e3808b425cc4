package ir

// DocumentKind is the only document kind the engine understands.
const DocumentKind = "prescription"

// APIVersion is the document schema revision this build accepts.
const APIVersion = "formulary.dev/v1"

// Document is a parsed prescription document. The document name becomes
// the namespace of every unit it declares.
type Document struct {
	APIVersion string       `json:"apiVersion" yaml:"apiVersion"`
	Kind       string       `json:"kind" yaml:"kind"`
	Spec       DocumentSpec `json:"spec" yaml:"spec"`
}

// DocumentSpec carries the document's identity and its declared units.
type DocumentSpec struct {
	Name    string    `json:"name" yaml:"name"`
	Release int       `json:"release" yaml:"release"`
	Units   UnitLists `json:"units" yaml:"units"`
}

// UnitLists groups declared units by kind, preserving declaration order
// within each list.
type UnitLists struct {
	Boots      []*Unit `json:"boots,omitempty" yaml:"boots,omitempty"`
	Pseudonyms []*Unit `json:"pseudonyms,omitempty" yaml:"pseudonyms,omitempty"`
	Sieves     []*Unit `json:"sieves,omitempty" yaml:"sieves,omitempty"`
	Steps      []*Unit `json:"steps,omitempty" yaml:"steps,omitempty"`
	Strides    []*Unit `json:"strides,omitempty" yaml:"strides,omitempty"`
	Wraps      []*Unit `json:"wraps,omitempty" yaml:"wraps,omitempty"`
}

// All returns every declared unit in pipeline order (boots first, wraps
// last), preserving declaration order within each kind. This is the
// canonical iteration order used for deterministic tie-breaking.
func (d *Document) All() []*Unit {
	lists := [][]*Unit{
		d.Spec.Units.Boots,
		d.Spec.Units.Pseudonyms,
		d.Spec.Units.Sieves,
		d.Spec.Units.Steps,
		d.Spec.Units.Strides,
		d.Spec.Units.Wraps,
	}
	var all []*Unit
	for _, list := range lists {
		all = append(all, list...)
	}
	return all
}
