package ir

// PackageDescriptor partially describes a package. Any omitted field is
// a wildcard; present fields must all match (conjunction). Version is a
// range specifier string, validated at load time.
type PackageDescriptor struct {
	Name    string `json:"name,omitempty" yaml:"name,omitempty"`
	Version string `json:"version,omitempty" yaml:"version,omitempty"`
	Index   string `json:"index,omitempty" yaml:"index,omitempty"`
}

// Candidate is a concrete package under consideration: a name, a locked
// version, and the index it was retrieved from.
type Candidate struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`
	Index   string `json:"index" yaml:"index"`
}

// ResolvedEntry is one dependency fixed on the current candidate path.
type ResolvedEntry struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`
	Index   string `json:"index" yaml:"index"`
}

// ResolvedState is the set of dependencies fixed so far on a candidate
// path. Order is irrelevant for matching; entries are append-only
// within a candidate's lifetime.
type ResolvedState []ResolvedEntry

// OperatingSystem names an OS and its release.
type OperatingSystem struct {
	Name    string `json:"name,omitempty" yaml:"name,omitempty"`
	Version string `json:"version,omitempty" yaml:"version,omitempty"`
}

// EnvironmentDescriptor is the host-supplied description of the runtime
// environment a resolution targets. The engine consumes it, never
// produces it.
type EnvironmentDescriptor struct {
	OperatingSystem    OperatingSystem `json:"operating_system" yaml:"operating_system"`
	CPUFamily          string          `json:"cpu_family,omitempty" yaml:"cpu_family,omitempty"`
	CPUModel           string          `json:"cpu_model,omitempty" yaml:"cpu_model,omitempty"`
	AcceleratorModels  []string        `json:"accelerator_models,omitempty" yaml:"accelerator_models,omitempty"`
	InterpreterVersion string          `json:"interpreter_version,omitempty" yaml:"interpreter_version,omitempty"`
	Platform           string          `json:"platform,omitempty" yaml:"platform,omitempty"`
	BaseImage          string          `json:"base_image,omitempty" yaml:"base_image,omitempty"`

	// Components maps optional component names (e.g. "cuda") to the
	// installed version. A component absent from the environment has no
	// entry here.
	Components map[string]string `json:"components,omitempty" yaml:"components,omitempty"`
}

// ComponentValue is one allowed value for an optional component
// dimension. Absent is the explicit "component not installed" sentinel;
// when it is false, Version is the exact version string required.
type ComponentValue struct {
	Version string
	Absent  bool
}

// HardwareConstraint is a conjunction over CPU family, CPU model, and
// accelerator-model sets. Empty sets are wildcards.
type HardwareConstraint struct {
	CPUFamilies       []string `json:"cpu_families,omitempty" yaml:"cpu_families,omitempty"`
	CPUModels         []string `json:"cpu_models,omitempty" yaml:"cpu_models,omitempty"`
	AcceleratorModels []string `json:"accelerator_models,omitempty" yaml:"accelerator_models,omitempty"`
}

// EnvironmentConstraint declares one acceptable environment. Omitted
// dimensions are unconstrained; declared dimensions must all match.
// Hardware is a disjunction over its entries.
type EnvironmentConstraint struct {
	OperatingSystem    *OperatingSystem     `json:"operating_system,omitempty" yaml:"operating_system,omitempty"`
	Hardware           []HardwareConstraint `json:"hardware,omitempty" yaml:"hardware,omitempty"`
	InterpreterVersion []string             `json:"interpreter_version,omitempty" yaml:"interpreter_version,omitempty"`
	Platform           []string             `json:"platform,omitempty" yaml:"platform,omitempty"`
	BaseImage          []string             `json:"base_image,omitempty" yaml:"base_image,omitempty"`

	// Components maps component name to allowed values. A list
	// containing the absent sentinel matches an environment lacking the
	// component entirely.
	Components map[string][]ComponentValue `json:"components,omitempty" yaml:"components,omitempty"`
}

// LibraryUsage is the host-supplied observation of which symbols of
// which libraries the resolved application actually references.
type LibraryUsage map[string][]string

// Satisfies reports whether every required symbol of every required
// library appears in the observed usage.
func (u LibraryUsage) Satisfies(required map[string][]string) bool {
	for library, symbols := range required {
		observed, ok := u[library]
		if !ok {
			return false
		}
		seen := make(map[string]bool, len(observed))
		for _, s := range observed {
			seen[s] = true
		}
		for _, s := range symbols {
			if !seen[s] {
				return false
			}
		}
	}
	return true
}
