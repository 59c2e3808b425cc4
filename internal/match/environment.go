package match

import "github.com/formulary-sh/formulary/internal/ir"

// Environment tests a concrete runtime-environment descriptor against a
// list of declared constraints. The list is a disjunction: the
// environment passes when at least one constraint matches. An empty or
// nil list is unconstrained.
func Environment(env ir.EnvironmentDescriptor, constraints []ir.EnvironmentConstraint) bool {
	if len(constraints) == 0 {
		return true
	}
	for i := range constraints {
		if environmentConstraint(env, &constraints[i]) {
			return true
		}
	}
	return false
}

// environmentConstraint is a conjunction across all declared dimensions
// of a single constraint. Omitted dimensions are unconstrained.
func environmentConstraint(env ir.EnvironmentDescriptor, c *ir.EnvironmentConstraint) bool {
	if c.OperatingSystem != nil {
		if c.OperatingSystem.Name != "" && c.OperatingSystem.Name != env.OperatingSystem.Name {
			return false
		}
		if c.OperatingSystem.Version != "" && c.OperatingSystem.Version != env.OperatingSystem.Version {
			return false
		}
	}

	if len(c.Hardware) > 0 && !hardware(env, c.Hardware) {
		return false
	}

	if len(c.InterpreterVersion) > 0 && !contains(c.InterpreterVersion, env.InterpreterVersion) {
		return false
	}
	if len(c.Platform) > 0 && !contains(c.Platform, env.Platform) {
		return false
	}
	if len(c.BaseImage) > 0 && !contains(c.BaseImage, env.BaseImage) {
		return false
	}

	for component, allowed := range c.Components {
		if !componentAllowed(env.Components, component, allowed) {
			return false
		}
	}

	return true
}

// hardware is a disjunction over hardware-combination entries, each a
// conjunction over CPU family, CPU model, and accelerator-model sets.
func hardware(env ir.EnvironmentDescriptor, combos []ir.HardwareConstraint) bool {
	for i := range combos {
		if hardwareCombo(env, &combos[i]) {
			return true
		}
	}
	return false
}

func hardwareCombo(env ir.EnvironmentDescriptor, combo *ir.HardwareConstraint) bool {
	if len(combo.CPUFamilies) > 0 && !contains(combo.CPUFamilies, env.CPUFamily) {
		return false
	}
	if len(combo.CPUModels) > 0 && !contains(combo.CPUModels, env.CPUModel) {
		return false
	}
	if len(combo.AcceleratorModels) > 0 && !intersects(combo.AcceleratorModels, env.AcceleratorModels) {
		return false
	}
	return true
}

// componentAllowed checks one optional-component dimension. The absent
// sentinel in the allowed list matches an environment lacking the
// component entirely; a version value requires that exact version to be
// installed.
func componentAllowed(installed map[string]string, component string, allowed []ir.ComponentValue) bool {
	current, present := installed[component]
	for _, value := range allowed {
		if value.Absent {
			if !present {
				return true
			}
			continue
		}
		if present && value.Version == current {
			return true
		}
	}
	return false
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func intersects(values, others []string) bool {
	for _, v := range others {
		if contains(values, v) {
			return true
		}
	}
	return false
}
