package ir

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// AbsentComponent is the explicit "component not installed" sentinel.
var AbsentComponent = ComponentValue{Absent: true}

// ComponentVersion wraps a concrete version as an allowed value.
func ComponentVersion(version string) ComponentValue {
	return ComponentValue{Version: version}
}

// UnmarshalYAML decodes either a version string or the null sentinel.
// In documents the sentinel is written as a literal null list element:
//
//	components:
//	  cuda: ["9.0", null]
func (v *ComponentValue) UnmarshalYAML(node *yaml.Node) error {
	if node.Tag == "!!null" {
		*v = AbsentComponent
		return nil
	}
	var version string
	if err := node.Decode(&version); err != nil {
		return fmt.Errorf("component value must be a version string or null: %w", err)
	}
	*v = ComponentValue{Version: version}
	return nil
}

// MarshalJSON renders the sentinel as null and versions as strings, the
// same shape the YAML form uses.
func (v ComponentValue) MarshalJSON() ([]byte, error) {
	if v.Absent {
		return []byte("null"), nil
	}
	return json.Marshal(v.Version)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (v *ComponentValue) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = AbsentComponent
		return nil
	}
	var version string
	if err := json.Unmarshal(data, &version); err != nil {
		return fmt.Errorf("component value must be a version string or null: %w", err)
	}
	*v = ComponentValue{Version: version}
	return nil
}
