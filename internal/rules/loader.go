package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a Ruleset from a YAML file. Sections absent from the file fall
// back to the bundled defaults, so an override file can replace just the
// analyte bands without restating the interaction table.
func Load(path string) (*Ruleset, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from operator config, not user input
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	var loaded Ruleset
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("parse rules file %s: %w", path, err)
	}

	rs := Default()
	if len(loaded.Interactions) > 0 {
		rs.Interactions = loaded.Interactions
	}
	if len(loaded.CrossReactivity) > 0 {
		rs.CrossReactivity = loaded.CrossReactivity
	}
	if len(loaded.Analytes) > 0 {
		rs.Analytes = loaded.Analytes
	}
	if loaded.Vitals != (VitalThresholds{}) {
		rs.Vitals = loaded.Vitals
	}

	if err := rs.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rules file %s: %w", path, err)
	}
	return rs, nil
}
