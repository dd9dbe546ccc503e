package playbook

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFromFile reads and validates a playbook YAML definition.
func LoadFromFile(path string) (*Playbook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading playbook file: %w", err)
	}

	var pb Playbook
	if err := yaml.Unmarshal(data, &pb); err != nil {
		return nil, fmt.Errorf("error parsing playbook YAML: %w", err)
	}

	if err := pb.Validate(); err != nil {
		return nil, fmt.Errorf("invalid playbook %q: %w", path, err)
	}

	return &pb, nil
}
