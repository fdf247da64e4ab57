package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// UnmarshalYAML accepts either a plain label scalar, slugged into its stored
// value, or an explicit {value, label} mapping.
func (c *Choice) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var label string
		if err := node.Decode(&label); err != nil {
			return err
		}
		c.Label = label
		c.Value = SlugValue(label)
		return nil
	}
	var raw struct {
		Value string `yaml:"value"`
		Label string `yaml:"label"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	c.Value = raw.Value
	c.Label = raw.Label
	if c.Value == "" {
		c.Value = SlugValue(c.Label)
	}
	return nil
}

// ParseDefinition decodes a YAML custom object definition.
func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadDefinition, err)
	}
	if err := def.finish(); err != nil {
		return nil, err
	}
	return &def, nil
}

// LoadDefinition reads a YAML custom object definition from a file.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema: read %s: %w", path, err)
	}
	def, err := ParseDefinition(data)
	if err != nil {
		return nil, fmt.Errorf("schema: parse %s: %w", path, err)
	}
	return def, nil
}
