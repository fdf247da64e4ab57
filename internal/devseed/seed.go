// Package devseed loads JSON seed files used to pre-populate the mock
// backends for offline development and the sandbox server.
package devseed

import (
	"encoding/json"
	"fmt"
	"os"
)

// RecordSeed describes one custom object record to preload.
type RecordSeed struct {
	Object     string         `json:"object"`
	ID         string         `json:"id,omitempty"`
	Name       string         `json:"name,omitempty"`
	ExternalID string         `json:"external_id,omitempty"`
	Fields     map[string]any `json:"fields,omitempty"`
}

// ObjectSeed describes a custom object definition to preload.
type ObjectSeed struct {
	Key         string      `json:"key"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Fields      []FieldSeed `json:"fields,omitempty"`
}

// FieldSeed describes one field on a seeded custom object.
type FieldSeed struct {
	Key     string   `json:"key"`
	Title   string   `json:"title,omitempty"`
	Type    string   `json:"type"`
	Choices []string `json:"choices,omitempty"`
	Pattern string   `json:"pattern,omitempty"`
	Target  string   `json:"target,omitempty"`
}

// Seed is the top-level seed file layout.
type Seed struct {
	Objects []ObjectSeed `json:"objects,omitempty"`
	Records []RecordSeed `json:"records,omitempty"`
}

// Load reads and decodes a seed file.
func Load(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("devseed: read %s: %w", path, err)
	}
	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("devseed: parse %s: %w", path, err)
	}
	for i, rec := range seed.Records {
		if rec.Object == "" {
			return nil, fmt.Errorf("devseed: record %d is missing an object key", i)
		}
	}
	return &seed, nil
}
