// Package compiler turns raw graph definitions into validated
// domain.Graph values. Parsing accepts JSON and YAML; validation checks
// the structural invariants the runtime relies on so interpretation can
// assume a well-formed graph.
package compiler

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/chatwalk/chatwalk/pkg/domain"
)

// ParseJSON decodes a graph from JSON and validates it.
func ParseJSON(data []byte) (*domain.Graph, error) {
	var g domain.Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("failed to parse graph: %w", err)
	}
	if err := Validate(&g); err != nil {
		return nil, err
	}
	return &g, nil
}

// ParseYAML decodes a graph from YAML and validates it. Used by the CLI,
// where bots are authored as YAML files.
func ParseYAML(data []byte) (*domain.Graph, error) {
	var g domain.Graph
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("failed to parse graph: %w", err)
	}
	if err := Validate(&g); err != nil {
		return nil, err
	}
	return &g, nil
}
