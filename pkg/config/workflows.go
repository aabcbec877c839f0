// Package config loads declarative workflow definitions from YAML files.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/dukex/orderflow/pkg/models"
	"gopkg.in/yaml.v3"
)

var ErrMissingID = errors.New("seeded workflows need an id")

// WorkflowsFile is the structure of a workflows.yaml file. Each entry has the
// same shape as the JSON document accepted by the API.
type WorkflowsFile struct {
	Workflows []map[string]any `yaml:"workflows"`
}

// LoadWorkflows reads the workflow definitions of a YAML file.
func LoadWorkflows(path string) ([]*models.WorkflowDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflows file %s: %w", path, err)
	}

	return ParseWorkflows(data)
}

// ParseWorkflows decodes YAML into definitions. Entries go through the JSON
// decoder so action configs resolve to their typed form.
func ParseWorkflows(data []byte) ([]*models.WorkflowDefinition, error) {
	var file WorkflowsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML workflows: %w", err)
	}

	definitions := make([]*models.WorkflowDefinition, 0, len(file.Workflows))

	for i, entry := range file.Workflows {
		raw, err := json.Marshal(entry)
		if err != nil {
			return nil, fmt.Errorf("workflows[%d]: %w", i, err)
		}

		var definition models.WorkflowDefinition
		if err := json.Unmarshal(raw, &definition); err != nil {
			return nil, fmt.Errorf("workflows[%d]: %w", i, err)
		}

		if definition.ID == "" {
			return nil, fmt.Errorf("workflows[%d]: %w", i, ErrMissingID)
		}

		definitions = append(definitions, &definition)
	}

	return definitions, nil
}
