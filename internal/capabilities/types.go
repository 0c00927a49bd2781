package capabilities

import "gopkg.in/yaml.v3"

// ModelCapabilities describes one completion model a provider offers
type ModelCapabilities struct {
	// Model identifier (set during YAML unmarshaling)
	ID string `yaml:"-" json:"id"`

	// Display information
	DisplayName string `yaml:"display_name" json:"display_name"`
	Description string `yaml:"description" json:"description"`

	// Limits
	ContextWindow int `yaml:"context_window" json:"context_window"`
	MaxOutput     int `yaml:"max_output" json:"max_output"`

	// DefaultMaxTokens caps replies when COMPLETION_MAX_TOKENS is unset
	DefaultMaxTokens int `yaml:"default_max_tokens" json:"default_max_tokens"`
}

// ProviderCapabilities represents all models for a provider
type ProviderCapabilities struct {
	Provider string              `yaml:"provider" json:"provider"`
	Models   []ModelCapabilities `yaml:"-" json:"models"` // Ordered slice, populated by custom unmarshaler
}

// UnmarshalYAML implements custom YAML unmarshaling to preserve model order from YAML file
func (p *ProviderCapabilities) UnmarshalYAML(node *yaml.Node) error {
	type modelsOnly struct {
		Provider string                       `yaml:"provider"`
		Models   map[string]ModelCapabilities `yaml:"models"`
	}
	var m modelsOnly
	if err := node.Decode(&m); err != nil {
		return err
	}
	p.Provider = m.Provider

	// Map keys lose their order; walk the node to restore it
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value != "models" {
			continue
		}
		modelsNode := node.Content[i+1]
		// modelsNode.Content alternates: key, value, key, value...
		for j := 0; j+1 < len(modelsNode.Content); j += 2 {
			modelID := modelsNode.Content[j].Value
			if model, ok := m.Models[modelID]; ok {
				model.ID = modelID
				p.Models = append(p.Models, model)
			}
		}
		break
	}

	return nil
}
