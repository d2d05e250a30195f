package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Render returns the effective configuration as YAML under the responder root key.
func (cfg *GlobalConfig) Render() ([]byte, error) {
	out, err := yaml.Marshal(map[string]*GlobalConfig{"responder": cfg})
	if err != nil {
		return nil, fmt.Errorf("failed to render config: %w", err)
	}
	return out, nil
}
