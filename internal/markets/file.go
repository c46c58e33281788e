package markets

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/preston-bernstein/oddsharvester/internal/domain"
)

type fileDocument struct {
	Markets []domain.MarketSpec `yaml:"markets"`
}

// LoadFile reads extra market definitions from a YAML file and layers them over base.
// Entries with an existing (sport, key) replace the base definition.
func LoadFile(path string, base *Registry) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read market file: %w", err)
	}
	return Parse(data, base)
}

// Parse decodes a YAML market document and layers it over base.
func Parse(data []byte, base *Registry) (*Registry, error) {
	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse market file: %w", err)
	}
	defs := make([]domain.MarketDefinition, 0, len(doc.Markets))
	for i, spec := range doc.Markets {
		def, err := domain.NewMarketDefinition(spec)
		if err != nil {
			return nil, fmt.Errorf("market entry %d: %w", i, err)
		}
		defs = append(defs, def)
	}
	if base == nil {
		return NewRegistry(defs...)
	}
	if len(defs) == 0 {
		return base, nil
	}
	return base.With(defs...)
}
