package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// seedFile is the on-disk shape of a catalog seed.
type seedFile struct {
	Plans        []Plan        `yaml:"plans"`
	Applications []Application `yaml:"applications"`
}

// LoadSeedFile reads plans and applications from a YAML file into a
// MemoryStore. Used to bootstrap local development and the planfix CLI
// without a live database.
func LoadSeedFile(path string) (*MemoryStore, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog seed %s: %w", path, err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse catalog seed %s: %w", path, err)
	}

	for _, p := range seed.Plans {
		if p.ID == "" {
			return nil, fmt.Errorf("catalog seed %s: plan with empty id", path)
		}
		if p.IsBillable() {
			if err := p.Price.Validate(); err != nil {
				return nil, fmt.Errorf("catalog seed %s: plan %s: %w", path, p.ID, err)
			}
		}
	}
	for _, a := range seed.Applications {
		if a.ID == "" {
			return nil, fmt.Errorf("catalog seed %s: application with empty id", path)
		}
	}

	return NewMemoryStore(seed.Plans, seed.Applications), nil
}
