package scenarios

import (
	"embed"
	"fmt"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed testdata/*.yaml
var fixtures embed.FS

// Load reads every fixture under testdata/, grounded on barn/conformance's
// LoadAllTests directory walk but over an embedded filesystem so the
// binary built from cmd/eoplevm never depends on a working directory
// relative to the source tree.
func Load() ([]Scenario, error) {
	entries, err := fixtures.ReadDir("testdata")
	if err != nil {
		return nil, fmt.Errorf("scenarios: reading testdata: %w", err)
	}

	var out []Scenario
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}
		data, err := fixtures.ReadFile(filepath.Join("testdata", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("scenarios: reading %s: %w", entry.Name(), err)
		}
		var s Scenario
		if err := yaml.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("scenarios: parsing %s: %w", entry.Name(), err)
		}
		out = append(out, s)
	}
	return out, nil
}
