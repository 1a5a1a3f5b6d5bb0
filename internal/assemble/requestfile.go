// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package assemble

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"
)

// requestFile is the on-disk representation of an assembly request, so a
// run can be replayed later with identical parameters.
type requestFile struct {
	Request Request   `yaml:"request"`
	SavedAt time.Time `yaml:"saved_at"`
}

// SaveRequest writes req to a YAML file.
func SaveRequest(path string, req Request) error {
	rf := requestFile{Request: req, SavedAt: time.Now()}
	data, err := yaml.Marshal(&rf)
	if err != nil {
		return fmt.Errorf("marshaling request file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadRequest reads a previously saved request file.
func LoadRequest(path string) (Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Request{}, fmt.Errorf("reading request file: %w", err)
	}
	var rf requestFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return Request{}, fmt.Errorf("parsing request file: %w", err)
	}
	return rf.Request, nil
}
