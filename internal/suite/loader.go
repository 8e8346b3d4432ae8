package suite

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	catalogAPIVersion = "pushprobe/v1"
	catalogKind       = "SuiteCatalog"
)

// Catalog is a YAML file of custom suite definitions:
//
//	apiVersion: pushprobe/v1
//	kind: SuiteCatalog
//	suites:
//	  - name: smoke
//	    steps: [backendHealth, websocket]
type Catalog struct {
	APIVersion string       `yaml:"apiVersion"`
	Kind       string       `yaml:"kind"`
	Suites     []Definition `yaml:"suites"`
}

// LoadCatalog reads and validates a suite catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	clean := filepath.Clean(path)
	// #nosec G304 -- path comes from user configuration
	data, err := os.ReadFile(clean)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite catalog %s: %w", clean, err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates catalog YAML.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse suite catalog: %w", err)
	}
	if c.APIVersion == "" {
		c.APIVersion = catalogAPIVersion
	}
	if c.Kind == "" {
		c.Kind = catalogKind
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("invalid suite catalog: %w", err)
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	if c.APIVersion != catalogAPIVersion {
		return fmt.Errorf("unsupported apiVersion %q", c.APIVersion)
	}
	if c.Kind != catalogKind {
		return fmt.Errorf("unsupported kind %q", c.Kind)
	}
	if len(c.Suites) == 0 {
		return fmt.Errorf("no suites defined")
	}
	names := make(map[string]bool, len(c.Suites))
	for i, d := range c.Suites {
		if err := d.Validate(); err != nil {
			return fmt.Errorf("suite %d: %w", i, err)
		}
		if names[d.Name] {
			return fmt.Errorf("duplicate suite name: %s", d.Name)
		}
		names[d.Name] = true
	}
	return nil
}
