package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jonathan/b2b-migrator/internal/target"
	"github.com/jonathan/b2b-migrator/internal/types"
)

// LoadRoutes reads a YAML file mapping artifact types to target creation
// endpoints and overlays it on the default routes. Types absent from the file
// keep their defaults, so a routes file only needs the overrides.
//
//	trading_partner: /api/v2/partners
//	certificate: /api/v2/certs
func LoadRoutes(path string) (target.Routes, error) {
	routes := target.DefaultRoutes()
	if path == "" {
		return routes, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read routes file %s: %w", path, err)
	}

	var overrides map[string]string
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("failed to parse routes YAML: %w", err)
	}

	for name, endpoint := range overrides {
		artifactType, err := types.ParseArtifactType(name)
		if err != nil {
			return nil, fmt.Errorf("routes file: %w", err)
		}
		if endpoint == "" {
			return nil, fmt.Errorf("routes file: empty endpoint for %s", name)
		}
		routes[artifactType] = endpoint
	}
	return routes, nil
}
