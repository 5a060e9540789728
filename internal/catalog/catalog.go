// Package catalog embeds the vegetation index definitions the service knows about.
package catalog

import (
	_ "embed"
	"fmt"
	"strings"

	"monitoring-service/internal/models"

	"gopkg.in/yaml.v3"
)

//go:embed indices.yaml
var indicesYAML []byte

type document struct {
	Indices []models.VegetationIndexDefinition `yaml:"indices"`
}

// Indices parses the embedded catalog. Codes are upper-cased and must be unique.
func Indices() ([]models.VegetationIndexDefinition, error) {
	return parse(indicesYAML)
}

func parse(data []byte) ([]models.VegetationIndexDefinition, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse index catalog: %w", err)
	}

	seen := make(map[string]bool, len(doc.Indices))
	for i := range doc.Indices {
		code := strings.ToUpper(strings.TrimSpace(doc.Indices[i].Code))
		if code == "" {
			return nil, fmt.Errorf("index catalog entry %d has no code", i)
		}
		if seen[code] {
			return nil, fmt.Errorf("index catalog has duplicate code %s", code)
		}
		seen[code] = true
		doc.Indices[i].Code = code
	}
	return doc.Indices, nil
}
