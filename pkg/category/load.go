// pkg/category/load.go
package category

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed category_maps.json
var defaultMaps []byte

// rawMaps mirrors the category map file layout
type rawMaps struct {
	Ethnicity   map[string]string `json:"ethnicity" yaml:"ethnicity"`
	Sex         map[string]string `json:"sex" yaml:"sex"`
	TestResults map[string]string `json:"test_results" yaml:"test_results"`
}

// Default returns the maps embedded in the package
func Default() (*Maps, error) {
	return Parse(defaultMaps, "json")
}

// Load reads category maps from a JSON or YAML file; an empty path loads the
// embedded defaults
func Load(path string) (*Maps, error) {
	if path == "" {
		return Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read category maps: %w", err)
	}

	format := "json"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = "yaml"
	}

	maps, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("failed to load category maps from %s: %w", path, err)
	}
	return maps, nil
}

// Parse decodes category maps in the given format ("json" or "yaml")
func Parse(data []byte, format string) (*Maps, error) {
	var raw rawMaps

	switch format {
	case "json":
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
	case "yaml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("invalid YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported category map format: %s", format)
	}

	if len(raw.Ethnicity) == 0 {
		return nil, errors.New("ethnicity map is required")
	}
	if len(raw.Sex) == 0 {
		return nil, errors.New("sex map is required")
	}
	if len(raw.TestResults) == 0 {
		return nil, errors.New("test_results map is required")
	}

	return &Maps{
		Ethnicity: NewMap("ethnicity", raw.Ethnicity, Unknown),
		Sex:       NewMap("sex", raw.Sex, Unknown),
		// Unmapped results stay missing, so there is no fallback
		TestResults: NewMap("test_results", raw.TestResults, ""),
	}, nil
}
