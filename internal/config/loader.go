package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat is returned for config files that are neither YAML
// nor JSON.
var ErrUnsupportedFormat = errors.New("unsupported config file extension")

// FromFile loads a document, choosing the decoder by extension.
func FromFile(path string) (Values, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Values{}, fmt.Errorf("read config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return FromYAML(data)
	case ".json":
		return FromJSON(data)
	default:
		return Values{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// FromYAML parses YAML data.
func FromYAML(data []byte) (Values, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Values{}, fmt.Errorf("parse yaml: %w", err)
	}
	return NewValues(m), nil
}

// FromJSON parses JSON data.
func FromJSON(data []byte) (Values, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return Values{}, fmt.Errorf("parse json: %w", err)
	}
	return NewValues(m), nil
}
