// Package seed holds the bootstrap registry document written the first time
// the store is loaded and no document exists yet.
package seed

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"crboard/internal/changerequest/models"
)

//go:embed data.json
var defaultDocument []byte

// Default returns the embedded bootstrap document.
func Default() []byte {
	return bytes.Clone(defaultDocument)
}

// FromFile reads a bootstrap document from path. Files ending in .yaml or .yml
// are converted to JSON; anything else is read as JSON. The result is checked
// with Validate.
func FromFile(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	doc := raw
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var tree any
		if err := yaml.Unmarshal(raw, &tree); err != nil {
			return nil, fmt.Errorf("parse seed yaml: %w", err)
		}
		doc, err = json.Marshal(tree)
		if err != nil {
			return nil, fmt.Errorf("convert seed yaml: %w", err)
		}
	}

	if err := Validate(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Validate checks that doc decodes into a registry whose bucket totals match
// their CR lists.
func Validate(doc []byte) error {
	var reg models.Registry
	if err := json.Unmarshal(doc, &reg); err != nil {
		return fmt.Errorf("decode seed document: %w", err)
	}
	if err := reg.CheckInvariants(); err != nil {
		return fmt.Errorf("seed document: %w", err)
	}
	return nil
}
