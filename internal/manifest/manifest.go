// Package manifest reconciles a module's declared permission list against
// the stored catalog. A manifest is an authoritative re-declaration: every
// sync fully replaces the module's permission footprint.
package manifest

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Descriptor declares a single permission inside a module manifest. Only
// the name is mandatory; other fields default on apply.
type Descriptor struct {
	Name        string            `yaml:"name" validate:"required"`
	DisplayName string            `yaml:"display_name"`
	Description string            `yaml:"description"`
	Guard       string            `yaml:"guard"`
	Order       int               `yaml:"order"`
	Metadata    map[string]string `yaml:"metadata"`
}

// Manifest is the externally supplied permission declaration for a module.
// File format and location are the caller's concern; this package only
// requires the fields below.
type Manifest struct {
	Module      string       `yaml:"module" validate:"required"`
	Permissions []Descriptor `yaml:"permissions" validate:"dive"`
}

var validate = validator.New()

// Load reads and validates a YAML manifest from disk.
func Load(path string) (Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("manifest: read %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes and validates manifest bytes.
func Parse(raw []byte) (Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return Manifest{}, fmt.Errorf("manifest: decode: %w", err)
	}
	if err := validate.Struct(m); err != nil {
		return Manifest{}, fmt.Errorf("manifest: invalid: %w", err)
	}
	return m, nil
}
