package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrValidation can be used with errors.Is to detect schema validation
// failures (hard reject on requirements, soft flag on results).
var ErrValidation = errors.New("validation failed")

// Validator checks negotiation payloads against per-service-type JSON
// schemas compiled at startup. Service types without a schema file are
// not validated at all; payloads stay opaque by default.
type Validator struct {
	requirementsSchemas map[string]*jsonschema.Schema
	resultSchemas       map[string]*jsonschema.Schema
}

// NewValidator loads every *.json file from schemaDir. Each file is
// named <service_type>.json and holds requirements_schema and/or
// result_schema members; a file with neither is a configuration error.
func NewValidator(schemaDir string) (*Validator, error) {
	entries, err := os.ReadDir(schemaDir)
	if err != nil {
		return nil, fmt.Errorf("read schema dir %q: %w", schemaDir, err)
	}
	requirementsSchemas := make(map[string]*jsonschema.Schema)
	resultSchemas := make(map[string]*jsonschema.Schema)

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		serviceType := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		path := filepath.Join(schemaDir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", path, err)
		}
		var file struct {
			RequirementsSchema json.RawMessage `json:"requirements_schema"`
			ResultSchema       json.RawMessage `json:"result_schema"`
		}
		if err := json.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse %q: %w", path, err)
		}
		if len(file.RequirementsSchema) == 0 && len(file.ResultSchema) == 0 {
			return nil, fmt.Errorf("%q: missing requirements_schema and result_schema", path)
		}
		if len(file.RequirementsSchema) > 0 {
			id := "https://hireloop.dev/schemas/" + serviceType + ".requirements"
			requirementsSchemas[serviceType], err = jsonschema.CompileString(id, string(file.RequirementsSchema))
			if err != nil {
				return nil, fmt.Errorf("compile requirements schema %q: %w", serviceType, err)
			}
		}
		if len(file.ResultSchema) > 0 {
			id := "https://hireloop.dev/schemas/" + serviceType + ".result"
			resultSchemas[serviceType], err = jsonschema.CompileString(id, string(file.ResultSchema))
			if err != nil {
				return nil, fmt.Errorf("compile result schema %q: %w", serviceType, err)
			}
		}
	}

	return &Validator{
		requirementsSchemas: requirementsSchemas,
		resultSchemas:       resultSchemas,
	}, nil
}

// ValidateRequirements performs a hard reject: an error means the
// proposal's requirements do not match the service type's schema.
// Service types without a requirements schema always pass.
func (v *Validator) ValidateRequirements(serviceType string, doc json.RawMessage) error {
	return validate(v.requirementsSchemas, serviceType, doc)
}

// ValidateResult performs a soft flag: callers log a mismatch rather
// than rejecting the delivery.
func (v *Validator) ValidateResult(serviceType string, doc json.RawMessage) error {
	return validate(v.resultSchemas, serviceType, doc)
}

func validate(schemas map[string]*jsonschema.Schema, serviceType string, raw json.RawMessage) error {
	schema, ok := schemas[serviceType]
	if !ok {
		return nil
	}
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}
