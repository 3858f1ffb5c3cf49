package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed schema/indexgate-config.schema.yaml
var schemaYAML []byte

var (
	compiledOnce   sync.Once
	compiledSchema *gojsonschema.Schema
	compileErr     error
)

// ValidationError is a single schema violation.
type ValidationError struct {
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

func (e ValidationError) String() string {
	return e.Path + ": " + e.Message
}

// loadSchema converts the embedded YAML schema to JSON for gojsonschema.
func loadSchema() (*gojsonschema.Schema, error) {
	compiledOnce.Do(func() {
		var schemaData interface{}
		if err := yaml.Unmarshal(schemaYAML, &schemaData); err != nil {
			compileErr = fmt.Errorf("parse config schema: %w", err)
			return
		}
		jsonBytes, err := json.Marshal(schemaData)
		if err != nil {
			compileErr = fmt.Errorf("convert config schema: %w", err)
			return
		}
		compiledSchema, compileErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(jsonBytes))
	})
	return compiledSchema, compileErr
}

// ValidateConfig validates raw YAML config bytes against the embedded
// schema. An empty document is valid.
func ValidateConfig(configData []byte) error {
	var doc interface{}
	if err := yaml.Unmarshal(configData, &doc); err != nil {
		return fmt.Errorf("config is not valid YAML: %w", err)
	}
	if doc == nil {
		doc = map[string]interface{}{}
	}

	errs, err := validateDocument(doc)
	if err != nil {
		return err
	}
	if len(errs) == 0 {
		return nil
	}
	lines := make([]string, 0, len(errs))
	for _, e := range errs {
		lines = append(lines, e.String())
	}
	return fmt.Errorf("configuration validation failed:\n%s", strings.Join(lines, "\n"))
}

func validateDocument(doc interface{}) ([]ValidationError, error) {
	schema, err := loadSchema()
	if err != nil {
		return nil, err
	}
	// Round-trip through JSON so YAML-only types (timestamps, non-string
	// keys) surface as errors rather than loader panics.
	jsonBytes, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("config cannot be represented as JSON: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(jsonBytes))
	if err != nil {
		return nil, fmt.Errorf("schema validation error: %w", err)
	}

	var errs []ValidationError
	for _, verr := range result.Errors() {
		field := verr.Field()
		if field == "" || field == "(root)" {
			field = "root"
		}
		errs = append(errs, ValidationError{Path: field, Message: verr.Description()})
	}
	return errs, nil
}
