package workflow

import (
	"encoding/json"
	"fmt"
	"sync"

	ischema "github.com/invopop/jsonschema"
	"github.com/kaptinlin/jsonschema"
)

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

// definitionSchema reflects Definition into a draft 2020-12 JSON Schema
// (invopop/jsonschema) and compiles it (kaptinlin/jsonschema) once, ahead
// of the hand-rolled business-rule checks in Validate.
func definitionSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		reflector := &ischema.Reflector{
			RequiredFromJSONSchemaTags: false,
			DoNotReference:             true,
			ExpandedStruct:              true,
		}
		raw := reflector.Reflect(&Definition{})
		schemaJSON, err := json.Marshal(raw)
		if err != nil {
			schemaErr = fmt.Errorf("workflow: failed to marshal reflected schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		compiledSchema, schemaErr = compiler.Compile(schemaJSON)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("workflow: failed to compile schema: %w", schemaErr)
		}
	})
	return compiledSchema, schemaErr
}

// SchemaValidate checks def's JSON shape against Definition's reflected
// schema -- wrong field types, out-of-enum values -- ahead of (and
// independent from) Validate's hand-rolled business rules.
func SchemaValidate(def *Definition) (ValidationResult, error) {
	schema, err := definitionSchema()
	if err != nil {
		return ValidationResult{}, err
	}
	body, err := json.Marshal(def)
	if err != nil {
		return ValidationResult{}, fmt.Errorf("workflow: failed to marshal definition: %w", err)
	}
	var instance any
	if err := json.Unmarshal(body, &instance); err != nil {
		return ValidationResult{}, fmt.Errorf("workflow: failed to decode definition for schema check: %w", err)
	}

	result := schema.Validate(instance)
	var res ValidationResult
	if !result.IsValid() {
		res.Errors = flattenSchemaErrors(result.ToList(), "$")
	}
	return res, nil
}

// flattenSchemaErrors walks kaptinlin/jsonschema's nested EvaluationResult
// tree into flat {path, message, code} triples, matching ValidationIssue.
func flattenSchemaErrors(list *jsonschema.EvaluationResult, path string) []ValidationIssue {
	if list == nil {
		return nil
	}
	var issues []ValidationIssue
	for keyword, message := range list.Errors {
		issues = append(issues, ValidationIssue{Path: path, Message: message, Code: "schema_" + keyword})
	}
	for _, detail := range list.Details {
		loc := path
		if detail.InstanceLocation != "" {
			loc = "$" + detail.InstanceLocation
		}
		issues = append(issues, flattenSchemaErrors(detail, loc)...)
	}
	return issues
}
