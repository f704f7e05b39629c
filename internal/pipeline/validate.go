package pipeline

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonschema"
)

//go:embed schema/job_request.json
var jobRequestSchemaJSON []byte

// RequestValidator checks inbound orchestrate payloads against the job
// request schema before any work happens. A payload that fails here is
// permanently malformed and is never retried.
type RequestValidator struct {
	schema *jsonschema.Schema
}

// NewRequestValidator compiles the embedded job-request schema.
func NewRequestValidator() (*RequestValidator, error) {
	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile(jobRequestSchemaJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to compile job request schema: %w", err)
	}
	return &RequestValidator{schema: schema}, nil
}

// Validate checks a raw orchestrate payload. Returns a descriptive
// error listing every violated constraint.
func (v *RequestValidator) Validate(payload []byte) error {
	var doc map[string]interface{}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return fmt.Errorf("payload is not a JSON object: %w", err)
	}

	result := v.schema.Validate(doc)
	if !result.IsValid() {
		var errorMessages []string
		for field, evalErr := range result.Errors {
			errorMessages = append(errorMessages, fmt.Sprintf("%s: %s", field, evalErr.Error()))
		}
		return fmt.Errorf("job request validation failed: %s", strings.Join(errorMessages, "; "))
	}

	return nil
}
