package validation

import (
	"fmt"
	"sort"

	"opas-admin-workers/pkg/registry"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Messages flattens the result into "field: message" strings.
func (r *ValidationResult) Messages() []string {
	out := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		out = append(out, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return out
}

// Validator checks job variables against the input schemas of the activity
// registry, and job results against the output schemas. Task types without a
// schema are accepted as is.
type Validator struct {
	schemas map[string]*gojsonschema.Schema
	outputs map[string]*gojsonschema.Schema
}

func NewValidator(reg *registry.ActivityRegistry) (*Validator, error) {
	v := &Validator{
		schemas: make(map[string]*gojsonschema.Schema),
		outputs: make(map[string]*gojsonschema.Schema),
	}
	if reg == nil {
		return v, nil
	}
	for _, a := range reg.Activities {
		if a.TaskType == "" {
			continue
		}
		if len(a.InputSchema) > 0 {
			schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(a.InputSchema))
			if err != nil {
				return nil, fmt.Errorf("compile input schema for %s: %w", a.TaskType, err)
			}
			v.schemas[a.TaskType] = schema
		}
		if len(a.OutputSchema) > 0 {
			schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(a.OutputSchema))
			if err != nil {
				return nil, fmt.Errorf("compile output schema for %s: %w", a.TaskType, err)
			}
			v.outputs[a.TaskType] = schema
		}
	}
	return v, nil
}

// HasSchema reports whether taskType has a registered input schema.
func (v *Validator) HasSchema(taskType string) bool {
	_, ok := v.schemas[taskType]
	return ok
}

// ValidateJSON validates a raw JSON document, as delivered in job variables.
func (v *Validator) ValidateJSON(taskType, document string) *ValidationResult {
	schema, ok := v.schemas[taskType]
	if !ok {
		return &ValidationResult{Valid: true}
	}
	if document == "" {
		document = "{}"
	}
	return toResult(schema.Validate(gojsonschema.NewStringLoader(document)))
}

// ValidateOutputJSON validates a handler result against the output schema.
func (v *Validator) ValidateOutputJSON(taskType, document string) *ValidationResult {
	schema, ok := v.outputs[taskType]
	if !ok {
		return &ValidationResult{Valid: true}
	}
	if document == "" {
		document = "{}"
	}
	return toResult(schema.Validate(gojsonschema.NewStringLoader(document)))
}

// ValidateInput validates an already decoded document.
func (v *Validator) ValidateInput(taskType string, input map[string]interface{}) *ValidationResult {
	schema, ok := v.schemas[taskType]
	if !ok {
		return &ValidationResult{Valid: true}
	}
	if input == nil {
		input = map[string]interface{}{}
	}
	return toResult(schema.Validate(gojsonschema.NewGoLoader(input)))
}

func toResult(res *gojsonschema.Result, err error) *ValidationResult {
	if err != nil {
		return &ValidationResult{
			Valid: false,
			Errors: []ValidationError{{
				Field:   "(root)",
				Message: err.Error(),
				Code:    "INVALID_DOCUMENT",
			}},
		}
	}
	if res.Valid() {
		return &ValidationResult{Valid: true}
	}

	errs := make([]ValidationError, 0, len(res.Errors()))
	for _, re := range res.Errors() {
		errs = append(errs, ValidationError{
			Field:   re.Field(),
			Message: re.Description(),
			Code:    re.Type(),
		})
	}
	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
	return &ValidationResult{Valid: false, Errors: errs}
}
