package validation

import (
	"testing"

	"opas-admin-workers/pkg/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry() *registry.ActivityRegistry {
	return &registry.ActivityRegistry{Activities: []registry.Activity{
		{
			ID:       "validate-batch",
			TaskType: "validate-batch",
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []interface{}{"applications"},
				"properties": map[string]interface{}{
					"applications": map[string]interface{}{"type": "array"},
					"maxBatchSize": map[string]interface{}{"type": "integer", "minimum": 1},
				},
			},
			OutputSchema: map[string]interface{}{
				"type":     "object",
				"required": []interface{}{"isValid"},
				"properties": map[string]interface{}{
					"isValid": map[string]interface{}{"type": "boolean"},
				},
			},
		},
		{ID: "no-schema", TaskType: "no-schema"},
	}}
}

func TestValidator(t *testing.T) {
	v, err := NewValidator(testRegistry())
	require.NoError(t, err)

	assert.True(t, v.HasSchema("validate-batch"))
	assert.False(t, v.HasSchema("no-schema"))

	tests := []struct {
		name      string
		taskType  string
		doc       string
		wantValid bool
		wantField string
	}{
		{name: "valid", taskType: "validate-batch", doc: `{"applications":[],"maxBatchSize":10}`, wantValid: true},
		{name: "missing required", taskType: "validate-batch", doc: `{}`, wantField: "(root)"},
		{name: "wrong type", taskType: "validate-batch", doc: `{"applications":"x"}`, wantField: "applications"},
		{name: "below minimum", taskType: "validate-batch", doc: `{"applications":[],"maxBatchSize":0}`, wantField: "maxBatchSize"},
		{name: "empty variables", taskType: "validate-batch", doc: ``, wantField: "(root)"},
		{name: "malformed json", taskType: "validate-batch", doc: `{`, wantField: "(root)"},
		{name: "unregistered task", taskType: "other", doc: `{`, wantValid: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.ValidateJSON(tt.taskType, tt.doc)
			assert.Equal(t, tt.wantValid, res.Valid)
			if !tt.wantValid {
				require.NotEmpty(t, res.Errors)
				assert.Equal(t, tt.wantField, res.Errors[0].Field)
				assert.NotEmpty(t, res.Messages())
			}
		})
	}
}

func TestValidateInput(t *testing.T) {
	v, err := NewValidator(testRegistry())
	require.NoError(t, err)

	assert.True(t, v.ValidateInput("validate-batch", map[string]interface{}{"applications": []interface{}{}}).Valid)
	assert.False(t, v.ValidateInput("validate-batch", nil).Valid)
}

func TestValidateOutputJSON(t *testing.T) {
	v, err := NewValidator(testRegistry())
	require.NoError(t, err)

	assert.True(t, v.ValidateOutputJSON("validate-batch", `{"isValid":true,"issues":[]}`).Valid)
	res := v.ValidateOutputJSON("validate-batch", `{"is_valid":true}`)
	assert.False(t, res.Valid)
	assert.Equal(t, "(root)", res.Errors[0].Field)
	assert.True(t, v.ValidateOutputJSON("no-schema", `{}`).Valid)
}

func TestNewValidator_BadSchema(t *testing.T) {
	_, err := NewValidator(&registry.ActivityRegistry{Activities: []registry.Activity{
		{TaskType: "x", InputSchema: map[string]interface{}{"type": 12}},
	}})
	assert.Error(t, err)

	_, err = NewValidator(&registry.ActivityRegistry{Activities: []registry.Activity{
		{TaskType: "x", OutputSchema: map[string]interface{}{"type": 12}},
	}})
	assert.ErrorContains(t, err, "output schema")
}
