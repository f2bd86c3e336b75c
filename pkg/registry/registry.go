// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

var ErrActivityNotFound = errors.New("ACTIVITY_NOT_FOUND")

func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg ActivityRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", path, err)
	}
	return &reg, nil
}

// Save writes the registry back to path, stamping LastUpdated.
func (r *ActivityRegistry) Save(path string, now time.Time) error {
	r.LastUpdated = now.UTC().Format(time.RFC3339)
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	return nil
}

// Find returns the activity registered for taskType.
func (r *ActivityRegistry) Find(taskType string) (*Activity, error) {
	for i := range r.Activities {
		if r.Activities[i].TaskType == taskType {
			return &r.Activities[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrActivityNotFound, taskType)
}

// TimeoutOr parses the activity timeout, falling back to def when it is
// empty or malformed.
func (a Activity) TimeoutOr(def time.Duration) time.Duration {
	if a.Timeout == "" {
		return def
	}
	d, err := time.ParseDuration(a.Timeout)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// Validate reports every structural problem in the registry.
func (r *ActivityRegistry) Validate() []string {
	var problems []string
	if len(r.Activities) == 0 {
		return []string{"registry contains no activities"}
	}

	ids := make(map[string]bool)
	taskTypes := make(map[string]bool)
	for i, a := range r.Activities {
		if a.ID == "" {
			problems = append(problems, fmt.Sprintf("activity at index %d missing required field: id", i))
			continue
		}
		if ids[a.ID] {
			problems = append(problems, fmt.Sprintf("duplicate activity id: %s", a.ID))
		}
		ids[a.ID] = true

		if a.DisplayName == "" {
			problems = append(problems, fmt.Sprintf("activity %s missing required field: displayName", a.ID))
		}
		if a.Category == "" {
			problems = append(problems, fmt.Sprintf("activity %s missing required field: category", a.ID))
		}
		if a.TaskType == "" {
			problems = append(problems, fmt.Sprintf("activity %s missing required field: taskType", a.ID))
		} else if taskTypes[a.TaskType] {
			problems = append(problems, fmt.Sprintf("duplicate taskType: %s", a.TaskType))
		}
		taskTypes[a.TaskType] = true

		if a.Timeout != "" {
			if _, err := time.ParseDuration(a.Timeout); err != nil {
				problems = append(problems, fmt.Sprintf("activity %s has invalid timeout %q", a.ID, a.Timeout))
			}
		}
		if a.Retries < 0 {
			problems = append(problems, fmt.Sprintf("activity %s has negative retries", a.ID))
		}
	}
	return problems
}
