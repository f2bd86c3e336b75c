package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"time"

	"opas-admin-workers/internal/common/validation"
	"opas-admin-workers/pkg/registry"

	"github.com/spf13/cobra"
)

const defaultRegistryPath = "configs/activity-registry.json"

func newRegistryCommand() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Inspect and edit the activity registry",
	}
	cmd.PersistentFlags().StringVar(&path, "path", defaultRegistryPath, "path to the registry file")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "validate",
			Short: "Check registry structure and compile every input schema",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				reg, err := registry.LoadRegistry(path)
				if err != nil {
					return err
				}
				if problems := reg.Validate(); len(problems) > 0 {
					for _, p := range problems {
						fmt.Fprintln(cmd.ErrOrStderr(), "  -", p)
					}
					return fmt.Errorf("registry validation failed with %d problem(s)", len(problems))
				}
				if _, err := validation.NewValidator(reg); err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Registry validation passed. Found %d activities.\n", len(reg.Activities))
				return err
			},
		},
		newRegistryAddCommand(&path),
		newRegistryUpdateCommand(&path),
	)
	return cmd
}

func newRegistryAddCommand(path *string) *cobra.Command {
	a := registry.Activity{}
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an activity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := registry.LoadRegistry(*path)
			if errors.Is(err, fs.ErrNotExist) {
				reg = &registry.ActivityRegistry{Version: "1.0.0"}
			} else if err != nil {
				return err
			}
			for _, existing := range reg.Activities {
				if existing.ID == a.ID {
					return fmt.Errorf("activity with ID %s already exists", a.ID)
				}
			}

			act := a
			act.InputSchema = map[string]interface{}{}
			act.OutputSchema = map[string]interface{}{}
			act.ErrorCodes = []string{}
			act.Workflows = []string{}
			act.Tags = []string{}
			reg.Activities = append(reg.Activities, act)
			if err := reg.Save(*path, time.Now()); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Added activity: %s\n", a.ID)
			return err
		},
	}
	cmd.Flags().StringVar(&a.ID, "id", "", "activity id")
	cmd.Flags().StringVar(&a.DisplayName, "display-name", "", "display name")
	cmd.Flags().StringVar(&a.Description, "description", "", "description")
	cmd.Flags().StringVar(&a.Category, "category", "", "category, e.g. seller-approval")
	cmd.Flags().StringVar(&a.TaskType, "task-type", "", "Zeebe task type")
	cmd.Flags().StringVar(&a.Version, "version", "1.0.0", "activity version")
	cmd.Flags().StringVar(&a.ImplementationStatus, "status", "planned", "planned, in-progress, completed or verified")
	cmd.Flags().StringVar(&a.Timeout, "timeout", "10s", "job timeout")
	for _, name := range []string{"id", "display-name", "category", "task-type"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newRegistryUpdateCommand(path *string) *cobra.Command {
	var id, field, value string
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change one field of an activity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := registry.LoadRegistry(*path)
			if err != nil {
				return err
			}

			var target *registry.Activity
			for i := range reg.Activities {
				if reg.Activities[i].ID == id {
					target = &reg.Activities[i]
					break
				}
			}
			if target == nil {
				return fmt.Errorf("activity with ID %s not found", id)
			}
			if err := setActivityField(target, field, value); err != nil {
				return err
			}
			if err := reg.Save(*path, time.Now()); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Updated activity %s, field %s to %s\n", id, field, value)
			return err
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "activity id")
	cmd.Flags().StringVar(&field, "field", "", "status, version, displayName, description, category, taskType, timeout or retries")
	cmd.Flags().StringVar(&value, "value", "", "new value")
	for _, name := range []string{"id", "field", "value"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func setActivityField(a *registry.Activity, field, value string) error {
	switch field {
	case "status":
		a.ImplementationStatus = value
	case "version":
		a.Version = value
	case "displayName":
		a.DisplayName = value
	case "description":
		a.Description = value
	case "category":
		a.Category = value
	case "taskType":
		a.TaskType = value
	case "timeout":
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid timeout value: %w", err)
		}
		a.Timeout = value
	case "retries":
		retries, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid retries value: %w", err)
		}
		a.Retries = retries
	default:
		return fmt.Errorf("unknown field: %s", field)
	}
	return nil
}
