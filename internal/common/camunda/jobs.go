package camunda

import (
	"context"
	"encoding/json"
	"fmt"

	"opas-admin-workers/internal/common/errors"
	"opas-admin-workers/internal/common/logger"
	"opas-admin-workers/internal/common/metrics"
	"opas-admin-workers/internal/common/validation"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// Jobs bundles what every handler needs to read variables and settle a job.
type Jobs struct {
	TaskType  string
	Validator *validation.Validator
	Errors    *errors.ErrorHandler
	Logger    logger.Logger
	Retry     *RetryConfig
}

func NewJobs(taskType string, validator *validation.Validator, log logger.Logger) *Jobs {
	return &Jobs{
		TaskType:  taskType,
		Validator: validator,
		Errors:    errors.NewErrorHandler(log),
		Logger:    log,
		Retry:     DefaultRetryConfig,
	}
}

// Decode checks the job variables against the registered input schema and
// unmarshals them into v.
func (j *Jobs) Decode(job entities.Job, v interface{}) error {
	if j.Validator != nil {
		if res := j.Validator.ValidateJSON(j.TaskType, job.Variables); !res.Valid {
			return errors.NewInputSchemaInvalidError(j.TaskType, res.Messages())
		}
	}
	vars := job.Variables
	if vars == "" {
		vars = "{}"
	}
	if err := json.Unmarshal([]byte(vars), v); err != nil {
		return errors.NewInputSchemaInvalidError(j.TaskType, []string{fmt.Sprintf("parse variables: %v", err)})
	}
	return nil
}

// CheckOutput lists where output deviates from the registered output schema.
func (j *Jobs) CheckOutput(output interface{}) []string {
	if j.Validator == nil {
		return nil
	}
	data, err := json.Marshal(output)
	if err != nil {
		return []string{fmt.Sprintf("marshal output: %v", err)}
	}
	if res := j.Validator.ValidateOutputJSON(j.TaskType, string(data)); !res.Valid {
		return res.Messages()
	}
	return nil
}

// Complete sends the complete command with output as job variables,
// retrying transient gateway errors. Output schema mismatches are logged
// but do not block completion.
func (j *Jobs) Complete(ctx context.Context, client worker.JobClient, job entities.Job, output interface{}) {
	if problems := j.CheckOutput(output); len(problems) > 0 {
		j.Logger.Warn("job output does not match output schema", map[string]interface{}{
			"jobKey":   job.Key,
			"problems": problems,
		})
	}
	_, err := Retry(ctx, j.Retry, "complete job", func(ctx context.Context) (interface{}, error) {
		cmd, err := client.NewCompleteJobCommand().
			JobKey(job.Key).
			VariablesFromObject(output)
		if err != nil {
			return nil, err
		}
		return cmd.Send(ctx)
	})
	if err != nil {
		j.Logger.Error("failed to complete job", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(j.TaskType).Inc()
	j.Logger.Info("job completed", map[string]interface{}{"jobKey": job.Key})
}

// Fail routes err through the error handler: retryable errors fail the job
// with remaining retries, business errors are thrown as BPMN errors.
func (j *Jobs) Fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	stdErr := errors.Normalize(err)
	metrics.WorkerJobsFailed.WithLabelValues(j.TaskType, string(stdErr.Code)).Inc()
	j.Errors.HandleJobError(ctx, client, job, stdErr)
}
