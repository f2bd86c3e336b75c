// internal/workers/seller-approval/validate-batch/handler.go
package validatebatch

import (
	"context"
	"fmt"

	"opas-admin-workers/internal/common/camunda"
	"opas-admin-workers/internal/common/errors"
	"opas-admin-workers/internal/common/logger"
	"opas-admin-workers/internal/common/validation"
	"opas-admin-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "validate-batch"
)

type Handler struct {
	config *Config
	jobs   *camunda.Jobs
	logger logger.Logger
}

func NewHandler(config *Config, validator *validation.Validator, log logger.Logger) *Handler {
	if config == nil {
		config = LoadConfig()
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		jobs:   camunda.NewJobs(TaskType, validator, log),
		logger: log,
	}
}

// Handle completes the job with the validation outcome. An invalid batch is
// thrown as BATCH_VALIDATION_FAILED so the process stops before approvals.
func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := h.jobs.Decode(job, &input); err != nil {
		h.jobs.Fail(ctx, client, job, err)
		return
	}

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.jobs.Fail(ctx, client, job, err)
		return
	}
	if !output.IsValid {
		h.jobs.Fail(ctx, client, job, errors.NewBatchValidationFailedError(output.Issues))
		return
	}
	h.jobs.Complete(ctx, client, job, output)
}

func (h *Handler) execute(_ context.Context, input *Input) (*Output, error) {
	limit := h.config.MaxBatchSize
	if input.MaxBatchSize > 0 {
		limit = input.MaxBatchSize
	}

	issues := Validate(input.Applications, limit)
	if len(issues) > 0 {
		h.logger.Warn("batch rejected", map[string]interface{}{
			"batchSize":  len(input.Applications),
			"issueCount": len(issues),
		})
	}
	return &Output{
		IsValid: len(issues) == 0,
		Issues:  issues,
		Size:    len(input.Applications),
	}, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

// Validate returns every consistency problem in batch, in a stable order:
// the size check first, then per application (in input order) a missing
// seller id, a repeated seller id and a missing email. maxBatchSize <= 0
// means DefaultMaxBatchSize. The batch is valid iff no issues are returned.
func Validate(batch []models.Application, maxBatchSize int) []string {
	if maxBatchSize <= 0 {
		maxBatchSize = DefaultMaxBatchSize
	}
	issues := []string{}

	if len(batch) > maxBatchSize {
		issues = append(issues, fmt.Sprintf("batch size %d exceeds maximum of %d", len(batch), maxBatchSize))
	}

	seen := make(map[string]bool, len(batch))
	for i, app := range batch {
		pos := i + 1
		if app.SellerID == "" {
			issues = append(issues, fmt.Sprintf("missing seller_id at position %d", pos))
		} else if seen[app.SellerID] {
			issues = append(issues, fmt.Sprintf("duplicate seller_id %s", app.SellerID))
		} else {
			seen[app.SellerID] = true
		}

		if app.Email == "" {
			if app.SellerID == "" {
				issues = append(issues, fmt.Sprintf("missing email for application at position %d", pos))
			} else {
				issues = append(issues, fmt.Sprintf("missing email for seller %s", app.SellerID))
			}
		}
	}
	return issues
}
