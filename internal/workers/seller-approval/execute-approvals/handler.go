// internal/workers/seller-approval/execute-approvals/handler.go
package executeapprovals

import (
	"context"
	"fmt"
	"time"

	"opas-admin-workers/internal/audit"
	"opas-admin-workers/internal/common/camunda"
	"opas-admin-workers/internal/common/logger"
	"opas-admin-workers/internal/common/metrics"
	"opas-admin-workers/internal/common/validation"
	"opas-admin-workers/internal/models"
	"opas-admin-workers/internal/opas"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "execute-approvals"
)

// Approver is the part of the OPAS admin API this stage needs.
type Approver interface {
	ApproveSeller(ctx context.Context, sellerID, notes string) (*opas.DecisionResult, error)
}

// AuditRecorder persists one decision. Failures are logged, never fatal.
type AuditRecorder interface {
	Record(ctx context.Context, e audit.Entry) error
}

type Handler struct {
	config   *Config
	approver Approver
	audit    AuditRecorder
	now      func() time.Time
	jobs     *camunda.Jobs
	logger   logger.Logger
}

// NewHandler builds the stage. recorder may be nil when no audit database is
// configured.
func NewHandler(config *Config, approver Approver, recorder AuditRecorder, validator *validation.Validator, log logger.Logger) *Handler {
	if config == nil {
		config = LoadConfig()
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   config,
		approver: approver,
		audit:    recorder,
		now:      time.Now,
		jobs:     camunda.NewJobs(TaskType, validator, log),
		logger:   log,
	}
}

func (h *Handler) WithClock(now func() time.Time) *Handler {
	h.now = now
	return h
}

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
	// Per-seller failures are part of the result; the job itself completes.
	h.jobs.Complete(context.Background(), client, job, output)
}

// execute approves the applications one at a time, in order. Nothing is
// rolled back: when the loop stops early, earlier approvals stay in effect.
// A cancelled context ends the loop before the next seller.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	stopOnFirstError := h.config.StopOnFirstError
	if input.StopOnFirstError != nil {
		stopOnFirstError = *input.StopOnFirstError
	}
	batchID := input.BatchID
	if batchID == "" {
		batchID = NewBatchID(h.now())
	}
	notes := TagNotes(input.AdminNotes, batchID)

	out := &Output{
		BatchID:   batchID,
		Results:   make([]models.ApprovalResult, 0, len(input.Applications)),
		Errors:    []string{},
		StartedAt: h.now().UTC(),
	}
	start := time.Now()

	for _, app := range input.Applications {
		if ctx.Err() != nil {
			out.StoppedEarly = true
			h.logger.Warn("approval loop cancelled", map[string]interface{}{
				"batchId":   batchID,
				"processed": len(out.Results),
			})
			break
		}

		result := h.approve(ctx, app, notes)
		out.Results = append(out.Results, result)
		metrics.SellerApprovals.WithLabelValues(string(result.Status)).Inc()
		h.recordAudit(ctx, batchID, notes, result)

		if result.Failed() {
			out.FailureCount++
			out.Errors = append(out.Errors, fmt.Sprintf("seller %s: %s", result.SellerID, result.Error))
			if stopOnFirstError {
				out.StoppedEarly = true
				break
			}
			continue
		}
		out.SuccessCount++
	}

	out.TotalProcessed = len(out.Results)
	out.Status = models.DeriveExecutionStatus(out.TotalProcessed, out.FailureCount)
	out.DurationMs = time.Since(start).Milliseconds()
	out.CompletedAt = h.now().UTC()
	metrics.BatchSize.Observe(float64(out.TotalProcessed))

	h.logger.Info("approval batch executed", map[string]interface{}{
		"batchId":      batchID,
		"processed":    out.TotalProcessed,
		"successCount": out.SuccessCount,
		"failureCount": out.FailureCount,
		"status":       string(out.Status),
		"stoppedEarly": out.StoppedEarly,
	})
	return out, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

func (h *Handler) approve(ctx context.Context, app models.Application, notes string) models.ApprovalResult {
	result := models.ApprovalResult{
		SellerID: app.SellerID,
		Email:    app.Email,
		Phone:    app.Phone,
	}

	decision, err := h.approver.ApproveSeller(ctx, app.SellerID, notes)
	result.Timestamp = h.now().UTC()

	switch {
	case err != nil:
		result.Status = models.ApprovalError
		result.Error = err.Error()
	case decision == nil || !decision.Success:
		result.Status = models.ApprovalFailed
		result.Error = "approval refused by backend"
		if decision != nil && decision.Error != "" {
			result.Error = decision.Error
		}
	default:
		result.Status = models.ApprovalSuccess
	}
	return result
}

func (h *Handler) recordAudit(ctx context.Context, batchID, notes string, r models.ApprovalResult) {
	if h.audit == nil {
		return
	}
	err := h.audit.Record(ctx, audit.Entry{
		BatchID:   batchID,
		SellerID:  r.SellerID,
		Action:    audit.ActionApprove,
		Status:    string(r.Status),
		Error:     r.Error,
		Notes:     notes,
		CreatedAt: r.Timestamp,
	})
	if err != nil {
		h.logger.Warn("audit write failed", map[string]interface{}{
			"batchId":  batchID,
			"sellerId": r.SellerID,
			"error":    err.Error(),
		})
	}
}

// NewBatchID derives the batch identifier from the run start time.
func NewBatchID(start time.Time) string {
	return fmt.Sprintf("BATCH_%d", start.UnixMilli())
}

// TagNotes appends the batch marker to the admin notes.
func TagNotes(notes, batchID string) string {
	tag := fmt.Sprintf("[Batch: %s]", batchID)
	if notes == "" {
		return tag
	}
	return notes + " " + tag
}
