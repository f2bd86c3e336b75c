// internal/workers/seller-approval/bulk-seller-approval/handler.go
package bulksellerapproval

import (
	"context"
	"time"

	"opas-admin-workers/internal/common/camunda"
	"opas-admin-workers/internal/common/errors"
	"opas-admin-workers/internal/common/logger"
	"opas-admin-workers/internal/common/metrics"
	"opas-admin-workers/internal/common/observability"
	"opas-admin-workers/internal/common/validation"
	"opas-admin-workers/internal/models"
	buildbatchreport "opas-admin-workers/internal/workers/seller-approval/build-batch-report"
	executeapprovals "opas-admin-workers/internal/workers/seller-approval/execute-approvals"
	filterapplications "opas-admin-workers/internal/workers/seller-approval/filter-applications"
	sendapprovalnotifications "opas-admin-workers/internal/workers/seller-approval/send-approval-notifications"
	validatebatch "opas-admin-workers/internal/workers/seller-approval/validate-batch"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	TaskType = "bulk-seller-approval"
)

// Fetcher loads the applications waiting for a decision.
type Fetcher interface {
	FetchPendingApplications(ctx context.Context) ([]models.Application, error)
}

// Stages are the stage workers, run in-process and in order.
type Stages struct {
	Filter   *filterapplications.Handler
	Validate *validatebatch.Handler
	Execute  *executeapprovals.Handler
	Notify   *sendapprovalnotifications.Handler
	Report   *buildbatchreport.Handler
}

type Handler struct {
	config  *Config
	fetcher Fetcher
	stages  Stages
	obs     *observability.Observability
	now     func() time.Time
	jobs    *camunda.Jobs
	logger  logger.Logger
}

func NewHandler(config *Config, fetcher Fetcher, stages Stages, obs *observability.Observability, validator *validation.Validator, log logger.Logger) *Handler {
	if config == nil {
		config = LoadConfig()
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:  config,
		fetcher: fetcher,
		stages:  stages,
		obs:     obs,
		now:     time.Now,
		jobs:    camunda.NewJobs(TaskType, validator, log),
		logger:  log,
	}
}

// WithClock replaces the clock that stamps the run start and batch id.
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

	result := h.Run(ctx, &input)
	if err := result.Err(); err != nil {
		h.jobs.Fail(ctx, client, job, err)
		return
	}
	h.jobs.Complete(context.Background(), client, job, result)
}

// Run executes Fetch, Filter, Validate, Execute, Notify and Report one after
// the other. The first three stages can abort the run; once approvals have
// started the run always ends with a report.
func (h *Handler) Run(ctx context.Context, req *Request) *WorkflowResult {
	start := h.now()
	batchID := executeapprovals.NewBatchID(start)

	ctx, span := h.obs.StartSpan(ctx, "seller_batch.run", attribute.String("batch.id", batchID))
	defer span.End()

	log := h.logger.WithFields(map[string]interface{}{"batchId": batchID})
	log.Info("bulk approval started", map[string]interface{}{
		"filter": req.Criteria.Kind,
	})

	abort := func(stage string, err error) *WorkflowResult {
		stdErr := errors.Normalize(err)
		span.RecordError(stdErr)
		span.SetStatus(codes.Error, string(stdErr.Code))
		metrics.BatchRuns.WithLabelValues("aborted_" + stage).Inc()
		log.Warn("bulk approval aborted", map[string]interface{}{
			"stage":     stage,
			"errorCode": string(stdErr.Code),
			"reason":    stdErr.Message,
		})
		return &WorkflowResult{
			BatchID:     batchID,
			FailedStage: stage,
			Reason:      reason(stdErr),
			ErrorCode:   stdErr.Code,
			cause:       stdErr,
		}
	}

	// Fetch
	sctx, stageSpan := h.obs.StartSpan(ctx, "seller_batch.fetch")
	apps, err := h.fetcher.FetchPendingApplications(sctx)
	stageSpan.End()
	if err != nil {
		return abort(StageFetch, errors.NewFetchFailedError(err))
	}

	// Filter
	sctx, stageSpan = h.obs.StartSpan(ctx, "seller_batch.filter")
	filtered, err := h.stages.Filter.Execute(sctx, &filterapplications.Input{
		Applications: apps,
		Criteria:     req.Criteria,
	})
	stageSpan.End()
	if err != nil {
		return abort(StageFilter, err)
	}
	if len(filtered.Applications) == 0 {
		kind := req.Criteria.Kind
		if kind == "" {
			kind = models.FilterAllPending
		}
		res := abort(StageFilter, errors.NewNoApplicationsMatchedError(kind, filtered.Stats))
		res.FilterStats = &filtered.Stats
		return res
	}

	// Validate
	sctx, stageSpan = h.obs.StartSpan(ctx, "seller_batch.validate",
		attribute.Int("batch.size", len(filtered.Applications)))
	validated, err := h.stages.Validate.Execute(sctx, &validatebatch.Input{
		Applications: filtered.Applications,
		MaxBatchSize: req.MaxBatchSize,
	})
	stageSpan.End()
	if err != nil {
		return abort(StageValidate, err)
	}
	if !validated.IsValid {
		res := abort(StageValidate, errors.NewBatchValidationFailedError(validated.Issues))
		res.Issues = validated.Issues
		res.FilterStats = &filtered.Stats
		return res
	}

	// Execute
	sctx, stageSpan = h.obs.StartSpan(ctx, "seller_batch.execute")
	execution, err := h.stages.Execute.Execute(sctx, &executeapprovals.Input{
		BatchID:          batchID,
		Applications:     filtered.Applications,
		AdminNotes:       req.AdminNotes,
		StopOnFirstError: req.StopOnFirstError,
	})
	stageSpan.End()
	if err != nil {
		return abort(StageExecute, err)
	}
	execution.StartedAt = start.UTC()

	// Notify
	var notif models.NotificationStats
	sctx, stageSpan = h.obs.StartSpan(ctx, "seller_batch.notify")
	notified, err := h.stages.Notify.Execute(sctx, &sendapprovalnotifications.Input{
		BatchID: batchID,
		Results: execution.Results,
	})
	stageSpan.End()
	if err != nil {
		// Approvals are already permanent; report without notification stats.
		log.Error("notification stage failed", map[string]interface{}{"error": err.Error()})
	} else {
		notif = notified.Stats
	}

	// Report
	sctx, stageSpan = h.obs.StartSpan(ctx, "seller_batch.report")
	reported, err := h.stages.Report.Execute(sctx, &buildbatchreport.Input{
		Execution:     *execution,
		Notifications: notif,
	})
	stageSpan.End()
	if err != nil {
		return abort(StageReport, err)
	}

	metrics.BatchRuns.WithLabelValues("completed").Inc()
	log.Info("bulk approval finished", map[string]interface{}{
		"status":       string(reported.Report.ExecutionStatus),
		"successCount": reported.Report.SuccessCount,
		"failureCount": reported.Report.FailureCount,
		"durationMs":   time.Since(start).Milliseconds(),
	})

	return &WorkflowResult{
		Success:     true,
		BatchID:     batchID,
		Report:      reported.Report,
		PublishedTo: reported.PublishedTo,
		FilterStats: &filtered.Stats,
	}
}

func reason(e *errors.StandardError) string {
	if e.Details == "" {
		return e.Message
	}
	return e.Message + ": " + e.Details
}
