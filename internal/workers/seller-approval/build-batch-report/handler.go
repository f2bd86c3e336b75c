// internal/workers/seller-approval/build-batch-report/handler.go
package buildbatchreport

import (
	"context"
	"fmt"
	"time"

	"opas-admin-workers/internal/common/camunda"
	"opas-admin-workers/internal/common/logger"
	"opas-admin-workers/internal/common/metrics"
	"opas-admin-workers/internal/common/validation"
	"opas-admin-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "build-batch-report"
)

type Handler struct {
	config *Config
	sinks  []Sink
	now    func() time.Time
	jobs   *camunda.Jobs
	logger logger.Logger
}

func NewHandler(config *Config, sinks []Sink, validator *validation.Validator, log logger.Logger) *Handler {
	if config == nil {
		config = LoadConfig()
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		sinks:  sinks,
		now:    time.Now,
		jobs:   camunda.NewJobs(TaskType, validator, log),
		logger: log,
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
	h.jobs.Complete(ctx, client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	report := Build(&input.Execution, input.Notifications, h.now())

	published := []string{}
	for _, sink := range h.sinks {
		sctx, cancel := context.WithTimeout(ctx, h.config.SinkTimeout)
		err := sink.Publish(sctx, report)
		cancel()
		if err != nil {
			metrics.ReportSinkFailures.WithLabelValues(sink.Name()).Inc()
			h.logger.Warn("report publish failed", map[string]interface{}{
				"batchId": report.BatchID,
				"sink":    sink.Name(),
				"error":   err.Error(),
			})
			continue
		}
		published = append(published, sink.Name())
	}

	h.logger.Info("batch report built", map[string]interface{}{
		"batchId":         report.BatchID,
		"successRate":     report.SuccessRate,
		"recommendations": len(report.Recommendations),
		"publishedTo":     published,
	})
	return &Output{Report: report, PublishedTo: published}, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

// Build combines the execution and notification results into the final
// report. completedAt is used when the execution carries no completion time.
func Build(exec *models.ExecutionResult, notif models.NotificationStats, completedAt time.Time) *models.BatchReport {
	report := &models.BatchReport{
		BatchID:         exec.BatchID,
		StartedAt:       exec.StartedAt,
		CompletedAt:     completedAt.UTC(),
		TotalProcessed:  exec.TotalProcessed,
		SuccessCount:    exec.SuccessCount,
		FailureCount:    exec.FailureCount,
		Results:         append([]models.ApprovalResult(nil), exec.Results...),
		Errors:          append([]string{}, exec.Errors...),
		DurationMs:      exec.DurationMs,
		Notifications:   notif,
		ExecutionStatus: exec.Status,
		StoppedEarly:    exec.StoppedEarly,
	}
	if report.Results == nil {
		report.Results = []models.ApprovalResult{}
	}
	if report.ExecutionStatus == "" {
		report.ExecutionStatus = models.DeriveExecutionStatus(exec.TotalProcessed, exec.FailureCount)
	}
	if exec.TotalProcessed > 0 {
		report.SuccessRate = float64(exec.SuccessCount) / float64(exec.TotalProcessed) * 100
	}
	report.Recommendations = Recommendations(exec.TotalProcessed, exec.SuccessCount, exec.FailureCount, notif.Failed)
	return report
}

// Recommendations lists every follow-up that applies to a run.
func Recommendations(total, success, failures, notificationFailures int) []string {
	recs := []string{}
	if failures > 0 {
		recs = append(recs, fmt.Sprintf("Manually review the %d failed application(s) before retrying", failures))
	}
	if notificationFailures > 0 {
		recs = append(recs, fmt.Sprintf("Resend approval notifications to %d seller(s)", notificationFailures))
	}
	if total > 0 && failures == 0 && success == total {
		recs = append(recs, fmt.Sprintf("Monitor activation of the %d newly approved seller(s)", success))
	}
	return recs
}
