// internal/workers/reporting/export-records/handler.go
package exportrecords

import (
	"context"
	"fmt"

	"opas-admin-workers/internal/audit"
	"opas-admin-workers/internal/common/camunda"
	"opas-admin-workers/internal/common/errors"
	"opas-admin-workers/internal/common/logger"
	"opas-admin-workers/internal/common/metrics"
	"opas-admin-workers/internal/common/validation"
	"opas-admin-workers/internal/export"
	"opas-admin-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "export-records"
)

// AuditColumns is the column order of audit trail exports.
var AuditColumns = []string{"created_at", "batch_id", "seller_id", "action", "status", "error", "notes", "id"}

type AuditLister interface {
	List(ctx context.Context, batchID string, limit int) ([]audit.Entry, error)
}

type FileStore interface {
	Put(ctx context.Context, key string, content []byte, contentType string) (string, error)
}

type Handler struct {
	config    *Config
	formatter *export.Formatter
	store     FileStore
	audit     AuditLister
	jobs      *camunda.Jobs
	logger    logger.Logger
}

// NewHandler builds the export worker. auditLister may be nil when no
// database is configured; the approval_audit source is then rejected.
func NewHandler(config *Config, formatter *export.Formatter, store FileStore, auditLister AuditLister, validator *validation.Validator, log logger.Logger) *Handler {
	if config == nil {
		config = LoadConfig()
	}
	if formatter == nil {
		formatter = export.NewFormatter(export.DefaultOptions())
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		formatter: formatter,
		store:     store,
		audit:     auditLister,
		jobs:      camunda.NewJobs(TaskType, validator, log),
		logger:    log,
	}
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
	if h.store == nil {
		return nil, errors.NewExportStorageFailedError(input.Name, fmt.Errorf("no export bucket configured"))
	}

	res, err := h.Render(ctx, input)
	if err != nil {
		return nil, err
	}

	contentType := export.ContentType(res.Format)
	key, err := h.store.Put(ctx, res.FileName, res.Content, contentType)
	if err != nil {
		metrics.Exports.WithLabelValues(res.Format, "storage_failed").Inc()
		return nil, errors.NewExportStorageFailedError(res.FileName, err)
	}

	h.logger.Info("export stored", map[string]interface{}{
		"key":         key,
		"format":      res.Format,
		"sizeBytes":   res.SizeBytes,
		"recordCount": res.RecordCount,
	})
	return &Output{
		Format:      res.Format,
		FileName:    res.FileName,
		StorageKey:  key,
		ContentType: contentType,
		SizeBytes:   res.SizeBytes,
		RecordCount: res.RecordCount,
	}, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

// Render loads the dataset and formats it without storing the file.
func (h *Handler) Render(ctx context.Context, input *Input) (*models.ExportResult, error) {
	ds, err := h.Dataset(ctx, input)
	if err != nil {
		return nil, err
	}

	res, err := h.formatter.Format(input.Format, ds)
	if err != nil {
		metrics.Exports.WithLabelValues(input.Format, outcome(err)).Inc()
		return nil, err
	}
	metrics.Exports.WithLabelValues(res.Format, "ok").Inc()
	metrics.ExportBytes.WithLabelValues(res.Format).Observe(float64(res.SizeBytes))
	return res, nil
}

// Dataset resolves the records named by input.
func (h *Handler) Dataset(ctx context.Context, input *Input) (export.Dataset, error) {
	name := input.Name
	ds := export.Dataset{Title: input.Title, Columns: input.Columns}

	switch input.Source {
	case SourceInline, "":
		if name == "" {
			name = "records"
		}
		ds.Records = input.Records

	case SourceApprovalAudit:
		if h.audit == nil {
			return ds, errors.NewDatabaseConnectionFailedError(fmt.Errorf("approval audit store not configured"))
		}
		entries, err := h.audit.List(ctx, input.BatchID, h.config.MaxAuditRows)
		if err != nil {
			return ds, err
		}
		if name == "" {
			name = "approval_audit"
			if input.BatchID != "" {
				name += "_" + input.BatchID
			}
		}
		if ds.Title == "" {
			ds.Title = "Seller approval audit"
			if input.BatchID != "" {
				ds.Title += " - " + input.BatchID
			}
		}
		if len(ds.Columns) == 0 {
			ds.Columns = AuditColumns
		}
		ds.Records = make([]models.Record, len(entries))
		for i, e := range entries {
			ds.Records[i] = e.Record()
		}

	default:
		return ds, errors.NewBusinessRuleError("Unknown export source", fmt.Sprintf("source: %s", input.Source))
	}

	ds.Name = name
	return ds, nil
}

func outcome(err error) string {
	if stdErr, ok := errors.AsStandardError(err); ok {
		return string(stdErr.Code)
	}
	return "error"
}
