// internal/workers/seller-approval/filter-applications/handler.go
package filterapplications

import (
	"context"
	"fmt"
	"time"

	"opas-admin-workers/internal/common/camunda"
	"opas-admin-workers/internal/common/errors"
	"opas-admin-workers/internal/common/logger"
	"opas-admin-workers/internal/common/validation"
	"opas-admin-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "filter-applications"
)

type Handler struct {
	config *Config
	now    func() time.Time
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
		now:    time.Now,
		jobs:   camunda.NewJobs(TaskType, validator, log),
		logger: log,
	}
}

// WithClock replaces the clock used by the recent filter.
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

func (h *Handler) execute(_ context.Context, input *Input) (*Output, error) {
	apps, stats, err := Filter(input.Applications, input.Criteria, h.now(), h.config.RecentWindow)
	if err != nil {
		return nil, err
	}

	h.logger.Info("applications filtered", map[string]interface{}{
		"kind":     input.Criteria.Kind,
		"original": stats.Original,
		"retained": stats.Retained,
	})
	return &Output{Applications: apps, Stats: stats}, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

// Filter selects the applications matching criteria. Applications with a
// missing or unparsable created_at never match a date-based filter. For
// all_pending the input slice is returned unchanged.
func Filter(apps []models.Application, criteria models.FilterCriteria, now time.Time, recentWindow time.Duration) ([]models.Application, models.FilterStats, error) {
	var keep func(models.Application) bool

	switch criteria.Kind {
	case models.FilterAllPending, "":
		return apps, models.FilterStats{Original: len(apps), Retained: len(apps)}, nil

	case models.FilterDateRange:
		if criteria.Start == nil || criteria.End == nil {
			return nil, models.FilterStats{}, errors.NewInvalidFilterError("date_range requires start and end")
		}
		if !criteria.Start.Before(*criteria.End) {
			return nil, models.FilterStats{}, errors.NewInvalidFilterError("date_range start must be before end")
		}
		start, end := *criteria.Start, *criteria.End
		keep = func(a models.Application) bool {
			t, ok := a.SubmittedAt()
			return ok && !t.Before(start) && t.Before(end)
		}

	case models.FilterDocumentsComplete:
		keep = models.Application.HasDocuments

	case models.FilterRecent:
		if recentWindow <= 0 {
			recentWindow = 7 * 24 * time.Hour
		}
		cutoff := now.Add(-recentWindow)
		keep = func(a models.Application) bool {
			t, ok := a.SubmittedAt()
			return ok && !t.Before(cutoff)
		}

	default:
		return nil, models.FilterStats{}, errors.NewInvalidFilterError(fmt.Sprintf("unknown filter kind %q", criteria.Kind))
	}

	out := make([]models.Application, 0, len(apps))
	for _, a := range apps {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out, models.FilterStats{
		Original: len(apps),
		Retained: len(out),
		Removed:  len(apps) - len(out),
	}, nil
}
