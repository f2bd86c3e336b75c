package buildbatchreport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"opas-admin-workers/internal/common/events"
	"opas-admin-workers/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/redis/go-redis/v9"
)

const EventBatchCompleted = "seller_batch.completed"

var ErrReportNotFound = errors.New("REPORT_NOT_FOUND")

// Sink receives every finished report. Publication is best effort.
type Sink interface {
	Name() string
	Publish(ctx context.Context, report *models.BatchReport) error
}

// RedisSink caches reports so the admin API can serve them by batch id.
type RedisSink struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSink(client *redis.Client, ttl time.Duration) *RedisSink {
	return &RedisSink{client: client, ttl: ttl}
}

func ReportKey(batchID string) string {
	return "opas:seller-batch-report:" + batchID
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) Publish(ctx context.Context, report *models.BatchReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return s.client.Set(ctx, ReportKey(report.BatchID), data, s.ttl).Err()
}

// Get returns a cached report.
func (s *RedisSink) Get(ctx context.Context, batchID string) (*models.BatchReport, error) {
	data, err := s.client.Get(ctx, ReportKey(batchID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrReportNotFound, batchID)
	}
	if err != nil {
		return nil, err
	}
	var report models.BatchReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("decode cached report %s: %w", batchID, err)
	}
	return &report, nil
}

// ElasticsearchSink indexes reports, one document per batch id.
type ElasticsearchSink struct {
	client *elasticsearch.Client
	index  string
}

func NewElasticsearchSink(client *elasticsearch.Client, index string) *ElasticsearchSink {
	return &ElasticsearchSink{client: client, index: index}
}

func (s *ElasticsearchSink) Name() string { return "elasticsearch" }

func (s *ElasticsearchSink) Publish(ctx context.Context, report *models.BatchReport) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	res, err := s.client.Index(
		s.index,
		bytes.NewReader(body),
		s.client.Index.WithDocumentID(report.BatchID),
		s.client.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("index report: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("index report: %s: %s", res.Status(), bytes.TrimSpace(msg))
	}
	return nil
}

// EventSink announces finished batches to other services.
type EventSink struct {
	publisher events.Publisher
}

func NewEventSink(p events.Publisher) *EventSink {
	return &EventSink{publisher: p}
}

func (s *EventSink) Name() string { return "kafka" }

type batchCompleted struct {
	BatchID         string                 `json:"batch_id"`
	ExecutionStatus models.ExecutionStatus `json:"execution_status"`
	TotalProcessed  int                    `json:"total_processed"`
	SuccessCount    int                    `json:"success_count"`
	FailureCount    int                    `json:"failure_count"`
	ApprovedSellers []string               `json:"approved_sellers"`
	CompletedAt     time.Time              `json:"completed_at"`
}

func (s *EventSink) Publish(ctx context.Context, report *models.BatchReport) error {
	approved := []string{}
	for _, r := range report.Results {
		if r.Status == models.ApprovalSuccess {
			approved = append(approved, r.SellerID)
		}
	}
	return s.publisher.Publish(ctx, report.BatchID, EventBatchCompleted, batchCompleted{
		BatchID:         report.BatchID,
		ExecutionStatus: report.ExecutionStatus,
		TotalProcessed:  report.TotalProcessed,
		SuccessCount:    report.SuccessCount,
		FailureCount:    report.FailureCount,
		ApprovedSellers: approved,
		CompletedAt:     report.CompletedAt,
	})
}
