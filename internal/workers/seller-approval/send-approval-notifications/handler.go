// internal/workers/seller-approval/send-approval-notifications/handler.go
package sendapprovalnotifications

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"opas-admin-workers/internal/common/camunda"
	"opas-admin-workers/internal/common/logger"
	"opas-admin-workers/internal/common/metrics"
	"opas-admin-workers/internal/common/validation"
	"opas-admin-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
)

const (
	TaskType = "send-approval-notifications"
)

var (
	ErrNoEmailAddress = errors.New("NO_EMAIL_ADDRESS")
	ErrNoPhoneNumber  = errors.New("NO_PHONE_NUMBER")
)

// EmailSender is satisfied by the shared SES client.
type EmailSender interface {
	SendEmail(ctx context.Context, from, to, subject, htmlBody, textBody string) (string, error)
}

// SMSSender is satisfied by the shared SNS client.
type SMSSender interface {
	SendSMS(ctx context.Context, phone, message string) (string, error)
}

type Handler struct {
	config *Config
	email  EmailSender
	sms    SMSSender
	jobs   *camunda.Jobs
	logger logger.Logger
}

// NewHandler builds the stage. In log mode the senders are ignored and every
// message is written to the log instead of a provider.
func NewHandler(config *Config, email EmailSender, sms SMSSender, validator *validation.Validator, log logger.Logger) (*Handler, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Mode == ModeSES {
		if config.EmailEnabled && email == nil {
			return nil, fmt.Errorf("ses mode requires an email sender")
		}
		if config.SMSEnabled && sms == nil {
			return nil, fmt.Errorf("sms enabled but no sms sender configured")
		}
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		email:  email,
		sms:    sms,
		jobs:   camunda.NewJobs(TaskType, validator, log),
		logger: log,
	}, nil
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
	h.jobs.Complete(context.Background(), client, job, output)
}

// execute notifies every seller with a SUCCESS result. A seller counts as
// sent when every attempted channel delivered; failures are collected and the
// loop always continues. SMS is only attempted for sellers with a phone
// number, unless it is the only enabled channel.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	out := &Output{Deliveries: []Delivery{}}
	stats := &out.Stats

	for _, r := range input.Results {
		if r.Status != models.ApprovalSuccess {
			continue
		}
		stats.Total++

		ok := true
		if h.config.EmailEnabled {
			id, err := h.sendEmail(ctx, r, input.BatchID)
			ok = h.track(out, r.SellerID, ChannelEmail, id, err) && ok
		}
		if h.config.SMSEnabled && (strings.TrimSpace(r.Phone) != "" || !h.config.EmailEnabled) {
			id, err := h.sendSMS(ctx, r)
			ok = h.track(out, r.SellerID, ChannelSMS, id, err) && ok
		}

		if ok {
			stats.Sent++
		} else {
			stats.Failed++
		}
	}

	if stats.Total > 0 {
		stats.DeliveryRate = float64(stats.Sent) / float64(stats.Total)
	}

	h.logger.Info("approval notifications sent", map[string]interface{}{
		"batchId":      input.BatchID,
		"sent":         stats.Sent,
		"failed":       stats.Failed,
		"deliveryRate": stats.DeliveryRate,
	})
	return out, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

func (h *Handler) track(out *Output, sellerID, channel, messageID string, err error) bool {
	if err != nil {
		metrics.Notifications.WithLabelValues(channel, "failed").Inc()
		out.Stats.Failures = append(out.Stats.Failures, models.NotificationFailure{
			SellerID: sellerID,
			Channel:  channel,
			Error:    err.Error(),
		})
		h.logger.Warn("notification failed", map[string]interface{}{
			"sellerId": sellerID,
			"channel":  channel,
			"error":    err.Error(),
		})
		return false
	}
	metrics.Notifications.WithLabelValues(channel, "sent").Inc()
	out.Deliveries = append(out.Deliveries, Delivery{SellerID: sellerID, Channel: channel, MessageID: messageID})
	return true
}

func (h *Handler) sendEmail(ctx context.Context, r models.ApprovalResult, batchID string) (string, error) {
	to := strings.TrimSpace(r.Email)
	if to == "" {
		return "", ErrNoEmailAddress
	}
	if h.config.Mode == ModeLog {
		return h.logDelivery(ChannelEmail, r.SellerID, to, approvalSubject), nil
	}
	return h.email.SendEmail(ctx, h.config.FromEmail, to, approvalSubject,
		approvalHTML(r.SellerID, batchID), approvalText(r.SellerID, batchID))
}

func (h *Handler) sendSMS(ctx context.Context, r models.ApprovalResult) (string, error) {
	phone := strings.TrimSpace(r.Phone)
	if phone == "" {
		return "", ErrNoPhoneNumber
	}
	msg := approvalSMS(r.SellerID)
	if h.config.Mode == ModeLog {
		return h.logDelivery(ChannelSMS, r.SellerID, phone, msg), nil
	}
	return h.sms.SendSMS(ctx, phone, msg)
}

func (h *Handler) logDelivery(channel, sellerID, to, summary string) string {
	id := "log-" + uuid.NewString()
	h.logger.Info("notification delivered to log", map[string]interface{}{
		"channel":   channel,
		"sellerId":  sellerID,
		"to":        to,
		"summary":   summary,
		"messageId": id,
	})
	return id
}
