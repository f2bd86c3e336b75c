// internal/workers/seller-approval/send-approval-notifications/models.go
package sendapprovalnotifications

import "opas-admin-workers/internal/models"

type Input struct {
	BatchID string                  `json:"batchId"`
	Results []models.ApprovalResult `json:"results"`
}

type Output struct {
	Stats      models.NotificationStats `json:"notificationStats"`
	Deliveries []Delivery               `json:"deliveries"`
}

// Delivery is one message accepted by a provider.
type Delivery struct {
	SellerID  string `json:"seller_id"`
	Channel   string `json:"channel"`
	MessageID string `json:"message_id"`
}

const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)
