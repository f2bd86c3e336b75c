// internal/models/report.go
package models

import "time"

// NotificationFailure identifies a seller whose confirmation was not delivered.
type NotificationFailure struct {
	SellerID string `json:"seller_id"`
	Channel  string `json:"channel"`
	Error    string `json:"error"`
}

// NotificationStats summarises the notification stage.
type NotificationStats struct {
	Sent         int                   `json:"sent"`
	Failed       int                   `json:"failed"`
	Total        int                   `json:"total"`
	DeliveryRate float64               `json:"delivery_rate"`
	Failures     []NotificationFailure `json:"failures,omitempty"`
}

// BatchReport is the final summary of one workflow run. It is built once
// and never modified afterwards.
type BatchReport struct {
	BatchID         string            `json:"batch_id"`
	StartedAt       time.Time         `json:"started_at"`
	CompletedAt     time.Time         `json:"completed_at"`
	TotalProcessed  int               `json:"total_processed"`
	SuccessCount    int               `json:"success_count"`
	FailureCount    int               `json:"failure_count"`
	SuccessRate     float64           `json:"success_rate"`
	Results         []ApprovalResult  `json:"results"`
	Errors          []string          `json:"errors"`
	DurationMs      int64             `json:"duration_ms"`
	Notifications   NotificationStats `json:"notifications"`
	Recommendations []string          `json:"recommendations"`
	ExecutionStatus ExecutionStatus   `json:"execution_status"`
	StoppedEarly    bool              `json:"stopped_early"`
}
