// internal/workers/seller-approval/build-batch-report/models.go
package buildbatchreport

import "opas-admin-workers/internal/models"

type Input struct {
	Execution     models.ExecutionResult   `json:"execution"`
	Notifications models.NotificationStats `json:"notificationStats"`
}

type Output struct {
	Report      *models.BatchReport `json:"report"`
	PublishedTo []string            `json:"publishedTo"`
}
