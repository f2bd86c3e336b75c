// internal/workers/seller-approval/execute-approvals/models.go
package executeapprovals

import "opas-admin-workers/internal/models"

type Input struct {
	BatchID          string               `json:"batchId"`
	Applications     []models.Application `json:"applications"`
	AdminNotes       string               `json:"adminNotes"`
	StopOnFirstError *bool                `json:"stopOnFirstError,omitempty"`
}

// Output is the execution result. Approvals already made are permanent even
// when Status is FAILED or StoppedEarly is set.
type Output = models.ExecutionResult
