// internal/workers/seller-approval/validate-batch/models.go
package validatebatch

import "opas-admin-workers/internal/models"

type Input struct {
	Applications []models.Application `json:"applications"`
	// MaxBatchSize overrides the configured limit when positive.
	MaxBatchSize int `json:"maxBatchSize,omitempty"`
}

type Output struct {
	IsValid bool     `json:"isValid"`
	Issues  []string `json:"issues"`
	Size    int      `json:"batchSize"`
}
