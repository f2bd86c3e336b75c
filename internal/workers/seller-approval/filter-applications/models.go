// internal/workers/seller-approval/filter-applications/models.go
package filterapplications

import "opas-admin-workers/internal/models"

type Input struct {
	Applications []models.Application `json:"applications"`
	Criteria     models.FilterCriteria `json:"criteria"`
}

type Output struct {
	Applications []models.Application `json:"applications"`
	Stats        models.FilterStats   `json:"filterStats"`
}
