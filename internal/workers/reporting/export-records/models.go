// internal/workers/reporting/export-records/models.go
package exportrecords

import "opas-admin-workers/internal/models"

// Record sources.
const (
	SourceInline        = "inline"
	SourceApprovalAudit = "approval_audit"
)

type Input struct {
	Name    string          `json:"name"`
	Title   string          `json:"title,omitempty"`
	Format  string          `json:"format"`
	Source  string          `json:"source,omitempty"`
	BatchID string          `json:"batchId,omitempty"`
	Columns []string        `json:"columns,omitempty"`
	Records []models.Record `json:"records,omitempty"`
}

type Output struct {
	Format      string `json:"format"`
	FileName    string `json:"fileName"`
	StorageKey  string `json:"storageKey"`
	ContentType string `json:"contentType"`
	SizeBytes   int64  `json:"sizeBytes"`
	RecordCount int    `json:"recordCount"`
}
