// internal/models/export.go
package models

import "time"

// Export formats.
const (
	FormatCSV   = "csv"
	FormatPDF   = "pdf"
	FormatExcel = "excel"
	FormatJSON  = "json"
)

// Record is one flat row of an export dataset.
type Record map[string]interface{}

// ExportResult describes a formatted export. The formatter never persists
// Content; storing it is up to the caller.
type ExportResult struct {
	Format      string    `json:"format"`
	FileName    string    `json:"file_name"`
	SizeBytes   int64     `json:"size_bytes"`
	RecordCount int       `json:"record_count"`
	Timestamp   time.Time `json:"timestamp"`
	Content     []byte    `json:"-"`
}
