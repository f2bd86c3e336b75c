package export

import (
	"encoding/json"
	"fmt"
	"time"

	"opas-admin-workers/internal/models"
)

type jsonDocument struct {
	ExportName  string          `json:"export_name"`
	GeneratedAt string          `json:"generated_at"`
	RecordCount int             `json:"record_count"`
	Columns     []string        `json:"columns"`
	Records     []models.Record `json:"records"`
}

// JSON renders ds as an indented document with export metadata.
func (f *Formatter) JSON(ds Dataset) (*models.ExportResult, error) {
	if err := requireRecords(models.FormatJSON, ds); err != nil {
		return nil, err
	}

	now := f.now()
	content, err := json.MarshalIndent(jsonDocument{
		ExportName:  ds.Name,
		GeneratedAt: now.Format(time.RFC3339),
		RecordCount: len(ds.Records),
		Columns:     columns(ds),
		Records:     ds.Records,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode json export: %w", err)
	}

	return f.result(models.FormatJSON, "json", ds, content, now), nil
}
