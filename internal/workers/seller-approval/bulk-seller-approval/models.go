// internal/workers/seller-approval/bulk-seller-approval/models.go
package bulksellerapproval

import (
	"opas-admin-workers/internal/common/errors"
	"opas-admin-workers/internal/models"
)

// Stage names reported in FailedStage.
const (
	StageFetch    = "fetch"
	StageFilter   = "filter"
	StageValidate = "validate"
	StageExecute  = "execute"
	StageNotify   = "notify"
	StageReport   = "report"
)

// Request starts one bulk approval run.
type Request struct {
	Criteria         models.FilterCriteria `json:"criteria"`
	AdminNotes       string                `json:"adminNotes"`
	StopOnFirstError *bool                 `json:"stopOnFirstError,omitempty"`
	MaxBatchSize     int                   `json:"maxBatchSize,omitempty"`
}

type Input = Request

// WorkflowResult is returned for every run. On success Report and BatchID
// are set; otherwise FailedStage, Reason and ErrorCode explain the abort.
type WorkflowResult struct {
	Success     bool                `json:"success"`
	BatchID     string              `json:"batchId,omitempty"`
	Report      *models.BatchReport `json:"report,omitempty"`
	PublishedTo []string            `json:"publishedTo,omitempty"`
	FailedStage string              `json:"failedStage,omitempty"`
	Reason      string              `json:"reason,omitempty"`
	ErrorCode   errors.ErrorCode    `json:"errorCode,omitempty"`
	Issues      []string            `json:"issues,omitempty"`
	FilterStats *models.FilterStats `json:"filterStats,omitempty"`

	cause *errors.StandardError
}

// Err returns the error that aborted the run, or nil.
func (r *WorkflowResult) Err() error {
	if r == nil || r.cause == nil {
		return nil
	}
	return r.cause
}
