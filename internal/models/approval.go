// internal/models/approval.go
package models

import "time"

// ApprovalStatus is the per-application outcome of an approval attempt.
type ApprovalStatus string

const (
	// ApprovalSuccess: the backend approved the seller.
	ApprovalSuccess ApprovalStatus = "SUCCESS"
	// ApprovalFailed: the backend answered but refused the approval.
	ApprovalFailed ApprovalStatus = "FAILED"
	// ApprovalError: the call itself failed (network, unexpected response).
	ApprovalError ApprovalStatus = "ERROR"
)

// ApprovalResult records one approval attempt. Email and Phone are copied
// from the application so notifications can reach the seller.
type ApprovalResult struct {
	SellerID  string         `json:"seller_id"`
	Status    ApprovalStatus `json:"status"`
	Error     string         `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Email     string         `json:"email,omitempty"`
	Phone     string         `json:"phone,omitempty"`
}

// Failed reports whether the result counts as a failure.
func (r ApprovalResult) Failed() bool {
	return r.Status == ApprovalFailed || r.Status == ApprovalError
}

// ExecutionStatus summarises a whole approval run.
type ExecutionStatus string

const (
	ExecutionCompleted          ExecutionStatus = "COMPLETED"
	ExecutionPartiallyCompleted ExecutionStatus = "PARTIALLY_COMPLETED"
	ExecutionFailed             ExecutionStatus = "FAILED"
)

// DeriveExecutionStatus maps failure counts to a run status. Zero failures
// wins over everything else, so an empty run is COMPLETED.
func DeriveExecutionStatus(processed, failures int) ExecutionStatus {
	switch {
	case failures == 0:
		return ExecutionCompleted
	case failures == processed:
		return ExecutionFailed
	default:
		return ExecutionPartiallyCompleted
	}
}

// ExecutionResult is the output of the approval loop. Approvals are one-way:
// successes recorded here stay approved on the backend even when the run
// stopped early or later items failed.
type ExecutionResult struct {
	BatchID        string           `json:"batch_id"`
	Results        []ApprovalResult `json:"results"`
	TotalProcessed int              `json:"total_processed"`
	SuccessCount   int              `json:"success_count"`
	FailureCount   int              `json:"failure_count"`
	Errors         []string         `json:"errors"`
	Status         ExecutionStatus  `json:"status"`
	StoppedEarly   bool             `json:"stopped_early"`
	StartedAt      time.Time        `json:"started_at"`
	CompletedAt    time.Time        `json:"completed_at"`
	DurationMs     int64            `json:"duration_ms"`
}
