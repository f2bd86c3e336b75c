// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Seller approval workflow
const (
	ErrCodeFetchFailed            ErrorCode = "FETCH_FAILED"
	ErrCodeInvalidFilter          ErrorCode = "INVALID_FILTER"
	ErrCodeNoApplicationsMatched  ErrorCode = "NO_APPLICATIONS_MATCHED"
	ErrCodeBatchValidationFailed  ErrorCode = "BATCH_VALIDATION_FAILED"
	ErrCodeApprovalFailed         ErrorCode = "APPROVAL_FAILED"
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeAuditWriteFailed       ErrorCode = "AUDIT_WRITE_FAILED"
	ErrCodeReportPublishFailed    ErrorCode = "REPORT_PUBLISH_FAILED"
)

// Exports
const (
	ErrCodeExportEmptyDataset      ErrorCode = "EXPORT_EMPTY_DATASET"
	ErrCodeExportTooLarge          ErrorCode = "EXPORT_TOO_LARGE"
	ErrCodeExportUnsupportedFormat ErrorCode = "EXPORT_UNSUPPORTED_FORMAT"
	ErrCodeExportStorageFailed     ErrorCode = "EXPORT_STORAGE_FAILED"
)

// Infrastructure and input
const (
	ErrCodeInputSchemaInvalid       ErrorCode = "INPUT_SCHEMA_INVALID"
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeExternalService          ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout                  ErrorCode = "TIMEOUT_ERROR"
	ErrCodeResourceNotFound         ErrorCode = "RESOURCE_NOT_FOUND"
	ErrCodeAuthentication           ErrorCode = "AUTHENTICATION_ERROR"
	ErrCodeBusinessRule             ErrorCode = "BUSINESS_RULE_VIOLATION"
	ErrCodeInternal                 ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata returns the error with an extra metadata entry.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// AsStandardError unwraps err looking for a *StandardError.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// NewFetchFailedError reports that pending applications could not be loaded.
func NewFetchFailedError(err error) *StandardError {
	return newError(ErrCodeFetchFailed, "Failed to fetch pending applications", err.Error(), true)
}

func NewInvalidFilterError(details string) *StandardError {
	return newError(ErrCodeInvalidFilter, "Invalid application filter", details, false)
}

// NewNoApplicationsMatchedError is returned when filtering leaves an empty batch.
func NewNoApplicationsMatchedError(filterKind string, stats interface{}) *StandardError {
	return newError(ErrCodeNoApplicationsMatched, "No applications matched the filter",
		fmt.Sprintf("filter: %s", filterKind), false).
		WithMetadata("filterStats", stats)
}

// NewBatchValidationFailedError carries the full issue list.
func NewBatchValidationFailedError(issues []string) *StandardError {
	return newError(ErrCodeBatchValidationFailed, "Batch validation failed",
		strings.Join(issues, "; "), false).
		WithMetadata("issues", issues)
}

func NewApprovalFailedError(sellerID, details string) *StandardError {
	return newError(ErrCodeApprovalFailed, "Seller approval failed",
		fmt.Sprintf("sellerId: %s, error: %s", sellerID, details), false)
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return newError(ErrCodeNotificationSendFailed, "Notification delivery failed",
		fmt.Sprintf("channel: %s, error: %s", channel, err.Error()), true)
}

func NewAuditWriteFailedError(err error) *StandardError {
	return newError(ErrCodeAuditWriteFailed, "Approval audit write failed", err.Error(), true)
}

func NewReportPublishFailedError(sink string, err error) *StandardError {
	return newError(ErrCodeReportPublishFailed, "Batch report publish failed",
		fmt.Sprintf("sink: %s, error: %s", sink, err.Error()), true)
}

func NewExportEmptyDatasetError(format string) *StandardError {
	return newError(ErrCodeExportEmptyDataset, "No records to export",
		fmt.Sprintf("format: %s", format), false)
}

// NewExportTooLargeError reports an export rejected before any buffer was built.
func NewExportTooLargeError(estimated, limit int64) *StandardError {
	return newError(ErrCodeExportTooLarge, "Export exceeds maximum size",
		fmt.Sprintf("estimated %d bytes, limit %d bytes", estimated, limit), false).
		WithMetadata("estimatedBytes", estimated).
		WithMetadata("limitBytes", limit)
}

func NewExportUnsupportedFormatError(format string) *StandardError {
	return newError(ErrCodeExportUnsupportedFormat, "Unsupported export format",
		fmt.Sprintf("format: %s", format), false)
}

func NewExportStorageFailedError(key string, err error) *StandardError {
	return newError(ErrCodeExportStorageFailed, "Failed to store export file",
		fmt.Sprintf("key: %s, error: %s", key, err.Error()), true)
}

func NewInputSchemaInvalidError(taskType string, problems []string) *StandardError {
	return newError(ErrCodeInputSchemaInvalid, "Job variables do not match input schema",
		fmt.Sprintf("taskType: %s, errors: %s", taskType, strings.Join(problems, "; ")), false).
		WithMetadata("schemaErrors", problems)
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", err.Error(), true)
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(queryName string, err error) *StandardError {
	return newError(ErrCodeQueryExecutionFailed, "Database query execution error",
		fmt.Sprintf("query: %s, error: %s", queryName, err.Error()), true)
}

// Generic constructors

func NewBusinessRuleError(message, details string) *StandardError {
	return newError(ErrCodeBusinessRule, message, details, false)
}

func NewExternalServiceError(service string, err error) *StandardError {
	return newError(ErrCodeExternalService, fmt.Sprintf("External service '%s' error", service), err.Error(), true)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newError(ErrCodeTimeout, fmt.Sprintf("Service '%s' timeout", service), err.Error(), true)
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return newError(ErrCodeResourceNotFound, fmt.Sprintf("Resource not found in %s", service), details, false)
}

func NewAuthenticationError(details string) *StandardError {
	return newError(ErrCodeAuthentication, "Authentication failed", details, false)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns how many times Zeebe should retry a job failing with code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeFetchFailed,
		ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeExportStorageFailed,
		ErrCodeExternalService:
		return 3
	case ErrCodeTimeout:
		return 2
	default:
		// Business errors and anything that already touched the backend
		// (approvals are one-way) are never retried.
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           string(stdErr.Code),
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "EXPORT"):
		return "EXPORT"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY") || strings.Contains(codeStr, "AUDIT"):
		return "DATABASE"
	case strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "FILTER") || strings.Contains(codeStr, "MATCHED"):
		return "VALIDATION"
	case strings.Contains(codeStr, "FETCH") || strings.Contains(codeStr, "APPROVAL") || strings.Contains(codeStr, "EXTERNAL") || strings.Contains(codeStr, "TIMEOUT"):
		return "BACKEND"
	case strings.Contains(codeStr, "AUTH"):
		return "AUTH"
	default:
		return "OTHER"
	}
}
