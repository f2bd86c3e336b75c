package app

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"opas-admin-workers/internal/common/validation"
	"opas-admin-workers/internal/models"
	exportrecords "opas-admin-workers/internal/workers/reporting/export-records"
	buildbatchreport "opas-admin-workers/internal/workers/seller-approval/build-batch-report"
	bulksellerapproval "opas-admin-workers/internal/workers/seller-approval/bulk-seller-approval"
	executeapprovals "opas-admin-workers/internal/workers/seller-approval/execute-approvals"
	filterapplications "opas-admin-workers/internal/workers/seller-approval/filter-applications"
	sendapprovalnotifications "opas-admin-workers/internal/workers/seller-approval/send-approval-notifications"
	validatebatch "opas-admin-workers/internal/workers/seller-approval/validate-batch"
	"opas-admin-workers/pkg/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shippedValidator(t *testing.T) (*registry.ActivityRegistry, *validation.Validator) {
	t.Helper()
	reg, err := registry.LoadRegistry(filepath.Join("..", "..", "configs", "activity-registry.json"))
	require.NoError(t, err)
	v, err := validation.NewValidator(reg)
	require.NoError(t, err)
	return reg, v
}

func mustJSON(t *testing.T, v interface{}) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}

func TestShippedSchemas_AcceptStagePayloads(t *testing.T) {
	reg, v := shippedValidator(t)

	started := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	start, end := started.AddDate(0, 0, -7), started
	stop := true

	apps := []models.Application{{
		SellerID:  "S-1",
		Email:     "juan@farm.ph",
		Phone:     "+639170000001",
		CreatedAt: "2024-05-30T08:00:00Z",
		Documents: []models.Document{{ID: "D-1", Type: "business_permit"}},
	}}
	results := []models.ApprovalResult{
		{SellerID: "S-1", Status: models.ApprovalSuccess, Timestamp: started, Email: "juan@farm.ph"},
		{SellerID: "S-2", Status: models.ApprovalFailed, Error: "decision refused by backend", Timestamp: started},
	}
	execution := models.ExecutionResult{
		BatchID:        "BATCH_1",
		Results:        results,
		TotalProcessed: 2,
		SuccessCount:   1,
		FailureCount:   1,
		Errors:         []string{"seller S-2: decision refused by backend"},
		Status:         models.ExecutionPartiallyCompleted,
		StartedAt:      started,
		CompletedAt:    started.Add(2 * time.Second),
		DurationMs:     2000,
	}
	stats := models.NotificationStats{Sent: 1, Total: 1, DeliveryRate: 1}
	report := buildbatchreport.Build(&execution, stats, started.Add(3*time.Second))

	tests := []struct {
		taskType string
		input    interface{}
		output   interface{}
	}{
		{
			taskType: bulksellerapproval.TaskType,
			input: bulksellerapproval.Request{
				Criteria:         models.FilterCriteria{Kind: models.FilterDateRange, Start: &start, End: &end},
				AdminNotes:       "weekly review",
				StopOnFirstError: &stop,
				MaxBatchSize:     50,
			},
			output: bulksellerapproval.WorkflowResult{Success: true, BatchID: "BATCH_1", Report: report, PublishedTo: []string{"redis"}},
		},
		{
			taskType: filterapplications.TaskType,
			input:    filterapplications.Input{Applications: apps, Criteria: models.FilterCriteria{Kind: models.FilterRecent}},
			output:   filterapplications.Output{Applications: apps, Stats: models.FilterStats{Original: 1, Retained: 1}},
		},
		{
			taskType: validatebatch.TaskType,
			input:    validatebatch.Input{Applications: apps, MaxBatchSize: 100},
			output:   validatebatch.Output{IsValid: true, Issues: []string{}, Size: 1},
		},
		{
			taskType: executeapprovals.TaskType,
			input:    executeapprovals.Input{BatchID: "BATCH_1", Applications: apps, AdminNotes: "ok", StopOnFirstError: &stop},
			output:   execution,
		},
		{
			taskType: sendapprovalnotifications.TaskType,
			input:    sendapprovalnotifications.Input{BatchID: execution.BatchID, Results: execution.Results},
			output: sendapprovalnotifications.Output{Stats: stats, Deliveries: []sendapprovalnotifications.Delivery{
				{SellerID: "S-1", Channel: sendapprovalnotifications.ChannelEmail, MessageID: "log-1"},
			}},
		},
		{
			taskType: buildbatchreport.TaskType,
			input:    buildbatchreport.Input{Execution: execution, Notifications: stats},
			output:   buildbatchreport.Output{Report: report, PublishedTo: []string{"redis", "elasticsearch"}},
		},
		{
			taskType: exportrecords.TaskType,
			input: exportrecords.Input{
				Name:    "sellers",
				Format:  models.FormatCSV,
				Source:  exportrecords.SourceInline,
				Records: []models.Record{{"seller_id": "S-1"}},
			},
			output: exportrecords.Output{
				Format:      models.FormatCSV,
				FileName:    "export_sellers_2024-06-01T10-00-00.000.csv",
				StorageKey:  "exports/export_sellers_2024-06-01T10-00-00.000.csv",
				ContentType: "text/csv; charset=utf-8",
				SizeBytes:   13,
				RecordCount: 1,
			},
		},
	}

	covered := map[string]bool{}
	for _, tt := range tests {
		covered[tt.taskType] = true
		t.Run(tt.taskType, func(t *testing.T) {
			in := v.ValidateJSON(tt.taskType, mustJSON(t, tt.input))
			assert.True(t, in.Valid, "input: %v", in.Messages())

			out := v.ValidateOutputJSON(tt.taskType, mustJSON(t, tt.output))
			assert.True(t, out.Valid, "output: %v", out.Messages())
		})
	}
	for _, a := range reg.Activities {
		assert.True(t, covered[a.TaskType], "no payload case for %s", a.TaskType)
	}
}

func TestShippedSchemas_StageKeys(t *testing.T) {
	_, v := shippedValidator(t)

	res := v.ValidateJSON(buildbatchreport.TaskType, `{"execution":{"batchId":"BATCH_1"}}`)
	assert.False(t, res.Valid)

	res = v.ValidateJSON(buildbatchreport.TaskType, `{"execution":{"batch_id":""}}`)
	assert.False(t, res.Valid)

	// execute-approvals derives a batch id when none is supplied.
	res = v.ValidateJSON(executeapprovals.TaskType, mustJSON(t, executeapprovals.Input{Applications: []models.Application{}}))
	assert.True(t, res.Valid, "%v", res.Messages())

	res = v.ValidateOutputJSON(executeapprovals.TaskType, `{"batchId":"BATCH_1","results":[],"status":"COMPLETED"}`)
	assert.False(t, res.Valid)
}
