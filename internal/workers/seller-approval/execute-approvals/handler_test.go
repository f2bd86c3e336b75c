package executeapprovals

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"opas-admin-workers/internal/audit"
	"opas-admin-workers/internal/common/logger"
	"opas-admin-workers/internal/models"
	"opas-admin-workers/internal/opas"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mocks
// ==========================

type MockApprover struct {
	mock.Mock
}

func (m *MockApprover) ApproveSeller(ctx context.Context, sellerID, notes string) (*opas.DecisionResult, error) {
	args := m.Called(ctx, sellerID, notes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*opas.DecisionResult), args.Error(1)
}

type fakeAudit struct {
	entries []audit.Entry
	err     error
}

func (f *fakeAudit) Record(_ context.Context, e audit.Entry) error {
	f.entries = append(f.entries, e)
	return f.err
}

var fixedNow = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func createTestHandler(t *testing.T, approver Approver, rec AuditRecorder) *Handler {
	return NewHandler(LoadConfig(), approver, rec, nil, logger.NewTestLogger(t)).
		WithClock(func() time.Time { return fixedNow })
}

func batch(ids ...string) []models.Application {
	apps := make([]models.Application, len(ids))
	for i, id := range ids {
		apps[i] = models.Application{SellerID: id, Email: id + "@farm.ph", Phone: "+63917000000" + id}
	}
	return apps
}

func statuses(results []models.ApprovalResult) []models.ApprovalStatus {
	out := make([]models.ApprovalStatus, len(results))
	for i, r := range results {
		out[i] = r.Status
	}
	return out
}

func boolPtr(b bool) *bool { return &b }

// ==========================
// Tests
// ==========================

func TestHandler_Execute_ErrorInMiddleContinues(t *testing.T) {
	approver := new(MockApprover)
	notes := "verified docs [Batch: BATCH_1]"
	approver.On("ApproveSeller", mock.Anything, "S1", notes).Return(&opas.DecisionResult{Success: true}, nil)
	approver.On("ApproveSeller", mock.Anything, "S2", notes).Return(nil, errors.New("connection reset by peer"))
	approver.On("ApproveSeller", mock.Anything, "S3", notes).Return(&opas.DecisionResult{Success: true}, nil)

	rec := &fakeAudit{}
	out, err := createTestHandler(t, approver, rec).Execute(context.Background(), &Input{
		BatchID:          "BATCH_1",
		Applications:     batch("S1", "S2", "S3"),
		AdminNotes:       "verified docs",
		StopOnFirstError: boolPtr(false),
	})
	require.NoError(t, err)

	assert.Equal(t, 3, out.TotalProcessed)
	assert.Equal(t, 2, out.SuccessCount)
	assert.Equal(t, 1, out.FailureCount)
	assert.Equal(t, models.ExecutionPartiallyCompleted, out.Status)
	assert.Equal(t, []models.ApprovalStatus{models.ApprovalSuccess, models.ApprovalError, models.ApprovalSuccess}, statuses(out.Results))
	assert.Equal(t, "S2", out.Results[1].SellerID)
	assert.Equal(t, "connection reset by peer", out.Results[1].Error)
	assert.Equal(t, []string{"seller S2: connection reset by peer"}, out.Errors)
	assert.False(t, out.StoppedEarly)
	assert.Equal(t, "S1@farm.ph", out.Results[0].Email)

	require.Len(t, rec.entries, 3)
	assert.Equal(t, audit.ActionApprove, rec.entries[1].Action)
	assert.Equal(t, "ERROR", rec.entries[1].Status)
	approver.AssertExpectations(t)
}

func TestHandler_Execute_StopOnFirstErrorKeepsPriorSuccesses(t *testing.T) {
	approver := new(MockApprover)
	approver.On("ApproveSeller", mock.Anything, "1", mock.Anything).Return(&opas.DecisionResult{Success: true}, nil)
	approver.On("ApproveSeller", mock.Anything, "2", mock.Anything).Return(&opas.DecisionResult{Success: true}, nil)
	approver.On("ApproveSeller", mock.Anything, "3", mock.Anything).Return(&opas.DecisionResult{Success: false, Error: "permit expired"}, nil)

	out, err := createTestHandler(t, approver, nil).Execute(context.Background(), &Input{
		BatchID:          "BATCH_2",
		Applications:     batch("1", "2", "3", "4", "5"),
		StopOnFirstError: boolPtr(true),
	})
	require.NoError(t, err)

	assert.Equal(t, []models.ApprovalStatus{models.ApprovalSuccess, models.ApprovalSuccess, models.ApprovalFailed}, statuses(out.Results))
	assert.Equal(t, "permit expired", out.Results[2].Error)
	assert.True(t, out.StoppedEarly)
	assert.Equal(t, models.ExecutionPartiallyCompleted, out.Status)
	approver.AssertNotCalled(t, "ApproveSeller", mock.Anything, "4", mock.Anything)
	approver.AssertNotCalled(t, "ApproveSeller", mock.Anything, "5", mock.Anything)
}

func TestHandler_Execute_StatusDerivation(t *testing.T) {
	tests := []struct {
		name    string
		outcome map[string]bool
		want    models.ExecutionStatus
	}{
		{name: "all succeed", outcome: map[string]bool{"a": true, "b": true}, want: models.ExecutionCompleted},
		{name: "all fail", outcome: map[string]bool{"a": false, "b": false}, want: models.ExecutionFailed},
		{name: "mixed", outcome: map[string]bool{"a": true, "b": false}, want: models.ExecutionPartiallyCompleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			approver := new(MockApprover)
			for id, ok := range tt.outcome {
				approver.On("ApproveSeller", mock.Anything, id, mock.Anything).Return(&opas.DecisionResult{Success: ok}, nil)
			}
			out, err := createTestHandler(t, approver, nil).Execute(context.Background(), &Input{Applications: batch("a", "b")})
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Status)
			assert.Equal(t, fmt.Sprintf("BATCH_%d", fixedNow.UnixMilli()), out.BatchID)
		})
	}
}

func TestHandler_Execute_EmptyBatchIsCompleted(t *testing.T) {
	out, err := createTestHandler(t, new(MockApprover), nil).Execute(context.Background(), &Input{BatchID: "B"})
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionCompleted, out.Status)
	assert.Zero(t, out.TotalProcessed)
}

func TestHandler_Execute_CancelledBetweenItems(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	approver := new(MockApprover)
	approver.On("ApproveSeller", mock.Anything, "1", mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(&opas.DecisionResult{Success: true}, nil)

	out, err := createTestHandler(t, approver, nil).Execute(ctx, &Input{BatchID: "B", Applications: batch("1", "2")})
	require.NoError(t, err)
	assert.Equal(t, 1, out.TotalProcessed)
	assert.True(t, out.StoppedEarly)
	assert.Equal(t, models.ExecutionCompleted, out.Status)
}

func TestHandler_Execute_AuditFailureIsNotFatal(t *testing.T) {
	approver := new(MockApprover)
	approver.On("ApproveSeller", mock.Anything, "1", mock.Anything).Return(&opas.DecisionResult{Success: true}, nil)

	out, err := createTestHandler(t, approver, &fakeAudit{err: errors.New("db down")}).Execute(context.Background(), &Input{Applications: batch("1")})
	require.NoError(t, err)
	assert.Equal(t, 1, out.SuccessCount)
}

func TestTagNotes(t *testing.T) {
	assert.Equal(t, "[Batch: BATCH_9]", TagNotes("", "BATCH_9"))
	assert.Equal(t, "ok [Batch: BATCH_9]", TagNotes("ok", "BATCH_9"))
	assert.Equal(t, "BATCH_1717236000000", NewBatchID(fixedNow))
}
