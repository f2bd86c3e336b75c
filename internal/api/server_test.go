package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"opas-admin-workers/internal/common/auth"
	commonerrors "opas-admin-workers/internal/common/errors"
	"opas-admin-workers/internal/common/logger"
	"opas-admin-workers/internal/models"
	exportrecords "opas-admin-workers/internal/workers/reporting/export-records"
	buildbatchreport "opas-admin-workers/internal/workers/seller-approval/build-batch-report"
	bulksellerapproval "opas-admin-workers/internal/workers/seller-approval/bulk-seller-approval"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeRunner struct {
	got    *bulksellerapproval.Request
	result *bulksellerapproval.WorkflowResult
}

func (f *fakeRunner) Run(_ context.Context, req *bulksellerapproval.Request) *bulksellerapproval.WorkflowResult {
	f.got = req
	return f.result
}

type fakeReports map[string]*models.BatchReport

func (f fakeReports) Get(_ context.Context, batchID string) (*models.BatchReport, error) {
	if r, ok := f[batchID]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("%w: %s", buildbatchreport.ErrReportNotFound, batchID)
}

type testEnv struct {
	router   *gin.Engine
	runner   *fakeRunner
	verifier *auth.JWTVerifier
}

func newTestEnv(t *testing.T, health map[string]HealthCheck) *testEnv {
	policy, err := auth.NewPolicy()
	require.NoError(t, err)

	runner := &fakeRunner{result: &bulksellerapproval.WorkflowResult{Success: true, BatchID: "BATCH_1"}}
	verifier := auth.NewJWTVerifier("test-secret", "opas-admin")
	srv := NewServer(Options{
		Runner: runner,
		Reports: fakeReports{
			"BATCH_1": {BatchID: "BATCH_1", SuccessCount: 2, ExecutionStatus: models.ExecutionCompleted},
		},
		Exporter: exportrecords.NewHandler(nil, nil, nil, nil, nil, logger.NewNoOpLogger()),
		Verifier: verifier,
		Policy:   policy,
		Health:   health,
		Logger:   logger.NewTestLogger(t),
	})
	return &testEnv{router: srv.Router(), runner: runner, verifier: verifier}
}

func (e *testEnv) do(t *testing.T, method, path, role string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		tok, err := e.verifier.Issue("staff-"+role, role, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, map[string]HealthCheck{
		"redis":    func(context.Context) error { return nil },
		"postgres": func(context.Context) error { return errors.New("connection refused") },
	})

	w := env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "ok", body.Checks["redis"])
	assert.Equal(t, "connection refused", body.Checks["postgres"])

	w = newTestEnv(t, nil).do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	w := newTestEnv(t, nil).do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthorization(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		role   string
		body   interface{}
		want   int
	}{
		{name: "no token", method: http.MethodPost, path: "/api/v1/seller-batches", want: http.StatusUnauthorized},
		{name: "unknown role", method: http.MethodGet, path: "/api/v1/seller-batches/BATCH_1", role: "seller", want: http.StatusForbidden},
		{name: "auditor cannot run batches", method: http.MethodPost, path: "/api/v1/seller-batches", role: auth.RoleAuditor, body: map[string]interface{}{}, want: http.StatusForbidden},
		{name: "auditor reads reports", method: http.MethodGet, path: "/api/v1/seller-batches/BATCH_1", role: auth.RoleAuditor, want: http.StatusOK},
		{name: "admin reads reports", method: http.MethodGet, path: "/api/v1/seller-batches/BATCH_1", role: auth.RoleAdmin, want: http.StatusOK},
		{name: "admin runs batches", method: http.MethodPost, path: "/api/v1/seller-batches", role: auth.RoleAdmin, body: map[string]interface{}{}, want: http.StatusOK},
	}

	env := newTestEnv(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, tt.method, tt.path, tt.role, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestInvalidToken(t *testing.T) {
	env := newTestEnv(t, nil)
	other := auth.NewJWTVerifier("another-secret", "opas-admin")
	tok, err := other.Issue("mallory", auth.RoleAdmin, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/seller-batches/BATCH_1", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRunBatch(t *testing.T) {
	env := newTestEnv(t, nil)
	stop := true

	w := env.do(t, http.MethodPost, "/api/v1/seller-batches", auth.RoleAdmin, map[string]interface{}{
		"criteria":         map[string]interface{}{"kind": "documents_complete"},
		"adminNotes":       "weekly review",
		"stopOnFirstError": stop,
		"maxBatchSize":     50,
	})
	require.Equal(t, http.StatusOK, w.Code)

	require.NotNil(t, env.runner.got)
	assert.Equal(t, models.FilterDocumentsComplete, env.runner.got.Criteria.Kind)
	assert.Equal(t, "weekly review", env.runner.got.AdminNotes)
	assert.Equal(t, &stop, env.runner.got.StopOnFirstError)
	assert.Equal(t, 50, env.runner.got.MaxBatchSize)
	assert.JSONEq(t, `{"success":true,"batchId":"BATCH_1"}`, w.Body.String())
}

func TestRunBatch_Aborted(t *testing.T) {
	env := newTestEnv(t, nil)
	env.runner.result = &bulksellerapproval.WorkflowResult{
		FailedStage: bulksellerapproval.StageValidate,
		Reason:      "Batch validation failed: duplicate seller_id 7",
		ErrorCode:   commonerrors.ErrCodeBatchValidationFailed,
		Issues:      []string{"duplicate seller_id 7"},
	}

	w := env.do(t, http.MethodPost, "/api/v1/seller-batches", auth.RoleAdmin, map[string]interface{}{})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), `"issues":["duplicate seller_id 7"]`)

	env.runner.result = &bulksellerapproval.WorkflowResult{ErrorCode: commonerrors.ErrCodeFetchFailed}
	w = env.do(t, http.MethodPost, "/api/v1/seller-batches", auth.RoleAdmin, map[string]interface{}{})
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestRunBatch_InvalidRequest(t *testing.T) {
	env := newTestEnv(t, nil)
	for name, body := range map[string]interface{}{
		"unknown filter":    map[string]interface{}{"criteria": map[string]interface{}{"kind": "newest"}},
		"start without end": map[string]interface{}{"criteria": map[string]interface{}{"kind": "date_range", "start": "2024-05-01T00:00:00Z"}},
		"batch too large":   map[string]interface{}{"maxBatchSize": 5000},
	} {
		t.Run(name, func(t *testing.T) {
			env.runner.got = nil
			w := env.do(t, http.MethodPost, "/api/v1/seller-batches", auth.RoleAdmin, body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Nil(t, env.runner.got)
		})
	}
}

func TestGetBatchReport(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodGet, "/api/v1/seller-batches/BATCH_1", auth.RoleAuditor, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var report models.BatchReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, 2, report.SuccessCount)

	w = env.do(t, http.MethodGet, "/api/v1/seller-batches/BATCH_404", auth.RoleAuditor, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateExport(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/api/v1/exports", auth.RoleAuditor, map[string]interface{}{
		"name":    "sellers",
		"format":  "csv",
		"columns": []string{"seller_id", "status"},
		"records": []map[string]interface{}{
			{"seller_id": "1", "status": "SUCCESS"},
			{"seller_id": "2", "status": "FAILED"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), `attachment; filename="export_sellers_`)
	assert.Equal(t, "2", w.Header().Get("X-Record-Count"))
	assert.Equal(t, "seller_id,status\n1,SUCCESS\n2,FAILED", w.Body.String())
}

func TestCreateExport_Errors(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/api/v1/exports", auth.RoleAdmin, map[string]interface{}{
		"name": "x", "format": "docx", "records": []map[string]interface{}{{"a": 1}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/exports", auth.RoleAdmin, map[string]interface{}{
		"name": "x", "format": "pdf",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), string(commonerrors.ErrCodeExportEmptyDataset))

	w = env.do(t, http.MethodPost, "/api/v1/exports", auth.RoleAdmin, map[string]interface{}{
		"format": "csv", "source": "approval_audit",
	})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
