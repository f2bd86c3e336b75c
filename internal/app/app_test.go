package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"opas-admin-workers/internal/common/auth"
	"opas-admin-workers/internal/common/config"
	"opas-admin-workers/internal/common/logger"
	"opas-admin-workers/internal/common/observability"
	executeapprovals "opas-admin-workers/internal/workers/seller-approval/execute-approvals"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func minimalConfig(t *testing.T) *config.Config {
	cfg := &config.Config{}
	cfg.OpasAPI.BaseURL = "http://opas.local/api"
	cfg.OpasAPI.Token = "static"
	cfg.Notifications.Mode = "log"
	cfg.Batch.MaxSize = 100
	cfg.Batch.RecentWindowDays = 7
	cfg.Export.Delimiter = ";"
	cfg.Export.BucketURL = "mem://"
	cfg.RegistryPath = filepath.Join(t.TempDir(), "missing.json")
	return cfg
}

func TestNew_MinimalConfig(t *testing.T) {
	a, err := New(context.Background(), minimalConfig(t), logger.NewTestLogger(t), observability.NewNoop())
	require.NoError(t, err)
	defer a.Close()

	handlers := a.Handlers()
	assert.Len(t, handlers, 7)
	for taskType, h := range handlers {
		assert.NotNil(t, h, taskType)
	}

	assert.Nil(t, a.Postgres)
	assert.Nil(t, a.Audit)
	assert.Nil(t, a.Reports)
	assert.NotNil(t, a.Exports)
	assert.Empty(t, a.HealthChecks())

	a.RegisterHealthCheck("zeebe", func(context.Context) error { return nil })
	assert.Contains(t, a.HealthChecks(), "zeebe")
	assert.IsType(t, auth.StaticToken(""), tokenSource(a.Config))
}

func TestNew_RegistrySchemas(t *testing.T) {
	cfg := minimalConfig(t)
	cfg.RegistryPath = filepath.Join(t.TempDir(), "registry.json")
	require.NoError(t, os.WriteFile(cfg.RegistryPath, []byte(`{
		"version": "1.0.0",
		"activities": [{
			"id": "execute-approvals",
			"displayName": "Execute Approvals",
			"category": "seller-approval",
			"taskType": "execute-approvals",
			"inputSchema": {"type": "object", "required": ["applications"]}
		}]
	}`), 0o644))

	a, err := New(context.Background(), cfg, logger.NewTestLogger(t), observability.NewNoop())
	require.NoError(t, err)
	defer a.Close()
	assert.True(t, a.Validator.HasSchema(executeapprovals.TaskType))
}

func TestNew_InvalidRegistry(t *testing.T) {
	cfg := minimalConfig(t)
	cfg.RegistryPath = filepath.Join(t.TempDir(), "registry.json")
	require.NoError(t, os.WriteFile(cfg.RegistryPath, []byte(`{"activities": []}`), 0o644))

	_, err := New(context.Background(), cfg, logger.NewTestLogger(t), observability.NewNoop())
	assert.ErrorContains(t, err, "registry contains no activities")
}

func TestTokenSource_Keycloak(t *testing.T) {
	cfg := minimalConfig(t)
	cfg.OpasAPI.Token = ""
	cfg.Auth.Keycloak = config.KeycloakConfig{URL: "http://kc.local", Realm: "opas", ClientID: "workers", ClientSecret: "s"}
	assert.IsType(t, &auth.KeycloakClient{}, tokenSource(cfg))
}

func TestAPIServer_RequiresJWTSecret(t *testing.T) {
	a, err := New(context.Background(), minimalConfig(t), logger.NewTestLogger(t), observability.NewNoop())
	require.NoError(t, err)
	defer a.Close()

	srv, err := a.APIServer()
	require.NoError(t, err)
	router := srv.Router()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/seller-batches/BATCH_1", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestShippedRegistry(t *testing.T) {
	cfg := minimalConfig(t)
	cfg.RegistryPath = filepath.Join("..", "..", "configs", "activity-registry.json")

	a, err := New(context.Background(), cfg, logger.NewTestLogger(t), observability.NewNoop())
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Registry)
	assert.Empty(t, a.Registry.Validate())
	for taskType := range a.Handlers() {
		_, err := a.Registry.Find(taskType)
		assert.NoError(t, err, taskType)
		assert.True(t, a.Validator.HasSchema(taskType), taskType)
	}
}

func TestHandlerTimeout(t *testing.T) {
	tests := []struct {
		job  time.Duration
		want time.Duration
	}{
		{job: 10 * time.Minute, want: 10*time.Minute - 5*time.Second},
		{job: 2 * time.Minute, want: 2*time.Minute - 5*time.Second},
		{job: 30 * time.Second, want: 27 * time.Second},
		{job: time.Second, want: 900 * time.Millisecond},
		{job: 0, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.job.String(), func(t *testing.T) {
			got := handlerTimeout(tt.job)
			assert.Equal(t, tt.want, got)
			if tt.job > 0 {
				assert.Less(t, got, tt.job)
			}
		})
	}
}
