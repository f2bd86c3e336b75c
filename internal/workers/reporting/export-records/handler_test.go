package exportrecords

import (
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"opas-admin-workers/internal/audit"
	commonerrors "opas-admin-workers/internal/common/errors"
	"opas-admin-workers/internal/common/logger"
	"opas-admin-workers/internal/common/storage"
	"opas-admin-workers/internal/export"
	"opas-admin-workers/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob/memblob"
)

var exportNow = time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC)

func newStore(t *testing.T) *storage.Store {
	s := storage.NewStore(memblob.OpenBucket(nil), "exports")
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestHandler(t *testing.T, store FileStore, lister AuditLister) *Handler {
	f := export.NewFormatter(export.DefaultOptions()).WithClock(func() time.Time { return exportNow })
	return NewHandler(LoadConfig(), f, store, lister, nil, logger.NewTestLogger(t))
}

func requireCode(t *testing.T, err error, code commonerrors.ErrorCode) {
	t.Helper()
	stdErr, ok := commonerrors.AsStandardError(err)
	require.True(t, ok, "expected StandardError, got %v", err)
	assert.Equal(t, code, stdErr.Code)
}

type failingStore struct{}

func (failingStore) Put(context.Context, string, []byte, string) (string, error) {
	return "", errors.New("AccessDenied")
}

func TestHandler_Execute_InlineRecords(t *testing.T) {
	store := newStore(t)
	h := createTestHandler(t, store, nil)

	out, err := h.Execute(context.Background(), &Input{
		Name:    "sellers",
		Format:  models.FormatCSV,
		Columns: []string{"seller_id", "store"},
		Records: []models.Record{
			{"seller_id": "1", "store": "Aling Nena, Sari-sari"},
			{"seller_id": "2", "store": "Kuya Ben"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "export_sellers_2024-06-01T12-30-00.000.csv", out.FileName)
	assert.Equal(t, "exports/export_sellers_2024-06-01T12-30-00.000.csv", out.StorageKey)
	assert.Equal(t, "text/csv; charset=utf-8", out.ContentType)
	assert.Equal(t, 2, out.RecordCount)

	content, err := store.Get(context.Background(), out.StorageKey)
	require.NoError(t, err)
	assert.Equal(t, out.SizeBytes, int64(len(content)))
	assert.Equal(t, "seller_id,store\n1,\"Aling Nena, Sari-sari\"\n2,Kuya Ben", string(content))
}

func TestHandler_Execute_ApprovalAudit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	at := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT id, batch_id, seller_id`).
		WithArgs("BATCH_1", 10000).
		WillReturnRows(sqlmock.NewRows([]string{"id", "batch_id", "seller_id", "action", "status", "error", "notes", "created_at"}).
			AddRow("a", "BATCH_1", "1", "approve", "SUCCESS", "", "ok", at).
			AddRow("b", "BATCH_1", "2", "approve", "FAILED", "already approved", "ok", at.Add(time.Second)))

	store := newStore(t)
	h := createTestHandler(t, store, audit.NewStore(db))

	out, err := h.Execute(context.Background(), &Input{
		Format:  models.FormatCSV,
		Source:  SourceApprovalAudit,
		BatchID: "BATCH_1",
	})
	require.NoError(t, err)
	assert.Equal(t, "export_approval_audit_BATCH_1_2024-06-01T12-30-00.000.csv", out.FileName)
	assert.Equal(t, 2, out.RecordCount)

	content, err := store.Get(context.Background(), out.StorageKey)
	require.NoError(t, err)
	rows, err := csv.NewReader(strings.NewReader(string(content))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, AuditColumns, rows[0])
	assert.Equal(t, []string{"2024-06-01T09:00:01Z", "BATCH_1", "2", "approve", "FAILED", "already approved", "ok", "b"}, rows[2])

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_Errors(t *testing.T) {
	records := []models.Record{{"a": 1}}

	tests := []struct {
		name   string
		store  FileStore
		lister AuditLister
		input  Input
		code   commonerrors.ErrorCode
	}{
		{
			name:  "empty dataset",
			store: newStore(t),
			input: Input{Name: "x", Format: models.FormatPDF},
			code:  commonerrors.ErrCodeExportEmptyDataset,
		},
		{
			name:  "unsupported format",
			store: newStore(t),
			input: Input{Name: "x", Format: "docx", Records: records},
			code:  commonerrors.ErrCodeExportUnsupportedFormat,
		},
		{
			name:  "storage failure",
			store: failingStore{},
			input: Input{Name: "x", Format: models.FormatJSON, Records: records},
			code:  commonerrors.ErrCodeExportStorageFailed,
		},
		{
			name:  "no bucket",
			input: Input{Name: "x", Format: models.FormatJSON, Records: records},
			code:  commonerrors.ErrCodeExportStorageFailed,
		},
		{
			name:  "audit without database",
			store: newStore(t),
			input: Input{Format: models.FormatCSV, Source: SourceApprovalAudit},
			code:  commonerrors.ErrCodeDatabaseConnectionFailed,
		},
		{
			name:  "unknown source",
			store: newStore(t),
			input: Input{Format: models.FormatCSV, Source: "orders"},
			code:  commonerrors.ErrCodeBusinessRule,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := createTestHandler(t, tt.store, tt.lister)
			_, err := h.Execute(context.Background(), &tt.input)
			requireCode(t, err, tt.code)
		})
	}
}

func TestHandler_Render_DoesNotStore(t *testing.T) {
	h := createTestHandler(t, failingStore{}, nil)
	res, err := h.Render(context.Background(), &Input{Format: models.FormatExcel, Records: []models.Record{{"a": 1}}})
	require.NoError(t, err)
	assert.Equal(t, "export_records_2024-06-01T12-30-00.000.xlsx", res.FileName)
	assert.NotEmpty(t, res.Content)
}
