// Package audit keeps the trail of admin decisions taken by this service in
// the seller_approval_audit table.
package audit

import (
	"context"
	"database/sql"
	"time"

	"opas-admin-workers/internal/common/errors"
	"opas-admin-workers/internal/models"

	"github.com/google/uuid"
)

const (
	ActionApprove = "approve"
	ActionReject  = "reject"
	ActionSuspend = "suspend"
)

const schema = `
CREATE TABLE IF NOT EXISTS seller_approval_audit (
	id         UUID PRIMARY KEY,
	batch_id   TEXT NOT NULL DEFAULT '',
	seller_id  TEXT NOT NULL,
	action     TEXT NOT NULL,
	status     TEXT NOT NULL,
	error      TEXT NOT NULL DEFAULT '',
	notes      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS seller_approval_audit_batch_idx ON seller_approval_audit (batch_id, created_at);`

type Entry struct {
	ID        string    `json:"id"`
	BatchID   string    `json:"batch_id"`
	SellerID  string    `json:"seller_id"`
	Action    string    `json:"action"`
	Status    string    `json:"status"`
	Error     string    `json:"error"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
}

// Record flattens the entry for the export formatter.
func (e Entry) Record() models.Record {
	return models.Record{
		"id":         e.ID,
		"batch_id":   e.BatchID,
		"seller_id":  e.SellerID,
		"action":     e.Action,
		"status":     e.Status,
		"error":      e.Error,
		"notes":      e.Notes,
		"created_at": e.CreatedAt.UTC().Format(time.RFC3339),
	}
}

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return errors.NewQueryExecutionFailedError("create seller_approval_audit", err)
	}
	return nil
}

// Record inserts one entry. ID and CreatedAt are filled when empty.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO seller_approval_audit
			(id, batch_id, seller_id, action, status, error, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.BatchID, e.SellerID, e.Action, e.Status, e.Error, e.Notes, e.CreatedAt,
	)
	if err != nil {
		return errors.NewAuditWriteFailedError(err)
	}
	return nil
}

// List returns entries oldest first. An empty batchID lists every batch.
func (s *Store) List(ctx context.Context, batchID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 10000
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, batch_id, seller_id, action, status, error, notes, created_at
		FROM seller_approval_audit
		WHERE ($1 = '' OR batch_id = $1)
		ORDER BY created_at, id
		LIMIT $2`, batchID, limit)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("list seller_approval_audit", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.BatchID, &e.SellerID, &e.Action, &e.Status, &e.Error, &e.Notes, &e.CreatedAt); err != nil {
			return nil, errors.NewQueryExecutionFailedError("scan seller_approval_audit", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("list seller_approval_audit", err)
	}
	return entries, nil
}
