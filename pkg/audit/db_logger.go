package audit

import (
	"context"
	"database/sql"
	"fmt"
)

// DBLogger persists audit events to PostgreSQL.
type DBLogger struct {
	db *sql.DB
}

// NewDBLogger creates a database-backed audit logger.
func NewDBLogger(db *sql.DB) *DBLogger {
	return &DBLogger{db: db}
}

// EnsureSchema creates the audit table when missing.
func (l *DBLogger) EnsureSchema(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS audit_events (
			id BIGSERIAL PRIMARY KEY,
			timestamp TIMESTAMPTZ NOT NULL,
			event_type TEXT NOT NULL,
			status TEXT NOT NULL,
			account_id TEXT NOT NULL DEFAULT '',
			username TEXT NOT NULL DEFAULT '',
			provider TEXT NOT NULL DEFAULT '',
			ip_address TEXT NOT NULL DEFAULT '',
			user_agent TEXT NOT NULL DEFAULT '',
			request_id TEXT NOT NULL DEFAULT '',
			path TEXT NOT NULL DEFAULT '',
			message TEXT NOT NULL DEFAULT ''
		)`)
	if err != nil {
		return fmt.Errorf("failed to create audit_events table: %w", err)
	}

	_, err = l.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_audit_events_timestamp ON audit_events (timestamp)`)
	if err != nil {
		return fmt.Errorf("failed to create audit_events index: %w", err)
	}
	return nil
}

// Log implements Logger.
func (l *DBLogger) Log(ctx context.Context, event *Event) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO audit_events
			(timestamp, event_type, status, account_id, username, provider,
			 ip_address, user_agent, request_id, path, message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		event.Timestamp, event.EventType, event.Status, event.AccountID,
		event.Username, event.Provider, event.IPAddress, event.UserAgent,
		event.RequestID, event.Path, event.Message)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// Close implements Logger. The connection pool is owned by the caller.
func (l *DBLogger) Close() error { return nil }
