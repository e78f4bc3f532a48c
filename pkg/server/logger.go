package server

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/mikeboe/deep-research/pkg/database"
)

// DBLogHandler is a slog.Handler that persists records to research_logs so a
// session's progress can be inspected over the API while the worker runs.
type DBLogHandler struct {
	DB        *database.PostgresDB
	SessionID uuid.UUID
}

func NewDBLogHandler(db *database.PostgresDB, sessionID uuid.UUID) *DBLogHandler {
	return &DBLogHandler{
		DB:        db,
		SessionID: sessionID,
	}
}

func (h *DBLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return true // Log everything
}

func (h *DBLogHandler) Handle(ctx context.Context, r slog.Record) error {
	// Extract attributes to JSON
	attrs := make(map[string]interface{})
	r.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})

	metaJSON, err := json.Marshal(attrs)
	if err != nil {
		metaJSON = []byte("{}")
	}

	query := `
		INSERT INTO research_logs (session_id, timestamp, level, message, metadata)
		VALUES ($1, $2, $3, $4, $5)
	`

	// Use background context for insert so logs persist even if the request
	// context cancels mid-session.
	_, err = h.DB.Pool.Exec(context.Background(), query, h.SessionID, r.Time, r.Level.String(), r.Message, metaJSON)
	return err
}

func (h *DBLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	// Attribute chains are flattened into the record's own attrs; good enough
	// for the worker's flat logging calls.
	return h
}

func (h *DBLogHandler) WithGroup(name string) slog.Handler {
	return h
}
