package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Sink records state-changing operations for compliance. Recording is
// fire-and-forget: a sink must never fail the primary operation.
type Sink interface {
	Record(ctx context.Context, actorID *uuid.UUID, action string, resourceID string, details map[string]any)
}

// Lister reads recorded entries back for the admin surface.
type Lister interface {
	ListRecent(ctx context.Context, limit int) ([]Entry, error)
}

type Entry struct {
	ID         int64
	ActorID    *uuid.UUID
	Action     string
	ResourceID *string
	Details    json.RawMessage
	CreatedAt  time.Time
}

type PgRecorder struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

func NewPgRecorder(pool *pgxpool.Pool, log zerolog.Logger) *PgRecorder {
	return &PgRecorder{pool: pool, log: log}
}

// Record appends an audit row. Failures are logged and swallowed so the
// caller's mutation is never rolled back or failed by audit trouble.
func (r *PgRecorder) Record(ctx context.Context, actorID *uuid.UUID, action string, resourceID string, details map[string]any) {
	raw, err := json.Marshal(details)
	if err != nil {
		r.log.Error().Err(err).Str("action", action).Msg("audit: marshal details")
		raw = []byte("{}")
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO audit_logs (actor_id, action, resource_id, details, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, now())
	`, actorID, action, resourceID, raw)
	if err != nil {
		r.log.Error().Err(err).Str("action", action).Str("resource_id", resourceID).Msg("audit: insert failed")
	}
}

// ListRecent returns the newest audit entries, for the admin surface.
func (r *PgRecorder) ListRecent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, actor_id, action, resource_id, details, created_at
		FROM audit_logs
		ORDER BY id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.ResourceID, &e.Details, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return entries, nil
}

// NopSink discards every record. Used by tests.
type NopSink struct{}

func (NopSink) Record(context.Context, *uuid.UUID, string, string, map[string]any) {}
